package optimize

import (
	"fmt"
	"math/rand"

	"bitbucket.org/Davydov/minsq/tree"
)

// MoveKind is a type of tree rearrangement.
type MoveKind int

const (
	// NNI swaps two subtrees on the opposite sides of an internal edge.
	NNI MoveKind = iota
	// SPR prunes a subtree and regrafts it on another branch.
	SPR
)

func (k MoveKind) String() string {
	switch k {
	case NNI:
		return "nni"
	case SPR:
		return "spr"
	}
	return fmt.Sprintf("MoveKind(%d)", int(k))
}

// Move is a rearrangement of a normalized tree. Node ids are stable
// under all the moves, so a move stays valid for every copy of the
// tree it was generated for.
type Move struct {
	Kind MoveKind
	// For NNI the subtrees A and B are swapped. For SPR the subtree A
	// is pruned and regrafted on the branch above B.
	A, B int
}

func (mv Move) String() string {
	return fmt.Sprintf("%v(%d,%d)", mv.Kind, mv.A, mv.B)
}

// apply performs the move and returns the nodes whose children
// changed.
func (mv Move) apply(t *tree.Tree) []int {
	switch mv.Kind {
	case NNI:
		t.Swap(mv.A, mv.B)
		return []int{t.Parent(mv.A), t.Parent(mv.B)}
	case SPR:
		gp := t.Parent(t.Parent(mv.A))
		p := t.Prune(mv.A)
		t.Regraft(p, mv.B)
		return []int{gp, p}
	}
	panic(fmt.Sprintf("unknown move %v", mv.Kind))
}

// NNIMoves returns the two interchanges around every internal edge.
// The order depends only on the tree.
func NNIMoves(t *tree.Tree) (moves []Move) {
	for _, c := range t.Postorder() {
		p := t.Parent(c)
		if p < 0 || t.IsTerminal(c) {
			continue
		}
		ch := t.Children(p)
		sib := ch[0]
		if sib == c {
			sib = ch[1]
		}
		for _, a := range t.Children(c) {
			moves = append(moves, Move{Kind: NNI, A: a, B: sib})
		}
	}
	return
}

// SPRMoves returns the regrafts of every subtree within radius branches
// of its original position. The distance is counted in the tree with
// the subtree removed; regrafts at distance one are nearest neighbor
// interchanges and are skipped when minDist is two. Subtrees hanging
// from the root are not pruned, their moves are reached by pruning the
// rest of the tree.
func SPRMoves(t *tree.Tree, radius, minDist int) (moves []Move) {
	dist := make([]int, t.NNodes())
	var queue []int
	for _, s := range t.Postorder() {
		p := t.Parent(s)
		if p < 0 || p == t.Root() {
			continue
		}
		nt := t.Copy()
		sib := nt.Children(p)[0]
		if sib == s {
			sib = nt.Children(p)[1]
		}
		nt.Prune(s)
		for i := range dist {
			dist[i] = -1
		}
		dist[sib] = 0
		queue = append(queue[:0], sib)
		for len(queue) > 0 {
			x := queue[0]
			queue = queue[1:]
			if dist[x] >= minDist {
				moves = append(moves, Move{Kind: SPR, A: s, B: x})
			}
			if dist[x] == radius {
				continue
			}
			visit := func(y int) {
				if dist[y] < 0 && y != nt.Root() {
					dist[y] = dist[x] + 1
					queue = append(queue, y)
				}
			}
			for _, y := range nt.Children(x) {
				visit(y)
			}
			if y := nt.Parent(x); y >= 0 {
				for _, z := range nt.Children(y) {
					visit(z)
				}
				visit(y)
			}
		}
	}
	return
}

// perturb applies n random interchanges.
func perturb(t *tree.Tree, n int, rng *rand.Rand) {
	for i := 0; i < n; i++ {
		moves := NNIMoves(t)
		if len(moves) == 0 {
			return
		}
		moves[rng.Intn(len(moves))].apply(t)
	}
}
