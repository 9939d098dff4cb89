package tree

import "fmt"

func (t *Tree) replaceChild(parent, old, repl int) {
	ch := t.nodes[parent].children
	for i, c := range ch {
		if c == old {
			ch[i] = repl
			return
		}
	}
	panic(fmt.Sprintf("node %d is not a child of %d", old, parent))
}

// IsAncestor returns true if a is on the path from b to the root,
// including a == b.
func (t *Tree) IsAncestor(a, b int) bool {
	for ; b >= 0; b = t.nodes[b].Parent {
		if a == b {
			return true
		}
	}
	return false
}

// Swap exchanges the subtrees rooted at a and b together with their
// branches. Neither node can be an ancestor of the other. With a and b
// on the two sides of an internal edge this is a nearest neighbor
// interchange.
func (t *Tree) Swap(a, b int) {
	if t.IsAncestor(a, b) || t.IsAncestor(b, a) {
		panic(fmt.Sprintf("cannot swap nested subtrees %d and %d", a, b))
	}
	pa, pb := t.nodes[a].Parent, t.nodes[b].Parent
	if pa == pb {
		ch := t.nodes[pa].children
		for i, c := range ch {
			switch c {
			case a:
				ch[i] = b
			case b:
				ch[i] = a
			}
		}
	} else {
		t.replaceChild(pa, a, b)
		t.replaceChild(pb, b, a)
		t.nodes[a].Parent, t.nodes[b].Parent = pb, pa
	}
	t.ClearCache()
}

// Prune detaches the subtree rooted at s together with its parent p.
// The sibling of s takes the place of p and absorbs its branch. The
// returned p is detached and has s as its only child, so it can be
// passed to Regraft. The parent of s must be a non-root node with two
// children.
func (t *Tree) Prune(s int) int {
	p := t.nodes[s].Parent
	if p < 0 || p == t.root {
		panic(fmt.Sprintf("cannot prune node %d attached to the root", s))
	}
	if len(t.nodes[p].children) != 2 {
		panic(fmt.Sprintf("cannot prune node %d, parent is not binary", s))
	}
	sib := t.nodes[p].children[0]
	if sib == s {
		sib = t.nodes[p].children[1]
	}
	gp := t.nodes[p].Parent
	t.replaceChild(gp, p, sib)
	sn := &t.nodes[sib]
	sn.Parent = gp
	sn.Length += t.nodes[p].Length
	sn.HasLength = sn.HasLength || t.nodes[p].HasLength
	t.nodes[p].Parent = -1
	t.nodes[p].children = []int{s}
	t.nodes[p].Length = 0
	t.ClearCache()
	return p
}

// Regraft inserts a detached node p in the middle of the branch above
// target. The branch length is split equally.
func (t *Tree) Regraft(p, target int) {
	if t.nodes[p].Parent >= 0 {
		panic(fmt.Sprintf("node %d is attached", p))
	}
	tp := t.nodes[target].Parent
	if tp < 0 {
		panic(fmt.Sprintf("node %d has no branch", target))
	}
	t.replaceChild(tp, target, p)
	t.nodes[p].Parent = tp
	half := t.BranchLength(target) / 2
	t.nodes[p].Length, t.nodes[p].HasLength = half, true
	t.nodes[target].Length, t.nodes[target].HasLength = half, true
	t.nodes[target].Parent = -1
	t.Attach(target, p)
}

// Unroot turns a root with two children into a root with three,
// merging the two root branches into one.
func (t *Tree) Unroot() {
	r := t.root
	if r < 0 || len(t.nodes[r].children) != 2 {
		return
	}
	a, b := t.nodes[r].children[0], t.nodes[r].children[1]
	if t.IsTerminal(a) {
		a, b = b, a
	}
	if t.IsTerminal(a) {
		return
	}
	// a is removed, its children go to the root
	bn := &t.nodes[b]
	bn.Length = t.BranchLength(a) + t.BranchLength(b)
	bn.HasLength = true
	ch := make([]int, 0, len(t.nodes[a].children)+1)
	ch = append(ch, t.nodes[a].children...)
	ch = append(ch, b)
	for _, c := range t.nodes[a].children {
		t.nodes[c].Parent = r
	}
	t.nodes[r].children = ch
	t.nodes[a].Parent = -1
	t.nodes[a].children = nil
	t.ClearCache()
}

// suppressUnary removes internal nodes with a single child.
func (t *Tree) suppressUnary() {
	for len(t.nodes[t.root].children) == 1 {
		c := t.nodes[t.root].children[0]
		t.nodes[t.root].children = nil
		t.nodes[c].Parent = -1
		t.nodes[c].Length, t.nodes[c].HasLength = 0, false
		t.root = c
	}
	for _, id := range t.Postorder() {
		node := &t.nodes[id]
		if id == t.root || len(node.children) != 1 {
			continue
		}
		c := node.children[0]
		t.replaceChild(node.Parent, id, c)
		cn := &t.nodes[c]
		cn.Parent = node.Parent
		cn.Length = t.BranchLength(c) + t.BranchLength(id)
		cn.HasLength = true
		node.Parent = -1
		node.children = nil
	}
	t.ClearCache()
}

// resolve splits polytomies by repeatedly joining the last two
// children under a new node with a zero branch.
func (t *Tree) resolve() {
	for _, id := range t.Postorder() {
		limit := 2
		if id == t.root {
			limit = 3
		}
		for len(t.nodes[id].children) > limit {
			ch := t.nodes[id].children
			a, b := ch[len(ch)-2], ch[len(ch)-1]
			t.nodes[id].children = append([]int(nil), ch[:len(ch)-2]...)
			n := t.AddNode(id, "", -1)
			t.nodes[n].HasLength = true
			t.nodes[a].Parent, t.nodes[b].Parent = -1, -1
			t.Attach(a, n)
			t.Attach(b, n)
		}
	}
	t.ClearCache()
}

// Compact rebuilds the arena keeping only the nodes reachable from the
// root. Node ids follow the preorder, so the root gets id 0.
func (t *Tree) Compact() {
	order := t.Preorder()
	newId := make([]int, len(t.nodes))
	for i := range newId {
		newId[i] = -1
	}
	for i, id := range order {
		newId[id] = i
	}
	nodes := make([]Node, len(order))
	for i, id := range order {
		node := t.nodes[id]
		if node.Parent >= 0 {
			node.Parent = newId[node.Parent]
		}
		ch := make([]int, len(node.children))
		for j, c := range node.children {
			ch[j] = newId[c]
		}
		node.children = ch
		nodes[i] = node
	}
	t.nodes = nodes
	if len(order) > 0 {
		t.root = 0
	}
	t.ClearCache()
}

// Normalize converts a tree to the form used by the optimizer: unary
// nodes are suppressed, the tree is unrooted, polytomies are resolved
// with zero length branches and the arena is compacted. The result
// has a root with three children (for three or more leaves) and every
// other internal node has exactly two.
func (t *Tree) Normalize() {
	if t.root < 0 {
		return
	}
	t.suppressUnary()
	t.Unroot()
	t.resolve()
	t.Compact()
}
