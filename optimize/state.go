package optimize

import (
	"sort"

	"github.com/bits-and-blooms/bitset"

	"bitbucket.org/Davydov/minsq/distance"
	"bitbucket.org/Davydov/minsq/lsq"
	"bitbucket.org/Davydov/minsq/tree"
)

// State is a candidate topology with its fitted branch lengths. A state
// is never modified once it is shared between goroutines; moves are
// applied to copies.
type State struct {
	Tree   *tree.Tree
	clades []*bitset.BitSet
	sys    *lsq.System
	Fit    lsq.Fit
}

// NewState fits branch lengths of a normalized tree.
func NewState(t *tree.Tree, tab *distance.Table) *State {
	s := &State{
		Tree:   t,
		clades: t.Clades(tab.Len()),
		sys:    lsq.New(t, tab),
	}
	s.Fit = s.sys.Solve()
	return s
}

// Score returns the weighted residual of the fit.
func (s *State) Score() float64 {
	return s.Fit.Score
}

// Copy returns a state which can be modified independently. Clade
// bitsets are shared, they are replaced and never modified in place.
func (s *State) Copy() *State {
	return &State{
		Tree:   s.Tree.Copy(),
		clades: append([]*bitset.BitSet(nil), s.clades...),
		sys:    s.sys.Copy(),
		Fit:    s.Fit,
	}
}

// apply performs the move and refits the branch lengths. Only the rows
// of the edges with a changed clade are recomputed.
func (s *State) apply(mv Move, tab *distance.Table) {
	touched := mv.apply(s.Tree)
	changed := s.refreshClades(touched)
	s.sys.Update(s.Tree, s.clades, tab, changed)
	s.Fit = s.sys.Solve()
}

// refreshClades recomputes the clades of the touched nodes and their
// ancestors and returns the nodes whose clade changed.
func (s *State) refreshClades(touched []int) (changed []int) {
	t := s.Tree
	depth := t.Depths()
	seen := make(map[int]bool)
	var nodes []int
	for _, id := range touched {
		for ; id >= 0 && !seen[id]; id = t.Parent(id) {
			seen[id] = true
			nodes = append(nodes, id)
		}
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return depth[nodes[i]] > depth[nodes[j]]
	})
	for _, id := range nodes {
		ch := t.Children(id)
		if len(ch) == 0 {
			continue
		}
		c := s.clades[ch[0]].Clone()
		for _, x := range ch[1:] {
			c.InPlaceUnion(s.clades[x])
		}
		if !c.Equal(s.clades[id]) {
			s.clades[id] = c
			changed = append(changed, id)
		}
	}
	return
}

// lengths sets the fitted branch lengths on the tree.
func (s *State) lengths() {
	s.Tree.SetLengths(s.Fit.Lengths)
}
