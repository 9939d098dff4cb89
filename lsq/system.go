// Package lsq fits branch lengths of a fixed topology to an aggregate
// distance table by weighted least squares.
//
// The fit is kept as normal equations M x = r, where
//
//	M[e][f] = sum of w_ij over pairs whose path crosses both e and f
//	r[e]    = sum of w_ij t_ij over pairs whose path crosses e
//
// and the residual is c - 2 x'r + x'Mx with c = sum of w_ij t_ij^2.
// An entry of M or r depends only on the splits of its edges, so after
// a rearrangement only the rows of the edges with a changed clade need
// to be recomputed.
package lsq

import (
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/gonum/floats"
	"github.com/op/go-logging"

	"bitbucket.org/Davydov/minsq/distance"
	"bitbucket.org/Davydov/minsq/tree"
)

var log = logging.MustGetLogger("lsq")

// System holds the normal equations for one topology. Rows and columns
// are indexed by node id; the root row is zero.
type System struct {
	n     int
	m     int
	root  int
	edges []int
	mat   []float64
	rhs   []float64
	c     float64
}

// New builds the system for a tree. All the leaves must carry taxon
// indices of the table.
func New(t *tree.Tree, tab *distance.Table) *System {
	s := &System{
		n:    tab.Len(),
		m:    t.NNodes(),
		root: t.Root(),
		mat:  make([]float64, t.NNodes()*t.NNodes()),
		rhs:  make([]float64, t.NNodes()),
		c:    tab.Constant(),
	}
	for _, id := range t.Postorder() {
		if id != s.root {
			s.edges = append(s.edges, id)
		}
	}
	s.Update(t, t.Clades(s.n), tab, s.edges)
	return s
}

// Copy returns an independent copy of the system.
func (s *System) Copy() *System {
	ns := *s
	ns.mat = append([]float64(nil), s.mat...)
	ns.rhs = append([]float64(nil), s.rhs...)
	return &ns
}

// Edges returns the edge ids. The slice must not be modified.
func (s *System) Edges() []int {
	return s.edges
}

// At returns an entry of M.
func (s *System) At(e, f int) float64 {
	return s.mat[e*s.m+f]
}

// Rhs returns an entry of r.
func (s *System) Rhs(e int) float64 {
	return s.rhs[e]
}

// Constant returns c, the residual of the zero length tree.
func (s *System) Constant() float64 {
	return s.c
}

type workspace struct {
	rIn    []float64
	sIn    []float64
	sumIn  []float64
	sumOut []float64
	mark   []int8
	stack  []int
}

const (
	disjoint int8 = iota
	inside
	ancestor
)

// Update recomputes rows and columns of the changed edges. The clades
// have to correspond to the current tree. The tree must have the same
// arena layout and root as the tree the system was built for.
func (s *System) Update(t *tree.Tree, clades []*bitset.BitSet, tab *distance.Table, changed []int) {
	if len(changed) == 0 {
		return
	}
	w := &workspace{
		rIn:    make([]float64, s.n),
		sIn:    make([]float64, s.n),
		sumIn:  make([]float64, s.m),
		sumOut: make([]float64, s.m),
		mark:   make([]int8, s.m),
	}
	for _, c := range changed {
		if c != s.root {
			s.updateRow(t, clades, tab, c, w)
		}
	}
}

func (s *System) updateRow(t *tree.Tree, clades []*bitset.BitSet, tab *distance.Table, c int, w *workspace) {
	for i := range w.rIn {
		w.rIn[i] = 0
		w.sIn[i] = 0
	}
	clade := clades[c]
	for i, e := clade.NextSet(0); e; i, e = clade.NextSet(i + 1) {
		floats.Add(w.rIn, tab.WeightRow(int(i)))
		floats.Add(w.sIn, tab.SumRow(int(i)))
	}
	totalIn := floats.Sum(w.rIn)
	rhs := 0.0
	for i, e := clade.NextSet(0); e; i, e = clade.NextSet(i + 1) {
		rhs += tab.RowSum(int(i)) - w.sIn[i]
	}

	// subtree sums of the weights to the clade and out of it
	for _, id := range t.Postorder() {
		w.mark[id] = disjoint
		ch := t.Children(id)
		if len(ch) == 0 {
			tx := t.Node(id).Taxon
			w.sumIn[id] = w.rIn[tx]
			w.sumOut[id] = 0
			if clade.Test(uint(tx)) {
				w.sumOut[id] = tab.RowWeight(tx) - w.rIn[tx]
			}
			continue
		}
		w.sumIn[id], w.sumOut[id] = 0, 0
		for _, ci := range ch {
			w.sumIn[id] += w.sumIn[ci]
			w.sumOut[id] += w.sumOut[ci]
		}
	}
	for p := t.Parent(c); p >= 0; p = t.Parent(p) {
		w.mark[p] = ancestor
	}
	w.stack = append(w.stack[:0], c)
	for len(w.stack) > 0 {
		id := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]
		w.mark[id] = inside
		w.stack = append(w.stack, t.Children(id)...)
	}

	row := s.mat[c*s.m : (c+1)*s.m]
	for _, d := range s.edges {
		var v float64
		switch w.mark[d] {
		case inside:
			v = w.sumOut[d]
		case ancestor:
			v = totalIn - w.sumIn[d]
		default:
			v = w.sumIn[d]
		}
		row[d] = v
		s.mat[d*s.m+c] = v
	}
	s.rhs[c] = rhs
}

// Score returns the weighted sum of squared residuals for the branch
// lengths x indexed by node id.
func (s *System) Score(x []float64) float64 {
	q := 0.0
	for _, e := range s.edges {
		if x[e] == 0 {
			continue
		}
		row := s.mat[e*s.m : (e+1)*s.m]
		q += x[e] * (floats.Dot(row, x) - 2*s.rhs[e])
	}
	return math.Max(0, s.c+q)
}

// gradient stores 2(Mx - r) for the edges into grad, in edge order.
func (s *System) gradient(x []float64, grad []float64) {
	for k, e := range s.edges {
		row := s.mat[e*s.m : (e+1)*s.m]
		grad[k] = 2 * (floats.Dot(row, x) - s.rhs[e])
	}
}
