package lsq

import (
	"math"

	"github.com/gonum/matrix/mat64"
)

// relative size of the ridge term added to singular systems
const ridgeScale = 1e-9

// Fit is a branch length assignment together with its residual.
type Fit struct {
	// Lengths are indexed by node id, the root entry is zero.
	Lengths []float64
	Score   float64
	// Clamped is the number of branches fixed at zero length.
	Clamped int
}

// Solve finds non-negative branch lengths. Branches with a negative
// solution are fixed at zero and the rest are refit until all the
// lengths are non-negative.
func (s *System) Solve() Fit {
	x := make([]float64, s.m)
	active := append([]int(nil), s.edges...)
	for len(active) > 0 {
		k := len(active)
		a := mat64.NewSymDense(k, nil)
		b := mat64.NewVector(k, nil)
		for i, e := range active {
			b.SetVec(i, s.rhs[e])
			row := s.mat[e*s.m : (e+1)*s.m]
			for j := i; j < k; j++ {
				a.SetSym(i, j, row[active[j]])
			}
		}
		sol := solveSym(a, b)
		next := make([]int, 0, k)
		for i, e := range active {
			if v := sol[i]; v > 0 {
				x[e] = v
				next = append(next, e)
			} else {
				x[e] = 0
			}
		}
		if len(next) == len(active) {
			break
		}
		active = next
	}
	return Fit{
		Lengths: x,
		Score:   s.Score(x),
		Clamped: len(s.edges) - countPositive(x),
	}
}

func countPositive(x []float64) (n int) {
	for _, v := range x {
		if v > 0 {
			n++
		}
	}
	return
}

func finite(v *mat64.Vector) bool {
	for i := 0; i < v.Len(); i++ {
		if f := v.At(i, 0); math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

func values(v *mat64.Vector) []float64 {
	res := make([]float64, v.Len())
	for i := range res {
		res[i] = v.At(i, 0)
	}
	return res
}

// solveSym solves a positive semi-definite system. A singular matrix
// gets a small ridge term, so that unconstrained branches get zero
// length.
func solveSym(a *mat64.SymDense, b *mat64.Vector) []float64 {
	k := a.Symmetric()
	var chol mat64.Cholesky
	var x mat64.Vector
	if chol.Factorize(a) {
		if err := x.SolveCholeskyVec(&chol, b); err == nil && finite(&x) {
			return values(&x)
		}
	}

	maxDiag := 0.0
	for i := 0; i < k; i++ {
		maxDiag = math.Max(maxDiag, a.At(i, i))
	}
	ridge := ridgeScale * (1 + maxDiag)
	for i := 0; i < k; i++ {
		a.SetSym(i, i, a.At(i, i)+ridge)
	}
	if chol.Factorize(a) {
		if err := x.SolveCholeskyVec(&chol, b); err == nil && finite(&x) {
			return values(&x)
		}
	}

	err := x.SolveVec(a, b)
	if err != nil {
		log.Debugf("Ill-conditioned system of size %d: %v", k, err)
	}
	if x.Len() != k || !finite(&x) {
		log.Warningf("Cannot solve system of size %d, using zero lengths", k)
		return make([]float64, k)
	}
	return values(&x)
}
