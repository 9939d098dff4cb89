package lsq

import (
	"math"

	"github.com/gonum/mathext"
	lbfgsb "github.com/idavydov/go-lbfgsb"
)

// objective adapts the residual to the L-BFGS-B interface. The
// optimizer works on the edge lengths only, in edge order.
type objective struct {
	s     *System
	x     []float64
	grad  []float64
	calls int
}

func (o *objective) expand(v []float64) []float64 {
	for k, e := range o.s.edges {
		o.x[e] = v[k]
	}
	return o.x
}

func (o *objective) EvaluateFunction(v []float64) float64 {
	o.calls++
	return o.s.Score(o.expand(v))
}

func (o *objective) EvaluateGradient(v []float64) []float64 {
	if o.grad == nil {
		o.grad = make([]float64, len(v))
	}
	o.s.gradient(o.expand(v), o.grad)
	return o.grad
}

// Refine polishes a fit with bounded L-BFGS-B, lengths are kept in
// [0, +Inf). The better of the two fits is returned.
func (s *System) Refine(fit Fit) Fit {
	if len(s.edges) == 0 {
		return fit
	}
	obj := &objective{s: s, x: make([]float64, s.m)}
	x0 := make([]float64, len(s.edges))
	bounds := make([][2]float64, len(s.edges))
	for k, e := range s.edges {
		x0[k] = fit.Lengths[e]
		bounds[k] = [2]float64{0, math.Inf(1)}
	}

	opt := new(lbfgsb.Lbfgsb)
	opt.SetApproximationSize(10)
	opt.SetFTolerance(1e-12)
	opt.SetGTolerance(1e-9)
	opt.SetBounds(bounds)

	res, exitStatus := opt.Minimize(obj, x0)
	log.Debugf("L-BFGS-B finished after %d calls: %v", obj.calls, exitStatus)

	x := make([]float64, s.m)
	for k, e := range s.edges {
		x[e] = math.Max(0, res.X[k])
	}
	score := s.Score(x)
	if score >= fit.Score {
		return fit
	}
	return Fit{
		Lengths: x,
		Score:   score,
		Clamped: len(s.edges) - countPositive(x),
	}
}

// DegreesOfFreedom returns the number of covered pairs minus the number
// of branches.
func DegreesOfFreedom(covered, edges int) int {
	return covered - edges
}

// ChiSquareTail returns the probability of a residual at least as large
// as score under a chi-square distribution with df degrees of freedom.
// It is only meaningful for inverse variance weights. NaN is returned
// for non-positive df.
func ChiSquareTail(score float64, df int) float64 {
	if df <= 0 {
		return math.NaN()
	}
	return 1 - mathext.GammaInc(float64(df)/2, score/2)
}
