package lsq

import (
	"math"
	"strings"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/op/go-logging"

	"bitbucket.org/Davydov/minsq/distance"
	"bitbucket.org/Davydov/minsq/problem"
	"bitbucket.org/Davydov/minsq/tree"
)

const (
	trueTree = "((A:1,B:2):0.5,C:1.5,(D:0.7,E:0.3):0.9);"
	sixTree  = "((A:1,B:1):1,(C:1,(D:1,E:2):0.5):1,F:3);"
)

func init() {
	logging.SetLevel(logging.WARNING, "lsq")
	logging.SetLevel(logging.WARNING, "distance")
	logging.SetLevel(logging.WARNING, "problem")
}

func setup(tst *testing.T, prob, start string) (*tree.Tree, *distance.Table) {
	tst.Helper()
	p, err := problem.Read(strings.NewReader(prob))
	if err != nil {
		tst.Fatal("Error reading problem:", err)
	}
	tab, err := distance.Aggregate(p, distance.Options{})
	if err != nil {
		tst.Fatal("Error aggregating:", err)
	}
	t, err := tree.ParseNewickString(start, p.Taxa)
	if err != nil {
		tst.Fatal("Error parsing tree:", err)
	}
	t.Normalize()
	return t, tab
}

// directScore computes the residual from the leaf distances.
func directScore(t *tree.Tree, tab *distance.Table) (sse float64) {
	leaves, d := t.LeafDistances()
	for i := range leaves {
		a := t.Node(leaves[i]).Taxon
		for j := i + 1; j < len(leaves); j++ {
			b := t.Node(leaves[j]).Taxon
			if w := tab.Weight(a, b); w > 0 {
				r := tab.Target(a, b) - d[i][j]
				sse += w * r * r
			}
		}
	}
	return
}

func changedClades(before, after []*bitset.BitSet) (changed []int) {
	for id := range after {
		if after[id] == nil {
			continue
		}
		if before[id] == nil || !before[id].Equal(after[id]) {
			changed = append(changed, id)
		}
	}
	return
}

func sameSystem(tst *testing.T, a, b *System) {
	tst.Helper()
	for _, e := range a.Edges() {
		if math.Abs(a.Rhs(e)-b.Rhs(e)) > 1e-9 {
			tst.Error("rhs differ at", e, a.Rhs(e), b.Rhs(e))
		}
		for _, f := range a.Edges() {
			if math.Abs(a.At(e, f)-b.At(e, f)) > 1e-9 {
				tst.Error("matrix differ at", e, f, a.At(e, f), b.At(e, f))
			}
		}
	}
}

func TestExactFit(tst *testing.T) {
	t, tab := setup(tst, "5 1\n1 "+trueTree+"\n", trueTree)
	s := New(t, tab)
	fit := s.Solve()
	if fit.Score > 1e-9 {
		tst.Error("non-zero score for the true tree:", fit.Score)
	}
	for _, e := range s.Edges() {
		if math.Abs(fit.Lengths[e]-t.Node(e).Length) > 1e-6 {
			tst.Error("wrong length", t.LongString(e), fit.Lengths[e])
		}
	}
	if fit.Clamped != 0 {
		tst.Error("unexpected clamped branches", fit.Clamped)
	}
}

func TestScoreMatchesResidual(tst *testing.T) {
	prob := "6 3\n" +
		"1 " + sixTree + "\n" +
		"0.5 ((A:2,C:1):1,(B:1,E:1):1,D:0.5);\n" +
		"2 (A:1,F:2,(B:0.5,D:1):0.3);\n"
	t, tab := setup(tst, prob, "((A,C),(B,(D,E)),F);")
	s := New(t, tab)
	fit := s.Solve()
	t.SetLengths(fit.Lengths)
	direct := directScore(t, tab)
	if math.Abs(direct-fit.Score) > 1e-9*(1+direct) {
		tst.Error("score mismatch", direct, fit.Score)
	}
	again := s.Solve()
	if again.Score != fit.Score {
		tst.Error("scoring is not idempotent", again.Score, fit.Score)
	}
	for _, e := range s.Edges() {
		if fit.Lengths[e] < 0 {
			tst.Error("negative length", e, fit.Lengths[e])
		}
	}
}

func TestIncrementalNNI(tst *testing.T) {
	prob := "6 2\n" +
		"1 " + sixTree + "\n" +
		"0.7 ((A:2,E:1):1,(C:1,F:1):1,B:0.5);\n"
	t, tab := setup(tst, prob, sixTree)
	s := New(t, tab)
	n := tab.Len()
	before := t.Clades(n)
	for _, c := range t.Postorder() {
		p := t.Parent(c)
		if p < 0 || p == t.Root() || t.IsTerminal(c) {
			continue
		}
		sib := t.Children(p)[0]
		if sib == c {
			sib = t.Children(p)[1]
		}
		for _, a := range t.Children(c) {
			nt := t.Copy()
			nt.Swap(a, sib)
			after := nt.Clades(n)
			changed := changedClades(before, after)
			if len(changed) != 1 || changed[0] != c {
				tst.Error("nni should change only the swapped edge, got", changed)
			}
			ns := s.Copy()
			ns.Update(nt, after, tab, changed)
			sameSystem(tst, ns, New(nt, tab))
		}
	}
}

func TestIncrementalSPR(tst *testing.T) {
	prob := "6 2\n" +
		"1 " + sixTree + "\n" +
		"0.7 ((A:2,E:1):1,(C:1,F:1):1,B:0.5);\n"
	t, tab := setup(tst, prob, sixTree)
	s := New(t, tab)
	n := tab.Len()
	before := t.Clades(n)
	moves := 0
	for _, sub := range t.Postorder() {
		p := t.Parent(sub)
		if p < 0 || p == t.Root() {
			continue
		}
		for _, target := range t.Postorder() {
			nt := t.Copy()
			pruned := nt.Prune(sub)
			if target == nt.Root() || target == pruned || nt.IsAncestor(sub, target) ||
				nt.Parent(target) < 0 {
				continue
			}
			nt.Regraft(pruned, target)
			after := nt.Clades(n)
			ns := s.Copy()
			ns.Update(nt, after, tab, changedClades(before, after))
			sameSystem(tst, ns, New(nt, tab))
			if math.Abs(ns.Solve().Score-New(nt, tab).Solve().Score) > 1e-9 {
				tst.Error("scores differ after spr")
			}
			moves++
		}
	}
	if moves == 0 {
		tst.Error("no spr moves tested")
	}
}

func TestClamping(tst *testing.T) {
	t, tab := setup(tst, "4 1\n1 ((A:1,C:1):1,(B:1,D:1):1);\n", "((A,B),C,D);")
	s := New(t, tab)
	fit := s.Solve()
	if fit.Clamped == 0 {
		tst.Error("expected a clamped branch")
	}
	for _, e := range s.Edges() {
		if fit.Lengths[e] < 0 {
			tst.Error("negative length", e, fit.Lengths[e])
		}
	}
	if fit.Score <= 0 {
		tst.Error("conflicting topology has zero score")
	}
	t.SetLengths(fit.Lengths)
	if math.Abs(directScore(t, tab)-fit.Score) > 1e-9 {
		tst.Error("score mismatch", directScore(t, tab), fit.Score)
	}
}

func TestUnconstrainedBranches(tst *testing.T) {
	// D and E never appear together with the other taxa
	prob := "5 2\n1 (A:1,B:2,C:3);\n1 (D:1,E:1,A:1);\n"
	t, tab := setup(tst, prob, "((A,B),C,(D,E));")
	fit := New(t, tab).Solve()
	for i, v := range fit.Lengths {
		if math.IsNaN(v) || v < 0 {
			tst.Error("bad length", i, v)
		}
	}
	if fit.Score > 1e-6 {
		tst.Error("compatible data has a positive score", fit.Score)
	}
}

func TestRefine(tst *testing.T) {
	t, tab := setup(tst, "4 1\n1 ((A:1,C:1):1,(B:1,D:1):1);\n", "((A,B),C,D);")
	s := New(t, tab)
	fit := s.Solve()
	start := Fit{Lengths: make([]float64, len(fit.Lengths))}
	for _, e := range s.Edges() {
		start.Lengths[e] = 1
	}
	start.Score = s.Score(start.Lengths)
	ref := s.Refine(start)
	if ref.Score > start.Score {
		tst.Error("refinement increased the score", ref.Score, start.Score)
	}
	if ref.Score < fit.Score-1e-6 {
		tst.Error("refinement below the constrained optimum", ref.Score, fit.Score)
	}
	for _, e := range s.Edges() {
		if ref.Lengths[e] < 0 {
			tst.Error("negative length after refinement")
		}
	}
}

func TestChiSquareTail(tst *testing.T) {
	if v := ChiSquareTail(0, 3); math.Abs(v-1) > 1e-12 {
		tst.Error("wrong tail at zero", v)
	}
	// two degrees of freedom is an exponential distribution
	if v := ChiSquareTail(2, 2); math.Abs(v-math.Exp(-1)) > 1e-9 {
		tst.Error("wrong tail", v)
	}
	if !math.IsNaN(ChiSquareTail(1, 0)) {
		tst.Error("expected NaN for zero degrees of freedom")
	}
	if DegreesOfFreedom(10, 7) != 3 {
		tst.Error("wrong degrees of freedom")
	}
}
