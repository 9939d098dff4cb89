package optimize

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/minsq/distance"
	"bitbucket.org/Davydov/minsq/problem"
	"bitbucket.org/Davydov/minsq/tree"
)

const (
	sixTree   = "((A:1,B:1):1,(C:1,(D:1,E:2):0.5):1,F:3);"
	eightTree = "(((A:1,B:2):0.5,(C:1,D:0.7):0.4):0.3,((E:1.2,F:0.4):0.6,(G:0.9,H:1.1):0.2):0.3);"
)

func init() {
	logging.SetLevel(logging.WARNING, "optimize")
	logging.SetLevel(logging.WARNING, "lsq")
	logging.SetLevel(logging.WARNING, "distance")
	logging.SetLevel(logging.WARNING, "problem")
	logging.SetLevel(logging.WARNING, "checkpoint")
}

func setup(tst *testing.T, prob string) (*problem.Problem, *distance.Table) {
	tst.Helper()
	p, err := problem.Read(strings.NewReader(prob))
	if err != nil {
		tst.Fatal("Error reading problem:", err)
	}
	tab, err := distance.Aggregate(p, distance.Options{})
	if err != nil {
		tst.Fatal("Error aggregating:", err)
	}
	return p, tab
}

func parse(tst *testing.T, s string, taxa *tree.Taxa) *tree.Tree {
	tst.Helper()
	t, err := tree.ParseNewickString(s, taxa)
	if err != nil {
		tst.Fatal("Error parsing tree:", err)
	}
	t.Normalize()
	return t
}

// checkNormal checks that the tree is binary with a trifurcating root
// and has all the taxa.
func checkNormal(tst *testing.T, t *tree.Tree, n int) {
	tst.Helper()
	for _, id := range t.Postorder() {
		nc := len(t.Children(id))
		switch {
		case id == t.Root() && nc != 3:
			tst.Error("root has", nc, "children:", t)
		case id != t.Root() && nc != 0 && nc != 2:
			tst.Error("node", id, "has", nc, "children:", t)
		}
	}
	for tx, id := range t.LeafByTaxon(n) {
		if id < 0 {
			tst.Error("taxon", tx, "is lost:", t)
		}
	}
	if t.NLeaves() != n {
		tst.Error("wrong number of leaves", t.NLeaves())
	}
}

func TestNNIMoves(tst *testing.T) {
	p, tab := setup(tst, "6 1\n1 "+sixTree+"\n")
	t := parse(tst, sixTree, p.Taxa)
	moves := NNIMoves(t)
	if len(moves) != 2*(6-3) {
		tst.Fatal("expected 6 interchanges, got", len(moves))
	}
	seen := make(map[string]bool)
	for _, mv := range moves {
		nt := t.Copy()
		mv.apply(nt)
		checkNormal(tst, nt, tab.Len())
		if d := tree.RobinsonFoulds(t, nt, tab.Len()); d != 2 {
			tst.Error("interchange", mv, "changed", d, "splits")
		}
		seen[nt.Canonical()] = true
	}
	if len(seen) != len(moves) {
		tst.Error("duplicate interchanges, distinct trees:", len(seen))
	}
}

func TestSPRMoves(tst *testing.T) {
	p, tab := setup(tst, "8 1\n1 "+eightTree+"\n")
	t := parse(tst, eightTree, p.Taxa)
	near := SPRMoves(t, 1, 1)
	if len(near) == 0 {
		tst.Fatal("no moves within radius one")
	}
	for _, mv := range near {
		nt := t.Copy()
		mv.apply(nt)
		checkNormal(tst, nt, tab.Len())
		if d := tree.RobinsonFoulds(t, nt, tab.Len()); d != 2 {
			tst.Error("regraft", mv, "at distance one is not an interchange, rf =", d)
		}
	}
	far := SPRMoves(t, 4, 2)
	if len(far) == 0 {
		tst.Fatal("no moves within radius four")
	}
	for _, mv := range far {
		nt := t.Copy()
		mv.apply(nt)
		checkNormal(tst, nt, tab.Len())
		if d := tree.RobinsonFoulds(t, nt, tab.Len()); d < 4 {
			tst.Error("regraft", mv, "is too close, rf =", d)
		}
	}
	if len(SPRMoves(t, 4, 1)) <= len(far) {
		tst.Error("radius does not include the nearest regrafts")
	}
}

func TestIncrementalState(tst *testing.T) {
	prob := "8 2\n" +
		"1 " + eightTree + "\n" +
		"0.5 ((A:1,E:1):1,(C:1,G:1):1,(B:1,(D:1,(F:1,H:1):1):1):1);\n"
	p, tab := setup(tst, prob)
	t := parse(tst, "(((A,C),(B,D)),((E,G),(F,H)));", p.Taxa)
	st := NewState(t, tab)
	moves := append(NNIMoves(t), SPRMoves(t, 3, 2)...)
	for _, mv := range moves {
		ns := st.Copy()
		ns.apply(mv, tab)
		fresh := NewState(ns.Tree.Copy(), tab)
		if math.Abs(ns.Score()-fresh.Score()) > 1e-9*(1+fresh.Score()) {
			tst.Error("incremental score differs after", mv, ns.Score(), fresh.Score())
		}
		for id, c := range fresh.clades {
			if c != nil && !c.Equal(ns.clades[id]) {
				tst.Error("stale clade of node", id, "after", mv)
			}
		}
	}
	// the original state is untouched
	if again := NewState(t.Copy(), tab); again.Score() != st.Score() {
		tst.Error("moves modified the original state")
	}
}

func TestPerturb(tst *testing.T) {
	p, tab := setup(tst, "8 1\n1 "+eightTree+"\n")
	t := parse(tst, eightTree, p.Taxa)
	a, b := t.Copy(), t.Copy()
	perturb(a, 5, rand.New(rand.NewSource(3)))
	perturb(b, 5, rand.New(rand.NewSource(3)))
	checkNormal(tst, a, tab.Len())
	if a.String() != b.String() {
		tst.Error("perturbation is not reproducible:", a, b)
	}
	if t.String() != parse(tst, eightTree, p.Taxa).String() {
		tst.Error("perturbation modified the original tree")
	}
}

func TestNeighborJoining(tst *testing.T) {
	p, tab := setup(tst, "8 1\n1 "+eightTree+"\n")
	nj := NeighborJoining(tab.Completed(), p.Taxa)
	checkNormal(tst, nj, tab.Len())
	if d := tree.RobinsonFoulds(nj, parse(tst, eightTree, p.Taxa), tab.Len()); d != 0 {
		tst.Error("neighbor joining missed the additive tree, rf =", d, nj)
	}
	for _, id := range nj.Postorder() {
		if id != nj.Root() && nj.Node(id).Length < 0 {
			tst.Error("negative length", nj.LongString(id))
		}
	}
	if again := NeighborJoining(tab.Completed(), p.Taxa); again.String() != nj.String() {
		tst.Error("neighbor joining is not deterministic")
	}
}
