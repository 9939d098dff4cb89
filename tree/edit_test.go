package tree

import (
	"testing"
)

// checkBinary verifies that the root has three children and all the
// other internal nodes have two.
func checkBinary(tst *testing.T, t *Tree) {
	tst.Helper()
	for _, id := range t.Postorder() {
		n := len(t.Children(id))
		switch {
		case id == t.Root() && n != 3:
			tst.Error("root has", n, "children:", t.Topology())
		case id != t.Root() && n != 0 && n != 2:
			tst.Error("node", id, "has", n, "children:", t.Topology())
		}
		for _, c := range t.Children(id) {
			if t.Parent(c) != id {
				tst.Error("broken parent link at", c)
			}
		}
	}
}

func TestPruneRegraft(tst *testing.T) {
	t, err := ParseNewickString("((A:1,B:1):1,C:1,(D:1,E:1):2);", nil)
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	// D
	p := t.Prune(6)
	if p != 5 {
		tst.Error("wrong pruned parent", p)
	}
	if t.Topology() != "((A,B),C,E);" {
		tst.Error("wrong pruned tree", t.Topology())
	}
	if t.Node(7).Length != 3 {
		tst.Error("sibling did not absorb the branch", t.Node(7).Length)
	}
	// above A
	t.Regraft(p, 2)
	if t.Topology() != "(((D,A),B),C,E);" {
		tst.Error("wrong regrafted tree", t.Topology())
	}
	if t.Node(2).Length != 0.5 || t.Node(p).Length != 0.5 {
		tst.Error("branch was not split in half")
	}
	if t.NLeaves() != 5 {
		tst.Error("leaf set changed")
	}
	checkBinary(tst, t)
}

func TestSwapKeepsLeaves(tst *testing.T) {
	t, err := ParseNewickString(tree1, nil)
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	t.Normalize()
	n := t.NLeaves()
	before := t.Clades(n)[t.Root()]
	for _, id := range t.Postorder() {
		p := t.Parent(id)
		if p < 0 || p == t.Root() || t.IsTerminal(id) {
			continue
		}
		sib := t.Children(p)[0]
		if sib == id {
			sib = t.Children(p)[1]
		}
		t1 := t.Copy()
		t1.Swap(t1.Children(id)[0], sib)
		if !t1.Clades(n)[t1.Root()].Equal(before) {
			tst.Error("leaf set changed")
		}
		if RobinsonFoulds(t, t1, n) != 2 {
			tst.Error("nni should change exactly one split")
		}
		checkBinary(tst, t1)
	}
}

func TestNormalize(tst *testing.T) {
	data := []struct{ in, out string }{
		{"(((A,B),C),(D,E));", "((A,B),C,(D,E));"},
		{"(A,B,C,D,E);", "(A,B,(C,(D,E)));"},
		{"((A,B),(C));", "(A,B,C);"},
		{"((((A,B)),C,D),E);", "((A,B),C,(D,E));"},
	}
	for _, d := range data {
		t, err := ParseNewickString(d.in, nil)
		if err != nil {
			tst.Error("Error parsing tree", err)
			continue
		}
		t.Normalize()
		if t.Topology() != d.out {
			tst.Error("expected", d.out, "got", t.Topology())
		}
		if t.NNodes() != 2*t.NLeaves()-2 {
			tst.Error("arena was not compacted:", t.NNodes())
		}
		if t.Root() != 0 {
			tst.Error("root is not the first node")
		}
		checkBinary(tst, t)
	}
}

func TestUnrootLengths(tst *testing.T) {
	t, err := ParseNewickString("((A:1,B:1):2,(C:1,D:1):3);", nil)
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	t.Normalize()
	if t.String() != "(A:1.000000,B:1.000000,(C:1.000000,D:1.000000):5.000000);" {
		tst.Error("wrong unrooted tree", t)
	}
}

func TestSplits(tst *testing.T) {
	taxa := NewTaxa()
	t1, _ := ParseNewickString("((A,B),C,(D,E));", taxa)
	t2, _ := ParseNewickString("((A,C),B,(D,E));", taxa)
	t3, _ := ParseNewickString("(((A,B),C),(D,E));", taxa)
	n := taxa.Len()
	s := t1.Splits(n)
	if len(s) != 2 {
		tst.Fatal("wrong number of splits", s)
	}
	if RobinsonFoulds(t1, t2, n) != 2 {
		tst.Error("wrong RF distance", RobinsonFoulds(t1, t2, n))
	}
	if RobinsonFoulds(t1, t3, n) != 0 {
		tst.Error("rooting changed the splits")
	}
	for _, split := range s {
		if split.Test(0) {
			tst.Error("split contains the first taxon", split)
		}
	}
}
