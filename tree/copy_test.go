package tree

import (
	"bytes"
	"testing"
)

const (
	tree1 = "((((a001:0.242690,a002:0.268555)n1:0.073424,a003:0.252510):0.198740,((((((a004:0.001000,a005:0.014869):0.045007,a006:0.050606):0.056908,a007:0.166439):0.023217,a008:0.094788):0.429852,a009:0.558116):0.130317,(a010:0.009332,a011:0.024271):0.315124):0.217376):0.464470,a012:0.144369):0.0;"
)

func TestCopy1(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(tree1), nil)
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	t1 := t.Copy()
	t2 := t1.Copy()

	if t.NNodes() != t1.NNodes() || t1.NNodes() != t2.NNodes() {
		tst.Error("node number differ between copies")
	}

	for i := 0; i < t.NNodes(); i++ {
		if t.Node(i) == t1.Node(i) || t1.Node(i) == t2.Node(i) {
			tst.Error("node pointers match between trees")
		}
		if t.Node(i).Length != t2.Node(i).Length {
			tst.Error("node length differ")
		}
		if t.Node(i).Name != t2.Node(i).Name {
			tst.Error("node name differ")
		}
		if t.Node(i).Taxon != t2.Node(i).Taxon {
			tst.Error("node taxon differ")
		}
	}
	if t.String() != t2.String() {
		tst.Error("copy prints differently:", t2)
	}
}

func TestCopyIndependent(tst *testing.T) {
	t, err := ParseNewickString("((A,B),C,(D,E));", nil)
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	orig := t.Topology()
	t1 := t.Copy()
	// A and C
	t1.Swap(2, 4)
	t1.Node(6).Length = 5
	if t.Topology() != orig {
		tst.Error("original tree changed:", t.Topology())
	}
	if t.Node(6).Length != 0 {
		tst.Error("original length changed")
	}
	if t1.Topology() != "((C,B),A,(D,E));" {
		tst.Error("unexpected swapped tree:", t1.Topology())
	}
	// a second copy must not share children with the first
	t2 := t1.Copy()
	t2.Swap(3, 6)
	if t1.Topology() != "((C,B),A,(D,E));" {
		tst.Error("copy of copy changed the source:", t1.Topology())
	}
}
