package tree

import (
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// Clades returns the set of taxa below every node, indexed by node id.
// Nodes not reachable from the root get nil.
func (t *Tree) Clades(nTaxa int) []*bitset.BitSet {
	clades := make([]*bitset.BitSet, len(t.nodes))
	for _, id := range t.Postorder() {
		node := &t.nodes[id]
		if len(node.children) == 0 {
			clades[id] = bitset.New(uint(nTaxa))
			if node.Taxon >= 0 {
				clades[id].Set(uint(node.Taxon))
			}
			continue
		}
		clades[id] = clades[node.children[0]].Clone()
		for _, c := range node.children[1:] {
			clades[id].InPlaceUnion(clades[c])
		}
	}
	return clades
}

// Splits returns the non-trivial bipartitions of the tree. Every split
// is represented by the side without the lowest taxon of the tree.
// The result is sorted and has no duplicates.
func (t *Tree) Splits(nTaxa int) []*bitset.BitSet {
	clades := t.Clades(nTaxa)
	all := bitset.New(uint(nTaxa))
	if t.root >= 0 {
		all = clades[t.root]
	}
	total := all.Count()
	first, _ := all.NextSet(0)
	seen := make(map[string]bool)
	var splits []*bitset.BitSet
	for _, id := range t.Postorder() {
		if id == t.root {
			continue
		}
		c := clades[id]
		n := c.Count()
		if n < 2 || n+2 > total {
			continue
		}
		if c.Test(first) {
			c = all.Difference(c)
		}
		key := c.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		splits = append(splits, c)
	}
	sort.Slice(splits, func(i, j int) bool {
		return splits[i].String() < splits[j].String()
	})
	return splits
}

// RobinsonFoulds returns the number of splits present in only one of
// the two trees.
func RobinsonFoulds(a, b *Tree, nTaxa int) int {
	inA := make(map[string]bool)
	for _, s := range a.Splits(nTaxa) {
		inA[s.String()] = true
	}
	d := 0
	for _, s := range b.Splits(nTaxa) {
		key := s.String()
		if inA[key] {
			delete(inA, key)
		} else {
			d++
		}
	}
	return d + len(inA)
}
