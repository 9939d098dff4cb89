// Package tree implements the phylogenetic tree model shared by the
// parser, the distance aggregator and the topology optimizer.
//
// Nodes live in an arena and are addressed by integer handles. The
// branch of a node is the edge to its parent, so edges are identified
// by the id of their lower node and the root has no edge. Copying a
// tree is a copy of the node slice.
package tree

import (
	"fmt"
	"strings"
)

// Node is a tree node. Children are kept private, so that only the
// tree itself can rewire the structure.
type Node struct {
	// Name is the node label, leaves always have one.
	Name string
	// Taxon is the taxon index of a leaf, -1 for internal nodes.
	Taxon int
	// Parent is the parent id, -1 for the root and for detached nodes.
	Parent int
	// Length is the length of the branch leading to the parent.
	Length float64
	// HasLength is false if the branch length was not specified.
	HasLength bool
	children  []int
}

// Tree is an arena of nodes with a designated root.
type Tree struct {
	nodes []Node
	root  int
	order []int
	depth []int
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{root: -1}
}

// ClearCache drops the cached traversal order and depths. It has to be
// called after every structural change.
func (t *Tree) ClearCache() {
	t.order = nil
	t.depth = nil
}

// AddNode creates a new node. If parent is negative the node is
// detached; the first detached node becomes the root.
func (t *Tree) AddNode(parent int, name string, taxon int) int {
	id := len(t.nodes)
	t.nodes = append(t.nodes, Node{Name: name, Taxon: taxon, Parent: -1})
	if parent >= 0 {
		t.Attach(id, parent)
	} else if t.root < 0 {
		t.root = id
	}
	t.ClearCache()
	return id
}

// Attach makes child the last child of parent. The child must be
// detached.
func (t *Tree) Attach(child, parent int) {
	if t.nodes[child].Parent >= 0 {
		panic(fmt.Sprintf("node %d is already attached", child))
	}
	t.nodes[child].Parent = parent
	t.nodes[parent].children = append(t.nodes[parent].children, child)
	t.ClearCache()
}

// SetRoot makes a detached node the root.
func (t *Tree) SetRoot(id int) {
	if t.nodes[id].Parent >= 0 {
		panic(fmt.Sprintf("root candidate %d has a parent", id))
	}
	t.root = id
	t.ClearCache()
}

// Root returns the root id.
func (t *Tree) Root() int {
	return t.root
}

// NNodes returns the size of the arena.
func (t *Tree) NNodes() int {
	return len(t.nodes)
}

// Node returns a pointer to the node with the given id.
func (t *Tree) Node(id int) *Node {
	return &t.nodes[id]
}

// Children returns the children of a node. The slice must not be
// modified.
func (t *Tree) Children(id int) []int {
	return t.nodes[id].children
}

// Parent returns the parent id or -1.
func (t *Tree) Parent(id int) int {
	return t.nodes[id].Parent
}

// IsRoot returns true for the root node.
func (t *Tree) IsRoot(id int) bool {
	return id == t.root
}

// IsTerminal returns true for leaves.
func (t *Tree) IsTerminal(id int) bool {
	return len(t.nodes[id].children) == 0
}

// BranchLength returns the length of the branch above the node. A
// branch without a length counts as one.
func (t *Tree) BranchLength(id int) float64 {
	if !t.nodes[id].HasLength {
		return 1
	}
	return t.nodes[id].Length
}

// Copy creates an independent copy of the tree. Children lists of all
// the nodes share one backing array.
func (t *Tree) Copy() *Tree {
	nt := &Tree{
		nodes: make([]Node, len(t.nodes)),
		root:  t.root,
	}
	copy(nt.nodes, t.nodes)
	total := 0
	for i := range t.nodes {
		total += len(t.nodes[i].children)
	}
	buf := make([]int, 0, total)
	for i := range t.nodes {
		start := len(buf)
		buf = append(buf, t.nodes[i].children...)
		nt.nodes[i].children = buf[start:len(buf):len(buf)]
	}
	return nt
}

// Postorder returns node ids reachable from the root, children before
// parents. The result is cached.
func (t *Tree) Postorder() []int {
	if t.order != nil {
		return t.order
	}
	order := make([]int, 0, len(t.nodes))
	if t.root < 0 {
		t.order = order
		return order
	}
	stack := []int{t.root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, id)
		stack = append(stack, t.nodes[id].children...)
	}
	// reversed preorder with children pushed in order is a valid
	// postorder
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	t.order = order
	return order
}

// Preorder returns node ids reachable from the root, parents before
// children, children in their stored order.
func (t *Tree) Preorder() []int {
	order := make([]int, 0, len(t.nodes))
	if t.root < 0 {
		return order
	}
	stack := []int{t.root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, id)
		ch := t.nodes[id].children
		for i := len(ch) - 1; i >= 0; i-- {
			stack = append(stack, ch[i])
		}
	}
	return order
}

// Walker returns a channel with all the nodes passing the filter in
// preorder. A nil filter passes every node.
func (t *Tree) Walker(filter func(id int) bool) <-chan int {
	order := t.Preorder()
	ch := make(chan int, len(order))
	for _, id := range order {
		if filter == nil || filter(id) {
			ch <- id
		}
	}
	close(ch)
	return ch
}

// Terminals returns a channel with all the leaves.
func (t *Tree) Terminals() <-chan int {
	return t.Walker(t.IsTerminal)
}

// Leaves returns leaf ids in preorder.
func (t *Tree) Leaves() (leaves []int) {
	for _, id := range t.Preorder() {
		if t.IsTerminal(id) {
			leaves = append(leaves, id)
		}
	}
	return
}

// NLeaves returns the number of leaves.
func (t *Tree) NLeaves() (n int) {
	for _, id := range t.Postorder() {
		if t.IsTerminal(id) {
			n++
		}
	}
	return
}

// LeafByTaxon returns a slice mapping taxon index to leaf id, -1 if
// the taxon is absent.
func (t *Tree) LeafByTaxon(nTaxa int) []int {
	res := make([]int, nTaxa)
	for i := range res {
		res[i] = -1
	}
	for _, id := range t.Postorder() {
		if tx := t.nodes[id].Taxon; tx >= 0 && tx < nTaxa && t.IsTerminal(id) {
			res[tx] = id
		}
	}
	return res
}

// Renumber replaces the taxon index of every leaf by perm[index].
func (t *Tree) Renumber(perm []int) {
	for id := range t.nodes {
		if tx := t.nodes[id].Taxon; tx >= 0 {
			t.nodes[id].Taxon = perm[tx]
		}
	}
}

// Depths returns the number of edges between every node and the root.
func (t *Tree) Depths() []int {
	if t.depth != nil {
		return t.depth
	}
	depth := make([]int, len(t.nodes))
	for _, id := range t.Preorder() {
		if p := t.nodes[id].Parent; p >= 0 {
			depth[id] = depth[p] + 1
		}
	}
	t.depth = depth
	return depth
}

// Distance returns the path length between two nodes. It walks from
// the deeper node up until the paths meet.
func (t *Tree) Distance(a, b int) (d float64) {
	depth := t.Depths()
	for a != b {
		if depth[a] >= depth[b] {
			d += t.BranchLength(a)
			a = t.nodes[a].Parent
		} else {
			d += t.BranchLength(b)
			b = t.nodes[b].Parent
		}
	}
	return
}

// LeafDistances returns leaves in preorder and the matrix of path
// lengths between them. Every leaf starts a traversal of the whole
// tree.
func (t *Tree) LeafDistances() ([]int, [][]float64) {
	leaves := t.Leaves()
	index := make(map[int]int, len(leaves))
	for i, id := range leaves {
		index[id] = i
	}
	d := make([][]float64, len(leaves))
	dist := make([]float64, len(t.nodes))
	type step struct{ id, from int }
	stack := make([]step, 0, len(t.nodes))
	for i, leaf := range leaves {
		d[i] = make([]float64, len(leaves))
		dist[leaf] = 0
		stack = append(stack[:0], step{leaf, -1})
		for len(stack) > 0 {
			s := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if j, ok := index[s.id]; ok {
				d[i][j] = dist[s.id]
			}
			if p := t.nodes[s.id].Parent; p >= 0 && p != s.from {
				dist[p] = dist[s.id] + t.BranchLength(s.id)
				stack = append(stack, step{p, s.id})
			}
			for _, c := range t.nodes[s.id].children {
				if c != s.from {
					dist[c] = dist[s.id] + t.BranchLength(c)
					stack = append(stack, step{c, s.id})
				}
			}
		}
	}
	return leaves, d
}

// SetLengths assigns branch lengths from a slice indexed by node id.
func (t *Tree) SetLengths(x []float64) {
	for _, id := range t.Postorder() {
		if id == t.root {
			continue
		}
		t.nodes[id].Length = x[id]
		t.nodes[id].HasLength = true
	}
}

// Lengths returns branch lengths indexed by node id, zero for the root.
func (t *Tree) Lengths() []float64 {
	x := make([]float64, len(t.nodes))
	for _, id := range t.Postorder() {
		if id != t.root {
			x[id] = t.nodes[id].Length
		}
	}
	return x
}

// String returns the tree in Newick format with branch lengths printed
// with six decimal digits.
func (t *Tree) String() string {
	var b strings.Builder
	if t.root >= 0 {
		t.writeNewick(&b, t.root, true)
	}
	b.WriteByte(';')
	return b.String()
}

// Topology returns the tree in Newick format without branch lengths.
func (t *Tree) Topology() string {
	var b strings.Builder
	if t.root >= 0 {
		t.writeNewick(&b, t.root, false)
	}
	b.WriteByte(';')
	return b.String()
}

func (t *Tree) writeNewick(b *strings.Builder, id int, lengths bool) {
	node := &t.nodes[id]
	if len(node.children) > 0 {
		b.WriteByte('(')
		for i, c := range node.children {
			if i != 0 {
				b.WriteByte(',')
			}
			t.writeNewick(b, c, lengths)
		}
		b.WriteByte(')')
	}
	b.WriteString(quoteLabel(node.Name))
	if lengths && node.HasLength {
		fmt.Fprintf(b, ":%0.6f", node.Length)
	}
}

// BrString returns the tree topology with every node labelled by its
// id.
func (t *Tree) BrString() string {
	var b strings.Builder
	var rec func(id int)
	rec = func(id int) {
		node := &t.nodes[id]
		if len(node.children) > 0 {
			b.WriteByte('(')
			for i, c := range node.children {
				if i != 0 {
					b.WriteByte(',')
				}
				rec(c)
			}
			b.WriteByte(')')
		} else {
			b.WriteString(quoteLabel(node.Name))
		}
		fmt.Fprintf(&b, "#br%d", id)
	}
	if t.root >= 0 {
		rec(t.root)
	}
	b.WriteByte(';')
	return b.String()
}

// LongString returns a one line description of a node.
func (t *Tree) LongString(id int) (s string) {
	node := &t.nodes[id]
	s = "<"
	if node.Parent < 0 {
		s += "root, "
	}
	if node.Name != "" {
		s += "name=" + node.Name + ", "
	}
	s += fmt.Sprintf("Id=%v, BranchLength=%v", id, node.Length)
	if t.IsTerminal(id) {
		s += fmt.Sprintf(", Taxon=%v", node.Taxon)
	}
	s += ">"
	return
}

// FullString returns an indented description of all the nodes.
func (t *Tree) FullString() string {
	var b strings.Builder
	depth := t.Depths()
	for _, id := range t.Preorder() {
		b.WriteString(strings.Repeat("    ", depth[id]))
		b.WriteString(t.LongString(id))
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}
