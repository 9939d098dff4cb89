package tree

import "sort"

// Taxa is the taxon universe. It maps leaf labels to dense indices
// which are used for all the array based storage. Once fixed, the
// universe does not grow.
type Taxa struct {
	names []string
	index map[string]int
	fixed bool
}

// NewTaxa creates a universe from the names given, in this order.
// Duplicate names are interned once.
func NewTaxa(names ...string) *Taxa {
	taxa := &Taxa{index: make(map[string]int, len(names))}
	for _, name := range names {
		taxa.Intern(name)
	}
	return taxa
}

// Intern returns the index of a name, adding it to the universe if
// the universe is not fixed.
func (taxa *Taxa) Intern(name string) (int, error) {
	if i, ok := taxa.index[name]; ok {
		return i, nil
	}
	if taxa.fixed {
		return -1, &UnknownTaxonError{Name: name}
	}
	i := len(taxa.names)
	taxa.names = append(taxa.names, name)
	taxa.index[name] = i
	return i, nil
}

// Index looks up a name without modifying the universe.
func (taxa *Taxa) Index(name string) (int, bool) {
	i, ok := taxa.index[name]
	return i, ok
}

// Name returns the name of a taxon.
func (taxa *Taxa) Name(i int) string {
	return taxa.names[i]
}

// Len returns the number of taxa.
func (taxa *Taxa) Len() int {
	return len(taxa.names)
}

// Names returns a copy of all the names in index order.
func (taxa *Taxa) Names() []string {
	return append([]string(nil), taxa.names...)
}

// Fix freezes the universe.
func (taxa *Taxa) Fix() {
	taxa.fixed = true
}

// Fixed returns true if the universe is frozen.
func (taxa *Taxa) Fixed() bool {
	return taxa.fixed
}

// Sort renumbers the taxa in the lexical order of their names and
// returns the map from old to new indices. A fixed universe is left
// as it is and nil is returned.
func (taxa *Taxa) Sort() []int {
	if taxa.fixed {
		return nil
	}
	old := make(map[string]int, len(taxa.names))
	for i, name := range taxa.names {
		old[name] = i
	}
	sort.Strings(taxa.names)
	perm := make([]int, len(taxa.names))
	for i, name := range taxa.names {
		perm[old[name]] = i
		taxa.index[name] = i
	}
	return perm
}
