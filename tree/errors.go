package tree

import "fmt"

// FormatError is returned for malformed Newick input.
type FormatError struct {
	// Offset is the byte offset of the offending token.
	Offset int
	Msg    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("newick format error at offset %d: %s", e.Offset, e.Msg)
}

// UnknownTaxonError is returned when a leaf label is missing from a
// fixed taxon universe.
type UnknownTaxonError struct {
	Name string
}

func (e *UnknownTaxonError) Error() string {
	return fmt.Sprintf("unknown taxon %q", e.Name)
}

// DisconnectedInputError is returned when the input holds more than a
// single connected tree.
type DisconnectedInputError struct {
	Offset int
	Msg    string
}

func (e *DisconnectedInputError) Error() string {
	return fmt.Sprintf("disconnected tree at offset %d: %s", e.Offset, e.Msg)
}
