package tree

import (
	"bufio"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokOpen
	tokClose
	tokComma
	tokColon
	tokSemicolon
	tokLabel
)

type token struct {
	kind   tokenKind
	text   string
	offset int
}

// IsSpecial returns true for runes which terminate an unquoted label.
func IsSpecial(c rune) bool {
	switch c {
	case '(', ')', ':', ';', ',', '[', '\'':
		return true
	}
	return false
}

type lexer struct {
	rd      *bufio.Reader
	offset  int
	pending *token
}

func (lx *lexer) readRune() (rune, bool) {
	r, size, err := lx.rd.ReadRune()
	if err != nil {
		return 0, false
	}
	lx.offset += size
	return r, true
}

func (lx *lexer) unreadRune(r rune) {
	lx.rd.UnreadRune()
	lx.offset -= utf8.RuneLen(r)
}

func (lx *lexer) peek() (token, error) {
	if lx.pending == nil {
		tok, err := lx.scan()
		if err != nil {
			return tok, err
		}
		lx.pending = &tok
	}
	return *lx.pending, nil
}

func (lx *lexer) next() (token, error) {
	if lx.pending != nil {
		tok := *lx.pending
		lx.pending = nil
		return tok, nil
	}
	return lx.scan()
}

func (lx *lexer) scan() (token, error) {
	var r rune
	var ok bool
	// skip spaces and comments
	for {
		r, ok = lx.readRune()
		if !ok {
			return token{kind: tokEOF, offset: lx.offset}, nil
		}
		if r == '[' {
			start := lx.offset - 1
			for r != ']' {
				if r, ok = lx.readRune(); !ok {
					return token{}, &FormatError{start, "unterminated comment"}
				}
			}
			continue
		}
		if !unicode.IsSpace(r) {
			break
		}
	}
	start := lx.offset - utf8.RuneLen(r)
	switch r {
	case '(':
		return token{tokOpen, "(", start}, nil
	case ')':
		return token{tokClose, ")", start}, nil
	case ',':
		return token{tokComma, ",", start}, nil
	case ':':
		return token{tokColon, ":", start}, nil
	case ';':
		return token{tokSemicolon, ";", start}, nil
	case '\'':
		var b strings.Builder
		for {
			if r, ok = lx.readRune(); !ok {
				return token{}, &FormatError{start, "unterminated quoted label"}
			}
			if r == '\'' {
				// doubled quote is an escaped quote
				if r2, ok := lx.readRune(); ok {
					if r2 == '\'' {
						b.WriteRune('\'')
						continue
					}
					lx.unreadRune(r2)
				}
				return token{tokLabel, b.String(), start}, nil
			}
			b.WriteRune(r)
		}
	}
	var b strings.Builder
	b.WriteRune(r)
	for {
		if r, ok = lx.readRune(); !ok {
			break
		}
		if unicode.IsSpace(r) || IsSpecial(r) {
			lx.unreadRune(r)
			break
		}
		b.WriteRune(r)
	}
	return token{tokLabel, b.String(), start}, nil
}

type parser struct {
	lx      *lexer
	t       *Tree
	leaves  []int
	offsets []int
}

// ParseNewickString parses a tree from a string.
func ParseNewickString(s string, taxa *Taxa) (*Tree, error) {
	return ParseNewick(strings.NewReader(s), taxa)
}

// ParseNewick reads exactly one tree terminated by a semicolon. Leaf
// labels are interned in taxa; if taxa is nil, a new universe is
// created for the tree.
func ParseNewick(rd io.Reader, taxa *Taxa) (*Tree, error) {
	p := &parser{
		lx: &lexer{rd: bufio.NewReader(rd)},
		t:  New(),
	}
	tok, err := p.lx.next()
	if err != nil {
		return nil, err
	}
	if tok.kind == tokEOF {
		return nil, &FormatError{tok.offset, "empty input"}
	}
	root, err := p.subtree(tok, -1)
	if err != nil {
		return nil, err
	}
	if tok, err = p.lx.next(); err != nil {
		return nil, err
	}
	if tok.kind == tokColon {
		if err = p.length(root); err != nil {
			return nil, err
		}
		if tok, err = p.lx.next(); err != nil {
			return nil, err
		}
	}
	switch tok.kind {
	case tokSemicolon:
	case tokComma:
		return nil, &DisconnectedInputError{tok.offset, "top level comma"}
	case tokClose:
		return nil, &FormatError{tok.offset, "brackets mismatch, unexpected ')'"}
	case tokEOF:
		return nil, &FormatError{tok.offset, "missing ';'"}
	default:
		return nil, &FormatError{tok.offset, "unexpected " + strconv.Quote(tok.text)}
	}
	if tok, err = p.lx.next(); err != nil {
		return nil, err
	}
	if tok.kind != tokEOF {
		return nil, &DisconnectedInputError{tok.offset, "data after ';'"}
	}
	if taxa == nil {
		taxa = NewTaxa()
	}
	if err = p.intern(taxa); err != nil {
		return nil, err
	}
	return p.t, nil
}

func (p *parser) subtree(tok token, parent int) (int, error) {
	switch tok.kind {
	case tokLabel:
		if tok.text == "" {
			return -1, &FormatError{tok.offset, "empty leaf label"}
		}
		id := p.t.AddNode(parent, tok.text, -1)
		p.leaves = append(p.leaves, id)
		p.offsets = append(p.offsets, tok.offset)
		return id, nil
	case tokOpen:
	case tokEOF:
		return -1, &FormatError{tok.offset, "brackets mismatch, missing ')'"}
	case tokSemicolon:
		if parent >= 0 {
			return -1, &FormatError{tok.offset, "brackets mismatch, missing ')'"}
		}
		return -1, &FormatError{tok.offset, "empty tree"}
	default:
		return -1, &FormatError{tok.offset, "empty leaf label"}
	}
	id := p.t.AddNode(parent, "", -1)
	for {
		tok, err := p.lx.next()
		if err != nil {
			return -1, err
		}
		child, err := p.subtree(tok, id)
		if err != nil {
			return -1, err
		}
		if tok, err = p.lx.next(); err != nil {
			return -1, err
		}
		if tok.kind == tokColon {
			if err = p.length(child); err != nil {
				return -1, err
			}
			if tok, err = p.lx.next(); err != nil {
				return -1, err
			}
		}
		switch tok.kind {
		case tokComma:
			continue
		case tokClose:
		case tokEOF, tokSemicolon:
			return -1, &FormatError{tok.offset, "brackets mismatch, missing ')'"}
		default:
			return -1, &FormatError{tok.offset, "unexpected " + strconv.Quote(tok.text)}
		}
		break
	}
	tok, err := p.lx.peek()
	if err != nil {
		return -1, err
	}
	if tok.kind == tokLabel {
		p.lx.next()
		p.t.Node(id).Name = tok.text
	}
	return id, nil
}

func (p *parser) length(id int) error {
	tok, err := p.lx.next()
	if err != nil {
		return err
	}
	if tok.kind != tokLabel {
		return &FormatError{tok.offset, "missing branch length after ':'"}
	}
	l, err := strconv.ParseFloat(tok.text, 64)
	if err != nil || math.IsNaN(l) || math.IsInf(l, 0) {
		return &FormatError{tok.offset, "bad branch length " + strconv.Quote(tok.text)}
	}
	if l < 0 {
		return &FormatError{tok.offset, "negative branch length " + tok.text}
	}
	node := p.t.Node(id)
	node.Length = l
	node.HasLength = true
	return nil
}

func (p *parser) intern(taxa *Taxa) error {
	seen := make(map[string]bool, len(p.leaves))
	for i, id := range p.leaves {
		name := p.t.Node(id).Name
		if seen[name] {
			return &FormatError{p.offsets[i], "duplicate taxon label " + strconv.Quote(name)}
		}
		seen[name] = true
	}
	for _, id := range p.leaves {
		tx, err := taxa.Intern(p.t.Node(id).Name)
		if err != nil {
			return err
		}
		p.t.Node(id).Taxon = tx
	}
	return nil
}

func quoteLabel(name string) string {
	if name == "" {
		return ""
	}
	if strings.IndexFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || IsSpecial(r)
	}) < 0 {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// Canonical returns a string which does not depend on the order of
// children. Trees differing only by the child order give the same
// string. Lengths are printed exactly.
func (t *Tree) Canonical() string {
	if t.root < 0 {
		return ";"
	}
	return t.canonical(t.root) + ";"
}

func (t *Tree) canonical(id int) string {
	node := &t.nodes[id]
	s := ""
	if len(node.children) > 0 {
		parts := make([]string, len(node.children))
		for i, c := range node.children {
			parts[i] = t.canonical(c)
		}
		sort.Strings(parts)
		s = "(" + strings.Join(parts, ",") + ")"
	}
	s += quoteLabel(node.Name)
	if node.HasLength {
		s += ":" + strconv.FormatFloat(node.Length, 'g', -1, 64)
	}
	return s
}
