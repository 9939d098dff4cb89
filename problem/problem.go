// Package problem reads the input of a supertree estimation: the
// taxon universe and a list of weighted observations. Observations are
// either trees or distance/variance matrices.
//
// The problem file format is line based. Blank lines and lines
// starting with '#' are ignored.
//
//	<ntaxa> <nobs>
//	[taxa <name1> ... <name_ntaxa>]
//	<weight> <newick>
//
// The weight/newick line is repeated nobs times. With a taxa line the
// universe is fixed in the declared order, otherwise taxa are numbered
// in the lexical order of their names.
package problem

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/minsq/tree"
)

var log = logging.MustGetLogger("problem")

// maximum line length, newick trees of large problems are long
const maxLine = 1 << 30

// DistVar is a labelled matrix observation. Dist and Var are indexed
// by the position in Labels; Taxa maps positions to taxon indices.
type DistVar struct {
	Labels []string
	Taxa   []int
	Dist   [][]float64
	Var    [][]float64
}

// Observation is a single weighted input estimate. Exactly one of Tree
// and Matrix is set.
type Observation struct {
	Name   string
	Weight float64
	Tree   *tree.Tree
	Matrix *DistVar
}

// Key returns a string identifying the content of the observation
// independently of the child order in trees.
func (o *Observation) Key() string {
	if o.Tree != nil {
		return "tree " + o.Tree.Canonical()
	}
	if o.Matrix != nil {
		return fmt.Sprintf("matrix %q %v %v", o.Matrix.Labels, o.Matrix.Dist, o.Matrix.Var)
	}
	return ""
}

// Problem is the taxon universe together with the observations.
type Problem struct {
	Taxa         *tree.Taxa
	Observations []Observation
}

type lineReader struct {
	scanner *bufio.Scanner
	line    int
}

func newLineReader(rd io.Reader) *lineReader {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	return &lineReader{scanner: scanner}
}

// next returns the next line which is not empty and is not a comment.
func (lr *lineReader) next() (string, bool) {
	for lr.scanner.Scan() {
		lr.line++
		line := strings.TrimSpace(lr.scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		return line, true
	}
	return "", false
}

// renumber numbers a universe built from the data in the order of
// names, so that taxon indices do not depend on the order of the
// observations. A fixed universe is kept.
func (p *Problem) renumber() {
	perm := p.Taxa.Sort()
	if perm == nil {
		return
	}
	for i := range p.Observations {
		o := &p.Observations[i]
		if o.Tree != nil {
			o.Tree.Renumber(perm)
		}
		if o.Matrix != nil {
			for k, tx := range o.Matrix.Taxa {
				o.Matrix.Taxa[k] = perm[tx]
			}
		}
	}
}

func (lr *lineReader) err() error {
	return lr.scanner.Err()
}

func parseWeight(s string, line int) (float64, error) {
	w, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(w) || math.IsInf(w, 0) {
		return 0, malformed(line, "weight %q is not a number", s)
	}
	if w < 0 {
		return 0, malformed(line, "negative weight %v", w)
	}
	return w, nil
}

// Read parses a problem file.
func Read(rd io.Reader) (*Problem, error) {
	lr := newLineReader(rd)
	header, ok := lr.next()
	if !ok {
		if err := lr.err(); err != nil {
			return nil, err
		}
		return nil, malformed(0, "missing header")
	}
	fields := strings.Fields(header)
	if len(fields) != 2 {
		return nil, malformed(lr.line, "header should have two fields, found %d", len(fields))
	}
	nTaxa, err1 := strconv.Atoi(fields[0])
	nObs, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil || nTaxa < 0 || nObs < 0 {
		return nil, malformed(lr.line, "bad header %q", header)
	}

	p := &Problem{Taxa: tree.NewTaxa()}
	line, ok := lr.next()
	if ok && strings.HasPrefix(line, "taxa") && (len(line) == 4 || line[4] == ' ' || line[4] == '\t') {
		names := strings.Fields(line)[1:]
		if len(names) != nTaxa {
			return nil, malformed(lr.line, "expected %d taxa, found %d", nTaxa, len(names))
		}
		for _, name := range names {
			if _, dup := p.Taxa.Index(name); dup {
				return nil, malformed(lr.line, "duplicate taxon %q", name)
			}
			p.Taxa.Intern(name)
		}
		p.Taxa.Fix()
		line, ok = lr.next()
	}

	for ; ok; line, ok = lr.next() {
		if len(p.Observations) == nObs {
			return nil, malformed(lr.line, "expected %d observations, found more", nObs)
		}
		sep := strings.IndexFunc(line, unicode.IsSpace)
		if sep < 0 {
			return nil, malformed(lr.line, "expected a weight and a tree")
		}
		w, err := parseWeight(line[:sep], lr.line)
		if err != nil {
			return nil, err
		}
		t, err := tree.ParseNewickString(strings.TrimSpace(line[sep:]), p.Taxa)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lr.line, err)
		}
		p.Observations = append(p.Observations, Observation{
			Name:   strconv.Itoa(len(p.Observations) + 1),
			Weight: w,
			Tree:   t,
		})
	}
	if err := lr.err(); err != nil {
		return nil, err
	}
	if len(p.Observations) != nObs {
		return nil, malformed(lr.line, "expected %d observations, found %d", nObs, len(p.Observations))
	}
	if p.Taxa.Len() != nTaxa {
		return nil, malformed(0, "expected %d taxa, found %d", nTaxa, p.Taxa.Len())
	}
	p.renumber()
	p.Taxa.Fix()
	log.Debugf("Read %d observations over %d taxa", len(p.Observations), p.Taxa.Len())
	return p, nil
}
