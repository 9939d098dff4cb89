package problem

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/evolbioinfo/gotree/io/nexus"
	gtree "github.com/evolbioinfo/gotree/tree"

	"bitbucket.org/Davydov/minsq/tree"
)

// Format is an input file format.
type Format int

const (
	ProblemFormat Format = iota
	Newick
	Nexus
	DistVarFormat
)

// ParseFormat maps format names used on the command line to formats.
var ParseFormat = map[string]Format{
	"problem": ProblemFormat,
	"newick":  Newick,
	"nexus":   Nexus,
	"distvar": DistVarFormat,
}

// Set implements flag.Value.
func (f *Format) Set(s string) error {
	if format, ok := ParseFormat[s]; ok {
		*f = format
		return nil
	}
	return fmt.Errorf("%q is not a valid input format", s)
}

func (f Format) String() string {
	for s, fr := range ParseFormat {
		if fr == f {
			return s
		}
	}
	panic(fmt.Sprintf("format (%d) does not exist", f))
}

// ReadFormat reads observations in any of the supported formats. The
// taxa argument is ignored for the problem format, which defines its
// own universe.
func ReadFormat(rd io.Reader, format Format, taxa *tree.Taxa) (*Problem, error) {
	switch format {
	case ProblemFormat:
		return Read(rd)
	case Newick, Nexus:
		return ReadTrees(rd, format, taxa)
	case DistVarFormat:
		return ReadDistVar(rd, taxa)
	}
	return nil, fmt.Errorf("unsupported format %v", format)
}

// ReadTrees reads a gene tree file: one Newick tree per line, or a
// Nexus file with a trees block. Every tree gets weight one. If taxa
// is nil or empty, the universe is built from the trees and numbered
// in the order of names.
func ReadTrees(rd io.Reader, format Format, taxa *tree.Taxa) (*Problem, error) {
	if taxa == nil {
		taxa = tree.NewTaxa()
	}
	built := !taxa.Fixed() && taxa.Len() == 0
	p := &Problem{Taxa: taxa}
	switch format {
	case Newick:
		lr := newLineReader(rd)
		for line, ok := lr.next(); ok; line, ok = lr.next() {
			t, err := tree.ParseNewickString(line, taxa)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lr.line, err)
			}
			p.Observations = append(p.Observations, Observation{
				Name:   strconv.Itoa(len(p.Observations) + 1),
				Weight: 1,
				Tree:   t,
			})
		}
		if err := lr.err(); err != nil {
			return nil, err
		}
	case Nexus:
		nex, err := nexus.NewParser(rd).Parse()
		if err != nil {
			return nil, fmt.Errorf("error reading nexus file: %w", err)
		}
		nex.IterateTrees(func(name string, gt *gtree.Tree) {
			if err != nil {
				return
			}
			var t *tree.Tree
			t, err = tree.ParseNewickString(gt.Newick(), taxa)
			if err != nil {
				err = fmt.Errorf("nexus tree %s: %w", name, err)
				return
			}
			p.Observations = append(p.Observations, Observation{
				Name:   name,
				Weight: 1,
				Tree:   t,
			})
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%v is not a tree format", format)
	}
	if len(p.Observations) == 0 {
		return nil, malformed(0, "no trees found")
	}
	if built {
		p.renumber()
	}
	taxa.Fix()
	log.Debugf("Read %d trees over %d taxa", len(p.Observations), taxa.Len())
	return p, nil
}

type fieldReader struct {
	lr     *lineReader
	fields []string
}

func (fr *fieldReader) next() (string, bool) {
	for len(fr.fields) == 0 {
		line, ok := fr.lr.next()
		if !ok {
			return "", false
		}
		fr.fields = strings.Fields(line)
	}
	f := fr.fields[0]
	fr.fields = fr.fields[1:]
	return f, true
}

func (fr *fieldReader) readInt(what string) (int, error) {
	s, ok := fr.next()
	if !ok {
		return 0, malformed(fr.lr.line, "unexpected end of input, expected %s", what)
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, malformed(fr.lr.line, "bad %s %q", what, s)
	}
	return v, nil
}

func (fr *fieldReader) readFloat(what string) (float64, error) {
	s, ok := fr.next()
	if !ok {
		return 0, malformed(fr.lr.line, "unexpected end of input, expected %s", what)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, malformed(fr.lr.line, "bad %s %q", what, s)
	}
	return v, nil
}

// ReadDistVar reads distance/variance matrices.
//
//	distvar <nmatrices>
//	<dim> <weight>
//	<label_1> ... <label_dim>
//	<dim rows of dim numbers>
//
// Above the diagonal a row holds distances, below the diagonal
// variances. The diagonal is ignored. Taxa of a universe built from
// the file are numbered in the order of names.
func ReadDistVar(rd io.Reader, taxa *tree.Taxa) (*Problem, error) {
	if taxa == nil {
		taxa = tree.NewTaxa()
	}
	built := !taxa.Fixed() && taxa.Len() == 0
	fr := &fieldReader{lr: newLineReader(rd)}
	if s, ok := fr.next(); !ok || s != "distvar" {
		return nil, malformed(fr.lr.line, "missing distvar header")
	}
	n, err := fr.readInt("number of matrices")
	if err != nil {
		return nil, err
	}
	p := &Problem{Taxa: taxa}
	for k := 0; k < n; k++ {
		dim, err := fr.readInt("matrix dimension")
		if err != nil {
			return nil, err
		}
		if dim < 2 {
			return nil, malformed(fr.lr.line, "matrix dimension %d is less than 2", dim)
		}
		ws, ok := fr.next()
		if !ok {
			return nil, malformed(fr.lr.line, "unexpected end of input, expected weight")
		}
		w, err := parseWeight(ws, fr.lr.line)
		if err != nil {
			return nil, err
		}
		m := &DistVar{
			Labels: make([]string, dim),
			Taxa:   make([]int, dim),
			Dist:   make([][]float64, dim),
			Var:    make([][]float64, dim),
		}
		seen := make(map[string]bool, dim)
		for i := range m.Labels {
			label, ok := fr.next()
			if !ok {
				return nil, malformed(fr.lr.line, "unexpected end of input, expected label")
			}
			if seen[label] {
				return nil, malformed(fr.lr.line, "duplicate label %q", label)
			}
			seen[label] = true
			m.Labels[i] = label
			if m.Taxa[i], err = taxa.Intern(label); err != nil {
				return nil, fmt.Errorf("line %d: %w", fr.lr.line, err)
			}
		}
		for i := 0; i < dim; i++ {
			m.Dist[i] = make([]float64, dim)
			m.Var[i] = make([]float64, dim)
		}
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				v, err := fr.readFloat("matrix entry")
				if err != nil {
					return nil, err
				}
				switch {
				case i < j:
					if v < 0 {
						return nil, malformed(fr.lr.line, "negative distance %v", v)
					}
					m.Dist[i][j], m.Dist[j][i] = v, v
				case i > j:
					m.Var[i][j], m.Var[j][i] = v, v
				}
			}
		}
		p.Observations = append(p.Observations, Observation{
			Name:   strconv.Itoa(k + 1),
			Weight: w,
			Matrix: m,
		})
	}
	if _, ok := fr.next(); ok {
		return nil, malformed(fr.lr.line, "expected %d matrices, found more data", n)
	}
	if err := fr.lr.err(); err != nil {
		return nil, err
	}
	if built {
		p.renumber()
	}
	taxa.Fix()
	log.Debugf("Read %d matrices over %d taxa", n, taxa.Len())
	return p, nil
}
