package distance

import (
	"fmt"
	"sort"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/minsq/problem"
)

var log = logging.MustGetLogger("distance")

// Options control the aggregation.
type Options struct {
	// Scale multiplies every observed distance; variances are
	// multiplied by its square. Zero means one.
	Scale float64
}

// Aggregate builds the table from all the observations. Observations
// are accumulated in a canonical order, so any permutation of the
// input gives the same table.
func Aggregate(p *problem.Problem, opts Options) (*Table, error) {
	n := p.Taxa.Len()
	if n < 3 {
		return nil, &InsufficientDataError{fmt.Sprintf("%d taxa, at least 3 are required", n)}
	}
	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}

	keys := make([]string, len(p.Observations))
	order := make([]int, len(p.Observations))
	for i := range p.Observations {
		keys[i] = p.Observations[i].Key()
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ka, kb := keys[order[a]], keys[order[b]]
		if ka != kb {
			return ka < kb
		}
		return p.Observations[order[a]].Weight < p.Observations[order[b]].Weight
	})

	tab := NewTable(n)
	for _, k := range order {
		o := &p.Observations[k]
		if o.Weight == 0 {
			continue
		}
		switch {
		case o.Tree != nil:
			addTree(tab, o, scale)
		case o.Matrix != nil:
			addMatrix(tab, o, scale)
		}
	}
	tab.finish()
	if tab.unweighted > 0 {
		log.Warningf("%d matrix entries have no positive variance, using the matrix weight for them", tab.unweighted)
	}
	if tab.TotalWeight() == 0 {
		return nil, &InsufficientDataError{"total weight is zero"}
	}
	log.Debugf("Aggregated %d observations, %d of %d pairs covered",
		len(order), tab.Covered(), n*(n-1)/2)
	return tab, nil
}

func addTree(tab *Table, o *problem.Observation, scale float64) {
	t := o.Tree
	leaves, d := t.LeafDistances()
	for i := range leaves {
		a := t.Node(leaves[i]).Taxon
		for j := i + 1; j < len(leaves); j++ {
			b := t.Node(leaves[j]).Taxon
			tab.Add(a, b, o.Weight, scale*d[i][j])
		}
	}
}

func addMatrix(tab *Table, o *problem.Observation, scale float64) {
	m := o.Matrix
	for i := range m.Taxa {
		for j := i + 1; j < len(m.Taxa); j++ {
			w := o.Weight
			if v := m.Var[i][j] * scale * scale; v > 0 {
				w /= v
			} else {
				tab.unweighted++
			}
			tab.Add(m.Taxa[i], m.Taxa[j], w, scale*m.Dist[i][j])
		}
	}
}
