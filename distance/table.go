// Package distance builds the aggregate distance table, the target of
// the least squares fit. For every pair of taxa it keeps the weighted
// sum of the observed distances and the sum of the weights.
package distance

import (
	"fmt"
	"math"

	"github.com/gonum/floats"
)

// InsufficientDataError is returned when no topology can be
// distinguished by the data.
type InsufficientDataError struct {
	Msg string
}

func (e *InsufficientDataError) Error() string {
	return "insufficient data: " + e.Msg
}

// Pair is an unordered pair of taxa, I < J.
type Pair struct {
	I, J int
}

// Table is a dense symmetric table over the taxon universe. It is
// read only after aggregation and can be shared between goroutines.
type Table struct {
	n         int
	sum       []float64
	weight    []float64
	rowSum    []float64
	rowWeight []float64
	covered   int
	total     float64
	// pairs of matrix observations without a positive variance
	unweighted int
}

// NewTable creates an empty table for n taxa.
func NewTable(n int) *Table {
	return &Table{
		n:         n,
		sum:       make([]float64, n*n),
		weight:    make([]float64, n*n),
		rowSum:    make([]float64, n),
		rowWeight: make([]float64, n),
	}
}

// Add accumulates a distance d with weight w for the pair i, j.
func (tab *Table) Add(i, j int, w, d float64) {
	if i == j {
		panic(fmt.Sprintf("diagonal entry %d", i))
	}
	tab.sum[i*tab.n+j] += w * d
	tab.sum[j*tab.n+i] += w * d
	tab.weight[i*tab.n+j] += w
	tab.weight[j*tab.n+i] += w
}

// finish computes row totals and the coverage.
func (tab *Table) finish() {
	tab.covered = 0
	tab.total = 0
	for i := 0; i < tab.n; i++ {
		tab.rowSum[i] = floats.Sum(tab.SumRow(i))
		tab.rowWeight[i] = floats.Sum(tab.WeightRow(i))
		for j := i + 1; j < tab.n; j++ {
			if w := tab.weight[i*tab.n+j]; w > 0 {
				tab.covered++
				tab.total += w
			}
		}
	}
}

// Unweighted returns the number of matrix entries which had no
// positive variance and were added with the observation weight
// instead of the inverse variance.
func (tab *Table) Unweighted() int {
	return tab.unweighted
}

// Len returns the number of taxa.
func (tab *Table) Len() int {
	return tab.n
}

// Weight returns the total weight of the pair.
func (tab *Table) Weight(i, j int) float64 {
	return tab.weight[i*tab.n+j]
}

// Sum returns the weighted sum of the distances of the pair.
func (tab *Table) Sum(i, j int) float64 {
	return tab.sum[i*tab.n+j]
}

// Target returns the weighted mean distance, zero for uncovered pairs.
func (tab *Table) Target(i, j int) float64 {
	w := tab.weight[i*tab.n+j]
	if w <= 0 {
		return 0
	}
	return tab.sum[i*tab.n+j] / w
}

// WeightRow returns the weights of all the pairs with taxon i. The
// slice must not be modified.
func (tab *Table) WeightRow(i int) []float64 {
	return tab.weight[i*tab.n : (i+1)*tab.n]
}

// SumRow returns the weighted distance sums of all the pairs with
// taxon i. The slice must not be modified.
func (tab *Table) SumRow(i int) []float64 {
	return tab.sum[i*tab.n : (i+1)*tab.n]
}

// RowWeight returns the total weight of the pairs with taxon i.
func (tab *Table) RowWeight(i int) float64 {
	return tab.rowWeight[i]
}

// RowSum returns the total weighted distance of the pairs with taxon i.
func (tab *Table) RowSum(i int) float64 {
	return tab.rowSum[i]
}

// Covered returns the number of pairs with positive weight.
func (tab *Table) Covered() int {
	return tab.covered
}

// TotalWeight returns the sum of the weights over all the pairs.
func (tab *Table) TotalWeight() float64 {
	return tab.total
}

// Pairs returns the covered pairs.
func (tab *Table) Pairs() []Pair {
	pairs := make([]Pair, 0, tab.covered)
	for i := 0; i < tab.n; i++ {
		for j := i + 1; j < tab.n; j++ {
			if tab.weight[i*tab.n+j] > 0 {
				pairs = append(pairs, Pair{i, j})
			}
		}
	}
	return pairs
}

// Constant returns the sum of squared targets times weights over all
// the covered pairs, the part of the residual which does not depend on
// the branch lengths.
func (tab *Table) Constant() (c float64) {
	for i := 0; i < tab.n; i++ {
		for j := i + 1; j < tab.n; j++ {
			if w := tab.weight[i*tab.n+j]; w > 0 {
				s := tab.sum[i*tab.n+j]
				c += s * s / w
			}
		}
	}
	return
}

// Completed returns a full distance matrix. A missing pair gets the
// shortest path through a single intermediate taxon, or the mean of
// all the targets if there is none.
func (tab *Table) Completed() [][]float64 {
	n := tab.n
	mean := 0.0
	if tab.covered > 0 {
		for _, p := range tab.Pairs() {
			mean += tab.Target(p.I, p.J)
		}
		mean /= float64(tab.covered)
	}
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := tab.Target(i, j)
			if tab.Weight(i, j) <= 0 {
				v = math.Inf(1)
				for k := 0; k < n; k++ {
					if k == i || k == j || tab.Weight(i, k) <= 0 || tab.Weight(k, j) <= 0 {
						continue
					}
					v = math.Min(v, tab.Target(i, k)+tab.Target(k, j))
				}
				if math.IsInf(v, 1) {
					v = mean
				}
			}
			d[i][j], d[j][i] = v, v
		}
	}
	return d
}
