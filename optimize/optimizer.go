// Package optimize searches for the tree topology with the minimal
// weighted least-squares residual.
package optimize

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/op/go-logging"
	"golang.org/x/sync/errgroup"

	"bitbucket.org/Davydov/minsq/checkpoint"
	"bitbucket.org/Davydov/minsq/distance"
	"bitbucket.org/Davydov/minsq/tree"
)

var log = logging.MustGetLogger("optimize")

// Step is a point of the search trajectory, recorded after every
// accepted move.
type Step struct {
	Chain     int
	Round     int
	Iteration int
	Score     float64
}

// ChainResult summarizes one search chain.
type ChainResult struct {
	Chain       int
	Score       float64
	Iterations  int
	Evaluations int
	Restarts    int
	Exhausted   bool
}

// Result is the outcome of a search.
type Result struct {
	// Tree is the best tree with fitted branch lengths.
	Tree  *tree.Tree
	Score float64
	// Clamped is the number of zero length branches.
	Clamped int
	// Iterations, Evaluations and Restarts are summed over chains.
	Iterations  int
	Evaluations int
	Restarts    int
	// Exhausted is true if any chain ran out of its budget.
	Exhausted bool
	// Trajectory of the winning chain.
	Trajectory []Step
	// Chain is the index of the winning chain.
	Chain   int
	Chains  []ChainResult
	Elapsed time.Duration
}

// Optimizer runs the topology search.
type Optimizer struct {
	settings  Settings
	tab       *distance.Table
	taxa      *tree.Taxa
	repPeriod int
	Quiet     bool
	out       io.Writer
	mu        sync.Mutex
	cp        *checkpoint.CheckpointIO
}

// New creates an optimizer for the table. The taxa are used to name
// the leaves of the starting tree and to decode checkpoints.
func New(tab *distance.Table, taxa *tree.Taxa, settings Settings) (*Optimizer, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if taxa.Len() != tab.Len() {
		return nil, fmt.Errorf("%d taxa for a table of size %d", taxa.Len(), tab.Len())
	}
	return &Optimizer{
		settings:  settings,
		tab:       tab,
		taxa:      taxa,
		repPeriod: 1,
	}, nil
}

// Settings returns the search settings.
func (o *Optimizer) Settings() Settings {
	return o.settings
}

// SetReportPeriod sets how often (in accepted moves) the trajectory is
// printed.
func (o *Optimizer) SetReportPeriod(period int) {
	o.repPeriod = period
}

// SetOutput sets the writer for the trajectory lines.
func (o *Optimizer) SetOutput(w io.Writer) {
	o.out = w
}

// SetCheckpoint enables saving and resuming chains.
func (o *Optimizer) SetCheckpoint(cp *checkpoint.CheckpointIO) {
	o.cp = cp
}

// PrintHeader prints the trajectory header.
func (o *Optimizer) PrintHeader() {
	if !o.Quiet && o.out != nil {
		fmt.Fprintf(o.out, "chain\tround\titeration\tscore\n")
	}
}

// PrintLine prints a trajectory step, every report period.
func (o *Optimizer) PrintLine(st Step) {
	if o.Quiet || o.out == nil || o.repPeriod <= 0 || st.Iteration%o.repPeriod != 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.out, "%d\t%d\t%d\t%f\n", st.Chain, st.Round, st.Iteration, st.Score)
}

// Initial returns the starting state. Without a guide tree the start
// is a neighbor joining tree of the completed table. A guide tree is
// normalized and has to cover all the taxa exactly once.
func (o *Optimizer) Initial(start *tree.Tree) (*State, error) {
	n := o.tab.Len()
	if start == nil {
		log.Info("Building neighbor joining starting tree")
		return NewState(NeighborJoining(o.tab.Completed(), o.taxa), o.tab), nil
	}
	t := start.Copy()
	t.Normalize()
	if nl := t.NLeaves(); nl != n {
		return nil, fmt.Errorf("starting tree has %d leaves, expected %d taxa", nl, n)
	}
	for tx, id := range t.LeafByTaxon(n) {
		if id < 0 {
			return nil, fmt.Errorf("taxon %q is missing from the starting tree", o.taxa.Name(tx))
		}
	}
	return NewState(t, o.tab), nil
}

// improves returns true if score is a sufficient improvement over ref.
func (o *Optimizer) improves(score, ref float64) bool {
	return score < ref-o.settings.Tolerance*(1+math.Abs(ref))
}

// Run searches for the best tree starting from start, or from a neighbor
// joining tree if start is nil. The search stops at a local optimum,
// when the budget is exhausted or when the context is done; the last
// two are reported in Result.Exhausted and are not errors.
func (o *Optimizer) Run(ctx context.Context, start *tree.Tree) (*Result, error) {
	started := time.Now()
	initial, err := o.Initial(start)
	if err != nil {
		return nil, err
	}
	log.Infof("Starting tree score: %g", initial.Score())

	if o.settings.KeepTopology {
		log.Info("Keeping the starting topology")
		res := o.result(initial, []*chain{{idx: 0, best: initial}}, 0)
		res.Elapsed = time.Since(started)
		return res, nil
	}

	if o.settings.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.settings.TimeLimit)
		defer cancel()
	}

	parallel := o.settings.Starts
	if parallel > o.settings.Workers {
		parallel = o.settings.Workers
	}
	workers := o.settings.Workers / parallel

	o.PrintHeader()
	chains := make([]*chain, o.settings.Starts)
	var g errgroup.Group
	g.SetLimit(parallel)
	for i := range chains {
		i := i
		g.Go(func() (err error) {
			chains[i], err = o.runChain(ctx, i, initial, workers)
			return
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	win := 0
	for i, c := range chains {
		if c.best.Score() < chains[win].best.Score() {
			win = i
		}
	}
	res := o.result(chains[win].best, chains, win)
	res.Elapsed = time.Since(started)
	log.Noticef("Best score %g found by chain %d", res.Score, win)
	return res, nil
}

// result builds the final tree for the best state and collects the
// chain statistics.
func (o *Optimizer) result(best *State, chains []*chain, win int) *Result {
	st := best.Copy()
	if o.settings.Refine {
		st.Fit = st.sys.Refine(st.Fit)
		log.Infof("Refined score: %g", st.Fit.Score)
	}
	st.lengths()
	res := &Result{
		Tree:       st.Tree,
		Score:      st.Score(),
		Clamped:    st.Fit.Clamped,
		Trajectory: chains[win].trajectory,
		Chain:      win,
	}
	for _, c := range chains {
		c.res.Chain = c.idx
		c.res.Score = c.best.Score()
		res.Chains = append(res.Chains, c.res)
		res.Iterations += c.res.Iterations
		res.Evaluations += c.res.Evaluations
		res.Restarts += c.res.Restarts
		res.Exhausted = res.Exhausted || c.res.Exhausted
	}
	return res
}
