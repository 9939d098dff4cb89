package optimize

import (
	"context"
	"math/rand"

	"bitbucket.org/Davydov/minsq/checkpoint"
	"bitbucket.org/Davydov/minsq/tree"
)

// chain is one independent steepest descent search with perturbation
// restarts.
type chain struct {
	o          *Optimizer
	idx        int
	rng        *rand.Rand
	workers    int
	best       *State
	res        ChainResult
	trajectory []Step
}

func (o *Optimizer) runChain(ctx context.Context, idx int, initial *State, workers int) (*chain, error) {
	c := &chain{
		o:       o,
		idx:     idx,
		rng:     rand.New(rand.NewSource(o.settings.Seed + int64(idx))),
		workers: workers,
	}
	cur := initial.Copy()
	if idx > 0 {
		cur = c.perturbed(initial, max(1, o.settings.Perturbation))
	}
	round, resumed := 0, -1

	if o.cp != nil {
		data, err := o.cp.Load(idx)
		if err != nil {
			return nil, err
		}
		if data != nil {
			t, err := tree.ParseNewickString(data.Tree, o.taxa)
			if err != nil {
				return nil, err
			}
			t.Normalize()
			cur = NewState(t, o.tab)
			round, resumed = data.Round, data.Round
			c.res.Iterations = data.Iter
			if data.Final {
				c.best = cur
				return c, nil
			}
		}
	}

	c.best = cur
	for ; round <= o.settings.Restarts; round++ {
		if round > 0 && round != resumed {
			cur = c.perturbed(c.best, o.settings.Perturbation)
			c.res.Restarts++
			log.Debugf("Chain %d: restart %d from score %g", idx, round, cur.Score())
		}
		var stop bool
		cur, stop = c.descend(ctx, cur, round)
		log.Infof("Chain %d: round %d finished with score %g", idx, round, cur.Score())
		if stop {
			c.res.Exhausted = true
			break
		}
	}
	c.save(min(round, o.settings.Restarts), !c.res.Exhausted)
	return c, nil
}

// descend accepts the best improving move until there is none. It
// returns true if the search has to stop.
func (c *chain) descend(ctx context.Context, cur *State, round int) (*State, bool) {
	s := &c.o.settings
	for {
		if c.res.Iterations >= s.Iterations {
			log.Infof("Chain %d: reached the limit of %d iterations", c.idx, s.Iterations)
			return cur, true
		}
		if err := ctx.Err(); err != nil {
			log.Warningf("Chain %d: stopping, %v", c.idx, err)
			return cur, true
		}
		moves := c.neighborhood(cur.Tree)
		next, i := evaluate(cur, moves, c.o.tab, c.workers)
		c.res.Evaluations += len(moves)
		if next == nil || !c.o.improves(next.Score(), cur.Score()) {
			return cur, false
		}
		log.Debugf("Chain %d: accepted %v, score %g", c.idx, moves[i], next.Score())
		cur = next
		c.res.Iterations++
		step := Step{Chain: c.idx, Round: round, Iteration: c.res.Iterations, Score: cur.Score()}
		c.trajectory = append(c.trajectory, step)
		c.o.PrintLine(step)
		if cur.Score() < c.best.Score() {
			c.best = cur
			if c.o.cp != nil && c.o.cp.Old(c.idx) {
				c.save(round, false)
			}
		}
	}
}

// neighborhood returns the candidate moves, sampled if requested.
func (c *chain) neighborhood(t *tree.Tree) []Move {
	s := &c.o.settings
	var moves []Move
	if s.useNNI() {
		moves = NNIMoves(t)
	}
	if s.useSPR() {
		minDist := 1
		if s.useNNI() {
			minDist = 2
		}
		moves = append(moves, SPRMoves(t, s.SPRRadius, minDist)...)
	}
	if s.Sample > 0 && len(moves) > s.Sample {
		c.rng.Shuffle(len(moves), func(i, j int) {
			moves[i], moves[j] = moves[j], moves[i]
		})
		moves = moves[:s.Sample]
	}
	return moves
}

func (c *chain) perturbed(st *State, n int) *State {
	t := st.Tree.Copy()
	perturb(t, n, c.rng)
	return NewState(t, c.o.tab)
}

func (c *chain) save(round int, final bool) {
	if c.o.cp == nil {
		return
	}
	st := c.best.Copy()
	st.lengths()
	// errors are logged by the checkpoint package
	_ = c.o.cp.Save(c.idx, &checkpoint.CheckpointData{
		Tree:  st.Tree.String(),
		Score: st.Score(),
		Iter:  c.res.Iterations,
		Round: round,
		Final: final,
	})
}
