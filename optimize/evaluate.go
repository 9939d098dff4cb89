package optimize

import (
	"sync"

	"bitbucket.org/Davydov/minsq/distance"
)

// candidate is the best state found by one worker.
type candidate struct {
	index int
	state *State
}

func (c *candidate) better(index int, score float64) bool {
	if c.state == nil {
		return true
	}
	if score != c.state.Score() {
		return score < c.state.Score()
	}
	return index < c.index
}

// evaluate scores all the moves applied to cur using a pool of
// workers. It returns the best resulting state, nil if there are no
// moves. Equal scores are resolved by the lower move index, so the
// result does not depend on scheduling.
func evaluate(cur *State, moves []Move, tab *distance.Table, workers int) (*State, int) {
	if len(moves) == 0 {
		return nil, -1
	}
	if workers > len(moves) {
		workers = len(moves)
	}
	tasks := make(chan int, len(moves))
	for i := range moves {
		tasks <- i
	}
	close(tasks)

	best := make([]candidate, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(c *candidate) {
			defer wg.Done()
			for i := range tasks {
				st := cur.Copy()
				st.apply(moves[i], tab)
				if c.better(i, st.Score()) {
					c.index, c.state = i, st
				}
			}
		}(&best[w])
	}
	wg.Wait()

	res := &candidate{}
	for _, c := range best {
		if c.state != nil && res.better(c.index, c.state.Score()) {
			*res = c
		}
	}
	return res.state, res.index
}
