package optimize

import (
	"fmt"
	"runtime"
	"time"
)

// Neighborhood names.
const (
	MovesNNI = "nni"
	MovesSPR = "spr"
	MovesAll = "all"
)

// Settings control the topology search. The yaml tags are the keys of
// the search configuration file.
type Settings struct {
	// Moves is one of nni, spr or all.
	Moves string `yaml:"moves"`
	// SPRRadius is the maximal number of branches between the pruned
	// subtree and the regraft point.
	SPRRadius int `yaml:"spr_radius"`
	// Iterations is the maximal number of accepted moves per chain.
	Iterations int `yaml:"iterations"`
	// Restarts is the number of perturbation rounds per chain.
	Restarts int `yaml:"restarts"`
	// Perturbation is the number of random NNIs applied on restart.
	Perturbation int `yaml:"perturbation"`
	// Tolerance is the relative improvement required to accept a move.
	Tolerance float64 `yaml:"tolerance"`
	// Sample limits the number of candidates evaluated per iteration,
	// zero evaluates the whole neighborhood.
	Sample int `yaml:"sample"`
	// Workers is the number of goroutines evaluating candidates.
	Workers int `yaml:"workers"`
	// Starts is the number of independent chains.
	Starts int   `yaml:"starts"`
	Seed   int64 `yaml:"seed"`
	// KeepTopology disables the search, only branch lengths are fit.
	KeepTopology bool `yaml:"keep_topology"`
	// Refine polishes the final branch lengths with L-BFGS-B.
	Refine bool `yaml:"refine"`
	// TimeLimit bounds the wall time of the search, zero is unlimited.
	TimeLimit time.Duration `yaml:"time_limit"`
}

// DefaultSettings returns the default search settings.
func DefaultSettings() Settings {
	return Settings{
		Moves:        MovesNNI,
		SPRRadius:    3,
		Iterations:   10000,
		Restarts:     5,
		Perturbation: 3,
		Tolerance:    1e-9,
		Workers:      runtime.GOMAXPROCS(0),
		Starts:       1,
		Seed:         1,
	}
}

// Validate checks the settings.
func (s *Settings) Validate() error {
	switch s.Moves {
	case MovesNNI, MovesSPR, MovesAll:
	default:
		return fmt.Errorf("unknown moves %q, expected nni, spr or all", s.Moves)
	}
	switch {
	case s.SPRRadius < 1 && s.Moves != MovesNNI:
		return fmt.Errorf("spr radius should be positive, got %d", s.SPRRadius)
	case s.Iterations < 0:
		return fmt.Errorf("negative number of iterations %d", s.Iterations)
	case s.Restarts < 0:
		return fmt.Errorf("negative number of restarts %d", s.Restarts)
	case s.Perturbation < 0:
		return fmt.Errorf("negative perturbation %d", s.Perturbation)
	case s.Tolerance < 0:
		return fmt.Errorf("negative tolerance %v", s.Tolerance)
	case s.Sample < 0:
		return fmt.Errorf("negative sample size %d", s.Sample)
	case s.Workers < 1:
		return fmt.Errorf("number of workers should be positive, got %d", s.Workers)
	case s.Starts < 1:
		return fmt.Errorf("number of starts should be positive, got %d", s.Starts)
	case s.TimeLimit < 0:
		return fmt.Errorf("negative time limit %v", s.TimeLimit)
	}
	return nil
}

func (s *Settings) useNNI() bool {
	return s.Moves == MovesNNI || s.Moves == MovesAll
}

func (s *Settings) useSPR() bool {
	return s.Moves == MovesSPR || s.Moves == MovesAll
}
