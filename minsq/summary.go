package main

import (
	"encoding/json"
	"math"
	"os"

	"bitbucket.org/Davydov/minsq/distance"
	"bitbucket.org/Davydov/minsq/lsq"
	"bitbucket.org/Davydov/minsq/optimize"
)

// RunSummary is storing minsq run summary information.
type RunSummary struct {
	// Version stores minsq version.
	Version string `json:"version"`
	// CommandLine is an array storing binary name and all command-line parameters.
	CommandLine []string `json:"commandLine"`
	// Seed is the seed of the first search chain.
	Seed int64 `json:"seed"`
	// NThreads is the number of processes used.
	NThreads int `json:"nThreads"`

	Input  string `json:"input"`
	Format string `json:"format"`
	// NTaxa is the size of the taxon universe.
	NTaxa         int `json:"nTaxa"`
	NObservations int `json:"nObservations"`
	// CoveredPairs is the number of taxon pairs with a positive weight.
	CoveredPairs int     `json:"coveredPairs"`
	TotalWeight  float64 `json:"totalWeight"`

	Settings optimize.Settings `json:"settings"`

	// StartingTree is the starting tree, empty for neighbor joining.
	StartingTree string  `json:"startingTree,omitempty"`
	FinalTree    string  `json:"finalTree"`
	Score        float64 `json:"score"`
	// Clamped is the number of zero length branches.
	Clamped int `json:"clamped"`
	// DegreesOfFreedom is the number of covered pairs minus the
	// number of branches.
	DegreesOfFreedom int `json:"degreesOfFreedom"`
	// PValue is the chi-square tail probability of the score, only
	// computed if all the weights are inverse variances.
	PValue *float64 `json:"pValue,omitempty"`
	// Unweighted is the number of matrix entries without a positive
	// variance.
	Unweighted int `json:"unweighted,omitempty"`

	Iterations  int                    `json:"iterations"`
	Evaluations int                    `json:"evaluations"`
	Restarts    int                    `json:"restarts"`
	Exhausted   bool                   `json:"exhausted"`
	Chain       int                    `json:"chain"`
	Chains      []optimize.ChainResult `json:"chains"`
	// Time is the computations time in seconds.
	Time float64 `json:"time"`
}

// fill copies the search results into the summary.
func (s *RunSummary) fill(tab *distance.Table, res *optimize.Result, inverseVariance bool) {
	s.NTaxa = tab.Len()
	s.CoveredPairs = tab.Covered()
	s.TotalWeight = tab.TotalWeight()
	s.FinalTree = res.Tree.String()
	s.Score = res.Score
	s.Clamped = res.Clamped
	s.DegreesOfFreedom = lsq.DegreesOfFreedom(tab.Covered(), 2*tab.Len()-3)
	s.Unweighted = tab.Unweighted()
	if inverseVariance && s.Unweighted == 0 {
		if p := lsq.ChiSquareTail(res.Score, s.DegreesOfFreedom); !math.IsNaN(p) {
			s.PValue = &p
		}
	}
	s.Iterations = res.Iterations
	s.Evaluations = res.Evaluations
	s.Restarts = res.Restarts
	s.Exhausted = res.Exhausted
	s.Chain = res.Chain
	s.Chains = res.Chains
	s.Time = res.Elapsed.Seconds()
}

// writeJSON writes the summary to a file.
func (s *RunSummary) writeJSON(fn string) error {
	j, err := json.Marshal(s)
	if err != nil {
		return err
	}
	log.Debug(string(j))
	return os.WriteFile(fn, j, 0666)
}
