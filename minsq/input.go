package main

import (
	"fmt"
	"io"
	"os"

	"bitbucket.org/Davydov/minsq/optimize"
	"bitbucket.org/Davydov/minsq/problem"
	"bitbucket.org/Davydov/minsq/tree"
)

// readInput reads observations from a file.
func readInput(fn string, format problem.Format) (*problem.Problem, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := problem.ReadFormat(f, format, nil)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", fn, err)
	}
	log.Infof("Read %d observations over %d taxa from %s", len(p.Observations), p.Taxa.Len(), fn)
	return p, nil
}

// readStart reads the guide tree. All its leaves have to be in the
// universe of the problem.
func readStart(fn string, taxa *tree.Taxa) (*tree.Tree, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := tree.ParseNewick(f, taxa)
	if err != nil {
		return nil, fmt.Errorf("error reading start tree %s: %w", fn, err)
	}
	log.Debugf("intree=%s", t)
	return t, nil
}

// writeResult prints the best tree and its score.
func writeResult(w io.Writer, res *optimize.Result) error {
	_, err := fmt.Fprintf(w, "%s\nscore=%v\n", res.Tree, res.Score)
	return err
}
