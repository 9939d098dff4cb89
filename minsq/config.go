package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"bitbucket.org/Davydov/minsq/optimize"
)

// readSettings reads search settings in YAML on top of the defaults.
// Unknown keys are an error.
func readSettings(rd io.Reader) (optimize.Settings, error) {
	s := optimize.DefaultSettings()
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return s, err
	}
	return s, nil
}

// loadSettings reads the settings file, an empty file name gives the
// default settings.
func loadSettings(fn string) (optimize.Settings, error) {
	if fn == "" {
		return optimize.DefaultSettings(), nil
	}
	f, err := os.Open(fn)
	if err != nil {
		return optimize.Settings{}, err
	}
	defer f.Close()
	s, err := readSettings(f)
	if err != nil {
		return s, fmt.Errorf("error reading config %s: %w", fn, err)
	}
	log.Infof("Read search settings from %s", fn)
	return s, nil
}

// overrides are the command line settings. Zero values keep the
// settings from the config file; for restarts, perturb, sample and
// seed negative values do.
type overrides struct {
	moves        string
	radius       int
	iterations   int
	restarts     int
	starts       int
	perturb      int
	sample       int
	workers      int
	tolerance    float64
	timeLimit    time.Duration
	seed         int64
	keepTopology bool
	refine       bool
}

func (ov *overrides) apply(s *optimize.Settings) {
	if ov.moves != "" {
		s.Moves = ov.moves
	}
	if ov.radius > 0 {
		s.SPRRadius = ov.radius
	}
	if ov.iterations > 0 {
		s.Iterations = ov.iterations
	}
	if ov.restarts >= 0 {
		s.Restarts = ov.restarts
	}
	if ov.starts > 0 {
		s.Starts = ov.starts
	}
	if ov.perturb >= 0 {
		s.Perturbation = ov.perturb
	}
	if ov.sample >= 0 {
		s.Sample = ov.sample
	}
	if ov.workers > 0 {
		s.Workers = ov.workers
	}
	if ov.tolerance > 0 {
		s.Tolerance = ov.tolerance
	}
	if ov.timeLimit > 0 {
		s.TimeLimit = ov.timeLimit
	}
	if ov.seed >= 0 {
		s.Seed = ov.seed
	}
	s.KeepTopology = s.KeepTopology || ov.keepTopology
	s.Refine = s.Refine || ov.refine
}
