package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/minsq/optimize"
	"bitbucket.org/Davydov/minsq/problem"
	"bitbucket.org/Davydov/minsq/tree"
)

func init() {
	for _, module := range modules {
		logging.SetLevel(logging.WARNING, module)
	}
}

func newJob(input string, format problem.Format) *job {
	return &job{
		input:  filepath.Join("testdata", input),
		format: format,
		scale:  1,
		ov:     overrides{restarts: -1, perturb: -1, sample: -1, seed: -1},
		report: 1,
	}
}

func TestReadSettings(tst *testing.T) {
	s, err := loadSettings("testdata/search.yaml")
	if err != nil {
		tst.Fatal("Error reading settings:", err)
	}
	if s.Moves != optimize.MovesAll || s.SPRRadius != 2 || s.Restarts != 2 ||
		s.Starts != 2 || s.Seed != 7 || s.TimeLimit != time.Minute {
		tst.Error("wrong settings", s)
	}
	// keys not in the file keep their defaults
	if s.Iterations != optimize.DefaultSettings().Iterations {
		tst.Error("default lost", s.Iterations)
	}
	if _, err := loadSettings("testdata/bad.yaml"); err == nil {
		tst.Error("no error for an unknown key")
	}
	if s, err := readSettings(strings.NewReader("")); err != nil || s != optimize.DefaultSettings() {
		tst.Error("empty config differs from defaults", s, err)
	}
}

func TestOverrides(tst *testing.T) {
	s := optimize.DefaultSettings()
	s.Restarts = 4
	s.Seed = 9
	ov := overrides{moves: "spr", restarts: -1, perturb: 0, sample: -1, seed: -1, refine: true}
	ov.apply(&s)
	if s.Moves != optimize.MovesSPR || s.Restarts != 4 || s.Perturbation != 0 ||
		s.Seed != 9 || !s.Refine {
		tst.Error("wrong overrides", s)
	}
}

func TestRun(tst *testing.T) {
	j := newJob("genes.txt", problem.ProblemFormat)
	j.ov.workers = 2
	var traj strings.Builder
	j.trajectory = &traj
	summary, res, err := run(context.Background(), j)
	if err != nil {
		tst.Fatal("Error running:", err)
	}
	if summary.NTaxa != 6 || summary.NObservations != 3 {
		tst.Error("wrong problem size", summary.NTaxa, summary.NObservations)
	}
	if summary.Score != res.Score || summary.FinalTree != res.Tree.String() {
		tst.Error("summary does not match the result")
	}
	if summary.DegreesOfFreedom != summary.CoveredPairs-9 {
		tst.Error("wrong degrees of freedom", summary.DegreesOfFreedom)
	}
	if summary.PValue != nil {
		tst.Error("p-value for tree input")
	}

	var out strings.Builder
	if err := writeResult(&out, res); err != nil {
		tst.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "score=") {
		tst.Fatal("unexpected output", out.String())
	}
	if _, err := tree.ParseNewickString(lines[0], nil); err != nil {
		tst.Error("output tree cannot be parsed:", err)
	}
	if !strings.HasPrefix(traj.String(), "chain\t") {
		tst.Error("no trajectory header")
	}

	fn := filepath.Join(tst.TempDir(), "summary.json")
	if err := summary.writeJSON(fn); err != nil {
		tst.Fatal("Error writing json:", err)
	}
	b, err := os.ReadFile(fn)
	if err != nil {
		tst.Fatal(err)
	}
	var back map[string]interface{}
	if err := json.Unmarshal(b, &back); err != nil {
		tst.Fatal("Error decoding json:", err)
	}
	if back["finalTree"] != summary.FinalTree {
		tst.Error("final tree missing from json")
	}
}

func TestRunStartTree(tst *testing.T) {
	j := newJob("genes.txt", problem.ProblemFormat)
	j.start = "testdata/start.nwk"
	j.ov.keepTopology = true
	summary, res, err := run(context.Background(), j)
	if err != nil {
		tst.Fatal("Error running:", err)
	}
	if summary.StartingTree == "" || res.Iterations != 0 {
		tst.Error("start tree not used", summary.StartingTree, res.Iterations)
	}
	p, err := readInput(j.input, j.format)
	if err != nil {
		tst.Fatal(err)
	}
	want, err := readStart(j.start, p.Taxa)
	if err != nil {
		tst.Fatal(err)
	}
	got, err := tree.ParseNewickString(res.Tree.String(), p.Taxa)
	if err != nil {
		tst.Fatal(err)
	}
	if d := tree.RobinsonFoulds(got, want, p.Taxa.Len()); d != 0 {
		tst.Error("keep topology changed the tree", res.Tree)
	}
}

func TestRunFormats(tst *testing.T) {
	j := newJob("../../problem/testdata/genes.nwk", problem.Newick)
	if _, _, err := run(context.Background(), j); err != nil {
		tst.Error("Error running on newick gene trees:", err)
	}
	j = newJob("genes.distvar", problem.DistVarFormat)
	summary, _, err := run(context.Background(), j)
	if err != nil {
		tst.Fatal("Error running on distvar:", err)
	}
	if summary.DegreesOfFreedom <= 0 || summary.PValue == nil {
		tst.Error("no p-value for inverse variance weights", summary.DegreesOfFreedom)
	}
	if summary.Unweighted != 0 {
		tst.Error("entries without variance", summary.Unweighted)
	}

	// one entry without a variance falls back to the matrix weight
	j = newJob("../../problem/testdata/small.distvar", problem.DistVarFormat)
	summary, _, err = run(context.Background(), j)
	if err != nil {
		tst.Fatal("Error running on distvar:", err)
	}
	if summary.Unweighted != 1 || summary.PValue != nil {
		tst.Error("p-value with mixed weights", summary.Unweighted, summary.PValue)
	}
}

func TestRunErrors(tst *testing.T) {
	j := newJob("search.yaml", problem.ProblemFormat)
	if _, _, err := run(context.Background(), j); err == nil {
		tst.Error("no error for a malformed problem")
	}
	j = newJob("genes.txt", problem.ProblemFormat)
	j.ov.moves = "tbr"
	if _, _, err := run(context.Background(), j); err == nil {
		tst.Error("no error for bad settings")
	}
	j = newJob("genes.txt", problem.ProblemFormat)
	j.start = "testdata/missing.nwk"
	if _, _, err := run(context.Background(), j); err == nil {
		tst.Error("no error for a missing start tree")
	}
}

func TestPlot(tst *testing.T) {
	fn := filepath.Join(tst.TempDir(), "trajectory.png")
	steps := []optimize.Step{{Iteration: 1, Score: 3}, {Iteration: 2, Score: 1.5}, {Iteration: 3, Score: 1}}
	if err := plotTrajectory(steps, fn); err != nil {
		tst.Fatal("Error plotting:", err)
	}
	if st, err := os.Stat(fn); err != nil || st.Size() == 0 {
		tst.Error("plot not written", err)
	}
	if err := plotTrajectory(nil, fn); err == nil {
		tst.Error("no error for an empty trajectory")
	}
}
