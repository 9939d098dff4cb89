/*

Minsq finds a least-squares supertree: a single unrooted tree with
branch lengths whose path lengths fit the distances of many input trees
or distance matrices in the weighted least-squares sense.

The basic usage of minsq looks like this:

	minsq problem.txt

, this will build a neighbor joining tree and improve it with nearest
neighbor interchanges. Gene trees can be read directly:

	minsq -format newick -moves all -starts 4 genes.nwk

To see all the options run:

	minsq -h

*/
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/op/go-logging"
	bolt "go.etcd.io/bbolt"
	"gopkg.in/alecthomas/kingpin.v2"

	"bitbucket.org/Davydov/minsq/checkpoint"
	"bitbucket.org/Davydov/minsq/distance"
	"bitbucket.org/Davydov/minsq/optimize"
	"bitbucket.org/Davydov/minsq/problem"
	"bitbucket.org/Davydov/minsq/tree"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("minsq")
var formatter = logging.MustStringFormatter(`%{message}`)

// modules are the loggers controlled by -loglevel.
var modules = []string{"minsq", "optimize", "lsq", "distance", "problem", "checkpoint"}

// command-line options
var (
	// application
	app = kingpin.New("minsq", "least-squares supertree search").Version(version)

	// input
	inputFileName = app.Arg("input", "problem, gene tree or distance/variance file").Required().ExistingFile()
	format        = app.Flag("format", "input format (problem, newick, nexus, distvar)").
			Default("problem").Enum("problem", "newick", "nexus", "distvar")
	startF  = app.Flag("start", "guide tree, neighbor joining tree by default").ExistingFile()
	configF = app.Flag("config", "YAML file with search settings").ExistingFile()
	scale   = app.Flag("scale", "multiply all the distances by this factor").Default("1").Float64()

	// search parameters, zero keeps the config value
	moves        = app.Flag("moves", "tree rearrangements (nni, spr, all)").Enum("nni", "spr", "all")
	radius       = app.Flag("radius", "maximal SPR regraft distance").Int()
	iterations   = app.Flag("iter", "maximal number of accepted moves per chain").Int()
	restarts     = app.Flag("restarts", "number of perturbation restarts per chain").Default("-1").Int()
	starts       = app.Flag("starts", "number of independent search chains").Int()
	perturb      = app.Flag("perturb", "number of random NNIs per restart").Default("-1").Int()
	sample       = app.Flag("sample", "evaluate at most N random candidates per iteration").Default("-1").Int()
	tolerance    = app.Flag("tol", "relative improvement required to accept a move").Float64()
	timeLimit    = app.Flag("timelimit", "stop the search after this time (e.g. 10m)").Duration()
	keepTopology = app.Flag("keep-topology", "only fit branch lengths of the starting tree").Bool()
	refine       = app.Flag("refine", "polish final branch lengths with L-BFGS-B").Bool()
	report       = app.Flag("report", "report every N accepted moves").Default("1").Int()
	quiet        = app.Flag("quiet", "only log warnings, do not write the trajectory").Bool()

	// technical
	nThreads          = app.Flag("nt", "number of threads to use").Int()
	seed              = app.Flag("seed", "random generator seed, the config value by default").Default("-1").Int64()
	cpuProfile        = app.Flag("cpuprofile", "write cpu profile to file").String()
	checkpointF       = app.Flag("checkpoint", "checkpoint database, resumes the search if it exists").String()
	checkpointSeconds = app.Flag("checkpoint-seconds", "save checkpoints at most every N seconds").Default("60").Float64()

	// output
	outLogF  = app.Flag("log", "write log to a file").String()
	outTreeF = app.Flag("out", "write the tree and the score to a file").String()
	jsonF    = app.Flag("json", "write json output to a file").String()
	trajF    = app.Flag("trajectory", "write search trajectory to a file").String()
	plotF    = app.Flag("plot", "plot search trajectory (png, svg or pdf)").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
)

// job is a single search with all its inputs.
type job struct {
	input      string
	format     problem.Format
	start      string
	config     string
	scale      float64
	ov         overrides
	quiet      bool
	report     int
	trajectory io.Writer
	cp         *checkpoint.CheckpointIO
}

// run reads the input and searches for the best tree.
func run(ctx context.Context, j *job) (*RunSummary, *optimize.Result, error) {
	summary := &RunSummary{Input: j.input, Format: j.format.String()}

	p, err := readInput(j.input, j.format)
	if err != nil {
		return nil, nil, err
	}
	summary.NObservations = len(p.Observations)

	tab, err := distance.Aggregate(p, distance.Options{Scale: j.scale})
	if err != nil {
		return nil, nil, err
	}
	log.Infof("%d of %d taxon pairs are covered", tab.Covered(), tab.Len()*(tab.Len()-1)/2)

	var start *tree.Tree
	if j.start != "" {
		if start, err = readStart(j.start, p.Taxa); err != nil {
			return nil, nil, err
		}
		summary.StartingTree = start.String()
	}

	settings, err := loadSettings(j.config)
	if err != nil {
		return nil, nil, err
	}
	j.ov.apply(&settings)
	summary.Settings = settings
	summary.Seed = settings.Seed
	log.Infof("Search settings: %+v", settings)

	opt, err := optimize.New(tab, p.Taxa, settings)
	if err != nil {
		return nil, nil, err
	}
	opt.Quiet = j.quiet
	opt.SetReportPeriod(j.report)
	if j.trajectory != nil {
		opt.SetOutput(j.trajectory)
	}
	if j.cp != nil {
		opt.SetCheckpoint(j.cp)
	}

	res, err := opt.Run(ctx, start)
	if err != nil {
		return nil, nil, err
	}
	if res.Exhausted {
		log.Warning("Search budget exhausted, the tree may not be a local optimum")
	}
	log.Infof("outtree=%s", res.Tree)
	log.Noticef("score=%v", res.Score)
	summary.fill(tab, res, j.format == problem.DistVarFormat)
	return summary, res, nil
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	// logging
	logging.SetFormatter(formatter)

	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		defer f.Close()
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	if *quiet {
		level = logging.WARNING
	}
	for _, module := range modules {
		logging.SetLevel(level, module)
	}

	// print revision
	log.Info(version)

	// print commandline
	log.Info("Command line:", os.Args)

	runtime.GOMAXPROCS(*nThreads)
	effectiveNThreads := runtime.GOMAXPROCS(0)
	log.Infof("Using threads: %d.", effectiveNThreads)

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	j := &job{
		input:  *inputFileName,
		format: problem.ParseFormat[*format],
		start:  *startF,
		config: *configF,
		scale:  *scale,
		ov: overrides{
			moves:        *moves,
			radius:       *radius,
			iterations:   *iterations,
			restarts:     *restarts,
			starts:       *starts,
			perturb:      *perturb,
			sample:       *sample,
			workers:      *nThreads,
			tolerance:    *tolerance,
			timeLimit:    *timeLimit,
			seed:         *seed,
			keepTopology: *keepTopology,
			refine:       *refine,
		},
		quiet:  *quiet,
		report: *report,
	}

	if *trajF != "" {
		f, err := os.Create(*trajF)
		if err != nil {
			log.Fatal("Error creating trajectory file:", err)
		}
		defer f.Close()
		j.trajectory = f
	}

	if *checkpointF != "" {
		db, err := bolt.Open(*checkpointF, 0666, &bolt.Options{Timeout: time.Second})
		if err != nil {
			log.Fatal("Error opening checkpoint database:", err)
		}
		defer db.Close()
		j.cp = checkpoint.NewCheckpointIO(db, []byte(*inputFileName), *checkpointSeconds)
	}

	// interrupted searches return the best tree so far
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()
	summary, res, err := run(ctx, j)
	if err != nil {
		log.Fatal(err)
	}
	summary.NThreads = effectiveNThreads
	summary.Version = version
	summary.CommandLine = os.Args

	out := os.Stdout
	if *outTreeF != "" {
		f, err := os.Create(*outTreeF)
		if err != nil {
			log.Fatal("Error creating tree output file:", err)
		}
		defer f.Close()
		out = f
	}
	if err := writeResult(out, res); err != nil {
		log.Fatal("Error writing the result:", err)
	}

	if *plotF != "" {
		if err := plotTrajectory(res.Trajectory, *plotF); err != nil {
			log.Error("Error plotting trajectory:", err)
		}
	}

	log.Noticef("Running time: %v", time.Since(startTime))

	// output summary in json format
	if *jsonF != "" {
		if err := summary.writeJSON(*jsonF); err != nil {
			log.Error("Error writing json output:", err)
		}
	}
}
