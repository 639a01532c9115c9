package tuning

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/cvtune/internal/config"
	"github.com/copyleftdev/cvtune/internal/cv"
	cverrors "github.com/copyleftdev/cvtune/internal/errors"
	"github.com/copyleftdev/cvtune/internal/hpt"
	"github.com/copyleftdev/cvtune/internal/optimization"
	"github.com/copyleftdev/cvtune/internal/optimization/grid"
	"github.com/copyleftdev/cvtune/internal/optimization/mayfly"
)

// ErrInvalidRequest is returned for requests that cannot be turned into a
// job.
var ErrInvalidRequest = cverrors.Sentinel("invalid tuning request")

func invalidf(format string, args ...interface{}) error {
	return cverrors.Wrapf(ErrInvalidRequest, format, args...).
		WithComponent("tuning").
		WithKind(cverrors.KindConfiguration)
}

// CVSpec selects the cross-validation routine.
type CVSpec struct {
	// Method is "kfold" (default) or "simple".
	Method         string  `json:"method,omitempty"`
	Folds          int     `json:"folds,omitempty"`
	ValidationSize float64 `json:"validation_size,omitempty"`
	Shuffle        bool    `json:"shuffle,omitempty"`
	Seed           int64   `json:"seed,omitempty"`
}

// Request is everything needed to tune one learner on one data set.
type Request struct {
	Learner   string `json:"learner"`
	Optimizer string `json:"optimizer,omitempty"`
	// Metric is mse (default), mae or r2. r2 is maximized.
	Metric string `json:"metric,omitempty"`

	X [][]float64 `json:"x"`
	Y []float64   `json:"y"`

	CV   CVSpec             `json:"cv"`
	Args map[string]ArgSpec `json:"args"`

	MaxIterations int   `json:"max_iterations,omitempty"`
	InitialPoints int   `json:"initial_points,omitempty"`
	GridSize      int   `json:"grid_size,omitempty"`
	Population    int   `json:"population,omitempty"`
	Seed          int64 `json:"seed,omitempty"`
}

// Defaults fill the fields a request leaves empty.
type Defaults struct {
	Optimizer      string
	MaxIterations  int
	InitialPoints  int
	GridSize       int
	Folds          int
	ValidationSize float64
	Population     int
	Seed           int64
}

// DefaultsFromConfig reads the tuning section of the service configuration.
func DefaultsFromConfig(cfg *config.Config) Defaults {
	t := cfg.Tuning
	return Defaults{
		Optimizer:      t.Optimizer,
		MaxIterations:  t.MaxIterations,
		InitialPoints:  t.InitialPoints,
		GridSize:       t.GridSize,
		Folds:          t.Folds,
		ValidationSize: t.ValidationSize,
		Population:     t.Population,
		Seed:           t.Seed,
	}
}

func (r Request) withDefaults(d Defaults) Request {
	if r.Optimizer == "" {
		r.Optimizer = d.Optimizer
	}
	if r.Metric == "" {
		r.Metric = "mse"
	}
	r.Metric = strings.ToLower(r.Metric)
	if r.CV.Method == "" {
		r.CV.Method = "kfold"
	}
	if r.CV.Folds == 0 {
		r.CV.Folds = d.Folds
	}
	if r.CV.ValidationSize == 0 {
		r.CV.ValidationSize = d.ValidationSize
	}
	if r.MaxIterations == 0 {
		r.MaxIterations = d.MaxIterations
	}
	if r.InitialPoints == 0 {
		r.InitialPoints = d.InitialPoints
	}
	if r.GridSize == 0 {
		r.GridSize = d.GridSize
	}
	if r.Population == 0 {
		r.Population = d.Population
	}
	if r.Seed == 0 {
		r.Seed = d.Seed
	}
	return r
}

// Job is a validated request, ready to run once.
type Job struct {
	Request Request

	learner   Learner
	space     hpt.SearchSpace
	routine   hpt.CrossValidation[cv.Predictor]
	optimizer optimization.Optimizer
	config    optimization.OptimizerConfig
	maximize  bool
	budget    int
	logger    *zap.Logger
}

// Prepare validates req and builds the cross-validation routine, the search
// space and the optimizer of the job.
func Prepare(req Request, d Defaults, logger *zap.Logger) (*Job, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	req = req.withDefaults(d)
	if err := req.checkLimits(); err != nil {
		return nil, err
	}

	learner, err := LookupLearner(req.Learner)
	if err != nil {
		return nil, err
	}

	space, err := searchSpace(learner, req.Args)
	if err != nil {
		return nil, err
	}

	data, err := dataset(req.X, req.Y)
	if err != nil {
		return nil, err
	}

	metric, maximize, ok := cv.MetricByName(req.Metric)
	if !ok {
		return nil, invalidf("unknown metric %q", req.Metric)
	}

	var opts []cv.Option
	if req.CV.Shuffle {
		opts = append(opts, cv.WithShuffle(req.CV.Seed))
	}
	opts = append(opts, cv.WithLogger(logger))

	var routine hpt.CrossValidation[cv.Predictor]
	switch req.CV.Method {
	case "kfold":
		routine, err = cv.NewKFoldCV[cv.Predictor](learner.Train, metric, data, req.CV.Folds, opts...)
	case "simple", "holdout":
		routine, err = cv.NewSimpleCV[cv.Predictor](learner.Train, metric, data, req.CV.ValidationSize, opts...)
	default:
		return nil, invalidf("unknown cross-validation method %q", req.CV.Method)
	}
	if err != nil {
		return nil, err
	}

	config := optimization.OptimizerConfig{
		MaxIterations:  req.MaxIterations,
		NInitialPoints: req.InitialPoints,
		GridSize:       req.GridSize,
		RandomSeed:     req.Seed,
	}
	opt, err := NewOptimizer(req.Optimizer, config, req.Population, logger)
	if err != nil {
		return nil, err
	}

	job := &Job{
		Request:   req,
		learner:   learner,
		space:     space,
		routine:   routine,
		optimizer: opt,
		config:    config,
		maximize:  maximize,
		logger:    logger,
	}
	if job.budget, err = job.estimateBudget(); err != nil {
		return nil, err
	}
	return job, nil
}

// checkLimits rejects budgets that could not run in bounded memory.
func (r Request) checkLimits() error {
	if r.GridSize < 1 || r.GridSize > optimization.MaxGridSize {
		return invalidf("grid_size must be in [1, %d], got %d", optimization.MaxGridSize, r.GridSize)
	}
	if r.MaxIterations < 1 || r.MaxIterations > optimization.MaxEvaluations {
		return invalidf("max_iterations must be in [1, %d], got %d", optimization.MaxEvaluations, r.MaxIterations)
	}
	if r.InitialPoints < 0 || r.InitialPoints > optimization.MaxEvaluations {
		return invalidf("initial_points must be in [0, %d], got %d", optimization.MaxEvaluations, r.InitialPoints)
	}
	if r.Population < 0 || r.Population > mayfly.MaxPopulation {
		return invalidf("population must be in [0, %d], got %d", mayfly.MaxPopulation, r.Population)
	}
	return nil
}

func searchSpace(l Learner, args map[string]ArgSpec) (hpt.SearchSpace, error) {
	for name := range args {
		if !contains(l.Args, name) {
			return nil, invalidf("learner %s has no argument %q, expected %v", l.Name, name, l.Args)
		}
	}

	space := make(hpt.SearchSpace, len(l.Args))
	for i, name := range l.Args {
		spec, ok := args[name]
		if !ok {
			return nil, invalidf("argument %q of learner %s is not specified", name, l.Name)
		}
		dim, err := spec.Dimension()
		if err != nil {
			return nil, cverrors.Wrapf(err, "argument %q", name)
		}
		space[i] = dim
	}
	if err := space.Validate(); err != nil {
		return nil, err
	}
	return space, nil
}

func dataset(X [][]float64, y []float64) (*cv.Dataset, error) {
	if len(X) == 0 {
		return nil, invalidf("data set is empty")
	}
	p := len(X[0])
	if p == 0 {
		return nil, invalidf("data rows have no features")
	}
	flat := make([]float64, 0, len(X)*p)
	for i, row := range X {
		if len(row) != p {
			return nil, invalidf("row %d has %d features, row 0 has %d", i, len(row), p)
		}
		flat = append(flat, row...)
	}
	if len(y) != len(X) {
		return nil, invalidf("%d rows but %d responses", len(X), len(y))
	}
	return cv.NewDataset(mat.NewDense(len(X), p, flat), mat.NewVecDense(len(y), append([]float64(nil), y...)))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ArgNames returns the learner's argument names in declaration order.
func (j *Job) ArgNames() []string { return j.learner.Args }

// Optimizer returns the optimizer of the job, for progress reporting.
func (j *Job) Optimizer() optimization.Optimizer { return j.optimizer }

// Maximize reports whether the job's metric is higher-is-better.
func (j *Job) Maximize() bool { return j.maximize }

// Budget estimates the number of evaluations the job will make.
func (j *Job) Budget() int { return j.budget }

func (j *Job) estimateBudget() (int, error) {
	var n int
	switch j.Request.Optimizer {
	case "grid":
		cfg := j.config
		cfg.Bounds = j.space.Bounds()
		cfg.Candidates = j.space.Candidates()
		points, err := grid.Points(cfg)
		if err != nil {
			return 0, cverrors.Wrap(err, "grid too large").WithComponent("tuning")
		}
		return points, nil
	case "bayesian":
		n = j.config.NInitialPoints + j.config.MaxIterations
	case "mayfly":
		pop := j.Request.Population
		if pop < mayfly.MinPopulation {
			pop = mayfly.MinPopulation
		}
		if j.config.MaxIterations > optimization.MaxEvaluations/pop {
			return 0, invalidf("%d generations of %d mayflies exceed %d evaluations",
				j.config.MaxIterations, pop, optimization.MaxEvaluations)
		}
		n = j.config.MaxIterations * pop
	default:
		n = j.config.MaxIterations
	}
	if n > optimization.MaxEvaluations {
		return 0, invalidf("planned %d evaluations, the limit is %d", n, optimization.MaxEvaluations)
	}
	return n, nil
}

// Run tunes the learner. Observers see every evaluation as it completes.
func (j *Job) Run(ctx context.Context, observers ...hpt.Observer) (*hpt.Result[cv.Predictor], error) {
	opts := []hpt.Option{hpt.WithLogger(j.logger)}
	if j.maximize {
		opts = append(opts, hpt.Maximize())
	}
	for _, o := range observers {
		opts = append(opts, hpt.WithObserver(o))
	}

	return hpt.NewTuner[cv.Predictor](j.routine, opts...).Tune(ctx, j.optimizer, j.config, j.space)
}
