package hpt

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	cverrors "github.com/copyleftdev/cvtune/internal/errors"
	"github.com/copyleftdev/cvtune/internal/optimization"
)

// Result is the outcome of a tuning run.
type Result[M any] struct {
	// BestObjective is the best cross-validation score, in the routine's own
	// sign convention.
	BestObjective float64
	// BestParameters are the free slot values that produced it.
	BestParameters []float64
	// BestArgs is the full argument list, bound arguments included.
	BestArgs []any
	// BestModel is the model trained for BestArgs.
	BestModel M
	// Evaluations counts calls into the cross-validation routine.
	Evaluations int
	// Optimizer is the optimizer's own report, nil when nothing was free.
	Optimizer *optimization.OptimizationResult
}

// Tuner searches the hyperparameters of a learner with any
// optimization.Optimizer.
type Tuner[M any] struct {
	cv       CrossValidation[M]
	maximize bool

	logger    *zap.Logger
	observers []Observer
}

// NewTuner creates a tuner over cv.
func NewTuner[M any](cv CrossValidation[M], opts ...Option) *Tuner[M] {
	s := newSettings(opts)
	return &Tuner[M]{
		cv:        cv,
		maximize:  s.maximize,
		logger:    s.logger.Named("tuner"),
		observers: s.observers,
	}
}

// Tune runs opt over space. Config carries the optimizer settings; its
// objective, bounds and candidates are filled in from space. Free slots
// with a value set are snapped to the nearest candidate, so continuous
// optimizers only ever evaluate listed values.
func (t *Tuner[M]) Tune(ctx context.Context, opt optimization.Optimizer, config optimization.OptimizerConfig, space SearchSpace) (*Result[M], error) {
	const op = "Tuner.Tune"

	if err := space.Validate(); err != nil {
		return nil, err
	}

	target := t.cv
	if t.maximize {
		target = negated[M]{t.cv}
	}

	fn, err := NewCVFunction[M](target, len(space), space.BoundArguments(),
		WithLogger(t.logger),
		WithObserver(t.report),
	)
	if err != nil {
		return nil, err
	}

	candidates := space.Candidates()
	config.Objective = func(x []float64) (float64, error) {
		return fn.Evaluate(snap(x, candidates))
	}
	config.Bounds = space.Bounds()
	config.Candidates = candidates

	t.logger.Info("Starting tuning run",
		zap.Int("total_args", fn.Plan().TotalArgs()),
		zap.Int("free_args", fn.Plan().NumParameters()),
		zap.Bool("maximize", t.maximize),
	)

	var optResult *optimization.OptimizationResult
	if fn.Plan().NumParameters() == 0 {
		// Nothing to search: a single evaluation of the bound arguments.
		if _, err := fn.Evaluate(nil); err != nil {
			return nil, err
		}
	} else {
		optResult, err = opt.Optimize(ctx, config)
		if err != nil {
			return nil, cverrors.Wrap(err, "optimizer failed").WithOperation(op).WithComponent(component)
		}
	}

	best, err := fn.BestObjective()
	if err != nil {
		return nil, err
	}
	params, err := fn.BestParameters()
	if err != nil {
		return nil, err
	}
	args, err := fn.Plan().Assemble(params)
	if err != nil {
		return nil, err
	}
	model, err := fn.TakeBestModel()
	if err != nil {
		return nil, err
	}

	if t.maximize {
		best = -best
	}

	t.logger.Info("Tuning run finished",
		zap.Float64("best_objective", best),
		zap.Float64s("best_parameters", params),
		zap.Int("evaluations", fn.Evaluations()),
	)

	return &Result[M]{
		BestObjective:  best,
		BestParameters: params,
		BestArgs:       args,
		BestModel:      model,
		Evaluations:    fn.Evaluations(),
		Optimizer:      optResult,
	}, nil
}

// report forwards a trial to the observers in the routine's own sign
// convention.
func (t *Tuner[M]) report(trial Trial) {
	if t.maximize {
		trial.Objective = -trial.Objective
	}
	for _, o := range t.observers {
		o(trial)
	}
}

// negated flips the sign of a higher-is-better score.
type negated[M any] struct {
	cv CrossValidation[M]
}

func (n negated[M]) Evaluate(args ...any) (float64, error) {
	s, err := n.cv.Evaluate(args...)
	return -s, err
}

func (n negated[M]) Model() M { return n.cv.Model() }

func (n negated[M]) BuildModel() (M, error) { return modelOf(n.cv) }

// snap moves each coordinate with a candidate set onto its nearest value.
func snap(x []float64, candidates [][]float64) []float64 {
	if candidates == nil {
		return x
	}
	out := append([]float64(nil), x...)
	for i, set := range candidates {
		if len(set) == 0 {
			continue
		}
		j := sort.SearchFloat64s(set, x[i])
		switch {
		case j == 0:
			out[i] = set[0]
		case j == len(set):
			out[i] = set[len(set)-1]
		case math.Abs(set[j]-x[i]) < math.Abs(x[i]-set[j-1]):
			out[i] = set[j]
		default:
			out[i] = set[j-1]
		}
	}
	return out
}
