// Package hpt adapts cross-validation routines to numeric optimizers for
// hyperparameter search.
//
// A CVFunction merges bound constructor arguments with the values an
// optimizer proposes, in the original declaration order, evaluates the
// result with a cross-validation routine and keeps the best model seen.
package hpt

import (
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// CrossValidation trains and scores a learner for a full, ordered argument
// list. Model returns the model trained by the most recent Evaluate call and
// is only valid immediately after it.
type CrossValidation[M any] interface {
	Evaluate(args ...any) (float64, error)
	Model() M
}

// ModelBuilder is implemented by routines that train the final model on
// demand. CVFunction calls BuildModel instead of Model, and only after an
// evaluation that improves on the best score.
type ModelBuilder[M any] interface {
	BuildModel() (M, error)
}

func modelOf[M any](cv CrossValidation[M]) (M, error) {
	if b, ok := cv.(ModelBuilder[M]); ok {
		return b.BuildModel()
	}
	return cv.Model(), nil
}

// Trial describes one completed call into the cross-validation routine.
type Trial struct {
	Evaluation int
	Parameters []float64
	Args       []any
	Objective  float64
	Err        error
	Improved   bool
	Duration   time.Duration
}

// Observer is notified after every evaluation.
type Observer func(Trial)

// CVFunction is an objective function over the free hyperparameters of a
// learner. It is not safe for concurrent use; use one instance per
// optimizer loop.
type CVFunction[M any] struct {
	cv          CrossValidation[M]
	plan        *Plan
	best        tracker[M]
	evaluations int

	logger    *zap.Logger
	observers []Observer
}

// NewCVFunction builds a CVFunction over totalArgs argument slots. The
// bound arguments fix the plan for the lifetime of the function; a bad
// binding is reported here rather than on first use.
func NewCVFunction[M any](cv CrossValidation[M], totalArgs int, bound []BoundArgument, opts ...Option) (*CVFunction[M], error) {
	plan, err := NewPlan(totalArgs, bound)
	if err != nil {
		return nil, err
	}

	s := newSettings(opts)
	return &CVFunction[M]{
		cv:        cv,
		plan:      plan,
		logger:    s.logger.Named("cv_function"),
		observers: s.observers,
	}, nil
}

// Plan returns the resolved argument plan.
func (f *CVFunction[M]) Plan() *Plan { return f.plan }

// Evaluations returns the number of calls made into the cross-validation
// routine, failed ones included.
func (f *CVFunction[M]) Evaluations() int { return f.evaluations }

// Evaluate assembles the full argument list from params and the bound
// arguments and returns the cross-validation score. Errors from the
// cross-validation routine are returned unchanged.
func (f *CVFunction[M]) Evaluate(params []float64) (float64, error) {
	args, err := f.plan.Assemble(params)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	objective, err := f.cv.Evaluate(args...)
	f.evaluations++

	trial := Trial{
		Evaluation: f.evaluations,
		Parameters: append([]float64(nil), params...),
		Args:       args,
		Objective:  objective,
		Err:        err,
		Duration:   time.Since(start),
	}

	if err != nil {
		f.logger.Debug("Evaluation failed",
			zap.Int("evaluation", trial.Evaluation),
			zap.Float64s("parameters", trial.Parameters),
			zap.Error(err),
		)
		f.notify(trial)
		return objective, err
	}

	trial.Improved, err = f.best.offer(objective, params, func() (M, error) {
		return modelOf(f.cv)
	})
	if err != nil {
		f.logger.Debug("Building the best model failed",
			zap.Int("evaluation", trial.Evaluation),
			zap.Float64s("parameters", trial.Parameters),
			zap.Error(err),
		)
		trial.Err = err
		f.notify(trial)
		return objective, err
	}
	if trial.Improved {
		f.logger.Debug("New best model",
			zap.Int("evaluation", trial.Evaluation),
			zap.Float64("objective", objective),
			zap.Float64s("parameters", trial.Parameters),
		)
	}
	f.notify(trial)

	return objective, nil
}

// EvaluateMat evaluates the column vector params. A nil matrix stands for
// an empty parameter vector.
func (f *CVFunction[M]) EvaluateMat(params mat.Matrix) (float64, error) {
	if params == nil {
		return f.Evaluate(nil)
	}
	r, c := params.Dims()
	if c != 1 {
		return 0, usageError("CVFunction.EvaluateMat", ErrParameterCount,
			"expected a column vector, got %dx%d", r, c)
	}
	return f.Evaluate(mat.Col(nil, 0, params))
}

// BestObjective returns the lowest score seen so far.
func (f *CVFunction[M]) BestObjective() (float64, error) {
	return f.best.best()
}

// BestParameters returns a copy of the parameter vector that produced the
// best score.
func (f *CVFunction[M]) BestParameters() ([]float64, error) {
	return f.best.bestParams()
}

// BestModel returns the best model without giving it up.
func (f *CVFunction[M]) BestModel() (M, error) {
	return f.best.peek()
}

// TakeBestModel transfers the best model to the caller.
func (f *CVFunction[M]) TakeBestModel() (M, error) {
	return f.best.take()
}

func (f *CVFunction[M]) notify(t Trial) {
	for _, o := range f.observers {
		o(t)
	}
}
