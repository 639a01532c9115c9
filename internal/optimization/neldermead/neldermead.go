// Package neldermead adapts gonum's derivative-free Nelder-Mead simplex
// method to the optimization.Optimizer interface.
package neldermead

import (
	"context"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/optimize"

	cverrors "github.com/copyleftdev/cvtune/internal/errors"
	"github.com/copyleftdev/cvtune/internal/optimization"
)

// NelderMead minimizes a bounded objective with the Nelder-Mead simplex
// method. Proposed points are clamped to the bounds before evaluation.
type NelderMead struct {
	optimization.Recorder

	logger *zap.Logger
}

// NewNelderMead creates a Nelder-Mead optimizer.
func NewNelderMead(logger *zap.Logger) *NelderMead {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NelderMead{logger: logger.Named("nelder_mead")}
}

// Optimize runs the simplex search from config.Initial, or from the center
// of the bounds. MaxIterations caps the number of objective evaluations.
func (nm *NelderMead) Optimize(ctx context.Context, config optimization.OptimizerConfig) (*optimization.OptimizationResult, error) {
	const op = "NelderMead.Optimize"

	if err := config.Validate(); err != nil {
		return nil, err
	}

	ctx, done := nm.Begin(ctx, config.MaxIterations)
	defer done()

	var evalErr error
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if evalErr != nil {
				return math.Inf(1)
			}
			value, err := nm.Evaluate(config.Objective, optimization.Clamp(x, config.Bounds))
			if err != nil {
				evalErr = err
				return math.Inf(1)
			}
			return value
		},
		Status: func() (optimize.Status, error) {
			if evalErr != nil {
				return optimize.Failure, evalErr
			}
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}

	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-6,
			Relative:   1e-6,
			Iterations: 100,
		},
	}
	if config.MaxIterations > 0 {
		settings.FuncEvaluations = config.MaxIterations
	}

	method := &optimize.NelderMead{
		Reflection:  1.0,
		Expansion:   2.0,
		Contraction: 0.5,
		Shrink:      0.5,
		SimplexSize: simplexSize(config.Bounds),
	}

	start := config.Initial
	if len(start) == 0 {
		start = config.Center()
	}

	result, err := optimize.Minimize(problem, optimization.Clamp(start, config.Bounds), settings, method)
	switch {
	case evalErr != nil:
		return nil, evalErr
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil && nm.Len() == 0:
		return nil, cverrors.Wrap(err, "simplex search failed").WithOperation(op).WithComponent("optimization")
	}

	converged := result != nil && result.Status == optimize.FunctionConvergence
	nm.logger.Debug("Simplex search finished",
		zap.Int("evaluations", nm.Len()),
		zap.Bool("converged", converged),
	)
	return nm.Result(converged), nil
}

// simplexSize scales the initial simplex to a fifth of the widest dimension.
func simplexSize(bounds [][2]float64) float64 {
	width := 0.0
	for _, b := range bounds {
		width = math.Max(width, b[1]-b[0])
	}
	if width == 0 {
		return 0.2
	}
	return 0.2 * width
}
