package optimization

import (
	"context"
	"math"

	cverrors "github.com/copyleftdev/cvtune/internal/errors"
)

// Optimizer defines the interface for optimization algorithms
type Optimizer interface {
	// Optimize runs the optimization process
	Optimize(ctx context.Context, config OptimizerConfig) (*OptimizationResult, error)

	// GetBestSolution returns the best solution found so far
	GetBestSolution() *Solution

	// GetHistory returns the history of evaluations
	GetHistory() []Evaluation

	// Stop gracefully stops the optimization process
	Stop()
}

// OptimizerConfig contains configuration for the optimizer
type OptimizerConfig struct {
	// Objective function to minimize
	Objective ObjectiveFunction

	// Bounds for each dimension [min, max]
	Bounds [][2]float64

	// Candidates optionally restricts dimension i to a finite set of values.
	// A nil entry leaves the dimension continuous.
	Candidates [][]float64

	// Number of points per continuous dimension for grid search
	GridSize int

	// Starting point for local methods; the box center when empty
	Initial []float64

	// Maximum number of iterations
	MaxIterations int

	// Number of initial random points to evaluate
	NInitialPoints int

	// Random seed for reproducibility
	RandomSeed int64

	// Verbose logging
	Verbose bool
}

// ErrInvalidConfig is returned for configurations an optimizer cannot run.
var ErrInvalidConfig = cverrors.Sentinel("invalid optimizer configuration")

// Limits on the size of a single run.
const (
	// MaxGridSize is the largest GridSize accepted.
	MaxGridSize = 10000
	// MaxEvaluations is the largest number of evaluations a run may plan.
	MaxEvaluations = 1000000
)

// ConfigError returns a configuration error wrapping ErrInvalidConfig.
func ConfigError(op, format string, args ...interface{}) error {
	return cverrors.Wrapf(ErrInvalidConfig, format, args...).
		WithOperation(op).
		WithComponent("optimization").
		WithKind(cverrors.KindConfiguration)
}

// Validate checks the parts of the configuration shared by all optimizers.
func (c OptimizerConfig) Validate() error {
	const op = "OptimizerConfig.Validate"
	invalid := func(format string, args ...interface{}) error {
		return ConfigError(op, format, args...)
	}

	if c.GridSize < 0 || c.GridSize > MaxGridSize {
		return invalid("grid size %d outside [0, %d]", c.GridSize, MaxGridSize)
	}
	if c.MaxIterations < 0 || c.MaxIterations > MaxEvaluations {
		return invalid("max iterations %d outside [0, %d]", c.MaxIterations, MaxEvaluations)
	}
	if c.NInitialPoints < 0 || c.NInitialPoints > MaxEvaluations {
		return invalid("initial points %d outside [0, %d]", c.NInitialPoints, MaxEvaluations)
	}
	if c.Objective == nil {
		return invalid("objective function is required")
	}
	if len(c.Bounds) == 0 {
		return invalid("at least one bounded dimension is required")
	}
	for i, b := range c.Bounds {
		if math.IsNaN(b[0]) || math.IsNaN(b[1]) || b[0] > b[1] {
			return invalid("dimension %d has invalid bounds %v", i, b)
		}
	}
	if c.Candidates != nil && len(c.Candidates) != len(c.Bounds) {
		return invalid("%d candidate sets for %d dimensions", len(c.Candidates), len(c.Bounds))
	}
	if len(c.Initial) > 0 && len(c.Initial) != len(c.Bounds) {
		return invalid("initial point has %d dimensions, bounds have %d", len(c.Initial), len(c.Bounds))
	}
	return nil
}

// Center returns the midpoint of the bounds.
func (c OptimizerConfig) Center() []float64 {
	x := make([]float64, len(c.Bounds))
	for i, b := range c.Bounds {
		x[i] = b[0] + (b[1]-b[0])/2
	}
	return x
}

// Clamp returns a copy of x with every coordinate inside bounds.
func Clamp(x []float64, bounds [][2]float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = math.Max(bounds[i][0], math.Min(x[i], bounds[i][1]))
	}
	return out
}

// ObjectiveFunction defines the function to be optimized
type ObjectiveFunction func([]float64) (float64, error)

// Solution represents a solution in the optimization space
type Solution struct {
	Parameters []float64
	Value      float64
}

// Evaluation represents a single evaluation of the objective function
type Evaluation struct {
	Iteration int
	Solution  *Solution
	Error     error
}

// OptimizationResult contains the result of an optimization run
type OptimizationResult struct {
	BestSolution *Solution
	History      []Evaluation
	Iterations   int
	Converged    bool
}

// EvaluationError wraps an objective failure so callers can tell it apart
// from failures of the optimizer itself.
func EvaluationError(err error, iteration int) error {
	return cverrors.Wrapf(err, "error evaluating objective function at iteration %d", iteration).
		WithComponent("optimization")
}
