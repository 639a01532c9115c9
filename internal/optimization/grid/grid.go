// Package grid implements exhaustive grid search.
package grid

import (
	"context"

	"go.uber.org/zap"

	"github.com/copyleftdev/cvtune/internal/optimization"
)

// DefaultGridSize is the number of points per continuous dimension when the
// configuration does not set one.
const DefaultGridSize = 10

// GridSearch evaluates every point of the cartesian product of the
// per-dimension candidates. Among equal values the first point visited wins.
type GridSearch struct {
	optimization.Recorder

	logger *zap.Logger
}

// NewGridSearch creates a grid search optimizer.
func NewGridSearch(logger *zap.Logger) *GridSearch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GridSearch{logger: logger.Named("grid_search")}
}

// Optimize runs the search. MaxIterations is ignored; the grid is always
// visited completely unless ctx is cancelled.
func (g *GridSearch) Optimize(ctx context.Context, config optimization.OptimizerConfig) (*optimization.OptimizationResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	total, err := Points(config)
	if err != nil {
		return nil, err
	}
	axes := Axes(config)

	ctx, done := g.Begin(ctx, total)
	defer done()

	g.logger.Debug("Starting grid search",
		zap.Int("dimensions", len(axes)),
		zap.Int("points", total),
	)

	idx := make([]int, len(axes))
	x := make([]float64, len(axes))
	for n := 0; n < total; n++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		for d, i := range idx {
			x[d] = axes[d][i]
		}
		if _, err := g.Evaluate(config.Objective, x); err != nil {
			return nil, err
		}

		// Advance the odometer, last dimension fastest.
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < len(axes[d]) {
				break
			}
			idx[d] = 0
		}
	}

	return g.Result(true), nil
}

// Points returns the number of grid points config describes without
// building the grid. Grids of more than optimization.MaxEvaluations points
// are a configuration error.
func Points(config optimization.OptimizerConfig) (int, error) {
	if config.GridSize < 0 || config.GridSize > optimization.MaxGridSize {
		return 0, optimization.ConfigError("grid.Points",
			"grid size %d outside [0, %d]", config.GridSize, optimization.MaxGridSize)
	}
	total := 1
	for d := range config.Bounds {
		n := axisLen(config, d)
		if n > optimization.MaxEvaluations/total {
			return 0, optimization.ConfigError("grid.Points",
				"grid has more than %d points", optimization.MaxEvaluations)
		}
		total *= n
	}
	return total, nil
}

func gridSize(config optimization.OptimizerConfig) int {
	if config.GridSize < 1 {
		return DefaultGridSize
	}
	return config.GridSize
}

func axisLen(config optimization.OptimizerConfig, d int) int {
	if config.Candidates != nil && len(config.Candidates[d]) > 0 {
		return len(config.Candidates[d])
	}
	b := config.Bounds[d]
	if n := gridSize(config); n > 1 && b[0] != b[1] {
		return n
	}
	return 1
}

// Axes returns the candidate values of every dimension: the configured
// candidate set when present, otherwise GridSize evenly spaced points over
// the bounds.
// Call Points first to check the size.
func Axes(config optimization.OptimizerConfig) [][]float64 {
	size := gridSize(config)

	axes := make([][]float64, len(config.Bounds))
	for d, b := range config.Bounds {
		if config.Candidates != nil && len(config.Candidates[d]) > 0 {
			axes[d] = append([]float64(nil), config.Candidates[d]...)
			continue
		}
		axes[d] = linspace(b[0], b[1], size)
	}
	return axes
}

func linspace(min, max float64, n int) []float64 {
	if n == 1 || min == max {
		return []float64{min + (max-min)/2}
	}
	out := make([]float64, n)
	step := (max - min) / float64(n-1)
	for i := range out {
		out[i] = min + float64(i)*step
	}
	out[n-1] = max
	return out
}
