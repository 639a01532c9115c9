// Package mayfly adapts the mayfly metaheuristic to the
// optimization.Optimizer interface.
package mayfly

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/cwbudde/mayfly"
	"go.uber.org/zap"

	cverrors "github.com/copyleftdev/cvtune/internal/errors"
	"github.com/copyleftdev/cvtune/internal/optimization"
)

const (
	// MinPopulation is the smallest population the mayfly library accepts.
	MinPopulation = 20
	// MaxPopulation is the largest population callers should request.
	MaxPopulation = 10000
)

// Mayfly runs the mayfly algorithm. The library only supports one scalar
// bound shared by every dimension, so the search runs in the unit cube and
// each point is rescaled to the configured bounds before evaluation.
type Mayfly struct {
	optimization.Recorder

	popSize int
	logger  *zap.Logger
}

// NewMayfly creates a mayfly optimizer with the given population size.
func NewMayfly(popSize int, logger *zap.Logger) *Mayfly {
	if popSize < MinPopulation {
		popSize = MinPopulation
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mayfly{popSize: popSize, logger: logger.Named("mayfly")}
}

// Optimize runs the search for config.MaxIterations generations. The
// library cannot be interrupted, so after an objective error or a
// cancellation the remaining evaluations are skipped.
func (m *Mayfly) Optimize(ctx context.Context, config optimization.OptimizerConfig) (*optimization.OptimizationResult, error) {
	const op = "Mayfly.Optimize"

	if err := config.Validate(); err != nil {
		return nil, err
	}

	iters := config.MaxIterations
	if iters < 1 {
		iters = 50
	}

	if iters > optimization.MaxEvaluations/m.popSize {
		return nil, optimization.ConfigError(op, "%d generations of %d mayflies exceed %d evaluations",
			iters, m.popSize, optimization.MaxEvaluations)
	}

	ctx, done := m.Begin(ctx, iters*m.popSize)
	defer done()

	var evalErr error
	objective := func(u []float64) float64 {
		if evalErr != nil || ctx.Err() != nil {
			return math.Inf(1)
		}
		value, err := m.Evaluate(config.Objective, scale(u, config.Bounds))
		if err != nil {
			evalErr = err
			return math.Inf(1)
		}
		return value
	}

	seed := config.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	cfg := mayfly.NewDefaultConfig()
	cfg.ObjectiveFunc = objective
	cfg.ProblemSize = len(config.Bounds)
	cfg.MaxIterations = iters
	cfg.NPop = m.popSize
	cfg.LowerBound = 0
	cfg.UpperBound = 1
	cfg.Rand = rand.New(rand.NewSource(seed))

	_, err := mayfly.Optimize(cfg)
	switch {
	case evalErr != nil:
		return nil, evalErr
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		return nil, cverrors.Wrap(err, "mayfly search failed").WithOperation(op).WithComponent("optimization")
	}

	m.logger.Debug("Mayfly search finished", zap.Int("evaluations", m.Len()))
	return m.Result(true), nil
}

// scale maps a point of the unit cube onto bounds.
func scale(u []float64, bounds [][2]float64) []float64 {
	x := make([]float64, len(u))
	for i, b := range bounds {
		t := math.Max(0, math.Min(u[i], 1))
		x[i] = b[0] + t*(b[1]-b[0])
	}
	return x
}
