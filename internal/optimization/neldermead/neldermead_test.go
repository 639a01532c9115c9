package neldermead

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/cvtune/internal/optimization"
)

func TestNelderMeadQuadratic(t *testing.T) {
	config := optimization.OptimizerConfig{
		Objective: func(x []float64) (float64, error) {
			return (x[0]-1)*(x[0]-1) + (x[1]+2)*(x[1]+2), nil
		},
		Bounds:        [][2]float64{{-5, 5}, {-5, 5}},
		MaxIterations: 500,
	}

	nm := NewNelderMead(nil)
	result, err := nm.Optimize(context.Background(), config)
	require.NoError(t, err)
	require.NotNil(t, result.BestSolution)

	assert.InDelta(t, 0, result.BestSolution.Value, 1e-2)
	assert.InDelta(t, 1, result.BestSolution.Parameters[0], 0.1)
	assert.InDelta(t, -2, result.BestSolution.Parameters[1], 0.1)
}

func TestNelderMeadStaysInBounds(t *testing.T) {
	config := optimization.OptimizerConfig{
		Objective: func(x []float64) (float64, error) {
			return x[0], nil
		},
		Bounds:        [][2]float64{{2, 4}},
		MaxIterations: 100,
	}

	nm := NewNelderMead(nil)
	result, err := nm.Optimize(context.Background(), config)
	require.NoError(t, err)

	for _, e := range result.History {
		assert.GreaterOrEqual(t, e.Solution.Parameters[0], 2.0)
		assert.LessOrEqual(t, e.Solution.Parameters[0], 4.0)
	}
	assert.InDelta(t, 2, result.BestSolution.Value, 1e-9)
}

func TestNelderMeadObjectiveError(t *testing.T) {
	errFail := errors.New("training diverged")
	calls := 0
	config := optimization.OptimizerConfig{
		Objective: func(x []float64) (float64, error) {
			calls++
			if calls == 2 {
				return 0, errFail
			}
			return x[0] * x[0], nil
		},
		Bounds:        [][2]float64{{-1, 1}},
		MaxIterations: 100,
	}

	result, err := NewNelderMead(nil).Optimize(context.Background(), config)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, errFail)
	assert.Equal(t, 2, calls, "no evaluation after the failure")
}

func TestNelderMeadInvalidConfig(t *testing.T) {
	_, err := NewNelderMead(nil).Optimize(context.Background(), optimization.OptimizerConfig{})
	assert.ErrorIs(t, err, optimization.ErrInvalidConfig)
}
