package mayfly

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/cvtune/internal/optimization"
)

func TestMayflyRespectsPerDimensionBounds(t *testing.T) {
	config := optimization.OptimizerConfig{
		Objective: func(x []float64) (float64, error) {
			return (x[0]-15)*(x[0]-15) + (x[1]-0.3)*(x[1]-0.3), nil
		},
		Bounds:        [][2]float64{{10, 20}, {0, 1}},
		MaxIterations: 30,
		RandomSeed:    42,
	}

	m := NewMayfly(20, nil)
	result, err := m.Optimize(context.Background(), config)
	require.NoError(t, err)
	require.NotNil(t, result.BestSolution)
	require.NotEmpty(t, result.History)

	for _, e := range result.History {
		assert.GreaterOrEqual(t, e.Solution.Parameters[0], 10.0)
		assert.LessOrEqual(t, e.Solution.Parameters[0], 20.0)
		assert.GreaterOrEqual(t, e.Solution.Parameters[1], 0.0)
		assert.LessOrEqual(t, e.Solution.Parameters[1], 1.0)
	}
	assert.Less(t, result.BestSolution.Value, 1.0)
}

func TestMayflyObjectiveError(t *testing.T) {
	errFail := errors.New("cannot train")
	calls := 0
	config := optimization.OptimizerConfig{
		Objective: func([]float64) (float64, error) {
			calls++
			return 0, errFail
		},
		Bounds:        [][2]float64{{0, 1}},
		MaxIterations: 5,
		RandomSeed:    1,
	}

	result, err := NewMayfly(20, nil).Optimize(context.Background(), config)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, errFail)
	assert.Equal(t, 1, calls, "evaluations stop after the first failure")
}

func TestNewMayflyMinimumPopulation(t *testing.T) {
	assert.Equal(t, MinPopulation, NewMayfly(3, nil).popSize)
	assert.Equal(t, 40, NewMayfly(40, nil).popSize)
}

func TestScale(t *testing.T) {
	x := scale([]float64{0, 0.5, 1.2}, [][2]float64{{10, 20}, {-1, 1}, {0, 4}})
	assert.Equal(t, []float64{10, 0, 4}, x)
}

func TestMayflyRejectsOversizedBudget(t *testing.T) {
	calls := 0
	config := optimization.OptimizerConfig{
		Objective:     func([]float64) (float64, error) { calls++; return 0, nil },
		Bounds:        [][2]float64{{0, 1}},
		MaxIterations: optimization.MaxEvaluations,
	}

	_, err := NewMayfly(MaxPopulation, nil).Optimize(context.Background(), config)
	assert.ErrorIs(t, err, optimization.ErrInvalidConfig)
	assert.Zero(t, calls)
}
