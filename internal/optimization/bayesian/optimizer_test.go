package bayesian

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/cvtune/internal/optimization"
)

func quadratic(x []float64) (float64, error) {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum, nil
}

func TestNewBayesianOptimizer(t *testing.T) {
	tests := []struct {
		name           string
		config         optimization.OptimizerConfig
		wantInitial    int
		wantIterations int
	}{
		{
			name: "valid configuration",
			config: optimization.OptimizerConfig{
				Objective:      quadratic,
				Bounds:         [][2]float64{{0, 1}},
				MaxIterations:  10,
				NInitialPoints: 5,
			},
			wantInitial:    5,
			wantIterations: 10,
		},
		{
			name: "default values",
			config: optimization.OptimizerConfig{
				Objective: quadratic,
				Bounds:    [][2]float64{{0, 1}},
			},
			wantInitial:    defaultInitialPoints,
			wantIterations: defaultIterations,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bo, err := NewBayesianOptimizer(tt.config, nil)
			require.NoError(t, err)
			require.NotNil(t, bo)

			assert.NotNil(t, bo.acquisition)
			assert.NotNil(t, bo.rng)
			assert.Equal(t, tt.wantInitial, bo.config.NInitialPoints)
			assert.Equal(t, tt.wantIterations, bo.config.MaxIterations)
		})
	}
}

func TestBayesianOptimizer(t *testing.T) {
	config := optimization.OptimizerConfig{
		Objective:      quadratic,
		Bounds:         [][2]float64{{-10, 10}},
		MaxIterations:  15,
		NInitialPoints: 5,
		RandomSeed:     42,
	}

	bo, err := NewBayesianOptimizer(config, nil)
	require.NoError(t, err)

	result, err := bo.Optimize(context.Background(), config)
	require.NoError(t, err)
	require.NotNil(t, result.BestSolution)

	assert.Less(t, result.BestSolution.Value, 1.0, "should find minimum near 0")
	assert.Len(t, result.History, config.MaxIterations+config.NInitialPoints)

	found := false
	for i, eval := range result.History {
		assert.Equal(t, i, eval.Iteration, "history should be in order")
		require.NotNil(t, eval.Solution)
		assert.GreaterOrEqual(t, eval.Solution.Parameters[0], -10.0)
		assert.LessOrEqual(t, eval.Solution.Parameters[0], 10.0)
		assert.GreaterOrEqual(t, eval.Solution.Value, result.BestSolution.Value)
		if eval.Solution.Value == result.BestSolution.Value {
			found = true
		}
	}
	assert.True(t, found, "best solution should be in history")
	assert.Equal(t, result.BestSolution, bo.GetBestSolution())
}

func TestBayesianOptimizerInfiniteValues(t *testing.T) {
	// Points below 1 are infeasible.
	objective := func(x []float64) (float64, error) {
		if x[0] < 1.0 {
			return math.Inf(1), nil
		}
		return x[0] * x[0], nil
	}

	config := optimization.OptimizerConfig{
		Objective:      objective,
		Bounds:         [][2]float64{{0, 2}},
		MaxIterations:  25,
		NInitialPoints: 5,
		RandomSeed:     42,
	}

	bo, err := NewBayesianOptimizer(config, nil)
	require.NoError(t, err)

	result, err := bo.Optimize(context.Background(), config)
	require.NoError(t, err)

	assert.False(t, math.IsInf(result.BestSolution.Value, 1), "should find a feasible point")
	assert.GreaterOrEqual(t, result.BestSolution.Parameters[0], 1.0)
}

func TestBayesianOptimizerDeterministic(t *testing.T) {
	config := optimization.OptimizerConfig{
		Objective: func(x []float64) (float64, error) {
			return math.Sin(x[0]) + math.Cos(x[1]), nil
		},
		Bounds:         [][2]float64{{-3, 3}, {-3, 3}},
		MaxIterations:  5,
		NInitialPoints: 5,
		RandomSeed:     7,
	}

	run := func() []optimization.Evaluation {
		bo, err := NewBayesianOptimizer(config, nil)
		require.NoError(t, err)
		result, err := bo.Optimize(context.Background(), config)
		require.NoError(t, err)
		return result.History
	}

	assert.Equal(t, run(), run())
}

func TestBayesianOptimizerObjectiveError(t *testing.T) {
	errTrain := errors.New("cannot train")
	calls := 0
	config := optimization.OptimizerConfig{
		Objective: func(x []float64) (float64, error) {
			calls++
			if calls == 3 {
				return 0, errTrain
			}
			return x[0], nil
		},
		Bounds:         [][2]float64{{0, 1}},
		MaxIterations:  5,
		NInitialPoints: 5,
		RandomSeed:     1,
	}

	bo, err := NewBayesianOptimizer(config, nil)
	require.NoError(t, err)

	result, err := bo.Optimize(context.Background(), config)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, errTrain)
	assert.Equal(t, 3, calls, "no evaluation after the failure")

	history := bo.GetHistory()
	require.Len(t, history, 3)
	assert.Equal(t, errTrain, history[2].Error)
}

func TestBayesianOptimizerInvalidConfig(t *testing.T) {
	bo, err := NewBayesianOptimizer(optimization.OptimizerConfig{}, nil)
	require.NoError(t, err)

	_, err = bo.Optimize(context.Background(), optimization.OptimizerConfig{Objective: quadratic})
	assert.ErrorIs(t, err, optimization.ErrInvalidConfig)
}

func TestBayesianOptimizerObservationLimit(t *testing.T) {
	_, err := NewBayesianOptimizer(optimization.OptimizerConfig{
		NInitialPoints: 10,
		MaxIterations:  MaxObservations,
	}, nil)
	assert.ErrorIs(t, err, optimization.ErrInvalidConfig)

	bo, err := NewBayesianOptimizer(optimization.OptimizerConfig{}, nil)
	require.NoError(t, err)
	_, err = bo.Optimize(context.Background(), optimization.OptimizerConfig{
		Objective:      quadratic,
		Bounds:         [][2]float64{{-1, 1}},
		NInitialPoints: MaxObservations + 1,
	})
	assert.ErrorIs(t, err, optimization.ErrInvalidConfig)
}

func TestBayesianOptimizerCancel(t *testing.T) {
	config := optimization.OptimizerConfig{
		Objective:      quadratic,
		Bounds:         [][2]float64{{-10, 10}},
		MaxIterations:  100,
		NInitialPoints: 5,
	}

	bo, err := NewBayesianOptimizer(config, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := bo.Optimize(ctx, config)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

func TestLatinHypercubeSampling(t *testing.T) {
	const n = 10
	bo, err := NewBayesianOptimizer(optimization.OptimizerConfig{
		Bounds:     [][2]float64{{-2, 2}, {0, 5}},
		RandomSeed: 42,
	}, nil)
	require.NoError(t, err)

	samples := bo.latinHypercubeSample(n)
	require.Len(t, samples, n)

	// One point per stratum in every dimension.
	for dim := 0; dim < 2; dim++ {
		bins := make([]bool, n)
		for _, s := range samples {
			require.Len(t, s, 2)
			assert.GreaterOrEqual(t, s[dim], 0.0)
			assert.Less(t, s[dim], 1.0)

			bin := int(float64(n) * s[dim])
			assert.False(t, bins[bin], "should have only one point per bin")
			bins[bin] = true
		}
	}
}

func TestScaleRoundTrip(t *testing.T) {
	bo, err := NewBayesianOptimizer(optimization.OptimizerConfig{
		Bounds: [][2]float64{{-2, 2}, {10, 20}, {3, 3}},
	}, nil)
	require.NoError(t, err)

	x := bo.scale([]float64{0.25, 0.5, 0.9})
	assert.InDeltaSlice(t, []float64{-1, 15, 3}, x, 1e-12)
	assert.InDeltaSlice(t, []float64{0.25, 0.5, 0}, bo.unscale(x), 1e-12)
}
