package hpt_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/cvtune/internal/cv"
	"github.com/copyleftdev/cvtune/internal/hpt"
	"github.com/copyleftdev/cvtune/internal/model/ridge"
	"github.com/copyleftdev/cvtune/internal/optimization"
	"github.com/copyleftdev/cvtune/internal/optimization/grid"
	"github.com/copyleftdev/cvtune/internal/optimization/neldermead"
)

// bowl scores (x-2)² + (y+1)² for arguments (label, x, y) and keeps the
// last arguments as its model.
type bowl struct {
	last []any
	fail bool
}

func (b *bowl) Evaluate(args ...any) (float64, error) {
	if b.fail {
		return 0, errBowl
	}
	x, err := hpt.Float(args, 1)
	if err != nil {
		return 0, err
	}
	y, err := hpt.Float(args, 2)
	if err != nil {
		return 0, err
	}
	b.last = args
	return (x-2)*(x-2) + (y+1)*(y+1), nil
}

func (b *bowl) Model() []any { return b.last }

var errBowl = errors.New("bowl failed")

func TestTunerGridSearch(t *testing.T) {
	space := hpt.SearchSpace{
		hpt.Fixed("label"),
		hpt.Values(0, 1, 2, 3),
		hpt.Range(-2, 0),
	}

	var trials []hpt.Trial
	tuner := hpt.NewTuner[[]any](&bowl{}, hpt.WithObserver(func(tr hpt.Trial) {
		trials = append(trials, tr)
	}))

	result, err := tuner.Tune(context.Background(), grid.NewGridSearch(nil),
		optimization.OptimizerConfig{GridSize: 3}, space)
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.BestObjective)
	assert.Equal(t, []float64{2, -1}, result.BestParameters)
	assert.Equal(t, []any{"label", 2.0, -1.0}, result.BestArgs)
	assert.Equal(t, []any{"label", 2.0, -1.0}, result.BestModel)
	assert.Equal(t, 12, result.Evaluations)
	require.NotNil(t, result.Optimizer)
	assert.Len(t, result.Optimizer.History, 12)
	assert.Len(t, trials, 12)
}

func TestTunerSnapsToCandidates(t *testing.T) {
	space := hpt.SearchSpace{
		hpt.Fixed("label"),
		hpt.Values(0, 1.5, 3),
		hpt.Range(-3, 1),
	}

	var seen []float64
	tuner := hpt.NewTuner[[]any](&bowl{}, hpt.WithObserver(func(tr hpt.Trial) {
		seen = append(seen, tr.Parameters[0])
	}))

	config := optimization.OptimizerConfig{MaxIterations: 200}
	result, err := tuner.Tune(context.Background(), neldermead.NewNelderMead(nil), config, space)
	require.NoError(t, err)

	for _, x := range seen {
		assert.Contains(t, []float64{0, 1.5, 3}, x)
	}
	assert.Equal(t, 1.5, result.BestParameters[0])
	assert.InDelta(t, -1, result.BestParameters[1], 0.05)
}

func TestTunerNothingFree(t *testing.T) {
	b := &bowl{}
	tuner := hpt.NewTuner[[]any](b)

	space := hpt.SearchSpace{hpt.Fixed("label"), hpt.Fixed(2.0), hpt.Fixed(0.0)}
	result, err := tuner.Tune(context.Background(), grid.NewGridSearch(nil), optimization.OptimizerConfig{}, space)
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.BestObjective)
	assert.Empty(t, result.BestParameters)
	assert.Equal(t, 1, result.Evaluations)
	assert.Nil(t, result.Optimizer)
}

func TestTunerPropagatesEvaluationErrors(t *testing.T) {
	tuner := hpt.NewTuner[[]any](&bowl{fail: true})
	space := hpt.SearchSpace{hpt.Fixed("label"), hpt.Range(0, 1), hpt.Range(0, 1)}

	_, err := tuner.Tune(context.Background(), grid.NewGridSearch(nil), optimization.OptimizerConfig{}, space)
	assert.ErrorIs(t, err, errBowl)
}

func TestTunerRejectsBadSpace(t *testing.T) {
	tuner := hpt.NewTuner[[]any](&bowl{})
	_, err := tuner.Tune(context.Background(), grid.NewGridSearch(nil), optimization.OptimizerConfig{},
		hpt.SearchSpace{hpt.Range(1, 0)})
	assert.ErrorIs(t, err, hpt.ErrSearchSpace)
}

// noisyLine returns y = 3x + noise with a deterministic perturbation.
func noisyLine() *cv.Dataset {
	n := 40
	X := mat.NewDense(n, 1, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x := float64(i) / 4
		X.Set(i, 0, x)
		y.SetVec(i, 3*x+0.5*math.Sin(float64(i)*1.7))
	}
	d, _ := cv.NewDataset(X, y)
	return d
}

func TestTunerRidgeKFold(t *testing.T) {
	learner := cv.LearnerFunc[*ridge.Model](ridge.Train)

	kfold, err := cv.NewKFoldCV[*ridge.Model](learner, cv.MSE, noisyLine(), 5, cv.WithShuffle(1))
	require.NoError(t, err)

	space := hpt.SearchSpace{hpt.Values(0, 0.1, 1, 10, 1000), hpt.Fixed(true)}
	result, err := hpt.NewTuner[*ridge.Model](kfold).
		Tune(context.Background(), grid.NewGridSearch(nil), optimization.OptimizerConfig{}, space)
	require.NoError(t, err)

	require.NotNil(t, result.BestModel)
	assert.NotEqual(t, 1000.0, result.BestModel.Lambda, "heavy shrinkage loses")
	assert.InDelta(t, 3, result.BestModel.Weights.AtVec(0), 0.2)
	assert.Equal(t, result.BestParameters[0], result.BestModel.Lambda)
	assert.Equal(t, true, result.BestArgs[1])
}

func TestTunerMaximize(t *testing.T) {
	learner := cv.LearnerFunc[*ridge.Model](ridge.Train)
	simple, err := cv.NewSimpleCV[*ridge.Model](learner, cv.R2, noisyLine(), 0.25, cv.WithShuffle(3))
	require.NoError(t, err)

	var reported []float64
	tuner := hpt.NewTuner[*ridge.Model](simple, hpt.Maximize(), hpt.WithObserver(func(tr hpt.Trial) {
		reported = append(reported, tr.Objective)
	}))

	space := hpt.SearchSpace{hpt.Values(0.01, 1e6), hpt.Values(0, 1)}
	result, err := tuner.Tune(context.Background(), grid.NewGridSearch(nil), optimization.OptimizerConfig{}, space)
	require.NoError(t, err)

	assert.Greater(t, result.BestObjective, 0.9)
	assert.Equal(t, 0.01, result.BestModel.Lambda)
	for _, r := range reported {
		assert.LessOrEqual(t, r, result.BestObjective)
	}
}
