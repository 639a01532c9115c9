// Package bayesian implements Bayesian optimization with a Gaussian-process
// surrogate and the expected improvement acquisition function.
package bayesian

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/cvtune/internal/model/gpr"
	"github.com/copyleftdev/cvtune/internal/model/kernels"
	"github.com/copyleftdev/cvtune/internal/optimization"
	"github.com/copyleftdev/cvtune/internal/optimization/acquisition"
)

const (
	defaultInitialPoints = 10
	defaultIterations    = 50
	surrogateNoise       = 1e-6

	// MaxObservations bounds NInitialPoints+MaxIterations. The surrogate is
	// refit on every observation at cubic cost.
	MaxObservations = 2000
)

// BayesianOptimizer implements Bayesian Optimization. The surrogate works in
// the unit cube with standardized objective values.
type BayesianOptimizer struct {
	optimization.Recorder

	config      optimization.OptimizerConfig
	kernel      kernels.Kernel
	acquisition *acquisition.ExpectedImprovement
	rng         *rand.Rand
	logger      *zap.Logger
}

// NewBayesianOptimizer creates a new Bayesian Optimizer
func NewBayesianOptimizer(config optimization.OptimizerConfig, logger *zap.Logger) (*BayesianOptimizer, error) {
	config = withDefaults(config)
	if err := checkObservations(config); err != nil {
		return nil, err
	}

	seed := config.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// Matern 5/2 over the unit cube
	kernel, err := kernels.NewMatern52Kernel(0.25, 1.0)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &BayesianOptimizer{
		config:      config,
		kernel:      kernel,
		acquisition: acquisition.NewExpectedImprovement(math.Inf(1), 0.01),
		rng:         rand.New(rand.NewSource(seed)),
		logger:      logger.Named("bayesian"),
	}, nil
}

func withDefaults(config optimization.OptimizerConfig) optimization.OptimizerConfig {
	if config.NInitialPoints < 1 {
		config.NInitialPoints = defaultInitialPoints
	}
	if config.MaxIterations < 1 {
		config.MaxIterations = defaultIterations
	}
	return config
}

func checkObservations(config optimization.OptimizerConfig) error {
	if config.NInitialPoints > MaxObservations || config.MaxIterations > MaxObservations-config.NInitialPoints {
		return optimization.ConfigError("bayesian", "%d initial points and %d iterations exceed %d observations",
			config.NInitialPoints, config.MaxIterations, MaxObservations)
	}
	return nil
}

// Optimize runs the Bayesian Optimization process: NInitialPoints Latin
// hypercube samples followed by MaxIterations surrogate-guided evaluations.
func (bo *BayesianOptimizer) Optimize(ctx context.Context, config optimization.OptimizerConfig) (*optimization.OptimizationResult, error) {
	if config.Objective != nil {
		bo.config = withDefaults(config)
	}
	if err := bo.config.Validate(); err != nil {
		return nil, err
	}
	if err := checkObservations(bo.config); err != nil {
		return nil, err
	}

	ctx, done := bo.Begin(ctx, bo.config.NInitialPoints+bo.config.MaxIterations)
	defer done()

	for _, u := range bo.latinHypercubeSample(bo.config.NInitialPoints) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := bo.Evaluate(bo.config.Objective, bo.scale(u)); err != nil {
			return nil, err
		}
	}

	for i := 0; i < bo.config.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		u, err := bo.nextPoint()
		if err != nil {
			bo.logger.Warn("Surrogate unavailable, sampling at random",
				zap.Int("iteration", i),
				zap.Error(err),
			)
			u = bo.randomPoint()
		}

		if _, err := bo.Evaluate(bo.config.Objective, bo.scale(u)); err != nil {
			return nil, err
		}
	}

	return bo.Result(true), nil
}

// nextPoint fits the surrogate to the history and returns the unit-cube
// point that maximizes expected improvement.
func (bo *BayesianOptimizer) nextPoint() ([]float64, error) {
	X, y := bo.prepareTrainingData()

	gp := gpr.NewGP(bo.kernel, surrogateNoise, bo.logger)
	if err := gp.Fit(X, y); err != nil {
		return nil, err
	}

	best := math.Inf(1)
	for _, v := range y.RawVector().Data {
		best = math.Min(best, v)
	}
	bo.acquisition.UpdateBest(best)

	return bo.maximizeAcquisition(gp), nil
}

// prepareTrainingData maps the history into the unit cube and standardizes
// the values. Non-finite values are replaced by the worst finite one.
func (bo *BayesianOptimizer) prepareTrainingData() (*mat.Dense, *mat.VecDense) {
	history := bo.GetHistory()
	nDims := len(bo.config.Bounds)

	X := mat.NewDense(len(history), nDims, nil)
	values := make([]float64, len(history))
	worst := math.Inf(-1)
	for i, eval := range history {
		X.SetRow(i, bo.unscale(eval.Solution.Parameters))
		values[i] = eval.Solution.Value
		if !math.IsInf(values[i], 0) && !math.IsNaN(values[i]) {
			worst = math.Max(worst, values[i])
		}
	}
	if math.IsInf(worst, -1) {
		worst = 0
	}
	for i, v := range values {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			values[i] = worst
		}
	}

	mean, std := stat.MeanStdDev(values, nil)
	if !(std > 0) {
		std = 1
	}
	y := mat.NewVecDense(len(values), nil)
	for i, v := range values {
		y.SetVec(i, (v-mean)/std)
	}
	return X, y
}

// latinHypercubeSample generates n stratified points in the unit cube.
func (bo *BayesianOptimizer) latinHypercubeSample(n int) [][]float64 {
	nDims := len(bo.config.Bounds)
	samples := make([][]float64, n)
	for j := range samples {
		samples[j] = make([]float64, nDims)
	}

	strata := make([]float64, n)
	for d := 0; d < nDims; d++ {
		for j := range strata {
			strata[j] = (float64(j) + bo.rng.Float64()) / float64(n)
		}
		bo.rng.Shuffle(n, func(k, l int) {
			strata[k], strata[l] = strata[l], strata[k]
		})
		for j := range samples {
			samples[j][d] = strata[j]
		}
	}
	return samples
}

// maximizeAcquisition runs Nelder-Mead from the incumbent and a few random
// starts and returns the best point found.
func (bo *BayesianOptimizer) maximizeAcquisition(gp *gpr.GP) []float64 {
	nDims := len(bo.config.Bounds)
	unit := make([][2]float64, nDims)
	for i := range unit {
		unit[i] = [2]float64{0, 1}
	}

	negEI := func(u []float64) float64 {
		u = optimization.Clamp(u, unit)
		mu, variance, err := gp.PredictVariance(mat.NewDense(1, nDims, u))
		if err != nil {
			return math.Inf(1)
		}
		return -bo.acquisition.Compute(mu.AtVec(0), math.Sqrt(variance.AtVec(0)))
	}

	nStarts := 5 + int(5*math.Sqrt(float64(nDims)))
	starts := make([][]float64, 0, nStarts)
	if best := bo.GetBestSolution(); best != nil {
		starts = append(starts, bo.unscale(best.Parameters))
	}
	for len(starts) < nStarts {
		starts = append(starts, bo.randomPoint())
	}

	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-6,
			Relative:   1e-6,
			Iterations: 100,
		},
	}

	bestX := starts[len(starts)-1]
	bestVal := negEI(bestX)
	for _, start := range starts {
		method := &optimize.NelderMead{
			Reflection:  1.0,
			Expansion:   2.0,
			Contraction: 0.5,
			Shrink:      0.5,
			SimplexSize: 0.2,
		}
		result, err := optimize.Minimize(optimize.Problem{Func: negEI}, start, settings, method)
		if err == nil && result.F < bestVal {
			bestVal = result.F
			bestX = optimization.Clamp(result.X, unit)
		}
	}
	return bestX
}

func (bo *BayesianOptimizer) randomPoint() []float64 {
	u := make([]float64, len(bo.config.Bounds))
	for i := range u {
		u[i] = bo.rng.Float64()
	}
	return u
}

// scale maps a unit-cube point onto the bounds.
func (bo *BayesianOptimizer) scale(u []float64) []float64 {
	x := make([]float64, len(u))
	for i, b := range bo.config.Bounds {
		x[i] = b[0] + u[i]*(b[1]-b[0])
	}
	return x
}

// unscale maps a point inside the bounds onto the unit cube.
func (bo *BayesianOptimizer) unscale(x []float64) []float64 {
	u := make([]float64, len(x))
	for i, b := range bo.config.Bounds {
		if w := b[1] - b[0]; w > 0 {
			u[i] = (x[i] - b[0]) / w
		}
	}
	return u
}
