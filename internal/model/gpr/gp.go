// Package gpr implements Gaussian-process regression. It serves both as a
// learner whose hyperparameters can be tuned and as the surrogate model of
// the Bayesian optimizer.
package gpr

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	cverrors "github.com/copyleftdev/cvtune/internal/errors"
	"github.com/copyleftdev/cvtune/internal/hpt"
	"github.com/copyleftdev/cvtune/internal/model/kernels"
)

// NumArgs is the number of arguments Train expects:
// kernel name, length scale, signal variance and noise variance.
const NumArgs = 4

const maxJitterAttempts = 10

// GP implements a Gaussian Process regression model
type GP struct {
	kernel   kernels.Kernel
	noiseVar float64

	// Training inputs (n_samples, n_features)
	X *mat.Dense
	// Mean of the training targets; the process models the residuals
	yMean float64

	alpha *mat.VecDense
	chol  *mat.Cholesky

	logger *zap.Logger
}

// NewGP creates a new Gaussian Process model
func NewGP(kernel kernels.Kernel, noiseVar float64, logger *zap.Logger) *GP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GP{
		kernel:   kernel,
		noiseVar: noiseVar,
		logger:   logger.Named("gaussian_process"),
	}
}

// Train builds and fits a GP from tuning arguments
// (kernel string, lengthScale, signalVar, noiseVar float64).
func Train(X mat.Matrix, y mat.Vector, args ...any) (*GP, error) {
	if len(args) != NumArgs {
		return nil, invalidArgs("gpr.Train", "expected %d arguments, got %d", NumArgs, len(args))
	}
	name, err := hpt.String(args, 0)
	if err != nil {
		return nil, err
	}
	lengthScale, err := hpt.Float(args, 1)
	if err != nil {
		return nil, err
	}
	signalVar, err := hpt.Float(args, 2)
	if err != nil {
		return nil, err
	}
	noiseVar, err := hpt.Float(args, 3)
	if err != nil {
		return nil, err
	}
	if noiseVar < 0 || math.IsNaN(noiseVar) {
		return nil, invalidArgs("gpr.Train", "noise variance must be non-negative, got %v", noiseVar)
	}

	kernel, err := kernels.New(name, lengthScale, signalVar)
	if err != nil {
		return nil, err
	}

	gp := NewGP(kernel, noiseVar, nil)
	if err := gp.Fit(X, y); err != nil {
		return nil, err
	}
	return gp, nil
}

// Kernel returns the covariance function.
func (gp *GP) Kernel() kernels.Kernel { return gp.kernel }

// NoiseVar returns the observation noise variance.
func (gp *GP) NoiseVar() float64 { return gp.noiseVar }

// Fit fits the GP model to the training data
func (gp *GP) Fit(X mat.Matrix, y mat.Vector) error {
	const op = "GP.Fit"

	if X == nil || y == nil {
		return wrap(errors.New("input matrices must not be nil"), op)
	}

	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return wrap(errors.New("input matrix X must not be empty"), op)
	}
	if nSamples != y.Len() {
		return wrap(fmt.Errorf("dimension mismatch: X has %d samples but y has length %d",
			nSamples, y.Len()), op)
	}

	gp.logger.Debug("Fitting GP model",
		zap.Int("samples", nSamples),
		zap.Int("features", nFeatures),
		zap.Float64("noise_var", gp.noiseVar),
	)

	gp.X = mat.DenseCopyOf(X)

	targets := mat.Col(nil, 0, y)
	gp.yMean = stat.Mean(targets, nil)
	centered := mat.NewVecDense(nSamples, nil)
	for i, v := range targets {
		centered.SetVec(i, v-gp.yMean)
	}

	K := gp.kernelMatrix()
	chol, err := gp.factorize(K)
	if err != nil {
		return wrap(err, op)
	}

	alpha := mat.NewVecDense(nSamples, nil)
	if err := chol.SolveVecTo(alpha, centered); err != nil {
		return wrap(fmt.Errorf("failed to solve linear system: %w", err), op)
	}

	gp.alpha = alpha
	gp.chol = chol
	return nil
}

// kernelMatrix computes K(X, X) plus the noise variance on the diagonal.
func (gp *GP) kernelMatrix() *mat.SymDense {
	n, _ := gp.X.Dims()
	K := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		xi := gp.X.RawRowView(i)
		K.SetSym(i, i, gp.kernel.Eval(xi, xi)+gp.noiseVar)
		for j := i + 1; j < n; j++ {
			K.SetSym(i, j, gp.kernel.Eval(xi, gp.X.RawRowView(j)))
		}
	}
	return K
}

// factorize computes the Cholesky factor of K, adding growing jitter to the
// diagonal until the matrix is numerically positive definite.
func (gp *GP) factorize(K *mat.SymDense) (*mat.Cholesky, error) {
	n := K.SymmetricDim()
	jitter := 0.0
	for attempt := 0; attempt < maxJitterAttempts; attempt++ {
		Kj := K
		if jitter > 0 {
			Kj = mat.NewSymDense(n, nil)
			Kj.CopySym(K)
			for i := 0; i < n; i++ {
				Kj.SetSym(i, i, Kj.At(i, i)+jitter)
			}
		}

		var chol mat.Cholesky
		if chol.Factorize(Kj) {
			if jitter > 0 {
				gp.logger.Debug("Added jitter for numerical stability",
					zap.Int("attempt", attempt),
					zap.Float64("jitter", jitter),
				)
			}
			return &chol, nil
		}

		if jitter == 0 {
			jitter = 1e-10 * math.Max(1, mat.Trace(K)/float64(n))
		} else {
			jitter *= 10
		}
	}
	return nil, errors.New("Cholesky decomposition failed: matrix is not positive definite")
}

// Predict returns the posterior mean at the rows of X.
func (gp *GP) Predict(X mat.Matrix) (*mat.VecDense, error) {
	mean, _, err := gp.PredictVariance(X)
	return mean, err
}

// PredictVariance returns the mean and variance of the posterior predictive
// distribution at the rows of X.
func (gp *GP) PredictVariance(X mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	const op = "GP.Predict"

	if X == nil {
		return nil, nil, wrap(errors.New("input matrix X is nil"), op)
	}
	if gp.X == nil || gp.alpha == nil {
		return nil, nil, wrap(errors.New("model not trained"), op)
	}

	nTest, nFeatures := X.Dims()
	nTrain, trainFeatures := gp.X.Dims()
	if nFeatures != trainFeatures {
		return nil, nil, wrap(fmt.Errorf("dimension mismatch: model has %d features, input has %d",
			trainFeatures, nFeatures), op)
	}

	Kss := make([]float64, nTest)
	Kstar := mat.NewDense(nTest, nTrain, nil)
	row := make([]float64, nFeatures)
	for i := 0; i < nTest; i++ {
		mat.Row(row, i, X)
		Kss[i] = gp.kernel.Eval(row, row)
		for j := 0; j < nTrain; j++ {
			Kstar.Set(i, j, gp.kernel.Eval(row, gp.X.RawRowView(j)))
		}
	}

	mean := mat.NewVecDense(nTest, nil)
	mean.MulVec(Kstar, gp.alpha)
	for i := 0; i < nTest; i++ {
		mean.SetVec(i, mean.AtVec(i)+gp.yMean)
	}

	// diag(K** - K* K^-1 K*^T) through the Cholesky factor
	v := mat.NewDense(nTrain, nTest, nil)
	if err := gp.chol.SolveTo(v, Kstar.T()); err != nil {
		return nil, nil, wrap(fmt.Errorf("failed to solve linear system: %w", err), op)
	}

	variance := mat.NewVecDense(nTest, nil)
	for i := 0; i < nTest; i++ {
		var sum float64
		for j := 0; j < nTrain; j++ {
			sum += Kstar.At(i, j) * v.At(j, i)
		}
		variance.SetVec(i, math.Max(0, Kss[i]-sum))
	}

	return mean, variance, nil
}

func invalidArgs(op, format string, args ...interface{}) error {
	return cverrors.Wrapf(hpt.ErrArgumentType, format, args...).
		WithOperation(op).
		WithComponent("gpr").
		WithKind(cverrors.KindConfiguration)
}

func wrap(err error, op string) error {
	return cverrors.Wrap(err, "gaussian process").
		WithOperation(op).
		WithComponent("gpr").
		WithKind(cverrors.KindEvaluation)
}
