// Package ridge implements L2-regularised linear regression.
package ridge

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	cverrors "github.com/copyleftdev/cvtune/internal/errors"
	"github.com/copyleftdev/cvtune/internal/hpt"
)

// NumArgs is the number of arguments Train expects: lambda and intercept.
const NumArgs = 2

// Model is a fitted ridge regression.
type Model struct {
	Weights   *mat.VecDense
	Intercept float64
	Lambda    float64
}

// Train fits a model from tuning arguments (lambda float64, intercept bool).
func Train(X mat.Matrix, y mat.Vector, args ...any) (*Model, error) {
	if len(args) != NumArgs {
		return nil, invalidArgs("ridge.Train", "expected %d arguments, got %d", NumArgs, len(args))
	}
	lambda, err := hpt.Float(args, 0)
	if err != nil {
		return nil, err
	}
	intercept, err := hpt.Bool(args, 1)
	if err != nil {
		return nil, err
	}
	return Fit(X, y, lambda, intercept)
}

// Fit solves (XᵀX + λI)w = Xᵀy. With intercept the columns of X and y are
// centered first and the intercept is recovered from the means.
func Fit(X mat.Matrix, y mat.Vector, lambda float64, intercept bool) (*Model, error) {
	const op = "ridge.Fit"

	if lambda < 0 || math.IsNaN(lambda) || math.IsInf(lambda, 0) {
		return nil, invalidArgs(op, "lambda must be a non-negative finite number, got %v", lambda)
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return nil, wrap(errors.New("empty design matrix"), op)
	}
	if y.Len() != n {
		return nil, wrap(fmt.Errorf("dimension mismatch: X has %d rows, y has %d", n, y.Len()), op)
	}

	Xc := mat.DenseCopyOf(X)
	yc := mat.VecDenseCopyOf(y)
	means := make([]float64, p)
	var yMean float64
	if intercept {
		col := make([]float64, n)
		for j := 0; j < p; j++ {
			mat.Col(col, j, Xc)
			means[j] = stat.Mean(col, nil)
			for i := 0; i < n; i++ {
				Xc.Set(i, j, col[i]-means[j])
			}
		}
		yMean = stat.Mean(yc.RawVector().Data, nil)
		for i := 0; i < n; i++ {
			yc.SetVec(i, yc.AtVec(i)-yMean)
		}
	}

	var gram mat.SymDense
	gram.SymOuterK(1, Xc.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+lambda)
	}

	xty := mat.NewVecDense(p, nil)
	xty.MulVec(Xc.T(), yc)

	w := mat.NewVecDense(p, nil)
	var chol mat.Cholesky
	if chol.Factorize(&gram) {
		if err := chol.SolveVecTo(w, xty); err != nil {
			return nil, wrap(err, op)
		}
	} else if err := w.SolveVec(mat.DenseCopyOf(&gram), xty); err != nil {
		// Singular without regularisation; fall back to least squares on X.
		if err := w.SolveVec(Xc, yc); err != nil {
			return nil, wrap(fmt.Errorf("normal equations are singular: %w", err), op)
		}
	}

	m := &Model{Weights: w, Lambda: lambda}
	if intercept {
		m.Intercept = yMean - mat.Dot(mat.NewVecDense(p, means), w)
	}
	return m, nil
}

// Predict returns Xw + b for every row of X.
func (m *Model) Predict(X mat.Matrix) (*mat.VecDense, error) {
	n, p := X.Dims()
	if p != m.Weights.Len() {
		return nil, wrap(fmt.Errorf("dimension mismatch: model has %d weights, input has %d columns",
			m.Weights.Len(), p), "ridge.Predict")
	}
	out := mat.NewVecDense(n, nil)
	out.MulVec(X, m.Weights)
	for i := 0; i < n; i++ {
		out.SetVec(i, out.AtVec(i)+m.Intercept)
	}
	return out, nil
}

// invalidArgs reports arguments no fit can succeed with.
func invalidArgs(op, format string, args ...interface{}) error {
	return cverrors.Wrapf(hpt.ErrArgumentType, format, args...).
		WithOperation(op).
		WithComponent("ridge").
		WithKind(cverrors.KindConfiguration)
}

func wrap(err error, op string) error {
	return cverrors.Wrap(err, "ridge regression").
		WithOperation(op).
		WithComponent("ridge").
		WithKind(cverrors.KindEvaluation)
}
