// Package cv implements the cross-validation routines that train and score
// a learner for a full argument list. SimpleCV and KFoldCV both satisfy
// hpt.CrossValidation.
package cv

import (
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	cverrors "github.com/copyleftdev/cvtune/internal/errors"
)

// Predictor is a trained model.
type Predictor interface {
	Predict(X mat.Matrix) (*mat.VecDense, error)
}

// Learner trains a model from data and a full, ordered argument list.
type Learner[M Predictor] interface {
	Train(X mat.Matrix, y mat.Vector, args ...any) (M, error)
}

// LearnerFunc adapts a training function to the Learner interface.
type LearnerFunc[M Predictor] func(X mat.Matrix, y mat.Vector, args ...any) (M, error)

// Train calls f.
func (f LearnerFunc[M]) Train(X mat.Matrix, y mat.Vector, args ...any) (M, error) {
	return f(X, y, args...)
}

// ErrInvalidData is returned when a data set cannot be split as requested.
var ErrInvalidData = cverrors.Sentinel("invalid cross-validation data")

// Dataset is a design matrix with one response per row.
type Dataset struct {
	X *mat.Dense
	Y *mat.VecDense
}

// NewDataset checks that X and y agree in length.
func NewDataset(X *mat.Dense, y *mat.VecDense) (*Dataset, error) {
	if X == nil || y == nil {
		return nil, invalid("NewDataset", "data and responses are required")
	}
	if r, _ := X.Dims(); r != y.Len() {
		return nil, invalid("NewDataset", "%d rows of data but %d responses", r, y.Len())
	}
	return &Dataset{X: X, Y: y}, nil
}

// Rows returns the number of observations.
func (d *Dataset) Rows() int {
	r, _ := d.X.Dims()
	return r
}

// subset copies the given rows.
func (d *Dataset) subset(rows []int) (*mat.Dense, *mat.VecDense) {
	_, c := d.X.Dims()
	X := mat.NewDense(len(rows), c, nil)
	y := mat.NewVecDense(len(rows), nil)
	for i, r := range rows {
		X.SetRow(i, d.X.RawRowView(r))
		y.SetVec(i, d.Y.AtVec(r))
	}
	return X, y
}

// Option configures a cross-validation routine.
type Option func(*settings)

type settings struct {
	shuffle bool
	seed    int64
	logger  *zap.Logger
}

func newSettings(opts []Option) settings {
	s := settings{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithShuffle permutes the rows with a seeded source before splitting.
func WithShuffle(seed int64) Option {
	return func(s *settings) {
		s.shuffle = true
		s.seed = seed
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func (s settings) order(n int) []int {
	if s.shuffle {
		return rand.New(rand.NewSource(s.seed)).Perm(n)
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func invalid(op, format string, args ...interface{}) error {
	return cverrors.Wrapf(ErrInvalidData, format, args...).
		WithOperation(op).
		WithComponent("cv").
		WithKind(cverrors.KindConfiguration)
}

// score trains on (X, y) and scores the model on (vX, vy).
func score[M Predictor](l Learner[M], metric Metric, X mat.Matrix, y mat.Vector, vX mat.Matrix, vy mat.Vector, args []any) (M, float64, error) {
	model, err := l.Train(X, y, args...)
	if err != nil {
		var zero M
		return zero, 0, err
	}
	pred, err := model.Predict(vX)
	if err != nil {
		var zero M
		return zero, 0, err
	}
	return model, metric(pred, vy), nil
}
