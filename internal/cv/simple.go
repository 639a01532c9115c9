package cv

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// SimpleCV scores a learner on a single hold-out split. The validation set
// is the last validationSize fraction of the rows, after the optional
// shuffle.
type SimpleCV[M Predictor] struct {
	learner Learner[M]
	metric  Metric

	trainX, validX *mat.Dense
	trainY, validY *mat.VecDense

	model  M
	logger *zap.Logger
}

// NewSimpleCV splits data once; every Evaluate reuses the same split.
func NewSimpleCV[M Predictor](learner Learner[M], metric Metric, data *Dataset, validationSize float64, opts ...Option) (*SimpleCV[M], error) {
	const op = "NewSimpleCV"

	if learner == nil || metric == nil || data == nil {
		return nil, invalid(op, "learner, metric and data are required")
	}
	if !(validationSize > 0 && validationSize < 1) {
		return nil, invalid(op, "validation size must be in (0, 1), got %v", validationSize)
	}

	n := data.Rows()
	nValid := int(math.Round(validationSize * float64(n)))
	if nValid < 1 || n-nValid < 1 {
		return nil, invalid(op, "cannot hold out %v of %d rows", validationSize, n)
	}

	s := newSettings(opts)
	order := s.order(n)
	cv := &SimpleCV[M]{
		learner: learner,
		metric:  metric,
		logger:  s.logger.Named("simple_cv"),
	}
	cv.trainX, cv.trainY = data.subset(order[:n-nValid])
	cv.validX, cv.validY = data.subset(order[n-nValid:])
	return cv, nil
}

// Evaluate trains on the training split and scores on the validation split.
func (cv *SimpleCV[M]) Evaluate(args ...any) (float64, error) {
	model, s, err := score(cv.learner, cv.metric, cv.trainX, cv.trainY, cv.validX, cv.validY, args)
	if err != nil {
		return 0, err
	}
	cv.model = model
	cv.logger.Debug("Hold-out evaluation", zap.Float64("score", s))
	return s, nil
}

// Model hands over the model trained by the last Evaluate call. It returns
// the zero value when called twice.
func (cv *SimpleCV[M]) Model() M {
	m := cv.model
	var zero M
	cv.model = zero
	return m
}
