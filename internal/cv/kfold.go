package cv

import (
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// KFoldCV scores a learner as the mean validation score over k folds. The
// model it hands over is the learner refit on the whole data set with the
// arguments of the last Evaluate call. The refit happens on demand.
type KFoldCV[M Predictor] struct {
	learner Learner[M]
	metric  Metric
	data    *Dataset
	k       int

	folds  [][2]*mat.Dense
	foldsY [][2]*mat.VecDense

	args    []any
	pending bool
	logger  *zap.Logger
}

// NewKFoldCV splits data into k folds of near-equal size.
func NewKFoldCV[M Predictor](learner Learner[M], metric Metric, data *Dataset, k int, opts ...Option) (*KFoldCV[M], error) {
	const op = "NewKFoldCV"

	if learner == nil || metric == nil || data == nil {
		return nil, invalid(op, "learner, metric and data are required")
	}
	if k < 2 {
		return nil, invalid(op, "need at least 2 folds, got %d", k)
	}
	n := data.Rows()
	if n < k {
		return nil, invalid(op, "%d rows cannot be split into %d folds", n, k)
	}

	s := newSettings(opts)
	order := s.order(n)
	cv := &KFoldCV[M]{
		learner: learner,
		metric:  metric,
		data:    data,
		k:       k,
		folds:   make([][2]*mat.Dense, k),
		foldsY:  make([][2]*mat.VecDense, k),
		logger:  s.logger.Named("kfold_cv"),
	}

	for f := 0; f < k; f++ {
		lo, hi := f*n/k, (f+1)*n/k
		train := make([]int, 0, n-(hi-lo))
		train = append(train, order[:lo]...)
		train = append(train, order[hi:]...)

		cv.folds[f][0], cv.foldsY[f][0] = data.subset(train)
		cv.folds[f][1], cv.foldsY[f][1] = data.subset(order[lo:hi])
	}
	return cv, nil
}

// K returns the number of folds.
func (cv *KFoldCV[M]) K() int { return cv.k }

// Evaluate returns the mean score over the folds.
func (cv *KFoldCV[M]) Evaluate(args ...any) (float64, error) {
	cv.pending = false
	scores := make([]float64, cv.k)
	for f := 0; f < cv.k; f++ {
		_, s, err := score(cv.learner, cv.metric,
			cv.folds[f][0], cv.foldsY[f][0], cv.folds[f][1], cv.foldsY[f][1], args)
		if err != nil {
			return 0, err
		}
		scores[f] = s
	}

	cv.args = append(cv.args[:0], args...)
	cv.pending = true

	mean := stat.Mean(scores, nil)
	cv.logger.Debug("K-fold evaluation",
		zap.Int("folds", cv.k),
		zap.Float64("score", mean),
		zap.Float64s("fold_scores", scores),
	)
	return mean, nil
}

// BuildModel refits the learner on every row with the arguments of the last
// successful Evaluate call. The model is handed over once; later calls
// return the zero model until the next Evaluate.
func (cv *KFoldCV[M]) BuildModel() (M, error) {
	var zero M
	if !cv.pending {
		return zero, nil
	}
	cv.pending = false

	model, err := cv.learner.Train(cv.data.X, cv.data.Y, cv.args...)
	if err != nil {
		return zero, err
	}
	return model, nil
}

// Model is BuildModel for callers that cannot handle a refit error. A failed
// refit is logged and yields the zero model.
func (cv *KFoldCV[M]) Model() M {
	model, err := cv.BuildModel()
	if err != nil {
		cv.logger.Warn("Refit on the full data set failed", zap.Error(err))
	}
	return model
}
