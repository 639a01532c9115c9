package hpt

import "math"

// tracker keeps the best scoring model of a tuning run. Lower is better and
// ties keep the model that got there first.
type tracker[M any] struct {
	hasBest  bool
	hasModel bool
	score    float64
	params   []float64
	model    M
}

// offer records score if it improves on the current best, pulling the model
// from take only on improvement. When take fails nothing is recorded.
func (t *tracker[M]) offer(score float64, params []float64, take func() (M, error)) (bool, error) {
	if t.hasBest && !t.improves(score) {
		return false, nil
	}
	model, err := take()
	if err != nil {
		return false, err
	}
	t.score = score
	t.params = append(t.params[:0], params...)
	t.model = model
	t.hasBest = true
	t.hasModel = true
	return true, nil
}

// improves reports whether score beats the stored best. A stored NaN never
// blocks a comparable score.
func (t *tracker[M]) improves(score float64) bool {
	if math.IsNaN(t.score) {
		return !math.IsNaN(score)
	}
	return score < t.score
}

func (t *tracker[M]) best() (float64, error) {
	if !t.hasBest {
		return 0, usageError("BestObjective", ErrNotEvaluated, "best objective is not available")
	}
	return t.score, nil
}

func (t *tracker[M]) bestParams() ([]float64, error) {
	if !t.hasBest {
		return nil, usageError("BestParameters", ErrNotEvaluated, "best parameters are not available")
	}
	return append([]float64(nil), t.params...), nil
}

func (t *tracker[M]) peek() (M, error) {
	var zero M
	if !t.hasBest {
		return zero, usageError("BestModel", ErrNotEvaluated, "best model is not available")
	}
	if !t.hasModel {
		return zero, usageError("BestModel", ErrModelTaken, "best model is not available")
	}
	return t.model, nil
}

// take transfers the best model out. The best score stays, so later
// evaluations only install a new model when they improve on it.
func (t *tracker[M]) take() (M, error) {
	m, err := t.peek()
	if err != nil {
		return m, err
	}
	var zero M
	t.model = zero
	t.hasModel = false
	return m, nil
}
