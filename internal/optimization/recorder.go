package optimization

import (
	"context"
	"sync"
)

// Recorder keeps the history and best solution of an optimization run and
// the cancel function used by Stop. Optimizers embed it; readers such as a
// status endpoint may call its getters while a run is in progress.
type Recorder struct {
	mu      sync.RWMutex
	best    *Solution
	history []Evaluation
	cancel  context.CancelFunc
}

// maxHistoryHint caps the history preallocated by Begin. Longer runs grow
// the slice as they go.
const maxHistoryHint = 4096

// Begin resets the recorder for a new run and returns the run context.
// capacity is a hint for the expected number of evaluations. The returned
// function must be called when the run ends.
func (r *Recorder) Begin(ctx context.Context, capacity int) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	if capacity < 0 || capacity > maxHistoryHint {
		capacity = maxHistoryHint
	}

	r.mu.Lock()
	r.best = nil
	r.history = make([]Evaluation, 0, capacity)
	r.cancel = cancel
	r.mu.Unlock()

	return ctx, cancel
}

// Record appends a successful evaluation and updates the best solution if
// the new value is lower. It returns the iteration number assigned.
func (r *Recorder) Record(params []float64, value float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	sol := &Solution{
		Parameters: append([]float64(nil), params...),
		Value:      value,
	}
	iteration := len(r.history)
	r.history = append(r.history, Evaluation{Iteration: iteration, Solution: sol})

	if r.best == nil || value < r.best.Value {
		r.best = sol
	}
	return iteration
}

// RecordError appends a failed evaluation.
func (r *Recorder) RecordError(params []float64, err error) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	iteration := len(r.history)
	r.history = append(r.history, Evaluation{
		Iteration: iteration,
		Solution:  &Solution{Parameters: append([]float64(nil), params...)},
		Error:     err,
	})
	return iteration
}

// Evaluate calls objective at x and records the outcome.
func (r *Recorder) Evaluate(objective ObjectiveFunction, x []float64) (float64, error) {
	value, err := objective(x)
	if err != nil {
		it := r.RecordError(x, err)
		return value, EvaluationError(err, it)
	}
	r.Record(x, value)
	return value, nil
}

// GetBestSolution returns the best solution found so far
func (r *Recorder) GetBestSolution() *Solution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.best
}

// GetHistory returns a copy of the history of evaluations
func (r *Recorder) GetHistory() []Evaluation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Evaluation(nil), r.history...)
}

// Len returns the number of recorded evaluations.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.history)
}

// Stop cancels the current run, if any.
func (r *Recorder) Stop() {
	r.mu.RLock()
	cancel := r.cancel
	r.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// Result builds the result of a finished run.
func (r *Recorder) Result(converged bool) *OptimizationResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &OptimizationResult{
		BestSolution: r.best,
		History:      append([]Evaluation(nil), r.history...),
		Iterations:   len(r.history),
		Converged:    converged,
	}
}
