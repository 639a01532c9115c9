// Package store persists tuning jobs and their trials.
package store

import (
	"context"
	"math"
	"time"

	cverrors "github.com/copyleftdev/cvtune/internal/errors"
	"github.com/copyleftdev/cvtune/internal/hpt"
)

// Job statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Job is the persisted summary of a tuning run.
type Job struct {
	ID        string `json:"id"`
	Learner   string `json:"learner"`
	Optimizer string `json:"optimizer"`
	Metric    string `json:"metric"`
	Status    string `json:"status"`

	BestObjective  *float64  `json:"best_objective,omitempty"`
	BestParameters []float64 `json:"best_parameters,omitempty"`
	BestArgs       []any     `json:"best_args,omitempty"`
	Evaluations    int       `json:"evaluations"`
	Error          string    `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Terminal reports whether the job can no longer change status.
func (j Job) Terminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// TrialRecord is one persisted evaluation of a job.
type TrialRecord struct {
	JobID      string    `json:"job_id"`
	Evaluation int       `json:"evaluation"`
	Parameters []float64 `json:"parameters"`
	Args       []any     `json:"args"`
	// Objective is nil for failed evaluations and non-finite scores.
	Objective  *float64 `json:"objective,omitempty"`
	Error      string   `json:"error,omitempty"`
	Improved   bool     `json:"improved"`
	DurationMS float64  `json:"duration_ms"`
}

// NewTrialRecord converts a trial of job into its persisted form.
func NewTrialRecord(jobID string, t hpt.Trial) TrialRecord {
	rec := TrialRecord{
		JobID:      jobID,
		Evaluation: t.Evaluation,
		Parameters: t.Parameters,
		Args:       t.Args,
		Improved:   t.Improved,
		DurationMS: float64(t.Duration.Microseconds()) / 1000,
	}
	if t.Err != nil {
		rec.Error = t.Err.Error()
	} else {
		rec.Objective = Finite(t.Objective)
	}
	return rec
}

// Finite returns a pointer to v, or nil when v is NaN or infinite.
func Finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Store defines persistence for tuning jobs.
type Store interface {
	Init(ctx context.Context) error
	SaveJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, id string) (Job, bool, error)
	ListJobs(ctx context.Context) ([]Job, error)
	SaveTrial(ctx context.Context, trial TrialRecord) error
	ListTrials(ctx context.Context, jobID string) ([]TrialRecord, error)
	Close() error
}

// NewStore returns an uninitialised store of the given kind.
func NewStore(kind, dsn string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(dsn), nil
	default:
		return nil, cverrors.Errorf("unsupported store backend: %s", kind).
			WithOperation("NewStore").
			WithComponent("store").
			WithKind(cverrors.KindConfiguration)
	}
}
