package store

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cverrors "github.com/copyleftdev/cvtune/internal/errors"
	"github.com/copyleftdev/cvtune/internal/hpt"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": NewSQLiteStore("file::memory:"),
	}
}

func TestStoreJobRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Init(ctx))
			defer s.Close()

			created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			job := Job{
				ID:        "job-1",
				Learner:   "ridge",
				Optimizer: "grid",
				Metric:    "mse",
				Status:    StatusPending,
				CreatedAt: created,
				UpdatedAt: created,
			}
			require.NoError(t, s.SaveJob(ctx, job))

			job.Status = StatusCompleted
			job.BestObjective = Finite(0.25)
			job.BestArgs = []any{0.1, true}
			job.Evaluations = 12
			require.NoError(t, s.SaveJob(ctx, job))

			got, ok, err := s.GetJob(ctx, "job-1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, StatusCompleted, got.Status)
			require.NotNil(t, got.BestObjective)
			assert.Equal(t, 0.25, *got.BestObjective)
			assert.Equal(t, 12, got.Evaluations)
			assert.True(t, got.CreatedAt.Equal(created))
			assert.True(t, got.Terminal())

			_, ok, err = s.GetJob(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStoreListJobsOrdered(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Init(ctx))
			defer s.Close()

			base := time.Unix(1700000000, 0).UTC()
			require.NoError(t, s.SaveJob(ctx, Job{ID: "b", Status: StatusRunning, CreatedAt: base.Add(time.Second)}))
			require.NoError(t, s.SaveJob(ctx, Job{ID: "a", Status: StatusPending, CreatedAt: base}))

			jobs, err := s.ListJobs(ctx)
			require.NoError(t, err)
			require.Len(t, jobs, 2)
			assert.Equal(t, "a", jobs[0].ID)
			assert.Equal(t, "b", jobs[1].ID)
		})
	}
}

func TestStoreTrials(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Init(ctx))
			defer s.Close()

			trials := []hpt.Trial{
				{Evaluation: 2, Parameters: []float64{0.5}, Args: []any{0.5, true}, Objective: math.Inf(1)},
				{Evaluation: 1, Parameters: []float64{0.1}, Args: []any{0.1, true}, Objective: 1.5, Improved: true, Duration: 1500 * time.Microsecond},
				{Evaluation: 3, Parameters: []float64{0.9}, Args: []any{0.9, true}, Err: errors.New("singular")},
			}
			for _, tr := range trials {
				require.NoError(t, s.SaveTrial(ctx, NewTrialRecord("job-1", tr)))
			}
			require.NoError(t, s.SaveTrial(ctx, NewTrialRecord("job-2", hpt.Trial{Evaluation: 1})))

			got, err := s.ListTrials(ctx, "job-1")
			require.NoError(t, err)
			require.Len(t, got, 3)

			assert.Equal(t, 1, got[0].Evaluation)
			require.NotNil(t, got[0].Objective)
			assert.Equal(t, 1.5, *got[0].Objective)
			assert.True(t, got[0].Improved)
			assert.Equal(t, 1.5, got[0].DurationMS)

			assert.Nil(t, got[1].Objective, "infinite scores are not stored")
			assert.Equal(t, "singular", got[2].Error)
			assert.Nil(t, got[2].Objective)

			none, err := s.ListTrials(ctx, "job-3")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestStoreRequiresInit(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.Error(t, s.SaveJob(ctx, Job{ID: "x"}))
			_, _, err := s.GetJob(ctx, "x")
			assert.Error(t, err)
			assert.NoError(t, s.Close())
		})
	}
}

func TestNewStore(t *testing.T) {
	s, err := NewStore("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewStore("sqlite", "file::memory:")
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)

	_, err = NewStore("postgres", "")
	require.Error(t, err)
	assert.Equal(t, cverrors.KindConfiguration, cverrors.KindOf(err))

	err = NewSQLiteStore("").Init(context.Background())
	require.Error(t, err)
	assert.Equal(t, cverrors.KindConfiguration, cverrors.KindOf(err))
}
