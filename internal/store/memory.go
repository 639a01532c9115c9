package store

import (
	"context"
	"sort"
	"sync"

	cverrors "github.com/copyleftdev/cvtune/internal/errors"
)

var errNotInitialized = cverrors.Sentinel("store is not initialized")

// MemoryStore keeps jobs in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	jobs        map[string]Job
	trials      map[string][]TrialRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.jobs = make(map[string]Job)
	s.trials = make(map[string][]TrialRecord)
	return nil
}

func (s *MemoryStore) SaveJob(_ context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (Job, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return Job{}, false, errNotInitialized
	}
	job, ok := s.jobs[id]
	return job, ok, nil
}

// ListJobs returns every job, oldest first.
func (s *MemoryStore) ListJobs(_ context.Context) ([]Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, errNotInitialized
	}
	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (s *MemoryStore) SaveTrial(_ context.Context, trial TrialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.trials[trial.JobID] = append(s.trials[trial.JobID], trial)
	return nil
}

// ListTrials returns the trials of a job in evaluation order.
func (s *MemoryStore) ListTrials(_ context.Context, jobID string) ([]TrialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, errNotInitialized
	}
	trials := append([]TrialRecord(nil), s.trials[jobID]...)
	sort.SliceStable(trials, func(i, j int) bool {
		return trials[i].Evaluation < trials[j].Evaluation
	})
	return trials, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
