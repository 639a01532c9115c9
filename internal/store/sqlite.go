package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"

	_ "modernc.org/sqlite"

	cverrors "github.com/copyleftdev/cvtune/internal/errors"
)

// SQLiteStore persists jobs in a SQLite database. Rows carry the JSON
// encoding of the record plus the columns needed for lookups and ordering.
type SQLiteStore struct {
	dsn string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(dsn string) *SQLiteStore {
	return &SQLiteStore{dsn: dsn}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dsn == "" {
		return cverrors.New("sqlite dsn is required").
			WithOperation("SQLiteStore.Init").
			WithComponent("store").
			WithKind(cverrors.KindConfiguration)
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return err
	}
	// A single connection keeps in-memory databases alive and serialises
	// writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveJob(ctx context.Context, job Job) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return cverrors.Wrapf(err, "encode job %s", job.ID).WithComponent("store")
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO jobs (id, status, created_at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			payload = excluded.payload
	`, job.ID, job.Status, job.CreatedAt.UnixNano(), payload)
	return err
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (Job, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Job{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM jobs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, false, nil
		}
		return Job{}, false, err
	}

	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return Job{}, false, cverrors.Wrapf(err, "decode job %s", id).WithComponent("store")
	}
	return job, true, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context) ([]Job, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT payload FROM jobs ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var job Job
		if err := json.Unmarshal(payload, &job); err != nil {
			return nil, cverrors.Wrap(err, "decode job").WithComponent("store")
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *SQLiteStore) SaveTrial(ctx context.Context, trial TrialRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(trial)
	if err != nil {
		return cverrors.Wrapf(err, "encode trial %s/%d", trial.JobID, trial.Evaluation).WithComponent("store")
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO trials (job_id, evaluation, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(job_id, evaluation) DO UPDATE SET
			payload = excluded.payload
	`, trial.JobID, trial.Evaluation, payload)
	return err
}

func (s *SQLiteStore) ListTrials(ctx context.Context, jobID string) ([]TrialRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT payload FROM trials WHERE job_id = ? ORDER BY evaluation`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trials []TrialRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var trial TrialRecord
		if err := json.Unmarshal(payload, &trial); err != nil {
			return nil, cverrors.Wrapf(err, "decode trial of job %s", jobID).WithComponent("store")
		}
		trials = append(trials, trial)
	}
	return trials, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS trials (
			job_id TEXT NOT NULL,
			evaluation INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (job_id, evaluation)
		);
	`)
	return err
}
