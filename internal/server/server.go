package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/copyleftdev/cvtune/internal/config"
	cverrors "github.com/copyleftdev/cvtune/internal/errors"
	"github.com/copyleftdev/cvtune/internal/hpt"
	"github.com/copyleftdev/cvtune/internal/logging"
	"github.com/copyleftdev/cvtune/internal/metrics"
	"github.com/copyleftdev/cvtune/internal/optimization"
	"github.com/copyleftdev/cvtune/internal/store"
	"github.com/copyleftdev/cvtune/internal/tuning"
)

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// jobState is the in-memory side of a tuning job. The persisted summary is
// kept in job and written through to the store on every status change.
type jobState struct {
	job        store.Job
	budget     int
	optimizer  optimization.Optimizer
	cancelFunc context.CancelFunc
}

// Server implements the HTTP and JSON-RPC server for the tuning service.
// It manages tuning jobs and provides endpoints to start, monitor, and
// cancel them.
type Server struct {
	cfg      *config.Config
	logger   Logger
	zap      *zap.Logger
	store    store.Store
	metrics  *metrics.Metrics
	defaults tuning.Defaults

	jobs   map[string]*jobState
	jobsMu sync.RWMutex // Protects the jobs map and every jobState

	// workers bounds the number of jobs running at once
	workers chan struct{}
	wg      sync.WaitGroup
}

// NewServer creates a new server. The store must already be initialised.
func NewServer(cfg *config.Config, logger Logger, st store.Store, m *metrics.Metrics) *Server {
	workers := cfg.Tuning.WorkerCount
	if workers < 1 {
		workers = 1
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		zap:      logging.NewZapLogger(logger.WithFields(nil)),
		store:    st,
		metrics:  m,
		defaults: tuning.DefaultsFromConfig(cfg),
		jobs:     make(map[string]*jobState),
		workers:  make(chan struct{}, workers),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tune", s.handleTune)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/tuning/{id}", s.handleCancel)
		r.Get("/tuning/{id}/trials", s.handleTrials)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params,omitempty"`
}

type jobRef struct {
	JobID string `json:"job_id"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}

	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", request.ID)
		return
	}

	var (
		result interface{}
		err    error
	)
	switch request.Method {
	case "tuning.start":
		var req tuning.Request
		if err = decodeParam(request.Params, &req); err == nil {
			result, err = s.startJob(req)
		}
	case "tuning.status":
		var ref jobRef
		if err = decodeParam(request.Params, &ref); err == nil {
			result, err = s.jobStatus(ref.JobID)
		}
	case "tuning.cancel":
		var ref jobRef
		if err = decodeParam(request.Params, &ref); err == nil {
			err = s.cancelJob(ref.JobID)
		}
	case "tuning.trials":
		var ref jobRef
		if err = decodeParam(request.Params, &ref); err == nil {
			result, err = s.jobTrials(r.Context(), ref.JobID)
		}
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		code := -32000
		if cverrors.KindOf(err) == cverrors.KindConfiguration {
			code = -32602
		}
		s.respondWithError(w, code, err.Error(), request.ID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

func decodeParam(params []json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return invalidParams("missing required parameters")
	}
	if err := json.Unmarshal(params[0], v); err != nil {
		return invalidParams("invalid parameter format: %v", err)
	}
	return nil
}

var errInvalidParams = cverrors.Sentinel("invalid params")

func invalidParams(format string, args ...interface{}) error {
	return cverrors.Wrapf(errInvalidParams, format, args...).
		WithComponent("server").
		WithKind(cverrors.KindConfiguration)
}

var errJobNotFound = cverrors.Sentinel("tuning job not found")

// startJob validates the request, registers the job and starts it in the
// background.
func (s *Server) startJob(req tuning.Request) (map[string]interface{}, error) {
	job, err := tuning.Prepare(req, s.defaults, s.zap)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	state := &jobState{
		job: store.Job{
			ID:        id,
			Learner:   job.Request.Learner,
			Optimizer: job.Request.Optimizer,
			Metric:    job.Request.Metric,
			Status:    store.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		budget:    job.Budget(),
		optimizer: job.Optimizer(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	state.cancelFunc = cancel

	if err := s.store.SaveJob(ctx, state.job); err != nil {
		cancel()
		return nil, cverrors.Wrap(err, "failed to persist job").WithComponent("server")
	}

	s.jobsMu.Lock()
	s.jobs[id] = state
	s.jobsMu.Unlock()
	s.metrics.JobStatusChanged("", store.StatusPending)

	s.logger.Info("Tuning job accepted", map[string]interface{}{
		"job_id":    id,
		"learner":   job.Request.Learner,
		"optimizer": job.Request.Optimizer,
	})

	s.wg.Add(1)
	go s.runJob(ctx, state, job)

	return map[string]interface{}{
		"job_id": id,
		"status": store.StatusPending,
	}, nil
}

// runJob waits for a worker slot, runs the job and records the outcome.
func (s *Server) runJob(ctx context.Context, state *jobState, job *tuning.Job) {
	defer s.wg.Done()
	id := state.job.ID

	select {
	case s.workers <- struct{}{}:
		defer func() { <-s.workers }()
	case <-ctx.Done():
		s.transition(ctx, state, store.StatusCancelled, nil)
		return
	}

	if !s.transition(ctx, state, store.StatusRunning, nil) {
		return
	}

	observe := s.metrics.Observe(id, job.Request.Learner, job.Request.Optimizer)
	result, err := job.Run(ctx, observe, func(t hpt.Trial) {
		s.recordTrial(ctx, state, t)
	})

	if err != nil {
		if ctx.Err() != nil {
			// A no-op when cancelJob already recorded the cancellation.
			s.transition(ctx, state, store.StatusCancelled, nil)
			return
		}
		s.logger.Error("Tuning job failed", map[string]interface{}{
			"job_id": id,
			"error":  err.Error(),
		})
		s.transition(ctx, state, store.StatusFailed, func(j *store.Job) {
			j.Error = err.Error()
		})
		return
	}

	s.transition(ctx, state, store.StatusCompleted, func(j *store.Job) {
		j.BestObjective = store.Finite(result.BestObjective)
		j.BestParameters = result.BestParameters
		j.BestArgs = result.BestArgs
		j.Evaluations = result.Evaluations
	})
	s.logger.Info("Tuning job completed", map[string]interface{}{
		"job_id":         id,
		"best_objective": result.BestObjective,
		"evaluations":    result.Evaluations,
	})
}

// transition moves a job to status unless it already reached a terminal
// state, applies update and persists the job. It reports whether the
// transition happened.
func (s *Server) transition(ctx context.Context, state *jobState, status string, update func(*store.Job)) bool {
	s.jobsMu.Lock()
	if state.job.Terminal() {
		s.jobsMu.Unlock()
		return false
	}
	from := state.job.Status
	now := time.Now().UTC()
	state.job.Status = status
	state.job.UpdatedAt = now
	if update != nil {
		update(&state.job)
	}
	if state.job.Terminal() {
		state.job.FinishedAt = &now
	}
	snapshot := state.job
	s.jobsMu.Unlock()

	s.metrics.JobStatusChanged(from, status)
	if snapshot.Terminal() {
		s.metrics.Forget(snapshot.ID)
	}
	// Persist even if the run context is gone.
	if err := s.store.SaveJob(context.WithoutCancel(ctx), snapshot); err != nil {
		s.logger.Error("Failed to persist job", map[string]interface{}{
			"job_id": snapshot.ID,
			"error":  err.Error(),
		})
	}
	return true
}

func (s *Server) recordTrial(ctx context.Context, state *jobState, t hpt.Trial) {
	s.jobsMu.Lock()
	state.job.Evaluations = t.Evaluation
	state.job.UpdatedAt = time.Now().UTC()
	if t.Err == nil && t.Improved {
		state.job.BestObjective = store.Finite(t.Objective)
		state.job.BestParameters = t.Parameters
		state.job.BestArgs = t.Args
	}
	id := state.job.ID
	s.jobsMu.Unlock()

	if err := s.store.SaveTrial(context.WithoutCancel(ctx), store.NewTrialRecord(id, t)); err != nil {
		s.logger.Warn("Failed to persist trial", map[string]interface{}{
			"job_id":     id,
			"evaluation": t.Evaluation,
			"error":      err.Error(),
		})
	}
}

// jobStatus returns the current summary of a job. Jobs that are no longer
// held in memory are read back from the store.
func (s *Server) jobStatus(id string) (map[string]interface{}, error) {
	if id == "" {
		return nil, invalidParams("job_id is required")
	}

	s.jobsMu.RLock()
	state, exists := s.jobs[id]
	var (
		job    store.Job
		budget int
		opt    optimization.Optimizer
	)
	if exists {
		job, budget, opt = state.job, state.budget, state.optimizer
	}
	s.jobsMu.RUnlock()

	if !exists {
		stored, ok, err := s.store.GetJob(context.Background(), id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, cverrors.Wrapf(errJobNotFound, "job %s", id).WithKind(cverrors.KindUsage)
		}
		job = stored
	}

	response := map[string]interface{}{
		"job":      job,
		"progress": progress(job, budget),
	}
	if opt != nil {
		if best := opt.GetBestSolution(); best != nil {
			response["optimizer_best"] = map[string]interface{}{
				"parameters": best.Parameters,
				"value":      best.Value,
			}
		}
	}
	return response, nil
}

func progress(job store.Job, budget int) float64 {
	if job.Status == store.StatusCompleted {
		return 1
	}
	if budget <= 0 {
		return 0
	}
	p := float64(job.Evaluations) / float64(budget)
	if p > 1 {
		p = 1
	}
	return p
}

// cancelJob cancels a pending or running job.
func (s *Server) cancelJob(id string) error {
	if id == "" {
		return invalidParams("job_id is required")
	}

	s.jobsMu.RLock()
	state, exists := s.jobs[id]
	var status string
	if exists {
		status = state.job.Status
	}
	s.jobsMu.RUnlock()

	if !exists {
		return cverrors.Wrapf(errJobNotFound, "job %s", id).WithKind(cverrors.KindUsage)
	}
	if !s.transition(context.Background(), state, store.StatusCancelled, nil) {
		return cverrors.Errorf("cannot cancel job with status: %s", status).
			WithComponent("server").
			WithKind(cverrors.KindUsage)
	}
	state.cancelFunc()

	s.logger.Info("Tuning job cancelled", map[string]interface{}{
		"job_id": id,
	})
	return nil
}

func (s *Server) jobTrials(ctx context.Context, id string) ([]store.TrialRecord, error) {
	if id == "" {
		return nil, invalidParams("job_id is required")
	}
	if _, err := s.jobStatus(id); err != nil {
		return nil, err
	}
	trials, err := s.store.ListTrials(ctx, id)
	if err != nil {
		return nil, err
	}
	if trials == nil {
		trials = []store.TrialRecord{}
	}
	return trials, nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Warn("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := cverrors.HTTPStatus(err)
	if cverrors.Is(err, errJobNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}

// Close cancels every job and waits for the workers to stop.
func (s *Server) Close() error {
	s.jobsMu.RLock()
	for _, state := range s.jobs {
		if state.cancelFunc != nil {
			state.cancelFunc()
		}
	}
	s.jobsMu.RUnlock()

	s.wg.Wait()
	return nil
}

// handleTune handles POST /api/v1/tune
func (s *Server) handleTune(w http.ResponseWriter, r *http.Request) {
	var req tuning.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, invalidParams("invalid request body: %v", err))
		return
	}

	result, err := s.startJob(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

// handleStatus handles GET /api/v1/status/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.jobStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCancel handles DELETE /api/v1/tuning/{id}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.cancelJob(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "cancellation requested",
	})
}

// handleTrials handles GET /api/v1/tuning/{id}/trials
func (s *Server) handleTrials(w http.ResponseWriter, r *http.Request) {
	trials, err := s.jobTrials(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": chi.URLParam(r, "id"),
		"trials": trials,
	})
}
