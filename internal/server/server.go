package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwbudde/metaopt/internal/search"
	"github.com/cwbudde/metaopt/internal/store"
)

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	store      store.Store
	addr       string
	server     *http.Server

	// ctx is the parent of every job context; Shutdown cancels it
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new HTTP server. runStore may be nil, in which case
// results are only kept in memory.
func NewServer(addr string, runStore store.Store) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		jobManager: NewJobManager(),
		store:      runStore,
		addr:       addr,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Handler returns the routed handler with middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleRunsWithID)

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown stops all running jobs and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server", "running_jobs", len(s.jobManager.GetRunningJobs()))
	s.cancel()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleRuns handles /api/v1/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRunsWithID handles /api/v1/runs/:id/*
func (s *Server) handleRunsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}

	runID := parts[0]

	if len(parts) == 1 && r.Method == http.MethodDelete {
		s.handleCancelRun(w, r, runID)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if len(parts) == 1 || parts[1] == "status" {
		s.handleGetRunStatus(w, r, runID)
	} else if parts[1] == "stream" {
		s.handleJobStream(w, r, runID)
	} else if parts[1] == "front" {
		s.handleGetFront(w, r, runID)
	} else if parts[1] == "offline" {
		s.handleGetOffline(w, r, runID)
	} else {
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateRun handles POST /api/v1/runs
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	cfg, err := decodeRunConfig(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := s.jobManager.CreateJob(cfg)

	ctx, cancel := context.WithCancel(s.ctx)
	s.jobManager.UpdateJob(job.ID, func(j *Job) { j.cancel = cancel })

	go func() {
		defer cancel()
		runJob(ctx, s.jobManager, s.store, job.ID)
	}()

	writeJSON(w, http.StatusCreated, job)
}

// handleListRuns handles GET /api/v1/runs.
// Runs of this process come first, followed by stored runs.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{"jobs": s.jobManager.ListJobs()}

	if s.store != nil {
		infos, err := s.store.ListRuns()
		if err != nil {
			http.Error(w, "Failed to list stored runs", http.StatusInternalServerError)
			return
		}
		response["stored"] = infos
	}

	writeJSON(w, http.StatusOK, response)
}

// handleGetRunStatus handles GET /api/v1/runs/:id/status
func (s *Server) handleGetRunStatus(w http.ResponseWriter, r *http.Request, runID string) {
	job, exists := s.jobManager.GetJob(runID)
	if !exists {
		record, err := s.loadRecord(runID)
		if err != nil {
			s.writeLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":         record.ID,
			"state":      record.Status,
			"config":     record.Config,
			"best":       record.Best,
			"iterations": record.Iterations,
			"elapsed":    float64(record.ElapsedMs) / 1000,
			"startTime":  record.Timestamp,
			"stored":     true,
		})
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	event := newProgressEvent(job)
	response := map[string]any{
		"id":         job.ID,
		"state":      job.State,
		"phase":      job.Phase,
		"config":     job.Config,
		"best":       job.Best,
		"iterations": job.Iterations,
		"elapsed":    elapsed.Seconds(),
		"rate":       event.Rate,
		"startTime":  job.StartTime,
		"endTime":    job.EndTime,
		"error":      job.Error,
		"saved":      job.Saved,
	}
	if job.Result != nil {
		response["generators"] = job.Result.Generators
		response["stopped"] = job.Result.Stopped
	}

	writeJSON(w, http.StatusOK, response)
}

// handleGetFront handles GET /api/v1/runs/:id/front
func (s *Server) handleGetFront(w http.ResponseWriter, r *http.Request, runID string) {
	front, _, err := s.results(runID)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	if front == nil {
		front = []*search.State{}
	}
	writeJSON(w, http.StatusOK, front)
}

// handleGetOffline handles GET /api/v1/runs/:id/offline
func (s *Server) handleGetOffline(w http.ResponseWriter, r *http.Request, runID string) {
	_, offline, err := s.results(runID)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offline)
}

// handleCancelRun handles DELETE /api/v1/runs/:id
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request, runID string) {
	if _, exists := s.jobManager.GetJob(runID); !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err := s.jobManager.CancelJob(runID); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// errNoResults is returned for runs that have not ended yet
var errNoResults = errors.New("no results yet")

// results returns the front and offline performance of an ended run,
// from memory or from the store.
func (s *Server) results(runID string) ([]*search.State, []float64, error) {
	if job, exists := s.jobManager.GetJob(runID); exists {
		if job.Result == nil {
			return nil, nil, errNoResults
		}
		return job.Result.Front, job.Result.Offline, nil
	}

	record, err := s.loadRecord(runID)
	if err != nil {
		return nil, nil, err
	}
	return record.Front, record.Offline, nil
}

func (s *Server) loadRecord(runID string) (*store.RunRecord, error) {
	if s.store == nil {
		return nil, &store.NotFoundError{RunID: runID}
	}
	return s.store.LoadRun(runID)
}

// writeLookupError maps lookup failures to status codes.
func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Run not found", http.StatusNotFound)
	case errors.Is(err, errNoResults):
		http.Error(w, "No results yet", http.StatusConflict)
	default:
		slog.Error("Failed to load run", "error", err)
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
