package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/metaopt/internal/config"
	"github.com/cwbudde/metaopt/internal/search"
	"github.com/cwbudde/metaopt/internal/store"
	"github.com/cwbudde/metaopt/internal/strategy"
)

// waitForState polls until the job reaches a terminal state.
func waitForState(t *testing.T, s *Server, id string) *Job {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := s.jobManager.GetJob(id)
		if ok && job.State.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Job %s did not finish", id)
	return nil
}

func TestServer_CreateRun(t *testing.T) {
	s := NewServer(":8080", nil)

	body, _ := json.Marshal(testConfig(50))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var job Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if job.State != StatePending {
		t.Errorf("Expected pending state, got %s", job.State)
	}

	final := waitForState(t, s, job.ID)
	if final.State != StateCompleted {
		t.Errorf("Expected completed, got %s (%s)", final.State, final.Error)
	}
}

func TestServer_CreateRun_Defaults(t *testing.T) {
	s := NewServer(":8080", nil)

	body := `{"problem":{"name":"onemax","dimension":16},"maxIterations":20}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(body))
	w := httptest.NewRecorder()

	s.handleCreateRun(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var job Job
	json.NewDecoder(w.Body).Decode(&job)
	if job.Config.Algorithm != "hill-climbing" || job.Config.OperatorBudget != 1 {
		t.Errorf("Defaults not applied: %+v", job.Config)
	}
	waitForState(t, s, job.ID)
}

func TestServer_CreateRun_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", "{invalid"},
		{"unknown field", `{"colour":"red"}`},
		{"zero iterations", `{"maxIterations":0}`},
		{"unknown algorithm", `{"algorithm":"quantum"}`},
		{"front policy without front", `{"acceptance":"pareto"}`},
	}

	s := NewServer(":8080", nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			s.handleCreateRun(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}

	if len(s.jobManager.ListJobs()) != 0 {
		t.Error("Rejected requests should not create jobs")
	}
}

func TestServer_ListRuns(t *testing.T) {
	runStore, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(":8080", runStore)

	s.jobManager.CreateJob(testConfig(10))
	s.jobManager.CreateJob(testConfig(10))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	w := httptest.NewRecorder()

	s.handleListRuns(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Jobs   []*Job          `json:"jobs"`
		Stored []store.RunInfo `json:"stored"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(response.Jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(response.Jobs))
	}
	if response.Stored == nil {
		t.Error("Stored runs should be listed when a store is configured")
	}
}

func TestServer_GetRunStatus(t *testing.T) {
	s := NewServer(":8080", nil)

	job := s.jobManager.CreateJob(testConfig(10))

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/runs/%s/status", job.ID), nil)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response["id"] != job.ID {
		t.Error("Response should contain job ID")
	}
	if response["state"] != string(StatePending) {
		t.Errorf("Expected pending state, got %v", response["state"])
	}
}

func TestServer_GetRunStatus_NotFound(t *testing.T) {
	s := NewServer(":8080", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/nonexistent/status", nil)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_Routing(t *testing.T) {
	s := NewServer(":8080", nil)
	job := s.jobManager.CreateJob(testConfig(10))

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPut, "/api/v1/runs", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/runs/", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/runs/" + job.ID + "/unknown", http.StatusNotFound},
		{http.MethodPost, "/api/v1/runs/" + job.ID, http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/runs/" + job.ID + "/front", http.StatusConflict},
		{http.MethodGet, "/api/v1/runs/" + job.ID + "/offline", http.StatusConflict},
		{http.MethodGet, "/api/v1/runs/missing/front", http.StatusNotFound},
		{http.MethodDelete, "/api/v1/runs/missing", http.StatusNotFound},
		{http.MethodOptions, "/api/v1/runs", http.StatusOK},
		{http.MethodGet, "/favicon.ico", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			s.Handler().ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestServer_FrontAndOffline(t *testing.T) {
	s := NewServer(":8080", nil)

	cfg := testConfig(100)
	cfg.Problem = config.ProblemConfig{Name: "zdt1", Dimension: 5}
	cfg.Algorithm = "simulated-annealing"
	cfg.TrackFront = true

	job := s.jobManager.CreateJob(cfg)
	if err := runJob(context.Background(), s.jobManager, nil, job.ID); err != nil {
		t.Fatalf("runJob failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+job.ID+"/front", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var front []*search.State
	if err := json.NewDecoder(w.Body).Decode(&front); err != nil {
		t.Fatal(err)
	}
	if len(front) == 0 {
		t.Error("Front should not be empty")
	}
	for _, m := range front {
		if len(m.Fitness) != 2 {
			t.Errorf("Front member should have 2 objectives, got %v", m.Fitness)
		}
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+job.ID+"/offline", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var offline []float64
	if err := json.NewDecoder(w.Body).Decode(&offline); err != nil {
		t.Fatal(err)
	}
	if len(offline) != 1 {
		t.Errorf("Expected 1 offline value, got %v", offline)
	}
}

func TestServer_StoredRunFallback(t *testing.T) {
	runStore, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	// Save a record as a previous server process would have
	cfg := testConfig(10)
	best := search.NewState(search.Encoding{0, 0, 0}).WithFitness([]float64{0})
	record := store.NewRunRecord("stored-run", cfg, &strategy.Result{Best: best, Offline: []float64{0.5}, Iterations: 10})
	if err := runStore.SaveRun(record); err != nil {
		t.Fatal(err)
	}

	s := NewServer(":8080", runStore)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/stored-run/status", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var status map[string]any
	json.NewDecoder(w.Body).Decode(&status)
	if status["stored"] != true || status["state"] != store.StatusCompleted {
		t.Errorf("Unexpected status %v", status)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/runs/stored-run/offline", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var offline []float64
	json.NewDecoder(w.Body).Decode(&offline)
	if len(offline) != 1 || offline[0] != 0.5 {
		t.Errorf("Unexpected offline %v", offline)
	}
}

func TestServer_CancelRun(t *testing.T) {
	s := NewServer(":8080", nil)

	body, _ := json.Marshal(testConfig(50_000_000))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.handleCreateRun(w, req)

	var job Job
	json.NewDecoder(w.Body).Decode(&job)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/runs/"+job.ID, nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", w.Code)
	}

	final := waitForState(t, s, job.ID)
	if final.State != StateCancelled {
		t.Errorf("Expected cancelled, got %s", final.State)
	}

	// A second cancel conflicts
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/runs/"+job.ID, nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}
}

func TestServer_Shutdown(t *testing.T) {
	s := NewServer(":8080", nil)

	body, _ := json.Marshal(testConfig(50_000_000))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.handleCreateRun(w, req)

	var job Job
	json.NewDecoder(w.Body).Decode(&job)

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if final := waitForState(t, s, job.ID); final.State != StateCancelled {
		t.Errorf("Expected cancelled after shutdown, got %s", final.State)
	}
}

func TestServer_JobStream_SSE(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping SSE test in short mode")
	}

	s := NewServer(":8080", nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	// Long enough to emit a few throttled progress events
	cfg := testConfig(50_000_000)
	job := s.jobManager.CreateJob(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runJob(ctx, s.jobManager, nil, job.ID)

	resp, err := http.Get(ts.URL + "/api/v1/runs/" + job.ID + "/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Error("Expected text/event-stream content type")
	}

	// Stop the run after the first progress events; the stream must end
	time.AfterFunc(1200*time.Millisecond, cancel)

	var events []ProgressEvent
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("Failed to read stream: %v", err)
	}
	for _, line := range strings.Split(buf.String(), "\n") {
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var e ProgressEvent
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			t.Fatalf("Invalid event %q: %v", data, err)
		}
		events = append(events, e)
	}

	if len(events) < 2 {
		t.Fatalf("Expected initial and terminal events, got %d", len(events))
	}
	last := events[len(events)-1]
	if last.State != StateCancelled {
		t.Errorf("Last event should be terminal, got %s", last.State)
	}
	if last.Iterations == 0 || len(last.Best) != 1 {
		t.Errorf("Terminal event should carry progress, got %+v", last)
	}
}

func TestServer_JobStream_Finished(t *testing.T) {
	s := NewServer(":8080", nil)

	job := s.jobManager.CreateJob(testConfig(20))
	if err := runJob(context.Background(), s.jobManager, nil, job.ID); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+job.ID+"/stream", nil)
	w := httptest.NewRecorder()

	// Returns immediately with a single terminal event
	s.handleJobStream(w, req, job.ID)

	if strings.Count(w.Body.String(), "data: ") != 1 {
		t.Errorf("Expected one event, got %q", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"state":"completed"`) {
		t.Errorf("Expected completed state in %q", w.Body.String())
	}
}

func TestServer_JobStream_NotFound(t *testing.T) {
	s := NewServer(":8080", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/nonexistent/stream", nil)
	w := httptest.NewRecorder()

	s.handleJobStream(w, req, "nonexistent")

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestEventBroadcaster(t *testing.T) {
	eb := NewEventBroadcaster()

	ch := eb.Subscribe("job1")
	defer eb.Unsubscribe("job1", ch)

	event := ProgressEvent{
		JobID:      "job1",
		State:      StateRunning,
		Iterations: 10,
		Best:       []float64{100.5},
		Rate:       1500.0,
		Timestamp:  time.Now(),
	}
	eb.Broadcast(event)

	select {
	case received := <-ch:
		if received.JobID != "job1" {
			t.Errorf("Expected jobID job1, got %s", received.JobID)
		}
		if received.Iterations != 10 {
			t.Errorf("Expected 10 iterations, got %d", received.Iterations)
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for event")
	}

	// Late subscribers receive the last event
	late := eb.Subscribe("job1")
	select {
	case received := <-late:
		if received.Iterations != 10 {
			t.Errorf("Expected cached event, got %+v", received)
		}
	default:
		t.Error("Late subscriber did not receive the cached event")
	}

	eb.CleanupJob("job1")
	if _, ok := <-late; ok {
		t.Error("Channel should be closed after cleanup")
	}
	// Unsubscribing after cleanup must not panic
	eb.Unsubscribe("job1", late)
}

func TestServer_Index(t *testing.T) {
	s := NewServer(":8080", nil)
	job := s.jobManager.CreateJob(testConfig(10))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	s.handleIndex(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, job.ID) || !strings.Contains(body, "sphere/3") {
		t.Errorf("Index should list the job, got %q", body)
	}
}
