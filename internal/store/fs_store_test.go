package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cwbudde/metaopt/internal/config"
	"github.com/cwbudde/metaopt/internal/search"
)

// setupTestStore creates a temporary directory and returns an FSStore for testing.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return store, tempDir
}

// createTestRecord creates a run record with test data.
func createTestRecord(runID string) *RunRecord {
	cfg := config.Defaults()
	cfg.Problem = config.ProblemConfig{Name: "sphere", Dimension: 3}

	best := search.NewState(search.Encoding{0.1, -0.2, 0.05}).WithFitness([]float64{0.0525})
	best.Iteration = 420
	best.Origin = search.HillClimbing

	return &RunRecord{
		ID:         runID,
		Status:     StatusCompleted,
		Config:     cfg,
		Best:       best,
		Offline:    []float64{1.5},
		Iterations: 1000,
		ElapsedMs:  12,
		Timestamp:  time.Now(),
	}
}

// backends returns every Store implementation, freshly created.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	fs, _ := setupTestStore(t)
	db, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return map[string]Store{"fs": fs, "sqlite": db}
}

func TestNewFSStore(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if store.BaseDir() != tempDir {
		t.Errorf("BaseDir = %s, want %s", store.BaseDir(), tempDir)
	}

	// Verify base directory was created
	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Fatal("Base directory was not created")
	}
}

func TestSaveRun_FileLayout(t *testing.T) {
	store, tempDir := setupTestStore(t)

	if err := store.SaveRun(createTestRecord("run-123")); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "runs", "run-123", "run.json")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Fatalf("Run file was not created at %s", expectedPath)
	}

	// Temp file should be renamed away
	if _, err := os.Stat(expectedPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file was left behind")
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			original := createTestRecord("run-load")
			original.Front = []*search.State{original.Best}
			original.ParentID = "run-parent"

			if err := store.SaveRun(original); err != nil {
				t.Fatalf("SaveRun failed: %v", err)
			}

			loaded, err := store.LoadRun("run-load")
			if err != nil {
				t.Fatalf("LoadRun failed: %v", err)
			}

			if loaded.ID != original.ID || loaded.Status != original.Status || loaded.ParentID != "run-parent" {
				t.Errorf("Metadata mismatch: %+v", loaded)
			}
			if !loaded.Best.Equal(original.Best) || loaded.Best.Primary() != original.Best.Primary() {
				t.Errorf("Best mismatch: %v vs %v", loaded.Best, original.Best)
			}
			if loaded.Best.Origin != search.HillClimbing || loaded.Best.Iteration != 420 {
				t.Errorf("Provenance lost: %+v", loaded.Best)
			}
			if len(loaded.Front) != 1 || len(loaded.Offline) != 1 || loaded.Offline[0] != 1.5 {
				t.Errorf("Reporting data lost: front %d, offline %v", len(loaded.Front), loaded.Offline)
			}
			if loaded.Config.Problem != original.Config.Problem {
				t.Errorf("Config mismatch: %+v", loaded.Config.Problem)
			}
			if err := loaded.Validate(); err != nil {
				t.Errorf("Loaded record does not validate: %v", err)
			}
		})
	}
}

func TestStore_Overwrite(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			record := createTestRecord("run-overwrite")
			if err := store.SaveRun(record); err != nil {
				t.Fatal(err)
			}

			record.Iterations = 2000
			record.Status = StatusStopped
			if err := store.SaveRun(record); err != nil {
				t.Fatal(err)
			}

			loaded, err := store.LoadRun("run-overwrite")
			if err != nil {
				t.Fatal(err)
			}
			if loaded.Iterations != 2000 || loaded.Status != StatusStopped {
				t.Errorf("Overwrite lost: %+v", loaded)
			}

			infos, err := store.ListRuns()
			if err != nil {
				t.Fatal(err)
			}
			if len(infos) != 1 {
				t.Errorf("Expected 1 run after overwrite, got %d", len(infos))
			}
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.LoadRun("nonexistent")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("LoadRun: expected ErrNotFound, got %v", err)
			}

			var nf *NotFoundError
			if errors.As(err, &nf) && nf.RunID != "nonexistent" {
				t.Errorf("RunID = %q, want nonexistent", nf.RunID)
			}

			if err := store.DeleteRun("nonexistent"); !errors.Is(err, ErrNotFound) {
				t.Errorf("DeleteRun: expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_SaveInvalid(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.SaveRun(nil); err == nil {
				t.Error("Expected error for nil record")
			}
			if err := store.SaveRun(createTestRecord("")); err == nil {
				t.Error("Expected error for empty run ID")
			}
		})
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			infos, err := store.ListRuns()
			if err != nil {
				t.Fatalf("ListRuns failed: %v", err)
			}
			if len(infos) != 0 {
				t.Fatalf("Expected empty list, got %d", len(infos))
			}

			base := time.Now()
			for i := range 3 {
				r := createTestRecord(fmt.Sprintf("run-%d", i))
				r.Timestamp = base.Add(time.Duration(i) * time.Minute)
				if err := store.SaveRun(r); err != nil {
					t.Fatal(err)
				}
			}

			infos, err = store.ListRuns()
			if err != nil {
				t.Fatal(err)
			}
			if len(infos) != 3 {
				t.Fatalf("Expected 3 runs, got %d", len(infos))
			}
			if infos[0].ID != "run-2" || infos[2].ID != "run-0" {
				t.Errorf("Unexpected order: %s, %s, %s", infos[0].ID, infos[1].ID, infos[2].ID)
			}
			if infos[0].Problem != "sphere" || len(infos[0].Best) != 1 {
				t.Errorf("Unexpected info %+v", infos[0])
			}
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.SaveRun(createTestRecord("run-delete")); err != nil {
				t.Fatal(err)
			}
			if err := store.DeleteRun("run-delete"); err != nil {
				t.Fatalf("DeleteRun failed: %v", err)
			}
			if _, err := store.LoadRun("run-delete"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}

func TestListRuns_SkipsInvalidDirectories(t *testing.T) {
	store, tempDir := setupTestStore(t)

	if err := store.SaveRun(createTestRecord("valid-run")); err != nil {
		t.Fatal(err)
	}

	// Directory without run.json (e.g. a trace of an unfinished run)
	if err := os.MkdirAll(filepath.Join(tempDir, "runs", "no-record"), 0755); err != nil {
		t.Fatal(err)
	}

	// Corrupted run.json
	corruptDir := filepath.Join(tempDir, "runs", "corrupt")
	if err := os.MkdirAll(corruptDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(corruptDir, "run.json"), []byte("{invalid"), 0644); err != nil {
		t.Fatal(err)
	}

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "valid-run" {
		t.Errorf("Expected only valid-run, got %+v", infos)
	}
}

func TestDeleteRun_RemovesTrace(t *testing.T) {
	store, tempDir := setupTestStore(t)

	if err := store.SaveRun(createTestRecord("run-trace")); err != nil {
		t.Fatal(err)
	}
	w, err := NewTraceWriter(tempDir, "run-trace", false)
	if err != nil {
		t.Fatal(err)
	}
	w.Close()

	if err := store.DeleteRun("run-trace"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "runs", "run-trace")); !os.IsNotExist(err) {
		t.Error("Run directory still exists after delete")
	}
}

func TestStore_ConcurrentSave(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			errs := make(chan error, 10)
			for i := range 10 {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs <- store.SaveRun(createTestRecord(fmt.Sprintf("concurrent-%d", i)))
				}(i)
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				if err != nil {
					t.Errorf("Concurrent save failed: %v", err)
				}
			}

			infos, err := store.ListRuns()
			if err != nil {
				t.Fatal(err)
			}
			if len(infos) != 10 {
				t.Errorf("Expected 10 runs, got %d", len(infos))
			}
		})
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(filepath.Join(dir, "runs.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("Expected *SQLiteStore, got %T", s)
	}
	s.(*SQLiteStore).Close()

	s, err = Open(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*FSStore); !ok {
		t.Errorf("Expected *FSStore, got %T", s)
	}
}
