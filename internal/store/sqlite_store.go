package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	problem     TEXT NOT NULL,
	algorithm   TEXT NOT NULL,
	best_json   TEXT NOT NULL,
	iterations  INTEGER NOT NULL,
	parent_id   TEXT,
	created_at  TEXT NOT NULL,
	record_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at);
`

// SQLiteStore implements the Store interface on a SQLite database. The
// full record is kept as JSON next to the columns used for listing.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and runs
// migrations. Use ":memory:" for a throwaway store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts or replaces the record in a single transaction.
func (s *SQLiteStore) SaveRun(record *RunRecord) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if record.ID == "" {
		return fmt.Errorf("run ID cannot be empty")
	}

	info := record.ToInfo()
	bestJSON, err := json.Marshal(info.Best)
	if err != nil {
		return fmt.Errorf("marshal best fitness: %w", err)
	}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT OR REPLACE INTO runs (id, status, problem, algorithm, best_json, iterations, parent_id, created_at, record_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Status, info.Problem, info.Algorithm, string(bestJSON), record.Iterations,
		nullable(record.ParentID), record.Timestamp.UTC().Format(time.RFC3339Nano), string(recordJSON),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.Debug("Run saved", "runID", record.ID, "backend", "sqlite")
	return nil
}

// LoadRun retrieves the record of the given run.
func (s *SQLiteStore) LoadRun(runID string) (*RunRecord, error) {
	var data string
	err := s.db.QueryRow(`SELECT record_json FROM runs WHERE id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{RunID: runID}
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	var record RunRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("unmarshal run record: %w", err)
	}
	return &record, nil
}

// ListRuns returns metadata for all stored runs, newest first. Only the
// listing columns are read.
func (s *SQLiteStore) ListRuns() ([]RunInfo, error) {
	rows, err := s.db.Query(
		`SELECT id, status, problem, algorithm, best_json, iterations, created_at
		 FROM runs ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	infos := []RunInfo{}
	for rows.Next() {
		var info RunInfo
		var bestJSON, createdAt string
		if err := rows.Scan(&info.ID, &info.Status, &info.Problem, &info.Algorithm, &bestJSON, &info.Iterations, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(bestJSON), &info.Best); err != nil {
			return nil, fmt.Errorf("unmarshal best fitness of %s: %w", info.ID, err)
		}
		if info.Timestamp, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", info.ID, err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// DeleteRun removes the record of the given run.
func (s *SQLiteStore) DeleteRun(runID string) error {
	res, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return &NotFoundError{RunID: runID}
	}

	slog.Debug("Run deleted", "runID", runID, "backend", "sqlite")
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
