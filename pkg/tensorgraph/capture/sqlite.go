package capture

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists captures to SQLite.
// It is suitable for single-process debugging sessions whose captures
// should outlive the process.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite capture store.
// The path should be a file path (e.g., "./captures.db") or ":memory:"
// for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS captures (
			run_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			node_id TEXT NOT NULL,
			slot INTEGER NOT NULL,
			frame TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (run_id, sequence)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_captures_run_id
		ON captures(run_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	data, err := rec.Marshal()
	if err != nil {
		return fmt.Errorf("marshal capture: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO captures (run_id, sequence, node_id, slot, frame, timestamp, data)
		VALUES (
			?,
			COALESCE((SELECT MAX(sequence) FROM captures WHERE run_id = ?), 0) + 1,
			?, ?, ?, ?, ?
		)
	`, rec.RunID, rec.RunID, rec.NodeID, rec.Slot, rec.Frame,
		rec.Timestamp.Format(time.RFC3339Nano), data)

	if err != nil {
		return fmt.Errorf("save capture: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(runID string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT data FROM captures
		WHERE run_id = ?
		ORDER BY sequence
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan capture: %w", err)
		}
		rec, err := Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("unmarshal capture: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate captures: %w", err)
	}

	if len(recs) == 0 {
		return nil, ErrRunNotFound
	}
	return recs, nil
}

// Runs implements Store.
func (s *SQLiteStore) Runs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT DISTINCT run_id FROM captures ORDER BY run_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var runID string
		if err := rows.Scan(&runID); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		runs = append(runs, runID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		DELETE FROM captures WHERE run_id = ?
	`, runID)
	if err != nil {
		return fmt.Errorf("delete run captures: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
