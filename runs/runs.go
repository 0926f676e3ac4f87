// Package runs keeps a ledger of pipeline runs in SQLite.
package runs

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Run kinds
const (
	KindFetch     = "fetch"
	KindNormalize = "normalize"
	KindMerge     = "merge"
)

// Run statuses
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded execution of a pipeline stage.
type Run struct {
	RunID      uuid.UUID `json:"run_id"`
	Kind       string    `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// Read is entries (normalize), raw records (merge) or sources (fetch).
	Read int `json:"read"`
	// Skipped counts excluded, failed or malformed inputs.
	Skipped int     `json:"skipped"`
	Written int     `json:"written"`
	Status  string  `json:"status"`
	Error   *string `json:"error,omitempty"`
}

// RunStore persists runs using SQLite.
type RunStore struct {
	db *sql.DB
}

// NewRunStore opens or creates the ledger at dbPath.
func NewRunStore(dbPath string) (*RunStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &RunStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *RunStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		read_count INTEGER NOT NULL DEFAULT 0,
		skipped_count INTEGER NOT NULL DEFAULT 0,
		written_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// Record stores run, assigning a new id when it has none. It returns the
// stored id.
func (s *RunStore) Record(run Run) (uuid.UUID, error) {
	if run.RunID == uuid.Nil {
		run.RunID = uuid.New()
	}

	query := `
		INSERT INTO runs (
			run_id, kind, started_at, finished_at,
			read_count, skipped_count, written_count, status, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		run.RunID.String(),
		run.Kind,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		run.Read,
		run.Skipped,
		run.Written,
		run.Status,
		run.Error,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert run: %w", err)
	}

	return run.RunID, nil
}

// GetRun retrieves a run by id.
func (s *RunStore) GetRun(id uuid.UUID) (*Run, error) {
	row := s.db.QueryRow(selectRuns+" WHERE run_id = ?", id.String())

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (s *RunStore) ListRuns(limit int) ([]Run, error) {
	query := selectRuns + " ORDER BY started_at DESC, rowid DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	list := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		list = append(list, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return list, nil
}

const selectRuns = `
	SELECT run_id, kind, started_at, finished_at,
	       read_count, skipped_count, written_count, status, error
	FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var idStr, startedAt, finishedAt string
	var errText sql.NullString

	err := row.Scan(&idStr, &run.Kind, &startedAt, &finishedAt,
		&run.Read, &run.Skipped, &run.Written, &run.Status, &errText)
	if err != nil {
		return nil, err
	}

	run.RunID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run ID: %w", err)
	}
	run.StartedAt = parseTime(startedAt)
	run.FinishedAt = parseTime(finishedAt)
	if errText.Valid {
		run.Error = &errText.String
	}

	return &run, nil
}

// storedTimeLayout has a fixed-width fraction so stored values sort
// chronologically as strings.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.Truncate(0).UTC().Format(storedTimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}
