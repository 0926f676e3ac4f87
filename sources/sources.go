package sources

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Custom errors for source operations
var (
	ErrSourceNotFound   = errors.New("source not found")
	ErrDuplicateSource  = errors.New("source with this key or URL already exists")
	ErrInvalidSourceKey = errors.New("source key must be non-empty and must not contain '|' or path separators")
)

// SourceStore manages source configurations using SQLite.
type SourceStore struct {
	db *sql.DB
}

// SourceFilter represents filtering options for listing sources.
type SourceFilter struct {
	Enabled *bool // Filter by enabled status
}

// NewSourceStore creates a new source store with the given database path.
func NewSourceStore(dbPath string) (*SourceStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SourceStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the sources table if it doesn't exist. Rows are listed
// in insertion order, which is the processing order of a run.
func (s *SourceStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		source TEXT PRIMARY KEY,
		source_url TEXT NOT NULL UNIQUE,
		enabled INTEGER NOT NULL DEFAULT 1,
		default_tags TEXT NOT NULL DEFAULT '[]',
		language TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SourceStore) Close() error {
	return s.db.Close()
}

// Sources implements Loader, returning every source in insertion order.
func (s *SourceStore) Sources() ([]SourceConfig, error) {
	return s.ListSources(SourceFilter{})
}

// CreateSource stores a new source configuration.
func (s *SourceStore) CreateSource(cfg SourceConfig) error {
	if err := validateKey(cfg.Source); err != nil {
		return err
	}

	tags, err := marshalTags(cfg.DefaultTags)
	if err != nil {
		return err
	}

	now := formatTime(time.Now())
	query := `
		INSERT INTO sources (
			source, source_url, enabled, default_tags, language,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		cfg.Source,
		cfg.SourceURL,
		cfg.Enabled,
		tags,
		cfg.Language,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSource
		}
		return fmt.Errorf("failed to insert source: %w", err)
	}

	return nil
}

// PutSource inserts cfg or replaces the stored configuration with the same
// key. The first insertion position is kept on replace.
func (s *SourceStore) PutSource(cfg SourceConfig) error {
	if err := validateKey(cfg.Source); err != nil {
		return err
	}

	tags, err := marshalTags(cfg.DefaultTags)
	if err != nil {
		return err
	}

	now := formatTime(time.Now())
	query := `
		INSERT INTO sources (
			source, source_url, enabled, default_tags, language,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			source_url = excluded.source_url,
			enabled = excluded.enabled,
			default_tags = excluded.default_tags,
			language = excluded.language,
			updated_at = excluded.updated_at
	`

	_, err = s.db.Exec(query, cfg.Source, cfg.SourceURL, cfg.Enabled, tags, cfg.Language, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSource
		}
		return fmt.Errorf("failed to upsert source: %w", err)
	}

	return nil
}

// GetSource retrieves a source by key.
func (s *SourceStore) GetSource(key string) (*SourceConfig, error) {
	query := `
		SELECT source, source_url, enabled, default_tags, language
		FROM sources
		WHERE source = ?
	`

	cfg, err := scanSource(s.db.QueryRow(query, key))
	if err == sql.ErrNoRows {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query source: %w", err)
	}

	return cfg, nil
}

// ListSources lists sources with optional filtering, in insertion order.
func (s *SourceStore) ListSources(filter SourceFilter) ([]SourceConfig, error) {
	query := `
		SELECT source, source_url, enabled, default_tags, language
		FROM sources
	`

	var args []any
	if filter.Enabled != nil {
		query += " WHERE enabled = ?"
		args = append(args, *filter.Enabled)
	}
	query += " ORDER BY rowid"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	list := []SourceConfig{}
	for rows.Next() {
		cfg, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		list = append(list, *cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}

	return list, nil
}

// SetEnabled enables or disables a source.
func (s *SourceStore) SetEnabled(key string, enabled bool) error {
	result, err := s.db.Exec(
		"UPDATE sources SET enabled = ?, updated_at = ? WHERE source = ?",
		enabled, formatTime(time.Now()), key,
	)
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}

	return requireRow(result)
}

// DeleteSource deletes a source.
func (s *SourceStore) DeleteSource(key string) error {
	result, err := s.db.Exec("DELETE FROM sources WHERE source = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}

	return requireRow(result)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSource is a shared helper that parses a row into a SourceConfig.
func scanSource(row rowScanner) (*SourceConfig, error) {
	var cfg SourceConfig
	var tagsJSON string
	var language sql.NullString

	if err := row.Scan(&cfg.Source, &cfg.SourceURL, &cfg.Enabled, &tagsJSON, &language); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tagsJSON), &cfg.DefaultTags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default_tags: %w", err)
	}
	if len(cfg.DefaultTags) == 0 {
		cfg.DefaultTags = nil
	}
	if language.Valid {
		cfg.Language = &language.String
	}

	return &cfg, nil
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSourceNotFound
	}
	return nil
}

// validateKey rejects keys that would make ids ambiguous or escape the raw
// snapshot directory.
func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, "|/\\\x00") {
		return ErrInvalidSourceKey
	}
	return nil
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to marshal default_tags: %w", err)
	}
	return string(data), nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint") ||
		strings.Contains(err.Error(), "unique constraint")
}

func formatTime(t time.Time) string {
	// Strip monotonic clock for consistent storage and comparisons
	return t.Truncate(0).UTC().Format(time.RFC3339Nano)
}
