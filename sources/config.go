package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// SourceConfig identifies one feed. It is read once per run and never
// modified while the run is in progress.
type SourceConfig struct {
	Source      string   `json:"source"`
	SourceURL   string   `json:"source_url"`
	Enabled     bool     `json:"enabled"`
	DefaultTags []string `json:"default_tags,omitempty"`
	Language    *string  `json:"language,omitempty"`
}

// Loader supplies the ordered list of sources for a run.
type Loader interface {
	Sources() ([]SourceConfig, error)
}

// Enabled returns the enabled sources of l, preserving their order.
func Enabled(l Loader) ([]SourceConfig, error) {
	all, err := l.Sources()
	if err != nil {
		return nil, err
	}

	enabled := make([]SourceConfig, 0, len(all))
	for _, cfg := range all {
		if cfg.Enabled {
			enabled = append(enabled, cfg)
		}
	}
	return enabled, nil
}

// Store is a Loader whose list can be edited.
type Store interface {
	Loader
	GetSource(key string) (*SourceConfig, error)
	ListSources(filter SourceFilter) ([]SourceConfig, error)
	CreateSource(cfg SourceConfig) error
	PutSource(cfg SourceConfig) error
	SetEnabled(key string, enabled bool) error
	DeleteSource(key string) error
}

// FileStore keeps sources in a JSON array on disk. Every edit rewrites the
// whole file.
type FileStore struct {
	Path string
}

// Sources implements Loader.
func (f FileStore) Sources() ([]SourceConfig, error) {
	return LoadFile(f.Path)
}

// GetSource retrieves a source by key.
func (f FileStore) GetSource(key string) (*SourceConfig, error) {
	list, err := f.loadOrEmpty()
	if err != nil {
		return nil, err
	}

	i := slices.IndexFunc(list, func(existing SourceConfig) bool { return existing.Source == key })
	if i < 0 {
		return nil, ErrSourceNotFound
	}
	return &list[i], nil
}

// ListSources lists sources with optional filtering, in file order.
func (f FileStore) ListSources(filter SourceFilter) ([]SourceConfig, error) {
	list, err := f.loadOrEmpty()
	if err != nil {
		return nil, err
	}

	filtered := []SourceConfig{}
	for _, cfg := range list {
		if filter.Enabled != nil && cfg.Enabled != *filter.Enabled {
			continue
		}
		filtered = append(filtered, cfg)
	}
	return filtered, nil
}

// CreateSource appends cfg. A missing file is treated as an empty list.
func (f FileStore) CreateSource(cfg SourceConfig) error {
	if err := validateKey(cfg.Source); err != nil {
		return err
	}

	list, err := f.loadOrEmpty()
	if err != nil {
		return err
	}

	for _, existing := range list {
		if existing.Source == cfg.Source || existing.SourceURL == cfg.SourceURL {
			return ErrDuplicateSource
		}
	}

	return SaveFile(f.Path, append(list, cfg))
}

// PutSource replaces the source with the same key in place, or appends cfg.
func (f FileStore) PutSource(cfg SourceConfig) error {
	if err := validateKey(cfg.Source); err != nil {
		return err
	}

	list, err := f.loadOrEmpty()
	if err != nil {
		return err
	}

	i := slices.IndexFunc(list, func(existing SourceConfig) bool { return existing.Source == cfg.Source })
	for j, existing := range list {
		if j != i && existing.SourceURL == cfg.SourceURL {
			return ErrDuplicateSource
		}
	}

	if i >= 0 {
		list[i] = cfg
	} else {
		list = append(list, cfg)
	}

	return SaveFile(f.Path, list)
}

// SetEnabled enables or disables a source.
func (f FileStore) SetEnabled(key string, enabled bool) error {
	list, err := f.loadOrEmpty()
	if err != nil {
		return err
	}

	i := slices.IndexFunc(list, func(existing SourceConfig) bool { return existing.Source == key })
	if i < 0 {
		return ErrSourceNotFound
	}
	list[i].Enabled = enabled

	return SaveFile(f.Path, list)
}

// DeleteSource removes a source.
func (f FileStore) DeleteSource(key string) error {
	list, err := f.loadOrEmpty()
	if err != nil {
		return err
	}

	i := slices.IndexFunc(list, func(existing SourceConfig) bool { return existing.Source == key })
	if i < 0 {
		return ErrSourceNotFound
	}

	return SaveFile(f.Path, slices.Delete(list, i, i+1))
}

func (f FileStore) loadOrEmpty() ([]SourceConfig, error) {
	if _, err := os.Stat(f.Path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return LoadFile(f.Path)
}

// LoadFile reads a JSON array of source configurations. Every key is
// validated the same way the stores validate them on insert.
func LoadFile(path string) ([]SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var list []SourceConfig
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	for _, cfg := range list {
		if err := validateKey(cfg.Source); err != nil {
			return nil, fmt.Errorf("invalid source %q in sources file: %w", cfg.Source, err)
		}
	}

	return list, nil
}

// SaveFile writes list as an indented JSON array, creating parent
// directories as needed.
func SaveFile(path string, list []SourceConfig) error {
	if list == nil {
		list = []SourceConfig{}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create sources directory: %w", err)
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write sources file: %w", err)
	}

	return nil
}

var (
	_ Store = FileStore{}
	_ Store = (*SourceStore)(nil)
)
