// Package dataset owns the on-disk layout of the pipeline: raw feed
// snapshots, daily normalized batches and the merged latest dataset.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pevans/oppfeed/merge"
	"github.com/pevans/oppfeed/opportunity"
)

// DateLayout names daily files. Lexicographic order of names produced with
// it equals chronological order.
const DateLayout = "2006-01-02"

// Layout resolves paths below a data directory.
type Layout struct {
	Root string
}

// NewLayout returns the layout rooted at dir.
func NewLayout(dir string) Layout {
	return Layout{Root: dir}
}

// SourcesFile is the JSON list of configured sources.
func (l Layout) SourcesFile() string {
	return filepath.Join(l.Root, "sources", "sources.json")
}

// RawDir holds the snapshots of one source.
func (l Layout) RawDir(source string) string {
	return filepath.Join(l.Root, "raw", source)
}

// RawFile is the snapshot of source taken on day.
func (l Layout) RawFile(source string, day time.Time) string {
	return filepath.Join(l.RawDir(source), day.UTC().Format(DateLayout)+".xml")
}

// LatestRawFile is the most recent snapshot of source.
func (l Layout) LatestRawFile(source string) string {
	return filepath.Join(l.RawDir(source), "latest.xml")
}

// BatchDir holds the normalized daily batches.
func (l Layout) BatchDir() string {
	return filepath.Join(l.Root, "normalized", "opportunities")
}

// BatchFile is the batch written on day.
func (l Layout) BatchFile(day time.Time) string {
	return filepath.Join(l.BatchDir(), day.UTC().Format(DateLayout)+".jsonl")
}

// LatestJSON is the merged dataset as a JSON array.
func (l Layout) LatestJSON() string {
	return filepath.Join(l.Root, "latest", "opportunities.json")
}

// LatestJSONL is the merged dataset as JSON Lines.
func (l Layout) LatestJSONL() string {
	return filepath.Join(l.Root, "latest", "opportunities.jsonl")
}

// FindRawFile returns the snapshot to normalize for source on day: the
// dated file if present, otherwise latest.xml. fellBack reports the second
// case. ok is false when neither exists.
func (l Layout) FindRawFile(source string, day time.Time) (path string, fellBack bool, ok bool) {
	daily := l.RawFile(source, day)
	if fileExists(daily) {
		return daily, false, true
	}

	latest := l.LatestRawFile(source)
	if fileExists(latest) {
		return latest, true, true
	}

	return "", false, false
}

// WriteRaw stores a snapshot both under its date and as latest.xml.
func (l Layout) WriteRaw(source string, day time.Time, content []byte) (string, error) {
	if err := os.MkdirAll(l.RawDir(source), 0o755); err != nil {
		return "", fmt.Errorf("failed to create raw directory: %w", err)
	}

	daily := l.RawFile(source, day)
	for _, path := range []string{daily, l.LatestRawFile(source)} {
		if err := writeFileAtomic(path, content); err != nil {
			return "", err
		}
	}

	return daily, nil
}

// ReadError describes a failure to read a single batch file.
type ReadError struct {
	Filename string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

// ReadResult holds the records of one JSON Lines file.
type ReadResult struct {
	Records []opportunity.Opportunity
	// Malformed counts non-blank lines that were not valid JSON objects.
	Malformed int
}

// ReadJSONL reads a JSON Lines file. Blank lines are ignored and malformed
// lines are counted and skipped. A non-nil error means the file itself could
// not be read.
func ReadJSONL(path string) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	result := &ReadResult{Records: []opportunity.Opportunity{}}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec opportunity.Opportunity
		if err := json.Unmarshal(line, &rec); err != nil {
			result.Malformed++
			continue
		}
		result.Records = append(result.Records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return result, nil
}

// BatchList is the outcome of reading every batch in a directory.
// Unreadable files are collected in Errors rather than failing the whole
// listing.
type BatchList struct {
	Batches   []merge.Batch
	Errors    []ReadError
	Malformed int
}

// ReadBatches reads every *.jsonl file in dir, oldest first. A missing
// directory yields an empty list.
func ReadBatches(dir string) (*BatchList, error) {
	names, err := BatchNames(dir)
	if err != nil {
		return nil, err
	}

	list := &BatchList{}
	for _, name := range names {
		result, err := ReadJSONL(filepath.Join(dir, name))
		if err != nil {
			list.Errors = append(list.Errors, ReadError{Filename: name, Err: err})
			continue
		}

		list.Malformed += result.Malformed
		list.Batches = append(list.Batches, merge.Batch{Name: name, Records: result.Records})
	}

	return list, nil
}

// BatchNames lists the *.jsonl file names in dir in lexicographic order.
func BatchNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read batch directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	return names, nil
}

// WriteJSONL replaces path with one JSON object per record.
func WriteJSONL(path string, records []opportunity.Opportunity) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to marshal record %s: %w", rec.ID, err)
		}
	}

	return writeFileAtomic(path, buf.Bytes())
}

// WriteJSON replaces path with records as a 2-space indented JSON array.
func WriteJSON(path string, records []opportunity.Opportunity) error {
	if records == nil {
		records = []opportunity.Opportunity{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	return writeFileAtomic(path, buf.Bytes())
}

// ReadJSON reads a JSON array written by WriteJSON.
func ReadJSON(path string) ([]opportunity.Opportunity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var records []opportunity.Opportunity
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return records, nil
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place, creating parent directories as needed.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set mode on %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
