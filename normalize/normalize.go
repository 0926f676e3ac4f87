// Package normalize converts parsed feed entries into canonical
// opportunity records.
package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/pevans/oppfeed/opportunity"
	"github.com/pevans/oppfeed/sources"
)

var (
	// ErrMissingURL marks an entry without a link. Such entries are expected
	// noise and are excluded without being reported as failures.
	ErrMissingURL = errors.New("entry has no url")
	// ErrNilEntry marks a nil entry in the input slice.
	ErrNilEntry = errors.New("entry is nil")
	// ErrInvalidUTF8 marks a source/url pair that cannot be hashed as UTF-8.
	ErrInvalidUTF8 = errors.New("source or url is not valid UTF-8")
)

// RawEntry is one entry of a parsed feed. Every field is optional; a nil
// pointer or empty slice means the feed did not carry it.
type RawEntry struct {
	Link        *string
	Title       *string
	Summary     *string
	Description *string
	Content     []ContentBlock
	Published   *Timestamp
	Updated     *Timestamp
	Categories  []string
}

// ContentBlock is one content element of an entry.
type ContentBlock struct {
	Type  string
	Value *string
}

// Result is the outcome of normalizing one entry: either a record or the
// reason the entry was skipped.
type Result struct {
	Record *opportunity.Opportunity
	Reason error
}

// Skipped reports whether the entry produced no record.
func (r Result) Skipped() bool {
	return r.Record == nil
}

// Batch is the output of normalizing all entries of one source.
type Batch struct {
	Records []opportunity.Opportunity
	// Read is the number of entries seen.
	Read int
	// Excluded counts entries without a URL.
	Excluded int
	// Skipped counts entries that failed for any other reason.
	Skipped int
}

// Normalize converts entries from one source into opportunities, in input
// order. Per-entry failures are logged and counted; they never stop the
// batch.
func Normalize(cfg sources.SourceConfig, entries []*RawEntry, runAt time.Time) Batch {
	batch := Batch{Records: make([]opportunity.Opportunity, 0, len(entries))}

	for _, entry := range entries {
		batch.Read++

		result := NormalizeEntry(cfg, entry, runAt)
		if !result.Skipped() {
			batch.Records = append(batch.Records, *result.Record)
			continue
		}

		if errors.Is(result.Reason, ErrMissingURL) {
			batch.Excluded++
			continue
		}

		batch.Skipped++
		slog.Warn("Skipping entry",
			"source", cfg.Source,
			"title", entry.titleOr("<no title>"),
			"url", entry.linkOr("<no url>"),
			"err", result.Reason,
		)
	}

	return batch
}

// NormalizeEntry converts a single entry.
func NormalizeEntry(cfg sources.SourceConfig, entry *RawEntry, runAt time.Time) Result {
	if entry == nil {
		return Result{Reason: ErrNilEntry}
	}

	url := entry.linkOr("")
	if url == "" {
		return Result{Reason: ErrMissingURL}
	}
	if !utf8.ValidString(cfg.Source) || !utf8.ValidString(url) {
		return Result{Reason: fmt.Errorf("failed to build id: %w", ErrInvalidUTF8)}
	}

	published := FormatTimestamp(entry.Published)
	if published == nil {
		published = FormatTimestamp(entry.Updated)
	}

	now := opportunity.FormatTime(runAt)

	return Result{Record: &opportunity.Opportunity{
		ID:          opportunity.NewID(cfg.Source, url),
		Title:       entry.titleOr(""),
		URL:         url,
		Source:      cfg.Source,
		SourceURL:   cfg.SourceURL,
		PublishedAt: published,
		Summary:     CleanHTML(entry.rawSummary()),
		Tags:        MergeTags(cfg.DefaultTags, entry.Categories),
		Location:    nil,
		Deadline:    nil,
		Language:    cfg.Language,
		CreatedAt:   now,
		UpdatedAt:   now,
	}}
}

// MergeTags returns defaults followed by each term not already present.
// Comparison is exact and case-sensitive; empty terms are ignored.
func MergeTags(defaults, terms []string) []string {
	tags := make([]string, 0, len(defaults)+len(terms))
	seen := make(map[string]bool, len(defaults)+len(terms))

	for _, tag := range defaults {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, term := range terms {
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		tags = append(tags, term)
	}

	return tags
}

// rawSummary picks the first non-empty of summary, description and the
// first content block.
func (e *RawEntry) rawSummary() string {
	if e.Summary != nil && *e.Summary != "" {
		return *e.Summary
	}
	if e.Description != nil && *e.Description != "" {
		return *e.Description
	}
	if len(e.Content) > 0 && e.Content[0].Value != nil {
		return *e.Content[0].Value
	}
	return ""
}

func (e *RawEntry) linkOr(fallback string) string {
	if e == nil || e.Link == nil || *e.Link == "" {
		return fallback
	}
	return *e.Link
}

func (e *RawEntry) titleOr(fallback string) string {
	if e == nil || e.Title == nil || *e.Title == "" {
		return fallback
	}
	return *e.Title
}
