package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/oppfeed/runs"
	"github.com/pevans/oppfeed/sources"
)

// maxFeedSize caps a single download.
const maxFeedSize = 32 << 20

// SourceError pairs a source with the error that stopped it.
type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

// FetchSummary reports the outcome of a fetch run.
type FetchSummary struct {
	RunID     uuid.UUID
	Succeeded int
	Failed    int
	Bytes     int64
	Errors    []SourceError
}

// Fetch downloads the feed of every enabled source and stores it as today's
// raw snapshot and as latest.xml. A failing source is reported in the
// summary and does not stop the others. The returned error is non-nil only
// when the source list itself cannot be loaded.
func (p *Pipeline) Fetch(ctx context.Context) (*FetchSummary, error) {
	started := p.now()

	enabled, err := sources.Enabled(p.sources)
	if err != nil {
		err = fmt.Errorf("failed to load sources: %w", err)
		p.record(runs.KindFetch, started, 0, 0, 0, err)
		return nil, err
	}

	slog.Info("Fetching feeds", "sources", len(enabled))

	summary := &FetchSummary{}
	for _, cfg := range enabled {
		if err := ctx.Err(); err != nil {
			p.record(runs.KindFetch, started, len(enabled), summary.Failed, summary.Succeeded, err)
			return nil, err
		}

		size, err := p.fetchSource(ctx, cfg, started)
		if err != nil {
			slog.Error("Failed to fetch feed", "source", cfg.Source, "url", cfg.SourceURL, "err", err)
			summary.Failed++
			summary.Errors = append(summary.Errors, SourceError{Source: cfg.Source, Err: err})
			continue
		}

		summary.Succeeded++
		summary.Bytes += size
	}

	summary.RunID = p.record(runs.KindFetch, started, len(enabled), summary.Failed, summary.Succeeded, nil)
	slog.Info("Fetch done", "succeeded", summary.Succeeded, "failed", summary.Failed)

	return summary, nil
}

// fetchSource downloads one feed and stores the snapshot under day.
func (p *Pipeline) fetchSource(ctx context.Context, cfg sources.SourceConfig, day time.Time) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.SourceURL, nil)
	if err != nil {
		return 0, fmt.Errorf("invalid url: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	slog.Debug("Fetching feed", "source", cfg.Source, "url", cfg.SourceURL)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize+1))
	if err != nil {
		return 0, fmt.Errorf("failed to read body: %w", err)
	}
	if len(content) > maxFeedSize {
		return 0, fmt.Errorf("feed exceeds %d bytes", maxFeedSize)
	}

	path, err := p.layout.WriteRaw(cfg.Source, day, content)
	if err != nil {
		return 0, err
	}

	slog.Info("Saved feed snapshot", "source", cfg.Source, "path", path, "kb", len(content)/1024)
	return int64(len(content)), nil
}
