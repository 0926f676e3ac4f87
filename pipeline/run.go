package pipeline

import (
	"context"
	"fmt"
	"log/slog"
)

// RunSummary collects the summaries of a full pipeline run.
type RunSummary struct {
	Fetch     *FetchSummary
	Normalize *NormalizeSummary
	Merge     *MergeSummary
}

// Run executes fetch, normalize and merge in order. Failed fetches are
// reported in the summary and do not stop the later stages, since older
// snapshots may still be normalized. Any stage error aborts the run.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{}

	fetched, err := p.Fetch(ctx)
	if err != nil {
		return summary, fmt.Errorf("fetch failed: %w", err)
	}
	summary.Fetch = fetched
	if fetched.Failed > 0 {
		slog.Warn("Some feeds failed to fetch, continuing", "failed", fetched.Failed)
	}

	normalized, err := p.Normalize()
	if err != nil {
		return summary, fmt.Errorf("normalize failed: %w", err)
	}
	summary.Normalize = normalized

	merged, err := p.Merge()
	if err != nil {
		return summary, fmt.Errorf("merge failed: %w", err)
	}
	summary.Merge = merged

	return summary, nil
}
