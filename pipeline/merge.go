package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pevans/oppfeed/dataset"
	"github.com/pevans/oppfeed/merge"
	"github.com/pevans/oppfeed/opportunity"
	"github.com/pevans/oppfeed/runs"
)

// MergeSummary reports the outcome of a merge run.
type MergeSummary struct {
	RunID         uuid.UUID
	BatchesRead   int
	BatchesFailed int
	RecordsRead   int
	// RecordsSkipped counts records without an id and malformed lines.
	RecordsSkipped int
	UniqueRecords  int
	JSONPath       string
	JSONLPath      string
}

// Merge folds every batch, oldest first, into the latest dataset and writes
// it both as a JSON array and as JSON Lines. Unreadable batches are logged
// and skipped. Failing to write either output is returned as an error.
func (p *Pipeline) Merge() (*MergeSummary, error) {
	started := p.now()

	list, err := dataset.ReadBatches(p.layout.BatchDir())
	if err != nil {
		p.record(runs.KindMerge, started, 0, 0, 0, err)
		return nil, err
	}

	for _, readErr := range list.Errors {
		slog.Warn("Could not read batch", "path", readErr.Filename, "err", readErr.Err)
	}

	slog.Info("Merging batches", "count", len(list.Batches))

	result := merge.Merge(list.Batches)
	summary := &MergeSummary{
		BatchesRead:    len(list.Batches),
		BatchesFailed:  len(list.Errors),
		RecordsRead:    result.Read,
		RecordsSkipped: result.Skipped + list.Malformed,
		UniqueRecords:  len(result.Records),
		JSONPath:       p.layout.LatestJSON(),
		JSONLPath:      p.layout.LatestJSONL(),
	}

	slog.Info("Deduplicated records", "read", result.Read, "unique", len(result.Records))

	if err := writeLatest(summary, result.Records); err != nil {
		p.record(runs.KindMerge, started, summary.RecordsRead, summary.RecordsSkipped, 0, err)
		return nil, err
	}

	summary.RunID = p.record(runs.KindMerge, started, summary.RecordsRead, summary.RecordsSkipped, summary.UniqueRecords, nil)
	slog.Info("Wrote dataset", "path", summary.JSONPath, "count", summary.UniqueRecords)
	slog.Info("Wrote dataset", "path", summary.JSONLPath, "count", summary.UniqueRecords)

	return summary, nil
}

func writeLatest(summary *MergeSummary, records []opportunity.Opportunity) error {
	if err := dataset.WriteJSON(summary.JSONPath, records); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	if err := dataset.WriteJSONL(summary.JSONLPath, records); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return nil
}
