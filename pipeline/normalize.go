package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pevans/oppfeed/dataset"
	"github.com/pevans/oppfeed/feed"
	"github.com/pevans/oppfeed/normalize"
	"github.com/pevans/oppfeed/opportunity"
	"github.com/pevans/oppfeed/runs"
	"github.com/pevans/oppfeed/sources"
)

// NormalizeSummary reports the outcome of a normalize run.
type NormalizeSummary struct {
	RunID uuid.UUID
	// BatchPath is empty when no records were produced.
	BatchPath       string
	SourcesParsed   int
	SourcesMissing  int
	SourcesFailed   int
	EntriesRead     int
	EntriesExcluded int
	EntriesSkipped  int
	RecordsWritten  int
}

// Normalize parses today's snapshot of every enabled source and writes the
// resulting records as today's batch, replacing any batch already written
// today. A source with no snapshot or an unparseable one is skipped. Only a
// failure to write the batch is returned as an error.
func (p *Pipeline) Normalize() (*NormalizeSummary, error) {
	runAt := p.now()

	enabled, err := sources.Enabled(p.sources)
	if err != nil {
		err = fmt.Errorf("failed to load sources: %w", err)
		p.record(runs.KindNormalize, runAt, 0, 0, 0, err)
		return nil, err
	}

	slog.Info("Normalizing", "date", runAt.UTC().Format(dataset.DateLayout), "sources", len(enabled))

	summary := &NormalizeSummary{}
	var records []opportunity.Opportunity

	for _, cfg := range enabled {
		path, fellBack, ok := p.layout.FindRawFile(cfg.Source, runAt)
		if !ok {
			slog.Warn("No raw file found, skipping source", "source", cfg.Source)
			summary.SourcesMissing++
			continue
		}
		if fellBack {
			slog.Warn("No daily file, falling back to latest.xml", "source", cfg.Source)
		}

		parsed, err := feed.ParseFile(path)
		if err != nil {
			slog.Error("Feed parse error, skipping source", "source", cfg.Source, "path", path, "err", err)
			summary.SourcesFailed++
			continue
		}

		batch := normalize.Normalize(cfg, feed.Entries(parsed), runAt)
		summary.SourcesParsed++
		summary.EntriesRead += batch.Read
		summary.EntriesExcluded += batch.Excluded
		summary.EntriesSkipped += batch.Skipped
		records = append(records, batch.Records...)

		slog.Info("Parsed records", "source", cfg.Source, "count", len(batch.Records))
	}

	skipped := summary.EntriesExcluded + summary.EntriesSkipped
	if len(records) == 0 {
		slog.Info("No records to write")
		summary.RunID = p.record(runs.KindNormalize, runAt, summary.EntriesRead, skipped, 0, nil)
		return summary, nil
	}

	path := p.layout.BatchFile(runAt)
	if err := dataset.WriteJSONL(path, records); err != nil {
		err = fmt.Errorf("failed to write batch: %w", err)
		p.record(runs.KindNormalize, runAt, summary.EntriesRead, skipped, 0, err)
		return nil, err
	}

	summary.BatchPath = path
	summary.RecordsWritten = len(records)
	summary.RunID = p.record(runs.KindNormalize, runAt, summary.EntriesRead, skipped, len(records), nil)
	slog.Info("Wrote batch", "path", path, "count", len(records))

	return summary, nil
}
