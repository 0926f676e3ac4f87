// Package pipeline runs the three stages of the ingestion flow: fetching raw
// feed snapshots, normalizing them into a daily batch, and merging every
// batch into the latest dataset.
package pipeline

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/oppfeed/dataset"
	"github.com/pevans/oppfeed/runs"
	"github.com/pevans/oppfeed/sources"
)

// Pipeline wires the stages to their storage.
type Pipeline struct {
	layout     dataset.Layout
	sources    sources.Loader
	ledger     *runs.RunStore
	httpClient *http.Client
	userAgent  string
	now        func() time.Time
}

// Config holds the collaborators and settings of a Pipeline.
type Config struct {
	Layout  dataset.Layout
	Sources sources.Loader
	// Ledger records each run when set.
	Ledger       *runs.RunStore
	FetchTimeout time.Duration
	UserAgent    string
	// HTTPClient overrides the client built from FetchTimeout.
	HTTPClient *http.Client
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// DefaultFetchTimeout bounds one feed download.
const DefaultFetchTimeout = 30 * time.Second

// NewPipeline creates a pipeline from cfg.
func NewPipeline(cfg Config) *Pipeline {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Pipeline{
		layout:     cfg.Layout,
		sources:    cfg.Sources,
		ledger:     cfg.Ledger,
		httpClient: client,
		userAgent:  cfg.UserAgent,
		now:        now,
	}
}

// record stores a run in the ledger, if one is configured. Ledger failures
// are logged and never affect the run's outcome.
func (p *Pipeline) record(kind string, started time.Time, read, skipped, written int, runErr error) uuid.UUID {
	if p.ledger == nil {
		return uuid.Nil
	}

	run := runs.Run{
		Kind:       kind,
		StartedAt:  started,
		FinishedAt: p.now(),
		Read:       read,
		Skipped:    skipped,
		Written:    written,
		Status:     runs.StatusOK,
	}
	if runErr != nil {
		msg := runErr.Error()
		run.Status = runs.StatusFailed
		run.Error = &msg
	}

	id, err := p.ledger.Record(run)
	if err != nil {
		slog.Error("Failed to record run", "kind", kind, "err", err)
		return uuid.Nil
	}

	slog.Debug("Recorded run", "kind", kind, "run_id", id, "status", run.Status)
	return id
}
