package main

import (
	"fmt"
	"os"

	"github.com/pevans/oppfeed/config"
	"github.com/pevans/oppfeed/dataset"
	"github.com/pevans/oppfeed/logging"
	"github.com/pevans/oppfeed/pipeline"
	"github.com/pevans/oppfeed/runs"
	"github.com/pevans/oppfeed/sources"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	if subcommand == "help" || subcommand == "--help" || subcommand == "-h" {
		printUsage()
		return
	}

	cfg, err := config.Load(getEnv("OPPFEED_CONFIG", "oppfeed.yaml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logging.InitLogger(cfg.Log.Level)

	args := os.Args[2:]

	switch subcommand {
	case "fetch":
		handleFetch(cfg, args)
	case "normalize":
		handleNormalize(cfg, args)
	case "merge":
		handleMerge(cfg, args)
	case "run":
		handleRun(cfg, args)
	case "sources":
		if len(args) < 1 {
			printSourcesUsage()
			os.Exit(1)
		}
		handleSourcesCommand(cfg, args[0], args[1:])
	case "runs":
		if len(args) < 1 {
			printRunsUsage()
			os.Exit(1)
		}
		handleRunsCommand(cfg, args[0], args[1:])
	case "serve":
		handleServe(cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("oppfeed -- Opportunity feed aggregator")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  oppfeed <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  fetch      Download the feeds of all enabled sources")
	fmt.Println("  normalize  Normalize today's snapshots into a batch")
	fmt.Println("  merge      Merge all batches into the latest dataset")
	fmt.Println("  run        Fetch, normalize and merge")
	fmt.Println("  sources    Manage sources")
	fmt.Println("  runs       Show recorded runs")
	fmt.Println("  serve      Serve the latest dataset over HTTP")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  OPPFEED_CONFIG         Path to YAML config file (default: oppfeed.yaml)")
	fmt.Println("  OPPFEED_DATA_DIR       Data directory (default: data)")
	fmt.Println("  OPPFEED_SOURCES_TYPE   Source list backend: file or sqlite (default: file)")
	fmt.Println("  OPPFEED_SOURCES_DSN    Source list path (default: <data_dir>/sources/sources.json)")
	fmt.Println("  OPPFEED_METADATA_DSN   Run ledger database; empty disables it")
	fmt.Println("  OPPFEED_FETCH_TIMEOUT  Per-feed download timeout (default: 30s)")
	fmt.Println("  OPPFEED_USER_AGENT     User-Agent for feed downloads")
	fmt.Println("  OPPFEED_LISTEN_ADDR    API listen address (default: localhost:8080)")
	fmt.Println("  OPPFEED_LOG_LEVEL      debug, info, warn or error (default: info)")
}

// openSources returns the configured source backend and a function that
// releases it.
func openSources(cfg *config.Config) (sources.Store, func()) {
	if cfg.Sources.Type == config.SourcesSQLite {
		store, err := sources.NewSourceStore(cfg.Sources.DSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open source store: %v\n", err)
			os.Exit(1)
		}
		return store, func() { store.Close() }
	}

	path := cfg.Sources.DSN
	if path == "" {
		path = dataset.NewLayout(cfg.DataDir).SourcesFile()
	}
	return sources.FileStore{Path: path}, func() {}
}

// openLedger opens the run ledger, or returns nil when none is configured.
func openLedger(cfg *config.Config) *runs.RunStore {
	if cfg.Metadata.DSN == "" {
		return nil
	}

	ledger, err := runs.NewRunStore(cfg.Metadata.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open run ledger: %v\n", err)
		os.Exit(1)
	}
	return ledger
}

// newPipeline builds a pipeline from cfg. The returned function releases its
// stores.
func newPipeline(cfg *config.Config) (*pipeline.Pipeline, func()) {
	store, closeSources := openSources(cfg)
	ledger := openLedger(cfg)

	p := pipeline.NewPipeline(pipeline.Config{
		Layout:       dataset.NewLayout(cfg.DataDir),
		Sources:      store,
		Ledger:       ledger,
		FetchTimeout: cfg.Fetch.Timeout,
		UserAgent:    cfg.Fetch.UserAgent,
	})

	return p, func() {
		closeSources()
		if ledger != nil {
			ledger.Close()
		}
	}
}
