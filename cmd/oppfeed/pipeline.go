package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/pevans/oppfeed/config"
	"github.com/pevans/oppfeed/pipeline"
)

func handleFetch(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	fs.Parse(args)

	p, closeAll := newPipeline(cfg)
	defer closeAll()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := p.Fetch(ctx)
	if err != nil {
		closeAll()
		fail("fetch failed: %v", err)
	}

	printFetchSummary(summary)
	if summary.Failed > 0 {
		closeAll()
		os.Exit(1)
	}
}

func handleNormalize(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("normalize", flag.ExitOnError)
	fs.Parse(args)

	p, closeAll := newPipeline(cfg)
	defer closeAll()

	summary, err := p.Normalize()
	if err != nil {
		closeAll()
		fail("normalize failed: %v", err)
	}

	printNormalizeSummary(summary)
}

func handleMerge(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	fs.Parse(args)

	p, closeAll := newPipeline(cfg)
	defer closeAll()

	summary, err := p.Merge()
	if err != nil {
		closeAll()
		fail("merge failed: %v", err)
	}

	printMergeSummary(summary)
}

func handleRun(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.Parse(args)

	p, closeAll := newPipeline(cfg)
	defer closeAll()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := p.Run(ctx)
	if summary != nil {
		if summary.Fetch != nil {
			printFetchSummary(summary.Fetch)
		}
		if summary.Normalize != nil {
			printNormalizeSummary(summary.Normalize)
		}
		if summary.Merge != nil {
			printMergeSummary(summary.Merge)
		}
	}
	if err != nil {
		closeAll()
		fail("%v", err)
	}

	if summary.Fetch.Failed > 0 {
		closeAll()
		os.Exit(1)
	}
}

func printRunID(id uuid.UUID) {
	if id != uuid.Nil {
		fmt.Printf("  Run ID:             %s\n", id)
	}
}

func printFetchSummary(s *pipeline.FetchSummary) {
	fmt.Println("Fetch completed:")
	printRunID(s.RunID)
	fmt.Printf("  Sources fetched:    %d\n", s.Succeeded)
	fmt.Printf("  Sources failed:     %d\n", s.Failed)
	fmt.Printf("  Bytes downloaded:   %d\n", s.Bytes)

	if len(s.Errors) > 0 {
		fmt.Println()
		fmt.Println("Errors:")
		for _, e := range s.Errors {
			fmt.Printf("  ✗ %s: %v\n", e.Source, e.Err)
		}
	}
	fmt.Println()
}

func printNormalizeSummary(s *pipeline.NormalizeSummary) {
	fmt.Println("Normalize completed:")
	printRunID(s.RunID)
	fmt.Printf("  Sources parsed:     %d\n", s.SourcesParsed)
	fmt.Printf("  Sources missing:    %d\n", s.SourcesMissing)
	fmt.Printf("  Sources failed:     %d\n", s.SourcesFailed)
	fmt.Printf("  Entries read:       %d\n", s.EntriesRead)
	fmt.Printf("  Entries excluded:   %d\n", s.EntriesExcluded)
	fmt.Printf("  Entries skipped:    %d\n", s.EntriesSkipped)
	fmt.Printf("  Records written:    %d\n", s.RecordsWritten)
	if s.BatchPath != "" {
		fmt.Printf("  Batch:              %s\n", s.BatchPath)
	}
	fmt.Println()
}

func printMergeSummary(s *pipeline.MergeSummary) {
	fmt.Println("Merge completed:")
	printRunID(s.RunID)
	fmt.Printf("  Batches read:       %d\n", s.BatchesRead)
	fmt.Printf("  Batches failed:     %d\n", s.BatchesFailed)
	fmt.Printf("  Records read:       %d\n", s.RecordsRead)
	fmt.Printf("  Records skipped:    %d\n", s.RecordsSkipped)
	fmt.Printf("  Unique records:     %d\n", s.UniqueRecords)
	fmt.Printf("  Dataset:            %s\n", s.JSONPath)
	fmt.Println()
}
