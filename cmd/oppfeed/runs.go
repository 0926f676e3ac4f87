package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pevans/oppfeed/config"
)

func printRunsUsage() {
	fmt.Println("oppfeed runs -- Show recorded runs")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  oppfeed runs list [-limit N]")
	fmt.Println("  oppfeed runs show <run-id>")
}

func handleRunsCommand(cfg *config.Config, action string, args []string) {
	switch action {
	case "list":
		handleRunsList(cfg, args)
	case "show":
		handleRunsShow(cfg, args)
	case "help", "--help", "-h":
		printRunsUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown runs command: %s\n\n", action)
		printRunsUsage()
		os.Exit(1)
	}
}

func handleRunsList(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("runs list", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Maximum number of runs to show (0 for all)")
	fs.Parse(args)

	ledger := openLedger(cfg)
	if ledger == nil {
		fail("no run ledger configured (set OPPFEED_METADATA_DSN)")
	}
	defer ledger.Close()

	list, err := ledger.ListRuns(*limit)
	if err != nil {
		ledger.Close()
		fail("failed to list runs: %v", err)
	}

	if len(list) == 0 {
		fmt.Println("No runs recorded.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run ID", "Kind", "Started", "Duration", "Read", "Skipped", "Written", "Status"})

	for _, run := range list {
		status := run.Status
		if run.Error != nil {
			status += ": " + truncate(*run.Error, 50)
		}

		t.AppendRow(table.Row{
			run.RunID.String()[:8],
			run.Kind,
			run.StartedAt.Local().Format(time.DateTime),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
			run.Read,
			run.Skipped,
			run.Written,
			status,
		})
	}

	t.Render()
}

func handleRunsShow(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: run ID is required\n")
		fmt.Fprintf(os.Stderr, "Usage: oppfeed runs show <run-id>\n")
		os.Exit(1)
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		fail("invalid run ID: %v", err)
	}

	ledger := openLedger(cfg)
	if ledger == nil {
		fail("no run ledger configured (set OPPFEED_METADATA_DSN)")
	}
	defer ledger.Close()

	run, err := ledger.GetRun(id)
	if err != nil {
		ledger.Close()
		fail("failed to get run: %v", err)
	}

	fmt.Printf("Run ID:     %s\n", run.RunID)
	fmt.Printf("Kind:       %s\n", run.Kind)
	fmt.Printf("Started:    %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Printf("Finished:   %s\n", run.FinishedAt.Local().Format(time.DateTime))
	fmt.Printf("Duration:   %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	fmt.Printf("Read:       %d\n", run.Read)
	fmt.Printf("Skipped:    %d\n", run.Skipped)
	fmt.Printf("Written:    %d\n", run.Written)
	fmt.Printf("Status:     %s\n", run.Status)
	if run.Error != nil {
		fmt.Printf("Error:      %s\n", *run.Error)
	}
}
