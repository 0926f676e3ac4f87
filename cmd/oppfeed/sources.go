package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pevans/oppfeed/config"
	"github.com/pevans/oppfeed/sources"
)

func printSourcesUsage() {
	fmt.Println("oppfeed sources -- Manage sources")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  oppfeed sources <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  list               List all sources")
	fmt.Println("  add                Add a new source")
	fmt.Println("  show <source>      Show one source")
	fmt.Println("  delete <source>    Delete a source")
	fmt.Println("  enable <source>    Enable a source")
	fmt.Println("  disable <source>   Disable a source")
	fmt.Println("  import <file>      Add or replace sources from a JSON file")
	fmt.Println("  export <file>      Write all sources to a JSON file")
	fmt.Println("  help               Show this help message")
}

func handleSourcesCommand(cfg *config.Config, action string, args []string) {
	if action == "help" || action == "--help" || action == "-h" {
		printSourcesUsage()
		return
	}

	store, closeStore := openSources(cfg)
	defer closeStore()

	var err error
	switch action {
	case "list":
		err = handleSourcesList(store, args)
	case "show":
		err = handleSourcesShow(store, args)
	case "add":
		err = handleSourcesAdd(store, args)
	case "delete":
		err = handleSourcesDelete(store, args)
	case "enable":
		err = handleSourcesSetEnabled(store, args, true)
	case "disable":
		err = handleSourcesSetEnabled(store, args, false)
	case "import":
		err = handleSourcesImport(store, args)
	case "export":
		err = handleSourcesExport(store, args)
	default:
		closeStore()
		fmt.Fprintf(os.Stderr, "Error: unknown sources command: %s\n\n", action)
		printSourcesUsage()
		os.Exit(1)
	}

	if err != nil {
		closeStore()
		fail("%v", err)
	}
}

func handleSourcesList(store sources.Store, args []string) error {
	fs := flag.NewFlagSet("sources list", flag.ExitOnError)
	enabledOnly := fs.Bool("enabled", false, "Only show enabled sources")
	fs.Parse(args)

	var filter sources.SourceFilter
	if *enabledOnly {
		filter.Enabled = enabledOnly
	}

	list, err := store.ListSources(filter)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	if len(list) == 0 {
		fmt.Println("No sources configured.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Source", "Enabled", "URL", "Default Tags", "Language"})

	for _, src := range list {
		enabled := "✗"
		if src.Enabled {
			enabled = "✓"
		}

		t.AppendRow(table.Row{
			src.Source,
			enabled,
			truncate(src.SourceURL, 60),
			strings.Join(src.DefaultTags, ", "),
			valueOr(src.Language, "-"),
		})
	}

	t.Render()
	return nil
}

func handleSourcesShow(store sources.Store, args []string) error {
	if len(args) < 1 {
		return errors.New("source key is required\nUsage: oppfeed sources show <source>")
	}

	src, err := store.GetSource(args[0])
	if err != nil {
		return fmt.Errorf("failed to get source: %w", err)
	}

	fmt.Println(src.Source)
	fmt.Println()
	fmt.Printf("URL:           %s\n", src.SourceURL)
	if src.Enabled {
		fmt.Println("Status:        ✓ Enabled")
	} else {
		fmt.Println("Status:        ✗ Disabled")
	}
	if len(src.DefaultTags) > 0 {
		fmt.Printf("Default Tags:  %s\n", strings.Join(src.DefaultTags, ", "))
	} else {
		fmt.Println("Default Tags:  None")
	}
	fmt.Printf("Language:      %s\n", valueOr(src.Language, "Unknown"))
	return nil
}

func handleSourcesDelete(store sources.Store, args []string) error {
	if len(args) < 1 {
		return errors.New("source key is required\nUsage: oppfeed sources delete <source>")
	}

	if err := store.DeleteSource(args[0]); err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}

	fmt.Printf("✓ Deleted source: %s\n", args[0])
	return nil
}

func handleSourcesAdd(store sources.Store, args []string) error {
	fs := flag.NewFlagSet("sources add", flag.ExitOnError)
	name := fs.String("source", "", "Source key")
	url := fs.String("url", "", "Feed URL")
	tags := fs.String("tags", "", "Comma-separated default tags")
	language := fs.String("language", "", "Language code")
	disabled := fs.Bool("disabled", false, "Add the source disabled")
	fs.Parse(args)

	if *name == "" {
		fs.Usage()
		return errors.New("--source is required")
	}
	if *url == "" {
		fs.Usage()
		return errors.New("--url is required")
	}

	cfg := sources.SourceConfig{
		Source:      *name,
		SourceURL:   *url,
		Enabled:     !*disabled,
		DefaultTags: splitTags(*tags),
	}
	if *language != "" {
		cfg.Language = language
	}

	if err := store.CreateSource(cfg); err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}

	fmt.Printf("✓ Created source: %s\n", cfg.Source)
	fmt.Printf("  URL: %s\n", cfg.SourceURL)
	fmt.Printf("  Enabled: %t\n", cfg.Enabled)
	return nil
}

func handleSourcesSetEnabled(store sources.Store, args []string, enabled bool) error {
	verb := "disable"
	if enabled {
		verb = "enable"
	}

	if len(args) < 1 {
		return fmt.Errorf("source key is required\nUsage: oppfeed sources %s <source>", verb)
	}

	if err := store.SetEnabled(args[0], enabled); err != nil {
		return fmt.Errorf("failed to %s source: %w", verb, err)
	}

	fmt.Printf("✓ %sd source: %s\n", strings.ToUpper(verb[:1])+verb[1:], args[0])
	return nil
}

func handleSourcesImport(store sources.Store, args []string) error {
	if len(args) < 1 {
		return errors.New("file is required\nUsage: oppfeed sources import <file>")
	}

	list, err := sources.LoadFile(args[0])
	if err != nil {
		return err
	}

	for _, cfg := range list {
		if err := store.PutSource(cfg); err != nil {
			return fmt.Errorf("failed to import source %q: %w", cfg.Source, err)
		}
	}

	fmt.Printf("✓ Imported %d sources from %s\n", len(list), args[0])
	return nil
}

func handleSourcesExport(store sources.Store, args []string) error {
	if len(args) < 1 {
		return errors.New("file is required\nUsage: oppfeed sources export <file>")
	}

	list, err := store.Sources()
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	if err := sources.SaveFile(args[0], list); err != nil {
		return err
	}

	fmt.Printf("✓ Exported %d sources to %s\n", len(list), args[0])
	return nil
}

// splitTags parses a comma-separated tag list, dropping empty items.
func splitTags(s string) []string {
	var tags []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
