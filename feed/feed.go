// Package feed turns raw RSS and Atom documents into normalizer input. The
// gofeed library detects the format and maps both into a common item
// structure.
package feed

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/pevans/oppfeed/normalize"
)

// ParseFile parses the feed document stored at path.
func ParseFile(path string) (*gofeed.Feed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feed: %w", err)
	}
	defer f.Close()

	parsed, err := gofeed.NewParser().Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return parsed, nil
}

// ParseBytes parses an in-memory feed document.
func ParseBytes(data []byte) (*gofeed.Feed, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return parsed, nil
}

// Entries converts every item of f, keeping feed order.
func Entries(f *gofeed.Feed) []*normalize.RawEntry {
	if f == nil {
		return nil
	}

	entries := make([]*normalize.RawEntry, 0, len(f.Items))
	for _, item := range f.Items {
		entries = append(entries, ItemToEntry(item))
	}
	return entries
}

// ItemToEntry maps a gofeed item onto the normalizer's optional fields.
// gofeed folds RSS <description> and Atom <summary> into Description, and
// RSS <content:encoded> and Atom <content> into Content.
func ItemToEntry(item *gofeed.Item) *normalize.RawEntry {
	if item == nil {
		return nil
	}

	entry := &normalize.RawEntry{
		Link:        optional(item.Link),
		Title:       optional(item.Title),
		Description: optional(item.Description),
		Published:   timestamp(item.PublishedParsed, item.Published),
		Updated:     timestamp(item.UpdatedParsed, item.Updated),
		Categories:  item.Categories,
	}

	if item.Content != "" {
		content := item.Content
		entry.Content = []normalize.ContentBlock{{Type: "text/html", Value: &content}}
	}

	return entry
}

// timestamp prefers the parsed time and keeps the raw text otherwise so the
// normalizer can try its own parser.
func timestamp(parsed *time.Time, text string) *normalize.Timestamp {
	if parsed != nil {
		return &normalize.Timestamp{Parts: normalize.PartsOf(*parsed)}
	}
	if text != "" {
		return &normalize.Timestamp{Text: text}
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
