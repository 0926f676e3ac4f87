// Package merge folds normalized batches into one deduplicated dataset.
package merge

import (
	"sort"

	"github.com/pevans/oppfeed/opportunity"
)

// missingPublishedAt sorts before every real timestamp, so records without
// a publication date land at the end of a descending sort.
const missingPublishedAt = "0000-00-00T00:00:00Z"

// Batch is one normalization run's records. Name identifies the batch in
// logs, usually the file it came from.
type Batch struct {
	Name    string
	Records []opportunity.Opportunity
}

// Result is the merged dataset and the counts gathered while building it.
type Result struct {
	Records []opportunity.Opportunity
	// Read counts records with an id, duplicates included.
	Read int
	// Skipped counts records without an id.
	Skipped int
}

// Merge applies last-write-wins by id across batches, which must be given
// oldest first. A later record replaces an earlier one entirely. An id keeps
// the position where it was first seen, so ties in the final sort resolve
// the same way on every run. The result is sorted by published_at,
// newest first, with undated records last.
func Merge(batches []Batch) Result {
	result := Result{}
	index := make(map[string]int)
	var merged []opportunity.Opportunity

	for _, batch := range batches {
		for _, rec := range batch.Records {
			if rec.ID == "" {
				result.Skipped++
				continue
			}
			result.Read++

			if i, ok := index[rec.ID]; ok {
				merged[i] = rec
				continue
			}
			index[rec.ID] = len(merged)
			merged = append(merged, rec)
		}
	}

	if merged == nil {
		merged = []opportunity.Opportunity{}
	}

	SortByPublished(merged)
	result.Records = merged

	return result
}

// SortByPublished orders records by published_at descending, keeping the
// relative order of equal keys.
func SortByPublished(records []opportunity.Opportunity) {
	sort.SliceStable(records, func(i, j int) bool {
		return sortKey(records[i]) > sortKey(records[j])
	})
}

func sortKey(rec opportunity.Opportunity) string {
	if rec.PublishedAt == nil || *rec.PublishedAt == "" {
		return missingPublishedAt
	}
	return *rec.PublishedAt
}
