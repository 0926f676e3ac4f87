package merge

import (
	"encoding/json"
	"testing"

	"github.com/pevans/oppfeed/opportunity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

// Test helper: create a record with an id, title and optional date
func createRecord(id, title string, publishedAt *string) opportunity.Opportunity {
	return opportunity.Opportunity{
		ID:          id,
		Title:       title,
		URL:         "https://example.com/" + id,
		Source:      "orgA",
		PublishedAt: publishedAt,
		Tags:        []string{},
	}
}

func ids(records []opportunity.Opportunity) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.ID)
	}
	return out
}

// TestMerge_LastWriteWins verifies a later batch replaces the whole record
func TestMerge_LastWriteWins(t *testing.T) {
	early := createRecord("X", "old title", strPtr("2024-01-01T00:00:00Z"))
	early.Summary = strPtr("only in the old version")
	late := createRecord("X", "new title", nil)

	result := Merge([]Batch{
		{Name: "2024-01-01.jsonl", Records: []opportunity.Opportunity{early}},
		{Name: "2024-01-02.jsonl", Records: []opportunity.Opportunity{late}},
	})

	require.Len(t, result.Records, 1)
	assert.Equal(t, "new title", result.Records[0].Title)
	assert.Nil(t, result.Records[0].Summary, "fields are replaced, not merged")
	assert.Nil(t, result.Records[0].PublishedAt)
	assert.Equal(t, 2, result.Read)
}

// TestMerge_LastWriteWinsWithinBatch verifies order inside one batch counts
func TestMerge_LastWriteWinsWithinBatch(t *testing.T) {
	result := Merge([]Batch{{Records: []opportunity.Opportunity{
		createRecord("X", "first", nil),
		createRecord("X", "second", nil),
	}}})

	require.Len(t, result.Records, 1)
	assert.Equal(t, "second", result.Records[0].Title)
}

// TestMerge_NullLast verifies descending order with undated records last
func TestMerge_NullLast(t *testing.T) {
	result := Merge([]Batch{{Records: []opportunity.Opportunity{
		createRecord("jan", "", strPtr("2024-01-01T00:00:00Z")),
		createRecord("none", "", nil),
		createRecord("jun", "", strPtr("2024-06-01T00:00:00Z")),
	}}})

	assert.Equal(t, []string{"jun", "jan", "none"}, ids(result.Records))
}

// TestMerge_EmptyPublishedSortsLast verifies an empty string counts as absent
func TestMerge_EmptyPublishedSortsLast(t *testing.T) {
	result := Merge([]Batch{{Records: []opportunity.Opportunity{
		createRecord("empty", "", strPtr("")),
		createRecord("dated", "", strPtr("1999-01-01T00:00:00Z")),
	}}})

	assert.Equal(t, []string{"dated", "empty"}, ids(result.Records))
}

// TestMerge_TiesKeepFirstSeenOrder verifies stable ordering of equal keys
func TestMerge_TiesKeepFirstSeenOrder(t *testing.T) {
	result := Merge([]Batch{
		{Records: []opportunity.Opportunity{
			createRecord("b", "", nil),
			createRecord("a", "", nil),
			createRecord("c", "", strPtr("2024-01-01T00:00:00Z")),
		}},
		{Records: []opportunity.Opportunity{
			createRecord("d", "", nil),
			createRecord("b", "updated", nil),
		}},
	})

	assert.Equal(t, []string{"c", "b", "a", "d"}, ids(result.Records))
	assert.Equal(t, "updated", result.Records[1].Title)
}

// TestMerge_SkipsEmptyIDs verifies malformed records are counted, not kept
func TestMerge_SkipsEmptyIDs(t *testing.T) {
	result := Merge([]Batch{{Records: []opportunity.Opportunity{
		createRecord("", "no id", nil),
		createRecord("ok", "fine", nil),
		createRecord("", "no id again", nil),
	}}})

	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 1, result.Read)
	assert.Equal(t, []string{"ok"}, ids(result.Records))
}

// TestMerge_Empty verifies no input gives an empty, non-nil dataset
func TestMerge_Empty(t *testing.T) {
	result := Merge(nil)
	assert.NotNil(t, result.Records)
	assert.Empty(t, result.Records)

	data, err := json.Marshal(result.Records)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

// TestMerge_Idempotent verifies identical input yields identical bytes
func TestMerge_Idempotent(t *testing.T) {
	batches := func() []Batch {
		return []Batch{
			{Records: []opportunity.Opportunity{
				createRecord("a", "a1", strPtr("2024-01-01T00:00:00Z")),
				createRecord("b", "b1", nil),
				createRecord("c", "c1", strPtr("2024-01-01T00:00:00Z")),
			}},
			{Records: []opportunity.Opportunity{
				createRecord("a", "a2", strPtr("2024-02-01T00:00:00Z")),
				createRecord("e", "e1", nil),
			}},
		}
	}

	first, err := json.Marshal(Merge(batches()).Records)
	require.NoError(t, err)
	second, err := json.Marshal(Merge(batches()).Records)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// TestMerge_DoesNotMutateInput verifies batches are left untouched
func TestMerge_DoesNotMutateInput(t *testing.T) {
	records := []opportunity.Opportunity{
		createRecord("old", "", strPtr("2020-01-01T00:00:00Z")),
		createRecord("new", "", strPtr("2024-01-01T00:00:00Z")),
	}

	Merge([]Batch{{Records: records}})

	assert.Equal(t, []string{"old", "new"}, ids(records))
}
