package runs

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: create a test run store
func createTestRunStore(t *testing.T) *RunStore {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	store, err := NewRunStore(dbPath)
	require.NoError(t, err, "should create run store")
	t.Cleanup(func() { store.Close() })
	return store
}

// TestRecord_AssignsID verifies a missing id is generated
func TestRecord_AssignsID(t *testing.T) {
	store := createTestRunStore(t)
	started := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)

	id, err := store.Record(Run{
		Kind:       KindNormalize,
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Read:       10,
		Skipped:    2,
		Written:    8,
		Status:     StatusOK,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	run, err := store.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, KindNormalize, run.Kind)
	assert.True(t, started.Equal(run.StartedAt))
	assert.Equal(t, 10, run.Read)
	assert.Equal(t, 2, run.Skipped)
	assert.Equal(t, 8, run.Written)
	assert.Nil(t, run.Error)
}

// TestRecord_KeepsGivenIDAndError verifies failed runs are stored
func TestRecord_KeepsGivenIDAndError(t *testing.T) {
	store := createTestRunStore(t)
	id := uuid.New()
	msg := "failed to write dataset"

	got, err := store.Record(Run{RunID: id, Kind: KindMerge, Status: StatusFailed, Error: &msg})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	run, err := store.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	require.NotNil(t, run.Error)
	assert.Equal(t, msg, *run.Error)
}

// TestGetRun_NotFound verifies unknown ids
func TestGetRun_NotFound(t *testing.T) {
	store := createTestRunStore(t)

	_, err := store.GetRun(uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

// TestListRuns_NewestFirst verifies ordering and limit
func TestListRuns_NewestFirst(t *testing.T) {
	store := createTestRunStore(t)
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, kind := range []string{KindFetch, KindNormalize, KindMerge} {
		started := base.Add(time.Duration(i) * time.Hour)
		_, err := store.Record(Run{Kind: kind, StartedAt: started, FinishedAt: started, Status: StatusOK})
		require.NoError(t, err)
	}

	all, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, KindMerge, all[0].Kind)
	assert.Equal(t, KindFetch, all[2].Kind)

	limited, err := store.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, KindNormalize, limited[1].Kind)
}

// TestListRuns_Empty verifies an empty ledger
func TestListRuns_Empty(t *testing.T) {
	store := createTestRunStore(t)

	list, err := store.ListRuns(5)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// TestListRuns_FractionalSeconds verifies ordering when sub-second precision
// differs between runs
func TestListRuns_FractionalSeconds(t *testing.T) {
	store := createTestRunStore(t)
	whole := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	later := whole.Add(500 * time.Millisecond)

	_, err := store.Record(Run{Kind: KindMerge, StartedAt: later, FinishedAt: later, Status: StatusOK})
	require.NoError(t, err)
	_, err = store.Record(Run{Kind: KindFetch, StartedAt: whole, FinishedAt: whole, Status: StatusOK})
	require.NoError(t, err)

	list, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, KindMerge, list[0].Kind, "later run should come first")
	assert.True(t, later.Equal(list[0].StartedAt))
	assert.True(t, whole.Equal(list[1].StartedAt))
}
