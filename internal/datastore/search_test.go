package datastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSearchEntries(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()

	entries := []Entry{
		{Kind: KindBrainDump, EntryDate: "2026-07-28", Stage: StageCompleted, RawTranscript: "thinking about the lighthouse project roadmap"},
		{Kind: KindQuickNote, EntryDate: "2026-07-29", Stage: StageCompleted, RawTranscript: "call the dentist about the lighthouse checkup"},
		{Kind: KindDailyReflection, EntryDate: "2026-07-30", Stage: StageFailed, RawTranscript: "unrelated entry about gardening"},
	}
	for i := range entries {
		e := entries[i]
		require.NoError(t, store.CreateEntry(ctx, &e))
	}
}

func TestSearchMatchesPrefixAcrossTerms(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	seedSearchEntries(t, store)

	result, err := store.Search(context.Background(), "light", SearchFilters{}, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.Total)
	assert.Len(t, result.Entries, 2)
}

func TestSearchFiltersByKindAndStageClass(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	seedSearchEntries(t, store)

	result, err := store.Search(context.Background(), "", SearchFilters{
		Kind:       KindQuickNote,
		StageClass: StageClassDone,
	}, 10, 0)
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, KindQuickNote, result.Entries[0].Kind)
}

func TestSearchFiltersByDateRange(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	seedSearchEntries(t, store)

	result, err := store.Search(context.Background(), "", SearchFilters{
		DateFrom: "2026-07-29",
		DateTo:   "2026-07-30",
	}, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.Total)
}

func TestSearchPaginationSetsHasMore(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	seedSearchEntries(t, store)

	result, err := store.Search(context.Background(), "", SearchFilters{}, 2, 0)
	require.NoError(t, err)
	assert.Len(t, result.Entries, 2)
	assert.True(t, result.HasMore)

	result, err = store.Search(context.Background(), "", SearchFilters{}, 2, 2)
	require.NoError(t, err)
	assert.Len(t, result.Entries, 1)
	assert.False(t, result.HasMore)
}

func TestBuildFTSQueryJoinsTokensWithAnd(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `"lighthouse"* AND "project"*`, buildFTSQuery("lighthouse project"))
	assert.Equal(t, "", buildFTSQuery("   "))
}
