package datastore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	store, err := Open(dbPath, false)
	require.NoError(t, err, "open test store")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndGetEntry(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	e := &Entry{Kind: KindBrainDump, EntryDate: "2026-07-30", Timezone: "Local"}
	require.NoError(t, store.CreateEntry(ctx, e))
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, StagePending, e.Stage)

	got, err := store.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Kind, got.Kind)
	assert.Equal(t, e.EntryDate, got.EntryDate)
}

func TestGetEntryNotFound(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	_, err := store.GetEntry(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestAcquireLeaseIsCAS(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	e := &Entry{Kind: KindQuickNote, EntryDate: "2026-07-30"}
	require.NoError(t, store.CreateEntry(ctx, e))
	require.NoError(t, store.UpdateEntry(ctx, e.ID, map[string]any{"stage": StageQueued}))

	ok, err := store.AcquireLease(ctx, e.ID, "worker-a")
	require.NoError(t, err)
	assert.True(t, ok, "first acquire should succeed")

	ok, err = store.AcquireLease(ctx, e.ID, "worker-b")
	require.NoError(t, err)
	assert.False(t, ok, "second worker must not steal an already-held lease")

	ok, err = store.AcquireLease(ctx, e.ID, "worker-a")
	require.NoError(t, err)
	assert.True(t, ok, "the original holder may re-acquire (heartbeat refresh)")
}

func TestReleaseLeaseThenReacquire(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	e := &Entry{Kind: KindQuickNote, EntryDate: "2026-07-30"}
	require.NoError(t, store.CreateEntry(ctx, e))
	require.NoError(t, store.UpdateEntry(ctx, e.ID, map[string]any{"stage": StageQueued}))

	ok, err := store.AcquireLease(ctx, e.ID, "worker-a")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.ReleaseLease(ctx, e.ID))

	ok, err = store.AcquireLease(ctx, e.ID, "worker-b")
	require.NoError(t, err)
	assert.True(t, ok, "a released lease is acquirable by anyone")
}

func TestListStuckFindsStaleHeartbeats(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	e := &Entry{Kind: KindQuickNote, EntryDate: "2026-07-30"}
	require.NoError(t, store.CreateEntry(ctx, e))

	stale := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.UpdateEntry(ctx, e.ID, map[string]any{
		"stage":        StageTranscribing,
		"heartbeat_at": stale,
	}))

	stuck, err := store.ListStuck(ctx, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, e.ID, stuck[0].ID)
}

func TestLockRawTranscriptRefusesSecondWrite(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	e := &Entry{Kind: KindQuickNote, EntryDate: "2026-07-30"}
	require.NoError(t, store.CreateEntry(ctx, e))

	require.NoError(t, store.LockRawTranscript(ctx, e.ID, "first transcript"))

	err := store.LockRawTranscript(ctx, e.ID, "second transcript")
	assert.ErrorIs(t, err, ErrTranscriptLocked)

	got, err := store.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "first transcript", got.RawTranscript)
}

func TestDeleteEntryCascadesLinks(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	a := &Entry{Kind: KindQuickNote, EntryDate: "2026-07-30"}
	b := &Entry{Kind: KindQuickNote, EntryDate: "2026-07-30"}
	require.NoError(t, store.CreateEntry(ctx, a))
	require.NoError(t, store.CreateEntry(ctx, b))
	require.NoError(t, store.AddLink(ctx, a.ID, b.ID, LinkRelated))

	require.NoError(t, store.DeleteEntry(ctx, a.ID))

	_, err := store.GetEntry(ctx, a.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	links, err := store.ListLinks(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, links, "deleting an entry must remove links that reference it")
}

func TestListQueuedOrdersOldestFirst(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		e := &Entry{Kind: KindQuickNote, EntryDate: "2026-07-30"}
		require.NoError(t, store.CreateEntry(ctx, e))
		require.NoError(t, store.UpdateEntry(ctx, e.ID, map[string]any{
			"stage":      StageQueued,
			"created_at": time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
		ids = append(ids, e.ID)
	}

	queued, err := store.ListQueued(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 3)
	assert.Equal(t, ids[0], queued[0].ID)
	assert.Equal(t, ids[2], queued[2].ID)
}
