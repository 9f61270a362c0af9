package runner

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrnl/voicejournal/internal/conf"
	"github.com/jrnl/voicejournal/internal/datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a Clock whose Sleep is a no-op, so driving Run in a
// goroutine in tests never actually waits a tick interval.
type fakeClock struct{}

func (fakeClock) Now() time.Time {
	return time.Now()
}

func (fakeClock) Sleep(time.Duration) {}

func newTestStore(t *testing.T, vaultRoot string) *datastore.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	store, err := datastore.Open(dbPath, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	bootstrap := &conf.Settings{}
	bootstrap.Server.VaultRoot = vaultRoot
	require.NoError(t, store.EnsureSettingsSeeded(context.Background(), bootstrap))
	return store
}

// writeFakeFFmpeg stands in for ffmpeg: it writes a minimal output file at
// the last argument (the destination path) whenever invoked, regardless of
// other flags, mirroring internal/audiotools_test.go's fake-binary approach.
func writeFakeFFmpeg(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "ffmpeg")
	script := `#!/bin/sh
dst=""
for arg in "$@"; do dst="$arg"; done
echo "fake audio" > "$dst"
exit 0
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// writeFakeFFprobe always reports a fixed duration, regardless of input.
func writeFakeFFprobe(t *testing.T, dir string, seconds string) string {
	t.Helper()
	path := filepath.Join(dir, "ffprobe")
	script := fmt.Sprintf(`#!/bin/sh
echo %q
exit 0
`, seconds)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// writeFakeWhisper writes a transcript to the --output-prefix target, the
// same convention internal/transcriber's own test fake uses.
func writeFakeWhisper(t *testing.T, dir, text string) string {
	t.Helper()
	path := filepath.Join(dir, "whisper")
	script := fmt.Sprintf(`#!/bin/sh
prev=""
for arg in "$@"; do
  if [ "$prev" = "--output-prefix" ]; then
    echo %q > "$arg.txt"
  fi
  prev="$arg"
done
exit 0
`, text)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newTestRunner(t *testing.T, store *datastore.Store, toolsDir string) *Runner {
	t.Helper()
	cfg := Config{WorkerID: "test-worker"}
	cfg.Conf.Tools.FFmpegPath = filepath.Join(toolsDir, "ffmpeg")
	cfg.Conf.Tools.FFprobePath = filepath.Join(toolsDir, "ffprobe")
	cfg.Conf.Tools.WhisperPath = filepath.Join(toolsDir, "whisper")
	cfg.Conf.Tools.ModelsDir = toolsDir
	return New(store, cfg, fakeClock{})
}

// seedQueuedEntry creates an entry with an uploaded original audio file
// already in place and its stage set to queued, as the HTTP facade would
// leave it after POST /entries/{id}/audio.
func seedQueuedEntry(t *testing.T, store *datastore.Store, vaultRoot, kind string) *datastore.Entry {
	t.Helper()
	ctx := context.Background()
	e := &datastore.Entry{Kind: kind, EntryDate: "2026-07-30", Timezone: "UTC"}
	require.NoError(t, store.CreateEntry(ctx, e))

	audioPath := filepath.Join("uploads", e.ID+".m4a")
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(vaultRoot, audioPath)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(vaultRoot, audioPath), []byte("raw audio"), 0o644))

	require.NoError(t, store.UpdateEntry(ctx, e.ID, map[string]any{
		"stage":      datastore.StageQueued,
		"audio_path": audioPath,
	}))
	got, err := store.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	return got
}

func TestRunOnceDrivesQuickNoteToAwaitingReview(t *testing.T) {
	t.Parallel()
	vault := t.TempDir()
	tools := t.TempDir()
	writeFakeFFmpeg(t, tools)
	writeFakeFFprobe(t, tools, "3.5")
	writeFakeWhisper(t, tools, "hello from the fake transcript")

	store := newTestStore(t, vault)
	ctx := context.Background()
	entry := seedQueuedEntry(t, store, vault, datastore.KindQuickNote)

	r := newTestRunner(t, store, tools)
	require.NoError(t, r.RunOnce(ctx))

	got, err := store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StageAwaitingReview, got.Stage)
	assert.Equal(t, "hello from the fake transcript", got.RawTranscript)
	assert.NotNil(t, got.RawTranscriptLockedAt)
	assert.Equal(t, "", got.LockedBy, "lease must be released while parked")
}

func TestContinueResumesQuickNoteToCompletion(t *testing.T) {
	t.Parallel()
	vault := t.TempDir()
	tools := t.TempDir()
	writeFakeFFmpeg(t, tools)
	writeFakeFFprobe(t, tools, "3.5")
	writeFakeWhisper(t, tools, "hello world")

	store := newTestStore(t, vault)
	ctx := context.Background()
	entry := seedQueuedEntry(t, store, vault, datastore.KindQuickNote)

	r := newTestRunner(t, store, tools)
	require.NoError(t, r.RunOnce(ctx))

	require.NoError(t, r.Continue(ctx, entry.ID))
	require.NoError(t, r.RunOnce(ctx))

	got, err := store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StageCompleted, got.Stage)
	require.NotEmpty(t, got.NotePath)

	content, err := os.ReadFile(got.NotePath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "hello world")
	assert.Contains(t, string(content), "type: quick-note")
}

func TestContinueIsNoOpWhenNotAwaiting(t *testing.T) {
	t.Parallel()
	vault := t.TempDir()
	store := newTestStore(t, vault)
	ctx := context.Background()
	entry := seedQueuedEntry(t, store, vault, datastore.KindQuickNote)

	require.NoError(t, newTestRunner(t, store, t.TempDir()).Continue(ctx, entry.ID))

	got, err := store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StageQueued, got.Stage, "continue on a non-awaiting stage must not change it")
}

func TestDailyReflectionParksForPromptsThenGenerates(t *testing.T) {
	t.Parallel()
	vault := t.TempDir()
	tools := t.TempDir()
	writeFakeFFmpeg(t, tools)
	writeFakeFFprobe(t, tools, "10")
	writeFakeWhisper(t, tools, "today I felt grateful")

	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"response":"## AI Reflection\n\nYou had a good day."}`)
	}))
	defer llm.Close()

	store := newTestStore(t, vault)
	ctx := context.Background()
	require.NoError(t, store.UpdateSettings(ctx, &datastore.Settings{
		VaultRoot:  vault,
		LLMBaseURL: llm.URL,
		LLMModel:   "llama3",
	}))

	entry := seedQueuedEntry(t, store, vault, datastore.KindDailyReflection)
	r := newTestRunner(t, store, tools)

	require.NoError(t, r.RunOnce(ctx))
	require.NoError(t, r.Continue(ctx, entry.ID))
	require.NoError(t, r.RunOnce(ctx))

	got, err := store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StageAwaitingPrompts, got.Stage, "no answers yet; must park for prompts")

	require.NoError(t, store.UpdateEntry(ctx, entry.ID, map[string]any{
		"prompt_answers": datastore.JSONMap[datastore.PromptAnswer]{
			"gratitude":       {Text: "my family"},
			"accomplishments": {Text: "shipped a feature"},
			"challenges":      {Text: "staying focused"},
			"tomorrow":        {Text: "go for a run"},
		},
	}))
	require.NoError(t, r.Continue(ctx, entry.ID))
	require.NoError(t, r.RunOnce(ctx))

	got, err = store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StageCompleted, got.Stage)

	content, err := os.ReadFile(got.NotePath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "my family")
	assert.Contains(t, string(content), "You had a good day.")
}

func TestCancelDuringQueuedFinalizesAsCancelled(t *testing.T) {
	t.Parallel()
	vault := t.TempDir()
	store := newTestStore(t, vault)
	ctx := context.Background()
	entry := seedQueuedEntry(t, store, vault, datastore.KindQuickNote)

	r := newTestRunner(t, store, t.TempDir())
	require.NoError(t, r.Cancel(ctx, entry.ID))

	got, err := store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StageCancelRequested, got.Stage)
	assert.True(t, got.CancelRequested)

	require.NoError(t, r.RunOnce(ctx))
	got, err = store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StageCancelled, got.Stage)
}

func TestCancelRejectedOutsideCancellableStages(t *testing.T) {
	t.Parallel()
	vault := t.TempDir()
	store := newTestStore(t, vault)
	ctx := context.Background()
	entry := seedQueuedEntry(t, store, vault, datastore.KindQuickNote)
	require.NoError(t, store.UpdateEntry(ctx, entry.ID, map[string]any{"stage": datastore.StageAwaitingReview}))

	err := newTestRunner(t, store, t.TempDir()).Cancel(ctx, entry.ID)
	assert.Error(t, err)
}

func TestRecoverStuckResetsStaleHeartbeatToQueued(t *testing.T) {
	t.Parallel()
	vault := t.TempDir()
	store := newTestStore(t, vault)
	ctx := context.Background()
	entry := seedQueuedEntry(t, store, vault, datastore.KindQuickNote)

	stale := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.UpdateEntry(ctx, entry.ID, map[string]any{
		"stage":        datastore.StageTranscribing,
		"locked_by":    "some-other-worker",
		"heartbeat_at": stale,
	}))

	r := New(store, Config{WorkerID: "w", HeartbeatTimeout: time.Minute}, fakeClock{})
	require.NoError(t, r.recoverStuck(ctx))

	got, err := store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StageQueued, got.Stage)
	assert.Equal(t, "", got.LockedBy)
}
