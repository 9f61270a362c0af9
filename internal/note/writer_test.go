package note

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrnl/voicejournal/internal/datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEntry(kind string) *datastore.Entry {
	created := time.Date(2026, 7, 30, 9, 12, 0, 0, time.UTC)
	return &datastore.Entry{
		ID:                  "entry123",
		CreatedAt:           created,
		Timezone:            "UTC",
		EntryDate:           "2026-07-30",
		Kind:                kind,
		NormalizedAudioPath: "journal/audio/2026-07-30-091200-" + kind + ".wav",
		AudioDurationSec:    42.6,
	}
}

func TestWriteNoteQuickNotePrimaryTranscriptNotWrapped(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	entry := baseEntry(datastore.KindQuickNote)

	path, mtime, err := WriteNote(dir, entry, "a short quick note", nil)
	require.NoError(t, err)
	assert.False(t, mtime.IsZero())
	assert.Equal(t, filepath.Join(dir, "journal", "2026-07-30-091200-quick-note.md"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)

	assert.Contains(t, content, "id: entry123")
	assert.Contains(t, content, "audio_file: audio/2026-07-30-091200-quick-note.wav")
	assert.Contains(t, content, "tags:")

	result, err := ParseStrict(content)
	require.NoError(t, err)

	transcript, ok := result.Section(SectionTranscript)
	require.True(t, ok)
	assert.Equal(t, "a short quick note", transcript.Body)
	assert.True(t, transcript.HasFlag(FlagImmutable))

	related, ok := result.Section(SectionRelated)
	require.True(t, ok)
	assert.Equal(t, "", related.Body)
	assert.True(t, related.HasFlag(FlagGenerated))
}

func TestWriteNoteBrainDumpWrapsTranscriptAndAddsJournalSection(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	entry := baseEntry(datastore.KindBrainDump)

	generated := datastore.JSONMap[string]{SectionJournal: "## TL;DR\nall good\n"}
	path, _, err := WriteNote(dir, entry, "raw words from the recording", generated)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	result, err := ParseStrict(string(raw))
	require.NoError(t, err)

	transcript, ok := result.Section(SectionTranscript)
	require.True(t, ok)
	assert.Contains(t, transcript.Body, "<details>")
	assert.Contains(t, transcript.Body, "raw words from the recording")

	journal, ok := result.Section(SectionJournal)
	require.True(t, ok)
	assert.Contains(t, journal.Body, "TL;DR")
	assert.True(t, journal.HasFlag(FlagGenerated))
}

func TestWriteNoteDailyReflectionRendersPromptSectionsAndAIReflection(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	entry := baseEntry(datastore.KindDailyReflection)
	entry.PromptAnswers = datastore.JSONMap[datastore.PromptAnswer]{
		"gratitude":       {Text: "my family"},
		"accomplishments": {ExtractedText: "shipped the release"},
	}
	generated := datastore.JSONMap[string]{SectionAIReflection: "Today went well overall."}

	path, _, err := WriteNote(dir, entry, "transcript text", generated)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	result, err := ParseStrict(string(raw))
	require.NoError(t, err)

	gratitude, ok := result.Section(SectionGratitude)
	require.True(t, ok)
	assert.Equal(t, "my family", gratitude.Body)

	accomplishments, ok := result.Section(SectionAccomplishments)
	require.True(t, ok)
	assert.Equal(t, "shipped the release", accomplishments.Body)

	challenges, ok := result.Section(SectionChallenges)
	require.True(t, ok)
	assert.Equal(t, "", challenges.Body)

	reflection, ok := result.Section(SectionAIReflection)
	require.True(t, ok)
	assert.Equal(t, "Today went well overall.", reflection.Body)
	assert.True(t, reflection.HasFlag(FlagGenerated))
}

func TestFilenameUsesLocalCreationInstant(t *testing.T) {
	t.Parallel()
	created := time.Date(2026, 7, 30, 9, 12, 0, 0, time.UTC)
	assert.Equal(t, "2026-07-30-091200-brain-dump.md", Filename(created, "brain-dump"))
}
