package note

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestUpdateNoteSectionReplacesOnlyThatSectionBody(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	content := "# Title\n\npreamble text\n\n" +
		startMarker(SectionTranscript, []string{FlagImmutable}) + "\n" +
		"old transcript\n" +
		endMarker(SectionTranscript) + "\n\n" +
		"trailing text\n"
	path := writeFixture(t, dir, content)

	_, err := UpdateNoteSection(path, SectionTranscript, "new transcript")
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	updated := string(raw)

	assert.Contains(t, updated, "preamble text")
	assert.Contains(t, updated, "trailing text")
	assert.Contains(t, updated, "new transcript")
	assert.NotContains(t, updated, "old transcript")
}

func TestUpdateNoteSectionReturnsErrorWhenSectionMissing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFixture(t, dir, "# Title\n\nno sections here\n")
	_, err := UpdateNoteSection(path, SectionTranscript, "x")
	require.Error(t, err)
}

func TestUpdateNoteContentSkipsSectionsNotPresent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	content := "# Title\n\n" +
		startMarker(SectionRelated, []string{FlagGenerated}) + "\n" +
		endMarker(SectionRelated) + "\n"
	path := writeFixture(t, dir, content)

	_, err := UpdateNoteContent(path, map[string]string{
		SectionRelated:      "[[2026-07-29-daily-reflection]]",
		SectionAIReflection: "should be ignored, not invented",
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	updated := string(raw)
	assert.Contains(t, updated, "2026-07-29-daily-reflection")
	assert.NotContains(t, updated, "should be ignored")
}

func TestUpdateNoteContentPreservesDetailsWrapperForTranscript(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	content := "# Title\n\n" +
		startMarker(SectionTranscript, []string{FlagImmutable}) + "\n" +
		wrapExpandableDetails("old words") + "\n" +
		endMarker(SectionTranscript) + "\n"
	path := writeFixture(t, dir, content)

	_, err := UpdateNoteContent(path, map[string]string{SectionTranscript: "corrected words"})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	updated := string(raw)
	assert.Contains(t, updated, "<details>")
	assert.Contains(t, updated, "corrected words")
}

func TestUpdateNoteContentUsesPlainHeadingWhenNotWrapped(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	content := "# Title\n\n" +
		startMarker(SectionTranscript, []string{FlagImmutable}) + "\n" +
		"plain primary transcript\n" +
		endMarker(SectionTranscript) + "\n"
	path := writeFixture(t, dir, content)

	_, err := UpdateNoteContent(path, map[string]string{SectionTranscript: "corrected plain transcript"})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	updated := string(raw)
	assert.Contains(t, updated, "## Transcript")
	assert.Contains(t, updated, "corrected plain transcript")
	assert.NotContains(t, updated, "<details>")
}
