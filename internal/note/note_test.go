package note

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFindsSectionsWithFlagsAndBody(t *testing.T) {
	t.Parallel()
	content := "# Title\n\n" +
		startMarker(SectionTranscript, []string{FlagImmutable}) + "\n" +
		"hello world\n" +
		endMarker(SectionTranscript) + "\n\n" +
		startMarker(SectionRelated, []string{FlagGenerated}) + "\n" +
		endMarker(SectionRelated) + "\n"

	result := Parse(content)
	require.Empty(t, result.Errors)
	require.Len(t, result.Sections, 2)

	transcript, ok := result.Section(SectionTranscript)
	require.True(t, ok)
	assert.Equal(t, "hello world", transcript.Body)
	assert.True(t, transcript.HasFlag(FlagImmutable))

	related, ok := result.Section(SectionRelated)
	require.True(t, ok)
	assert.Equal(t, "", related.Body)
	assert.True(t, related.HasFlag(FlagGenerated))
}

func TestParseCollectsMissingEnd(t *testing.T) {
	t.Parallel()
	content := startMarker(SectionAudio, nil) + "\nbody\n"
	result := Parse(content)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrMissingEnd, result.Errors[0].Kind)
}

func TestParseCollectsMissingStart(t *testing.T) {
	t.Parallel()
	content := "body\n" + endMarker(SectionAudio) + "\n"
	result := Parse(content)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrMissingStart, result.Errors[0].Kind)
}

func TestParseCollectsInvalidNesting(t *testing.T) {
	t.Parallel()
	content := startMarker(SectionAudio, nil) + "\n" +
		startMarker(SectionAudio, nil) + "\n" +
		"body\n" + endMarker(SectionAudio) + "\n"
	result := Parse(content)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrInvalidNesting, result.Errors[0].Kind)
}

func TestParseCollectsDuplicateSection(t *testing.T) {
	t.Parallel()
	one := startMarker(SectionAudio, nil) + "\nfirst\n" + endMarker(SectionAudio)
	two := startMarker(SectionAudio, nil) + "\nsecond\n" + endMarker(SectionAudio)
	content := one + "\n" + two + "\n"
	result := Parse(content)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrDuplicateSection, result.Errors[0].Kind)
	assert.Len(t, result.Sections, 2)
}

func TestParseStrictFailsWhenErrorsCollected(t *testing.T) {
	t.Parallel()
	_, err := ParseStrict(startMarker(SectionAudio, nil) + "\nbody\n")
	require.Error(t, err)
}

func TestParseStrictSucceedsOnWellFormedDocument(t *testing.T) {
	t.Parallel()
	content := startMarker(SectionAudio, []string{FlagImmutable}) + "\nbody\n" + endMarker(SectionAudio) + "\n"
	_, err := ParseStrict(content)
	require.NoError(t, err)
}
