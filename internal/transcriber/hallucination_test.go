package transcriber

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectHallucinationEmptyText(t *testing.T) {
	t.Parallel()
	result := DetectHallucination("", 30)
	assert.True(t, result.Flagged)
	assert.Equal(t, confEmpty, result.Confidence)
}

func TestDetectHallucinationTooShortForDuration(t *testing.T) {
	t.Parallel()
	// 30s chunk expects roughly 0.3*5*30 = 45 chars; "hi there" is far short.
	result := DetectHallucination("hi there", 30)
	assert.True(t, result.Flagged)
	assert.Equal(t, confTooShort, result.Confidence)
}

func TestDetectHallucinationRepeatedPhrase(t *testing.T) {
	t.Parallel()
	// P8: a six-token phrase repeated 4 times must trigger the detector.
	text := strings.Repeat("hello there friend how are you ", 4)
	result := DetectHallucination(text, 60)
	assert.True(t, result.Flagged)
	assert.Contains(t, result.Reason, "repeats")
}

func TestDetectHallucinationDominantToken(t *testing.T) {
	t.Parallel()
	// Unique filler words around each repeat so the repeated-phrase rule
	// (which only looks at contiguous 5..12 token runs) does not fire
	// first; "yesyes" alone must account for the flag.
	tokens := make([]string, 0, 60)
	for i := 0; i < 15; i++ {
		tokens = append(tokens, "yesyes", fmt.Sprintf("w%da", i), fmt.Sprintf("w%db", i), fmt.Sprintf("w%dc", i))
	}
	text := strings.Join(tokens, " ")
	result := DetectHallucination(text, 60)
	assert.True(t, result.Flagged)
	assert.Contains(t, result.Reason, "yesyes")
}

func TestDetectHallucinationCleanTranscriptNotFlagged(t *testing.T) {
	t.Parallel()
	text := "today I spent most of the morning reviewing the quarterly roadmap and then took a long walk by the river before calling my sister about the upcoming trip we are planning for next spring and whether the dates still work for everyone involved"
	result := DetectHallucination(text, 60)
	assert.False(t, result.Flagged)
}
