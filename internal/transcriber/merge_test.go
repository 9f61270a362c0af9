package transcriber

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeChunksSingleChunkIsIdempotent(t *testing.T) {
	t.Parallel()
	got := MergeChunks([]string{"  hello   world  "}, 5)
	assert.Equal(t, "hello world", got)
}

func TestMergeChunksSkipsDetectedOverlap(t *testing.T) {
	t.Parallel()
	// overlap 2s -> k = ceil(2.5*2) = 5 tokens of expected overlap.
	first := "a b c d e f g h i j k l m n o p q r s t"
	second := "p q r s t u v w x y z aa bb cc dd"
	got := MergeChunks([]string{first, second}, 2)
	assert.Equal(t, "a b c d e f g h i j k l m n o p q r s t u v w x y z aa bb cc dd", got)
}

func TestMergeChunksAppendsVerbatimWhenNoOverlapDetected(t *testing.T) {
	t.Parallel()
	first := "completely different content in the first chunk"
	second := "nothing at all in common with the previous segment here"
	got := MergeChunks([]string{first, second}, 5)
	assert.Equal(t, first+" "+second, got)
}

func TestMergeChunksEmptyInput(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", MergeChunks(nil, 5))
}

func TestNormalizeTokenStripsPunctuation(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "hello", normalizeToken("Hello,"))
	assert.Equal(t, "dont", normalizeToken("don't"))
}
