package transcriber

import (
	"math"
	"strings"
)

// overlapTokenMultiplier is spec.md §4.C's k = ceil(2.5*O).
const overlapTokenMultiplier = 2.5

// searchWindowMultiplier bounds how far into the new chunk merge searches
// for the previous chunk's tail (up to position 3k).
const searchWindowMultiplier = 3

// minMatchingTokens is the threshold below which a candidate overlap is
// rejected and the new chunk is appended verbatim.
const minMatchingTokens = 2

// MergeChunks joins n sequential chunk transcripts recorded with overlap
// overlapSeconds of audio between consecutive chunks, skipping the
// re-transcribed overlap it can confidently identify (spec.md §4.C). The
// merge is idempotent on an already-trimmed single-chunk input.
func MergeChunks(texts []string, overlapSeconds float64) string {
	if len(texts) == 0 {
		return ""
	}

	k := int(math.Ceil(overlapTokenMultiplier * overlapSeconds))
	if k < 1 {
		k = 1
	}

	accumulated := strings.Fields(strings.TrimSpace(texts[0]))

	for _, next := range texts[1:] {
		nextTokens := strings.Fields(strings.TrimSpace(next))
		skip := matchOverlap(accumulated, nextTokens, k)
		accumulated = append(accumulated, nextTokens[skip:]...)
	}

	return collapseWhitespace(strings.Join(accumulated, " "))
}

// matchOverlap compares the normalized last ~2k tokens of accumulated
// against windows at the start of next (up to position 3k), returning how
// many leading tokens of next to skip. Returns 0 when no candidate beats
// the minimum-matching-tokens threshold, so the caller appends next
// verbatim (possibly duplicating words at the join, which spec.md §4.C
// accepts as cheaper than wrongly deleting real content).
func matchOverlap(accumulated, next []string, k int) int {
	tailLen := 2 * k
	if tailLen > len(accumulated) {
		tailLen = len(accumulated)
	}
	tail := normalizeTokens(accumulated[len(accumulated)-tailLen:])

	searchLimit := searchWindowMultiplier * k
	if searchLimit > len(next) {
		searchLimit = len(next)
	}
	normalizedNext := normalizeTokens(next[:searchLimit])

	bestMatches := 0
	bestIndex := 0
	for start := 0; start < len(normalizedNext); start++ {
		windowEnd := start + k
		if windowEnd > len(normalizedNext) {
			windowEnd = len(normalizedNext)
		}
		window := normalizedNext[start:windowEnd]
		matches := countMatchingPositions(tailSuffix(tail, len(window)), window)
		if matches > bestMatches {
			bestMatches = matches
			bestIndex = start + len(window)
		}
	}

	if bestMatches >= minMatchingTokens {
		return bestIndex
	}
	return 0
}

// tailSuffix returns the last n elements of tokens (or all of them if
// shorter), aligning the comparison window against the most recent words.
func tailSuffix(tokens []string, n int) []string {
	if n > len(tokens) {
		n = len(tokens)
	}
	return tokens[len(tokens)-n:]
}

func countMatchingPositions(a, b []string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	matches := 0
	for i := 0; i < n; i++ {
		if a[i] == b[i] {
			matches++
		}
	}
	return matches
}

func normalizeTokens(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = normalizeToken(tok)
	}
	return out
}

// normalizeToken lowercases tok and strips non-alphanumeric characters, the
// normalization spec.md §4.C specifies for overlap comparison and for the
// dominant-token hallucination rule.
func normalizeToken(tok string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(tok) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
