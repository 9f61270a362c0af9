// Package privacy scrubs long free-text bodies (voice transcripts, prompt
// answers, LLM responses) out of debug logs, leaving a stable fingerprint
// behind instead of the raw text. The teacher's internal/privacy package
// anonymizes RTSP URLs and GPS coordinates for the same reason — keep the
// shape of what happened in the logs without keeping the sensitive payload
// — but this domain's sensitive payload is the user's own journal text
// rather than camera credentials, so the redaction target is different
// even though the goal is the same.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// maxLoggedChars is how much of a free-text field is kept verbatim before
// scrubbing switches to a fingerprint; short fields (a one-line prompt
// answer) are rarely sensitive enough to bother hiding and are useful in
// logs as-is.
const maxLoggedChars = 80

// ScrubText returns text unchanged if it is short, otherwise a
// fingerprinted placeholder of the form "text-<n>chars-<hash8>" that lets
// two log lines be compared for equality without ever printing the text
// itself.
func ScrubText(text string) string {
	if len(text) <= maxLoggedChars {
		return text
	}
	return fmt.Sprintf("text-%dchars-%s", len(text), fingerprint(text))
}

func fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:8]
}
