package privacy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrubTextLeavesShortFieldsUntouched(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "gratitude: my kids", ScrubText("gratitude: my kids"))
}

func TestScrubTextFingerprintsLongFields(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("I spent the morning thinking about the roadmap. ", 5)
	got := ScrubText(long)
	assert.NotContains(t, got, "roadmap")
	assert.Contains(t, got, "chars-")
}

func TestScrubTextIsDeterministic(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", 200)
	assert.Equal(t, ScrubText(long), ScrubText(long))
}
