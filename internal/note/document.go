package note

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// frontmatter mirrors spec.md §4.E's documented key set. yaml.v3 (already a
// teacher dependency, used the same way internal/conf marshals Settings)
// handles both directions.
type frontmatter struct {
	ID           string   `yaml:"id"`
	Created      string   `yaml:"created"`
	CreatedLocal string   `yaml:"created_local"`
	Timezone     string   `yaml:"timezone"`
	EntryDate    string   `yaml:"entry_date"`
	Type         string   `yaml:"type"`
	AudioDuration *int    `yaml:"audio_duration,omitempty"`
	AudioFile    string   `yaml:"audio_file,omitempty"`
	Tags         []string `yaml:"tags"`
}

// humanTitle renders the document's level-1 heading. spec.md leaves the
// exact title wording unspecified; this renders the entry's kind in title
// case followed by its local entry date, which is deterministic and reads
// naturally in an Obsidian file list.
func humanTitle(kind, entryDate string) string {
	words := strings.Split(strings.ReplaceAll(kind, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return fmt.Sprintf("%s — %s", strings.Join(words, " "), entryDate)
}

// renderSection wraps body with its marker pair, including an empty line
// both sides so re-parsing never needs to special-case adjacency.
func renderSection(name string, flags []string, body string) string {
	var b strings.Builder
	b.WriteString(startMarker(name, flags))
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n")
	b.WriteString(endMarker(name))
	return b.String()
}

// wrapExpandableDetails wraps body text in an HTML <details> element with a
// "Raw Transcript" summary, used for the TRANSCRIPT section whenever it is
// not the entry's primary content (spec.md §4.E).
func wrapExpandableDetails(body string) string {
	var b strings.Builder
	b.WriteString("<details>\n<summary>Raw Transcript</summary>\n\n")
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n\n</details>")
	return b.String()
}

// buildDocument assembles the frontmatter block, heading, hashtags, and the
// ordered list of pre-rendered sections into the final file content.
func buildDocument(fm frontmatter, title string, sections []string) (string, error) {
	fmBytes, err := yaml.Marshal(fm)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fmBytes)
	b.WriteString("---\n\n")
	b.WriteString("# ")
	b.WriteString(title)
	b.WriteString("\n\n")
	b.WriteString("#journal #")
	b.WriteString(fm.Type)
	b.WriteString("\n\n")
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(s)
	}
	b.WriteString("\n")
	return b.String(), nil
}

func roundedSeconds(d float64) int {
	return int(d + 0.5)
}

func utcStamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func localStamp(t time.Time) string {
	return t.Format("2006-01-02T15:04:05-07:00")
}
