// Package note writes and parses the Markdown journal note (spec.md §4.E):
// YAML frontmatter, a human heading, and a sequence of marker-delimited
// sections that later automated rewrites can locate and replace without
// disturbing anything else in the file.
package note

import (
	"fmt"
	"regexp"
	"strings"
)

// Section names (spec.md §4.E).
const (
	SectionAudio           = "AUDIO"
	SectionJournal         = "JOURNAL"
	SectionGratitude       = "GRATITUDE"
	SectionAccomplishments = "ACCOMPLISHMENTS"
	SectionChallenges      = "CHALLENGES"
	SectionTomorrow        = "TOMORROW"
	SectionAIReflection    = "AI_REFLECTION"
	SectionSummary         = "SUMMARY"
	SectionTranscript      = "TRANSCRIPT"
	SectionRelated         = "RELATED"
)

// Recognized marker flags.
const (
	FlagImmutable = "immutable"
	FlagGenerated = "generated"
)

const markerPrefix = "WHISPER_JOURNAL"

var (
	startMarkerRe = regexp.MustCompile(`^<!--\s*` + markerPrefix + `:([A-Z_]+):START(.*?)\s*-->$`)
	endMarkerRe   = regexp.MustCompile(`^<!--\s*` + markerPrefix + `:([A-Z_]+):END\s*-->$`)
)

func startMarker(name string, flags []string) string {
	if len(flags) == 0 {
		return fmt.Sprintf("<!-- %s:%s:START -->", markerPrefix, name)
	}
	return fmt.Sprintf("<!-- %s:%s:START %s -->", markerPrefix, name, strings.Join(flags, " "))
}

func endMarker(name string) string {
	return fmt.Sprintf("<!-- %s:%s:END -->", markerPrefix, name)
}

// Section is one marker-delimited region of a parsed document.
type Section struct {
	Name      string
	Flags     []string
	Body      string // trimmed text between the markers
	StartLine int    // 0-based line index of the START marker
	EndLine   int    // 0-based line index of the END marker
}

// HasFlag reports whether s carries the named flag.
func (s Section) HasFlag(flag string) bool {
	for _, f := range s.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// ParseErrorKind enumerates the structural problems a line-scan can detect
// without aborting the scan (spec.md §4.E).
type ParseErrorKind string

const (
	ErrMissingEnd       ParseErrorKind = "missing_end"
	ErrMissingStart     ParseErrorKind = "missing_start"
	ErrInvalidNesting   ParseErrorKind = "invalid_nesting"
	ErrDuplicateSection ParseErrorKind = "duplicate_section"
)

// ParseError reports one structural problem found during a scan, with the
// 0-based line number where it was detected.
type ParseError struct {
	Kind ParseErrorKind
	Name string
	Line int
}

func (e ParseError) Error() string {
	return fmt.Sprintf("note: %s for section %q at line %d", e.Kind, e.Name, e.Line+1)
}

// ParseResult is a line-scan's output: every well-formed section found,
// plus every structural error collected along the way.
type ParseResult struct {
	Sections []Section
	Errors   []ParseError
}

// Section looks up a parsed section by name, returning ok=false if absent.
func (r *ParseResult) Section(name string) (Section, bool) {
	for _, s := range r.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

type openSection struct {
	name      string
	flags     []string
	startLine int // line index of the first body line
}

// Parse scans content for WHISPER_JOURNAL marker pairs, collecting
// structural errors rather than aborting on the first one.
func Parse(content string) *ParseResult {
	lines := strings.Split(content, "\n")
	result := &ParseResult{}

	var open []openSection
	seen := make(map[string]bool)

	isOpen := func(name string) bool {
		for _, o := range open {
			if o.name == name {
				return true
			}
		}
		return false
	}

	for i, line := range lines {
		if m := startMarkerRe.FindStringSubmatch(line); m != nil {
			name := m[1]
			flags := strings.Fields(m[2])
			if isOpen(name) {
				result.Errors = append(result.Errors, ParseError{Kind: ErrInvalidNesting, Name: name, Line: i})
				continue
			}
			open = append(open, openSection{name: name, flags: flags, startLine: i + 1})
			continue
		}
		if m := endMarkerRe.FindStringSubmatch(line); m != nil {
			name := m[1]
			idx := -1
			for j, o := range open {
				if o.name == name {
					idx = j
					break
				}
			}
			if idx == -1 {
				result.Errors = append(result.Errors, ParseError{Kind: ErrMissingStart, Name: name, Line: i})
				continue
			}
			o := open[idx]
			open = append(open[:idx], open[idx+1:]...)

			if seen[name] {
				result.Errors = append(result.Errors, ParseError{Kind: ErrDuplicateSection, Name: name, Line: i})
			}
			seen[name] = true

			body := strings.TrimSpace(strings.Join(lines[o.startLine:i], "\n"))
			result.Sections = append(result.Sections, Section{
				Name:      name,
				Flags:     o.flags,
				Body:      body,
				StartLine: o.startLine - 1,
				EndLine:   i,
			})
		}
	}

	for _, o := range open {
		result.Errors = append(result.Errors, ParseError{Kind: ErrMissingEnd, Name: o.name, Line: o.startLine - 1})
	}

	return result
}

// ParseStrict behaves like Parse but fails if any structural error was
// collected; callers that are about to mutate a file (updateNoteSection,
// updateNoteContent) always use this form.
func ParseStrict(content string) (*ParseResult, error) {
	result := Parse(content)
	if len(result.Errors) > 0 {
		return result, result.Errors[0]
	}
	return result, nil
}
