package note

import (
	"os"
	"strings"
	"time"

	"github.com/jrnl/voicejournal/internal/errors"
)

// ErrSectionNotFound is returned by UpdateNoteSection when the requested
// section does not exist in the file.
var ErrSectionNotFound = errors.Newf("note: section not found").
	Component("note").
	Category(errors.CategoryNotFound).
	Build()

// UpdateNoteSection strict-parses the existing file, replaces exactly the
// body between one section's markers, atomically replaces the file, and
// returns the new mtime. Everything outside those markers is preserved
// byte-for-byte (spec.md §4.E operation 2).
func UpdateNoteSection(path, name, bodyText string) (time.Time, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, errors.New(err).
			Component("note").
			Category(errors.CategoryFileIO).
			Context("operation", "read_note").
			Context("path", path).
			Build()
	}
	content := string(raw)

	result, err := ParseStrict(content)
	if err != nil {
		return time.Time{}, errors.New(err).
			Component("note").
			Category(errors.CategoryState).
			Context("operation", "parse_note").
			Context("path", path).
			Build()
	}
	section, ok := result.Section(name)
	if !ok {
		return time.Time{}, ErrSectionNotFound
	}

	lines := strings.Split(content, "\n")
	var out []string
	out = append(out, lines[:section.StartLine+1]...)
	out = append(out, strings.Split(strings.TrimSpace(bodyText), "\n")...)
	out = append(out, lines[section.EndLine:]...)

	return atomicWrite(path, []byte(strings.Join(out, "\n")))
}

// UpdateNoteContent replaces several sections' bodies at once, keyed by
// section name. Sections not present in the file are skipped rather than
// invented. For TRANSCRIPT, the existing wrapper style (expandable-details
// vs plain heading) is preserved (spec.md §4.E operation 3).
func UpdateNoteContent(path string, bodyByName map[string]string) (time.Time, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, errors.New(err).
			Component("note").
			Category(errors.CategoryFileIO).
			Context("operation", "read_note").
			Context("path", path).
			Build()
	}
	content := string(raw)

	result, err := ParseStrict(content)
	if err != nil {
		return time.Time{}, errors.New(err).
			Component("note").
			Category(errors.CategoryState).
			Context("operation", "parse_note").
			Context("path", path).
			Build()
	}

	lines := strings.Split(content, "\n")
	var out []string
	prevEnd := 0
	for _, sec := range result.Sections {
		out = append(out, lines[prevEnd:sec.StartLine+1]...)

		if newBody, ok := bodyByName[sec.Name]; ok {
			out = append(out, strings.Split(renderUpdatedBody(sec, newBody), "\n")...)
		} else {
			out = append(out, lines[sec.StartLine+1:sec.EndLine]...)
		}

		out = append(out, lines[sec.EndLine])
		prevEnd = sec.EndLine + 1
	}
	out = append(out, lines[prevEnd:]...)

	return atomicWrite(path, []byte(strings.Join(out, "\n")))
}

// renderUpdatedBody applies TRANSCRIPT's wrapper-preservation rule; every
// other section's new body passes through trimmed and unheaded.
func renderUpdatedBody(sec Section, newBody string) string {
	trimmed := strings.TrimSpace(newBody)
	if sec.Name != SectionTranscript {
		return trimmed
	}
	if strings.HasPrefix(sec.Body, "<details>") {
		return wrapExpandableDetails(trimmed)
	}
	return "## Transcript\n\n" + trimmed
}
