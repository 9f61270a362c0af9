package note

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/jrnl/voicejournal/internal/datastore"
	"github.com/jrnl/voicejournal/internal/errors"
)

// promptSectionOrder pairs each guided-prompt key with the section name it
// renders under, in the fixed order spec.md §4.E lists them.
var promptSectionOrder = []struct {
	key     string
	section string
}{
	{"gratitude", SectionGratitude},
	{"accomplishments", SectionAccomplishments},
	{"challenges", SectionChallenges},
	{"tomorrow", SectionTomorrow},
}

// promptAnswerText prefers the user's typed text over extracted text over
// the raw per-prompt audio transcript, the same preference order the LLM
// prompt assembly uses.
func promptAnswerText(a datastore.PromptAnswer) string {
	if a.Text != "" {
		return a.Text
	}
	if a.ExtractedText != "" {
		return a.ExtractedText
	}
	return a.AudioTranscript
}

// WriteNote produces the entire document deterministically from entry and
// its inputs (spec.md §4.E operation 1), writes it via atomic replace under
// <vaultRoot>/journal/, and returns the path and the file's post-rename
// mtime.
func WriteNote(vaultRoot string, entry *datastore.Entry, transcript string, generatedSections datastore.JSONMap[string]) (string, time.Time, error) {
	loc, err := time.LoadLocation(entry.Timezone)
	if err != nil {
		return "", time.Time{}, errors.New(err).
			Component("note").
			Category(errors.CategoryValidation).
			Context("operation", "load_timezone").
			Context("timezone", entry.Timezone).
			Build()
	}
	createdLocal := entry.CreatedAt.In(loc)

	filename := Filename(createdLocal, entry.Kind)
	notePath := NotePath(vaultRoot, filename)

	fm := frontmatter{
		ID:           entry.ID,
		Created:      utcStamp(entry.CreatedAt),
		CreatedLocal: localStamp(createdLocal),
		Timezone:     entry.Timezone,
		EntryDate:    entry.EntryDate,
		Type:         entry.Kind,
		Tags:         []string{"journal", entry.Kind},
	}
	if entry.AudioDurationSec > 0 {
		d := roundedSeconds(entry.AudioDurationSec)
		fm.AudioDuration = &d
	}

	var sections []string

	var audioFilename string
	if entry.NormalizedAudioPath != "" {
		audioFilename = filepath.Base(entry.NormalizedAudioPath)
		relPath := AudioRelativePath(audioFilename)
		fm.AudioFile = relPath
		sections = append(sections, renderSection(SectionAudio, []string{FlagImmutable}, fmt.Sprintf("[Audio](%s)\n\n![[%s]]", relPath, relPath)))
	}

	switch entry.Kind {
	case datastore.KindQuickNote:
		sections = append(sections, renderSection(SectionTranscript, []string{FlagImmutable}, transcript))
	case datastore.KindBrainDump:
		sections = append(sections, renderSection(SectionTranscript, []string{FlagImmutable}, wrapExpandableDetails(transcript)))
		sections = append(sections, renderSection(SectionJournal, []string{FlagGenerated}, generatedSections[SectionJournal]))
	case datastore.KindDailyReflection:
		sections = append(sections, renderSection(SectionTranscript, []string{FlagImmutable}, wrapExpandableDetails(transcript)))
		for _, p := range promptSectionOrder {
			answer := entry.PromptAnswers[p.key]
			sections = append(sections, renderSection(p.section, nil, promptAnswerText(answer)))
		}
		sections = append(sections, renderSection(SectionAIReflection, []string{FlagGenerated}, generatedSections[SectionAIReflection]))
	}

	sections = append(sections, renderSection(SectionRelated, []string{FlagGenerated}, ""))

	content, err := buildDocument(fm, humanTitle(entry.Kind, entry.EntryDate), sections)
	if err != nil {
		return "", time.Time{}, errors.New(err).
			Component("note").
			Category(errors.CategoryFileIO).
			Context("operation", "marshal_frontmatter").
			Build()
	}

	mtime, err := atomicWrite(notePath, []byte(content))
	if err != nil {
		return "", time.Time{}, err
	}
	return notePath, mtime, nil
}
