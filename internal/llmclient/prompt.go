package llmclient

import (
	"fmt"
	"strings"

	"github.com/jrnl/voicejournal/internal/datastore"
)

// brainDumpPromptTemplate is the fixed Daily Strategic Journal skeleton the
// model is instructed to produce for a brain-dump entry (spec.md §4.D). The
// transcript is interpolated verbatim inside triple-quoted fences so the
// model can quote from it without the fences themselves being mistaken for
// instructions.
const brainDumpPromptTemplate = `You are a meticulous personal journal editor. Turn the raw voice transcript below into a single Markdown document using exactly the following section headings, in this order, and nothing else:

## TL;DR
## Today in 6 Bullets
## What Actually Mattered
## Distractions vs Leverage
## Decisions
## Friction
## Emotional State
## Money
## 90-day Extrapolation
## Identity Continuation
## Three Non-Negotiables
## Open Loops
## Identity Check
## Tags

Write in the first person, grounded only in what the transcript actually says. Do not invent facts. If a section has nothing to report, write "Nothing to report" under that heading rather than omitting it.

Transcript:
"""
%s
"""
`

// buildBrainDumpPrompt returns the full prompt for a brain-dump entry.
func buildBrainDumpPrompt(transcript string) string {
	return fmt.Sprintf(brainDumpPromptTemplate, transcript)
}

// dailyReflectionPromptTemplate asks for a short first-person paragraph
// synthesizing whichever guided-prompt answers the user actually gave.
const dailyReflectionPromptTemplate = `You are a warm, concise journal editor. Using only the notes below, write a single first-person paragraph of 2 to 4 sentences reflecting on the day. Do not use section headings, bullet points, or quote the notes verbatim; synthesize them into a short, natural paragraph.

Notes:
%s
`

// buildDailyReflectionPrompt concatenates whichever of the four prompt-answer
// fields are non-empty, in the fixed order spec.md §3 lists them, and
// prefers the user's typed/edited text over the raw per-prompt audio
// transcript when both are present.
func buildDailyReflectionPrompt(answers datastore.JSONMap[datastore.PromptAnswer]) string {
	var b strings.Builder
	for _, key := range datastore.PromptKeys {
		answer, ok := answers[key]
		if !ok {
			continue
		}
		text := answer.Text
		if text == "" {
			text = answer.ExtractedText
		}
		if text == "" {
			text = answer.AudioTranscript
		}
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", key, text)
	}
	return fmt.Sprintf(dailyReflectionPromptTemplate, b.String())
}
