// Package transcriber runs speech-to-text over a WAV file, single-shot or
// chunked, detecting and re-trying hallucinated chunks and merging
// overlapping chunk output back into one transcript (spec.md §4.C).
package transcriber

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jrnl/voicejournal/internal/audiotools"
	"github.com/jrnl/voicejournal/internal/errors"
)

// Default tuning constants (spec.md §4.C).
const (
	splitOverlapSeconds = 5.0

	primaryBeamSize  = 5
	primaryBestOf    = 5
	entropyThreshold = 2.4

	conservativeBeamSize = 3
	conservativeBestOf   = 3
	conservativeThreads  = 2
	conservativeTemp     = 0.0

	vadThresholdPrimary      = 0.5
	vadThresholdConservative = 0.6
	vadMinSpeechMS           = 250
	vadMinSilenceMS          = 100
)

// Config resolves the whisper invocation for one entry. ModelPath, when
// set, overrides the name-based lookup under ModelsDir, the same
// explicit-override-wins convention the teacher's birdnet package uses
// for its own TensorFlow Lite model resolution.
type Config struct {
	WhisperPath  string
	ModelName    string
	ModelPath    string
	ModelsDir    string
	Language     string // "auto" unless overridden
	PrimingText  string
	VADEnabled   bool
	VADModelPath string

	// ChunkSeconds is C: the threshold deciding single-shot vs chunked
	// transcription, and the window Split is called with when chunking.
	ChunkSeconds float64
}

// resolvedModelPath returns the explicit override if set, else the
// conventional ggml model file name under ModelsDir.
func (c Config) resolvedModelPath() string {
	if c.ModelPath != "" {
		return c.ModelPath
	}
	return filepath.Join(c.ModelsDir, "ggml-"+c.ModelName+".bin")
}

func (c Config) language() string {
	if c.Language != "" {
		return c.Language
	}
	return "auto"
}

// Transcriber drives whisper invocations and chunk assembly for one entry.
type Transcriber struct {
	Config Config
	Audio  audiotools.Tools
}

// New builds a Transcriber from a resolved Config.
func New(cfg Config, audio audiotools.Tools) *Transcriber {
	return &Transcriber{Config: cfg, Audio: audio}
}

// ChunkOutcome reports what happened to a single chunk, so the orchestrator
// can decide whether to retry and so the reviewer-facing report can list
// which chunks were suspect.
type ChunkOutcome struct {
	Index         int
	Text          string
	Hallucination *HallucinationResult
	Retried       bool
}

// RegisterProcess lets the caller (the job runner) insert a freshly
// started whisper process into its cancellation-aware process table before
// blocking on its completion, mirroring internal/audiotools.Handle's
// contract for ffmpeg.
type RegisterProcess func(*audiotools.Handle)

// Transcribe is the public operation: transcribe(wav, duration, tempDir,
// opts) -> text. Below the configured chunk threshold it runs a single
// transcribe-one call; above it, it splits, transcribes each chunk
// sequentially (retrying flagged chunks conservatively), and merges the
// results, appending an annotated block for any chunk that remained
// suspect after retry.
func (t *Transcriber) Transcribe(ctx context.Context, wavPath string, duration float64, tempDir string, register RegisterProcess) (string, error) {
	if duration <= t.Config.ChunkSeconds {
		text, err := t.transcribeOne(ctx, wavPath, tempDir, false, register)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(text), nil
	}

	segments, err := t.Audio.Split(ctx, wavPath, tempDir, duration, t.Config.ChunkSeconds, splitOverlapSeconds)
	if err != nil {
		return "", err
	}

	outcomes := make([]ChunkOutcome, 0, len(segments))
	for _, seg := range segments {
		outcome, err := t.transcribeChunk(ctx, seg, register)
		if err != nil {
			return "", err
		}
		outcomes = append(outcomes, outcome)
	}

	texts := make([]string, len(outcomes))
	for i, o := range outcomes {
		texts[i] = o.Text
	}
	merged := MergeChunks(texts, splitOverlapSeconds)

	var suspect []ChunkOutcome
	for _, o := range outcomes {
		if o.Hallucination != nil {
			suspect = append(suspect, o)
		}
	}
	if len(suspect) == 0 {
		return merged, nil
	}
	return merged + "\n\n" + renderSuspectReport(suspect), nil
}

// transcribeChunk runs transcribe-one on a chunk, and on a hallucination
// flag re-runs transcribe-conservative. If the conservative pass comes
// back clean, its text replaces the primary one in the merge and the chunk
// is not reported. If it is flagged too, the primary text is merged and
// the chunk is marked suspect with the primary pass's reason. The report
// lists each suspect chunk's index and reason only; it does not include
// the conservative pass's text.
func (t *Transcriber) transcribeChunk(ctx context.Context, seg audiotools.Segment, register RegisterProcess) (ChunkOutcome, error) {
	tempDir := filepath.Dir(seg.Path)
	primaryText, err := t.transcribeOne(ctx, seg.Path, tempDir, false, register)
	if err != nil {
		return ChunkOutcome{}, err
	}

	chunkDuration := seg.End - seg.Start
	result := DetectHallucination(primaryText, chunkDuration)
	if !result.Flagged {
		return ChunkOutcome{Index: seg.Index, Text: primaryText}, nil
	}

	retryText, err := t.transcribeOne(ctx, seg.Path, tempDir, true, register)
	if err != nil {
		return ChunkOutcome{}, err
	}
	retryResult := DetectHallucination(retryText, chunkDuration)

	outcome := ChunkOutcome{Index: seg.Index, Retried: true, Hallucination: &result}
	if retryResult.Flagged {
		// Still suspect: keep the primary text as the merge candidate
		// rather than the shorter conservative pass, which tends to
		// drop more words.
		outcome.Text = primaryText
	} else {
		outcome.Text = retryText
		outcome.Hallucination = nil
	}
	return outcome, nil
}

// transcribeOne spawns the speech tool with the parameter set spec.md
// §4.C requires for the primary pass, or the conservative retry pass when
// conservative is true, then reads and deletes the companion .txt file.
func (t *Transcriber) transcribeOne(ctx context.Context, wavPath, tempDir string, conservative bool, register RegisterProcess) (string, error) {
	outPrefix := filepath.Join(tempDir, strings.TrimSuffix(filepath.Base(wavPath), filepath.Ext(wavPath)))
	if conservative {
		outPrefix += "-conservative"
	}

	args := t.buildArgs(wavPath, outPrefix, conservative)
	cmd := exec.CommandContext(ctx, t.Config.WhisperPath, args...)

	handle, err := audiotools.NewHandle("whisper", cmd)
	if err != nil {
		return "", err
	}
	if register != nil {
		register(handle)
	}
	if err := handle.Wait(); err != nil {
		return "", err
	}

	txtPath := outPrefix + ".txt"
	raw, err := os.ReadFile(txtPath)
	if err != nil {
		return "", errors.New(err).
			Component("transcriber").
			Category(errors.CategoryTranscription).
			Context("operation", "read-companion-txt").
			Context("path", txtPath).
			Build()
	}
	_ = os.Remove(txtPath)

	return strings.TrimSpace(string(raw)), nil
}

// buildArgs assembles the whisper CLI flags for either pass.
func (t *Transcriber) buildArgs(wavPath, outPrefix string, conservative bool) []string {
	args := []string{
		"--model", t.Config.resolvedModelPath(),
		"--file", wavPath,
		"--language", t.Config.language(),
		"--no-timestamps",
		"--output-prefix", outPrefix,
		"--fresh-context",
	}

	if conservative {
		args = append(args,
			"--beam-size", strconv.Itoa(conservativeBeamSize),
			"--best-of", strconv.Itoa(conservativeBestOf),
			"--temperature", strconv.FormatFloat(conservativeTemp, 'f', -1, 64),
			"--threads", strconv.Itoa(conservativeThreads),
		)
	} else {
		args = append(args,
			"--beam-size", strconv.Itoa(primaryBeamSize),
			"--best-of", strconv.Itoa(primaryBestOf),
			"--entropy-threshold", strconv.FormatFloat(entropyThreshold, 'f', -1, 64),
			"--no-temperature-fallback",
		)
	}

	if t.Config.VADEnabled {
		threshold := vadThresholdPrimary
		if conservative {
			threshold = vadThresholdConservative
		}
		args = append(args,
			"--vad",
			"--vad-model", t.Config.VADModelPath,
			"--vad-threshold", strconv.FormatFloat(threshold, 'f', 2, 64),
			"--vad-min-speech-ms", strconv.Itoa(vadMinSpeechMS),
			"--vad-min-silence-ms", strconv.Itoa(vadMinSilenceMS),
		)
	}

	if t.Config.PrimingText != "" {
		args = append(args, "--initial-prompt", t.Config.PrimingText, "--carry-initial-prompt")
	}

	return args
}

func renderSuspectReport(suspect []ChunkOutcome) string {
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("The following chunks triggered the hallucination detector; their primary transcription is kept above, but review is recommended.\n\n")
	for _, o := range suspect {
		b.WriteString("Chunk ")
		b.WriteString(strconv.Itoa(o.Index))
		b.WriteString(": ")
		b.WriteString(o.Hallucination.Reason)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
