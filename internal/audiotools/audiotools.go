// Package audiotools wraps the ffprobe/ffmpeg invocations the pipeline
// needs: duration probing, normalization to a canonical PCM WAV, splitting
// long audio into overlapping chunks, and deletion (spec.md §4.B).
package audiotools

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jrnl/voicejournal/internal/errors"
)

// Canonical output format: single channel, 16 kHz, 16-bit PCM.
const (
	canonicalChannels   = "1"
	canonicalSampleRate = "16000"
	canonicalSampleFmt  = "s16"
)

// maxSegments is the safety ceiling on Split's output (spec.md §4.B).
const maxSegments = 100

// Tools holds the resolved paths of the external binaries this package
// shells out to.
type Tools struct {
	FFmpegPath  string
	FFprobePath string
}

// Segment is one entry in Split's ordered output.
type Segment struct {
	Index int
	Path  string
	Start float64
	End   float64
}

// Probe runs ffprobe against path and returns the media duration in
// seconds, failing if the tool's output cannot be parsed as a float.
func (t Tools) Probe(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, t.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, errors.New(err).
			Component("audiotools").
			Category(errors.CategoryAudio).
			Context("operation", "probe").
			Context("path", path).
			Build()
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, errors.New(err).
			Component("audiotools").
			Category(errors.CategoryAudio).
			Context("operation", "probe-parse-duration").
			Context("path", path).
			Context("output", string(out)).
			Build()
	}
	return duration, nil
}

// Normalize starts an ffmpeg resample of src into dst as canonical mono
// 16 kHz 16-bit PCM WAV and returns immediately with a handle the caller
// (the job runner) registers in its process table before calling Wait.
// ffmpeg's own -y plus writing to dst only on success makes the
// conversion atomic from the caller's perspective.
func (t Tools) Normalize(ctx context.Context, src, dst string) (*Handle, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, errors.New(err).
			Component("audiotools").
			Category(errors.CategoryFileIO).
			Context("operation", "create-normalize-dir").
			Context("path", filepath.Dir(dst)).
			Build()
	}

	cmd := exec.CommandContext(ctx, t.FFmpegPath,
		"-y",
		"-i", src,
		"-ac", canonicalChannels,
		"-ar", canonicalSampleRate,
		"-sample_fmt", canonicalSampleFmt,
		dst,
	)
	return NewHandle("ffmpeg-normalize", cmd)
}

// Split cuts wavPath into an ordered sequence of overlapping segments of
// window seconds with overlap seconds of overlap between consecutive
// segments, writing each to tempDir. Segment i covers
// [i*(window-overlap), min(i*(window-overlap)+window, totalDuration)]; the
// last segment is shorter when the audio ends mid-window. A run producing
// more than maxSegments segments fails fatally rather than silently
// truncating.
func (t Tools) Split(ctx context.Context, wavPath, tempDir string, totalDuration, window, overlap float64) ([]Segment, error) {
	bounds, err := planSegments(totalDuration, window, overlap)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, errors.New(err).
			Component("audiotools").
			Category(errors.CategoryFileIO).
			Context("operation", "create-split-dir").
			Context("path", tempDir).
			Build()
	}

	segments := make([]Segment, 0, len(bounds))
	for i, b := range bounds {
		path := filepath.Join(tempDir, fmt.Sprintf("chunk_%03d.wav", i))

		cmd := exec.CommandContext(ctx, t.FFmpegPath,
			"-y",
			"-ss", strconv.FormatFloat(b.start, 'f', 3, 64),
			"-i", wavPath,
			"-t", strconv.FormatFloat(b.end-b.start, 'f', 3, 64),
			"-ac", canonicalChannels,
			"-ar", canonicalSampleRate,
			"-sample_fmt", canonicalSampleFmt,
			path,
		)
		// Sequential, not concurrent: chunked transcription itself runs
		// chunk by chunk to bound memory, so there is no benefit to
		// extracting segments ahead of need.
		if err := cmd.Run(); err != nil {
			return nil, errors.New(err).
				Component("audiotools").
				Category(errors.CategoryAudio).
				Context("operation", "split-segment").
				Context("index", i).
				Build()
		}

		segments = append(segments, Segment{Index: i, Path: path, Start: b.start, End: b.end})
	}

	return segments, nil
}

type segmentBounds struct {
	start, end float64
}

// planSegments computes the [start, end) windows Split will extract,
// without touching the filesystem, so the chunking math (spec.md §4.B) can
// be tested independently of ffmpeg. Segment i covers
// [i*(window-overlap), min(i*(window-overlap)+window, totalDuration)].
func planSegments(totalDuration, window, overlap float64) ([]segmentBounds, error) {
	step := window - overlap
	if step <= 0 {
		return nil, errors.Newf("audiotools: split window (%v) must exceed overlap (%v)", window, overlap).
			Component("audiotools").
			Category(errors.CategoryValidation).
			Build()
	}

	count := int(math.Ceil(totalDuration / step))
	if count < 1 {
		count = 1
	}
	if count > maxSegments {
		return nil, errors.Newf("audiotools: split would produce %d segments, exceeding the %d limit", count, maxSegments).
			Component("audiotools").
			Category(errors.CategoryValidation).
			Context("total_duration", totalDuration).
			Context("window", window).
			Build()
	}

	bounds := make([]segmentBounds, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * step
		if start >= totalDuration {
			break
		}
		end := math.Min(start+window, totalDuration)
		bounds = append(bounds, segmentBounds{start: start, end: end})
	}
	return bounds, nil
}

// Delete removes an audio file; a missing file is not an error.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.New(err).
			Component("audiotools").
			Category(errors.CategoryFileIO).
			Context("operation", "delete").
			Context("path", path).
			Build()
	}
	return nil
}
