package transcriber

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrnl/voicejournal/internal/audiotools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigResolvedModelPathPrefersExplicitOverride(t *testing.T) {
	t.Parallel()
	cfg := Config{ModelName: "base.en", ModelsDir: "/models", ModelPath: "/custom/my-model.bin"}
	assert.Equal(t, "/custom/my-model.bin", cfg.resolvedModelPath())
}

func TestConfigResolvedModelPathFallsBackToNamedLookup(t *testing.T) {
	t.Parallel()
	cfg := Config{ModelName: "base.en", ModelsDir: "/models"}
	assert.Equal(t, filepath.Join("/models", "ggml-base.en.bin"), cfg.resolvedModelPath())
}

func TestConfigLanguageDefaultsToAuto(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "auto", Config{}.language())
	assert.Equal(t, "fr", Config{Language: "fr"}.language())
}

// writeFakeWhisper writes a shell script standing in for the whisper CLI:
// it reads the --output-prefix flag and writes <prefix>.txt with a fixed
// transcript, letting transcribeOne's companion-file round trip be
// exercised without the real binary.
func writeFakeWhisper(t *testing.T, dir, text string) string {
	t.Helper()
	path := filepath.Join(dir, "whisper")
	script := fmt.Sprintf(`#!/bin/sh
prev=""
for arg in "$@"; do
  if [ "$prev" = "--output-prefix" ]; then
    echo %q > "$arg.txt"
  fi
  prev="$arg"
done
exit 0
`, text)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestTranscribeSingleShotBelowChunkThreshold(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	whisper := writeFakeWhisper(t, dir, "a short clean transcript")

	tr := New(Config{WhisperPath: whisper, ModelName: "base.en", ModelsDir: dir, ChunkSeconds: 60}, audiotools.Tools{})
	wavPath := filepath.Join(dir, "entry.wav")
	require.NoError(t, os.WriteFile(wavPath, []byte("x"), 0o644))

	var registered []*audiotools.Handle
	text, err := tr.Transcribe(context.Background(), wavPath, 30, dir, func(h *audiotools.Handle) {
		registered = append(registered, h)
	})
	require.NoError(t, err)
	assert.Equal(t, "a short clean transcript", text)
	assert.Len(t, registered, 1, "the single-shot pass must register its process handle")
}

func TestBuildArgsPrimaryVsConservative(t *testing.T) {
	t.Parallel()
	tr := New(Config{
		WhisperPath:  "whisper",
		ModelName:    "base.en",
		ModelsDir:    "/models",
		VADEnabled:   true,
		VADModelPath: "/models/vad.onnx",
		PrimingText:  "a personal voice journal",
	}, audiotools.Tools{})

	primary := tr.buildArgs("/tmp/in.wav", "/tmp/out", false)
	assert.Contains(t, primary, "--no-temperature-fallback")
	assert.Contains(t, primary, "--entropy-threshold")
	assert.Contains(t, primary, "--carry-initial-prompt")

	conservative := tr.buildArgs("/tmp/in.wav", "/tmp/out", true)
	assert.Contains(t, conservative, "--temperature")
	assert.NotContains(t, conservative, "--no-temperature-fallback")
}
