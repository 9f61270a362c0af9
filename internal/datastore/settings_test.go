package datastore

import (
	"context"
	"testing"

	"github.com/jrnl/voicejournal/internal/conf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSettingsSeededWritesDefaultsOnce(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	bootstrap := &conf.Settings{}
	bootstrap.Server.VaultRoot = "/vault"

	require.NoError(t, store.EnsureSettingsSeeded(ctx, bootstrap))

	got, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/vault", got.VaultRoot)
	assert.Equal(t, "base.en", got.WhisperModel)
	assert.Equal(t, 60.0, got.ChunkSeconds)
	assert.True(t, got.KeepAudio)

	require.NoError(t, store.UpdateSettings(ctx, &Settings{VaultRoot: "/changed", ChunkSeconds: 90}))
	require.NoError(t, store.EnsureSettingsSeeded(ctx, bootstrap))

	got, err = store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/changed", got.VaultRoot, "re-seeding must not clobber an existing value")
}

func TestUpdateSettingsUpsertsAllFields(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	want := Settings{
		VaultRoot:        "/vault",
		WhisperModel:     "small.en",
		WhisperModelPath: "/models/small.en.bin",
		PrimingText:      "a personal voice journal",
		LLMBaseURL:       "http://localhost:11434",
		LLMModel:         "llama3",
		KeepAudio:        false,
		DefaultTimezone:  "America/New_York",
		UserName:         "Alex",
		VADEnabled:       true,
		VADModelPath:     "/models/silero_vad.onnx",
		ChunkSeconds:     45.5,
	}
	require.NoError(t, store.UpdateSettings(ctx, &want))

	got, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}
