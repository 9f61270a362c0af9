package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetViper gives each test a clean viper instance so config file and
// env var state from one test doesn't leak into the next.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadCreatesDefaultConfigWhenMissing(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	t.Setenv("JOURNAL_CONFIG_DIR", dir)

	s, err := Load()
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.Equal(t, ":8080", s.Server.ListenAddr)
	assert.Equal(t, "ffmpeg", s.Tools.FFmpegPath)
	assert.Equal(t, 300, s.Runner.HeartbeatTimeout)

	_, statErr := os.Stat(filepath.Join(dir, "config.yaml"))
	assert.NoError(t, statErr, "expected config.yaml to be written to the config dir")
}

func TestLoadHonorsEnvOverride(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	t.Setenv("JOURNAL_CONFIG_DIR", dir)
	t.Setenv("JOURNAL_WHISPER_PATH", "/opt/whisper/bin/whisper")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/opt/whisper/bin/whisper", s.Tools.WhisperPath)
}

func TestDefaultConfigPathsPrefersEnvDir(t *testing.T) {
	t.Setenv("JOURNAL_CONFIG_DIR", "/tmp/custom-journal-config")

	paths, err := DefaultConfigPaths()
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	assert.Equal(t, "/tmp/custom-journal-config", paths[0])
}

func TestUpdatePersistsAndPreservesComments(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	t.Setenv("JOURNAL_CONFIG_DIR", dir)

	s, err := Load()
	require.NoError(t, err)

	configPath := filepath.Join(dir, "config.yaml")
	original, err := os.ReadFile(configPath)
	require.NoError(t, err)
	require.Contains(t, string(original), "#")

	s.Runner.TickInterval = 10
	require.NoError(t, Update(s))

	updated, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(updated), "tickinterval: 10")
}
