// Package conf loads and persists the journal server's process-wide
// settings. Values come from an embedded default YAML, an on-disk config
// file, and environment variable overrides, in that order of increasing
// precedence, following the layering the teacher's own conf package uses.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings is the typed view over the process's ambient bootstrap
// configuration: where things live and how the process logs, not the
// user-editable journal settings (vault root aside, those live in the
// datastore's settings table — see internal/datastore.Settings — because
// they must be readable and writable through the HTTP facade before a
// config-file round trip). Fields are needed to get the process up far
// enough to open the database in the first place.
type Settings struct {
	Server struct {
		ListenAddr string // e.g. ":8080"
		VaultRoot  string // filesystem root of the Obsidian-style vault
		DBPath     string // path to the SQLite database file
	}

	Log struct {
		Level      string
		FilePath   string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Compress   bool
		Console    bool
	}

	Tools struct {
		FFmpegPath  string
		FFprobePath string
		WhisperPath string
		ModelsDir   string
	}

	Runner struct {
		TickInterval     int // seconds between queue polls
		HeartbeatTimeout int // seconds, default 300
	}

	Debug bool
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
	once             sync.Once
)

// Load reads configuration from the embedded defaults, an on-disk config
// file (created with defaults if absent), and environment variables, then
// stores the result as the process-wide singleton.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	configPaths, err := DefaultConfigPaths()
	if err != nil {
		return nil, fmt.Errorf("determine config paths: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	for _, p := range configPaths {
		viper.AddConfigPath(p)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := createDefaultConfig(configPaths[0]); err != nil {
				return nil, err
			}
		} else {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := bindEnvVars(); err != nil {
		return nil, fmt.Errorf("binding environment overrides: %w", err)
	}

	s := &Settings{}
	if err := viper.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	settingsInstance = s
	return s, nil
}

// createDefaultConfig writes the embedded default config.yaml to disk so
// the user has something to edit, then loads it into viper.
func createDefaultConfig(dir string) error {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("read embedded default config: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return viper.ReadInConfig()
}

// DefaultConfigPaths returns, in priority order, the directories searched
// for config.yaml: $JOURNAL_CONFIG_DIR, then ~/.config/journal, then ".".
func DefaultConfigPaths() ([]string, error) {
	var paths []string
	if envDir := os.Getenv("JOURNAL_CONFIG_DIR"); envDir != "" {
		paths = append(paths, envDir)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		paths = append(paths, filepath.Join(home, ".config", "journal"))
	}
	paths = append(paths, ".")
	return paths, nil
}

// Get returns the process-wide settings, loading them with defaults if
// this is the first call.
func Get() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				settingsMutex.Lock()
				settingsInstance = &Settings{}
				settingsMutex.Unlock()
			}
		}
	})
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Update replaces the in-memory settings and persists them to the on-disk
// config file. Callers (the HTTP facade) are responsible for validating
// field-level constraints before calling Update.
func Update(s *Settings) error {
	settingsMutex.Lock()
	settingsInstance = s
	settingsMutex.Unlock()

	configPath := viper.ConfigFileUsed()
	if configPath == "" {
		return fmt.Errorf("update settings: no config file loaded")
	}
	return UpdateYAMLConfig(configPath, s)
}
