// env.go - Environment variable configuration and validation for the journal server
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"server.listenaddr", "JOURNAL_LISTEN_ADDR", nil},
		{"server.vaultroot", "JOURNAL_VAULT_ROOT", ValidatePath},
		{"server.dbpath", "JOURNAL_DB_PATH", ValidatePath},

		{"log.level", "JOURNAL_LOG_LEVEL", ValidateLogLevel},
		{"log.filepath", "JOURNAL_LOG_FILE", nil},

		{"tools.ffmpegpath", "JOURNAL_FFMPEG_PATH", nil},
		{"tools.ffprobepath", "JOURNAL_FFPROBE_PATH", nil},
		{"tools.whisperpath", "JOURNAL_WHISPER_PATH", nil},
		{"tools.modelsdir", "JOURNAL_MODELS_DIR", ValidatePath},

		{"runner.tickinterval", "JOURNAL_TICK_INTERVAL", ValidatePositiveInt},
		{"runner.heartbeattimeout", "JOURNAL_HEARTBEAT_TIMEOUT", ValidatePositiveInt},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	bindings := getEnvBindings()
	var warnings []string

	for _, binding := range bindings {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// Validation helpers. Exported because the HTTP facade's PATCH /settings
// handler (internal/api) reuses them to validate the settings-table fields
// it accepts (vault root is a path, the LLM base URL is a URL, chunk
// seconds must be a positive float), instead of duplicating the same
// checks there.

func ValidatePath(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("path must not be empty")
	}
	return nil
}

func ValidateLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error, got %q", value)
	}
}

func ValidateURL(value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid URL: %q", value)
	}
	return nil
}

func ValidatePositiveFloat(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid number: %w", err)
	}
	if f <= 0 {
		return fmt.Errorf("must be positive, got %g", f)
	}
	return nil
}

func ValidatePositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}
