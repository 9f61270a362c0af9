package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEnvLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"debug", "debug", false},
		{"info", "info", false},
		{"warn", "warn", false},
		{"error", "error", false},
		{"mixed case", "INFO", false},
		{"invalid", "verbose", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLogLevel(tt.value)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEnvURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid http", "http://localhost:11434", false},
		{"valid https", "https://example.com/api", false},
		{"missing scheme", "localhost:11434", true},
		{"missing host", "http://", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.value)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEnvPositiveFloat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"positive", "600", false},
		{"positive decimal", "60.5", false},
		{"zero", "0", true},
		{"negative", "-10", true},
		{"not a number", "abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositiveFloat(tt.value)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEnvPositiveInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"positive", "5", false},
		{"zero", "0", true},
		{"negative", "-1", true},
		{"not a number", "five", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositiveInt(tt.value)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetEnvBindingsCoversAllSettingsGroups(t *testing.T) {
	t.Parallel()

	bindings := getEnvBindings()
	require.NotEmpty(t, bindings)

	for _, b := range bindings {
		assert.NotEmpty(t, b.ConfigKey)
		assert.NotEmpty(t, b.EnvVar)
	}

	for _, want := range []string{"server", "log.", "tools", "runn"} {
		found := false
		for _, b := range bindings {
			if len(b.ConfigKey) >= len(want) && b.ConfigKey[:len(want)] == want {
				found = true
				break
			}
		}
		assert.True(t, found, "expected a binding with prefix %q", want)
	}
}
