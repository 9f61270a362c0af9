// model.go defines the persisted data model for the journal pipeline.
package datastore

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Entry kinds (spec.md §3).
const (
	KindBrainDump       = "brain-dump"
	KindDailyReflection = "daily-reflection"
	KindQuickNote       = "quick-note"
)

// Stages (spec.md §4.F state machine).
const (
	StagePending         = "pending"
	StageQueued          = "queued"
	StageNormalizing     = "normalizing"
	StageTranscribing    = "transcribing"
	StageAwaitingReview  = "awaiting_review"
	StageAwaitingPrompts = "awaiting_prompts"
	StageGenerating      = "generating"
	StageWriting         = "writing"
	StageCompleted       = "completed"
	StageFailed          = "failed"
	StageCancelRequested = "cancel_requested"
	StageCancelled       = "cancelled"
)

// RunningStages are the stages the worker actively drives; used by the
// stuck-entry sweep (Store.ListStuck).
var RunningStages = []string{
	StageNormalizing, StageTranscribing, StageGenerating, StageWriting,
}

// PromptKeys are the four daily-reflection guided prompts, in the fixed
// order the note writer renders them.
var PromptKeys = []string{"gratitude", "accomplishments", "challenges", "tomorrow"}

// PromptAnswer holds one guided-prompt answer (spec.md §3).
type PromptAnswer struct {
	Text            string `json:"text"`
	ExtractedText   string `json:"extractedText,omitempty"`
	AudioTranscript string `json:"audioTranscript,omitempty"`
}

// JSONMap is a generic string-keyed JSON column, used for PromptAnswers and
// GeneratedSections. GORM has no native map/JSON column type for SQLite, so
// it round-trips through database/sql's Scanner/Valuer like any hand-rolled
// JSON column in the ecosystem.
type JSONMap[V any] map[string]V

// Value implements driver.Valuer.
func (m JSONMap[V]) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap[V]) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("datastore: unsupported type for JSONMap scan")
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	out := make(JSONMap[V])
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// Entry is the central pipeline entity (spec.md §3).
type Entry struct {
	ID        string    `gorm:"primaryKey;size:16"`
	CreatedAt time.Time `gorm:"index;not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Timezone  string `gorm:"size:64;not null"`
	EntryDate string `gorm:"size:10;index;not null"` // YYYY-MM-DD

	Kind string `gorm:"size:32;index;not null"`

	Stage        string `gorm:"size:32;index;not null"`
	StageMessage string `gorm:"type:text"`
	ErrorMessage string `gorm:"type:text"`

	LockedBy    string     `gorm:"size:64;index"`
	LockedAt    *time.Time
	HeartbeatAt *time.Time `gorm:"index"`

	CancelRequested bool `gorm:"not null;default:false"`

	AudioPath           string `gorm:"type:text"` // vault-relative, original upload
	NormalizedAudioPath string `gorm:"type:text"` // vault-relative, canonical WAV
	AudioDurationSec    float64

	RawTranscript          string `gorm:"type:text"`
	RawTranscriptLockedAt  *time.Time
	EditedTranscript       string `gorm:"type:text"`

	PromptAnswers     JSONMap[PromptAnswer] `gorm:"type:text"`
	GeneratedSections JSONMap[string]       `gorm:"type:text"`

	NotePath  string `gorm:"type:text"`
	NoteMtime *time.Time
}

// TableName pins the GORM table name explicitly, following the teacher's
// convention of not relying on pluralization for core tables.
func (Entry) TableName() string { return "entries" }

// EntryLink is a directed, typed edge between two entries (spec.md §3).
type EntryLink struct {
	ID        uint      `gorm:"primaryKey"`
	SourceID  string    `gorm:"size:16;index:idx_links_source;not null"`
	TargetID  string    `gorm:"size:16;index:idx_links_target;not null"`
	Type      string    `gorm:"size:16;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (EntryLink) TableName() string { return "entry_links" }

// Link relation types (spec.md §3).
const (
	LinkRelated   = "related"
	LinkFollowup  = "followup"
	LinkReference = "reference"
)

// SettingRow is one key/value pair in the process-wide, HTTP-updatable
// settings table (spec.md §3's Settings entity — distinct from
// internal/conf's ambient bootstrap config; see DESIGN.md).
type SettingRow struct {
	Key   string `gorm:"primaryKey;size:64"`
	Value string `gorm:"type:text"`
}

func (SettingRow) TableName() string { return "settings" }
