// store.go implements Store's entry CRUD, queue queries, and lease CAS.
package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/jrnl/voicejournal/internal/errors"
	"github.com/jrnl/voicejournal/internal/idgen"
	"gorm.io/gorm"
)

// CreateEntry assigns a fresh id (regenerating on the astronomically rare
// primary-key collision) and inserts the entry.
func (s *Store) CreateEntry(ctx context.Context, e *Entry) error {
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.Stage == "" {
		e.Stage = StagePending
	}

	const maxAttempts = 5
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		e.ID = idgen.New()
		err := s.DB.WithContext(ctx).Create(e).Error
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return errors.New(lastErr).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", "create_entry").
		Build()
}

// GetEntry fetches a single entry by id.
func (s *Store) GetEntry(ctx context.Context, id string) (*Entry, error) {
	var e Entry
	err := s.DB.WithContext(ctx).First(&e, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_entry").
			Context("id", id).
			Build()
	}
	return &e, nil
}

// ListRecent returns the most recently created entries, newest first.
func (s *Store) ListRecent(ctx context.Context, limit, offset int) ([]Entry, error) {
	var entries []Entry
	err := s.DB.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "list_recent").
			Build()
	}
	return entries, nil
}

// ListQueued returns queued entries oldest first, for the runner's pick-next
// step.
func (s *Store) ListQueued(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := s.DB.WithContext(ctx).
		Where("stage = ?", StageQueued).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "list_queued").
			Build()
	}
	return entries, nil
}

// ListStuck returns entries in a running stage whose heartbeat is older
// than staleAfter, for the runner's recover-stuck sweep.
func (s *Store) ListStuck(ctx context.Context, staleAfter time.Duration) ([]Entry, error) {
	cutoff := time.Now().UTC().Add(-staleAfter)
	var entries []Entry
	err := s.DB.WithContext(ctx).
		Where("stage IN ? AND (heartbeat_at IS NULL OR heartbeat_at < ?)", RunningStages, cutoff).
		Find(&entries).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "list_stuck").
			Build()
	}
	return entries, nil
}

// AcquireLease performs a CAS-style lease acquisition: it only claims the
// entry if it is currently unlocked or already leased by workerID and its
// stage is still queued. Returns true if the caller now holds the lease.
func (s *Store) AcquireLease(ctx context.Context, id, workerID string) (bool, error) {
	now := time.Now().UTC()
	result := s.DB.WithContext(ctx).
		Model(&Entry{}).
		Where("id = ? AND stage = ? AND (locked_by = '' OR locked_by = ?)", id, StageQueued, workerID).
		Updates(map[string]any{
			"locked_by":    workerID,
			"locked_at":    now,
			"heartbeat_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "acquire_lease").
			Context("id", id).
			Build()
	}
	return result.RowsAffected > 0, nil
}

// ReleaseLease clears the worker lease on an entry, typically when parking
// at awaiting_review/awaiting_prompts or after a terminal transition.
func (s *Store) ReleaseLease(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).
		Model(&Entry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"locked_by":    "",
			"locked_at":    nil,
			"updated_at":   time.Now().UTC(),
		}).Error
}

// Heartbeat refreshes heartbeat_at for an entry the worker is actively
// processing; called before each long-running call within a stage.
func (s *Store) Heartbeat(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).
		Model(&Entry{}).
		Where("id = ?", id).
		Update("heartbeat_at", time.Now().UTC()).Error
}

// UpdateEntry applies a partial update, always stamping updated_at.
// Callers pass only the fields that change (spec.md §4.A "partial update by
// id").
func (s *Store) UpdateEntry(ctx context.Context, id string, updates map[string]any) error {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	result := s.DB.WithContext(ctx).Model(&Entry{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "update_entry").
			Context("id", id).
			Build()
	}
	if result.RowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// LockRawTranscript sets raw_transcript and raw_transcript_locked_at in one
// update, refusing to overwrite an already-locked transcript (I1).
func (s *Store) LockRawTranscript(ctx context.Context, id, transcript string) error {
	now := time.Now().UTC()
	result := s.DB.WithContext(ctx).
		Model(&Entry{}).
		Where("id = ? AND raw_transcript_locked_at IS NULL", id).
		Updates(map[string]any{
			"raw_transcript":            transcript,
			"raw_transcript_locked_at":  now,
			"updated_at":                now,
		})
	if result.Error != nil {
		return errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "lock_raw_transcript").
			Context("id", id).
			Build()
	}
	if result.RowsAffected == 0 {
		return ErrTranscriptLocked
	}
	return nil
}

// DeleteEntry removes an entry and its links.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source_id = ? OR target_id = ?", id, id).Delete(&EntryLink{}).Error; err != nil {
			return fmt.Errorf("delete links: %w", err)
		}
		result := tx.Delete(&Entry{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrEntryNotFound
		}
		return nil
	})
}

// AddLink inserts a directed link between two entries.
func (s *Store) AddLink(ctx context.Context, sourceID, targetID, linkType string) error {
	link := &EntryLink{
		SourceID:  sourceID,
		TargetID:  targetID,
		Type:      linkType,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.DB.WithContext(ctx).Create(link).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "add_link").
			Build()
	}
	return nil
}

// RemoveLink deletes a specific directed link.
func (s *Store) RemoveLink(ctx context.Context, sourceID, targetID, linkType string) error {
	result := s.DB.WithContext(ctx).
		Where("source_id = ? AND target_id = ? AND type = ?", sourceID, targetID, linkType).
		Delete(&EntryLink{})
	if result.Error != nil {
		return errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "remove_link").
			Build()
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// ListLinks returns every link touching the given entry, in either
// direction.
func (s *Store) ListLinks(ctx context.Context, entryID string) ([]EntryLink, error) {
	var links []EntryLink
	err := s.DB.WithContext(ctx).
		Where("source_id = ? OR target_id = ?", entryID, entryID).
		Order("created_at ASC").
		Find(&links).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "list_links").
			Build()
	}
	return links, nil
}
