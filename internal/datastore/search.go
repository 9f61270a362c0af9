// search.go implements full-text search over entries backed by the
// entries_fts virtual table (see sqlite.go), with stage-class and kind
// filters plus offset/limit pagination (spec.md §4.A).
package datastore

import (
	"context"
	"strings"

	"github.com/jrnl/voicejournal/internal/errors"
	"gorm.io/gorm"
)

// Stage classes used by search filtering (spec.md §4.A).
const (
	StageClassActive = "active"
	StageClassDone   = "done"
	StageClassFailed = "failed"
)

// stagesForClass expands a stage-class filter into concrete stage values.
func stagesForClass(class string) []string {
	switch class {
	case StageClassDone:
		return []string{StageCompleted}
	case StageClassFailed:
		return []string{StageFailed, StageCancelled}
	case StageClassActive:
		return []string{
			StagePending, StageQueued, StageNormalizing, StageTranscribing,
			StageAwaitingReview, StageAwaitingPrompts, StageGenerating,
			StageWriting, StageCancelRequested,
		}
	default:
		return nil
	}
}

// SearchFilters narrows a search beyond the bare term.
type SearchFilters struct {
	Kind       string // "" = any
	StageClass string // "" = any; active | done | failed
	DateFrom   string // YYYY-MM-DD, inclusive
	DateTo     string // YYYY-MM-DD, inclusive
}

// SearchResult is one page of matches plus pagination metadata.
type SearchResult struct {
	Entries []Entry
	Total   int64
	HasMore bool
}

// buildFTSQuery splits the bare term on whitespace and joins the pieces
// with AND, appending a prefix wildcard to each token (spec.md §4.A: "a
// bare term (prefix match, whitespace-split, AND)").
func buildFTSQuery(term string) string {
	fields := strings.Fields(term)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		quoted = append(quoted, `"`+f+`"*`)
	}
	return strings.Join(quoted, " AND ")
}

// Search runs a full-text search with optional filters, returning a page of
// matching entries ordered by relevance (FTS5 rank) when a term is given,
// or by recency when the term is empty and only filters apply.
func (s *Store) Search(ctx context.Context, term string, filters SearchFilters, limit, offset int) (*SearchResult, error) {
	db := s.DB.WithContext(ctx).Model(&Entry{})

	if term = strings.TrimSpace(term); term != "" {
		ftsQuery := buildFTSQuery(term)
		db = db.Joins("JOIN entries_fts ON entries_fts.rowid = entries.rowid").
			Where("entries_fts MATCH ?", ftsQuery).
			Order("rank")
	} else {
		db = db.Order("created_at DESC")
	}

	if filters.Kind != "" {
		db = db.Where("entries.kind = ?", filters.Kind)
	}
	if stages := stagesForClass(filters.StageClass); stages != nil {
		db = db.Where("entries.stage IN ?", stages)
	}
	if filters.DateFrom != "" {
		db = db.Where("entries.entry_date >= ?", filters.DateFrom)
	}
	if filters.DateTo != "" {
		db = db.Where("entries.entry_date <= ?", filters.DateTo)
	}

	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "search_count").
			Build()
	}

	var entries []Entry
	if err := db.Limit(limit).Offset(offset).Find(&entries).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "search_find").
			Build()
	}

	return &SearchResult{
		Entries: entries,
		Total:   total,
		HasMore: int64(offset+len(entries)) < total,
	}, nil
}
