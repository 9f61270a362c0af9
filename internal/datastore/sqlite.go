// sqlite.go opens and migrates the journal's SQLite database.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jrnl/voicejournal/internal/conf"
	"github.com/jrnl/voicejournal/internal/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store wraps a GORM connection to the journal database.
type Store struct {
	DB *gorm.DB
}

// pragmas mirror the teacher's sqlite.go tuning: WAL for concurrent
// readers while the worker writes, NORMAL synchronous since WAL already
// protects against corruption on crash, a larger page cache, and temp
// tables in memory.
var pragmas = []string{
	"PRAGMA foreign_keys=ON",
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA cache_size=-4000",
	"PRAGMA temp_store=MEMORY",
}

// Open creates the database directory if needed, opens the SQLite file,
// applies pragmas, migrates the schema, and creates the FTS5 search index.
func Open(dbPath string, debug bool) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryFileIO).
			Context("directory", filepath.Dir(dbPath)).
			Build()
	}

	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: NewGormLogger(200*time.Millisecond, level),
	})
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_path", dbPath).
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_underlying_sqldb").
			Build()
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			return nil, errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("pragma", p).
				Build()
		}
	}

	if err := db.AutoMigrate(&Entry{}, &EntryLink{}, &SettingRow{}); err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "automigrate").
			Build()
	}

	if err := createFTSIndex(db); err != nil {
		return nil, err
	}

	return &Store{DB: db}, nil
}

// OpenFromSettings is a convenience wrapper used by cmd/serve to open the
// store using the ambient bootstrap config.
func OpenFromSettings(s *conf.Settings) (*Store, error) {
	return Open(s.Server.DBPath, s.Debug)
}

// createFTSIndex creates the entries_fts virtual table and the triggers
// that keep it in lockstep with entries.raw_transcript, edited_transcript
// and generated_sections. GORM's AutoMigrate cannot express virtual
// tables, so this is a raw db.Exec step run once at startup; CREATE ...
// IF NOT EXISTS makes it idempotent across restarts.
func createFTSIndex(db *gorm.DB) error {
	stmts := []string{
		`CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			id UNINDEXED,
			raw_transcript,
			edited_transcript,
			generated_sections,
			content='entries',
			content_rowid='rowid'
		)`,
		`CREATE TRIGGER IF NOT EXISTS entries_fts_ai AFTER INSERT ON entries BEGIN
			INSERT INTO entries_fts(rowid, id, raw_transcript, edited_transcript, generated_sections)
			VALUES (new.rowid, new.id, new.raw_transcript, new.edited_transcript, new.generated_sections);
		END`,
		`CREATE TRIGGER IF NOT EXISTS entries_fts_ad AFTER DELETE ON entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, id, raw_transcript, edited_transcript, generated_sections)
			VALUES ('delete', old.rowid, old.id, old.raw_transcript, old.edited_transcript, old.generated_sections);
		END`,
		`CREATE TRIGGER IF NOT EXISTS entries_fts_au AFTER UPDATE ON entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, id, raw_transcript, edited_transcript, generated_sections)
			VALUES ('delete', old.rowid, old.id, old.raw_transcript, old.edited_transcript, old.generated_sections);
			INSERT INTO entries_fts(rowid, id, raw_transcript, edited_transcript, generated_sections)
			VALUES (new.rowid, new.id, new.raw_transcript, new.edited_transcript, new.generated_sections);
		END`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "create_fts_index").
				Build()
		}
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return fmt.Errorf("get underlying sqldb: %w", err)
	}
	return sqlDB.Close()
}
