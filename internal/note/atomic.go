package note

import (
	"os"
	"path/filepath"
	"time"

	"github.com/jrnl/voicejournal/internal/errors"
)

// atomicWrite writes content to path via a sibling temp file and an atomic
// rename, grounded on the teacher's own temp-file-then-rename idiom for
// rewriting files in place (internal/conf's UpdateYAMLConfig). It returns
// the file's post-rename modification time, matching writeNote's contract
// that the returned mtime is the file's mtime after the rename, not before.
func atomicWrite(path string, content []byte) (time.Time, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return time.Time{}, errors.New(err).
			Component("note").
			Category(errors.CategoryFileIO).
			Context("operation", "mkdir").
			Context("dir", dir).
			Build()
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return time.Time{}, errors.New(err).
			Component("note").
			Category(errors.CategoryFileIO).
			Context("operation", "create_temp").
			Build()
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return time.Time{}, errors.New(err).
			Component("note").
			Category(errors.CategoryFileIO).
			Context("operation", "write_temp").
			Build()
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return time.Time{}, errors.New(err).
			Component("note").
			Category(errors.CategoryFileIO).
			Context("operation", "sync_temp").
			Build()
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return time.Time{}, errors.New(err).
			Component("note").
			Category(errors.CategoryFileIO).
			Context("operation", "close_temp").
			Build()
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return time.Time{}, errors.New(err).
			Component("note").
			Category(errors.CategoryFileIO).
			Context("operation", "rename").
			Context("path", path).
			Build()
	}

	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, errors.New(err).
			Component("note").
			Category(errors.CategoryFileIO).
			Context("operation", "stat_after_rename").
			Context("path", path).
			Build()
	}
	return info.ModTime(), nil
}
