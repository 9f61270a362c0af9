package securefs

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jrnl/voicejournal/internal/errors"
)

// SecureFS confines every path operation to baseDir, the way the runner
// must never read or write outside the user's configured vault root. Paths
// are validated two ways depending on what they're used for: operations
// that follow the final path component (Stat, ReadFile, WriteFile, Open)
// resolve symlinks and reject any result landing outside baseDir; purely
// informational operations about the final component itself (Lstat,
// Readlink) only check the lexical position of the path, never the target
// a symlink points to.
type SecureFS struct {
	baseDir string
	cache   *PathCache

	mu              sync.RWMutex
	maxReadFileSize int64
}

// New creates a SecureFS rooted at baseDir. baseDir must already exist.
func New(baseDir string) (*SecureFS, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, errors.New(err).Component("securefs").Category(errors.CategoryFileIO).
			Context("path", baseDir).Build()
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.New(err).Component("securefs").Category(errors.CategoryFileIO).
			Context("path", abs).Build()
	}
	if !info.IsDir() {
		return nil, errors.Newf("securefs: base path %q is not a directory", abs).
			Component("securefs").Category(errors.CategoryValidation).Build()
	}

	return &SecureFS{
		baseDir: abs,
		cache:   NewPathCache(),
	}, nil
}

// BaseDir returns the sandbox root.
func (s *SecureFS) BaseDir() string {
	return s.baseDir
}

// Close does nothing and returns nil: SecureFS holds no file descriptors
// of its own, and its cache needs no teardown.
func (s *SecureFS) Close() error {
	return nil
}

// SetMaxReadFileSize bounds ReadFile; 0 (the default) means unlimited.
func (s *SecureFS) SetMaxReadFileSize(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxReadFileSize = n
}

// GetMaxReadFileSize returns the current ReadFile size limit.
func (s *SecureFS) GetMaxReadFileSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxReadFileSize
}

func securityError(path string) error {
	return errors.Newf("security error: path %q escapes the sandbox base directory", path).
		Component("securefs").Category(errors.CategoryPathEscape).Build()
}

// isWithinBaseCached checks containment of an absolute path, resolving
// symlinks of the deepest existing prefix, using the instance cache when
// available.
func (s *SecureFS) isWithinBaseCached(absPath string) (bool, error) {
	if s.cache == nil {
		return IsPathWithinBase(s.baseDir, absPath)
	}
	return IsPathWithinBaseWithCache(s.cache, s.baseDir, absPath)
}

// containsLexically checks containment purely on the cleaned path text,
// without resolving any symlink - used by the informational operations
// (Lstat, Readlink) that must not validate the final component's target.
func (s *SecureFS) containsLexically(absPath string) bool {
	rel, err := filepath.Rel(s.baseDir, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolvePath validates that path, once made absolute and symlink-resolved,
// stays within the sandbox, and returns its absolute form.
func (s *SecureFS) resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
	}
	abs = filepath.Clean(abs)

	within, err := s.isWithinBaseCached(abs)
	if err != nil {
		return "", errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
	}
	if !within {
		return "", securityError(path)
	}
	return abs, nil
}

// RelativePath validates an absolute (or base-relative) path against the
// sandbox and returns its path relative to baseDir.
func (s *SecureFS) RelativePath(path string) (string, error) {
	abs, err := s.resolvePath(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(s.baseDir, abs)
	if err != nil {
		return "", securityError(path)
	}
	return rel, nil
}

// ValidateRelativePath validates a path that is meant to already be
// relative to baseDir (e.g. the vault-relative audio path stored on an
// entry) and returns its absolute form. It works lexically so that it can
// validate paths that don't exist yet, and tolerates a nil cache.
func (s *SecureFS) ValidateRelativePath(relPath string) (string, error) {
	compute := func(p string) (string, error) {
		clean := filepath.Clean(p)
		if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return "", securityError(p)
		}
		return filepath.Join(s.baseDir, clean), nil
	}
	if s.cache == nil {
		return compute(relPath)
	}
	return s.cache.GetValidatePath(relPath, compute)
}

// ParentPath returns the absolute parent directory of path inside the
// sandbox, or "" if path is the sandbox root itself.
func (s *SecureFS) ParentPath(path string) (string, error) {
	abs, err := s.resolvePath(path)
	if err != nil {
		return "", err
	}
	if abs == filepath.Clean(s.baseDir) {
		return "", nil
	}
	return filepath.Dir(abs), nil
}

// Exists reports whether path exists within the sandbox.
func (s *SecureFS) Exists(path string) (bool, error) {
	abs, err := s.resolvePath(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
	}
	return true, nil
}

// ExistsNoErr is a convenience wrapper over Exists that folds every error,
// including sandbox violations, into false.
func (s *SecureFS) ExistsNoErr(path string) bool {
	exists, err := s.Exists(path)
	return err == nil && exists
}

// Stat returns file info for path, following symlinks and validating the
// resolved target stays within the sandbox.
func (s *SecureFS) Stat(path string) (os.FileInfo, error) {
	abs, err := s.resolvePath(path)
	if err != nil {
		return nil, err
	}
	compute := func(p string) (fs.FileInfo, error) { return os.Stat(p) }
	if s.cache == nil {
		return compute(abs)
	}
	info, err := s.cache.GetStat(abs, compute)
	if err != nil {
		return nil, errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
	}
	return info, nil
}

// StatRel stats a path given relative to baseDir.
func (s *SecureFS) StatRel(relPath string) (os.FileInfo, error) {
	abs, err := s.ValidateRelativePath(relPath)
	if err != nil {
		return nil, err
	}
	return s.Stat(abs)
}

// Lstat returns file info about path itself, without following a final
// symlink component, and without validating where that symlink points.
func (s *SecureFS) Lstat(path string) (os.FileInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
	}
	abs = filepath.Clean(abs)
	if !s.containsLexically(abs) {
		return nil, securityError(path)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return nil, errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
	}
	return info, nil
}

// Readlink returns the raw symlink target string for path, without
// resolving or validating that target - the target may point outside the
// sandbox; only Open/OpenFile/Stat enforce that a symlink's target is safe
// to follow.
func (s *SecureFS) Readlink(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
	}
	abs = filepath.Clean(abs)
	if !s.containsLexically(abs) {
		return "", securityError(path)
	}
	target, err := os.Readlink(abs)
	if err != nil {
		return "", errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
	}
	return target, nil
}

// ReadFile reads path within the sandbox, rejecting files bigger than
// GetMaxReadFileSize when a non-zero limit is set.
func (s *SecureFS) ReadFile(path string) ([]byte, error) {
	abs, err := s.resolvePath(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
		}
		return nil, errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
	}

	if limit := s.GetMaxReadFileSize(); limit > 0 && info.Size() > limit {
		return nil, errors.Newf("securefs: file %q (%d bytes) exceeds max read size of %d bytes", path, info.Size(), limit).
			Component("securefs").Category(errors.CategoryValidation).Build()
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
	}
	return data, nil
}

// WriteFile writes data to path within the sandbox, creating any parent
// directories as needed.
func (s *SecureFS) WriteFile(path string, data []byte, perm os.FileMode) error {
	abs, err := s.resolvePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
	}
	if err := os.WriteFile(abs, data, perm); err != nil {
		return errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
	}
	return nil
}

// OpenFile opens path within the sandbox, following and validating
// symlinks.
func (s *SecureFS) OpenFile(path string, flag int, perm os.FileMode) (*os.File, error) {
	abs, err := s.resolvePath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(abs, flag, perm)
	if err != nil {
		return nil, errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
	}
	return f, nil
}

// Open opens path read-only within the sandbox.
func (s *SecureFS) Open(path string) (*os.File, error) {
	return s.OpenFile(path, os.O_RDONLY, 0)
}

// Remove removes path within the sandbox.
func (s *SecureFS) Remove(path string) error {
	abs, err := s.resolvePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
	}
	return nil
}

// RemoveAll removes path and its children within the sandbox.
func (s *SecureFS) RemoveAll(path string) error {
	abs, err := s.resolvePath(path)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(abs); err != nil {
		return errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
	}
	return nil
}

// MkdirAll creates path and any missing parents within the sandbox.
func (s *SecureFS) MkdirAll(path string, perm os.FileMode) error {
	abs, err := s.resolvePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, perm); err != nil {
		return errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
	}
	return nil
}

// ReadDir lists the entries of path within the sandbox.
func (s *SecureFS) ReadDir(path string) ([]os.DirEntry, error) {
	abs, err := s.resolvePath(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
	}
	return entries, nil
}

// GetCacheStats reports live cache entry counts, or a zero value if caching
// is disabled.
func (s *SecureFS) GetCacheStats() CacheStats {
	if s.cache == nil {
		return CacheStats{}
	}
	return s.cache.GetCacheStats()
}

// ClearExpiredCache drops every expired cache entry.
func (s *SecureFS) ClearExpiredCache() {
	if s.cache != nil {
		s.cache.ClearExpired()
	}
}

// resolveExistingPrefix resolves symlinks along the deepest existing
// ancestor of p, then rejoins the non-existent suffix (if any) onto that
// resolved prefix. This lets containment checks catch a symlink escape
// even when the final path component doesn't exist yet (e.g. a file about
// to be written).
func resolveExistingPrefix(p string) (string, error) {
	cur := filepath.Clean(p)
	suffix := ""
	for {
		if _, err := os.Lstat(cur); err == nil {
			resolved, err := filepath.EvalSymlinks(cur)
			if err != nil {
				return "", err
			}
			if suffix == "" {
				return resolved, nil
			}
			return filepath.Join(resolved, suffix), nil
		} else if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return filepath.Clean(p), nil
		}
		base := filepath.Base(cur)
		if suffix == "" {
			suffix = base
		} else {
			suffix = filepath.Join(base, suffix)
		}
		cur = parent
	}
}

// IsPathWithinBase reports whether path, once symlinks along its deepest
// existing ancestor are resolved, lies within base. It is the uncached
// primitive behind SecureFS's containment checks.
func IsPathWithinBase(base, path string) (bool, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false, err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}

	resolvedBase, err := resolveExistingPrefix(absBase)
	if err != nil {
		return false, err
	}
	resolvedPath, err := resolveExistingPrefix(absPath)
	if err != nil {
		return false, err
	}
	resolvedBase = filepath.Clean(resolvedBase)
	resolvedPath = filepath.Clean(resolvedPath)

	if resolvedPath == resolvedBase {
		return true, nil
	}
	rel, err := filepath.Rel(resolvedBase, resolvedPath)
	if err != nil {
		return false, nil
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false, nil
	}
	return true, nil
}

// IsPathWithinBaseWithCache is IsPathWithinBase memoized through cache. A
// nil cache falls back to the uncached check.
func IsPathWithinBaseWithCache(cache *PathCache, base, path string) (bool, error) {
	if cache == nil {
		return IsPathWithinBase(base, path)
	}
	key := base + "\x00" + path
	return cache.GetWithinBase(key, func() (bool, error) {
		return IsPathWithinBase(base, path)
	})
}

// IsPathValidWithinBase wraps IsPathWithinBase, returning a "security
// error"-prefixed error when path is not contained in base.
func IsPathValidWithinBase(base, path string) error {
	within, err := IsPathWithinBase(base, path)
	if err != nil {
		return errors.New(err).Component("securefs").Category(errors.CategoryFileIO).Build()
	}
	if !within {
		return securityError(path)
	}
	return nil
}
