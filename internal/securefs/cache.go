// Package securefs provides a sandboxed filesystem facade that keeps every
// path operation confined to a base directory, the way the vault's audio
// and note files must never escape the user's configured vault root.
package securefs

import (
	"io/fs"
	"sync"
	"time"
)

// Default TTLs for each cache kind. Stat results get the shortest TTL,
// within-base checks a middle one, and symlink, absolute-path and
// validate-path results the longest.
const (
	defaultSymlinkTTL    = 30 * time.Second
	defaultStatTTL       = 5 * time.Second
	defaultAbsPathTTL    = 30 * time.Second
	defaultValidateTTL   = 30 * time.Second
	defaultWithinBaseTTL = 10 * time.Second
)

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e cacheEntry[T]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// PathCache memoizes the expensive parts of path validation: symlink
// resolution, stat calls, and the within-base containment check. Entries
// that failed are never cached, so a transient filesystem error on one
// call does not poison every call that follows.
type PathCache struct {
	mu sync.Mutex

	symlinkCache    map[string]cacheEntry[string]
	statCache       map[string]cacheEntry[fs.FileInfo]
	absPathCache    map[string]cacheEntry[string]
	validateCache   map[string]cacheEntry[string]
	withinBaseCache map[string]cacheEntry[bool]

	symlinkTTL    time.Duration
	statTTL       time.Duration
	absPathTTL    time.Duration
	validateTTL   time.Duration
	withinBaseTTL time.Duration
}

// NewPathCache returns a PathCache with sensible default TTLs. Tests may
// override the TTL fields directly to exercise expiration behavior.
func NewPathCache() *PathCache {
	return &PathCache{
		symlinkCache:    make(map[string]cacheEntry[string]),
		statCache:       make(map[string]cacheEntry[fs.FileInfo]),
		absPathCache:    make(map[string]cacheEntry[string]),
		validateCache:   make(map[string]cacheEntry[string]),
		withinBaseCache: make(map[string]cacheEntry[bool]),

		symlinkTTL:    defaultSymlinkTTL,
		statTTL:       defaultStatTTL,
		absPathTTL:    defaultAbsPathTTL,
		validateTTL:   defaultValidateTTL,
		withinBaseTTL: defaultWithinBaseTTL,
	}
}

// GetSymlinkResolution returns the cached result of compute(path), calling
// compute and caching the result only on success.
func (pc *PathCache) GetSymlinkResolution(path string, compute func(string) (string, error)) (string, error) {
	pc.mu.Lock()
	if e, ok := pc.symlinkCache[path]; ok && !e.expired(time.Now()) {
		pc.mu.Unlock()
		return e.value, nil
	}
	pc.mu.Unlock()

	v, err := compute(path)
	if err != nil {
		return "", err
	}

	pc.mu.Lock()
	pc.symlinkCache[path] = cacheEntry[string]{value: v, expiresAt: time.Now().Add(pc.symlinkTTL)}
	pc.mu.Unlock()
	return v, nil
}

// GetStat returns the cached result of compute(path), caching only on success.
func (pc *PathCache) GetStat(path string, compute func(string) (fs.FileInfo, error)) (fs.FileInfo, error) {
	pc.mu.Lock()
	if e, ok := pc.statCache[path]; ok && !e.expired(time.Now()) {
		pc.mu.Unlock()
		return e.value, nil
	}
	pc.mu.Unlock()

	v, err := compute(path)
	if err != nil {
		return nil, err
	}

	pc.mu.Lock()
	pc.statCache[path] = cacheEntry[fs.FileInfo]{value: v, expiresAt: time.Now().Add(pc.statTTL)}
	pc.mu.Unlock()
	return v, nil
}

// GetAbsPath returns the cached result of compute(path), caching only on success.
func (pc *PathCache) GetAbsPath(path string, compute func(string) (string, error)) (string, error) {
	pc.mu.Lock()
	if e, ok := pc.absPathCache[path]; ok && !e.expired(time.Now()) {
		pc.mu.Unlock()
		return e.value, nil
	}
	pc.mu.Unlock()

	v, err := compute(path)
	if err != nil {
		return "", err
	}

	pc.mu.Lock()
	pc.absPathCache[path] = cacheEntry[string]{value: v, expiresAt: time.Now().Add(pc.absPathTTL)}
	pc.mu.Unlock()
	return v, nil
}

// GetValidatePath returns the cached result of compute(path), caching only on success.
func (pc *PathCache) GetValidatePath(path string, compute func(string) (string, error)) (string, error) {
	pc.mu.Lock()
	if e, ok := pc.validateCache[path]; ok && !e.expired(time.Now()) {
		pc.mu.Unlock()
		return e.value, nil
	}
	pc.mu.Unlock()

	v, err := compute(path)
	if err != nil {
		return "", err
	}

	pc.mu.Lock()
	pc.validateCache[path] = cacheEntry[string]{value: v, expiresAt: time.Now().Add(pc.validateTTL)}
	pc.mu.Unlock()
	return v, nil
}

// GetWithinBase returns the cached result of compute(), keyed on an
// arbitrary caller-supplied key, caching only on success.
func (pc *PathCache) GetWithinBase(key string, compute func() (bool, error)) (bool, error) {
	pc.mu.Lock()
	if e, ok := pc.withinBaseCache[key]; ok && !e.expired(time.Now()) {
		pc.mu.Unlock()
		return e.value, nil
	}
	pc.mu.Unlock()

	v, err := compute()
	if err != nil {
		return false, err
	}

	pc.mu.Lock()
	pc.withinBaseCache[key] = cacheEntry[bool]{value: v, expiresAt: time.Now().Add(pc.withinBaseTTL)}
	pc.mu.Unlock()
	return v, nil
}

// CacheStats reports the number of live entries per cache kind, for
// diagnostics endpoints and tests.
type CacheStats struct {
	SymlinkTotal    int
	StatTotal       int
	AbsPathTotal    int
	ValidateTotal   int
	WithinBaseTotal int
}

// GetCacheStats returns the current entry counts across all cache kinds.
func (pc *PathCache) GetCacheStats() CacheStats {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return CacheStats{
		SymlinkTotal:    len(pc.symlinkCache),
		StatTotal:       len(pc.statCache),
		AbsPathTotal:    len(pc.absPathCache),
		ValidateTotal:   len(pc.validateCache),
		WithinBaseTotal: len(pc.withinBaseCache),
	}
}

// ClearExpired drops every entry past its TTL from every cache kind.
func (pc *PathCache) ClearExpired() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	now := time.Now()
	for k, e := range pc.symlinkCache {
		if e.expired(now) {
			delete(pc.symlinkCache, k)
		}
	}
	for k, e := range pc.statCache {
		if e.expired(now) {
			delete(pc.statCache, k)
		}
	}
	for k, e := range pc.absPathCache {
		if e.expired(now) {
			delete(pc.absPathCache, k)
		}
	}
	for k, e := range pc.validateCache {
		if e.expired(now) {
			delete(pc.validateCache, k)
		}
	}
	for k, e := range pc.withinBaseCache {
		if e.expired(now) {
			delete(pc.withinBaseCache, k)
		}
	}
}
