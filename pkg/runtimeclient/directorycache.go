package runtimeclient

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultDirectoryCacheTTL is how long a listing stays fresh, per §4.10.
const DefaultDirectoryCacheTTL = 2 * time.Second

// DirectoryLister is the narrow dependency DirectoryCache drives;
// RuntimeAPI satisfies it.
type DirectoryLister interface {
	ListFiles(ctx context.Context, token, path string) ([]FileEntry, error)
}

type directoryCacheEntry struct {
	entries   []FileEntry
	expiresAt time.Time
}

// DirectoryCache is a short-TTL listing cache keyed by (token, path), with
// in-flight request deduplication via singleflight.Group: concurrent
// listers of the same key observe a single underlying platform call.
type DirectoryCache struct {
	lister DirectoryLister
	ttl    time.Duration

	mu      sync.Mutex
	entries map[string]directoryCacheEntry
	group   singleflight.Group
}

// NewDirectoryCache builds a DirectoryCache. ttl <= 0 uses
// DefaultDirectoryCacheTTL.
func NewDirectoryCache(lister DirectoryLister, ttl time.Duration) *DirectoryCache {
	if ttl <= 0 {
		ttl = DefaultDirectoryCacheTTL
	}
	return &DirectoryCache{lister: lister, ttl: ttl, entries: make(map[string]directoryCacheEntry)}
}

func cacheKey(token, path string) string {
	return token + "\x00" + path
}

// List returns the cached listing for (token, path) if it is still fresh
// and force is false; otherwise it dispatches (deduplicating concurrent
// callers of the same key) and caches the result.
func (d *DirectoryCache) List(ctx context.Context, token, path string, force bool) ([]FileEntry, error) {
	key := cacheKey(token, path)

	if !force {
		d.mu.Lock()
		entry, ok := d.entries[key]
		d.mu.Unlock()
		if ok && time.Now().Before(entry.expiresAt) {
			return entry.entries, nil
		}
	}

	v, err, _ := d.group.Do(key, func() (any, error) {
		entries, err := d.lister.ListFiles(ctx, token, path)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		d.entries[key] = directoryCacheEntry{entries: entries, expiresAt: time.Now().Add(d.ttl)}
		d.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]FileEntry), nil
}

// Invalidate drops the cached entry for (token, path); called after a
// write, mkdir, or delete under that path.
func (d *DirectoryCache) Invalidate(token, path string) {
	d.mu.Lock()
	delete(d.entries, cacheKey(token, path))
	d.mu.Unlock()
}

// InvalidateToken drops every cached entry for token, e.g. on session
// teardown or token rotation.
func (d *DirectoryCache) InvalidateToken(token string) {
	prefix := token + "\x00"
	d.mu.Lock()
	defer d.mu.Unlock()
	for k := range d.entries {
		if strings.HasPrefix(k, prefix) {
			delete(d.entries, k)
		}
	}
}
