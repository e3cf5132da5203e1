package platform

import (
	"context"
	"time"

	"github.com/bolthost/runtime/internal/cache"
)

// projectAllCacheTTL is short on purpose. Session create calls project.all
// on every request to find an actor's project by name; a multi-second TTL
// would let a freshly created project go briefly invisible to a racing
// request on another instance, which ensureActorProject already tolerates
// (it falls back to creating the project), but a long TTL would make that the
// common case instead of a rare one.
const projectAllCacheTTL = 3 * time.Second

// CachedClient wraps Client with a short-lived read-through cache in front
// of project.all, the one listing call the orchestrator makes on every
// session create. Every other method passes straight through to Client.
type CachedClient struct {
	*Client
	cache *cache.Cache
}

// NewCachedClient returns a CachedClient. c may be a disabled cache, in
// which case every call simply falls through to the wrapped Client.
func NewCachedClient(client *Client, c *cache.Cache) *CachedClient {
	return &CachedClient{Client: client, cache: c}
}

func (c *CachedClient) ProjectAll(ctx context.Context, requestID string) ([]Project, error) {
	var cached []Project
	if err := c.cache.Get(ctx, cache.ProjectAllKey, &cached); err == nil {
		return cached, nil
	}

	out, err := c.Client.ProjectAll(ctx, requestID)
	if err != nil {
		return nil, err
	}

	_ = c.cache.Set(ctx, cache.ProjectAllKey, out, projectAllCacheTTL)
	return out, nil
}

func (c *CachedClient) ProjectCreate(ctx context.Context, name, requestID string) (*Project, error) {
	out, err := c.Client.ProjectCreate(ctx, name, requestID)
	if err != nil {
		return nil, err
	}
	// Invalidate so the next project.all scan (a later ensureActorProject
	// or sweep, on this or another instance sharing the cache) sees the new
	// project immediately instead of waiting out the TTL.
	_ = c.cache.Delete(ctx, cache.ProjectAllKey)
	return out, nil
}
