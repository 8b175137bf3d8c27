package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// DefaultIdleTTL is how long an untouched session survives.
const DefaultIdleTTL = 30 * time.Minute

// Registry keeps one Session per id and expires idle ones.
type Registry struct {
	cache      *ttlcache.Cache[string, *Session]
	newSession func(id string) *Session
	closeOnce  sync.Once
}

// NewRegistry creates a registry whose sessions expire after ttl without
// access (ttl <= 0 uses DefaultIdleTTL). factory builds a session on first
// use of an id. The expiry loop runs until Close.
func NewRegistry(ttl time.Duration, factory func(id string) *Session) *Registry {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	if factory == nil {
		factory = func(id string) *Session { return New(id, nil, nil, nil) }
	}
	c := ttlcache.New[string, *Session](
		ttlcache.WithTTL[string, *Session](ttl),
	)
	c.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Session]) {
		slog.Debug("session evicted", "session", item.Key(), "reason", reason)
	})
	go c.Start()
	return &Registry{cache: c, newSession: factory}
}

// Get returns the session for id, creating it if needed. An empty id gets
// a freshly generated one.
func (r *Registry) Get(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	if item := r.cache.Get(id); item != nil {
		return item.Value()
	}
	item, found := r.cache.GetOrSet(id, r.newSession(id))
	if !found {
		slog.Debug("session created", "session", id)
	}
	return item.Value()
}

// Drop forgets the session for id.
func (r *Registry) Drop(id string) {
	r.cache.Delete(id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close stops the expiry loop.
func (r *Registry) Close() {
	r.closeOnce.Do(r.cache.Stop)
}
