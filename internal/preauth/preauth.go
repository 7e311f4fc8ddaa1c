// Package preauth implements the short-lived, single-use pre-authentication
// token cache (C4). A token is minted out-of-band (by the event bus, on
// behalf of the backend) and maps to a UserId for PreAuthTTL, letting a
// client open a WebSocket session by presenting the token in place of a
// username/password pair. Each token may be consumed exactly once.
//
// The teacher's codebase has no direct analogue — its sessions authenticate
// with JWTs rather than a server-minted cache — so this is grounded
// directly on the bus-driven token cache in connection.rs's socket_auth,
// reimplemented with github.com/patrickmn/go-cache's per-item TTL standing
// in for that code's hand-rolled cutoff scan.
package preauth

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/streamspace-dev/notify-push/internal/user"
)

// Cache maps pre-auth tokens to the UserId they authenticate, for TTL and
// exactly one lookup.
type Cache struct {
	c  *gocache.Cache
	mu sync.Mutex
}

// New creates a Cache whose entries expire after ttl. Expired entries are
// swept on an interval twice the ttl, matching go-cache's recommended
// janitor cadence.
func New(ttl time.Duration) *Cache {
	return &Cache{c: gocache.New(ttl, ttl*2)}
}

// Insert records that token authenticates id, valid until the cache's TTL
// elapses. A later Insert with the same token overwrites the earlier one.
func (c *Cache) Insert(token string, id user.ID) {
	c.c.SetDefault(token, id)
}

// Consume looks up token and, if present and unexpired, removes it and
// returns its UserId with ok true. A token may only ever be consumed once:
// a second Consume call with the same token returns ok false, matching the
// single-use semantics of the original pre-auth handshake.
func (c *Cache) Consume(token string) (user.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.c.Get(token)
	if !ok {
		return "", false
	}
	c.c.Delete(token)
	return v.(user.ID), true
}

// Len reports the number of tokens currently held, for diagnostics and
// tests. Expired tokens the janitor has not yet swept are still counted.
func (c *Cache) Len() int {
	return c.c.ItemCount()
}
