// Package versionkv writes the server's protocol version to a well-known
// Redis key so the companion backend can refuse to start against an
// incompatible notify-push deployment. Grounded on the teacher's
// internal/cache.Cache for go-redis client construction and pool tuning,
// and on connection.rs's version-set-on-boot behavior ("notify_push_version"
// key, best-effort — a Redis outage here is logged, not fatal).
package versionkv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streamspace-dev/notify-push/internal/logger"
)

const versionKey = "notify_push_version"

// Announcer writes the server's protocol version to Redis.
type Announcer struct {
	client  *redis.Client
	version string
}

// NewAnnouncer creates an Announcer against addr, using password/db exactly
// as the teacher's cache client does.
func NewAnnouncer(addr, password string, db int, version string) *Announcer {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})
	return &Announcer{client: client, version: version}
}

// Announce writes the configured version to the well-known key. A failure
// is logged and swallowed: the companion backend's compatibility check is
// a convenience, not a precondition for notify-push itself to serve
// sessions.
func (a *Announcer) Announce(ctx context.Context) {
	if err := a.client.Set(ctx, versionKey, a.version, 0).Err(); err != nil {
		logger.HTTP().Warn().Err(err).Msg("failed to announce protocol version to redis")
	}
}

// Version returns the configured protocol version string, the value
// Announce writes. The /test/version probe reads the key back through
// CheckKey instead.
func (a *Announcer) Version() string {
	return a.version
}

// Close releases the underlying Redis client.
func (a *Announcer) Close() error {
	return a.client.Close()
}

// CheckKey reads back the currently stored version key, used by the
// /test/version probe to confirm the handshake round-tripped through
// Redis rather than just asserting the in-process value.
func (a *Announcer) CheckKey(ctx context.Context) (string, error) {
	v, err := a.client.Get(ctx, versionKey).Result()
	if err != nil {
		return "", fmt.Errorf("read version key: %w", err)
	}
	return v, nil
}
