// package store provides the keyed blob store capability backing session and
// token persistence.
//
// The service treats storage as a generic key/value surface: [Store] exposes
// Get and Set over opaque byte values. Three production backends exist, picked
// by configuration: Redis (deployments with shared state), SQLite (single
// binary deployments) and plain files (development). Connectivity is checked
// once at construction so a misconfigured backend fails fast instead of on
// first use.
package store

import (
	"context"
	"fmt"
	"time"
)

// ErrNotFound is returned by [Store.Get] when no value exists for a key.
var ErrNotFound = fmt.Errorf("key not found")

// Store is a keyed blob store. Implementations must be safe for concurrent
// use; writes are last-writer-wins at the granularity of one key.
type Store interface {
	// Get returns the value stored under key, or [ErrNotFound].
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value stored under key. A zero ttl means the value
	// does not expire; backends without expiry support ignore ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// TokenKey returns the storage key for a user's OAuth token record.
func TokenKey(userID string) string {
	return "swa-user-" + userID
}

// SessionKey returns the storage key for a browser session's data blob.
func SessionKey(sessionID string) string {
	return "swa-session-data-" + sessionID
}
