// Package lockd provides leased mutual exclusion keyed by model id plus a
// single global admission key, backed by a key-value store with atomic
// compare-and-set so multiple scheduler processes agree on ownership.
package lockd

import (
	"context"
	"time"
)

// Store is the minimal key-value contract the coordinator needs. Values are
// opaque lock tokens; every write carries a TTL so an owner that dies lets
// its locks lapse instead of wedging admission forever.
type Store interface {
	// SetIfAbsent writes value at key with ttl only when the key is unset
	// or expired. Reports whether the write happened.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Get returns the live value at key, or "" when unset or expired.
	Get(ctx context.Context, key string) (string, error)
	// CompareAndDelete removes key only while it still holds value.
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
	// CompareAndExpire extends the ttl only while key still holds value.
	CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

// Purger is implemented by stores that need explicit expiry collection.
// The reaper calls it on every sweep.
type Purger interface {
	PurgeExpired() int
}
