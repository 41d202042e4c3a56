package lockd

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GlobalKey is the reserved key protecting a full admission decision cycle:
// snapshot read, reservation and eviction execution.
const GlobalKey = "admission"

// ModelKey returns the lock key protecting one model's state transitions.
func ModelKey(modelID string) string { return "model:" + modelID }

// Coordinator hands out leased, token-fenced locks over a Store. Every
// acquisition carries a TTL; holders renew while long work is in flight and
// release on every exit path.
type Coordinator struct {
	store Store
}

func New(store Store) *Coordinator { return &Coordinator{store: store} }

// Store exposes the backing store, mainly so the reaper can purge it.
func (c *Coordinator) Store() Store { return c.store }

// Ping reports whether the backing store is reachable.
func (c *Coordinator) Ping(ctx context.Context) error { return c.store.Ping(ctx) }

// Acquire takes the lock at key for ttl and returns the ownership token.
// A held lock yields a Busy error immediately; use AcquireWait for a
// bounded wait.
func (c *Coordinator) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := c.store.SetIfAbsent(ctx, key, token, ttl)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", busyError{key: key}
	}
	return token, nil
}

// AcquireWait retries Acquire with backoff until wait has elapsed, then
// reports Busy. The caller's context cancels the wait early.
func (c *Coordinator) AcquireWait(ctx context.Context, key string, ttl, wait time.Duration) (string, error) {
	deadline := time.Now().Add(wait)
	backoff := 10 * time.Millisecond
	for {
		token, err := c.Acquire(ctx, key, ttl)
		if err == nil || !IsBusy(err) {
			return token, err
		}
		if time.Now().After(deadline) {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}

// Release gives up the lock at key. Releasing with a token that no longer
// owns the key (expired and reclaimed) is a NotOwner error.
func (c *Coordinator) Release(ctx context.Context, key, token string) error {
	ok, err := c.store.CompareAndDelete(ctx, key, token)
	if err != nil {
		return err
	}
	if !ok {
		return notOwnerError{key: key}
	}
	return nil
}

// Renew extends the lease at key while token still owns it.
func (c *Coordinator) Renew(ctx context.Context, key, token string, ttl time.Duration) error {
	ok, err := c.store.CompareAndExpire(ctx, key, token, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return expiredError{key: key}
	}
	return nil
}

// Held reports whether any live token owns key.
func (c *Coordinator) Held(ctx context.Context, key string) (bool, error) {
	v, err := c.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return v != "", nil
}

// KeepRenewed renews the lock at ttl/2 cadence until the returned stop func
// is called. Renewal failures end the goroutine; the surrounding operation
// then runs on borrowed time until its next lock-dependent step fails.
func (c *Coordinator) KeepRenewed(ctx context.Context, key, token string, ttl time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.Renew(ctx, key, token, ttl); err != nil {
					return
				}
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
