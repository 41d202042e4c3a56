package lockd

import (
	"context"
	"testing"
	"time"
)

func TestAcquireReleaseCycle(t *testing.T) {
	c := New(NewMemoryStore())
	ctx := context.Background()

	tok, err := c.Acquire(ctx, "model:a", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if tok == "" {
		t.Fatalf("empty token")
	}
	if _, err := c.Acquire(ctx, "model:a", time.Minute); err == nil || !IsBusy(err) {
		t.Fatalf("expected busy, got %v", err)
	}
	if err := c.Release(ctx, "model:a", tok); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := c.Acquire(ctx, "model:a", time.Minute); err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
}

func TestReleaseWrongTokenIsNotOwner(t *testing.T) {
	c := New(NewMemoryStore())
	ctx := context.Background()
	if _, err := c.Acquire(ctx, "k", time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	err := c.Release(ctx, "k", "stolen-token")
	if err == nil || !IsNotOwner(err) {
		t.Fatalf("expected not owner, got %v", err)
	}
}

func TestExpiredLockIsReclaimable(t *testing.T) {
	store := NewMemoryStore()
	c := New(store)
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }
	tok, err := c.Acquire(ctx, "k", 10*time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	now = now.Add(11 * time.Second)
	if _, err := c.Acquire(ctx, "k", 10*time.Second); err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	// The original holder's token lost ownership along the way.
	if err := c.Release(ctx, "k", tok); err == nil || !IsNotOwner(err) {
		t.Fatalf("expected not owner for lapsed token, got %v", err)
	}
}

func TestRenewExtendsLease(t *testing.T) {
	store := NewMemoryStore()
	c := New(store)
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }
	tok, err := c.Acquire(ctx, "k", 10*time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	now = now.Add(8 * time.Second)
	if err := c.Renew(ctx, "k", tok, 10*time.Second); err != nil {
		t.Fatalf("renew: %v", err)
	}
	now = now.Add(8 * time.Second)
	if held, _ := c.Held(ctx, "k"); !held {
		t.Fatalf("lease lapsed despite renewal")
	}
	now = now.Add(11 * time.Second)
	if err := c.Renew(ctx, "k", tok, 10*time.Second); err == nil || !IsExpired(err) {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestAcquireWaitTimesOutBusy(t *testing.T) {
	c := New(NewMemoryStore())
	ctx := context.Background()
	if _, err := c.Acquire(ctx, "k", time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	start := time.Now()
	_, err := c.AcquireWait(ctx, "k", time.Minute, 50*time.Millisecond)
	if err == nil || !IsBusy(err) {
		t.Fatalf("expected busy after wait, got %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatalf("returned before the wait elapsed")
	}
}

func TestAcquireWaitSucceedsWhenFreed(t *testing.T) {
	c := New(NewMemoryStore())
	ctx := context.Background()
	tok, err := c.Acquire(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = c.Release(ctx, "k", tok)
	}()
	if _, err := c.AcquireWait(ctx, "k", time.Minute, time.Second); err != nil {
		t.Fatalf("acquire wait: %v", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()
	if _, err := store.SetIfAbsent(ctx, "a", "t1", 10*time.Second); err != nil {
		t.Fatalf("set a: %v", err)
	}
	if _, err := store.SetIfAbsent(ctx, "b", "t2", time.Minute); err != nil {
		t.Fatalf("set b: %v", err)
	}
	now = now.Add(30 * time.Second)
	if n := store.PurgeExpired(); n != 1 {
		t.Fatalf("purged %d, want 1", n)
	}
	if v, _ := store.Get(ctx, "b"); v != "t2" {
		t.Fatalf("live entry purged")
	}
}
