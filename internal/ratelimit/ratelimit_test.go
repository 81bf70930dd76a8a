package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

// memLimiter mirrors RedisLimiter's semantics without Redis, so the sliding
// window behavior itself (eviction, limit enforcement, retry_after) can be
// tested deterministically.
type memLimiter struct {
	windows map[uuid.UUID][]time.Time
}

func newMemLimiter() *memLimiter {
	return &memLimiter{windows: map[uuid.UUID][]time.Time{}}
}

func (l *memLimiter) Allow(_ context.Context, tenantID uuid.UUID, limit int, window time.Duration, now time.Time) (Decision, error) {
	cutoff := now.Add(-window)
	entries := l.windows[tenantID]
	kept := entries[:0:0]
	for _, e := range entries {
		if e.After(cutoff) {
			kept = append(kept, e)
		}
	}
	if len(kept) >= limit {
		retryAfter := kept[0].Add(window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		l.windows[tenantID] = kept
		return Decision{Allowed: false, RetryAfterMS: retryAfter.Milliseconds()}, nil
	}
	kept = append(kept, now)
	l.windows[tenantID] = kept
	return Decision{Allowed: true}, nil
}

func (l *memLimiter) CurrentUsage(_ context.Context, tenantID uuid.UUID, window time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-window)
	entries := l.windows[tenantID]
	kept := entries[:0:0]
	for _, e := range entries {
		if e.After(cutoff) {
			kept = append(kept, e)
		}
	}
	l.windows[tenantID] = kept
	return len(kept), nil
}

func TestCurrentUsageDoesNotRecordAnAttempt(t *testing.T) {
	l := newMemLimiter()
	tenant := uuid.New()
	window := 60 * time.Second
	now := time.Now()

	if _, err := l.Allow(context.Background(), tenant, 5, window, now); err != nil {
		t.Fatalf("Allow: %v", err)
	}
	for i := 0; i < 3; i++ {
		usage, err := l.CurrentUsage(context.Background(), tenant, window, now)
		if err != nil {
			t.Fatalf("CurrentUsage: %v", err)
		}
		if usage != 1 {
			t.Fatalf("call %d: expected usage to stay at 1, got %d", i, usage)
		}
	}
}

func TestCurrentUsageEvictsExpiredEntries(t *testing.T) {
	l := newMemLimiter()
	tenant := uuid.New()
	window := 60 * time.Second
	t0 := time.Now()

	if _, err := l.Allow(context.Background(), tenant, 5, window, t0); err != nil {
		t.Fatalf("Allow: %v", err)
	}
	later := t0.Add(window + time.Second)
	usage, err := l.CurrentUsage(context.Background(), tenant, window, later)
	if err != nil {
		t.Fatalf("CurrentUsage: %v", err)
	}
	if usage != 0 {
		t.Fatalf("expected usage to drop to 0 after window expiry, got %d", usage)
	}
}

func TestLimiterAdmitsUpToLimit(t *testing.T) {
	l := newMemLimiter()
	tenant := uuid.New()
	now := time.Now()
	window := 60 * time.Second

	for i := 0; i < 3; i++ {
		d, err := l.Allow(context.Background(), tenant, 3, window, now)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("expected admission %d/3 to be allowed", i+1)
		}
	}

	d, err := l.Allow(context.Background(), tenant, 3, window, now)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected 4th admission within the window to be denied")
	}
	if d.RetryAfterMS <= 0 {
		t.Fatalf("expected a positive retry_after_ms, got %d", d.RetryAfterMS)
	}
}

func TestLimiterEvictsExpiredEntries(t *testing.T) {
	l := newMemLimiter()
	tenant := uuid.New()
	window := 60 * time.Second
	t0 := time.Now()

	for i := 0; i < 2; i++ {
		if _, err := l.Allow(context.Background(), tenant, 2, window, t0); err != nil {
			t.Fatalf("Allow: %v", err)
		}
	}

	// Past the window: the earlier entries should have been evicted.
	later := t0.Add(window + time.Second)
	d, err := l.Allow(context.Background(), tenant, 2, window, later)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected admission after window expiry to succeed")
	}
}

func TestLimiterIsolatesTenants(t *testing.T) {
	l := newMemLimiter()
	tenantA := uuid.New()
	tenantB := uuid.New()
	now := time.Now()
	window := 60 * time.Second

	for i := 0; i < 2; i++ {
		if _, err := l.Allow(context.Background(), tenantA, 2, window, now); err != nil {
			t.Fatalf("Allow: %v", err)
		}
	}
	d, err := l.Allow(context.Background(), tenantA, 2, window, now)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected tenantA to be at its limit")
	}

	d, err = l.Allow(context.Background(), tenantB, 2, window, now)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected tenantB's separate window to admit")
	}
}
