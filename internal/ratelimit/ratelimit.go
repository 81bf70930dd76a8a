// Package ratelimit implements the per-tenant sliding-window admission
// check from spec.md §4.3. It guards the HTTP surface's upload and search
// endpoints only; worker-internal enqueues never consult it.
package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Decision is the result of an admission check.
type Decision struct {
	Allowed      bool
	RetryAfterMS int64
}

// Limiter checks and records admission attempts against a tenant's
// sliding window.
type Limiter interface {
	// Allow evicts entries older than now-window from tenantID's window,
	// then admits and records "now" only when fewer than limit entries
	// remain. A rejected attempt is not recorded and does not count
	// against later checks.
	Allow(ctx context.Context, tenantID uuid.UUID, limit int, window time.Duration, now time.Time) (Decision, error)

	// CurrentUsage reports how many attempts are currently counted in
	// tenantID's window, without recording a new one. Backs GET
	// /metrics/me's current-window rate usage figure.
	CurrentUsage(ctx context.Context, tenantID uuid.UUID, window time.Duration, now time.Time) (int, error)
}
