// Package queue implements the per-(tenant, stage) priority queue
// substrate and the round-robin scheduler built on top of it. Every active
// tenant gets one turn per rotation; tenants carry no weights.
// Fairness lives here, not in the workers: a worker just calls
// Scheduler.Next and processes whatever it's handed.
package queue

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tomerlieber/docflow/internal/retry"
)

// Stage identifies a pipeline stage queue. Kept as a plain string (rather
// than importing internal/store) so this package has no dependency on the
// metadata store.
type Stage string

const (
	StageExtract Stage = "extract"
	StageChunk   Stage = "chunk"
	StageEmbed   Stage = "embed"
)

// Substrate is the queue substrate contract from spec.md §4.1: a family of
// ordered sets keyed by (tenant_id, stage).
type Substrate interface {
	// Enqueue adds job_id with the given score to the (tenant, stage) set.
	// Idempotent: re-enqueueing the same job_id just updates its score.
	Enqueue(ctx context.Context, tenantID uuid.UUID, stage Stage, jobID uuid.UUID, score float64) error

	// PopMin atomically removes and returns the lowest-scoring job_id whose
	// score is <= now, so that backoff-delayed entries are skipped until
	// their delay elapses. ok is false if nothing is eligible.
	PopMin(ctx context.Context, tenantID uuid.UUID, stage Stage, now time.Time) (jobID uuid.UUID, ok bool, err error)

	// ListActiveTenants returns tenants with >=1 eligible (score <= now) job
	// at stage.
	ListActiveTenants(ctx context.Context, stage Stage, now time.Time) ([]uuid.UUID, error)

	// Length reports the queue depth for a (tenant, stage) pair.
	Length(ctx context.Context, tenantID uuid.UUID, stage Stage) (int64, error)

	Close() error
}

// ConcurrencyTracker reports how many jobs of a (tenant, stage) pair are
// currently being worked, so the scheduler can skip tenants over their cap.
// A nil tracker (or InFlight always returning 0) disables the cap.
type ConcurrencyTracker interface {
	InFlight(ctx context.Context, tenantID uuid.UUID, stage Stage) (int, error)
}

// Scheduler implements the round-robin, no-starvation, work-conserving
// contract from spec.md §4.2 on top of a Substrate.
type Scheduler struct {
	substrate Substrate
	tracker   ConcurrencyTracker
	caps      map[Stage]int
}

// NewScheduler builds a scheduler. caps maps a stage to its per-tenant
// concurrency cap; a missing or zero entry means uncapped.
func NewScheduler(substrate Substrate, tracker ConcurrencyTracker, caps map[Stage]int) *Scheduler {
	return &Scheduler{substrate: substrate, tracker: tracker, caps: caps}
}

// Next returns the next (tenant_id, job_id) to serve at stage, or ok=false
// if nothing is currently eligible. It resumes the rotation after the
// last-served tenant for this stage, which the substrate persists so the
// pointer is shared across worker processes.
func (s *Scheduler) Next(ctx context.Context, stage Stage, lastServed LastServedStore, now time.Time) (tenantID, jobID uuid.UUID, ok bool, err error) {
	active, err := s.substrate.ListActiveTenants(ctx, stage, now)
	if err != nil {
		return uuid.Nil, uuid.Nil, false, err
	}
	if len(active) == 0 {
		return uuid.Nil, uuid.Nil, false, nil
	}
	sort.Slice(active, func(i, j int) bool { return active[i].String() < active[j].String() })

	last, _ := lastServed.GetLastServed(ctx, stage)
	start := 0
	for i, t := range active {
		if t == last {
			start = i + 1
			break
		}
	}

	cap := s.caps[stage]
	for i := 0; i < len(active); i++ {
		idx := (start + i) % len(active)
		candidate := active[idx]

		if cap > 0 && s.tracker != nil {
			inFlight, ferr := s.tracker.InFlight(ctx, candidate, stage)
			if ferr != nil {
				return uuid.Nil, uuid.Nil, false, ferr
			}
			if inFlight >= cap {
				continue
			}
		}

		job, popped, perr := s.substrate.PopMin(ctx, candidate, stage, now)
		if perr != nil {
			return uuid.Nil, uuid.Nil, false, perr
		}
		if !popped {
			continue
		}
		_ = lastServed.SetLastServed(ctx, stage, candidate)
		return candidate, job, true, nil
	}
	return uuid.Nil, uuid.Nil, false, nil
}

// LastServedStore persists the rotation pointer per stage so that multiple
// worker processes share a single fair rotation, per spec.md §9.
type LastServedStore interface {
	GetLastServed(ctx context.Context, stage Stage) (uuid.UUID, bool)
	SetLastServed(ctx context.Context, stage Stage, tenantID uuid.UUID) error
}

// BackoffScore returns the delayed score for a retry attempt: now plus
// 2^retryCount seconds, encoded as a Unix-epoch float so it sorts correctly
// against immediately-eligible (score = enqueue epoch) jobs.
func BackoffScore(now time.Time, retryCount int) float64 {
	delay := retry.ExponentialBackoff(retryCount, time.Second)
	return float64(now.Add(delay).Unix())
}
