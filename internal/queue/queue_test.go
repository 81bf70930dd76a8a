package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

// fakeSubstrate is an in-memory Substrate + LastServedStore used to test
// Scheduler fairness/priority semantics without a real Redis instance.
type fakeSubstrate struct {
	queues     map[string][]fakeItem // key = tenant|stage
	lastServed map[Stage]uuid.UUID
}

type fakeItem struct {
	jobID uuid.UUID
	score float64
}

func newFakeSubstrate() *fakeSubstrate {
	return &fakeSubstrate{queues: map[string][]fakeItem{}, lastServed: map[Stage]uuid.UUID{}}
}

func fakeKey(tenantID uuid.UUID, stage Stage) string { return tenantID.String() + "|" + string(stage) }

func (f *fakeSubstrate) Enqueue(_ context.Context, tenantID uuid.UUID, stage Stage, jobID uuid.UUID, score float64) error {
	k := fakeKey(tenantID, stage)
	f.queues[k] = append(f.queues[k], fakeItem{jobID: jobID, score: score})
	return nil
}

func (f *fakeSubstrate) PopMin(_ context.Context, tenantID uuid.UUID, stage Stage, now time.Time) (uuid.UUID, bool, error) {
	k := fakeKey(tenantID, stage)
	items := f.queues[k]
	best := -1
	for i, it := range items {
		if it.score > float64(now.Unix()) {
			continue
		}
		if best == -1 || it.score < items[best].score {
			best = i
		}
	}
	if best == -1 {
		return uuid.Nil, false, nil
	}
	job := items[best].jobID
	f.queues[k] = append(items[:best], items[best+1:]...)
	return job, true, nil
}

func (f *fakeSubstrate) ListActiveTenants(_ context.Context, stage Stage, now time.Time) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]bool{}
	for k, items := range f.queues {
		var tenantStr string
		for i := 0; i < len(k); i++ {
			if k[i] == '|' {
				tenantStr = k[:i]
				break
			}
		}
		if Stage(k[len(tenantStr)+1:]) != stage {
			continue
		}
		for _, it := range items {
			if it.score <= float64(now.Unix()) {
				seen[uuid.MustParse(tenantStr)] = true
				break
			}
		}
	}
	var out []uuid.UUID
	for t := range seen {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeSubstrate) Length(_ context.Context, tenantID uuid.UUID, stage Stage) (int64, error) {
	return int64(len(f.queues[fakeKey(tenantID, stage)])), nil
}

func (f *fakeSubstrate) Close() error { return nil }

func (f *fakeSubstrate) GetLastServed(_ context.Context, stage Stage) (uuid.UUID, bool) {
	id, ok := f.lastServed[stage]
	return id, ok
}

func (f *fakeSubstrate) SetLastServed(_ context.Context, stage Stage, tenantID uuid.UUID) error {
	f.lastServed[stage] = tenantID
	return nil
}

func TestSchedulerRoundRobinFairness(t *testing.T) {
	f := newFakeSubstrate()
	sched := NewScheduler(f, nil, nil)
	now := time.Now()
	ctx := context.Background()

	tenantA := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	tenantB := uuid.MustParse("00000000-0000-0000-0000-00000000000b")

	for i := 0; i < 5; i++ {
		_ = f.Enqueue(ctx, tenantA, StageExtract, uuid.New(), float64(now.Unix()))
		_ = f.Enqueue(ctx, tenantB, StageExtract, uuid.New(), float64(now.Unix()))
	}

	var order []uuid.UUID
	for i := 0; i < 10; i++ {
		tenantID, _, ok, err := sched.Next(ctx, StageExtract, f, now)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			t.Fatalf("expected a job at iteration %d", i)
		}
		order = append(order, tenantID)
	}

	for i := 0; i < len(order); i++ {
		if i > 0 && order[i] == order[i-1] {
			t.Fatalf("expected strict alternation, got two %s in a row at index %d: %v", order[i], i, order)
		}
	}
}

func TestSchedulerResumesAfterLastServed(t *testing.T) {
	f := newFakeSubstrate()
	sched := NewScheduler(f, nil, nil)
	now := time.Now()
	ctx := context.Background()

	tenants := []uuid.UUID{
		uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		uuid.MustParse("00000000-0000-0000-0000-000000000002"),
		uuid.MustParse("00000000-0000-0000-0000-000000000003"),
	}
	for _, tn := range tenants {
		_ = f.Enqueue(ctx, tn, StageChunk, uuid.New(), float64(now.Unix()))
	}
	_ = f.SetLastServed(ctx, StageChunk, tenants[0])

	served, _, ok, err := sched.Next(ctx, StageChunk, f, now)
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if served != tenants[1] {
		t.Fatalf("expected tenant %s to be served next, got %s", tenants[1], served)
	}
}

func TestSchedulerPriorityWithinTenant(t *testing.T) {
	f := newFakeSubstrate()
	ctx := context.Background()
	now := time.Now()
	tenant := uuid.New()

	early := uuid.New()
	late := uuid.New()
	_ = f.Enqueue(ctx, tenant, StageEmbed, late, float64(now.Unix())+10)
	_ = f.Enqueue(ctx, tenant, StageEmbed, early, float64(now.Unix())-10)

	sched := NewScheduler(f, nil, nil)
	_, jobID, ok, err := sched.Next(ctx, StageEmbed, f, now)
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if jobID != early {
		t.Fatalf("expected lower-scored job to be popped first")
	}
}

func TestSchedulerNoEligibleJobs(t *testing.T) {
	f := newFakeSubstrate()
	sched := NewScheduler(f, nil, nil)
	_, _, ok, err := sched.Next(context.Background(), StageExtract, f, time.Now())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ok {
		t.Fatalf("expected no eligible job")
	}
}

func TestBackoffScoreIsMonotonic(t *testing.T) {
	now := time.Now()
	var prev float64 = -1
	for retry := 0; retry < 5; retry++ {
		score := BackoffScore(now, retry)
		if score <= prev {
			t.Fatalf("expected BackoffScore to increase with retry_count, got %v after %v", score, prev)
		}
		prev = score
	}
}

func TestFakeSubstratePopsInScoreOrder(t *testing.T) {
	f := newFakeSubstrate()
	ctx := context.Background()
	tenant := uuid.New()
	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		_ = f.Enqueue(ctx, tenant, StageExtract, ids[i], float64(i))
	}
	for i := 0; i < 3; i++ {
		id, ok, _ := f.PopMin(ctx, tenant, StageExtract, time.Now())
		if !ok {
			t.Fatalf("expected pop to succeed")
		}
		if id != ids[i] {
			t.Fatalf("expected pop order %v, got %s at position %d", ids, id, i)
		}
	}
}
