package queue

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
)

// Doorbell wakes idle worker pools when a new job is enqueued, so the
// scheduler's sleep-with-backoff loop (spec.md §4.2 step 1) doesn't have to
// poll Redis at its maximum cadence under light load. The queue substrate
// remains the durable source of truth; a missed or duplicate doorbell ring
// never loses or duplicates work, it only changes how soon a worker looks.
type Doorbell interface {
	Ring(stage Stage)
	// Wait blocks until a ring arrives for stage, timeout elapses, or ctx
	// is done — whichever comes first. The timeout caps how stale a pure
	// poller can get when no ring ever arrives.
	Wait(ctx context.Context, stage Stage, timeout time.Duration)
}

// NATSDoorbell publishes/subscribes on "jobs.{stage}" subjects, grounded on
// the teacher's internal/queue/nats.go pub/sub wiring.
type NATSDoorbell struct {
	nc *nats.Conn
}

// NewNATSDoorbell wraps an already-connected NATS client.
func NewNATSDoorbell(nc *nats.Conn) *NATSDoorbell {
	return &NATSDoorbell{nc: nc}
}

func (d *NATSDoorbell) Ring(stage Stage) {
	_ = d.nc.Publish("jobs."+string(stage), nil)
}

func (d *NATSDoorbell) Wait(ctx context.Context, stage Stage, timeout time.Duration) {
	sub, err := d.nc.SubscribeSync("jobs." + string(stage))
	if err != nil {
		time.Sleep(timeout)
		return
	}
	defer sub.Unsubscribe()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, _ = sub.NextMsgWithContext(waitCtx)
}

// NoopDoorbell never wakes anyone; callers fall back to pure polling. Used
// when DOORBELL_URL is unset.
type NoopDoorbell struct{}

func (NoopDoorbell) Ring(Stage) {}
func (NoopDoorbell) Wait(ctx context.Context, _ Stage, timeout time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(timeout):
	}
}
