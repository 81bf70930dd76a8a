// Package worker implements the generic lease-fence, execute, and
// retry/dead-letter loop shared by the extract, chunk, and embed worker
// pools (spec.md §4.4-§4.6, §5). A Handler only knows its own stage's
// business logic; Runner owns everything about how a job is picked up,
// fenced, timed out, and retried.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tomerlieber/docflow/internal/apperr"
	"github.com/tomerlieber/docflow/internal/queue"
	"github.com/tomerlieber/docflow/internal/store"
)

// Handler performs the stage-specific work for one job. It is responsible
// for its own transactional persistence (writing blobs, saving chunks,
// enqueueing successor jobs, advancing document status) and for
// transitioning the job to store.JobCompleted on success. Handler must not
// transition the job on failure; Runner does that.
type Handler interface {
	Handle(ctx context.Context, job store.Job) error
}

// Config wires a Runner to its stage, its collaborators, and its timing
// parameters. PollMin/PollMax bound the doorbell-wait backoff used when the
// scheduler has nothing eligible; StageTimeout is the per-job wall-clock
// budget from spec.md §5.
type Config struct {
	Stage        store.Stage
	Scheduler    *queue.Scheduler
	Substrate    queue.Substrate
	LastServed   queue.LastServedStore
	Doorbell     queue.Doorbell
	Store        store.Store
	Handler      Handler
	StageTimeout time.Duration
	PollMin      time.Duration
	PollMax      time.Duration
	Log          *slog.Logger
}

// Runner drives one worker instance (goroutine) for a single stage.
// Multiple Runners for the same stage, possibly across processes, share
// fairness through the queue substrate's last_served pointer.
type Runner struct {
	cfg Config
}

// NewRunner builds a Runner, filling in defaults for zero-valued fields:
// PollMin 50ms, PollMax 2s, StageTimeout 5 minutes, and slog.Default() for
// Log. Callers pass their per-stage budget in StageTimeout.
func NewRunner(cfg Config) *Runner {
	if cfg.PollMin <= 0 {
		cfg.PollMin = 50 * time.Millisecond
	}
	if cfg.PollMax <= 0 {
		cfg.PollMax = 2 * time.Second
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 5 * time.Minute
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Runner{cfg: cfg}
}

// Run loops until ctx is cancelled, picking up and processing jobs for the
// runner's stage. It never returns a non-nil error except ctx.Err(), so a
// Pool's errgroup only stops the whole pool on shutdown, not on a single
// job's failure.
func (r *Runner) Run(ctx context.Context) error {
	stage := queue.Stage(r.cfg.Stage)
	backoff := r.cfg.PollMin

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tenantID, jobID, ok, err := r.cfg.Scheduler.Next(ctx, stage, r.cfg.LastServed, time.Now())
		if err != nil {
			r.cfg.Log.Error("scheduler.Next failed", "stage", stage, "err", err)
			r.cfg.Doorbell.Wait(ctx, stage, backoff)
			backoff = nextBackoff(backoff, r.cfg.PollMax)
			continue
		}
		if !ok {
			r.cfg.Doorbell.Wait(ctx, stage, backoff)
			backoff = nextBackoff(backoff, r.cfg.PollMax)
			continue
		}

		backoff = r.cfg.PollMin
		if err := r.processJob(ctx, tenantID, jobID); err != nil {
			r.cfg.Log.Error("job processing failed", "stage", stage, "job_id", jobID, "tenant_id", tenantID, "err", err)
		}
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

// processJob fences the job with a conditional pending->processing
// transition, runs the handler under the stage's timeout, and routes any
// failure to retry or dead-letter.
func (r *Runner) processJob(ctx context.Context, tenantID, jobID uuid.UUID) error {
	job, err := r.cfg.Store.GetJob(ctx, tenantID, jobID)
	if err != nil {
		return err
	}

	leased, err := r.cfg.Store.TransitionJob(ctx, tenantID, jobID, store.JobPending, store.JobProcessing, "", job.RetryCount)
	if err != nil {
		return err
	}
	if !leased {
		// Another instance already holds the lease; spec.md §5's fence
		// says the loser just moves on.
		return nil
	}
	job.Status = store.JobProcessing

	stageCtx, cancel := context.WithTimeout(ctx, r.cfg.StageTimeout)
	defer cancel()

	if err := r.cfg.Handler.Handle(stageCtx, job); err != nil {
		return r.handleFailure(ctx, job, err)
	}
	return nil
}

// handleFailure classifies cause and either requeues the job with a
// backoff-delayed score or dead-letters it and marks the document failed,
// per spec.md §4.4-§4.6's failure procedures.
func (r *Runner) handleFailure(ctx context.Context, job store.Job, cause error) error {
	if apperr.Retryable(cause) && job.RetryCount < job.MaxRetries {
		return r.retry(ctx, job, cause)
	}
	return r.deadLetter(ctx, job, cause)
}

func (r *Runner) retry(ctx context.Context, job store.Job, cause error) error {
	nextRetry := job.RetryCount + 1
	ok, err := r.cfg.Store.TransitionJob(ctx, job.TenantID, job.ID, store.JobProcessing, store.JobPending, cause.Error(), nextRetry)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	score := queue.BackoffScore(time.Now(), nextRetry)
	stage := queue.Stage(r.cfg.Stage)
	if err := r.cfg.Substrate.Enqueue(ctx, job.TenantID, stage, job.ID, score); err != nil {
		return err
	}
	r.cfg.Doorbell.Ring(stage)
	return nil
}

func (r *Runner) deadLetter(ctx context.Context, job store.Job, cause error) error {
	ok, err := r.cfg.Store.TransitionJob(ctx, job.TenantID, job.ID, store.JobProcessing, store.JobDead, cause.Error(), job.RetryCount)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return r.cfg.Store.MarkDocumentFailed(ctx, job.TenantID, job.DocumentID, cause.Error())
}

// Pool runs a fixed set of Runners concurrently and stops all of them as
// soon as one returns (shutdown, or ctx cancellation), mirroring the
// teacher's errgroup.WithContext worker-loop idiom.
type Pool struct {
	runners []*Runner
}

// NewPool builds a Pool of count Runners sharing the same Config. Each
// Runner is an independent cooperative unit per spec.md §5; they only
// share state through the queue substrate and metadata store.
func NewPool(cfg Config, count int) *Pool {
	if count <= 0 {
		count = 1
	}
	runners := make([]*Runner, count)
	for i := range runners {
		runners[i] = NewRunner(cfg)
	}
	return &Pool{runners: runners}
}

// Run blocks until ctx is cancelled or a Runner returns a non-context
// error, then stops the rest and returns that error.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range p.runners {
		r := r
		g.Go(func() error { return r.Run(ctx) })
	}
	return g.Wait()
}
