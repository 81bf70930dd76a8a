// Command chunkworker runs the chunk-stage pool from spec.md §4.5: turn a
// document's extracted text into overlapping chunks and enqueue the embed
// jobs that cover them.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomerlieber/docflow/internal/app"
	"github.com/tomerlieber/docflow/internal/httputil"
	"github.com/tomerlieber/docflow/internal/store"
	"github.com/tomerlieber/docflow/internal/worker"
)

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()
	deps.Log.Info("chunk worker starting", "count", deps.Config.WorkerCounts.Chunk)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := &worker.ChunkHandler{
		Blob:      deps.Blob,
		Store:     deps.Store,
		Substrate: deps.Substrate,
		Doorbell:  deps.Doorbell,
		ChunkSize: deps.Config.ChunkSize,
		Overlap:   deps.Config.ChunkOverlap,
		BatchSize: deps.Config.EmbedBatchSize,
	}
	pool := worker.NewPool(worker.Config{
		Stage:        store.StageChunk,
		Scheduler:    deps.Scheduler,
		Substrate:    deps.Substrate,
		LastServed:   deps.LastServed,
		Doorbell:     deps.Doorbell,
		Store:        deps.Store,
		Handler:      handler,
		StageTimeout: time.Duration(deps.Config.StageTimeouts.Chunk) * time.Second,
		PollMin:      time.Duration(deps.Config.SchedulerPollMin) * time.Millisecond,
		PollMax:      time.Duration(deps.Config.SchedulerPollMax) * time.Millisecond,
		Log:          deps.Log,
	}, deps.Config.WorkerCounts.Chunk)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error { return httputil.ServeHealth(gctx, deps.Config.Port, deps.Log) })

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		deps.Log.Error("chunk worker stopped", "err", err)
	}
}
