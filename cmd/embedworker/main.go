// Command embedworker runs the embed-stage pool from spec.md §4.6: embed a
// document's chunks, checkpoint the vectors, upsert into the vector index,
// and complete the document. Summarization enrichment runs fire-and-forget
// once a document finishes, never gating job completion.
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
	deps.Log.Info("embed worker starting", "count", deps.Config.WorkerCounts.Embed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := &worker.EmbedHandler{
		Blob:        deps.Blob,
		Store:       deps.Store,
		VectorIndex: deps.VectorIndex,
		Embedder:    deps.Embedder,
		Summarizer:  deps.Summarizer,
		Log:         deps.Log,
	}
	pool := worker.NewPool(worker.Config{
		Stage:        store.StageEmbed,
		Scheduler:    deps.Scheduler,
		Substrate:    deps.Substrate,
		LastServed:   deps.LastServed,
		Doorbell:     deps.Doorbell,
		Store:        deps.Store,
		Handler:      handler,
		StageTimeout: time.Duration(deps.Config.StageTimeouts.Embed) * time.Second,
		PollMin:      time.Duration(deps.Config.SchedulerPollMin) * time.Millisecond,
		PollMax:      time.Duration(deps.Config.SchedulerPollMax) * time.Millisecond,
		Log:          deps.Log,
	}, deps.Config.WorkerCounts.Embed)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error { return httputil.ServeHealth(gctx, deps.Config.Port, deps.Log) })

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		deps.Log.Error("embed worker stopped", "err", err)
	}
}
