// Command extractworker runs the extract-stage pool from spec.md §4.4:
// pull extract jobs off the scheduler, turn raw uploads into text, and
// hand off to the chunk stage.
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
	deps.Log.Info("extract worker starting", "count", deps.Config.WorkerCounts.Extract)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := &worker.ExtractHandler{
		Blob:      deps.Blob,
		Extractor: deps.Extractor,
		Store:     deps.Store,
		Substrate: deps.Substrate,
		Doorbell:  deps.Doorbell,
	}
	pool := worker.NewPool(worker.Config{
		Stage:        store.StageExtract,
		Scheduler:    deps.Scheduler,
		Substrate:    deps.Substrate,
		LastServed:   deps.LastServed,
		Doorbell:     deps.Doorbell,
		Store:        deps.Store,
		Handler:      handler,
		StageTimeout: time.Duration(deps.Config.StageTimeouts.Extract) * time.Second,
		PollMin:      time.Duration(deps.Config.SchedulerPollMin) * time.Millisecond,
		PollMax:      time.Duration(deps.Config.SchedulerPollMax) * time.Millisecond,
		Log:          deps.Log,
	}, deps.Config.WorkerCounts.Extract)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error { return httputil.ServeHealth(gctx, deps.Config.Port, deps.Log) })

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		deps.Log.Error("extract worker stopped", "err", err)
	}
}
