package httputil

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ServeHealth runs a minimal HTTP server exposing only /healthz, blocking
// until ctx is cancelled or the server errors. Worker binaries (which
// don't build a full chi router) run this in an errgroup alongside their
// worker pool, grounded on the teacher's cmd/parser/main.go pairing of a
// queue worker goroutine with a health-check server goroutine.
func ServeHealth(ctx context.Context, port int, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("health server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
