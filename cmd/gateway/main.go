// Command gateway implements the tenant-scoped and internal-scoped HTTP
// surface from spec.md §6, fronting internal/dispatcher and internal/search
// with chi + the shared httputil middleware stack.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomerlieber/docflow/internal/app"
	"github.com/tomerlieber/docflow/internal/dispatcher"
	"github.com/tomerlieber/docflow/internal/httputil"
	"github.com/tomerlieber/docflow/internal/search"
)

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	disp := &dispatcher.Dispatcher{
		Store:       deps.Store,
		Blob:        deps.Blob,
		Substrate:   deps.Substrate,
		Doorbell:    deps.Doorbell,
		VectorIndex: deps.VectorIndex,
		Cache:       deps.Cache,
		MaxRetries:  deps.Config.MaxRetries,
	}
	searcher := &search.Searcher{
		RateLimiter: deps.RateLimiter,
		Embedder:    deps.Embedder,
		Index:       deps.VectorIndex,
		Store:       deps.Store,
		Cache:       deps.Cache,
		Window:      time.Duration(deps.Config.RateLimitWindowSeconds) * time.Second,
		CacheTTL:    time.Duration(deps.Config.CacheTTL) * time.Second,
	}

	g := &gateway{deps: deps, dispatcher: disp, searcher: searcher}

	r := httputil.NewRouter(deps.Log)
	r.Get("/healthz", httputil.HealthHandler(deps.Log))
	r.Group(func(r chi.Router) {
		r.Use(httputil.ResolveCredentials(deps.Store, deps.Config.InternalToken, deps.Log))
		g.routes(r)
	})

	addr := fmt.Sprintf(":%d", deps.Config.Port)
	deps.Log.Info("gateway listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		deps.Log.Error("gateway stopped", "err", err)
	}
}
