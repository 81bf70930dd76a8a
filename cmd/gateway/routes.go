package main

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/tomerlieber/docflow/internal/app"
	"github.com/tomerlieber/docflow/internal/dispatcher"
	"github.com/tomerlieber/docflow/internal/httputil"
	"github.com/tomerlieber/docflow/internal/search"
)

// gateway bundles the HTTP adapter's collaborators; every handler hangs off
// it as a method so routes.go stays a pure wiring list.
type gateway struct {
	deps       app.Deps
	dispatcher *dispatcher.Dispatcher
	searcher   *search.Searcher
}

func (g *gateway) log() *slog.Logger { return g.deps.Log }

// routes mounts the tenant-scoped surface (spec.md §6, "HTTP endpoints
// (tenant-scoped)") directly on r and the internal-scoped surface under
// /internal, each behind its own RequireTenant/RequireInternal gate. Both
// groups sit behind httputil.ResolveCredentials, mounted once by main.
func (g *gateway) routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httputil.RequireTenant(g.log()))
		r.Post("/upload/single", g.uploadSingle)
		r.Post("/upload/bulk", g.uploadBulk)
		r.Get("/status/{document_id}", g.status)
		r.Delete("/documents/{document_id}", g.deleteDocument)
		r.Get("/metrics/me", g.metricsMe)
		r.Post("/search", g.search)
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(httputil.RequireInternal())
		r.Post("/tenants", g.createTenant)
		r.Get("/tenants", g.listTenants)
		r.Get("/tenants/{tenant_id}", g.getTenant)
		r.Delete("/tenants/{tenant_id}", g.deleteTenant)
		r.Post("/tenants/{tenant_id}/rotate", g.rotateCredential)
		r.Get("/stats", g.stats)
		r.Get("/documents", g.listDocuments)
		r.Get("/documents/{document_id}", g.getDocument)
		r.Post("/search", g.internalSearch)
		r.Get("/health", g.internalHealth)
		r.Get("/auth", g.internalAuth)
	})
}
