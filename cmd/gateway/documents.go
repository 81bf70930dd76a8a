package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomerlieber/docflow/internal/apperr"
	"github.com/tomerlieber/docflow/internal/httputil"
)

// status implements GET /status/{document_id}.
func (g *gateway) status(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := httputil.TenantID(r.Context())
	documentID, err := uuid.Parse(chi.URLParam(r, "document_id"))
	if err != nil {
		httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindValidation, "invalid document_id", err))
		return
	}

	result, err := g.dispatcher.Status(r.Context(), tenantID, documentID)
	if err != nil {
		httputil.WriteError(g.log(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// deleteDocument implements DELETE /documents/{document_id}.
func (g *gateway) deleteDocument(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := httputil.TenantID(r.Context())
	documentID, err := uuid.Parse(chi.URLParam(r, "document_id"))
	if err != nil {
		httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindValidation, "invalid document_id", err))
		return
	}

	result, err := g.dispatcher.Delete(r.Context(), tenantID, documentID)
	if err != nil {
		httputil.WriteError(g.log(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// metricsMe implements GET /metrics/me: per-tenant document counts, bytes,
// last upload timestamp, and current-window rate usage.
func (g *gateway) metricsMe(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := httputil.TenantID(r.Context())

	metrics, err := g.deps.Store.TenantMetrics(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindTransient, "failed to load tenant metrics", err))
		return
	}
	tenant, err := g.deps.Store.GetTenant(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindTransient, "failed to resolve tenant", err))
		return
	}
	window := time.Duration(g.deps.Config.RateLimitWindowSeconds) * time.Second
	usage, err := g.deps.RateLimiter.CurrentUsage(r.Context(), tenantID, window, time.Now())
	if err != nil {
		httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindTransient, "failed to load rate limit usage", err))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"document_count":        metrics.DocumentCount,
		"total_bytes":           metrics.TotalBytes,
		"last_uploaded_at":      metrics.LastUploadedAt,
		"rate_limit_per_minute": tenant.RateLimitPerMinute,
		"current_window_usage":  usage,
	})
}
