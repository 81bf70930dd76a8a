package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomerlieber/docflow/internal/apperr"
	"github.com/tomerlieber/docflow/internal/httputil"
)

// stats implements GET /internal/stats: an operator-facing rollup across
// every tenant, one TenantMetrics call per tenant.
func (g *gateway) stats(w http.ResponseWriter, r *http.Request) {
	tenants, err := g.deps.Store.ListTenants(r.Context())
	if err != nil {
		httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindTransient, "failed to list tenants", err))
		return
	}

	type tenantStats struct {
		TenantID      uuid.UUID `json:"tenant_id"`
		Name          string    `json:"name"`
		DocumentCount int       `json:"document_count"`
		TotalBytes    int64     `json:"total_bytes"`
	}

	breakdown := make([]tenantStats, 0, len(tenants))
	var totalDocs int
	var totalBytes int64
	for _, t := range tenants {
		m, err := g.deps.Store.TenantMetrics(r.Context(), t.ID)
		if err != nil {
			httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindTransient, "failed to load tenant metrics", err))
			return
		}
		breakdown = append(breakdown, tenantStats{
			TenantID:      t.ID,
			Name:          t.Name,
			DocumentCount: m.DocumentCount,
			TotalBytes:    m.TotalBytes,
		})
		totalDocs += m.DocumentCount
		totalBytes += m.TotalBytes
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"tenant_count":   len(tenants),
		"document_count": totalDocs,
		"total_bytes":    totalBytes,
		"tenants":        breakdown,
	})
}

// listDocuments implements GET /internal/documents?tenant_id=...: browsing
// stays tenant-scoped even for an internal-token caller, so tenant_id is
// required as a query parameter rather than optional.
func (g *gateway) listDocuments(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.URL.Query().Get("tenant_id"))
	if err != nil {
		httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindValidation, "tenant_id query parameter is required", err))
		return
	}
	docs, err := g.deps.Store.ListDocuments(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindTransient, "failed to list documents", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// getDocument implements GET /internal/documents/{document_id}?tenant_id=...
func (g *gateway) getDocument(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.URL.Query().Get("tenant_id"))
	if err != nil {
		httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindValidation, "tenant_id query parameter is required", err))
		return
	}
	documentID, err := uuid.Parse(chi.URLParam(r, "document_id"))
	if err != nil {
		httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindValidation, "invalid document_id", err))
		return
	}
	doc, err := g.deps.Store.GetDocument(r.Context(), tenantID, documentID)
	if err != nil {
		httputil.WriteError(g.log(), w, mapTenantLookupErr(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

type internalSearchRequest struct {
	Query          string  `json:"query" validate:"required,min=1,max=1000"`
	Limit          int     `json:"limit" validate:"omitempty,min=1,max=100"`
	ScoreThreshold float32 `json:"score_threshold" validate:"omitempty,min=0,max=1"`
}

// internalSearch implements POST /internal/search: the same ranked lookup
// as /search but without a tenant filter, for cross-tenant operator tooling.
func (g *gateway) internalSearch(w http.ResponseWriter, r *http.Request) {
	var req internalSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Fail(g.log(), w, "invalid payload", err, http.StatusBadRequest)
		return
	}
	if err := httputil.Validator.Struct(&req); err != nil {
		httputil.ValidationError(g.log(), w, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = 10
	}

	results, err := g.searcher.QueryAllTenants(r.Context(), req.Query, req.Limit, req.ScoreThreshold)
	if err != nil {
		httputil.WriteError(g.log(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}

// internalHealth implements GET /internal/health: a deeper check than the
// unauthenticated /healthz, gated behind the internal token so only
// operator tooling sees tenant-count diagnostics.
func (g *gateway) internalHealth(w http.ResponseWriter, r *http.Request) {
	tenants, err := g.deps.Store.ListTenants(r.Context())
	if err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "error": err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "tenant_count": len(tenants)})
}

// internalAuth implements GET /internal/auth: reaching the handler at all
// proves RequireInternal already validated X-Internal-Token, so this just
// confirms it back to the caller for credential-introspection tooling.
func (g *gateway) internalAuth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"authenticated": true, "scope": "internal"})
}
