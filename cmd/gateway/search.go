package main

import (
	"encoding/json"
	"net/http"

	"github.com/tomerlieber/docflow/internal/apperr"
	"github.com/tomerlieber/docflow/internal/httputil"
	"github.com/tomerlieber/docflow/internal/search"
)

// searchRequest mirrors spec.md §6's POST /search body.
type searchRequest struct {
	Query          string  `json:"query" validate:"required,min=1,max=1000"`
	Limit          int     `json:"limit" validate:"omitempty,min=1,max=100"`
	ScoreThreshold float32 `json:"score_threshold" validate:"omitempty,min=0,max=1"`
}

// search implements POST /search: ranked results scoped to the caller's
// tenant, grounded on the teacher's cmd/query/main.go decode-validate-call
// idiom.
func (g *gateway) search(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := httputil.TenantID(r.Context())

	var req searchRequest
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

	tenant, err := g.deps.Store.GetTenant(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindTransient, "failed to resolve tenant", err))
		return
	}

	results, err := g.searcher.Search(r.Context(), tenant.RateLimitPerMinute, search.Request{
		TenantID:       tenantID,
		Query:          req.Query,
		Limit:          req.Limit,
		ScoreThreshold: req.ScoreThreshold,
	})
	if err != nil {
		httputil.WriteError(g.log(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}
