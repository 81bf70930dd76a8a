package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomerlieber/docflow/internal/apperr"
	"github.com/tomerlieber/docflow/internal/httputil"
	"github.com/tomerlieber/docflow/internal/store"
)

type createTenantRequest struct {
	Name               string `json:"name" validate:"required,min=1,max=200"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute" validate:"omitempty,min=1"`
}

// createTenant implements POST /internal/tenants. The raw API key is
// generated here and returned exactly once; only its sha256 fingerprint is
// ever persisted, mirroring how a forgotten password can't be recovered,
// only reset.
func (g *gateway) createTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Fail(g.log(), w, "invalid payload", err, http.StatusBadRequest)
		return
	}
	if err := httputil.Validator.Struct(&req); err != nil {
		httputil.ValidationError(g.log(), w, err)
		return
	}
	if req.RateLimitPerMinute == 0 {
		req.RateLimitPerMinute = 60
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindTransient, "failed to generate credential", err))
		return
	}

	tenant, err := g.deps.Store.CreateTenant(r.Context(), req.Name, httputil.FingerprintAPIKey(apiKey), req.RateLimitPerMinute)
	if err != nil {
		httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindTransient, "failed to create tenant", err))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"tenant_id":             tenant.ID,
		"name":                  tenant.Name,
		"rate_limit_per_minute": tenant.RateLimitPerMinute,
		"api_key":               apiKey,
	})
}

func (g *gateway) listTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := g.deps.Store.ListTenants(r.Context())
	if err != nil {
		httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindTransient, "failed to list tenants", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

func (g *gateway) getTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenant_id"))
	if err != nil {
		httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindValidation, "invalid tenant_id", err))
		return
	}
	tenant, err := g.deps.Store.GetTenant(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(g.log(), w, mapTenantLookupErr(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tenant)
}

func (g *gateway) deleteTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenant_id"))
	if err != nil {
		httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindValidation, "invalid tenant_id", err))
		return
	}
	if err := g.deps.Store.DeleteTenant(r.Context(), tenantID); err != nil {
		httputil.WriteError(g.log(), w, mapTenantLookupErr(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// rotateCredential implements POST /internal/tenants/{tenant_id}/rotate,
// replacing the tenant's fingerprint and returning the new raw key once.
func (g *gateway) rotateCredential(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenant_id"))
	if err != nil {
		httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindValidation, "invalid tenant_id", err))
		return
	}
	apiKey, err := generateAPIKey()
	if err != nil {
		httputil.WriteError(g.log(), w, apperr.Wrap(apperr.KindTransient, "failed to generate credential", err))
		return
	}
	if err := g.deps.Store.RotateCredential(r.Context(), tenantID, httputil.FingerprintAPIKey(apiKey)); err != nil {
		httputil.WriteError(g.log(), w, mapTenantLookupErr(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"api_key": apiKey})
}

func mapTenantLookupErr(err error) error {
	if err == store.ErrNotFound {
		return apperr.New(apperr.KindNotFound, "tenant not found")
	}
	return apperr.Wrap(apperr.KindTransient, "tenant lookup failed", err)
}

// generateAPIKey returns 32 bytes of CSPRNG entropy, hex-encoded, the same
// way httputil.FingerprintAPIKey expects a raw X-API-Key value.
func generateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
