package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/tomerlieber/docflow/internal/app"
	"github.com/tomerlieber/docflow/internal/blob"
	"github.com/tomerlieber/docflow/internal/cache"
	"github.com/tomerlieber/docflow/internal/config"
	"github.com/tomerlieber/docflow/internal/dispatcher"
	"github.com/tomerlieber/docflow/internal/embedder"
	"github.com/tomerlieber/docflow/internal/httputil"
	"github.com/tomerlieber/docflow/internal/queue"
	"github.com/tomerlieber/docflow/internal/ratelimit"
	"github.com/tomerlieber/docflow/internal/search"
	"github.com/tomerlieber/docflow/internal/store"
	"github.com/tomerlieber/docflow/internal/vectorindex"
)

const testAPIKey = "test-api-key"

// tenantRequest builds a request carrying X-API-Key and stubs the
// credential lookup the real ResolveCredentials middleware performs, so
// handler tests exercise the same auth path production traffic does.
func tenantRequest(st *store.MockStore, tenantID uuid.UUID, method, target string, body io.Reader) *http.Request {
	st.On("GetTenantByFingerprint", mock.Anything, httputil.FingerprintAPIKey(testAPIKey)).
		Return(store.Tenant{ID: tenantID, RateLimitPerMinute: 60}, nil).Maybe()
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("X-API-Key", testAPIKey)
	return req
}

// internalRequest builds a request carrying the internal-scope header.
func internalRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("X-Internal-Token", "test-internal-token")
	return req
}

// serveTenant runs req through ResolveCredentials + RequireTenant in front
// of h, the same chain cmd/gateway's routes() mounts for tenant routes.
func serveTenant(g *gateway, st store.Store, h http.HandlerFunc, req *http.Request, urlParams map[string]string) *httptest.ResponseRecorder {
	if len(urlParams) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range urlParams {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	w := httptest.NewRecorder()
	chain := httputil.ResolveCredentials(st, g.deps.Config.InternalToken, g.log())(
		httputil.RequireTenant(g.log())(h))
	chain.ServeHTTP(w, req)
	return w
}

// serveInternal runs req through ResolveCredentials + RequireInternal.
func serveInternal(g *gateway, st store.Store, h http.HandlerFunc, req *http.Request, urlParams map[string]string) *httptest.ResponseRecorder {
	if len(urlParams) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range urlParams {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	w := httptest.NewRecorder()
	chain := httputil.ResolveCredentials(st, g.deps.Config.InternalToken, g.log())(
		httputil.RequireInternal()(h))
	chain.ServeHTTP(w, req)
	return w
}

// testGateway wires a gateway around mocks, mirroring the teacher's
// newTestDeps helper from cmd/query/main_test.go.
func testGateway(st store.Store, bl blob.Store, idx vectorindex.Index, rl ratelimit.Limiter, ch cache.Cache, emb embedder.Embedder, sub *queue.MockSubstrate, bell *queue.MockDoorbell) *gateway {
	deps := app.Deps{
		Store:       st,
		Blob:        bl,
		VectorIndex: idx,
		RateLimiter: rl,
		Cache:       ch,
		Embedder:    emb,
		Config: config.Config{
			MaxUploadSize:          1024 * 1024,
			RateLimitWindowSeconds: 60,
			InternalToken:          "test-internal-token",
		},
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return &gateway{
		deps: deps,
		dispatcher: &dispatcher.Dispatcher{
			Store:       st,
			Blob:        bl,
			Substrate:   sub,
			Doorbell:    bell,
			VectorIndex: idx,
			Cache:       ch,
			MaxRetries:  3,
		},
		searcher: &search.Searcher{
			RateLimiter: rl,
			Embedder:    emb,
			Index:       idx,
			Store:       st,
			Cache:       ch,
			Window:      60 * time.Second,
			CacheTTL:    60 * time.Second,
		},
	}
}
