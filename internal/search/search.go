// Package search implements the read path from spec.md §4.7: rate-limit
// check, query embedding, tenant-filtered vector lookup, and a hard
// tenant-isolation assertion over the results, with an optional response
// cache in front of the vector index.
package search

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tomerlieber/docflow/internal/apperr"
	"github.com/tomerlieber/docflow/internal/cache"
	"github.com/tomerlieber/docflow/internal/embedder"
	"github.com/tomerlieber/docflow/internal/ratelimit"
	"github.com/tomerlieber/docflow/internal/store"
	"github.com/tomerlieber/docflow/internal/vectorindex"
)

// Request is the input to Search, mirroring spec.md §6's /search body.
type Request struct {
	TenantID       uuid.UUID
	Query          string
	Limit          int
	ScoreThreshold float32
}

// Searcher ties the rate limiter, embedder, vector index, metadata store,
// and cache together into the §4.7 procedure. The vector index's payload
// doesn't carry chunk text (only tenant/document/chunk identifiers and
// opaque metadata), so results are hydrated with text from the metadata
// store, the one place it's durably kept.
type Searcher struct {
	RateLimiter ratelimit.Limiter
	Embedder    embedder.Embedder
	Index       vectorindex.Index
	Store       store.Store
	Cache       cache.Cache
	Window      time.Duration // rate-limit window (config.RateLimitWindowSeconds)
	CacheTTL    time.Duration
}

// Search runs the tenant-scoped procedure: rate-limit admission, cache
// lookup, embed, vector query, tenant-isolation assertion, cache fill.
func (s *Searcher) Search(ctx context.Context, tenantLimit int, req Request) ([]cache.Result, error) {
	now := time.Now()
	decision, err := s.RateLimiter.Allow(ctx, req.TenantID, tenantLimit, s.Window, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "rate limit check failed", err)
	}
	if !decision.Allowed {
		return nil, apperr.NewRateLimited("rate limit exceeded", decision.RetryAfterMS)
	}

	key := cache.Key{TenantID: req.TenantID, Query: req.Query, Limit: req.Limit, ScoreThreshold: req.ScoreThreshold}
	if s.Cache != nil {
		if cached, err := s.Cache.GetSearchResults(ctx, key); err == nil && cached != nil {
			return cached, nil
		}
	}

	matches, err := s.queryVectors(ctx, req.TenantID, req.Query, req.Limit)
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		if m.Point.TenantID != req.TenantID {
			return nil, apperr.New(apperr.KindConsistency, "vector index returned a point from a different tenant")
		}
	}

	results, err := s.hydrate(ctx, req.TenantID, matches, req.ScoreThreshold)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		_ = s.Cache.SetSearchResults(ctx, key, results, s.CacheTTL)
	}
	return results, nil
}

// QueryAllTenants runs the §4.7 vector lookup without a single-tenant
// filter, for /internal/search. Each match is still hydrated with its own
// tenant's chunk text; there's just no one tenant_id to assert equality
// against since this path is intentionally cross-tenant.
func (s *Searcher) QueryAllTenants(ctx context.Context, queryText string, limit int, scoreThreshold float32) ([]cache.Result, error) {
	vectors, err := s.Embedder.EmbedBatch(ctx, []string{queryText})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "query embedding failed", err)
	}
	if len(vectors) != 1 {
		return nil, apperr.New(apperr.KindTransient, "embedder returned unexpected vector count")
	}
	matches, err := s.Index.QueryAll(ctx, vectors[0], limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "vector index query failed", err)
	}
	return s.hydrateCrossTenant(ctx, matches, scoreThreshold)
}

func (s *Searcher) queryVectors(ctx context.Context, tenantID uuid.UUID, queryText string, limit int) ([]vectorindex.Match, error) {
	vectors, err := s.Embedder.EmbedBatch(ctx, []string{queryText})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "query embedding failed", err)
	}
	if len(vectors) != 1 {
		return nil, apperr.New(apperr.KindTransient, "embedder returned unexpected vector count")
	}
	matches, err := s.Index.QueryByTenant(ctx, tenantID, vectors[0], limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "vector index query failed", err)
	}
	return matches, nil
}

// hydrate fetches chunk text for a single tenant's matches via one
// tenant-scoped GetChunks call, which doubles as a second isolation check.
func (s *Searcher) hydrate(ctx context.Context, tenantID uuid.UUID, matches []vectorindex.Match, scoreThreshold float32) ([]cache.Result, error) {
	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		if m.Score >= scoreThreshold {
			ids = append(ids, m.Point.ChunkID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	chunks, err := s.Store.GetChunks(ctx, tenantID, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "load chunk text for search results", err)
	}
	textByID := make(map[uuid.UUID]string, len(chunks))
	for _, c := range chunks {
		textByID[c.ID] = c.Text
	}

	results := make([]cache.Result, 0, len(matches))
	for _, m := range matches {
		if m.Score < scoreThreshold {
			continue
		}
		text, ok := textByID[m.Point.ChunkID]
		if !ok {
			return nil, apperr.New(apperr.KindConsistency, "search hit a vector point with no matching tenant-scoped chunk row")
		}
		results = append(results, toResult(m, text))
	}
	return results, nil
}

// hydrateCrossTenant looks up each match's tenant individually since the
// match set can span tenants; used only by /internal/search.
func (s *Searcher) hydrateCrossTenant(ctx context.Context, matches []vectorindex.Match, scoreThreshold float32) ([]cache.Result, error) {
	results := make([]cache.Result, 0, len(matches))
	for _, m := range matches {
		if m.Score < scoreThreshold {
			continue
		}
		chunks, err := s.Store.GetChunks(ctx, m.Point.TenantID, []uuid.UUID{m.Point.ChunkID})
		if err != nil || len(chunks) != 1 {
			continue
		}
		results = append(results, toResult(m, chunks[0].Text))
	}
	return results, nil
}

func toResult(m vectorindex.Match, text string) cache.Result {
	return cache.Result{
		ChunkID:    m.Point.ChunkID,
		DocumentID: m.Point.DocumentID,
		Filename:   m.Point.Filename,
		Text:       text,
		Score:      m.Score,
		Metadata:   m.Point.Metadata,
	}
}
