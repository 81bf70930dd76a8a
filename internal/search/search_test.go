package search

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tomerlieber/docflow/internal/apperr"
	"github.com/tomerlieber/docflow/internal/cache"
	"github.com/tomerlieber/docflow/internal/embedder"
	"github.com/tomerlieber/docflow/internal/ratelimit"
	"github.com/tomerlieber/docflow/internal/store"
	"github.com/tomerlieber/docflow/internal/vectorindex"
)

func TestSearchDeniesWhenRateLimited(t *testing.T) {
	tenantID := uuid.New()
	limiter := &ratelimit.MockLimiter{}
	limiter.On("Allow", mock.Anything, tenantID, 10, time.Minute, mock.Anything).
		Return(ratelimit.Decision{Allowed: false, RetryAfterMS: 500}, nil)

	s := &Searcher{RateLimiter: limiter, Window: time.Minute}
	_, err := s.Search(context.Background(), 10, Request{TenantID: tenantID, Query: "q", Limit: 5})
	require.Error(t, err)
	require.Equal(t, apperr.KindRateLimited, apperr.KindOf(err))
}

func TestSearchReturnsCachedResultsWithoutQuerying(t *testing.T) {
	tenantID := uuid.New()
	limiter := &ratelimit.MockLimiter{}
	limiter.On("Allow", mock.Anything, tenantID, 10, time.Minute, mock.Anything).
		Return(ratelimit.Decision{Allowed: true}, nil)

	cached := []cache.Result{{ChunkID: uuid.New(), Text: "cached hit"}}
	mockCache := &cache.MockCache{}
	mockCache.On("GetSearchResults", mock.Anything, mock.AnythingOfType("cache.Key")).Return(cached, nil)

	index := &vectorindex.MockIndex{}
	emb := embedder.NewMockEmbedder(3)

	s := &Searcher{RateLimiter: limiter, Window: time.Minute, Cache: mockCache, Index: index, Embedder: emb}
	results, err := s.Search(context.Background(), 10, Request{TenantID: tenantID, Query: "q", Limit: 5})
	require.NoError(t, err)
	require.Equal(t, cached, results)
	index.AssertNotCalled(t, "QueryByTenant", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSearchHydratesTextAndFillsCache(t *testing.T) {
	tenantID, docID, chunkID := uuid.New(), uuid.New(), uuid.New()
	limiter := &ratelimit.MockLimiter{}
	limiter.On("Allow", mock.Anything, tenantID, 10, time.Minute, mock.Anything).
		Return(ratelimit.Decision{Allowed: true}, nil)

	mockCache := &cache.MockCache{}
	mockCache.On("GetSearchResults", mock.Anything, mock.AnythingOfType("cache.Key")).Return(nil, nil)
	mockCache.On("SetSearchResults", mock.Anything, mock.AnythingOfType("cache.Key"), mock.Anything, mock.Anything).Return(nil)

	emb := embedder.NewMockEmbedder(3)
	emb.On("EmbedBatch", mock.Anything, []string{"find me"}).Return([]embedder.Vector{{0.1, 0.2, 0.3}}, nil)

	index := &vectorindex.MockIndex{}
	index.On("QueryByTenant", mock.Anything, tenantID, []float32{0.1, 0.2, 0.3}, 5).Return([]vectorindex.Match{
		{Point: vectorindex.Point{ChunkID: chunkID, TenantID: tenantID, DocumentID: docID, Filename: "a.txt"}, Score: 0.9},
	}, nil)

	st := &store.MockStore{}
	st.On("GetChunks", mock.Anything, tenantID, []uuid.UUID{chunkID}).Return([]store.Chunk{
		{ID: chunkID, DocumentID: docID, TenantID: tenantID, Text: "the matched chunk"},
	}, nil)

	s := &Searcher{RateLimiter: limiter, Window: time.Minute, Cache: mockCache, Index: index, Embedder: emb, Store: st, CacheTTL: time.Minute}
	results, err := s.Search(context.Background(), 10, Request{TenantID: tenantID, Query: "find me", Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "the matched chunk", results[0].Text)
	require.Equal(t, "a.txt", results[0].Filename)
}

func TestSearchRejectsCrossTenantVectorMatch(t *testing.T) {
	tenantID, otherTenant := uuid.New(), uuid.New()
	limiter := &ratelimit.MockLimiter{}
	limiter.On("Allow", mock.Anything, tenantID, 10, time.Minute, mock.Anything).
		Return(ratelimit.Decision{Allowed: true}, nil)

	mockCache := &cache.MockCache{}
	mockCache.On("GetSearchResults", mock.Anything, mock.AnythingOfType("cache.Key")).Return(nil, nil)

	emb := embedder.NewMockEmbedder(3)
	emb.On("EmbedBatch", mock.Anything, []string{"q"}).Return([]embedder.Vector{{0.1, 0.2, 0.3}}, nil)

	index := &vectorindex.MockIndex{}
	index.On("QueryByTenant", mock.Anything, tenantID, []float32{0.1, 0.2, 0.3}, 5).Return([]vectorindex.Match{
		{Point: vectorindex.Point{ChunkID: uuid.New(), TenantID: otherTenant}, Score: 0.9},
	}, nil)

	s := &Searcher{RateLimiter: limiter, Window: time.Minute, Cache: mockCache, Index: index, Embedder: emb}
	_, err := s.Search(context.Background(), 10, Request{TenantID: tenantID, Query: "q", Limit: 5})
	require.Error(t, err)
	require.Equal(t, apperr.KindConsistency, apperr.KindOf(err))
}

func TestQueryAllTenantsSpansTenantsWithNoTenantFilter(t *testing.T) {
	tenantA, tenantB := uuid.New(), uuid.New()
	chunkA, chunkB := uuid.New(), uuid.New()

	emb := embedder.NewMockEmbedder(3)
	emb.On("EmbedBatch", mock.Anything, []string{"operator query"}).Return([]embedder.Vector{{0.1, 0.2, 0.3}}, nil)

	index := &vectorindex.MockIndex{}
	index.On("QueryAll", mock.Anything, []float32{0.1, 0.2, 0.3}, 5).Return([]vectorindex.Match{
		{Point: vectorindex.Point{ChunkID: chunkA, TenantID: tenantA}, Score: 0.9},
		{Point: vectorindex.Point{ChunkID: chunkB, TenantID: tenantB}, Score: 0.8},
	}, nil)

	st := &store.MockStore{}
	st.On("GetChunks", mock.Anything, tenantA, []uuid.UUID{chunkA}).Return([]store.Chunk{{ID: chunkA, Text: "from tenant a"}}, nil)
	st.On("GetChunks", mock.Anything, tenantB, []uuid.UUID{chunkB}).Return([]store.Chunk{{ID: chunkB, Text: "from tenant b"}}, nil)

	s := &Searcher{Index: index, Embedder: emb, Store: st}
	results, err := s.QueryAllTenants(context.Background(), "operator query", 5, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	index.AssertNotCalled(t, "QueryByTenant", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSearchFiltersByScoreThreshold(t *testing.T) {
	tenantID, chunkID := uuid.New(), uuid.New()
	limiter := &ratelimit.MockLimiter{}
	limiter.On("Allow", mock.Anything, tenantID, 10, time.Minute, mock.Anything).
		Return(ratelimit.Decision{Allowed: true}, nil)

	mockCache := &cache.MockCache{}
	mockCache.On("GetSearchResults", mock.Anything, mock.AnythingOfType("cache.Key")).Return(nil, nil)
	mockCache.On("SetSearchResults", mock.Anything, mock.AnythingOfType("cache.Key"), mock.Anything, mock.Anything).Return(nil)

	emb := embedder.NewMockEmbedder(3)
	emb.On("EmbedBatch", mock.Anything, []string{"q"}).Return([]embedder.Vector{{0.1, 0.2, 0.3}}, nil)

	index := &vectorindex.MockIndex{}
	index.On("QueryByTenant", mock.Anything, tenantID, []float32{0.1, 0.2, 0.3}, 5).Return([]vectorindex.Match{
		{Point: vectorindex.Point{ChunkID: chunkID, TenantID: tenantID}, Score: 0.2},
	}, nil)

	st := &store.MockStore{}

	s := &Searcher{RateLimiter: limiter, Window: time.Minute, Cache: mockCache, Index: index, Embedder: emb, Store: st, CacheTTL: time.Minute}
	results, err := s.Search(context.Background(), 10, Request{TenantID: tenantID, Query: "q", Limit: 5, ScoreThreshold: 0.5})
	require.NoError(t, err)
	require.Empty(t, results)
	st.AssertNotCalled(t, "GetChunks", mock.Anything, mock.Anything, mock.Anything)
}
