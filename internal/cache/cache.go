package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Cache caches /search response bodies, keyed by the full parameter set
// that determines the result set: tenant, query text, limit, and score
// threshold (spec.md §4.7's search contract).
type Cache interface {
	// GetSearchResults retrieves cached results for key. Returns nil on a
	// cache miss.
	GetSearchResults(ctx context.Context, key Key) ([]Result, error)

	// SetSearchResults stores results for key with TTL.
	SetSearchResults(ctx context.Context, key Key, results []Result, ttl time.Duration) error

	// InvalidateDocument removes cached search results that might include
	// documentID, called on cascading delete (spec.md §4.8) so a deleted
	// document's chunks don't linger in a stale cached result set.
	InvalidateDocument(ctx context.Context, tenantID, documentID uuid.UUID) error

	Close() error
}

// Key identifies a cached search response.
type Key struct {
	TenantID       uuid.UUID
	Query          string
	Limit          int
	ScoreThreshold float32
}

// Result mirrors the ordered search result shape from spec.md §4.7.
type Result struct {
	ChunkID    uuid.UUID      `json:"chunk_id"`
	DocumentID uuid.UUID      `json:"document_id"`
	Filename   string         `json:"filename"`
	Text       string         `json:"text"`
	Score      float32        `json:"score"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
