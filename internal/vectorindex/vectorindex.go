// Package vectorindex holds approximate-nearest-neighbor points over chunk
// embeddings, kept as its own component (distinct from internal/store) per
// the system's component model even though the production implementation
// shares the metadata store's Postgres/pgvector connection pool.
package vectorindex

import (
	"context"

	"github.com/google/uuid"
)

// Point is one vector in the index. PointID is always the chunk_id, so
// upserts are idempotent by construction.
type Point struct {
	ChunkID    uuid.UUID
	TenantID   uuid.UUID
	DocumentID uuid.UUID
	Filename   string
	ChunkIndex int
	Metadata   map[string]any
	Vector     []float32
}

// Match is a single search hit, scored by cosine similarity (higher is
// better).
type Match struct {
	Point Point
	Score float32
}

// Index is the vector-index component. QueryByTenant and DeleteByDocument
// are scoped to a tenant_id filter; QueryAll is the one unscoped query.
// Upsert stores each point's own TenantID as given and does not check it
// against any other tenant value.
type Index interface {
	// Upsert inserts or replaces points. dimension must match every vector's
	// length, or the call fails with a permanent (non-retryable) error.
	Upsert(ctx context.Context, points []Point) error

	// QueryByTenant returns the topK nearest points to vector, filtered to
	// tenantID, ordered by descending score.
	QueryByTenant(ctx context.Context, tenantID uuid.UUID, vector []float32, topK int) ([]Match, error)

	// QueryAll returns the topK nearest points to vector across every
	// tenant, with no tenant_id predicate at all. Reserved for the
	// cross-tenant operator search path (spec.md §6 /internal/search);
	// never call this from a tenant-scoped code path.
	QueryAll(ctx context.Context, vector []float32, topK int) ([]Match, error)

	// DeleteByDocument removes every point belonging to documentID, scoped
	// to tenantID, and reports how many were removed.
	DeleteByDocument(ctx context.Context, tenantID, documentID uuid.UUID) (int64, error)

	Close() error
}
