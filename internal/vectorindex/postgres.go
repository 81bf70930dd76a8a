package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tomerlieber/docflow/internal/apperr"
)

// PostgresIndex stores vector points in a pgvector-backed table on the same
// connection pool the metadata store uses. It provisions its own table and
// ivfflat index independently of internal/store's migrations so the two
// components stay decoupled even though they share a database.
type PostgresIndex struct {
	db        *sql.DB
	dimension int
}

// NewPostgresIndex wires an index against an already-open pool (shared with
// internal/store.PostgresStore) and ensures its schema exists.
func NewPostgresIndex(db *sql.DB, dimension int) (*PostgresIndex, error) {
	idx := &PostgresIndex{db: db, dimension: dimension}
	if err := idx.migrate(context.Background()); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *PostgresIndex) migrate(ctx context.Context) error {
	stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS vector_points (
			chunk_id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			document_id UUID NOT NULL,
			filename TEXT,
			chunk_index INT,
			metadata JSONB,
			embedding vector(%d)
		);`, idx.dimension)
	if _, err := idx.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create vector_points table: %w", err)
	}
	if _, err := idx.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS vector_points_tenant_idx ON vector_points(tenant_id)`); err != nil {
		return fmt.Errorf("failed to create tenant payload index: %w", err)
	}
	_, err := idx.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS vector_points_embedding_idx
		ON vector_points USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`)
	if err != nil {
		return fmt.Errorf("failed to create ann index: %w", err)
	}
	return nil
}

func (idx *PostgresIndex) Close() error { return nil } // pool lifecycle owned by internal/store

func (idx *PostgresIndex) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range points {
		if len(p.Vector) != idx.dimension {
			return apperr.New(apperr.KindPermanent, fmt.Sprintf(
				"vector dimension mismatch: got %d, index configured for %d", len(p.Vector), idx.dimension))
		}
		metaJSON, err := json.Marshal(p.Metadata)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO vector_points(chunk_id, tenant_id, document_id, filename, chunk_index, metadata, embedding)
			VALUES ($1,$2,$3,$4,$5,$6,$7::vector)
			ON CONFLICT (chunk_id) DO UPDATE SET
				tenant_id = excluded.tenant_id,
				document_id = excluded.document_id,
				filename = excluded.filename,
				chunk_index = excluded.chunk_index,
				metadata = excluded.metadata,
				embedding = excluded.embedding`,
			p.ChunkID, p.TenantID, p.DocumentID, p.Filename, p.ChunkIndex, metaJSON, vectorToString(p.Vector))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (idx *PostgresIndex) QueryByTenant(ctx context.Context, tenantID uuid.UUID, vector []float32, topK int) ([]Match, error) {
	if len(vector) != idx.dimension {
		return nil, apperr.New(apperr.KindPermanent, fmt.Sprintf(
			"query vector dimension mismatch: got %d, index configured for %d", len(vector), idx.dimension))
	}
	rows, err := idx.db.QueryContext(ctx, `
		SELECT chunk_id, tenant_id, document_id, filename, chunk_index, metadata,
			1 - (embedding <=> $1::vector) AS similarity
		FROM vector_points
		WHERE tenant_id = $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3`, vectorToString(vector), tenantID, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		var metaJSON []byte
		if err := rows.Scan(&m.Point.ChunkID, &m.Point.TenantID, &m.Point.DocumentID, &m.Point.Filename, &m.Point.ChunkIndex, &metaJSON, &m.Score); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &m.Point.Metadata)
		}
		if m.Point.TenantID != tenantID {
			// Hard assertion failure per the tenant-isolation invariant:
			// never silently filter a cross-tenant hit.
			return nil, apperr.New(apperr.KindConsistency, "vector search returned a foreign tenant_id")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// QueryAll runs the same similarity search as QueryByTenant but with no
// tenant_id predicate, scanning the whole index. Used only by the
// cross-tenant operator search path.
func (idx *PostgresIndex) QueryAll(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if len(vector) != idx.dimension {
		return nil, apperr.New(apperr.KindPermanent, fmt.Sprintf(
			"query vector dimension mismatch: got %d, index configured for %d", len(vector), idx.dimension))
	}
	rows, err := idx.db.QueryContext(ctx, `
		SELECT chunk_id, tenant_id, document_id, filename, chunk_index, metadata,
			1 - (embedding <=> $1::vector) AS similarity
		FROM vector_points
		ORDER BY embedding <=> $1::vector
		LIMIT $2`, vectorToString(vector), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		var metaJSON []byte
		if err := rows.Scan(&m.Point.ChunkID, &m.Point.TenantID, &m.Point.DocumentID, &m.Point.Filename, &m.Point.ChunkIndex, &metaJSON, &m.Score); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &m.Point.Metadata)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (idx *PostgresIndex) DeleteByDocument(ctx context.Context, tenantID, documentID uuid.UUID) (int64, error) {
	res, err := idx.db.ExecContext(ctx, `
		DELETE FROM vector_points WHERE document_id = $1 AND tenant_id = $2`, documentID, tenantID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// vectorToString converts a []float32 to pgvector's textual array format:
// "[0.1,0.2,0.3,...]".
func vectorToString(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = strconv.FormatFloat(float64(val), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
