package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore is the production Store implementation. It also provisions
// the pgvector extension used by internal/vectorindex, since both packages
// share the same connection pool.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres opens a pool against dsn and runs migrations.
func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying pool so internal/vectorindex can share it.
func (s *PostgresStore) DB() *sql.DB { return s.db }

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Use advisory lock to prevent concurrent migrations from multiple
	// service instances starting up at once.
	const lockID = 123456789

	var acquired bool
	if err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !acquired {
		time.Sleep(2 * time.Second)
		return nil
	}
	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id UUID PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			credential_fingerprint TEXT UNIQUE NOT NULL,
			rate_limit_per_minute INT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			filename TEXT NOT NULL,
			blob_path TEXT NOT NULL,
			size_bytes BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			metadata JSONB,
			failed_deletion BOOLEAN NOT NULL DEFAULT false,
			summary TEXT,
			summary_key_points JSONB,
			created_at TIMESTAMPTZ DEFAULT now(),
			updated_at TIMESTAMPTZ DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS documents_tenant_idx ON documents(tenant_id);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			text TEXT NOT NULL,
			vector_snapshot_path TEXT,
			metadata JSONB
		);`,
		`CREATE INDEX IF NOT EXISTS chunks_document_idx ON chunks(document_id);`,
		`CREATE INDEX IF NOT EXISTS chunks_tenant_idx ON chunks(tenant_id);`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			document_id UUID NOT NULL,
			stage TEXT NOT NULL,
			status TEXT NOT NULL,
			payload BYTEA,
			retry_count INT NOT NULL DEFAULT 0,
			max_retries INT NOT NULL DEFAULT 3,
			error_message TEXT,
			created_at TIMESTAMPTZ DEFAULT now(),
			updated_at TIMESTAMPTZ DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS jobs_document_idx ON jobs(document_id);`,
		`CREATE INDEX IF NOT EXISTS jobs_tenant_idx ON jobs(tenant_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// --- Tenants ---

func (s *PostgresStore) CreateTenant(ctx context.Context, name, credentialFingerprint string, rateLimitPerMinute int) (Tenant, error) {
	t := Tenant{
		ID:                    uuid.New(),
		Name:                  name,
		CredentialFingerprint: credentialFingerprint,
		RateLimitPerMinute:    rateLimitPerMinute,
		CreatedAt:             time.Now(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants(id, name, credential_fingerprint, rate_limit_per_minute, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		t.ID, t.Name, t.CredentialFingerprint, t.RateLimitPerMinute, t.CreatedAt)
	if err != nil {
		return Tenant{}, err
	}
	return t, nil
}

func (s *PostgresStore) GetTenant(ctx context.Context, tenantID uuid.UUID) (Tenant, error) {
	var t Tenant
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, credential_fingerprint, rate_limit_per_minute, created_at
		FROM tenants WHERE id = $1`, tenantID)
	if err := row.Scan(&t.ID, &t.Name, &t.CredentialFingerprint, &t.RateLimitPerMinute, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

func (s *PostgresStore) GetTenantByFingerprint(ctx context.Context, fingerprint string) (Tenant, error) {
	var t Tenant
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, credential_fingerprint, rate_limit_per_minute, created_at
		FROM tenants WHERE credential_fingerprint = $1`, fingerprint)
	if err := row.Scan(&t.ID, &t.Name, &t.CredentialFingerprint, &t.RateLimitPerMinute, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

func (s *PostgresStore) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, credential_fingerprint, rate_limit_per_minute, created_at FROM tenants ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CredentialFingerprint, &t.RateLimitPerMinute, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RotateCredential(ctx context.Context, tenantID uuid.UUID, newFingerprint string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tenants SET credential_fingerprint = $1 WHERE id = $2`, newFingerprint, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteTenant(ctx context.Context, tenantID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = $1`, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TenantMetrics(ctx context.Context, tenantID uuid.UUID) (TenantMetrics, error) {
	var m TenantMetrics
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size_bytes),0), MAX(created_at)
		FROM documents WHERE tenant_id = $1`, tenantID)
	var last sql.NullTime
	if err := row.Scan(&m.DocumentCount, &m.TotalBytes, &last); err != nil {
		return TenantMetrics{}, err
	}
	if last.Valid {
		m.LastUploadedAt = &last.Time
	}
	return m, nil
}

// --- Documents ---

func (s *PostgresStore) CreateDocument(ctx context.Context, tenantID, documentID uuid.UUID, filename, blobPath string, sizeBytes int64, metadata map[string]any) (Document, error) {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return Document{}, err
	}
	if documentID == uuid.Nil {
		documentID = uuid.New()
	}
	now := time.Now()
	d := Document{
		ID:        documentID,
		TenantID:  tenantID,
		Filename:  filename,
		BlobPath:  blobPath,
		SizeBytes: sizeBytes,
		Status:    StatusPending,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents(id, tenant_id, filename, blob_path, size_bytes, status, metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		d.ID, d.TenantID, d.Filename, d.BlobPath, d.SizeBytes, d.Status, metaJSON, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return Document{}, err
	}
	return d, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, tenantID, documentID uuid.UUID) (Document, error) {
	var d Document
	var metaJSON, keyPointsJSON []byte
	var summary sql.NullString
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, filename, blob_path, size_bytes, status, metadata, failed_deletion, summary, summary_key_points, created_at, updated_at
		FROM documents WHERE id = $1 AND tenant_id = $2`, documentID, tenantID)
	if err := row.Scan(&d.ID, &d.TenantID, &d.Filename, &d.BlobPath, &d.SizeBytes, &d.Status, &metaJSON, &d.FailedDeletion, &summary, &keyPointsJSON, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	if summary.Valid && summary.String != "" {
		d.Summary = &DocumentSummary{Text: summary.String}
		if len(keyPointsJSON) > 0 {
			_ = json.Unmarshal(keyPointsJSON, &d.Summary.KeyPoints)
		}
	}
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &d.Metadata)
	}
	return d, nil
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, tenantID, documentID uuid.UUID, status DocumentStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = $1, updated_at = now() WHERE id = $2 AND tenant_id = $3`,
		status, documentID, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkDocumentFailed(ctx context.Context, tenantID, documentID uuid.UUID, errMsg string) error {
	return s.UpdateDocumentStatus(ctx, tenantID, documentID, StatusFailed)
}

func (s *PostgresStore) MarkFailedDeletion(ctx context.Context, tenantID, documentID uuid.UUID, failed bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET failed_deletion = $1, updated_at = now() WHERE id = $2 AND tenant_id = $3`,
		failed, documentID, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetDocumentSummary(ctx context.Context, tenantID, documentID uuid.UUID, text string, keyPoints []string) error {
	keyPointsJSON, err := json.Marshal(keyPoints)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET summary = $1, summary_key_points = $2, updated_at = now() WHERE id = $3 AND tenant_id = $4`,
		text, keyPointsJSON, documentID, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteDocumentRow(ctx context.Context, tenantID, documentID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1 AND tenant_id = $2`, documentID, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListDocumentsWithFailedDeletion(ctx context.Context, tenantID uuid.UUID) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, filename, blob_path, size_bytes, status, metadata, failed_deletion, created_at, updated_at
		FROM documents WHERE tenant_id = $1 AND failed_deletion = true`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		var d Document
		var metaJSON []byte
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Filename, &d.BlobPath, &d.SizeBytes, &d.Status, &metaJSON, &d.FailedDeletion, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &d.Metadata)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListDocuments(ctx context.Context, tenantID uuid.UUID) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, filename, blob_path, size_bytes, status, metadata, failed_deletion, summary, summary_key_points, created_at, updated_at
		FROM documents WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT 1000`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		var d Document
		var metaJSON, keyPointsJSON []byte
		var summary sql.NullString
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Filename, &d.BlobPath, &d.SizeBytes, &d.Status, &metaJSON, &d.FailedDeletion, &summary, &keyPointsJSON, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if summary.Valid && summary.String != "" {
			d.Summary = &DocumentSummary{Text: summary.String}
			if len(keyPointsJSON) > 0 {
				_ = json.Unmarshal(keyPointsJSON, &d.Summary.KeyPoints)
			}
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &d.Metadata)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// --- Chunks ---

func (s *PostgresStore) SaveChunks(ctx context.Context, tenantID, documentID uuid.UUID, chunks []Chunk) ([]Chunk, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, err
		}
		id := uuid.New()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunks(id, document_id, tenant_id, chunk_index, text, metadata)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			id, documentID, tenantID, c.ChunkIndex, c.Text, metaJSON)
		if err != nil {
			return nil, err
		}
		c.ID = id
		c.DocumentID = documentID
		c.TenantID = tenantID
		out = append(out, c)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) ListChunks(ctx context.Context, tenantID, documentID uuid.UUID) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, tenant_id, chunk_index, text, vector_snapshot_path, metadata
		FROM chunks WHERE document_id = $1 AND tenant_id = $2 ORDER BY chunk_index`, documentID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (s *PostgresStore) GetChunks(ctx context.Context, tenantID uuid.UUID, chunkIDs []uuid.UUID) ([]Chunk, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, tenant_id, chunk_index, text, vector_snapshot_path, metadata
		FROM chunks WHERE tenant_id = $1 AND id = ANY($2)`, tenantID, uuidArray(chunkIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]Chunk, error) {
	var out []Chunk
	for rows.Next() {
		var c Chunk
		var metaJSON []byte
		var snapshot sql.NullString
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.TenantID, &c.ChunkIndex, &c.Text, &snapshot, &metaJSON); err != nil {
			return nil, err
		}
		if snapshot.Valid {
			c.VectorSnapshotPath = &snapshot.String
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &c.Metadata)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetChunkVectorSnapshotPath(ctx context.Context, tenantID, chunkID uuid.UUID, path string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chunks SET vector_snapshot_path = $1 WHERE id = $2 AND tenant_id = $3`,
		path, chunkID, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AllChunksEmbedded(ctx context.Context, tenantID, documentID uuid.UUID) (bool, error) {
	var missing int
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chunks
		WHERE document_id = $1 AND tenant_id = $2 AND vector_snapshot_path IS NULL`, documentID, tenantID)
	if err := row.Scan(&missing); err != nil {
		return false, err
	}
	return missing == 0, nil
}

func (s *PostgresStore) DeleteChunksByDocument(ctx context.Context, tenantID, documentID uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1 AND tenant_id = $2`, documentID, tenantID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job Job) (Job, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = JobPending
	}
	now := time.Now()
	job.CreatedAt, job.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs(id, tenant_id, document_id, stage, status, payload, retry_count, max_retries, error_message, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		job.ID, job.TenantID, job.DocumentID, job.Stage, job.Status, job.Payload, job.RetryCount, job.MaxRetries, job.ErrorMessage, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return Job{}, err
	}
	return job, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (Job, error) {
	var j Job
	var errMsg sql.NullString
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, document_id, stage, status, payload, retry_count, max_retries, error_message, created_at, updated_at
		FROM jobs WHERE id = $1 AND tenant_id = $2`, jobID, tenantID)
	if err := row.Scan(&j.ID, &j.TenantID, &j.DocumentID, &j.Stage, &j.Status, &j.Payload, &j.RetryCount, &j.MaxRetries, &errMsg, &j.CreatedAt, &j.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	j.ErrorMessage = errMsg.String
	return j, nil
}

func (s *PostgresStore) TransitionJob(ctx context.Context, tenantID, jobID uuid.UUID, fromStatus, toStatus JobStatus, errMsg string, retryCount int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = $1, error_message = $2, retry_count = $3, updated_at = now()
		WHERE id = $4 AND tenant_id = $5 AND status = $6`,
		toStatus, nullableString(errMsg), retryCount, jobID, tenantID, fromStatus)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) ListJobsByDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, document_id, stage, status, payload, retry_count, max_retries, error_message, created_at, updated_at
		FROM jobs WHERE document_id = $1 AND tenant_id = $2 ORDER BY created_at`, documentID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Job
	for rows.Next() {
		var j Job
		var errMsg sql.NullString
		if err := rows.Scan(&j.ID, &j.TenantID, &j.DocumentID, &j.Stage, &j.Status, &j.Payload, &j.RetryCount, &j.MaxRetries, &errMsg, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		j.ErrorMessage = errMsg.String
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteJobsByDocument(ctx context.Context, tenantID, documentID uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE document_id = $1 AND tenant_id = $2`, documentID, tenantID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func uuidArray(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
