package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Store is the durable state for tenants, documents, chunks, and jobs. Every
// method that reads or writes tenant-owned data takes tenant_id explicitly
// and every implementation must filter on it, per the tenant-isolation
// invariant: no query may cross tenant boundaries.
type Store interface {
	// Tenants (admin/internal-scoped; no tenant_id filter applies to these).
	CreateTenant(ctx context.Context, name, credentialFingerprint string, rateLimitPerMinute int) (Tenant, error)
	GetTenant(ctx context.Context, tenantID uuid.UUID) (Tenant, error)
	GetTenantByFingerprint(ctx context.Context, fingerprint string) (Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)
	RotateCredential(ctx context.Context, tenantID uuid.UUID, newFingerprint string) error
	DeleteTenant(ctx context.Context, tenantID uuid.UUID) error
	TenantMetrics(ctx context.Context, tenantID uuid.UUID) (TenantMetrics, error)

	// Documents. CreateDocument accepts a caller-supplied documentID (or
	// uuid.Nil to have the store generate one) so the caller can compute a
	// documentID-derived blob path before the row exists.
	CreateDocument(ctx context.Context, tenantID, documentID uuid.UUID, filename, blobPath string, sizeBytes int64, metadata map[string]any) (Document, error)
	GetDocument(ctx context.Context, tenantID uuid.UUID, documentID uuid.UUID) (Document, error)
	UpdateDocumentStatus(ctx context.Context, tenantID uuid.UUID, documentID uuid.UUID, status DocumentStatus) error
	MarkDocumentFailed(ctx context.Context, tenantID uuid.UUID, documentID uuid.UUID, errMsg string) error
	MarkFailedDeletion(ctx context.Context, tenantID uuid.UUID, documentID uuid.UUID, failed bool) error
	// SetDocumentSummary persists the fire-and-forget enrichment result
	// from internal/summarizer, never awaited by the ingestion pipeline.
	SetDocumentSummary(ctx context.Context, tenantID uuid.UUID, documentID uuid.UUID, text string, keyPoints []string) error
	DeleteDocumentRow(ctx context.Context, tenantID uuid.UUID, documentID uuid.UUID) error
	ListDocumentsWithFailedDeletion(ctx context.Context, tenantID uuid.UUID) ([]Document, error)
	// ListDocuments backs /internal/documents; callers must still supply a
	// tenant_id since every query here stays tenant-scoped even for
	// internal-token callers.
	ListDocuments(ctx context.Context, tenantID uuid.UUID) ([]Document, error)

	// Chunks.
	SaveChunks(ctx context.Context, tenantID uuid.UUID, documentID uuid.UUID, chunks []Chunk) ([]Chunk, error)
	ListChunks(ctx context.Context, tenantID uuid.UUID, documentID uuid.UUID) ([]Chunk, error)
	GetChunks(ctx context.Context, tenantID uuid.UUID, chunkIDs []uuid.UUID) ([]Chunk, error)
	SetChunkVectorSnapshotPath(ctx context.Context, tenantID uuid.UUID, chunkID uuid.UUID, path string) error
	AllChunksEmbedded(ctx context.Context, tenantID uuid.UUID, documentID uuid.UUID) (bool, error)
	DeleteChunksByDocument(ctx context.Context, tenantID uuid.UUID, documentID uuid.UUID) (int64, error)

	// Jobs.
	CreateJob(ctx context.Context, job Job) (Job, error)
	GetJob(ctx context.Context, tenantID uuid.UUID, jobID uuid.UUID) (Job, error)
	// TransitionJob performs a conditional update WHERE status = fromStatus,
	// fencing concurrent workers that popped the same job id. ok is false
	// (with no error) if the row was not in fromStatus when this ran.
	TransitionJob(ctx context.Context, tenantID uuid.UUID, jobID uuid.UUID, fromStatus, toStatus JobStatus, errMsg string, retryCount int) (ok bool, err error)
	ListJobsByDocument(ctx context.Context, tenantID uuid.UUID, documentID uuid.UUID) ([]Job, error)
	DeleteJobsByDocument(ctx context.Context, tenantID uuid.UUID, documentID uuid.UUID) (int64, error)

	Close() error
}
