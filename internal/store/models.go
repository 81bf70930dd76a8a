package store

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus tracks a document's monotonic progress through the
// pipeline. It only regresses to StatusFailed; retries never move it
// backwards (the job's RetryCount carries that information instead).
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusExtracting DocumentStatus = "extracting"
	StatusChunking   DocumentStatus = "chunking"
	StatusEmbedding  DocumentStatus = "embedding"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// Stage identifies one of the three pipeline stages.
type Stage string

const (
	StageExtract Stage = "extract"
	StageChunk   Stage = "chunk"
	StageEmbed   Stage = "embed"
)

// JobStatus tracks a single job's lifecycle. Pending and Processing are
// non-terminal; Completed and Dead are terminal. A transient failure that
// is retried moves the job from Processing back to Pending; Dead is the
// terminal failure state after retries are exhausted or on a permanent
// error.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobDead       JobStatus = "dead"
)

// Tenant is created by an admin and never mutated except credential
// rotation. Deleting the tenant row cascades, through foreign keys, to its
// document, chunk and job rows; its blob objects and vector points are not
// removed by that delete.
type Tenant struct {
	ID                   uuid.UUID
	Name                 string
	CredentialFingerprint string
	RateLimitPerMinute   int
	CreatedAt            time.Time
}

// Document is the metadata-store record of an uploaded file as it moves
// through extract -> chunk -> embed.
type Document struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Filename  string
	BlobPath  string
	SizeBytes int64
	Status    DocumentStatus
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time

	// FailedDeletion is set when a cascading delete was interrupted partway
	// through; a reconciler can use it to find and retry orphaned deletes.
	FailedDeletion bool

	// Summary is nil until the fire-and-forget post-completion enrichment
	// (internal/summarizer) finishes; it never gates pipeline progress.
	Summary *DocumentSummary
}

// DocumentSummary is the optional enrichment result from internal/summarizer.
type DocumentSummary struct {
	Text      string
	KeyPoints []string
}

// Chunk is a contiguous, 0-indexed slice of a document's extracted text.
// VectorSnapshotPath is nil until the embed worker checkpoints its vector.
type Chunk struct {
	ID                  uuid.UUID
	DocumentID          uuid.UUID
	TenantID            uuid.UUID
	ChunkIndex          int
	Text                string
	VectorSnapshotPath  *string
	Metadata            map[string]any
}

// Job is one unit of work at a single stage for a single document (or, for
// embed, a chunk batch within a document).
type Job struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	DocumentID   uuid.UUID
	Stage        Stage
	Status       JobStatus
	Payload      []byte
	RetryCount   int
	MaxRetries   int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TenantMetrics backs GET /metrics/me.
type TenantMetrics struct {
	DocumentCount  int
	TotalBytes     int64
	LastUploadedAt *time.Time
}

// StagePayloadExtract is the job payload for a StageExtract job.
type StagePayloadExtract struct {
	DocumentID uuid.UUID `json:"document_id"`
	BlobPath   string    `json:"blob_path"`
}

// StagePayloadChunk is the job payload for a StageChunk job.
type StagePayloadChunk struct {
	DocumentID      uuid.UUID `json:"document_id"`
	ExtractedTextPath string `json:"extracted_text_path"`
}

// StagePayloadEmbed is the job payload for a StageEmbed job: one embed job
// covers one batch of chunks from the same document.
type StagePayloadEmbed struct {
	DocumentID uuid.UUID   `json:"document_id"`
	ChunkIDs   []uuid.UUID `json:"chunk_ids"`
}
