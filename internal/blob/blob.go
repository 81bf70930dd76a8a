// Package blob implements the path-addressed object store from spec.md
// §4 component table row 1: raw uploads, extracted text, and per-job
// vector snapshots. Concurrent writers never collide because every path
// is derived from a document_id or job_id that is unique to its writer.
package blob

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Store is the blob store capability. Paths are opaque strings returned
// by the Raw/Extracted/Snapshot path helpers; callers never construct
// them by hand.
type Store interface {
	Put(ctx context.Context, path string, data io.Reader) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	// Exists reports whether path currently has an object, without
	// reading its contents.
	Exists(ctx context.Context, path string) (bool, error)
}

// RawPath is the storage path for a tenant's original upload.
func RawPath(documentID uuid.UUID, filename string) string {
	return "raw/" + documentID.String() + "/" + filename
}

// ExtractedTextPath is the storage path for a document's extracted text.
func ExtractedTextPath(documentID uuid.UUID) string {
	return "extracted/" + documentID.String() + ".txt"
}

// SnapshotPath is the storage path for an embed job's vector snapshot,
// the checkpoint written before the vector-index upsert so a crash
// between the two is idempotently resumable.
func SnapshotPath(jobID uuid.UUID) string {
	return "embeddings/" + jobID.String() + ".snapshot"
}
