// Package dispatcher implements the API-adapter operations from spec.md
// §2 component 8: upload intake, status aggregation, and cascading
// delete. It owns nothing durable itself; it only orchestrates the blob
// store, metadata store, queue substrate, vector index, and cache into
// the sequences spec.md §4.8 and §6 describe.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/tomerlieber/docflow/internal/apperr"
	"github.com/tomerlieber/docflow/internal/blob"
	"github.com/tomerlieber/docflow/internal/cache"
	"github.com/tomerlieber/docflow/internal/queue"
	"github.com/tomerlieber/docflow/internal/store"
	"github.com/tomerlieber/docflow/internal/vectorindex"
)

// Dispatcher ties the components an upload/status/delete request touches.
type Dispatcher struct {
	Store       store.Store
	Blob        blob.Store
	Substrate   queue.Substrate
	Doorbell    queue.Doorbell
	VectorIndex vectorindex.Index
	Cache       cache.Cache
	MaxRetries  int
}

var allowedExtensions = map[string]bool{".txt": true, ".pdf": true}

// UploadResult mirrors POST /upload/single's response body.
type UploadResult struct {
	DocumentID uuid.UUID
	Status     store.DocumentStatus
}

// Upload persists the raw file, creates the document row and its initial
// extract job, and enqueues that job, per spec.md's data-flow diagram in
// §2 and the extract-stage input contract of §4.4. Filename must carry a
// recognized suffix (.txt or .pdf); anything else is a validation error
// with no document or job created.
func (d *Dispatcher) Upload(ctx context.Context, tenantID uuid.UUID, filename string, content io.Reader, size int64, metadata map[string]any) (UploadResult, error) {
	ext := strings.ToLower(filenameExt(filename))
	if !allowedExtensions[ext] {
		return UploadResult{}, apperr.New(apperr.KindValidation, "unsupported file type (only .txt and .pdf allowed)")
	}

	documentID := uuid.New()
	rawPath := blob.RawPath(documentID, filename)

	data, err := io.ReadAll(content)
	if err != nil {
		return UploadResult{}, apperr.Wrap(apperr.KindValidation, "failed to read upload", err)
	}
	if size <= 0 {
		size = int64(len(data))
	}

	if err := d.Blob.Put(ctx, rawPath, strings.NewReader(string(data))); err != nil {
		return UploadResult{}, apperr.Wrap(apperr.KindTransient, "failed to persist upload", err)
	}

	doc, err := d.Store.CreateDocument(ctx, tenantID, documentID, filename, rawPath, size, metadata)
	if err != nil {
		return UploadResult{}, apperr.Wrap(apperr.KindTransient, "failed to persist document", err)
	}

	payload, err := json.Marshal(store.StagePayloadExtract{DocumentID: doc.ID, BlobPath: rawPath})
	if err != nil {
		return UploadResult{}, apperr.Wrap(apperr.KindPermanent, "failed to encode extract payload", err)
	}
	job, err := d.Store.CreateJob(ctx, store.Job{
		TenantID:   tenantID,
		DocumentID: doc.ID,
		Stage:      store.StageExtract,
		Status:     store.JobPending,
		MaxRetries: d.MaxRetries,
		Payload:    payload,
	})
	if err != nil {
		_ = d.Store.MarkDocumentFailed(ctx, tenantID, doc.ID, err.Error())
		return UploadResult{}, apperr.Wrap(apperr.KindTransient, "failed to create extract job", err)
	}

	if err := d.Substrate.Enqueue(ctx, tenantID, queue.StageExtract, job.ID, float64(doc.CreatedAt.Unix())); err != nil {
		_ = d.Store.MarkDocumentFailed(ctx, tenantID, doc.ID, err.Error())
		return UploadResult{}, apperr.Wrap(apperr.KindTransient, "failed to enqueue extract job; please retry", err)
	}
	d.Doorbell.Ring(queue.StageExtract)

	return UploadResult{DocumentID: doc.ID, Status: doc.Status}, nil
}

func filenameExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

// StageStatus is the per-stage view returned by Status.
type StageStatus struct {
	Status     store.JobStatus `json:"status"`
	RetryCount int             `json:"retry_count,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// StatusResult mirrors GET /status/{document_id}'s response body.
type StatusResult struct {
	DocumentID uuid.UUID                   `json:"document_id"`
	Status     store.DocumentStatus        `json:"status"`
	Stages     map[store.Stage]StageStatus `json:"per_stage"`
	Error      string                      `json:"error,omitempty"`
}

// Status aggregates the document row with its jobs' per-stage status, per
// spec.md §6's GET /status/{document_id} contract.
func (d *Dispatcher) Status(ctx context.Context, tenantID, documentID uuid.UUID) (StatusResult, error) {
	doc, err := d.Store.GetDocument(ctx, tenantID, documentID)
	if err != nil {
		if err == store.ErrNotFound {
			return StatusResult{}, apperr.New(apperr.KindNotFound, "document not found")
		}
		return StatusResult{}, apperr.Wrap(apperr.KindTransient, "failed to load document", err)
	}

	jobs, err := d.Store.ListJobsByDocument(ctx, tenantID, documentID)
	if err != nil {
		return StatusResult{}, apperr.Wrap(apperr.KindTransient, "failed to load jobs", err)
	}

	result := StatusResult{DocumentID: doc.ID, Status: doc.Status, Stages: map[store.Stage]StageStatus{}}
	var latestErr string
	for _, j := range jobs {
		result.Stages[j.Stage] = StageStatus{Status: j.Status, RetryCount: j.RetryCount, Error: j.ErrorMessage}
		if j.ErrorMessage != "" {
			latestErr = j.ErrorMessage
		}
	}
	if doc.Status == store.StatusFailed {
		result.Error = latestErr
	}
	return result, nil
}

// DeleteResult mirrors DELETE /documents/{document_id}'s response body.
type DeleteResult struct {
	Deleted        bool  `json:"deleted"`
	ChunksDeleted  int64 `json:"chunks_deleted"`
	VectorsDeleted int64 `json:"vectors_deleted"`
}

// Delete performs the cascading delete from spec.md §4.8, in the
// prescribed order: vector points, chunk rows, job rows, blob objects
// (raw file, extracted text, embed snapshots), then the document row.
// A failure at any step leaves the document row in place with a
// failed_deletion marker for a reconciler to retry; Delete then returns an
// empty DeleteResult and a transient error, with no partial counts.
func (d *Dispatcher) Delete(ctx context.Context, tenantID, documentID uuid.UUID) (DeleteResult, error) {
	doc, err := d.Store.GetDocument(ctx, tenantID, documentID)
	if err != nil {
		if err == store.ErrNotFound {
			return DeleteResult{}, apperr.New(apperr.KindNotFound, "document not found")
		}
		return DeleteResult{}, apperr.Wrap(apperr.KindTransient, "failed to load document", err)
	}

	jobs, err := d.Store.ListJobsByDocument(ctx, tenantID, documentID)
	if err != nil {
		return d.failDeletion(ctx, tenantID, documentID, err)
	}

	vectorsDeleted, err := d.VectorIndex.DeleteByDocument(ctx, tenantID, documentID)
	if err != nil {
		return d.failDeletion(ctx, tenantID, documentID, err)
	}

	chunksDeleted, err := d.Store.DeleteChunksByDocument(ctx, tenantID, documentID)
	if err != nil {
		return d.failDeletion(ctx, tenantID, documentID, err)
	}

	if _, err := d.Store.DeleteJobsByDocument(ctx, tenantID, documentID); err != nil {
		return d.failDeletion(ctx, tenantID, documentID, err)
	}

	if err := d.deleteBlobs(ctx, doc, jobs); err != nil {
		return d.failDeletion(ctx, tenantID, documentID, err)
	}

	if d.Cache != nil {
		_ = d.Cache.InvalidateDocument(ctx, tenantID, documentID)
	}

	if err := d.Store.DeleteDocumentRow(ctx, tenantID, documentID); err != nil {
		return d.failDeletion(ctx, tenantID, documentID, err)
	}

	return DeleteResult{Deleted: true, ChunksDeleted: chunksDeleted, VectorsDeleted: vectorsDeleted}, nil
}

// deleteBlobs removes the raw upload, extracted text, and every embed
// job's vector snapshot. Missing objects are not an error: a partially
// completed prior delete attempt, or a document that never reached the
// embed stage, both leave some of these absent.
func (d *Dispatcher) deleteBlobs(ctx context.Context, doc store.Document, jobs []store.Job) error {
	if err := deleteIfExists(ctx, d.Blob, doc.BlobPath); err != nil {
		return fmt.Errorf("delete raw blob: %w", err)
	}
	if err := deleteIfExists(ctx, d.Blob, blob.ExtractedTextPath(doc.ID)); err != nil {
		return fmt.Errorf("delete extracted text: %w", err)
	}
	for _, j := range jobs {
		if j.Stage != store.StageEmbed {
			continue
		}
		if err := deleteIfExists(ctx, d.Blob, blob.SnapshotPath(j.ID)); err != nil {
			return fmt.Errorf("delete embedding snapshot: %w", err)
		}
	}
	return nil
}

func deleteIfExists(ctx context.Context, b blob.Store, path string) error {
	exists, err := b.Exists(ctx, path)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return b.Delete(ctx, path)
}

// failDeletion marks the document with the failed_deletion marker so a
// reconciler can retry, and surfaces the underlying cause as a transient
// error rather than swallowing it.
func (d *Dispatcher) failDeletion(ctx context.Context, tenantID, documentID uuid.UUID, cause error) (DeleteResult, error) {
	_ = d.Store.MarkFailedDeletion(ctx, tenantID, documentID, true)
	return DeleteResult{}, apperr.Wrap(apperr.KindTransient, "cascading delete failed, marked for reconciliation", cause)
}
