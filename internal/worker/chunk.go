package worker

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/tomerlieber/docflow/internal/apperr"
	"github.com/tomerlieber/docflow/internal/blob"
	"github.com/tomerlieber/docflow/internal/chunker"
	"github.com/tomerlieber/docflow/internal/queue"
	"github.com/tomerlieber/docflow/internal/store"
)

// ChunkHandler implements the chunk stage from spec.md §4.5: sentence-aware
// overlapping chunking of the extracted text, persisted in one batch, with
// one embed job enqueued per batch of chunks.
type ChunkHandler struct {
	Blob      blob.Store
	Store     store.Store
	Substrate queue.Substrate
	Doorbell  queue.Doorbell
	ChunkSize int
	Overlap   int
	BatchSize int
}

func (h *ChunkHandler) Handle(ctx context.Context, job store.Job) error {
	var payload store.StagePayloadChunk
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return apperr.Wrap(apperr.KindPermanent, "decode chunk payload", err)
	}

	savedChunks, err := h.ensureChunks(ctx, job, payload)
	if err != nil {
		return err
	}

	if len(savedChunks) == 0 {
		// Empty text transitions straight to completed, per spec.md §4.5.
		if err := h.Store.UpdateDocumentStatus(ctx, job.TenantID, payload.DocumentID, store.StatusCompleted); err != nil {
			return apperr.Wrap(apperr.KindTransient, "complete empty document", err)
		}
	} else {
		if err := h.Store.UpdateDocumentStatus(ctx, job.TenantID, payload.DocumentID, store.StatusEmbedding); err != nil {
			return apperr.Wrap(apperr.KindTransient, "advance document to embedding", err)
		}
		if err := h.ensureEmbedJobs(ctx, job, payload.DocumentID, savedChunks); err != nil {
			return err
		}
	}

	ok, err := h.Store.TransitionJob(ctx, job.TenantID, job.ID, store.JobProcessing, store.JobCompleted, "", job.RetryCount)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "complete chunk job", err)
	}
	if !ok {
		return apperr.New(apperr.KindConsistency, "chunk job lease lost before completion")
	}
	return nil
}

// ensureChunks returns the document's saved chunk rows, computing and
// saving them on the first attempt and simply reading them back on a
// retry, so a crash after SaveChunks but before this job completes never
// re-chunks or double-inserts.
func (h *ChunkHandler) ensureChunks(ctx context.Context, job store.Job, payload store.StagePayloadChunk) ([]store.Chunk, error) {
	existing, err := h.Store.ListChunks(ctx, job.TenantID, payload.DocumentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "list existing chunks", err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	rc, err := h.Blob.Get(ctx, payload.ExtractedTextPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "fetch extracted text", err)
	}
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "read extracted text", err)
	}

	pieces := chunker.ChunkText(string(raw), chunker.Options{ChunkSize: h.ChunkSize, Overlap: h.Overlap})
	if len(pieces) == 0 {
		return nil, nil
	}

	toSave := make([]store.Chunk, len(pieces))
	for i, p := range pieces {
		toSave[i] = store.Chunk{ChunkIndex: p.Index, Text: p.Text}
	}
	saved, err := h.Store.SaveChunks(ctx, job.TenantID, payload.DocumentID, toSave)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "save chunks", err)
	}
	return saved, nil
}

// ensureEmbedJobs creates one embed job per batch of chunks, skipping
// creation if a prior attempt already enqueued the document's embed jobs.
func (h *ChunkHandler) ensureEmbedJobs(ctx context.Context, job store.Job, documentID uuid.UUID, chunks []store.Chunk) error {
	existingJobs, err := h.Store.ListJobsByDocument(ctx, job.TenantID, documentID)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "list existing jobs", err)
	}
	for _, j := range existingJobs {
		if j.Stage == store.StageEmbed {
			// Already enqueued by a previous attempt at this job.
			return nil
		}
	}

	batchSize := h.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		ids := make([]uuid.UUID, len(batch))
		for i, c := range batch {
			ids[i] = c.ID
		}
		payload, err := json.Marshal(store.StagePayloadEmbed{DocumentID: documentID, ChunkIDs: ids})
		if err != nil {
			return apperr.Wrap(apperr.KindPermanent, "encode embed payload", err)
		}

		embedJob, err := h.Store.CreateJob(ctx, store.Job{
			TenantID:   job.TenantID,
			DocumentID: documentID,
			Stage:      store.StageEmbed,
			Status:     store.JobPending,
			MaxRetries: job.MaxRetries,
			Payload:    payload,
		})
		if err != nil {
			return apperr.Wrap(apperr.KindTransient, "create embed job", err)
		}
		if err := h.Substrate.Enqueue(ctx, job.TenantID, queue.StageEmbed, embedJob.ID, float64(time.Now().Unix())); err != nil {
			return apperr.Wrap(apperr.KindTransient, "enqueue embed job", err)
		}
	}
	h.Doorbell.Ring(queue.StageEmbed)
	return nil
}
