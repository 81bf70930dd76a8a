package worker

import (
	"context"
	"encoding/json"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomerlieber/docflow/internal/apperr"
	"github.com/tomerlieber/docflow/internal/blob"
	"github.com/tomerlieber/docflow/internal/extractor"
	"github.com/tomerlieber/docflow/internal/queue"
	"github.com/tomerlieber/docflow/internal/store"
)

// ExtractHandler implements the extract stage from spec.md §4.4: read the
// raw upload from blob storage, run it through the Extractor registry, and
// hand off to the chunk stage.
type ExtractHandler struct {
	Blob      blob.Store
	Extractor extractor.Extractor
	Store     store.Store
	Substrate queue.Substrate
	Doorbell  queue.Doorbell
}

func (h *ExtractHandler) Handle(ctx context.Context, job store.Job) error {
	var payload store.StagePayloadExtract
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return apperr.Wrap(apperr.KindPermanent, "decode extract payload", err)
	}

	rc, err := h.Blob.Get(ctx, payload.BlobPath)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "fetch raw blob", err)
	}
	content, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "read raw blob", err)
	}

	text, err := h.Extractor.Extract(ctx, path.Base(payload.BlobPath), content)
	if err != nil {
		// The extractor already classifies its own errors as transient or
		// permanent, per spec.md §4.4.
		return err
	}

	textPath := blob.ExtractedTextPath(payload.DocumentID)
	if err := h.Blob.Put(ctx, textPath, strings.NewReader(text)); err != nil {
		return apperr.Wrap(apperr.KindTransient, "persist extracted text", err)
	}

	chunkJobID, created, err := h.ensureChunkJob(ctx, job, textPath)
	if err != nil {
		return err
	}
	if created {
		if err := h.Store.UpdateDocumentStatus(ctx, job.TenantID, payload.DocumentID, store.StatusChunking); err != nil {
			return apperr.Wrap(apperr.KindTransient, "advance document to chunking", err)
		}
	}

	ok, err := h.Store.TransitionJob(ctx, job.TenantID, job.ID, store.JobProcessing, store.JobCompleted, "", job.RetryCount)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "complete extract job", err)
	}
	if !ok {
		return apperr.New(apperr.KindConsistency, "extract job lease lost before completion")
	}

	if err := h.Substrate.Enqueue(ctx, job.TenantID, queue.StageChunk, chunkJobID, float64(time.Now().Unix())); err != nil {
		return apperr.Wrap(apperr.KindTransient, "enqueue chunk job", err)
	}
	h.Doorbell.Ring(queue.StageChunk)
	return nil
}

// ensureChunkJob returns the document's chunk job, creating it if this is
// the first attempt. A retried extract (after a crash between creating the
// job and completing itself) must not create a second chunk job, so it
// looks for an existing one first — the same checkpoint-before-mutate idiom
// the embed stage uses for its vector snapshot.
func (h *ExtractHandler) ensureChunkJob(ctx context.Context, job store.Job, textPath string) (chunkJobID uuid.UUID, created bool, err error) {
	existing, err := h.Store.ListJobsByDocument(ctx, job.TenantID, job.DocumentID)
	if err != nil {
		return uuid.Nil, false, apperr.Wrap(apperr.KindTransient, "list existing jobs", err)
	}
	for _, j := range existing {
		if j.Stage == store.StageChunk {
			return j.ID, false, nil
		}
	}

	payload, err := json.Marshal(store.StagePayloadChunk{DocumentID: job.DocumentID, ExtractedTextPath: textPath})
	if err != nil {
		return uuid.Nil, false, apperr.Wrap(apperr.KindPermanent, "encode chunk payload", err)
	}
	chunkJob, err := h.Store.CreateJob(ctx, store.Job{
		TenantID:   job.TenantID,
		DocumentID: job.DocumentID,
		Stage:      store.StageChunk,
		Status:     store.JobPending,
		MaxRetries: job.MaxRetries,
		Payload:    payload,
	})
	if err != nil {
		return uuid.Nil, false, apperr.Wrap(apperr.KindTransient, "create chunk job", err)
	}
	return chunkJob.ID, true, nil
}
