package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tomerlieber/docflow/internal/apperr"
	"github.com/tomerlieber/docflow/internal/blob"
	"github.com/tomerlieber/docflow/internal/embedder"
	"github.com/tomerlieber/docflow/internal/store"
	"github.com/tomerlieber/docflow/internal/summarizer"
	"github.com/tomerlieber/docflow/internal/vectorindex"
)

// EmbedHandler implements the embed stage from spec.md §4.6: embed chunk
// texts, checkpoint the vectors to a blob snapshot before touching the
// vector index, then upsert.
type EmbedHandler struct {
	Blob        blob.Store
	Store       store.Store
	VectorIndex vectorindex.Index
	Embedder    embedder.Embedder

	// Summarizer is the optional post-completion enrichment from spec.md
	// §1 ("deliberately out of scope" of the core). It is invoked
	// fire-and-forget once a document reaches completed and never gates
	// pipeline progress or the embed job's own completion. A nil
	// Summarizer (or summarizer.NoOpSummarizer) simply skips it.
	Summarizer summarizer.Summarizer
	Log        *slog.Logger
}

type snapshotEntry struct {
	ChunkID uuid.UUID `json:"chunk_id"`
	Vector  []float32 `json:"vector"`
}

func (h *EmbedHandler) Handle(ctx context.Context, job store.Job) error {
	var payload store.StagePayloadEmbed
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return apperr.Wrap(apperr.KindPermanent, "decode embed payload", err)
	}

	chunks, err := h.Store.GetChunks(ctx, job.TenantID, payload.ChunkIDs)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "load chunks", err)
	}
	if len(chunks) != len(payload.ChunkIDs) {
		return apperr.New(apperr.KindConsistency, "embed job chunk_ids did not resolve under this tenant")
	}

	doc, err := h.Store.GetDocument(ctx, job.TenantID, payload.DocumentID)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "load document for filename", err)
	}

	snapshotPath := blob.SnapshotPath(job.ID)
	entries, err := h.readSnapshot(ctx, snapshotPath)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "read embedding snapshot", err)
	}
	if entries == nil {
		entries, err = h.embedAndSnapshot(ctx, snapshotPath, chunks)
		if err != nil {
			return err
		}
	}

	byID := make(map[uuid.UUID]store.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	points := make([]vectorindex.Point, 0, len(entries))
	for _, e := range entries {
		c, ok := byID[e.ChunkID]
		if !ok {
			return apperr.New(apperr.KindConsistency, "embedding snapshot references a chunk outside this job")
		}
		points = append(points, vectorindex.Point{
			ChunkID:    c.ID,
			TenantID:   job.TenantID,
			DocumentID: payload.DocumentID,
			Filename:   doc.Filename,
			ChunkIndex: c.ChunkIndex,
			Metadata:   c.Metadata,
			Vector:     e.Vector,
		})
	}

	if err := h.VectorIndex.Upsert(ctx, points); err != nil {
		return apperr.Wrap(apperr.KindTransient, "upsert vectors", err)
	}

	for _, p := range points {
		if err := h.Store.SetChunkVectorSnapshotPath(ctx, job.TenantID, p.ChunkID, snapshotPath); err != nil {
			return apperr.Wrap(apperr.KindTransient, "record vector snapshot path", err)
		}
	}

	done, err := h.Store.AllChunksEmbedded(ctx, job.TenantID, payload.DocumentID)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "check document embedding completeness", err)
	}
	if done {
		if err := h.Store.UpdateDocumentStatus(ctx, job.TenantID, payload.DocumentID, store.StatusCompleted); err != nil {
			return apperr.Wrap(apperr.KindTransient, "complete document", err)
		}
		h.summarizeInBackground(job.TenantID, payload.DocumentID)
	}

	ok, err := h.Store.TransitionJob(ctx, job.TenantID, job.ID, store.JobProcessing, store.JobCompleted, "", job.RetryCount)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "complete embed job", err)
	}
	if !ok {
		return apperr.New(apperr.KindConsistency, "embed job lease lost before completion")
	}
	return nil
}

// summarizeInBackground runs the enrichment step outside the job's own
// lifecycle: it has its own timeout budget, doesn't hold the stage's
// lease, and a failure here never dead-letters the embed job or marks the
// document failed, per spec.md §1's "deliberately out of scope" framing.
func (h *EmbedHandler) summarizeInBackground(tenantID, documentID uuid.UUID) {
	if h.Summarizer == nil {
		return
	}
	log := h.Log
	if log == nil {
		log = slog.Default()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		rc, err := h.Blob.Get(ctx, blob.ExtractedTextPath(documentID))
		if err != nil {
			log.Warn("summarizer: failed to fetch extracted text", "document_id", documentID, "err", err)
			return
		}
		text, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			log.Warn("summarizer: failed to read extracted text", "document_id", documentID, "err", err)
			return
		}

		summary, err := h.Summarizer.Summarize(ctx, string(text))
		if err != nil {
			log.Warn("summarizer: enrichment failed", "document_id", documentID, "err", err)
			return
		}
		if err := h.Store.SetDocumentSummary(ctx, tenantID, documentID, summary.Text, summary.KeyPoints); err != nil {
			log.Warn("summarizer: failed to persist summary", "document_id", documentID, "err", err)
		}
	}()
}

func (h *EmbedHandler) embedAndSnapshot(ctx context.Context, snapshotPath string, chunks []store.Chunk) ([]snapshotEntry, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := h.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		// The embedder already classifies its own errors.
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, apperr.New(apperr.KindPermanent, "embedder returned a mismatched vector count")
	}

	entries := make([]snapshotEntry, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != h.Embedder.Dimension() {
			return nil, apperr.New(apperr.KindPermanent, "embedder returned a vector of the wrong dimension")
		}
		entries[i] = snapshotEntry{ChunkID: c.ID, Vector: vectors[i]}
	}

	if err := h.writeSnapshot(ctx, snapshotPath, entries); err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "write embedding snapshot", err)
	}
	return entries, nil
}

// readSnapshot returns nil, nil if no snapshot exists yet, so the caller
// knows to embed; this is the retry-idempotence checkpoint from spec.md
// §4.6.
func (h *EmbedHandler) readSnapshot(ctx context.Context, path string) ([]snapshotEntry, error) {
	exists, err := h.Blob.Exists(ctx, path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	rc, err := h.Blob.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	var entries []snapshotEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (h *EmbedHandler) writeSnapshot(ctx context.Context, path string, entries []snapshotEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return h.Blob.Put(ctx, path, bytes.NewReader(data))
}
