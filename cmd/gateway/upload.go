package main

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tomerlieber/docflow/internal/apperr"
	"github.com/tomerlieber/docflow/internal/dispatcher"
	"github.com/tomerlieber/docflow/internal/httputil"
)

// uploadSingle implements POST /upload/single: one multipart file, admitted
// against the caller's rate limit before the dispatcher persists anything.
func (g *gateway) uploadSingle(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := httputil.TenantID(r.Context())

	if r.ContentLength > g.deps.Config.MaxUploadSize {
		httputil.Fail(g.log(), w, fmt.Sprintf("file too large (max %d bytes)", g.deps.Config.MaxUploadSize), nil, http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.Fail(g.log(), w, "file is required", err, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > g.deps.Config.MaxUploadSize {
		httputil.Fail(g.log(), w, fmt.Sprintf("file too large (max %d bytes)", g.deps.Config.MaxUploadSize), nil, http.StatusRequestEntityTooLarge)
		return
	}

	result, err := g.upload(r.Context(), tenantID, header, file)
	if err != nil {
		httputil.WriteError(g.log(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
		"document_id": result.DocumentID,
		"status":      result.Status,
	})
}

// uploadBulk implements POST /upload/bulk: up to 100 files, each admitted
// and enqueued independently so one rejected or failed file doesn't block
// the rest.
func (g *gateway) uploadBulk(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := httputil.TenantID(r.Context())

	if err := r.ParseMultipartForm(g.deps.Config.MaxUploadSize); err != nil {
		httputil.Fail(g.log(), w, "failed to parse multipart form", err, http.StatusBadRequest)
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		httputil.Fail(g.log(), w, "at least one file is required", nil, http.StatusBadRequest)
		return
	}
	const maxBulkFiles = 100
	if len(files) > maxBulkFiles {
		httputil.Fail(g.log(), w, fmt.Sprintf("too many files (max %d)", maxBulkFiles), nil, http.StatusBadRequest)
		return
	}

	// uploadResponse mirrors the original system's per-file UploadResponse:
	// every file gets one, success or failure, carrying a human-readable
	// message either way.
	type uploadResponse struct {
		DocumentID uuid.UUID `json:"document_id"`
		Filename   string    `json:"filename"`
		Status     string    `json:"status"`
		Message    string    `json:"message"`
	}
	documents := make([]uploadResponse, len(files))
	var successful, failed int

	for i, header := range files {
		if header.Size > g.deps.Config.MaxUploadSize {
			failed++
			documents[i] = uploadResponse{DocumentID: uuid.New(), Filename: header.Filename, Status: "failed", Message: "file too large"}
			continue
		}
		file, err := header.Open()
		if err != nil {
			failed++
			documents[i] = uploadResponse{DocumentID: uuid.New(), Filename: header.Filename, Status: "failed", Message: err.Error()}
			continue
		}
		result, err := g.upload(r.Context(), tenantID, header, file)
		file.Close()
		if err != nil {
			failed++
			documents[i] = uploadResponse{DocumentID: uuid.New(), Filename: header.Filename, Status: "failed", Message: err.Error()}
			continue
		}
		successful++
		documents[i] = uploadResponse{DocumentID: result.DocumentID, Filename: header.Filename, Status: string(result.Status), Message: "file uploaded successfully"}
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
		"total_files": len(files),
		"successful":  successful,
		"failed":      failed,
		"documents":   documents,
	})
}

// upload admits one file against the tenant's rate limit and hands it to
// the dispatcher. Shared by uploadSingle and uploadBulk so every file,
// single or batched, goes through the same admission and intake path.
func (g *gateway) upload(ctx context.Context, tenantID uuid.UUID, header *multipart.FileHeader, file multipart.File) (dispatcher.UploadResult, error) {
	tenant, err := g.deps.Store.GetTenant(ctx, tenantID)
	if err != nil {
		return dispatcher.UploadResult{}, apperr.Wrap(apperr.KindTransient, "failed to resolve tenant for admission", err)
	}
	decision, err := g.deps.RateLimiter.Allow(ctx, tenantID, tenant.RateLimitPerMinute, time.Duration(g.deps.Config.RateLimitWindowSeconds)*time.Second, time.Now())
	if err != nil {
		return dispatcher.UploadResult{}, apperr.Wrap(apperr.KindTransient, "rate limit check failed", err)
	}
	if !decision.Allowed {
		return dispatcher.UploadResult{}, apperr.NewRateLimited("rate limit exceeded", decision.RetryAfterMS)
	}

	var metadata map[string]any
	if raw := header.Header.Get("X-Metadata"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &metadata)
	}

	return g.dispatcher.Upload(ctx, tenantID, header.Filename, file, header.Size, metadata)
}
