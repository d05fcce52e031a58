package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"docpipe/internal/loader"
	"docpipe/internal/middleware"
	"docpipe/internal/retrieval"
)

// Searcher is the read path over stored embeddings, independent of the
// ingestion flow.
type Searcher interface {
	FindSimilar(ctx context.Context, query string, opts *retrieval.SearchOptions) ([]retrieval.Match, error)
}

// JobRecorder tracks each upload as a pending/completed/failed job.
type JobRecorder interface {
	Start(ctx context.Context, filename string) (string, error)
	Complete(ctx context.Context, id, documentID string, durationMS int64) error
	Fail(ctx context.Context, id, errMsg string, durationMS int64) error
}

type Handler struct {
	service        *Service
	searcher       Searcher
	jobs           JobRecorder
	maxUploadBytes int64
}

func NewHandler(service *Service, searcher Searcher, jobs JobRecorder, maxUploadBytes int64) *Handler {
	return &Handler{service: service, searcher: searcher, jobs: jobs, maxUploadBytes: maxUploadBytes}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	// Reject oversized bodies at the reader level; the service enforces
	// the same limit on the decoded file for non-HTTP callers.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "File too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "Unable to retrieve file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "Unable to read file", http.StatusBadRequest)
		return
	}

	owner := Owner{
		UserID:   r.FormValue("user_id"),
		ThreadID: r.FormValue("thread_id"),
	}

	jobID := h.startJob(r.Context(), header.Filename)
	start := time.Now()

	result, err := h.service.Process(r.Context(), data, header.Filename, owner)
	if err != nil {
		h.failJob(r.Context(), jobID, err, time.Since(start).Milliseconds())
		h.writeProcessError(r.Context(), w, err, header.Filename)
		return
	}
	h.completeJob(r.Context(), jobID, result.DocumentID, result.ElapsedMS)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": result}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Job recording never blocks an upload; failures are only logged.
func (h *Handler) startJob(ctx context.Context, filename string) string {
	if h.jobs == nil {
		return ""
	}
	id, err := h.jobs.Start(ctx, filename)
	if err != nil {
		slog.WarnContext(ctx, "failed to record ingest job", "error", err, "filename", filename)
		return ""
	}
	return id
}

func (h *Handler) completeJob(ctx context.Context, jobID, documentID string, durationMS int64) {
	if h.jobs == nil || jobID == "" {
		return
	}
	if err := h.jobs.Complete(ctx, jobID, documentID, durationMS); err != nil {
		slog.WarnContext(ctx, "failed to complete ingest job", "error", err, "job_id", jobID)
	}
}

func (h *Handler) failJob(ctx context.Context, jobID string, cause error, durationMS int64) {
	if h.jobs == nil || jobID == "" {
		return
	}
	if err := h.jobs.Fail(ctx, jobID, cause.Error(), durationMS); err != nil {
		slog.WarnContext(ctx, "failed to mark ingest job failed", "error", err, "job_id", jobID)
	}
}

func (h *Handler) writeProcessError(ctx context.Context, w http.ResponseWriter, err error, filename string) {
	var validationErr *ValidationError
	var processingErr *ProcessingError

	switch {
	case errors.Is(err, loader.ErrUnsupportedFormat):
		h.writeError(ctx, w, "UNSUPPORTED_FORMAT", err.Error(), http.StatusBadRequest)
	case errors.As(err, &validationErr):
		h.writeError(ctx, w, "VALIDATION_ERROR", validationErr.Message, http.StatusBadRequest)
	case errors.As(err, &processingErr):
		h.writeError(ctx, w, "PROCESSING_ERROR", processingErr.Error(), http.StatusUnprocessableEntity)
	default:
		slog.Error("document processing failed", "error", err, "filename", filename)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string   `json:"query"`
		UserID    string   `json:"user_id"`
		Limit     *int     `json:"limit"`
		Threshold *float32 `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "Query is required", http.StatusBadRequest)
		return
	}
	if req.Threshold != nil && (*req.Threshold < 0 || *req.Threshold > 1) {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "threshold must be within [0, 1]", http.StatusBadRequest)
		return
	}

	matches, err := h.searcher.FindSimilar(r.Context(), req.Query, &retrieval.SearchOptions{
		UserID:    req.UserID,
		Limit:     req.Limit,
		Threshold: req.Threshold,
	})
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if matches == nil {
		matches = []retrieval.Match{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": matches,
		"meta": map[string]int{"count": len(matches)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	includeChunks := r.URL.Query().Get("exclude_chunks") != "true"

	detail, err := h.service.Get(r.Context(), id, includeChunks)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": detail}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	// Ensure we return [] instead of null for empty list
	if docs == nil {
		docs = []Document{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": docs,
		"meta": map[string]int{"count": len(docs)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
