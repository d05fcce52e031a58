package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docpipe/internal/config"
	"docpipe/internal/extract"
	"docpipe/internal/loader"
	"docpipe/internal/middleware"
	"docpipe/internal/text"
	"docpipe/internal/vectorize"
	"docpipe/internal/worker"
)

type Document struct {
	ID           string            `json:"id"`
	Filename     string            `json:"filename"`
	FileType     string            `json:"file_type"`
	FileSize     int64             `json:"file_size"`
	PageCount    int               `json:"page_count,omitempty"`
	WordCount    int               `json:"word_count,omitempty"`
	Title        string            `json:"title,omitempty"`
	Author       string            `json:"author,omitempty"`
	Diagnostics  map[string]string `json:"diagnostics,omitempty"`
	RawText      string            `json:"-"`
	Summary      string            `json:"summary,omitempty"`
	Entities     []extract.Entity  `json:"entities,omitempty"`
	ChunkCount   int               `json:"chunk_count"`
	ProcessingMS int64             `json:"processing_ms"`
	UserID       string            `json:"user_id,omitempty"`
	ThreadID     string            `json:"thread_id,omitempty"`
	CreatedAt    string            `json:"created_at,omitempty"`
}

// Owner scopes a document to the uploading user and conversation.
type Owner struct {
	UserID   string
	ThreadID string
}

// ProcessingResult is the caller-facing view of one ingestion run.
type ProcessingResult struct {
	DocumentID string           `json:"document_id"`
	Filename   string           `json:"filename"`
	FileType   string           `json:"file_type"`
	Metadata   *loader.Metadata `json:"metadata"`
	Summary    string           `json:"summary"`
	Entities   []extract.Entity `json:"entities,omitempty"`
	Chunks     []text.Chunk     `json:"chunks"`
	ChunkCount int              `json:"chunk_count"`
	ElapsedMS  int64            `json:"elapsed_ms"`
}

// ValidationError rejects a file before any extraction work starts.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ProcessingError is a fatal extraction failure at a named stage.
type ProcessingError struct {
	Stage    string
	Filename string
	Err      error
}

func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("processing failed at %s for %s: %v", e.Stage, e.Filename, e.Err)
	}
	return fmt.Sprintf("processing failed at %s for %s", e.Stage, e.Filename)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context) ([]Document, error)
	UpdateIngestStats(ctx context.Context, id string, chunkCount int, processingMS int64) error
	SoftDelete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type Loader interface {
	Load(ctx context.Context, data []byte, filename string) (string, *loader.Metadata, error)
}

type Extractor interface {
	Extract(ctx context.Context, text string) []extract.Entity
}

type Vectorizer interface {
	Vectorize(ctx context.Context, doc vectorize.DocumentRef, chunks []text.Chunk) int
}

type ChunkStore interface {
	GetChunks(ctx context.Context, documentID string) ([]vectorize.Record, error)
	DeleteChunksByDocumentID(ctx context.Context, documentID string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo       Repository
	loader     Loader
	extractor  Extractor
	vectorizer Vectorizer
	chunkStore ChunkStore
	pub        EventPublisher

	maxUploadBytes int64
	chunkSize      int
	chunkOverlap   int
}

func NewService(repo Repository, l Loader, e Extractor, v Vectorizer, cs ChunkStore, pub EventPublisher, maxUploadBytes int64, chunkSize, chunkOverlap int) *Service {
	return &Service{
		repo:           repo,
		loader:         l,
		extractor:      e,
		vectorizer:     v,
		chunkStore:     cs,
		pub:            pub,
		maxUploadBytes: maxUploadBytes,
		chunkSize:      chunkSize,
		chunkOverlap:   chunkOverlap,
	}
}

const summaryPreviewChars = 500

// Process runs the full ingestion pipeline for one file. Validation
// failures surface before any extraction work; entity extraction and
// per-chunk embedding failures degrade the result instead of failing
// it.
func (s *Service) Process(ctx context.Context, data []byte, filename string, owner Owner) (*ProcessingResult, error) {
	start := time.Now()

	// 1. Validate before any expensive work
	if len(data) == 0 {
		return nil, &ValidationError{Message: fmt.Sprintf("file %s is empty", filename)}
	}
	if s.maxUploadBytes > 0 && int64(len(data)) > s.maxUploadBytes {
		return nil, &ValidationError{Message: fmt.Sprintf(
			"file %s exceeds the maximum upload size: limit %d bytes, got %d bytes",
			filename, s.maxUploadBytes, len(data))}
	}

	// 2. Load
	extracted, meta, err := s.loader.Load(ctx, data, filename)
	if err != nil {
		if errors.Is(err, loader.ErrUnsupportedFormat) {
			return nil, err
		}
		return nil, &ProcessingError{Stage: "loader", Filename: filename, Err: err}
	}
	if strings.TrimSpace(extracted) == "" {
		return nil, &ProcessingError{Stage: "loader", Filename: filename, Err: errors.New("no usable text extracted")}
	}

	// 3. Entities (non-fatal, may be disabled)
	entities := s.extractor.Extract(ctx, extracted)

	// 4. Chunk
	chunks := text.Split(extracted, s.chunkSize, s.chunkOverlap)

	// 5. Summary and document row
	summary := buildSummary(filename, meta, len(chunks), extracted)

	doc := &Document{
		Filename:    filename,
		FileType:    meta.FileType,
		FileSize:    meta.FileSize,
		PageCount:   meta.PageCount,
		WordCount:   meta.WordCount,
		Title:       meta.Title,
		Author:      meta.Author,
		Diagnostics: meta.Diagnostics,
		RawText:     extracted,
		Summary:     summary,
		Entities:    entities,
		UserID:      owner.UserID,
		ThreadID:    owner.ThreadID,
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}

	// 6. Embed chunks. Failures reduce chunk_count, never fail the run.
	stored := s.vectorizer.Vectorize(ctx, vectorize.DocumentRef{
		DocumentID: doc.ID,
		UserID:     owner.UserID,
		ThreadID:   owner.ThreadID,
	}, chunks)

	elapsed := time.Since(start).Milliseconds()
	if err := s.repo.UpdateIngestStats(ctx, doc.ID, stored, elapsed); err != nil {
		slog.ErrorContext(ctx, "failed to update ingest stats", "error", err, "document_id", doc.ID)
	}

	// 7. Background summary embedding, off the caller's success path
	s.publishSummaryEmbed(ctx, doc.ID, owner.UserID, summary)

	slog.InfoContext(ctx, "document processed",
		"document_id", doc.ID, "filename", filename,
		"chunks", len(chunks), "stored", stored, "elapsed_ms", elapsed)

	return &ProcessingResult{
		DocumentID: doc.ID,
		Filename:   filename,
		FileType:   meta.FileType,
		Metadata:   meta,
		Summary:    summary,
		Entities:   entities,
		Chunks:     chunks,
		ChunkCount: stored,
		ElapsedMS:  elapsed,
	}, nil
}

func (s *Service) publishSummaryEmbed(ctx context.Context, documentID, userID, summary string) {
	payload, _ := json.Marshal(worker.SummaryEmbedPayload{
		DocumentID:    documentID,
		UserID:        userID,
		Summary:       summary,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err := s.pub.Publish(config.TopicSummaryEmbed, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish summary embed task", "error", err, "document_id", documentID)
	}
}

func buildSummary(filename string, meta *loader.Metadata, chunkCount int, extracted string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s): %d bytes", filename, meta.FileType, meta.FileSize)
	if meta.PageCount > 0 {
		fmt.Fprintf(&b, ", %d pages", meta.PageCount)
	}
	fmt.Fprintf(&b, ", %d words, %d chunks.", meta.WordCount, chunkCount)

	preview := strings.TrimSpace(extracted)
	if len(preview) > summaryPreviewChars {
		preview = preview[:summaryPreviewChars]
	}
	if preview != "" {
		b.WriteString("\n")
		b.WriteString(preview)
	}
	return b.String()
}

type DocumentDetail struct {
	Document
	Chunks      []vectorize.Record `json:"chunks"`
	TotalChunks int                `json:"total_chunks"`
}

func (s *Service) Get(ctx context.Context, id string, includeChunks bool) (*DocumentDetail, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &DocumentDetail{Document: *doc}
	if includeChunks {
		chunks, err := s.chunkStore.GetChunks(ctx, id)
		if err != nil {
			slog.Warn("failed to fetch chunks", "error", err, "document_id", id)
			chunks = []vectorize.Record{}
		}
		detail.Chunks = chunks
		detail.TotalChunks = len(chunks)
	}
	return detail, nil
}

func (s *Service) List(ctx context.Context) ([]Document, error) {
	return s.repo.List(ctx)
}

// Delete removes the document's vectors first so a failed cascade never
// leaves orphaned embeddings behind a deleted row.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.chunkStore.DeleteChunksByDocumentID(ctx, id); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, id)
}
