package vectorize

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docpipe/internal/text"
)

// Record is one stored chunk embedding with its position in the source
// document.
type Record struct {
	DocumentID   string
	UserID       string
	ThreadID     string
	ChunkIndex   int
	Content      string
	Page         int
	SectionTitle string
	CharOffset   int
	Vector       []float32
}

// DocumentRef identifies the document the chunks belong to.
type DocumentRef struct {
	DocumentID string
	UserID     string
	ThreadID   string
}

// Embedder produces a vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store persists chunk embeddings.
type Store interface {
	StoreChunk(ctx context.Context, record Record) error
}

type Vectorizer struct {
	embedder  Embedder
	store     Store
	dimension int
	timeout   time.Duration
}

// New builds a Vectorizer. dimension is the expected embedding length;
// vectors of any other length are rejected. timeout, when positive,
// bounds each chunk's embed and store calls.
func New(embedder Embedder, store Store, dimension int, timeout time.Duration) *Vectorizer {
	return &Vectorizer{embedder: embedder, store: store, dimension: dimension, timeout: timeout}
}

// Vectorize embeds and stores each chunk in order and returns how many
// were stored. A chunk that fails to embed or store is logged and
// skipped; its index is never reassigned, so stored records keep their
// original position in the document.
func (v *Vectorizer) Vectorize(ctx context.Context, doc DocumentRef, chunks []text.Chunk) int {
	stored := 0
	for _, chunk := range chunks {
		if v.vectorizeChunk(ctx, doc, chunk) {
			stored++
		}
	}

	if stored < len(chunks) {
		slog.WarnContext(ctx, "vectorization incomplete",
			"document_id", doc.DocumentID, "stored", stored, "total", len(chunks))
	}
	return stored
}

// vectorizeChunk embeds and stores one chunk under a single deadline
// derived from the configured request timeout.
func (v *Vectorizer) vectorizeChunk(ctx context.Context, doc DocumentRef, chunk text.Chunk) bool {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	vector, err := v.embedder.Embed(ctx, chunk.Content)
	if err != nil {
		slog.ErrorContext(ctx, "chunk embedding failed, skipping",
			"document_id", doc.DocumentID, "chunk_index", chunk.Index, "error", err)
		return false
	}
	if err := v.checkDimension(vector); err != nil {
		slog.ErrorContext(ctx, "chunk embedding rejected, skipping",
			"document_id", doc.DocumentID, "chunk_index", chunk.Index, "error", err)
		return false
	}

	record := Record{
		DocumentID:   doc.DocumentID,
		UserID:       doc.UserID,
		ThreadID:     doc.ThreadID,
		ChunkIndex:   chunk.Index,
		Content:      chunk.Content,
		Page:         chunk.Page,
		SectionTitle: chunk.SectionTitle,
		CharOffset:   chunk.CharOffset,
		Vector:       vector,
	}
	if err := v.store.StoreChunk(ctx, record); err != nil {
		slog.ErrorContext(ctx, "chunk store failed, skipping",
			"document_id", doc.DocumentID, "chunk_index", chunk.Index, "error", err)
		return false
	}
	return true
}

func (v *Vectorizer) checkDimension(vector []float32) error {
	if v.dimension > 0 && len(vector) != v.dimension {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vector), v.dimension)
	}
	return nil
}
