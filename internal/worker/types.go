package worker

import (
	"context"
)

// Summary is an embedded document summary destined for the vector store.
type Summary struct {
	DocumentID string
	UserID     string
	Summary    string
	Vector     []float32
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type SummaryStore interface {
	StoreSummary(ctx context.Context, summary Summary) error
}
