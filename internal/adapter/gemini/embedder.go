package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	embeddingModel  = "gemini-embedding-001"
	generationModel = "gemini-2.0-flash"
)

// NewClient builds the process-wide genai client. The client is stateless
// request/response and safe for concurrent use, so one instance is shared
// by the embedder and the generator.
func NewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*genai.Client, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	return genai.NewClient(ctx, opts...)
}

type Embedder struct {
	client   *genai.Client
	model    string
	maxChars int
}

// NewEmbedder wraps the shared client. Input longer than maxChars is
// truncated before the call to respect the embedding model's context
// limit.
func NewEmbedder(client *genai.Client, maxChars int) *Embedder {
	return &Embedder{client: client, model: embeddingModel, maxChars: maxChars}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = Truncate(text, e.maxChars)
	slog.DebugContext(ctx, "embedding content", "model", e.model, "length", len(text))

	em := e.client.EmbeddingModel(e.model)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		slog.ErrorContext(ctx, "embedding failed", "error", err)
		return nil, err
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding received")
	}
	return res.Embedding.Values, nil
}

// Truncate caps text at max characters, cutting on a rune boundary.
func Truncate(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
