package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nsqio/go-nsq"

	"docpipe/internal/middleware"
)

// SummaryConsumer embeds document summaries off the request path. A
// failure here never affects the ingestion result the caller saw.
type SummaryConsumer struct {
	embedder Embedder
	store    SummaryStore
}

func NewSummaryConsumer(e Embedder, s SummaryStore) *SummaryConsumer {
	return &SummaryConsumer{
		embedder: e,
		store:    s,
	}
}

func (h *SummaryConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload SummaryEmbedPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	if payload.DocumentID == "" || strings.TrimSpace(payload.Summary) == "" {
		// Nothing to embed, don't retry
		slog.Error("poison pill: empty summary payload", "document_id", payload.DocumentID)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	embedCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	vector, err := h.embedder.Embed(embedCtx, payload.Summary)
	if err != nil {
		slog.ErrorContext(ctx, "summary embedding failed", "error", err, "document_id", payload.DocumentID)
		return err // Retry
	}

	summary := Summary{
		DocumentID: payload.DocumentID,
		UserID:     payload.UserID,
		Summary:    payload.Summary,
		Vector:     vector,
	}

	if err := h.store.StoreSummary(embedCtx, summary); err != nil {
		slog.ErrorContext(ctx, "store summary failed", "error", err, "document_id", payload.DocumentID)
		return err // Retry
	}

	slog.InfoContext(ctx, "summary embedded", "document_id", payload.DocumentID)
	return nil
}
