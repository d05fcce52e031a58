package worker

// SummaryEmbedPayload is published after document ingestion to embed
// the document's summary in the background.
type SummaryEmbedPayload struct {
	DocumentID string `json:"document_id"`
	UserID     string `json:"user_id"`
	Summary    string `json:"summary"`

	CorrelationID string `json:"correlation_id"`
}
