package retrieval

import (
	"context"
	"time"

	"docpipe/internal/middleware"
	"docpipe/internal/settings"
)

// AnonymousUser is the sentinel owner meaning "search across all
// documents" — no owner filter is applied to the vector query.
const AnonymousUser = "anonymous"

type Match struct {
	Content      string  `json:"content"`
	DocumentID   string  `json:"documentId"`
	ChunkIndex   int     `json:"chunkIndex"`
	Page         int     `json:"page,omitempty"`
	SectionTitle string  `json:"sectionTitle,omitempty"`
	CharOffset   int     `json:"charOffset"`
	Distance     float32 `json:"distance"`
	Score        float32 `json:"score"`
}

type SearchOptions struct {
	UserID    string
	Limit     *int
	Threshold *float32
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	// NearestChunks returns chunks within maxDistance of the vector,
	// nearest first. An empty userID means no owner filter.
	NearestChunks(ctx context.Context, vector []float32, maxDistance float32, limit int, userID string) ([]Match, error)
}

type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string) ([]int, error)
}

type Service struct {
	embedder Embedder
	store    VectorStore
	reranker Reranker
	settings *settings.Service
	logger   *QueryLogger
	timeout  time.Duration
}

// NewService wires the search path. timeout, when positive, bounds each
// external call (embed, vector search, rerank) individually.
func NewService(e Embedder, s VectorStore, r Reranker, set *settings.Service, l *QueryLogger, timeout time.Duration) *Service {
	return &Service{embedder: e, store: s, reranker: r, settings: set, logger: l, timeout: timeout}
}

func (s *Service) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// FindSimilar embeds the query and returns stored chunks within the
// similarity threshold, nearest first. An empty result is not an error.
func (s *Service) FindSimilar(ctx context.Context, query string, opts *SearchOptions) ([]Match, error) {
	start := time.Now()
	var finalDocs []Match
	var err error

	defer func() {
		if s.logger == nil || err != nil {
			return
		}
		entry := QueryLogEntry{
			Query:         query,
			NumResults:    len(finalDocs),
			Duration:      time.Since(start),
			CorrelationID: middleware.GetCorrelationID(ctx),
		}
		if opts != nil {
			entry.UserID = opts.UserID
		}
		seen := make(map[string]bool)
		for _, m := range finalDocs {
			if m.DocumentID != "" && !seen[m.DocumentID] {
				seen[m.DocumentID] = true
				entry.DocumentIDs = append(entry.DocumentIDs, m.DocumentID)
			}
		}
		s.logger.Log(entry)
	}()

	// Get settings for defaults
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		// Fallback defaults if settings fail (shouldn't happen)
		cfg = &settings.Settings{SearchLimit: 10, SimilarityThreshold: 0.3}
		err = nil
	}

	limit := cfg.SearchLimit
	threshold := cfg.SimilarityThreshold
	userID := ""

	if opts != nil {
		if opts.Limit != nil {
			limit = *opts.Limit
		}
		if opts.Threshold != nil {
			threshold = *opts.Threshold
		}
		if opts.UserID != "" && opts.UserID != AnonymousUser {
			userID = opts.UserID
		}
	}
	if limit <= 0 {
		limit = 10
	}

	// 1. Embed query
	embedCtx, cancel := s.callCtx(ctx)
	vec, err := s.embedder.Embed(embedCtx, query)
	cancel()
	if err != nil {
		return nil, err
	}

	// 2. Nearest-vector search. Weaviate bounds results by cosine
	// distance, so the similarity threshold inverts to a distance cap.
	maxDistance := 1 - threshold
	searchCtx, cancel := s.callCtx(ctx)
	docs, err := s.store.NearestChunks(searchCtx, vec, maxDistance, limit, userID)
	cancel()
	if err != nil {
		return nil, err
	}

	for i := range docs {
		docs[i].Score = 1 - docs[i].Distance
	}

	// 3. Rerank (if configured)
	if s.reranker != nil && len(docs) > 0 {
		contents := make([]string, len(docs))
		for i, d := range docs {
			contents[i] = d.Content
		}

		rerankCtx, cancel := s.callCtx(ctx)
		indices, rerr := s.reranker.Rerank(rerankCtx, query, contents)
		cancel()
		if rerr != nil {
			err = rerr
			return nil, rerr
		}

		reranked := make([]Match, 0, len(indices))
		for _, idx := range indices {
			if idx < len(docs) {
				reranked = append(reranked, docs[idx])
			}
		}
		finalDocs = reranked
		return reranked, nil
	}

	finalDocs = docs
	return docs, nil
}
