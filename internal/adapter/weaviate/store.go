package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"docpipe/internal/retrieval"
	"docpipe/internal/vector"
	"docpipe/internal/vectorize"
	"docpipe/internal/worker"
)

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func (s *Store) StoreChunk(ctx context.Context, record vectorize.Record) error {
	_, err := s.client.Data().Creator().
		WithClassName(vector.ClassChunk).
		WithProperties(map[string]interface{}{
			"content":      record.Content,
			"documentId":   record.DocumentID,
			"userId":       record.UserID,
			"threadId":     record.ThreadID,
			"chunkIndex":   record.ChunkIndex,
			"page":         record.Page,
			"sectionTitle": record.SectionTitle,
			"charOffset":   record.CharOffset,
		}).
		WithVector(record.Vector).
		Do(ctx)
	return err
}

func (s *Store) StoreSummary(ctx context.Context, summary worker.Summary) error {
	_, err := s.client.Data().Creator().
		WithClassName(vector.ClassSummary).
		WithProperties(map[string]interface{}{
			"summary":    summary.Summary,
			"documentId": summary.DocumentID,
			"userId":     summary.UserID,
		}).
		WithVector(summary.Vector).
		Do(ctx)
	return err
}

func (s *Store) DeleteChunksByDocumentID(ctx context.Context, documentID string) error {
	where := filters.Where().
		WithPath([]string{"documentId"}).
		WithOperator(filters.Equal).
		WithValueString(documentID)

	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassChunk).
		WithOutput("minimal").
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return err
	}

	// Summaries cascade with their document.
	_, err = s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassSummary).
		WithOutput("minimal").
		WithWhere(where).
		Do(ctx)
	return err
}

// NearestChunks runs a nearVector query bounded by distance. Weaviate
// returns objects in ascending distance order. An empty userID skips
// the owner filter.
func (s *Store) NearestChunks(ctx context.Context, vec []float32, maxDistance float32, limit int, userID string) ([]retrieval.Match, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vec).
		WithDistance(maxDistance)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "documentId"},
		{Name: "chunkIndex"},
		{Name: "page"},
		{Name: "sectionTitle"},
		{Name: "charOffset"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	query := s.client.GraphQL().Get().
		WithClassName(vector.ClassChunk).
		WithNearVector(nearVector).
		WithLimit(limit).
		WithFields(fields...)

	if userID != "" {
		query = query.WithWhere(filters.Where().
			WithPath([]string{"userId"}).
			WithOperator(filters.Equal).
			WithValueString(userID))
	}

	res, err := query.Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var results []retrieval.Match
	if data, ok := res.Data["Get"].(map[string]interface{}); ok {
		if chunks, ok := data[vector.ClassChunk].([]interface{}); ok {
			for _, c := range chunks {
				props, ok := c.(map[string]interface{})
				if !ok {
					continue
				}
				match := retrieval.Match{}

				if content, ok := props["content"].(string); ok {
					match.Content = content
				}
				if documentID, ok := props["documentId"].(string); ok {
					match.DocumentID = documentID
				}
				if chunkIndex, ok := props["chunkIndex"].(float64); ok {
					match.ChunkIndex = int(chunkIndex)
				}
				if page, ok := props["page"].(float64); ok {
					match.Page = int(page)
				}
				if sectionTitle, ok := props["sectionTitle"].(string); ok {
					match.SectionTitle = sectionTitle
				}
				if charOffset, ok := props["charOffset"].(float64); ok {
					match.CharOffset = int(charOffset)
				}

				if additional, ok := props["_additional"].(map[string]interface{}); ok {
					switch d := additional["distance"].(type) {
					case float64:
						match.Distance = float32(d)
					case string:
						// Some server versions serialize additional fields as strings.
						var f float64
						fmt.Sscanf(d, "%f", &f)
						match.Distance = float32(f)
					}
				}

				results = append(results, match)
			}
		}
	}

	return results, nil
}

func (s *Store) GetChunks(ctx context.Context, documentID string) ([]vectorize.Record, error) {
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "documentId"},
		{Name: "userId"},
		{Name: "threadId"},
		{Name: "chunkIndex"},
		{Name: "page"},
		{Name: "sectionTitle"},
		{Name: "charOffset"},
	}

	where := filters.Where().
		WithPath([]string{"documentId"}).
		WithOperator(filters.Equal).
		WithValueString(documentID)

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassChunk).
		WithWhere(where).
		WithLimit(1000).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var records []vectorize.Record
	if data, ok := res.Data["Get"].(map[string]interface{}); ok {
		if rawChunks, ok := data[vector.ClassChunk].([]interface{}); ok {
			for _, c := range rawChunks {
				props, ok := c.(map[string]interface{})
				if !ok {
					continue
				}
				record := vectorize.Record{}
				if content, ok := props["content"].(string); ok {
					record.Content = content
				}
				if documentID, ok := props["documentId"].(string); ok {
					record.DocumentID = documentID
				}
				if userID, ok := props["userId"].(string); ok {
					record.UserID = userID
				}
				if threadID, ok := props["threadId"].(string); ok {
					record.ThreadID = threadID
				}
				if idx, ok := props["chunkIndex"].(float64); ok {
					record.ChunkIndex = int(idx)
				}
				if page, ok := props["page"].(float64); ok {
					record.Page = int(page)
				}
				if sectionTitle, ok := props["sectionTitle"].(string); ok {
					record.SectionTitle = sectionTitle
				}
				if charOffset, ok := props["charOffset"].(float64); ok {
					record.CharOffset = int(charOffset)
				}
				records = append(records, record)
			}
		}
	}
	return records, nil
}

// CountChunks returns the total number of stored chunk objects.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassChunk).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors)
	}

	if data, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if agg, ok := data[vector.ClassChunk].([]interface{}); ok && len(agg) > 0 {
			if entry, ok := agg[0].(map[string]interface{}); ok {
				if meta, ok := entry["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}
	return 0, nil
}
