package retrieval_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wstore "docpipe/internal/adapter/weaviate"
	"docpipe/internal/retrieval"
	"docpipe/internal/settings"
	"docpipe/internal/testutils"
	"docpipe/internal/text"
	"docpipe/internal/vector"
	"docpipe/internal/vectorize"
)

// fixedEmbedder maps text to a vector deterministically, so the same
// text always embeds to the same point.
type fixedEmbedder struct{}

func (fixedEmbedder) Embed(_ context.Context, s string) ([]float32, error) {
	vec := make([]float32, 8)
	for i, r := range s {
		vec[i%8] += float32(r)
	}
	return vec, nil
}

// Stores a chunk through the vectorizer and searches it back with the
// exact same text: the identical embedding must come back as the top
// match at distance ~0.
func TestFindSimilar_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	suite := testutils.NewIntegrationSuite(t)
	suite.Setup()
	defer suite.Teardown()

	ctx := context.Background()
	require.NoError(t, vector.EnsureSchema(ctx, vector.NewWeaviateClientAdapter(suite.Weaviate)))

	embedder := fixedEmbedder{}
	store := wstore.NewStore(suite.Weaviate)
	vectorizer := vectorize.New(embedder, store, 0, 0)

	content := "Quarterly revenue grew twelve percent on subscription volume."
	chunks := []text.Chunk{{Index: 0, Content: content, Page: 1, SectionTitle: "Results"}}
	stored := vectorizer.Vectorize(ctx, vectorize.DocumentRef{DocumentID: "doc-rt", UserID: "alice"}, chunks)
	require.Equal(t, 1, stored)

	settingsService := settings.NewService(settings.NewPostgresRepo(suite.DB))
	svc := retrieval.NewService(embedder, store, nil, settingsService, retrieval.NewQueryLogger(io.Discard), 0)

	var matches []retrieval.Match
	require.Eventually(t, func() bool {
		var err error
		matches, err = svc.FindSimilar(ctx, content, &retrieval.SearchOptions{UserID: "alice"})
		return err == nil && len(matches) == 1
	}, 10*time.Second, 200*time.Millisecond, "stored chunk should become searchable")

	assert.Equal(t, content, matches[0].Content)
	assert.Equal(t, "doc-rt", matches[0].DocumentID)
	assert.Equal(t, 0, matches[0].ChunkIndex)
	assert.InDelta(t, 0, matches[0].Distance, 0.01)
	assert.InDelta(t, 1, matches[0].Score, 0.01)
}
