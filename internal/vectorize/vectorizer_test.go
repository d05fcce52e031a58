package vectorize

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"docpipe/internal/text"
)

type fakeEmbedder struct {
	fn func(content string) ([]float32, error)
}

func (f *fakeEmbedder) Embed(ctx context.Context, content string) ([]float32, error) {
	return f.fn(content)
}

type captureStore struct {
	records []Record
	failOn  map[int]error
}

func (s *captureStore) StoreChunk(ctx context.Context, record Record) error {
	if err, ok := s.failOn[record.ChunkIndex]; ok {
		return err
	}
	s.records = append(s.records, record)
	return nil
}

func vec(dim int) []float32 {
	return make([]float32, dim)
}

func chunksOf(contents ...string) []text.Chunk {
	chunks := make([]text.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = text.Chunk{Index: i, Content: c, Page: i + 1, CharOffset: i * 10}
	}
	return chunks
}

func TestVectorize_StoresAllChunks(t *testing.T) {
	embedder := &fakeEmbedder{fn: func(string) ([]float32, error) { return vec(4), nil }}
	store := &captureStore{}
	v := New(embedder, store, 4, 0)

	doc := DocumentRef{DocumentID: "doc-1", UserID: "alice", ThreadID: "t-1"}
	stored := v.Vectorize(context.Background(), doc, chunksOf("one", "two", "three"))

	assert.Equal(t, 3, stored)
	assert.Len(t, store.records, 3)
	for i, r := range store.records {
		assert.Equal(t, "doc-1", r.DocumentID)
		assert.Equal(t, "alice", r.UserID)
		assert.Equal(t, "t-1", r.ThreadID)
		assert.Equal(t, i, r.ChunkIndex)
		assert.Equal(t, i+1, r.Page)
	}
}

func TestVectorize_SkipsFailedEmbeddings(t *testing.T) {
	embedder := &fakeEmbedder{fn: func(content string) ([]float32, error) {
		if content == "two" {
			return nil, errors.New("quota exceeded")
		}
		return vec(4), nil
	}}
	store := &captureStore{}
	v := New(embedder, store, 4, 0)

	stored := v.Vectorize(context.Background(), DocumentRef{DocumentID: "doc-1"}, chunksOf("one", "two", "three"))

	assert.Equal(t, 2, stored)
	assert.Len(t, store.records, 2)
	// Indices stay as assigned by the chunker, never renumbered.
	assert.Equal(t, 0, store.records[0].ChunkIndex)
	assert.Equal(t, 2, store.records[1].ChunkIndex)
}

func TestVectorize_SkipsStoreFailures(t *testing.T) {
	embedder := &fakeEmbedder{fn: func(string) ([]float32, error) { return vec(4), nil }}
	store := &captureStore{failOn: map[int]error{1: errors.New("weaviate down")}}
	v := New(embedder, store, 4, 0)

	stored := v.Vectorize(context.Background(), DocumentRef{DocumentID: "doc-1"}, chunksOf("one", "two", "three"))

	assert.Equal(t, 2, stored)
	assert.Len(t, store.records, 2)
}

func TestVectorize_RejectsWrongDimension(t *testing.T) {
	calls := 0
	embedder := &fakeEmbedder{fn: func(string) ([]float32, error) {
		calls++
		if calls == 2 {
			return vec(3), nil
		}
		return vec(4), nil
	}}
	store := &captureStore{}
	v := New(embedder, store, 4, 0)

	stored := v.Vectorize(context.Background(), DocumentRef{DocumentID: "doc-1"}, chunksOf("one", "two", "three"))

	assert.Equal(t, 2, stored)
	for _, r := range store.records {
		assert.Len(t, r.Vector, 4)
	}
}

func TestVectorize_ZeroDimensionDisablesCheck(t *testing.T) {
	embedder := &fakeEmbedder{fn: func(content string) ([]float32, error) {
		return vec(len(content)), nil
	}}
	store := &captureStore{}
	v := New(embedder, store, 0, 0)

	stored := v.Vectorize(context.Background(), DocumentRef{DocumentID: "doc-1"}, chunksOf("one", "seven"))
	assert.Equal(t, 2, stored)
}

type deadlineEmbedder struct {
	sawDeadline bool
}

func (d *deadlineEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	_, d.sawDeadline = ctx.Deadline()
	return vec(4), nil
}

func TestVectorize_BoundsCallsWithTimeout(t *testing.T) {
	embedder := &deadlineEmbedder{}
	store := &captureStore{}
	v := New(embedder, store, 4, time.Second)

	stored := v.Vectorize(context.Background(), DocumentRef{DocumentID: "doc-1"}, chunksOf("one"))

	assert.Equal(t, 1, stored)
	assert.True(t, embedder.sawDeadline)
}

func TestVectorize_ZeroTimeoutLeavesContextUnbounded(t *testing.T) {
	embedder := &deadlineEmbedder{}
	store := &captureStore{}
	v := New(embedder, store, 4, 0)

	v.Vectorize(context.Background(), DocumentRef{DocumentID: "doc-1"}, chunksOf("one"))

	assert.False(t, embedder.sawDeadline)
}

func TestVectorize_EmptyChunks(t *testing.T) {
	embedder := &fakeEmbedder{fn: func(string) ([]float32, error) {
		return nil, fmt.Errorf("should not be called")
	}}
	store := &captureStore{}
	v := New(embedder, store, 4, 0)

	stored := v.Vectorize(context.Background(), DocumentRef{DocumentID: "doc-1"}, nil)
	assert.Equal(t, 0, stored)
	assert.Empty(t, store.records)
}
