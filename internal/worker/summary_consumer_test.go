package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"docpipe/internal/worker"
)

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockSummaryStore struct{ mock.Mock }

func (m *MockSummaryStore) StoreSummary(ctx context.Context, summary worker.Summary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

func TestSummaryConsumer_HandleMessage(t *testing.T) {
	e := new(MockEmbedder)
	s := new(MockSummaryStore)

	consumer := worker.NewSummaryConsumer(e, s)

	payload := worker.SummaryEmbedPayload{
		DocumentID: "doc-1",
		UserID:     "alice",
		Summary:    "report.pdf: 3 pages, 1200 words. Quarterly revenue summary.",
	}
	body, _ := json.Marshal(payload)
	msg := &nsq.Message{Body: body}

	e.On("Embed", mock.Anything, payload.Summary).Return([]float32{0.1, 0.2}, nil)
	s.On("StoreSummary", mock.Anything, mock.MatchedBy(func(sum worker.Summary) bool {
		return sum.DocumentID == "doc-1" && sum.UserID == "alice" && len(sum.Vector) == 2
	})).Return(nil)

	err := consumer.HandleMessage(msg)

	assert.NoError(t, err)
	e.AssertExpectations(t)
	s.AssertExpectations(t)
}

func TestSummaryConsumer_PoisonPill(t *testing.T) {
	e := new(MockEmbedder)
	s := new(MockSummaryStore)
	consumer := worker.NewSummaryConsumer(e, s)

	t.Run("Invalid JSON", func(t *testing.T) {
		msg := &nsq.Message{Body: []byte("invalid json")}
		err := consumer.HandleMessage(msg)
		assert.NoError(t, err) // Should return nil (ack)
	})

	t.Run("Empty Summary", func(t *testing.T) {
		body, _ := json.Marshal(worker.SummaryEmbedPayload{DocumentID: "doc-1", Summary: "   "})
		err := consumer.HandleMessage(&nsq.Message{Body: body})
		assert.NoError(t, err)
	})

	t.Run("Empty Body", func(t *testing.T) {
		err := consumer.HandleMessage(&nsq.Message{Body: nil})
		assert.NoError(t, err)
	})

	e.AssertNotCalled(t, "Embed")
	s.AssertNotCalled(t, "StoreSummary")
}

func TestSummaryConsumer_RetryableFailures(t *testing.T) {
	t.Run("Embed Error", func(t *testing.T) {
		e := new(MockEmbedder)
		s := new(MockSummaryStore)
		consumer := worker.NewSummaryConsumer(e, s)

		e.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("api down"))

		body, _ := json.Marshal(worker.SummaryEmbedPayload{DocumentID: "doc-1", Summary: "text"})
		err := consumer.HandleMessage(&nsq.Message{Body: body})

		assert.Error(t, err) // NSQ requeues
		s.AssertNotCalled(t, "StoreSummary")
	})

	t.Run("Store Error", func(t *testing.T) {
		e := new(MockEmbedder)
		s := new(MockSummaryStore)
		consumer := worker.NewSummaryConsumer(e, s)

		e.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		s.On("StoreSummary", mock.Anything, mock.Anything).Return(errors.New("weaviate down"))

		body, _ := json.Marshal(worker.SummaryEmbedPayload{DocumentID: "doc-1", Summary: "text"})
		err := consumer.HandleMessage(&nsq.Message{Body: body})

		assert.Error(t, err)
	})
}
