package app

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"docpipe/internal/config"
)

func TestNew(t *testing.T) {
	// 1. Mock DB
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	// 2. Mock Weaviate
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := weaviate.Config{
		Host:   server.URL[7:],
		Scheme: "http",
	}
	wClient, err := weaviate.NewClient(cfg)
	assert.NoError(t, err)

	// 3. Mock NSQ; the producer doesn't connect until first publish
	nsqCfg := nsq.NewConfig()
	producer, err := nsq.NewProducer("localhost:4150", nsqCfg)
	assert.NoError(t, err)

	// 4. Config
	appCfg := &config.Config{ServerPort: 8081}

	// 5. Logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Execute
	a, err := New(appCfg, db, wClient, producer, logger)
	assert.NoError(t, err)
	assert.NotNil(t, a)
	assert.NotNil(t, a.Handler)
	assert.NotNil(t, a.DocumentService)
	assert.NotNil(t, a.SummaryConsumer)

	// Verify Route (Integration-ish)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNew_SeedsAPIKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "rerank_provider", "rerank_api_key", "gemini_api_key", "search_limit", "similarity_threshold"}).
		AddRow(1, "", "", "", 10, 0.3)
	mock.ExpectQuery("SELECT (.+) FROM settings").WillReturnRows(rows)
	mock.ExpectExec("UPDATE settings").
		WithArgs("", "rerank-key", "env-key", 10, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	wClient, err := weaviate.NewClient(weaviate.Config{Host: server.URL[7:], Scheme: "http"})
	assert.NoError(t, err)

	producer, err := nsq.NewProducer("localhost:4150", nsq.NewConfig())
	assert.NoError(t, err)

	appCfg := &config.Config{ServerPort: 8081, GeminiAPIKey: "env-key", RerankAPIKey: "rerank-key"}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	_, err = New(appCfg, db, wClient, producer, logger)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
