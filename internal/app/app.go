package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"docpipe/features/document"
	"docpipe/features/job"
	"docpipe/features/stats"
	"docpipe/internal/adapter/gemini"
	"docpipe/internal/adapter/reranker"
	wstore "docpipe/internal/adapter/weaviate"
	"docpipe/internal/config"
	"docpipe/internal/extract"
	"docpipe/internal/loader"
	"docpipe/internal/middleware"
	"docpipe/internal/retrieval"
	"docpipe/internal/settings"
	"docpipe/internal/vectorize"
	"docpipe/internal/worker"
)

type App struct {
	Handler         http.Handler
	DocumentService *document.Service
	SummaryConsumer *worker.SummaryConsumer

	port int
}

func New(
	cfg *config.Config,
	db *sql.DB,
	wClient *weaviate.Client,
	taskPub document.EventPublisher,
	logger *slog.Logger,
) (*App, error) {

	vecStore := wstore.NewStore(wClient)

	// Feature: Settings
	settingsRepo := settings.NewPostgresRepo(db)
	settingsService := settings.NewService(settingsRepo)

	// Seed API keys from Config into settings, without overwriting
	// values operators already set through the settings endpoint.
	if cfg.GeminiAPIKey != "" || cfg.RerankAPIKey != "" {
		ctx := context.Background()
		set, err := settingsService.Get(ctx)
		if err == nil {
			seeded := false
			if cfg.GeminiAPIKey != "" && set.GeminiAPIKey == "" {
				set.GeminiAPIKey = cfg.GeminiAPIKey
				seeded = true
			}
			if cfg.RerankAPIKey != "" && set.RerankAPIKey == "" {
				set.RerankAPIKey = cfg.RerankAPIKey
				seeded = true
			}
			if seeded {
				if err := settingsService.Update(ctx, set); err != nil {
					slog.Warn("failed to seed api keys", "error", err)
				} else {
					slog.Info("seeded api keys from environment")
				}
			}
		} else {
			slog.Warn("failed to fetch settings for seeding", "error", err)
		}
	}

	settingsHandler := settings.NewHandler(settingsService)

	// Adapters: Dynamic
	geminiEmbedder := gemini.NewDynamicEmbedder(settingsService, cfg.EmbedMaxChars)
	rerankerClient := reranker.NewDynamicClient(settingsService)

	// Entity extraction needs a static generation client; without an API
	// key the extractor stays disabled and ingestion runs without entities.
	var gen extract.Generator
	if cfg.GeminiAPIKey != "" {
		client, err := gemini.NewClient(context.Background(), cfg.GeminiAPIKey)
		if err != nil {
			slog.Warn("failed to create gemini client, entity extraction disabled", "error", err)
		} else {
			gen = gemini.NewGenerator(client)
		}
	}
	requestTimeout := time.Duration(cfg.RequestTimeoutSecs) * time.Second

	extractor := extract.New(gen, extract.Config{
		Enabled:        cfg.EnableEntityExtraction && gen != nil,
		WindowSize:     cfg.ExtractionWindowSize,
		Overlap:        cfg.ExtractionOverlap,
		Concurrency:    cfg.ExtractionConcurrency,
		MaxPerWindow:   cfg.MaxEntitiesPerWindow,
		RequestTimeout: requestTimeout,
	})

	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	jobService := job.NewService(jobRepo)
	jobHandler := job.NewHandler(jobService)

	// Feature: Retrieval
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retrievalService := retrieval.NewService(geminiEmbedder, vecStore, rerankerClient, settingsService, queryLogger, requestTimeout)

	// Feature: Document
	maxUploadBytes := cfg.MaxUploadSizeMB << 20
	docLoader := loader.New(cfg.EnableOCR, cfg.PDFMinTextChars)
	vectorizer := vectorize.New(geminiEmbedder, vecStore, cfg.EmbeddingDimension, requestTimeout)

	documentRepo := document.NewPostgresRepo(db)
	documentService := document.NewService(documentRepo, docLoader, extractor, vectorizer, vecStore, taskPub, maxUploadBytes, cfg.ChunkSize, cfg.ChunkOverlap)
	documentHandler := document.NewHandler(documentService, retrievalService, jobService, maxUploadBytes)

	// Feature: Stats
	statsHandler := stats.NewHandler(documentRepo, jobRepo, vecStore)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /documents", middleware.CorrelationID(enableCORS(documentHandler.Upload)))
	mux.Handle("GET /documents", middleware.CorrelationID(enableCORS(documentHandler.List)))
	mux.Handle("GET /documents/{id}", middleware.CorrelationID(enableCORS(documentHandler.Get)))
	mux.Handle("DELETE /documents/{id}", middleware.CorrelationID(enableCORS(documentHandler.Delete)))

	mux.Handle("POST /search", middleware.CorrelationID(enableCORS(documentHandler.Search)))

	mux.Handle("GET /jobs", middleware.CorrelationID(enableCORS(jobHandler.List)))
	mux.Handle("GET /jobs/{id}", middleware.CorrelationID(enableCORS(jobHandler.Get)))

	mux.Handle("GET /settings", middleware.CorrelationID(enableCORS(settingsHandler.GetSettings)))
	mux.Handle("PUT /settings", middleware.CorrelationID(enableCORS(settingsHandler.UpdateSettings)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	summaryConsumer := worker.NewSummaryConsumer(geminiEmbedder, vecStore)

	return &App{
		Handler:         mux,
		DocumentService: documentService,
		SummaryConsumer: summaryConsumer,
		port:            cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
