package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"docpipe/internal/app"
	"docpipe/internal/config"
	"docpipe/internal/logger"
)

func main() {
	// Initialize structured logger
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Connect infrastructure (Postgres, migrations, Weaviate schema, NSQ)
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()
	defer deps.NSQProducer.Stop()

	// 3. Wire the application
	a, err := app.New(cfg, deps.DB, deps.WeaviateClient, deps.NSQProducer, log)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}

	// 4. Summary Worker (optional)
	// Consumes summary.embed tasks published after each ingestion.
	if cfg.EnableSummaryWorker {
		consumer, err := nsq.NewConsumer(config.TopicSummaryEmbed, "backend", nsq.NewConfig())
		if err != nil {
			slog.Error("failed to create NSQ consumer for summaries", "error", err)
		} else {
			consumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
				return a.SummaryConsumer.HandleMessage(m)
			}))
			if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
				slog.Error("failed to connect to NSQLookupd", "error", err)
			} else {
				slog.Info("NSQ summary consumer connected", "topic", config.TopicSummaryEmbed)
			}
			defer consumer.Stop()
		}
	}

	// 5. Serve
	if err := a.Run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
