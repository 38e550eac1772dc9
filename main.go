package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"docqa/internal/app"
	"docqa/internal/config"
	"docqa/internal/logger"
)

func main() {
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()
	defer deps.NSQProducer.Stop()

	a, err := app.New(cfg, deps.DB, deps.VectorStore, deps.NSQProducer, log)
	if err != nil {
		slog.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	if cfg.EnableIngestWorker {
		consumer, err := nsq.NewConsumer(config.TopicIngestDocument, config.ChannelIngestWorker, nsq.NewConfig())
		if err != nil {
			slog.Error("failed to create NSQ consumer", "error", err)
			os.Exit(1)
		}
		consumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
			return a.IngestConsumer.HandleMessage(m)
		}))
		if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
			slog.Error("failed to connect to NSQLookupd", "error", err)
		} else {
			slog.Info("ingest consumer connected", "topic", config.TopicIngestDocument)
		}
		defer consumer.Stop()
	}

	if !cfg.EnableAPI {
		slog.Info("api disabled, running worker only")
		<-ctx.Done()
		return
	}

	if err := a.Run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
