package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"docqa/features/conversation"
	"docqa/features/document"
	"docqa/features/job"
	"docqa/features/stats"
	"docqa/internal/adapter/gemini"
	"docqa/internal/config"
	"docqa/internal/index"
	"docqa/internal/middleware"
	"docqa/internal/retrieval"
	"docqa/internal/settings"
	"docqa/internal/text"
	"docqa/internal/worker"
)

// Database is satisfied by *sql.DB. Repositories cast back to the concrete
// type; the interface keeps New mockable.
type Database interface {
	Ping() error
}

// VectorStore is the full index surface the application needs. The
// Weaviate adapter satisfies all of it.
type VectorStore interface {
	EnsureSchema(ctx context.Context) error
	UpsertPassages(ctx context.Context, passages []index.Passage) error
	QueryNearest(ctx context.Context, vector []float32, k int) ([]retrieval.Passage, error)
	DeletePassagesByDocument(ctx context.Context, documentName string) error
	CountPassages(ctx context.Context) (int, error)
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler         http.Handler
	DocumentService *document.Service
	IngestConsumer  *worker.IngestConsumer

	port int
}

func New(
	cfg *config.Config,
	db Database,
	vecStore VectorStore,
	taskPub TaskPublisher,
	logger *slog.Logger,
) (*App, error) {
	sqlDB := db.(*sql.DB)

	// Feature: Settings
	settingsRepo := settings.NewPostgresRepo(sqlDB)
	settingsService := settings.NewService(settingsRepo)
	seedSettings(cfg, settingsService)
	settingsHandler := settings.NewHandler(settingsService)

	// Adapters
	geminiClient := gemini.NewDynamicClient(settingsService)

	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}

	// Answer pipeline
	retrievalService := retrieval.NewService(geminiClient, vecStore, cfg.SearchTopK, queryLogger)
	generator := conversation.NewGenerator(geminiClient)
	conversationRepo := conversation.NewPostgresRepo(sqlDB)
	conversationService := conversation.NewService(conversationRepo, retrievalService, generator, cfg.ContextTurns)
	conversationHandler := conversation.NewHandler(conversationService)

	// Ingestion pipeline
	indexer := index.NewIndexer(geminiClient, vecStore)
	splitOpts := text.SplitOptions{
		SegmentLength: cfg.SegmentLength,
		Overlap:       cfg.SegmentOverlap,
	}
	documentRepo := document.NewPostgresRepo(sqlDB)
	documentService := document.NewService(documentRepo, taskPub, indexer, vecStore, splitOpts)
	documentHandler := document.NewHandler(documentService)

	// Feature: Job
	jobRepo := job.NewPostgresRepo(sqlDB)
	jobService := job.NewService(jobRepo, taskPub)
	jobHandler := job.NewHandler(jobService)

	// Feature: Stats
	statsHandler := stats.NewHandler(documentRepo, conversationRepo, jobRepo, vecStore)

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

	mux.Handle("POST /ask", middleware.CorrelationID(enableCORS(conversationHandler.Ask)))
	mux.Handle("POST /turns/{id}/rating", middleware.CorrelationID(enableCORS(conversationHandler.Rate)))
	mux.Handle("GET /sessions/{id}/turns", middleware.CorrelationID(enableCORS(conversationHandler.History)))

	mux.Handle("POST /documents", middleware.CorrelationID(enableCORS(documentHandler.Submit)))
	mux.Handle("GET /documents", middleware.CorrelationID(enableCORS(documentHandler.List)))
	mux.Handle("DELETE /documents/{name}", middleware.CorrelationID(enableCORS(documentHandler.Delete)))

	mux.Handle("GET /settings", middleware.CorrelationID(enableCORS(settingsHandler.GetSettings)))
	mux.Handle("PUT /settings", middleware.CorrelationID(enableCORS(settingsHandler.UpdateSettings)))

	mux.Handle("GET /jobs/failed", middleware.CorrelationID(enableCORS(jobHandler.List)))
	mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(enableCORS(jobHandler.Retry)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	ingestConsumer := worker.NewIngestConsumer(documentService, jobRepo)

	return &App{
		Handler:         mux,
		DocumentService: documentService,
		IngestConsumer:  ingestConsumer,
		port:            cfg.ServerPort,
	}, nil
}

// seedSettings copies the environment API key into stored settings on first
// boot, so the env var only matters until the settings UI takes over.
func seedSettings(cfg *config.Config, svc *settings.Service) {
	if cfg.GeminiAPIKey == "" {
		return
	}
	ctx := context.Background()
	set, err := svc.Get(ctx)
	if err != nil {
		slog.Warn("failed to fetch settings for seeding", "error", err)
		return
	}
	if set.GeminiAPIKey != "" {
		return
	}
	set.GeminiAPIKey = cfg.GeminiAPIKey
	if err := svc.Update(ctx, set); err != nil {
		slog.Warn("failed to seed gemini api key", "error", err)
		return
	}
	slog.Info("seeded gemini api key from environment")
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
