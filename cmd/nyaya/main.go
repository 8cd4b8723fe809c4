package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nyaya-labs/nyaya/internal/config"
	"github.com/nyaya-labs/nyaya/internal/db"
	dbPostgres "github.com/nyaya-labs/nyaya/internal/db/postgres"
	dbRedis "github.com/nyaya-labs/nyaya/internal/db/redis"
	"github.com/nyaya-labs/nyaya/internal/domain"
	"github.com/nyaya-labs/nyaya/internal/domain/prompt"
	logpkg "github.com/nyaya-labs/nyaya/internal/logger"
	"github.com/nyaya-labs/nyaya/internal/metrics"
	budgetrepo "github.com/nyaya-labs/nyaya/internal/repository/budget"
	"github.com/nyaya-labs/nyaya/internal/repository/embcache"
	"github.com/nyaya-labs/nyaya/internal/tokenizer"
	chiTransport "github.com/nyaya-labs/nyaya/internal/transport/chi"
	openaiTransport "github.com/nyaya-labs/nyaya/internal/transport/openai"
	budgetuc "github.com/nyaya-labs/nyaya/internal/usecase/budget"
	embeddinguc "github.com/nyaya-labs/nyaya/internal/usecase/embedding"
	generationuc "github.com/nyaya-labs/nyaya/internal/usecase/generation"
	healthuc "github.com/nyaya-labs/nyaya/internal/usecase/health"
	"github.com/nyaya-labs/nyaya/internal/usecase/query"
	"github.com/nyaya-labs/nyaya/internal/usecase/retrieval"
	usageuc "github.com/nyaya-labs/nyaya/internal/usecase/usage"
	"github.com/nyaya-labs/nyaya/internal/version"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting nyaya API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("vector_store", cfg.VectorStore.Driver),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("generation_model", cfg.Generation.Model),
	)

	ctx := context.Background()

	// Redis backs the redis vector driver, the embedding cache and budget counters.
	var kv *dbRedis.Store
	if len(cfg.Redis.Addrs) > 0 {
		kv, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:        cfg.Redis.Addrs,
			Password:     cfg.Redis.Password,
			Index:        cfg.Redis.Index,
			ContentField: cfg.Redis.ContentField,
			VectorField:  cfg.Redis.VectorField,
		})
		if err != nil {
			logger.Fatal("Failed to create redis store", zap.Error(err))
		}
		if cfg.VectorStore.Driver != config.DriverRedis {
			defer kv.Close()
		}
	}

	store, err := newVectorStore(ctx, cfg, kv)
	if err != nil {
		logger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer store.Close()

	readiness := time.Duration(cfg.VectorStore.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, readiness); err != nil {
		logger.Fatal("Vector store not ready", zap.Error(err))
	}
	if kv != nil && cfg.VectorStore.Driver != config.DriverRedis {
		if err := kv.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Redis not ready", zap.Error(err))
		}
	}
	logger.Info("Connected to vector store")

	// Register metrics explicitly (no init())
	metrics.RegisterRAGMetrics()

	// Single Tracker shared by embedding, generation and the usage report.
	// Pass nil interface (not typed nil pointer!) if budget is not configured:
	// (*Tracker)(nil) wrapped in BudgetChecker != nil.
	var (
		embBudget    embeddinguc.BudgetChecker
		genBudget    generationuc.BudgetChecker
		budgetReader usageuc.BudgetReader
	)
	if budget := newBudget(ctx, cfg.Budget, kv, logger); budget != nil {
		embBudget, genBudget, budgetReader = budget, budget, budget
	}

	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})
	embedder := buildEmbedder(cfg, baseEmbedder, kv, embBudget, logger)

	baseGenerator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		Config: openaiTransport.Config{
			APIKey:   cfg.Generation.APIKey,
			BaseURL:  cfg.Generation.BaseURL,
			Model:    cfg.Generation.Model,
			Provider: cfg.Generation.Provider,
			Timeout:  time.Duration(cfg.Generation.TimeoutSec) * time.Second,
			Logger:   logger,
		},
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
	})
	generator := generationuc.NewInstrumentedGenerator(
		baseGenerator, cfg.Generation.Provider, cfg.Generation.Model, genBudget, logger,
	)

	retriever := retrieval.New(embedder, store, logger,
		retrieval.WithTopK(cfg.Retrieval.TopK),
		retrieval.WithMarkerStripping(cfg.Retrieval.StripLanguageMarker),
	)

	var counter prompt.TokenCounter
	if cfg.Prompt.MaxContextTokens > 0 {
		tok, err := tokenizer.New(cfg.Prompt.TokenizerEncoding)
		if err != nil {
			logger.Fatal("Failed to load tokenizer", zap.Error(err))
		}
		counter = tok
	}
	assembler := prompt.NewAssembler(counter, cfg.Prompt.MaxContextTokens)

	pipeline := query.New(retriever, assembler, prompt.NewBuilder(cfg.Prompt.Jurisdiction), generator, logger,
		query.WithTopK(cfg.Retrieval.TopK),
	)

	healthOpts := []healthuc.Option{
		healthuc.WithEmbedding(baseEmbedder),
		healthuc.WithGeneration(baseGenerator),
	}
	if kv != nil && cfg.VectorStore.Driver != config.DriverRedis {
		healthOpts = append(healthOpts, healthuc.WithCache(kv))
	}
	healthSvc := healthuc.New(store, healthOpts...)

	server := chiTransport.NewServer(pipeline, healthSvc, usageuc.New(budgetReader), logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// newVectorStore picks the similarity search backend. The redis driver reuses kv.
func newVectorStore(ctx context.Context, cfg config.Config, kv *dbRedis.Store) (db.VectorSearcher, error) {
	switch cfg.VectorStore.Driver {
	case config.DriverPostgres:
		s, err := dbPostgres.NewStore(ctx, dbPostgres.Config{
			DSN:           cfg.VectorStore.Postgres.DSN,
			MatchFunction: cfg.VectorStore.Postgres.MatchFunction,
			MaxConns:      cfg.VectorStore.Postgres.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return s, nil
	case config.DriverRedis:
		if kv == nil {
			return nil, errors.New("redis driver requires redis.addrs")
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown vector store driver %q", cfg.VectorStore.Driver)
	}
}

// newBudget returns nil when no limit is configured.
func newBudget(ctx context.Context, cfg config.BudgetConfig, kv *dbRedis.Store, logger *zap.Logger) *budgetuc.Tracker {
	if cfg.DailyTokenLimit <= 0 && cfg.MonthlyTokenLimit <= 0 {
		return nil
	}
	tracker := budgetuc.NewTracker(cfg.DailyTokenLimit, cfg.MonthlyTokenLimit, budgetuc.Action(cfg.Action), logger).
		WithGauge(metrics.BudgetTokensRemaining)
	if kv != nil {
		// Connect persistence store, loads current counters from redis.
		tracker.WithStore(ctx, budgetrepo.New(kv, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthlyTTL))
	}
	return tracker
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
func buildEmbedder(
	cfg config.Config,
	base domain.Embedder,
	kv *dbRedis.Store,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if cfg.Cache.Enabled && kv != nil {
		embedder = embcache.New(base, kv, cfg.Embedding.Model,
			time.Duration(cfg.Cache.TTLSec)*time.Second, metrics.EmbeddingCacheTotal, logger)
	}

	// Instrumented (budget + usage)
	return embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Embedding.Provider, cfg.Embedding.Model, budget, logger)
}
