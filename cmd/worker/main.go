// Command worker consumes mining jobs from the Redpanda queue and runs the
// pipeline: select posts, classify, cluster, name themes, generate and
// validate ideas, persist results.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/signalforge/opportunity-miner/internal/adapter/ai"
	"github.com/signalforge/opportunity-miner/internal/adapter/observability"
	"github.com/signalforge/opportunity-miner/internal/adapter/queue/redpanda"
	"github.com/signalforge/opportunity-miner/internal/adapter/repo/postgres"
	"github.com/signalforge/opportunity-miner/internal/app"
	"github.com/signalforge/opportunity-miner/internal/config"
	"github.com/signalforge/opportunity-miner/internal/domain"
	"github.com/signalforge/opportunity-miner/internal/service/ratelimiter"
	"github.com/signalforge/opportunity-miner/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Without credentials every job would burn its attempt budget and fail;
	// refuse to consume at all.
	if cfg.LLMAPIKey == "" {
		slog.Error("LLM_API_KEY is required")
		os.Exit(1)
	}

	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
		srv := &http.Server{Addr: ":9090", Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	postRepo := postgres.NewPostRepo(pool)
	runRepo := postgres.NewRunRepo(pool)
	ideaRepo := postgres.NewIdeaRepo(pool)
	jobRepo := postgres.NewJobRepo(pool)

	// Cross-replica LLM rate limiting is optional; without Redis the AI
	// client still honors provider 429 hints on its own.
	var limiter ai.RateLimiter
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid redis url", slog.Any("error", err))
			os.Exit(1)
		}
		if l := ratelimiter.New(redis.NewClient(redisOpts), ratelimiter.PerMinute(cfg.LLMRequestsPerMin)); l != nil {
			limiter = l
			slog.Info("llm rate limiter enabled", slog.Int("requests_per_min", cfg.LLMRequestsPerMin))
		}
	}

	orch := &usecase.Orchestrator{
		Posts: postRepo,
		Runs:  runRepo,
		Ideas: ideaRepo,
		Jobs:  jobRepo,
		NewClient: func(ledger *domain.CostLedger) domain.ChatClient {
			return ai.NewClient(ai.Options{
				APIKey:        cfg.LLMAPIKey,
				BaseURL:       cfg.LLMBaseURL,
				FallbackModel: cfg.FallbackModel,
			}, ledger, ai.NewCircuitBreaker(3, cfg.RateLimitDelay), limiter)
		},
		CostLimitUSD:                cfg.CostLimitUSD,
		ProcessingBudget:            cfg.ProcessingBudget,
		InterClusterDelay:           cfg.InterClusterDelay,
		IdeaBatchDelay:              cfg.IdeaBatchDelay,
		ThemeBatchDelay:             cfg.ThemeBatchDelay,
		ValidationDelay:             cfg.ValidationDelay,
		MaxClustersPerBatch:         cfg.MaxClustersPerBatch,
		MinScoreThreshold:           cfg.MinScoreThreshold,
		DedupLookbackDays:           cfg.DedupLookbackDays,
		DedupNameLimit:              cfg.DedupNameLimit,
		FallbackSimilarityThreshold: 0.1,
	}

	sweeper := &app.StuckJobSweeper{
		Store:    jobRepo,
		MaxAge:   cfg.ProcessingBudget + cfg.StuckJobGrace,
		Interval: cfg.StuckJobSweepEvery,
		Logger:   slog.Default(),
	}
	go sweeper.Run(ctx)

	handler := redpanda.NewMineHandler(orch, slog.Default())
	consumer, err := redpanda.NewConsumer(cfg.KafkaBrokers, "opportunity-miner-workers", handler)
	if err != nil {
		slog.Error("redpanda consumer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			slog.Error("failed to close consumer", slog.Any("error", err))
		}
	}()

	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("consumer stopped", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("worker stopped")
}
