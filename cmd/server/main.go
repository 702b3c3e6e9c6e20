package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Lucent/lexical-diversity/internal/fetch"
	"github.com/Lucent/lexical-diversity/internal/leaderboard"
	"github.com/Lucent/lexical-diversity/internal/lemma"
	"github.com/Lucent/lexical-diversity/internal/mtld"
	"github.com/Lucent/lexical-diversity/internal/queue"
	"github.com/Lucent/lexical-diversity/internal/server"
	"github.com/Lucent/lexical-diversity/internal/store"
	"github.com/Lucent/lexical-diversity/pkg/config"
	"github.com/Lucent/lexical-diversity/pkg/health"
	"github.com/Lucent/lexical-diversity/pkg/kafka"
	"github.com/Lucent/lexical-diversity/pkg/logger"
	"github.com/Lucent/lexical-diversity/pkg/metrics"
	"github.com/Lucent/lexical-diversity/pkg/postgres"
	pkgredis "github.com/Lucent/lexical-diversity/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting lexical diversity service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var snapshots store.Store
	var pgStore *store.PostgresStore
	if cfg.Postgres.Host != "" {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pgStore = store.NewPostgresStore(db)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure score schema", "error", err)
			os.Exit(1)
		}
		snapshots = pgStore
		slog.Info("postgres score cache enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	} else {
		snapshots = store.NewMemoryStore()
		slog.Warn("postgres not configured, scores will not survive restarts")
	}

	var redisClient *pkgredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, leaderboard caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			slog.Info("leaderboard cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var events queue.EventPublisher
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		events = producer
		slog.Info("score event stream enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
		slog.Info("metrics endpoint started", "port", cfg.Metrics.Port)
	}

	fetcher := fetch.NewScriptFetcher(cfg.Fetch)
	lemmatizer := lemma.NewHTTPLemmatizer(cfg.Lemma)
	scorer := mtld.New(cfg.Scoring.TTRThreshold)

	jobs := queue.New(queue.Options{
		Workers:          cfg.Queue.Workers,
		Capacity:         cfg.Queue.Capacity,
		JobTimeout:       cfg.Queue.JobTimeout,
		Retention:        cfg.Queue.Retention,
		MinPosts:         cfg.Fetch.MinPosts,
		MinTokens:        cfg.Scoring.MinTokens,
		FetchMaxAttempts: cfg.Fetch.MaxAttempts,
	}, queue.Deps{
		Fetcher:    fetcher,
		Lemmatizer: lemmatizer,
		Scorer:     scorer,
		Store:      snapshots,
		Events:     events,
		Metrics:    m,
	})
	jobs.Start(ctx)
	defer jobs.Close()
	slog.Info("scoring queue started",
		"workers", cfg.Queue.Workers,
		"capacity", cfg.Queue.Capacity,
		"job_timeout", cfg.Queue.JobTimeout,
	)

	board := leaderboard.New(snapshots, redisClient, cfg.Redis, m)

	checker := health.NewChecker()
	checker.Register("store", func(ctx context.Context) health.ComponentHealth {
		if pgStore == nil {
			return health.ComponentHealth{Status: health.StatusUp, Message: "in-memory"}
		}
		if err := pgStore.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("lemmatizer", func(ctx context.Context) health.ComponentHealth {
		if err := lemmatizer.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := server.New(jobs, snapshots, board, cfg.Leaderboard)
	chain := server.NewRouter(h, checker, m, cfg.Server.WriteTimeout)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics shutdown error", "error", err)
			}
		}
	}()

	slog.Info("lexical diversity service listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("lexical diversity service stopped")
}
