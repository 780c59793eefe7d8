package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	flag "github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/coordinator"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/resilience"
)

func main() {
	configPath := flag.StringP("config", "c", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"data_dir", cfg.Index.DataDir,
		"shards", len(cfg.Shards.Paths),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdownMetrics(context.Background())
	}

	readers, err := cache.NewReaderCache(cfg.Index.ReaderCacheSize, tokenizer.NewRegistry(), m)
	if err != nil {
		slog.Error("failed to create reader cache", "error", err)
		os.Exit(1)
	}
	defer readers.Close()
	svc := service.New(readers, m)

	var statsCache *cache.StatsCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, doc-freq caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{})
			statsCache = cache.NewStatsCache(cache.Guard(redisClient, breaker), cfg.Shards.StatsTTL, m)
			slog.Info("doc-freq cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Shards.StatsTTL)
		}
	}

	coord := coordinator.New(svc, cfg.Shards.Paths,
		coordinator.WithConcurrency(cfg.Shards.Concurrency),
		coordinator.WithStatsCache(statsCache),
		coordinator.WithMetrics(m),
	)

	if cfg.Kafka.Enabled {
		var invalidator reload.StatsInvalidator
		if statsCache != nil {
			invalidator = statsCache
		}
		consumer := reload.NewConsumer(cfg.Kafka, readers, invalidator, m)
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("index reload consumer stopped", "error", err)
			}
		}()
		slog.Info("index reload consumer started", "topic", cfg.Kafka.Topics.IndexComplete)
	}

	checker := health.NewChecker(cfg.Server.HealthCheckTimeout)
	checker.Register("indexes", func(ctx context.Context) health.ComponentHealth {
		for _, path := range cfg.Shards.Paths {
			snap, err := readers.Acquire(ctx, path)
			if err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			snap.Release()
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d shards, %d readers open", len(cfg.Shards.Paths), readers.Len()),
		}
	})
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping, health.StatusDegraded))
	} else {
		checker.Register("redis", health.Disabled)
	}

	var distributor handler.Distributor
	if len(cfg.Shards.Paths) > 0 {
		distributor = coord
	}
	h := handler.New(svc, distributor, statsCache, cfg.Index, cfg.Search)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler(reg))

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
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
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
