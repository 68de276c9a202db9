// Command searcher serves name and signature search over the documentation
// index.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
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
	"time"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
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
	slog.Info("starting search service", "port", cfg.Server.Port, "source", cfg.Loader.Source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics, err := m.StartServer(fmt.Sprintf(":%d", cfg.Metrics.Port))
		if err != nil {
			slog.Error("failed to start metrics server", "error", err)
			os.Exit(1)
		}
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker(5 * time.Second)

	var pg *postgres.Client
	if cfg.Loader.Source == "postgres" {
		pg, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		checker.Register("postgres", health.FromPing(pg.Ping, false))
	}

	source, err := loader.NewSource(cfg.Loader, pg)
	if err != nil {
		slog.Error("invalid loader configuration", "error", err)
		os.Exit(1)
	}
	catalogOpts, err := loader.CatalogOptions(cfg.Decoder)
	if err != nil {
		slog.Error("invalid decoder configuration", "error", err)
		os.Exit(1)
	}

	// Searches are recorded locally so /api/v1/analytics works without Kafka;
	// with Kafka enabled they are also published for cmd/analytics.
	aggregator := analytics.NewAggregator()
	var publisher kafka.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		publisher = producer
		slog.Info("publishing search analytics", "topic", cfg.Kafka.Topics.SearchEvents)
	}
	collector := analytics.NewCollector(publisher, aggregator, m, analytics.CollectorConfig{})
	collector.Start(ctx)
	defer collector.Close()

	mgr := loader.NewManager(source, loader.Options{
		Catalog:  catalogOpts,
		Retry:    loader.RetryConfig(cfg.Loader.Retry),
		Timeout:  cfg.Loader.Timeout,
		Debounce: cfg.Loader.Debounce,
		Metrics:  m,
		OnReload: func(stats catalog.Stats, took time.Duration) {
			collector.Track(analytics.NewCatalogEvent(analytics.CatalogEvent{
				Fingerprint: stats.Fingerprint,
				Namespaces:  stats.Namespaces,
				Items:       stats.Items,
				Omitted:     stats.Omitted,
				DurationMs:  took.Milliseconds(),
				Timestamp:   time.Now().UTC(),
			}))
		},
	})
	go func() {
		if _, err := mgr.Load(ctx); err != nil {
			slog.Error("initial catalog load failed", "error", err)
		}
		if cfg.Loader.Watch {
			if err := mgr.Watch(ctx); err != nil {
				slog.Error("catalog watcher stopped", "error", err)
			}
		}
	}()
	checker.Register("catalog", mgr.HealthCheck)

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.FromPing(redisClient.Ping, true))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	exec := executor.New(mgr, cfg.Search.MaxConcurrency)
	h := handler.New(exec, mgr, handler.Options{
		Cache:        queryCache,
		Collector:    collector,
		Metrics:      m,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
	})
	analyticsH := analytics.NewHandler[any](aggregator, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/catalog", h.Catalog)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.Handle("POST /api/v1/cache/invalidate",
		middleware.RequireAPIKey(cfg.Server.AdminKeys)(http.HandlerFunc(h.CacheInvalidate)))
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Metrics(m),
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		mws = append(mws, middleware.CORS(cfg.Server.CORSOrigins))
	}
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, m)
		mws = append(mws, limiter.Middleware)
		go sweep(ctx, limiter)
	}
	mws = append(mws, middleware.Timeout(cfg.Server.RequestTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, mws...),
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

func sweep(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep(10 * time.Minute)
		}
	}
}
