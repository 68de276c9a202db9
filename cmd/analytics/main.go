// Command analytics consumes search events published by cmd/searcher,
// aggregates them and serves the totals at GET /api/v1/analytics. With
// Postgres configured, snapshots are persisted and restored on start.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml] [-replay]
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
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	replay := flag.Bool("replay", false, "start a new consumer group from the oldest retained event")
	snapshotEvery := flag.Duration("snapshot-interval", time.Minute, "how often to persist aggregated stats")
	retain := flag.Int("snapshot-retain", 1440, "number of snapshots kept in postgres")
	usePostgres := flag.Bool("postgres", false, "persist snapshots to postgres")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port, "topic", cfg.Kafka.Topics.SearchEvents)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	checker := health.NewChecker(5 * time.Second)
	var history analytics.History[aggregator.Snapshot]

	if *usePostgres {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store := aggregator.NewStore(pg, *retain)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare snapshot table", "error", err)
			os.Exit(1)
		}
		if err := store.Restore(ctx, agg); err != nil {
			slog.Warn("could not restore analytics snapshot", "error", err)
		}
		go store.Run(ctx, agg, *snapshotEvery)
		history = store
		checker.Register("postgres", health.FromPing(pg.Ping, true))
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents, *replay, analytics.HandleEvent(agg))
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()

	analyticsHandler := analytics.NewHandler(agg, history)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", analyticsHandler.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.RequestID(mux),
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
