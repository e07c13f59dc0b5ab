package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cptracker/internal/analytics"
	"cptracker/internal/api"
	"cptracker/internal/config"
	"cptracker/internal/db"
	"cptracker/internal/fetcher"
	"cptracker/internal/logging"
	"cptracker/internal/redis"
	"cptracker/internal/store"
	syncer "cptracker/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_api", "service", "cptracker-api", "http_addr", cfg.HTTPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConn, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	registry := fetcher.NewRegistry(
		fetcher.NewCodeforces(logger, cfg.CodeforcesAPIURL, fetcher.NewLimiter(cfg.CodeforcesRateLimit)),
		fetcher.NewAtCoder(logger, cfg.AtCoderAPIURL, cfg.AtCoderHistoryURL, fetcher.NewLimiter(cfg.AtCoderRateLimit)),
		fetcher.NewNowCoder(logger, cfg.NowCoderAPIURL, fetcher.NewLimiter(cfg.NowCoderRateLimit)),
	)

	st := store.New(dbConn)
	aggregator := analytics.New(logger, st)
	orchestrator := syncer.NewOrchestrator(logger, st, aggregator, registry)

	srv := api.NewServer(logger, dbConn, redisClient, orchestrator, cfg)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("api_started", "addr", cfg.HTTPAddr)

	// graceful shutdown
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	if err := redisClient.Close(); err != nil {
		logger.Warn("redis_close_error", "error", err)
	}
	dbConn.Close()

	logger.Info("api_stopped")
}
