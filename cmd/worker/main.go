package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cptracker/internal/analytics"
	"cptracker/internal/config"
	"cptracker/internal/db"
	"cptracker/internal/fetcher"
	"cptracker/internal/logging"
	"cptracker/internal/redis"
	"cptracker/internal/scheduler"
	"cptracker/internal/store"
	syncer "cptracker/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_worker", "service", "cptracker-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL (with retry; the db may come up after us)
	var dbConn *db.DB
	for i := 0; i < 5; i++ {
		dbConn, err = db.New(ctx, cfg.DBDSN)
		if err == nil {
			break
		}
		logger.Warn("db_connect_retry", "attempt", i+1, "error", err)
		time.Sleep(2 * time.Second)
	}
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

	sched := scheduler.New(logger, redisClient, orchestrator, cfg.SyncHour, cfg.SyncLockTTL)

	go sched.Run(ctx)

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")
	cancel()

	if err := redisClient.Close(); err != nil {
		logger.Warn("redis_close_error", "error", err)
	}
	dbConn.Close()

	logger.Info("worker_stopped")
}
