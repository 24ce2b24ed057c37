package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/krt-cliente/contas/internal/accounts"
	"github.com/krt-cliente/contas/internal/app"
	"github.com/krt-cliente/contas/internal/platform/cache"
	"github.com/krt-cliente/contas/internal/platform/db"
	"github.com/krt-cliente/contas/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	store, closeStore, err := cache.NewStore(ctx, cfg.CacheOptions())
	if err != nil {
		logger.Error("connect cache", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("cache close", slog.Any("error", err))
		}
	}()
	codec, err := cache.NewCodec(cfg.CacheCodec)
	if err != nil {
		logger.Error("cache codec", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.CacheDriver == cache.DriverMemory {
		logger.Warn("memory cache driver is process local, warmup will not reach the API process")
	}

	accountsService := accounts.NewService(accounts.ServiceConfig{
		Repository: accounts.NewRepository(pool),
		Store:      store,
		Codec:      codec,
		Logger:     logger,
	})
	warmupJob := jobs.NewCacheWarmupJob(accountsService, logger, nil)

	warmupTask, err := jobs.NewCacheWarmupTask()
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAccountsCacheWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.WarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
