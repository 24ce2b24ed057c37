package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/krt-cliente/contas/cmd/contas/cli"
	"github.com/krt-cliente/contas/internal/accounts"
	"github.com/krt-cliente/contas/internal/app"
	"github.com/krt-cliente/contas/internal/observability"
	"github.com/krt-cliente/contas/internal/platform/cache"
	"github.com/krt-cliente/contas/internal/platform/db"
	"github.com/krt-cliente/contas/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	switch command {
	case "serve":
		if err := serve(ctx, cfg, logger); err != nil {
			logger.Error("server", slog.Any("error", err))
			os.Exit(1)
		}
	case "migrate":
		if err := db.Migrate(ctx, cfg.PGDSN); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied")
	case "jobs":
		jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
		if err != nil {
			logger.Error("jobs cli", slog.Any("error", err))
			os.Exit(1)
		}
		code := jobsCLI.Command(ctx, os.Args[2:], os.Stdout, os.Stderr)
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
		os.Exit(code)
	default:
		fmt.Fprintf(os.Stderr, "usage: contas [serve|migrate|jobs]\n")
		os.Exit(2)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	if cfg.PGMigrate {
		if err := db.Migrate(ctx, cfg.PGDSN); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied")
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	store, closeStore, err := cache.NewStore(ctx, cfg.CacheOptions())
	if err != nil {
		return fmt.Errorf("connect cache: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("cache close", slog.Any("error", err))
		}
	}()
	codec, err := cache.NewCodec(cfg.CacheCodec)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()

	accountsService := accounts.NewService(accounts.ServiceConfig{
		Repository: accounts.NewRepository(dbpool),
		Store:      store,
		Codec:      codec,
		Logger:     logger,
		Metrics:    metrics,
	})
	accountsHandler := accounts.NewHandler(logger, accountsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AccountsHandler: accountsHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
		Readiness: map[string]app.Pinger{
			"postgres": dbpool,
			"cache":    store,
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("cache", cfg.CacheDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return err
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
