package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/krt-cliente/contas/internal/accounts"
	jobmetrics "github.com/krt-cliente/contas/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AccountsReader is the subset of the accounts service the warmup reads
// through. Each call populates its cache entry on a miss.
type AccountsReader interface {
	ListActive(ctx context.Context) ([]accounts.SummaryView, error)
	ListInactive(ctx context.Context) ([]accounts.SummaryView, error)
	StatusSummary(ctx context.Context) (accounts.StatusSummary, error)
}

// CacheWarmupJob reads the cached account listings so the first requests of
// the day are served from the cache.
type CacheWarmupJob struct {
	Accounts AccountsReader
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewCacheWarmupJob wires dependencies for the warmup handler.
func NewCacheWarmupJob(reader AccountsReader, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheWarmupJob {
	return &CacheWarmupJob{
		Accounts: reader,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes cache warmup tasks. Empty listings are skipped since not
// found results are never cached.
func (j *CacheWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Accounts == nil {
		return errors.New("cache warmup: handler not configured")
	}
	var payload CacheWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("cache warmup: decode payload: %w", asynq.SkipRetry)
		}
	}
	targets := payload.Targets
	if len(targets) == 0 {
		targets = DefaultWarmupTargets
	}

	tracker := j.metrics().Track(TaskAccountsCacheWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := j.now()
	logger.Info("starting cache warmup", slog.Any("targets", targets))

	warmed := 0
	for _, target := range targets {
		ok, err := j.warm(ctx, target)
		if err != nil {
			logger.Error("warm cache target", slog.String("target", target), slog.Any("error", err))
			return err
		}
		if !ok {
			logger.Info("nothing to warm", slog.String("target", target))
			continue
		}
		j.metrics().AddWarmed(target, 1)
		warmed++
	}

	logger.Info("completed cache warmup", slog.Int("warmed", warmed), slog.Duration("duration", j.now().Sub(start)))
	return nil
}

func (j *CacheWarmupJob) warm(ctx context.Context, target string) (bool, error) {
	targetCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	var err error
	switch target {
	case WarmupActive:
		_, err = j.Accounts.ListActive(targetCtx)
	case WarmupInactive:
		_, err = j.Accounts.ListInactive(targetCtx)
	case WarmupSummary:
		_, err = j.Accounts.StatusSummary(targetCtx)
	default:
		return false, fmt.Errorf("cache warmup: unknown target %q: %w", target, asynq.SkipRetry)
	}
	if errors.Is(err, accounts.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (j *CacheWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAccountsCacheWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAccountsCacheWarmup))
}

func (j *CacheWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CacheWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
