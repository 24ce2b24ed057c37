package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAccountsCacheWarmup re-populates the account read caches after the
	// end-of-day expiry.
	TaskAccountsCacheWarmup = "accounts:cache_warmup"
)

// Warmup targets.
const (
	WarmupActive   = "active"
	WarmupInactive = "inactive"
	WarmupSummary  = "summary"
)

// DefaultWarmupTargets lists every target warmed when a payload names none.
var DefaultWarmupTargets = []string{WarmupActive, WarmupInactive, WarmupSummary}

// CacheWarmupPayload selects which cached reads to populate.
type CacheWarmupPayload struct {
	Targets []string `json:"targets,omitempty"`
}

// NewCacheWarmupTask constructs an Asynq task for the cache warmup.
func NewCacheWarmupTask(targets ...string) (*asynq.Task, error) {
	for _, target := range targets {
		if !knownTarget(target) {
			return nil, fmt.Errorf("jobs: unknown warmup target %q", target)
		}
	}
	data, err := json.Marshal(CacheWarmupPayload{Targets: targets})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccountsCacheWarmup, data), nil
}

func knownTarget(target string) bool {
	for _, t := range DefaultWarmupTargets {
		if t == target {
			return true
		}
	}
	return false
}
