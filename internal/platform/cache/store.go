// Package cache provides the byte stores and payload codecs behind the
// cache-aside reads of the API.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Drivers accepted by NewStore.
const (
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// ErrUnknownDriver is returned when the configured driver is not supported.
var ErrUnknownDriver = errors.New("platform/cache: unknown driver")

// Store is a minimal byte store with TTLs.
//
// Get returns (value, true, nil) on hit and (nil, false, nil) on miss; transport
// failures are reported as (nil, false, err). Implementations must be safe for
// concurrent use and return exactly the bytes passed to Set.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Options selects and configures a Store.
type Options struct {
	Driver        string
	RedisAddr     string
	MemoryMaxCost int64
}

// NewStore builds the store named by opts.Driver.
func NewStore(ctx context.Context, opts Options) (Store, func() error, error) {
	switch opts.Driver {
	case "", DriverRedis:
		client, err := New(ctx, opts.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStore(client), client.Close, nil
	case DriverMemory:
		store, err := NewMemoryStore(opts.MemoryMaxCost)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { store.Close(); return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
