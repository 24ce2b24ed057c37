package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 30*time.Second, cfg.AppRequestTimeout)
	assert.Equal(t, "redis", cfg.CacheDriver)
	assert.Equal(t, "json", cfg.CacheCodec)
	assert.Equal(t, "1 0 * * *", cfg.WarmupCron)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.False(t, cfg.PGMigrate)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("CACHE_DRIVER", "memory")
	t.Setenv("CACHE_CODEC", "msgpack")
	t.Setenv("CACHE_MEMORY_MAX_COST", "1024")
	t.Setenv("PG_MIGRATE", "true")
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.PGMigrate)
	opts := cfg.CacheOptions()
	assert.Equal(t, "memory", opts.Driver)
	assert.Equal(t, int64(1024), opts.MemoryMaxCost)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			PGDSN:              "postgres://localhost/contas",
			RedisAddr:          "127.0.0.1:6379",
			CacheDriver:        "redis",
			CacheCodec:         "json",
			CacheMemoryMaxCost: 1,
			RateLimitPerMinute: 60,
		}
	}
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"memory driver", func(c *Config) { c.CacheDriver = "memory"; c.RedisAddr = "" }, false},
		{"unknown driver", func(c *Config) { c.CacheDriver = "memcached" }, true},
		{"unknown codec", func(c *Config) { c.CacheCodec = "xml" }, true},
		{"missing dsn", func(c *Config) { c.PGDSN = "" }, true},
		{"redis without addr", func(c *Config) { c.RedisAddr = "" }, true},
		{"negative rate limit", func(c *Config) { c.RateLimitPerMinute = -1 }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
