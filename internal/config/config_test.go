package config

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Env:            "test",
		Port:           "5000",
		DBDriver:       DriverSQLite,
		SQLitePath:     "./data/test.db",
		JWTSecret:      "0123456789abcdef0123",
		AccessTTLMin:   60,
		RefreshTTLDays: 30,
		BcryptCost:     10,
		UploadDir:      "./uploads",
		MaxUploadMB:    10,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid sqlite", mutate: func(*Config) {}},
		{
			name: "valid mysql",
			mutate: func(c *Config) {
				c.DBDriver = DriverMySQL
				c.DBUser, c.DBHost, c.DBName = "root", "localhost", "wedding"
			},
		},
		{
			name:    "mysql without host",
			mutate:  func(c *Config) { c.DBDriver = DriverMySQL; c.DBUser, c.DBName = "root", "wedding" },
			wantErr: "DB_HOST is required for the mysql driver",
		},
		{name: "bad port", mutate: func(c *Config) { c.Port = "abc" }, wantErr: `invalid port "abc"`},
		{name: "port out of range", mutate: func(c *Config) { c.Port = "70000" }, wantErr: `invalid port "70000"`},
		{name: "unknown driver", mutate: func(c *Config) { c.DBDriver = "mongo" }, wantErr: `unsupported DB_DRIVER "mongo"`},
		{name: "short secret", mutate: func(c *Config) { c.JWTSecret = "short" }, wantErr: "JWT_SECRET must be at least 16 characters"},
		{name: "bcrypt cost", mutate: func(c *Config) { c.BcryptCost = 2 }, wantErr: "BCRYPT_COST must be between 4 and 31"},
		{name: "upload ceiling", mutate: func(c *Config) { c.MaxUploadMB = 0 }, wantErr: "MAX_UPLOAD_MB must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "x"
	cfg.UploadDir = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
	assert.Contains(t, err.Error(), "UPLOAD_DIR cannot be empty")
}

func TestConfig_MaxUploadBytes(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, int64(10*1024*1024), cfg.MaxUploadBytes())
}

func TestLoadRateLimitConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		rl := LoadRateLimitConfig()
		assert.True(t, rl.Enabled)
		assert.Equal(t, 60, rl.Capacity)
		assert.Equal(t, time.Second, rl.RefillInterval)
		assert.Equal(t, "wedding:rl", rl.Prefix)
	})
	t.Run("burst and refill every", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_BURST", "5")
		t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
		t.Setenv("RATE_LIMIT_TTL", "1s")
		rl := LoadRateLimitConfig()
		assert.Equal(t, 5, rl.Capacity)
		assert.Equal(t, 1, rl.RefillTokens)
		assert.Equal(t, 2*time.Second, rl.RefillInterval)
		assert.Equal(t, 10*time.Second, rl.TTL, "ttl is raised to five refill intervals")
	})
	t.Run("disabled", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_ENABLED", "off")
		assert.False(t, LoadRateLimitConfig().Enabled)
	})
}

func TestLoadRedisConfig(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_TLS", "true")
	rc := LoadRedisConfig()
	assert.Equal(t, "cache:6380", rc.Addr)
	assert.Equal(t, 2, rc.DB)
	assert.NotNil(t, rc.Options().TLSConfig)

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	assert.Equal(t, "redis:6379", LoadRedisConfig().Addr)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisClient(context.Background(), RedisConfig{Addr: addr, Timeout: 200 * time.Millisecond})
	assert.Error(t, err)
}
