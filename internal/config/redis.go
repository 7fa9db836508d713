package config

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig locates the Redis server behind the rate limiter.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
	Timeout  time.Duration
}

// LoadRedisConfig reads REDIS_ADDR, or REDIS_HOST plus REDIS_PORT which
// take precedence, together with REDIS_PASSWORD, REDIS_DB, REDIS_TLS and
// REDIS_TIMEOUT.
func LoadRedisConfig() RedisConfig {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
		addr = net.JoinHostPort(host, port)
	}
	return RedisConfig{
		Addr:     addr,
		Password: envStr("REDIS_PASSWORD", ""),
		DB:       envInt("REDIS_DB", 0),
		TLS:      envBool("REDIS_TLS", false),
		Timeout:  envDur("REDIS_TIMEOUT", 2*time.Second),
	}
}

// Options converts rc into go-redis client options.
func (rc RedisConfig) Options() *redis.Options {
	opts := &redis.Options{
		Addr:        rc.Addr,
		Password:    rc.Password,
		DB:          rc.DB,
		DialTimeout: rc.Timeout,
	}
	if rc.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// NewRedisClient connects and pings. On failure the client is closed and
// the caller is expected to carry on without Redis.
func NewRedisClient(ctx context.Context, rc RedisConfig) (*redis.Client, error) {
	if rc.Timeout <= 0 {
		rc.Timeout = 2 * time.Second
	}
	client := redis.NewClient(rc.Options())

	ctx, cancel := context.WithTimeout(ctx, rc.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", rc.Addr, err)
	}
	return client, nil
}
