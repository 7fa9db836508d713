package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wedding-planner/internal/config"
	"github.com/iliyamo/wedding-planner/internal/utils"
)

const testSecret = "middleware-test-secret-0123456789"

type fakeUsers struct {
	known map[string]bool
	err   error
}

func (f fakeUsers) Exists(_ context.Context, id string) (bool, error) {
	return f.known[id], f.err
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newAuthServer(users UserResolver) *echo.Echo {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		return c.String(http.StatusOK, CallerID(c))
	}, JWTAuth(testSecret, users))
	return e
}

func bearer(t *testing.T, secret, sub string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, sub, sub+"@example.com", 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestJWTAuth(t *testing.T) {
	users := fakeUsers{known: map[string]bool{"user-1": true}}

	tests := []struct {
		name   string
		header string
		users  UserResolver
		want   int
	}{
		{"missing header", "", users, http.StatusUnauthorized},
		{"not bearer", "Basic abc", users, http.StatusUnauthorized},
		{"garbage token", "Bearer nope", users, http.StatusUnauthorized},
		{"wrong secret", bearer(t, "another-secret-0123456789abcdef", "user-1"), users, http.StatusUnauthorized},
		{"deleted user", bearer(t, testSecret, "user-2"), users, http.StatusUnauthorized},
		{"lookup failure", bearer(t, testSecret, "user-1"), fakeUsers{err: errors.New("db down")}, http.StatusInternalServerError},
		{"valid", bearer(t, testSecret, "user-1"), users, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := serve(newAuthServer(tc.users), req)
			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusOK {
				assert.Equal(t, "user-1", rec.Body.String())
			}
		})
	}
}

func newLimitedServer(cfg config.RateLimitConfig, rdb *redis.Client) *echo.Echo {
	e := echo.New()
	e.Use(NewTokenBucket(cfg, rdb))
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	return e
}

func limitConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            2 * time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "test:rl",
	}
}

func TestTokenBucketBlocksWhenEmpty(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := newLimitedServer(limitConfig(), rdb)

	for i := 0; i < 2; i++ {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusNoContent, rec.Code, "request %d", i+1)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestTokenBucketFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	e := newLimitedServer(limitConfig(), rdb)
	for i := 0; i < 5; i++ {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestTokenBucketDisabled(t *testing.T) {
	cfg := limitConfig()
	cfg.Enabled = false
	e := newLimitedServer(cfg, nil)
	for i := 0; i < 5; i++ {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/guests", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/guests")
	c.Set(userIDKey, "u1")

	cfg := limitConfig()
	cfg.KeyStrategy = "user_route"
	assert.Equal(t, "test:rl:user:u1:route:GET /api/guests", buildRateKey(cfg, c))

	cfg.KeyStrategy = "ip"
	assert.Equal(t, "test:rl:ip:10.0.0.1", buildRateKey(cfg, c))

	cfg.KeyStrategy = "route_ip"
	assert.Equal(t, "test:rl:ip:10.0.0.1:route:GET /api/guests", buildRateKey(cfg, c))

	cfg.KeyStrategy = "bogus"
	assert.Equal(t, "test:rl:ip:10.0.0.1:user:u1:route:GET /api/guests", buildRateKey(cfg, c))
}
