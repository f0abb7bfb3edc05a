package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/canteen-ordering/internal/config"
	"github.com/iliyamo/canteen-ordering/internal/utils"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func serve(e *echo.Echo, method, target string, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestTokenBucket_BlocksAfterCapacity(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Minute,
		TTL: 10 * time.Minute, KeyStrategy: "ip", Prefix: "rl",
	}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") }, NewTokenBucket(cfg, rdb, nil))

	for i := 0; i < 2; i++ {
		rec := serve(e, http.MethodGet, "/x", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := serve(e, http.MethodGet, "/x", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestTokenBucket_DisabledWithoutRedis(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") }, NewTokenBucket(cfg, nil, nil))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/x", "", nil).Code)
	}
}

func TestIdempotency_ReplaysFirstResponse(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.IdempotencyConfig{
		Enabled: true, TTL: time.Hour, LockTTL: 10 * time.Second, Prefix: "idem", HeaderName: "Idempotency-Key",
	}
	calls := 0
	e := echo.New()
	e.POST("/orders", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusCreated, echo.Map{"call": calls})
	}, NewIdempotency(cfg, rdb, nil))

	hdr := map[string]string{"Idempotency-Key": "abc-123"}
	first := serve(e, http.MethodPost, "/orders", `{}`, hdr)
	second := serve(e, http.MethodPost, "/orders", `{}`, hdr)

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))

	// A different key runs the handler again.
	third := serve(e, http.MethodPost, "/orders", `{}`, map[string]string{"Idempotency-Key": "other"})
	assert.Equal(t, http.StatusCreated, third.Code)
	assert.Equal(t, 2, calls)

	// No key, no idempotency.
	serve(e, http.MethodPost, "/orders", `{}`, nil)
	assert.Equal(t, 3, calls)
}

func TestIdempotency_InFlightKeyConflicts(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.IdempotencyConfig{
		Enabled: true, TTL: time.Hour, LockTTL: 10 * time.Second, Prefix: "idem", HeaderName: "Idempotency-Key",
	}
	require.NoError(t, rdb.Set(context.Background(), "idem:anon:busy:lock", 1, time.Minute).Err())

	e := echo.New()
	e.POST("/orders", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, NewIdempotency(cfg, rdb, nil))

	rec := serve(e, http.MethodPost, "/orders", `{}`, map[string]string{"Idempotency-Key": "busy"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestIdempotency_ServerErrorsNotRemembered(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.IdempotencyConfig{
		Enabled: true, TTL: time.Hour, LockTTL: 10 * time.Second, Prefix: "idem", HeaderName: "Idempotency-Key",
	}
	calls := 0
	e := echo.New()
	e.POST("/orders", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "boom"})
	}, NewIdempotency(cfg, rdb, nil))

	hdr := map[string]string{"Idempotency-Key": "k"}
	serve(e, http.MethodPost, "/orders", `{}`, hdr)
	serve(e, http.MethodPost, "/orders", `{}`, hdr)
	assert.Equal(t, 2, calls)
}

func TestResponseCache_HitAndPurge(t *testing.T) {
	rdb := newRedis(t)
	cache := NewResponseCache(config.CacheConfig{
		Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute, Prefix: "cache",
	}, rdb, nil)

	calls := 0
	e := echo.New()
	e.GET("/v1/slots", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"calls": calls})
	}, cache.Middleware())

	first := serve(e, http.MethodGet, "/v1/slots?date=2025-07-18", "", nil)
	second := serve(e, http.MethodGet, "/v1/slots?date=2025-07-18", "", nil)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	// Different query, different entry.
	serve(e, http.MethodGet, "/v1/slots?date=2025-07-19", "", nil)
	assert.Equal(t, 2, calls)

	require.NoError(t, cache.Purge(context.Background()))
	third := serve(e, http.MethodGet, "/v1/slots?date=2025-07-18", "", nil)
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestResponseCache_SkipsNonOK(t *testing.T) {
	rdb := newRedis(t)
	cache := NewResponseCache(config.CacheConfig{
		Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute, Prefix: "cache",
	}, rdb, nil)
	calls := 0
	e := echo.New()
	e.GET("/v1/menu/today", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusNotFound, echo.Map{"error": "menu not found"})
	}, cache.Middleware())

	serve(e, http.MethodGet, "/v1/menu/today", "", nil)
	serve(e, http.MethodGet, "/v1/menu/today", "", nil)
	assert.Equal(t, 2, calls)
}

func TestJWTAuthAndRequireRole(t *testing.T) {
	const secret = "test-secret"
	e := echo.New()
	e.GET("/admin", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"user": c.Get(CtxUserID)})
	}, JWTAuth(secret), RequireRole("ADMIN"))

	admin, err := utils.NewAccessToken(secret, 1, "ADMIN", 5)
	require.NoError(t, err)
	student, err := utils.NewAccessToken(secret, 2, "STUDENT", 5)
	require.NoError(t, err)
	forged, err := utils.NewAccessToken("other-secret", 1, "ADMIN", 5)
	require.NoError(t, err)

	tests := []struct {
		name string
		auth string
		want int
	}{
		{name: "admin allowed", auth: "Bearer " + admin.Token, want: http.StatusOK},
		{name: "student forbidden", auth: "Bearer " + student.Token, want: http.StatusForbidden},
		{name: "wrong secret", auth: "Bearer " + forged.Token, want: http.StatusUnauthorized},
		{name: "missing header", auth: "", want: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(e, http.MethodGet, "/admin", "", map[string]string{echo.HeaderAuthorization: tc.auth})
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestIdempotency_ConflictsNotRemembered(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.IdempotencyConfig{
		Enabled: true, TTL: time.Hour, LockTTL: 10 * time.Second, Prefix: "idem", HeaderName: "Idempotency-Key",
	}
	calls := 0
	e := echo.New()
	e.POST("/orders", func(c echo.Context) error {
		calls++
		if calls == 1 {
			return c.JSON(http.StatusConflict, echo.Map{"kind": "slot_just_filled"})
		}
		return c.JSON(http.StatusCreated, echo.Map{"call": calls})
	}, NewIdempotency(cfg, rdb, nil))

	hdr := map[string]string{"Idempotency-Key": "k1"}
	first := serve(e, http.MethodPost, "/orders", `{"slot":"13:00"}`, hdr)
	retry := serve(e, http.MethodPost, "/orders", `{"slot":"13:00"}`, hdr)

	assert.Equal(t, http.StatusConflict, first.Code)
	assert.Equal(t, http.StatusCreated, retry.Code)
	assert.Empty(t, retry.Header().Get("Idempotent-Replay"))
	assert.Equal(t, 2, calls)
}

func TestIdempotency_KeyReusedWithDifferentBody(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.IdempotencyConfig{
		Enabled: true, TTL: time.Hour, LockTTL: 10 * time.Second, Prefix: "idem", HeaderName: "Idempotency-Key",
	}
	calls := 0
	e := echo.New()
	e.POST("/orders", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusCreated, echo.Map{"call": calls})
	}, NewIdempotency(cfg, rdb, nil))

	hdr := map[string]string{"Idempotency-Key": "k1"}
	first := serve(e, http.MethodPost, "/orders", `{"slot":"13:00"}`, hdr)
	other := serve(e, http.MethodPost, "/orders", `{"slot":"13:10"}`, hdr)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, other.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotency_SkipReplayRunsAgain(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.IdempotencyConfig{
		Enabled: true, TTL: time.Hour, LockTTL: 10 * time.Second, Prefix: "idem", HeaderName: "Idempotency-Key",
	}
	calls := 0
	e := echo.New()
	e.POST("/orders", func(c echo.Context) error {
		calls++
		SkipReplay(c)
		return c.JSON(http.StatusOK, echo.Map{"result": "fallback"})
	}, NewIdempotency(cfg, rdb, nil))

	hdr := map[string]string{"Idempotency-Key": "k1"}
	serve(e, http.MethodPost, "/orders", `{}`, hdr)
	second := serve(e, http.MethodPost, "/orders", `{}`, hdr)

	assert.Equal(t, http.StatusOK, second.Code)
	assert.Empty(t, second.Header().Get("Idempotent-Replay"))
	assert.Equal(t, 2, calls)
}
