package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/block-seat-reservation/internal/config"
	"github.com/iliyamo/block-seat-reservation/internal/utils"
)

const secret = "test-secret"

func whoami(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"user_id": UserID(c), "role": Role(c)})
}

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))

	tok, err := utils.NewAccessToken(secret, "+919876543210", "customer", 5)
	require.NoError(t, err)
	rec := serve(e, http.MethodGet, "/me", tok.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"+919876543210","role":"CUSTOMER"}`, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", "garbage").Code)

	other, err := utils.NewAccessToken("other-secret", "u1", "CUSTOMER", 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", other.Token).Code)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1", "exp": time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", expired).Code)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "CUSTOMER", "exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", noSub).Code)
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.POST("/attend", whoami, JWTAuth(secret), RequireRole(RoleStaff))

	staff, err := utils.NewAccessToken(secret, "s1", "staff", 5)
	require.NoError(t, err)
	customer, err := utils.NewAccessToken(secret, "c1", "CUSTOMER", 5)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/attend", staff.Token).Code)
	rec := serve(e, http.MethodPost, "/attend", customer.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/events/e1/bookings", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/events/:id/bookings")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user_route"}
	assert.Equal(t, "rl:user:anon:route:POST /v1/events/:id/bookings", buildRateKey(cfg, c))

	c.Set(ctxUserID, "u42")
	cfg.KeyStrategy = "ip_user"
	assert.Equal(t, "rl:ip:10.0.0.1:user:u42", buildRateKey(cfg, c))
	cfg.KeyStrategy = ""
	assert.Equal(t, "rl:ip:10.0.0.1:user:u42:route:POST /v1/events/:id/bookings", buildRateKey(cfg, c))
}

func TestTokenBucket(t *testing.T) {
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })

	rdb, mock := redismock.NewClientMock()
	mock.MatchExpectationsInOrder(true)
	log, _ := test.NewNullLogger()
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 3, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl", KeyStrategy: "ip"}

	e := echo.New()
	e.POST("/book", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, NewTokenBucket(cfg, rdb, log))

	keys := []string{"rl:ip:192.0.2.1"}
	args := []interface{}{fixed.UnixMilli(), 3, 1, int64(1000), int64(60)}
	mock.ExpectEvalSha(tokenBucket.Hash(), keys, args...).SetVal([]interface{}{int64(1), int64(2), int64(0)})
	mock.ExpectEvalSha(tokenBucket.Hash(), keys, args...).SetVal([]interface{}{int64(0), int64(0), int64(1500)})
	mock.ExpectEvalSha(tokenBucket.Hash(), keys, args...).SetErr(errors.New("connection refused"))

	rec := serve(e, http.MethodPost, "/book", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Remaining"))

	rec = serve(e, http.MethodPost, "/book", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, rec.Body.String(), "too_many_requests")

	// redis failures let traffic through without rate headers
	rec = serve(e, http.MethodPost, "/book", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Remaining"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenBucket_DisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.POST("/book", func(c echo.Context) error { return c.NoContent(http.StatusCreated) },
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil))
	assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/book", "").Code)
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, gotHdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}

func TestRedisCache_HitAndMiss(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "cache", KeyStrategy: "route_query"}
	log, _ := test.NewNullLogger()

	calls := 0
	e := echo.New()
	e.GET("/v1/venues/:id/blocks", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id")})
	}, NewRedisCache(cfg, rdb, log))

	req := httptest.NewRequest(http.MethodGet, "/v1/venues/v1/blocks", nil)
	key := cacheKeyFrom(cfg, e.NewContext(req, httptest.NewRecorder()))

	payload, err := encodePayload(http.StatusOK, http.Header{"Content-Type": {"application/json"}}, []byte(`{"id":"cached"}`))
	require.NoError(t, err)
	mock.ExpectGet(key).SetVal(string(payload))

	rec := serve(e, http.MethodGet, "/v1/venues/v1/blocks", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"id":"cached"}`, rec.Body.String())
	assert.Zero(t, calls)

	mock.ExpectGet(key).RedisNil()
	mock.Regexp().ExpectSetEx(key, `.*`, time.Minute).SetVal("OK")
	rec = serve(e, http.MethodGet, "/v1/venues/v1/blocks", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"id":"v1"}`, rec.Body.String())
	assert.Equal(t, 1, calls)
}

func TestRequestLogger(t *testing.T) {
	log, hook := test.NewNullLogger()
	e := echo.New()
	e.Use(RequestLogger(log))
	e.GET("/ok/:id", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadGateway, "upstream") })

	serve(e, http.MethodGet, "/ok/7", "")
	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "/ok/:id", entry.Data["path"])
	assert.Equal(t, http.StatusOK, entry.Data["status"])

	rec := serve(e, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	serve(e, http.MethodGet, "/missing", "")
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}
