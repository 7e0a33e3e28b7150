package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smrms-be/metrics"
	authUtils "smrms-be/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func token(t *testing.T, userID string, roles ...string) string {
	t.Helper()
	tok, err := authUtils.GenerateToken(authUtils.Claims{UserID: userID, Roles: roles}, time.Hour, secret)
	require.NoError(t, err)
	return tok
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthMiddleware(secret, zap.NewNop()), func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		c.String(http.StatusOK, claims.UserID)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "u1"))
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookie, Value: token(t, "u2")})
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u2", w.Body.String())
}

func TestRequireRole(t *testing.T) {
	r := gin.New()
	r.DELETE("/x", AuthMiddleware(secret, zap.NewNop()), RequireRole("ADMIN"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodDelete, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "u1", "STUDENT"))
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodDelete, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "u1", "STUDENT", "ADMIN"))
	assert.Equal(t, http.StatusNoContent, serve(r, req).Code)
}

func TestIssueRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	r := gin.New()
	r.POST("/issues",
		AuthMiddleware(secret, zap.NewNop()),
		IssueRateLimiter(client, "issue-limit", 2, zap.NewNop()),
		func(c *gin.Context) { c.Status(http.StatusCreated) },
	)
	post := func(userID string) int {
		req := httptest.NewRequest(http.MethodPost, "/issues", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
		return serve(r, req).Code
	}

	assert.Equal(t, http.StatusCreated, post("u1"))
	assert.Equal(t, http.StatusCreated, post("u1"))
	assert.Equal(t, http.StatusTooManyRequests, post("u1"))
	assert.Equal(t, http.StatusCreated, post("u2"), "limits are per principal")
	assert.Equal(t, 24*time.Hour, mr.TTL("issue-limit:u1"))

	mr.FastForward(25 * time.Hour)
	assert.Equal(t, http.StatusCreated, post("u1"), "window expired")
}

func TestIssueRateLimiterDisabledWithoutRedis(t *testing.T) {
	r := gin.New()
	r.POST("/issues", IssueRateLimiter(nil, "issue-limit", 1, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusCreated, serve(r, httptest.NewRequest(http.MethodPost, "/issues", nil)).Code)
	}
}

func TestRequireServiceToken(t *testing.T) {
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }

	r := gin.New()
	r.POST("/external", RequireServiceToken("s3cret"), ok)

	req := httptest.NewRequest(http.MethodPost, "/external", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/external", nil)
	req.Header.Set(ServiceTokenHeader, "s3cret")
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	disabled := gin.New()
	disabled.POST("/external", RequireServiceToken(""), ok)
	req = httptest.NewRequest(http.MethodPost, "/external", nil)
	req.Header.Set(ServiceTokenHeader, "")
	assert.Equal(t, http.StatusServiceUnavailable, serve(disabled, req).Code)
}

func TestRequestMetricsUsesRouteTemplate(t *testing.T) {
	m := metrics.New()
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()), RequestMetrics(m))
	r.GET("/api/issues/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, httptest.NewRequest(http.MethodGet, "/api/issues/abc", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/api/issues/def", nil))

	n, err := testutil.GatherAndCount(m.Registry(), "smrms_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
