package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.POST("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func do(r http.Handler, method string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/ping", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, Burst: 2})
	r := newEngine(rl.Middleware())

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, nil).Code)
	w := do(r, http.MethodGet, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "retry_after")
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, Burst: 1})
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.getLimiter("1.1.1.1")

	now = now.Add(time.Minute)
	rl.getLimiter("2.2.2.2")

	assert.Equal(t, 1, rl.Sweep(30*time.Second))
	assert.Len(t, rl.visitors, 1)
}

func TestSharedSecret(t *testing.T) {
	r := newEngine(RequestID(), SharedSecret("s3cret"))

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, map[string]string{"Authorization": "nope"}).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, map[string]string{"Authorization": "s3cret"}).Code)

	open := newEngine(SharedSecret(""))
	assert.Equal(t, http.StatusUnauthorized, do(open, http.MethodPost, map[string]string{"Authorization": ""}).Code)
}

func TestRequestID(t *testing.T) {
	r := newEngine(RequestID())

	w := do(r, http.MethodGet, nil)
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	require.NoError(t, err)

	id := uuid.NewString()
	w = do(r, http.MethodGet, map[string]string{RequestIDHeader: id})
	assert.Equal(t, id, w.Header().Get(RequestIDHeader))

	w = do(r, http.MethodGet, map[string]string{RequestIDHeader: "not-a-uuid"})
	assert.NotEqual(t, "not-a-uuid", w.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	r := newEngine(CORS([]string{"https://1of1.tools"}))

	w := do(r, http.MethodGet, map[string]string{"Origin": "https://1of1.tools"})
	assert.Equal(t, "https://1of1.tools", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(r, http.MethodGet, map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
