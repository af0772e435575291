package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fatflowers/iftar/internal/app/service/auth"
	cfgpkg "github.com/fatflowers/iftar/pkg/config"
	"github.com/fatflowers/iftar/pkg/logctx"
)

func init() { gin.SetMode(gin.TestMode) }

func TestTraceAndRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core).Sugar()

	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(base), AccessLogMiddleware(base))
	var traceInCtx string
	r.GET("/x", func(c *gin.Context) {
		traceInCtx = logctx.TraceID(c.Request.Context())
		logctx.FromCtx(c.Request.Context(), base).Infow("inside")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", traceInCtx)
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))
	require.Equal(t, 2, logs.Len())
	for _, e := range logs.All() {
		assert.Equal(t, "req-1", e.ContextMap()["trace_id"])
	}
	assert.Equal(t, "http_access", logs.All()[1].Message)
}

func TestTraceMiddleware_GeneratesID(t *testing.T) {
	r := gin.New()
	r.Use(TraceMiddleware())
	var got string
	r.GET("/x", func(c *gin.Context) { got = c.GetString(logctx.TraceIDKey) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Len(t, got, 36)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS("https://iftar.example, https://admin.iftar.example"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://admin.iftar.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://admin.iftar.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit_PassThroughWithoutRedis(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(cfgpkg.RateLimitConfig{Enabled: true, Capacity: 1}, nil, zap.NewNop().Sugar()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

type stubVerifier struct{}

func (stubVerifier) Verify(token string) (*auth.Claims, error) {
	if token != "good" {
		return nil, errors.New("invalid token")
	}
	c := &auth.Claims{Role: auth.RoleAdmin}
	c.Subject = "admin"
	return c, nil
}

func TestAdminAuth(t *testing.T) {
	r := gin.New()
	r.Use(AdminAuth(stubVerifier{}, zap.NewNop().Sugar()))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(logctx.AdminKey)) })

	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"missing", "", `"code":40100`},
		{"wrong scheme", "Basic abc", `"code":40100`},
		{"bad token", "Bearer nope", `"code":40100`},
		{"ok", "Bearer good", "admin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Contains(t, w.Body.String(), tc.want)
		})
	}
}
