package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campusconnect/config"
	"campusconnect/internal/auth"
	"campusconnect/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() { gin.SetMode(gin.TestMode) }

func TestAuthRequired(t *testing.T) {
	cfg := &config.JWTConfig{AccessSecret: "s", AccessExpiry: time.Hour}
	r := gin.New()
	r.GET("/me", AuthRequired(cfg), func(c *gin.Context) { c.String(http.StatusOK, GetUserID(c)) })

	for header, want := range map[string]int{"": 401, "Token abc": 401, "Bearer nope": 401} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, header)
	}

	tok, err := auth.GenerateAccessToken(cfg, "user-9", "")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-9", w.Body.String())
}

type usersFunc func(ctx context.Context, id string) (*models.User, error)

func (f usersFunc) Get(ctx context.Context, id string) (*models.User, error) { return f(ctx, id) }

func TestProfileRequired(t *testing.T) {
	users := usersFunc(func(_ context.Context, id string) (*models.User, error) {
		switch id {
		case "ok":
			return &models.User{ID: id, DisplayName: "Ada"}, nil
		case "broken":
			return nil, errors.New("db down")
		}
		return nil, nil
	})
	for id, want := range map[string]int{"ok": 200, "missing": 403, "broken": 500, "": 401} {
		r := gin.New()
		r.GET("/x", func(c *gin.Context) { c.Set("user_id", id) }, ProfileRequired(users), func(c *gin.Context) {
			u, _ := c.Get("user")
			c.String(http.StatusOK, u.(*models.User).DisplayName)
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, want, w.Code, id)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 2)
	r := gin.New()
	r.GET("/", RateLimit(limiter), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{204, 204, 429}, codes)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	limiter.idle = 0
	time.Sleep(time.Millisecond)
	assert.Equal(t, 2, limiter.Sweep())
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/groups/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	req := httptest.NewRequest(http.MethodGet, "/groups/abc", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zap.WarnLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "/groups/:id", fields["path"])
	assert.Equal(t, int64(404), fields["status"])
}
