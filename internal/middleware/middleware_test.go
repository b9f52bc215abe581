package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"storefront-identity/internal/config"
	"storefront-identity/internal/usecase/user"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier struct {
	identity *user.Identity
}

func (v stubVerifier) VerifyToken(token string) (*user.Identity, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return v.identity, nil
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	identity := &user.Identity{UserID: uuid.New(), Role: "admin"}

	r := gin.New()
	r.Use(AuthMiddleware(stubVerifier{identity: identity}))
	r.GET("/me", func(c *gin.Context) {
		got, ok := CurrentIdentity(c)
		require.True(t, ok)
		c.String(http.StatusOK, got.UserID.String()+" "+got.Role)
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", status: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", status: http.StatusUnauthorized},
		{name: "rejected token", header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "accepted token", header: "Bearer good", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, identity.UserID.String()+" admin", w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), `"success":false`)
			}
		})
	}
}

func TestAdminOnly(t *testing.T) {
	build := func(role string) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			if role != "" {
				c.Set(RoleKey, role)
			}
		})
		r.GET("/admin", AdminOnly(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		return r
	}

	assert.Equal(t, http.StatusNoContent, serve(build("admin"), httptest.NewRequest(http.MethodGet, "/admin", nil)).Code)
	assert.Equal(t, http.StatusForbidden, serve(build("user"), httptest.NewRequest(http.MethodGet, "/admin", nil)).Code)
	assert.Equal(t, http.StatusForbidden, serve(build(""), httptest.NewRequest(http.MethodGet, "/admin", nil)).Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := serve(r, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
	w = serve(r, req)
	_, err := uuid.Parse(w.Body.String())
	assert.NoError(t, err)
}

func TestRateLimitMiddleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := gin.New()
	r.Use(RateLimitMiddleware(ctx, 1, 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterSweep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 10, 1)
	rl.getLimiter("10.0.0.1").Allow()
	require.Equal(t, 1, rl.size())

	rl.sweep(time.Now())
	assert.Equal(t, 1, rl.size())

	rl.sweep(time.Now().Add(time.Second))
	assert.Equal(t, 0, rl.size())
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestSizeLimitMiddleware(8))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123")))
	assert.Equal(t, http.StatusOK, w.Code)

	t.Run("streamed body is capped while reading", func(t *testing.T) {
		r := gin.New()
		r.Use(RequestSizeLimitMiddleware(8))
		r.POST("/", func(c *gin.Context) {
			var body map[string]string
			if err := c.ShouldBindJSON(&body); err != nil {
				var tooLarge *http.MaxBytesError
				assert.ErrorAs(t, err, &tooLarge)
				c.Status(http.StatusRequestEntityTooLarge)
				return
			}
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com"}`))
		req.ContentLength = -1
		assert.Equal(t, http.StatusRequestEntityTooLarge, serve(r, req).Code)
	})

	t.Run("non-positive limit falls back to the identity default", func(t *testing.T) {
		r := gin.New()
		r.Use(RequestSizeLimitMiddleware(0))
		r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

		small := strings.Repeat("a", 1<<10)
		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(small))).Code)

		large := strings.Repeat("a", int(DefaultMaxRequestSize)+1)
		assert.Equal(t, http.StatusRequestEntityTooLarge, serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(large))).Code)
	})

	t.Run("bodiless requests pass", func(t *testing.T) {
		r := gin.New()
		r.Use(RequestSizeLimitMiddleware(8))
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	})
}

func TestCORSMiddleware(t *testing.T) {
	preflight := func(r *gin.Engine, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		return serve(r, req)
	}
	build := func(cfg *config.CORSConfig) *gin.Engine {
		r := gin.New()
		r.Use(CORSMiddleware(cfg))
		r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}
	base := config.CORSConfig{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           30 * time.Minute,
	}

	t.Run("listed origin", func(t *testing.T) {
		cfg := base
		cfg.AllowedOrigins = []string{"http://shop.test"}
		r := build(&cfg)

		w := preflight(r, "http://shop.test")
		assert.Equal(t, "http://shop.test", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "1800", w.Header().Get("Access-Control-Max-Age"))

		w = preflight(r, "http://evil.test")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("request id is exposed", func(t *testing.T) {
		cfg := base
		cfg.AllowedOrigins = []string{"http://shop.test"}
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Origin", "http://shop.test")

		w := serve(build(&cfg), req)
		exposed := strings.ToLower(w.Header().Get("Access-Control-Expose-Headers"))
		assert.Contains(t, exposed, strings.ToLower(RequestIDHeader))
	})

	t.Run("wildcard drops credentials", func(t *testing.T) {
		cfg := base
		cfg.AllowedOrigins = []string{"*"}

		w := preflight(build(&cfg), "http://anywhere.test")
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("no origins writes no headers", func(t *testing.T) {
		cfg := base
		r := build(&cfg)

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Origin", "http://shop.test")
		w := serve(r, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeadersMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
