package middleware_test

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inspeaker/smartlink/internal/middleware"
	"github.com/stretchr/testify/assert"
)

// TestRateLimiter_Middleware проверяет работу rate limiter middleware
func TestRateLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: 5,
		BurstSize:         5,
		CleanupInterval:   time.Minute,
	})

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Первые 5 запросов проходят в пределах burst лимита
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	// Следующий запрос ограничивается
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

// unsignedJWT собирает JWT без подписи с заданными claims
func unsignedJWT(t *testing.T, claims map[string]any) string {
	t.Helper()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	assert.NoError(t, err)

	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + "."
}

// actorEcho роутер, отдающий атрибутированного актора
func actorEcho() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.Actor())
	router.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, middleware.ActorFromContext(c))
	})
	return router
}

// TestActor_FromJWT e-mail извлекается из claims bearer-токена
func TestActor_FromJWT(t *testing.T) {
	router := actorEcho()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+unsignedJWT(t, map[string]any{"email": "admin@inspeaker.com.co"}))
	router.ServeHTTP(w, req)

	assert.Equal(t, "admin@inspeaker.com.co", w.Body.String())
}

// TestActor_HeaderFallback без JWT актор берётся из X-Actor-Email
func TestActor_HeaderFallback(t *testing.T) {
	router := actorEcho()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("X-Actor-Email", "editor@inspeaker.com.co")
	router.ServeHTTP(w, req)

	assert.Equal(t, "editor@inspeaker.com.co", w.Body.String())
}

// TestActor_SystemSentinel неаутентифицированный запрос атрибутируется system
func TestActor_SystemSentinel(t *testing.T) {
	router := actorEcho()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/whoami", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, "system", w.Body.String())
}

// TestActor_GarbageToken мусорный токен не ломает запрос, актор — system
func TestActor_GarbageToken(t *testing.T) {
	router := actorEcho()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "system", w.Body.String())
}
