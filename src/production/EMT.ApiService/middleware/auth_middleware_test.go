package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jwt "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.ApiService/implementation/jwt"
	config "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Config"
	logger "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Logger"
	api_models "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models/api"
)

func newTestMiddleware() (*AuthMiddleware, *jwt.Service) {
	log := logger.NewLogger(&config.LoggingConfig{Level: "error", Format: "json"})
	jwtService := jwt.NewService(api_models.Config{
		SecretKey:     "test-secret",
		TokenDuration: time.Hour,
		Issuer:        "test-issuer",
	}, log)
	return NewAuthMiddleware(jwtService, log), jwtService
}

func newTestRouter(m *AuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(m.Identify())
	router.GET("/open", func(c *gin.Context) {
		username, _ := c.Get(UsernameContextKey)
		c.JSON(http.StatusOK, gin.H{"username": username})
	})
	router.GET("/protected", m.RequireAuthenticated(), func(c *gin.Context) {
		username, err := GetUsernameFromGinContext(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": username})
	})
	return router
}

func TestIdentify_MissingHeaderStaysAnonymous(t *testing.T) {
	m, _ := newTestMiddleware()
	router := newTestRouter(m)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected anonymous request to reach the handler, got %d", w.Code)
	}
}

func TestIdentify_GarbledHeaderStaysAnonymous(t *testing.T) {
	m, _ := newTestMiddleware()
	router := newTestRouter(m)

	for _, header := range []string{"bearer lowercase", "Bearer", "Token abc", "Bearer  "} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", header)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401 for header %q, got %d", header, w.Code)
		}
	}
}

func TestIdentify_ValidTokenSetsUsername(t *testing.T) {
	m, jwtService := newTestMiddleware()
	router := newTestRouter(m)

	issued, err := jwtService.GenerateToken("alice")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Token)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 with valid token, got %d", w.Code)
	}
	if body := w.Body.String(); body != `{"username":"alice"}` {
		t.Errorf("Expected alice in response, got %s", body)
	}
}

func TestRequireAuthenticated_RejectsAnonymous(t *testing.T) {
	m, _ := newTestMiddleware()
	router := newTestRouter(m)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without identity, got %d", w.Code)
	}
}

func TestExtractToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := extractToken(req); got != "" {
		t.Errorf("Expected empty token without header, got %q", got)
	}

	req.Header.Set("Authorization", "Bearer abc123")
	if got := extractToken(req); got != "abc123" {
		t.Errorf("Expected abc123, got %q", got)
	}

	req.Header.Set("Authorization", "bearer abc123")
	if got := extractToken(req); got != "" {
		t.Errorf("Expected case-sensitive prefix match, got %q", got)
	}
}
