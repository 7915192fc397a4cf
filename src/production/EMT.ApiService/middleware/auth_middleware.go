package middleware

import (
	"errors"
	"net/http"
	"strings"

	jwt "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.ApiService/implementation/jwt"
	logger "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Logger"

	"github.com/gin-gonic/gin"
)

const (
	// UsernameContextKey holds the authenticated username, set by Identify
	UsernameContextKey = "username"

	bearerPrefix = "Bearer "
)

// AuthMiddleware provides the per-request token filter and the protected
// route enforcement
type AuthMiddleware struct {
	jwtService *jwt.Service
	logger     *logger.Logger
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtService *jwt.Service, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		logger:     log.WithComponent("auth-middleware"),
	}
}

// extractToken returns the raw token from an "Authorization: Bearer <token>"
// header, or "" when the header is absent or not in bearer form. The prefix
// match is case-sensitive with exactly one space.
func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return header[len(bearerPrefix):]
}

// Identify is the token authentication filter. It runs once per request and
// never rejects: on a valid token the username is placed in the request
// context, otherwise the request continues anonymous. Enforcement happens
// in RequireAuthenticated on protected routes.
func (m *AuthMiddleware) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c.Request)

		if token != "" && m.jwtService.ValidateToken(token) {
			username, err := m.jwtService.UsernameFromToken(token)
			if err == nil {
				c.Set(UsernameContextKey, username)
				c.Next()
				return
			}
		}

		if token == "" {
			m.logger.Debug("missing bearer token in request: " + c.Request.URL.Path)
		} else {
			m.logger.Info("unauthorized request: " + c.Request.URL.Path)
		}

		c.Next()
	}
}

// RequireAuthenticated rejects requests that carry no authenticated identity
func (m *AuthMiddleware) RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(UsernameContextKey); !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUsernameFromGinContext retrieves the authenticated username
func GetUsernameFromGinContext(c *gin.Context) (string, error) {
	usernameVal, exists := c.Get(UsernameContextKey)
	if !exists {
		return "", errors.New("user not found in context")
	}

	username, ok := usernameVal.(string)
	if !ok {
		return "", errors.New("invalid username format in context")
	}

	return username, nil
}
