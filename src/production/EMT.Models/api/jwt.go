package api_models

import (
	"time"
)

// Config holds JWT configuration
type Config struct {
	SecretKey     string
	TokenDuration time.Duration
	Issuer        string
}

// IssuedToken describes a freshly issued bearer token
type IssuedToken struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	Username  string `json:"username"`
}
