package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	logger "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Logger"
	api_models "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models/api"
)

// Service provides JWT operations
type Service struct {
	config api_models.Config
	logger *logger.Logger
}

// NewService creates a new JWT service
func NewService(config api_models.Config, log *logger.Logger) *Service {
	return &Service{
		config: config,
		logger: log.WithComponent("jwt-service"),
	}
}

// GenerateToken creates a signed, time-limited token bound to a username
func (s *Service) GenerateToken(username string) (*api_models.IssuedToken, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.TokenDuration)

	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Issuer:    s.config.Issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.SecretKey))
	if err != nil {
		return nil, err
	}

	return &api_models.IssuedToken{
		Token:     tokenString,
		ExpiresAt: expiresAt.Unix(),
		Username:  username,
	}, nil
}

// ValidateToken reports whether the token is well-formed, correctly signed
// and not expired. Every failure mode collapses to false.
func (s *Service) ValidateToken(tokenString string) bool {
	_, err := s.parse(tokenString)
	if err != nil {
		s.logger.WithError(err).Debug("token validation failed")
		return false
	}
	return true
}

// UsernameFromToken extracts the subject claim. Callers must validate the
// token first; an invalid token fails here too.
func (s *Service) UsernameFromToken(tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (s *Service) parse(tokenString string) (*jwt.RegisteredClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.config.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*jwt.RegisteredClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
