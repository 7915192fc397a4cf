package auth

import (
	"context"
	"errors"
	"fmt"

	jwt "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.ApiService/implementation/jwt"
	emtmodels "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models"
	api_models "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models/api"
	auth_models "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models/auth"
	interfaces "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Repository/Interfaces"

	"golang.org/x/crypto/bcrypt"
)

// AuthService aggregates user registration and credential verification
type AuthService struct {
	userRepo   interfaces.UserRepository
	jwtService *jwt.Service
}

type RegisterRequest struct {
	Username  string `json:"username" binding:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo interfaces.UserRepository, jwtService *jwt.Service) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtService: jwtService,
	}
}

// Register registers a new user
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*auth_models.User, error) {
	// Check if username or email is already taken
	existingUser, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if existingUser != nil {
		return nil, fmt.Errorf("%w: username %s", emtmodels.ErrUserAlreadyRegistered, req.Username)
	}

	existingUser, err = s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existingUser != nil {
		return nil, fmt.Errorf("%w: email %s", emtmodels.ErrUserAlreadyRegistered, req.Email)
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := auth_models.NewUser(req.Username, req.FirstName, req.LastName, req.Email, string(hashedPassword))
	return s.userRepo.Create(ctx, user)
}

// Verify checks a username/password pair against the user store. A mismatch
// fails with emtmodels.ErrWrongPassword.
func (s *AuthService) Verify(ctx context.Context, req LoginRequest) (bool, error) {
	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, fmt.Errorf("%w: %s", emtmodels.ErrUserNotFound, req.Username)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return false, fmt.Errorf("%w: %s", emtmodels.ErrWrongPassword, req.Username)
	}
	return true, nil
}

// Login verifies credentials and issues a bearer token on success. The
// returned token is nil when the credentials do not match; only lookup and
// store failures surface as errors.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*api_models.IssuedToken, error) {
	verified, err := s.Verify(ctx, req)
	if err != nil {
		if errors.Is(err, emtmodels.ErrWrongPassword) {
			return nil, nil
		}
		return nil, err
	}
	if !verified {
		return nil, nil
	}

	return s.jwtService.GenerateToken(req.Username)
}

// FindAll returns every registered user
func (s *AuthService) FindAll(ctx context.Context) ([]*auth_models.User, error) {
	return s.userRepo.GetAll(ctx)
}
