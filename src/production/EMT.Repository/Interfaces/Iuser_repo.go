package interfaces

import (
	"context"

	auth_models "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models/auth"
)

type UserRepository interface {
	// Create user
	Create(ctx context.Context, user *auth_models.User) (*auth_models.User, error)

	// Read users
	GetByUsername(ctx context.Context, username string) (*auth_models.User, error)
	GetByEmail(ctx context.Context, email string) (*auth_models.User, error)
	GetAll(ctx context.Context) ([]*auth_models.User, error)

	// Update user
	Update(ctx context.Context, user *auth_models.User) error

	// Delete user
	Delete(ctx context.Context, userID string) error
}
