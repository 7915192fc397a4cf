package implementation

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	auth_models "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models/auth"
)

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// Create user
func (r *PostgresUserRepository) Create(ctx context.Context, user *auth_models.User) (*auth_models.User, error) {
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	query := `
		INSERT INTO users (user_id, username, first_name, last_name, email, password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query, user.UserID, user.Username, user.FirstName,
		user.LastName, user.Email, user.Password, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*auth_models.User, error) {
	query := `SELECT user_id, username, first_name, last_name, email, password, created_at, updated_at FROM users WHERE username = $1`

	var user auth_models.User

	err := r.db.QueryRowContext(ctx, query, username).Scan(&user.UserID, &user.Username,
		&user.FirstName, &user.LastName, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*auth_models.User, error) {
	query := `SELECT user_id, username, first_name, last_name, email, password, created_at, updated_at FROM users WHERE email = $1`

	var user auth_models.User

	err := r.db.QueryRowContext(ctx, query, email).Scan(&user.UserID, &user.Username,
		&user.FirstName, &user.LastName, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresUserRepository) GetAll(ctx context.Context) ([]*auth_models.User, error) {
	query := `SELECT user_id, username, first_name, last_name, email, password, created_at, updated_at FROM users ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*auth_models.User
	for rows.Next() {
		var user auth_models.User
		if err := rows.Scan(&user.UserID, &user.Username, &user.FirstName, &user.LastName,
			&user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, &user)
	}

	return users, rows.Err()
}

func (r *PostgresUserRepository) Update(ctx context.Context, user *auth_models.User) error {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users
		SET username = $2, first_name = $3, last_name = $4, email = $5, password = $6, updated_at = $7
		WHERE user_id = $1
	`

	_, err := r.db.ExecContext(ctx, query, user.UserID, user.Username, user.FirstName,
		user.LastName, user.Email, user.Password, user.UpdatedAt)
	return err
}

func (r *PostgresUserRepository) Delete(ctx context.Context, userID string) error {
	query := `DELETE FROM users WHERE user_id = $1`

	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}
