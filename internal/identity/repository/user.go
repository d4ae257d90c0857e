package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/fieldpunch/attendance-backend/internal/identity/domain"
	"github.com/fieldpunch/attendance-backend/pkg/database"
	"github.com/fieldpunch/attendance-backend/pkg/errors"
)

// UserRepository handles identity-store persistence for users.
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user, generating an ID if not already set.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}

	query := `
		INSERT INTO users (id, name, emp_code, email, phone, primary_role, department, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		u.ID, u.Name, u.EmpCode, u.Email, u.Phone, u.PrimaryRole, u.Department, u.PasswordHash,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID fetches a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	query := `
		SELECT id, name, emp_code, email, phone, primary_role, department, password_hash, created_at, updated_at
		FROM users WHERE id = $1
	`
	err := r.db.GetContext(ctx, &u, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail fetches a user by email, used on login.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	query := `
		SELECT id, name, emp_code, email, phone, primary_role, department, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	err := r.db.GetContext(ctx, &u, query, email)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns every user, for the RBAC admin surface's `GET /rbac/users`.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	query := `
		SELECT id, name, emp_code, email, phone, primary_role, department, password_hash, created_at, updated_at
		FROM users ORDER BY name
	`
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, err
	}
	return users, nil
}

// RoleNamesForUser returns the distinct role names assigned to a user.
func (r *UserRepository) RoleNamesForUser(ctx context.Context, userID string) ([]string, error) {
	var names []string
	query := `
		SELECT r.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
	`
	if err := r.db.SelectContext(ctx, &names, query, userID); err != nil {
		return nil, err
	}
	return names, nil
}
