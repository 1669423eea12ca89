package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/book-expert/audiobook-service/internal/core"
)

// UserRepository is the persistence interface for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *core.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*core.User, error)
	GetByEmail(ctx context.Context, email string) (*core.User, error)
	GetByUsername(ctx context.Context, username string) (*core.User, error)
}

type userRepo struct {
	db DBTX
}

// NewUserRepository creates the PostgreSQL-backed user repository.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, email, username, password_hash, is_active, created_at`

func scanUser(row pgx.Row) (*core.User, error) {
	user := &core.User{}

	err := row.Scan(
		&user.ID, &user.Email, &user.Username,
		&user.PasswordHash, &user.IsActive, &user.CreatedAt,
	)

	return user, err
}

func (r *userRepo) Create(ctx context.Context, user *core.User) error {
	query := `
		INSERT INTO users (id, email, username, password_hash, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash, user.IsActive,
	).Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email or username taken", ErrConflict)
		}

		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*core.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	return r.getOne(ctx, query, id)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*core.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)

	return r.getOne(ctx, query, email)
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*core.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE username = $1`, userColumns)

	return r.getOne(ctx, query, username)
}

func (r *userRepo) getOne(ctx context.Context, query string, arg any) (*core.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}
