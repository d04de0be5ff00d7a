package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/database"
	"storefront/internal/domain"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, params ListParams) ([]*domain.User, int, error)
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*domain.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type userRepository struct {
	db    *sql.DB
	dates DateMode
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(db *sql.DB, dates DateMode) UserRepository {
	return &userRepository{db: db, dates: dates}
}

const userColumns = `id, name, email, role, is_active, hashed_password, tokens_valid_from, created_at, updated_at`

var userList = listQuery{
	selectFrom: `SELECT ` + userColumns + ` FROM users`,
	countFrom:  `SELECT COUNT(*) FROM users`,
	filters: map[string]filter{
		"role":      eqFilter("role"),
		"is_active": boolFilter("is_active"),
		"email":     eqFilter("email"),
		"search":    searchFilter("name", "email"),
	},
	sortable: map[string]string{
		"name": "name", "email": "email", "role": "role", "created_at": "created_at", "updated_at": "updated_at",
	},
	defaultSort: "created_at",
}

var userUpdatable = map[string]updateColumn{
	"name":              {},
	"email":             {},
	"role":              {},
	"is_active":         {},
	"hashed_password":   {},
	"tokens_valid_from": {timestamp: true},
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var validFrom sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.IsActive,
		&user.HashedPassword,
		&validFrom,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	utc(&user.CreatedAt, &user.UpdatedAt)
	if validFrom.Valid {
		utc(&validFrom.Time)
		user.TokensValidFrom = &validFrom.Time
	}
	return user, nil
}

// Get retrieves a user by ID
func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(database.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(domain.ResourceUser, id)
		}
		return nil, mapStoreError(fmt.Errorf("failed to find user by ID: %w", err), domain.ResourceUser)
	}

	return user, nil
}

// GetByEmail retrieves a user by email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(database.Executor(ctx, r.db).QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(domain.ResourceUser, "User with email %s not found", email)
		}
		return nil, mapStoreError(fmt.Errorf("failed to find user by email: %w", err), domain.ResourceUser)
	}

	return user, nil
}

func (r *userRepository) List(ctx context.Context, params ListParams) ([]*domain.User, int, error) {
	return listRows(ctx, database.Executor(ctx, r.db), userList, params, domain.ResourceUser, scanUser)
}

// Create inserts a user; a duplicate email surfaces as AlreadyExists
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	query := `
		INSERT INTO users (id, name, email, role, is_active, hashed_password, tokens_valid_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := database.Executor(ctx, r.db).QueryRowContext(
		ctx,
		query,
		user.ID,
		user.Name,
		user.Email,
		user.Role,
		user.IsActive,
		user.HashedPassword,
		user.TokensValidFrom,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return mapStoreError(fmt.Errorf("failed to create user: %w", err), domain.ResourceUser)
	}
	utc(&user.CreatedAt, &user.UpdatedAt)

	return nil
}

// Update writes only the supplied fields and returns the stored row
func (r *userRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*domain.User, error) {
	query, args, err := buildUpdate("users", id, fields, userUpdatable, true, r.dates)
	if err != nil {
		return nil, err
	}

	user, err := scanUser(database.Executor(ctx, r.db).QueryRowContext(ctx, query+` RETURNING `+userColumns, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(domain.ResourceUser, id)
		}
		return nil, mapStoreError(fmt.Errorf("failed to update user: %w", err), domain.ResourceUser)
	}

	return user, nil
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := database.Executor(ctx, r.db).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to delete user: %w", err), domain.ResourceUser)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return mapStoreError(err, domain.ResourceUser)
	}
	if n == 0 {
		return notFound(domain.ResourceUser, id)
	}

	return nil
}
