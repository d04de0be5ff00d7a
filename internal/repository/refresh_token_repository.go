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

// RefreshTokenRepository defines the interface for refresh token data access
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

type refreshTokenRepository struct {
	db *sql.DB
}

// NewRefreshTokenRepository creates a new instance of RefreshTokenRepository
func NewRefreshTokenRepository(db *sql.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	query := `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := database.Executor(ctx, r.db).QueryRowContext(
		ctx,
		query,
		token.ID,
		token.UserID,
		token.Token,
		token.ExpiresAt,
		token.Revoked,
	).Scan(&token.CreatedAt)

	if err != nil {
		return mapStoreError(fmt.Errorf("failed to create refresh token: %w", err), domain.ResourceRefreshToken)
	}
	utc(&token.CreatedAt)

	return nil
}

// FindByToken returns the token record, revoked or not; callers decide validity
func (r *refreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	query := `
		SELECT id, user_id, token, expires_at, created_at, revoked
		FROM refresh_tokens
		WHERE token = $1
	`

	refreshToken := &domain.RefreshToken{}
	err := database.Executor(ctx, r.db).QueryRowContext(ctx, query, token).Scan(
		&refreshToken.ID,
		&refreshToken.UserID,
		&refreshToken.Token,
		&refreshToken.ExpiresAt,
		&refreshToken.CreatedAt,
		&refreshToken.Revoked,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(domain.ResourceRefreshToken, "refresh token not found")
		}
		return nil, mapStoreError(fmt.Errorf("failed to find refresh token: %w", err), domain.ResourceRefreshToken)
	}
	utc(&refreshToken.ExpiresAt, &refreshToken.CreatedAt)

	return refreshToken, nil
}

// Revoke flips an unrevoked token to revoked. A token that is unknown or was already
// revoked, possibly by a concurrent caller, is NotFound, so exactly one caller wins.
func (r *refreshTokenRepository) Revoke(ctx context.Context, token string) error {
	result, err := database.Executor(ctx, r.db).ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1 AND revoked = FALSE`, token)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to revoke refresh token: %w", err), domain.ResourceRefreshToken)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return mapStoreError(err, domain.ResourceRefreshToken)
	}
	if n == 0 {
		return domain.NotFound(domain.ResourceRefreshToken, "active refresh token not found")
	}

	return nil
}

func (r *refreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := database.Executor(ctx, r.db).ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE`, userID)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to revoke refresh tokens: %w", err), domain.ResourceRefreshToken)
	}
	return nil
}
