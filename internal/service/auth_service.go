package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/cache"
	"storefront/internal/database"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultAccessTokenExpiration  = 15 * time.Minute
	DefaultRefreshTokenExpiration = 7 * 24 * time.Hour
)

var errInvalidCredentials = domain.Unauthenticated("Incorrect email or password")

// AuthService issues and validates credentials
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	AdminLogin(ctx context.Context, email, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, actor *domain.User, refreshToken string) error
	LogoutAll(ctx context.Context, actor *domain.User) error
	ValidateToken(tokenString string) (*Claims, error)
	Authenticate(ctx context.Context, accessToken string) (*domain.User, error)
}

// Claims represents the JWT claims
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// TokenPair is returned by every successful login or refresh
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,notblank,max=40"`
	Email    string `json:"email" validate:"required,email,max=200"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type AuthConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type authService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	tx               database.Transactor
	cache            *cache.Service
	config           AuthConfig
	logger           *zap.Logger
	now              func() time.Time
}

// NewAuthService creates a new instance of AuthService
func NewAuthService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	tx database.Transactor,
	cacheService *cache.Service,
	config AuthConfig,
	logger *zap.Logger,
) AuthService {
	if config.AccessExpiry <= 0 {
		config.AccessExpiry = DefaultAccessTokenExpiration
	}
	if config.RefreshExpiry <= 0 {
		config.RefreshExpiry = DefaultRefreshTokenExpiration
	}
	return &authService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		tx:               tx,
		cache:            cacheService,
		config:           config,
		logger:           logger,
		now:              time.Now,
	}
}

// Register creates a user account with the user role
func (s *authService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email := normalizeEmail(input.Email)

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, domain.AlreadyExists(domain.ResourceUser, "User with email '%s' already exists.", email)
	}

	hashedPassword, err := hashPassword(input.Password)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("failed to hash password: %w", err))
	}

	user := &domain.User{
		ID:             uuid.New(),
		Name:           collapseSpaces(input.Name),
		Email:          email,
		Role:           domain.RoleUser,
		IsActive:       true,
		HashedPassword: hashedPassword,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.checkCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

// AdminLogin behaves like Login but only admits admins
func (s *authService) AdminLogin(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.checkCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, domain.NotAuthorized("Only Admins are allowed")
	}
	return s.issue(ctx, user)
}

func (s *authService) checkCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	if err := verifyPassword(user.HashedPassword, password); err != nil {
		return nil, errInvalidCredentials
	}

	if !user.IsActive {
		return nil, domain.NotAuthorized("Inactive user")
	}

	return user, nil
}

// Refresh rotates the refresh token: the presented one is revoked and a new pair issued
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair *TokenPair
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		stored, err := s.refreshTokenRepo.FindByToken(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Unauthenticated("invalid refresh token")
			}
			return err
		}
		if stored.Revoked {
			return domain.Unauthenticated("refresh token has been revoked")
		}
		if s.now().After(stored.ExpiresAt) {
			return domain.Unauthenticated("refresh token has expired")
		}

		user, err := s.userRepo.Get(ctx, stored.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Unauthenticated("User not found.")
			}
			return err
		}
		if !user.IsActive {
			return domain.Unauthenticated("Inactive user")
		}

		if err := s.refreshTokenRepo.Revoke(ctx, refreshToken); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Unauthenticated("refresh token has been revoked")
			}
			return err
		}

		pair, err = s.issue(ctx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Token refreshed")
	return pair, nil
}

// Logout revokes one refresh token of the actor. Unknown tokens are ignored.
func (s *authService) Logout(ctx context.Context, actor *domain.User, refreshToken string) error {
	if err := requireAuthenticated(actor); err != nil {
		return err
	}

	stored, err := s.refreshTokenRepo.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if stored.UserID != actor.ID {
		return domain.NotAuthorized("refresh token belongs to another user")
	}
	if stored.Revoked {
		return nil
	}

	if err := s.refreshTokenRepo.Revoke(ctx, refreshToken); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	s.logger.Info("User logged out", zap.String("user_id", actor.ID.String()))
	return nil
}

// LogoutAll invalidates every access and refresh token issued to the actor so far
func (s *authService) LogoutAll(ctx context.Context, actor *domain.User) error {
	if err := requireAuthenticated(actor); err != nil {
		return err
	}

	if err := revokeSessions(ctx, s.tx, s.userRepo, s.refreshTokenRepo, actor.ID, s.now(), nil); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, domain.ResourceUser, actor.ID)

	s.logger.Info("All tokens revoked", zap.String("user_id", actor.ID.String()))
	return nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.Unauthenticated("token expired")
		}
		return nil, domain.Unauthenticated("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil {
		return nil, domain.Unauthenticated("invalid token claims")
	}

	return claims, nil
}

// Authenticate resolves an access token to its active user. Tokens issued before
// the user's last logout-all or password change are rejected.
func (s *authService) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.ValidateToken(accessToken)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Unauthenticated("user no longer exists")
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, domain.Unauthenticated("Inactive user")
	}

	if claims.IssuedAt == nil || issuedBefore(claims.IssuedAt.Time, user.TokensValidFrom) {
		return nil, domain.Unauthenticated("token has been revoked")
	}

	return user, nil
}

func (s *authService) issue(ctx context.Context, user *domain.User) (*TokenPair, error) {
	now := s.now()

	// tokens_valid_from can sit up to a second ahead of the clock; a token issued
	// after a revocation must not predate it
	issuedAt := now
	if user.TokensValidFrom != nil && issuedAt.Before(*user.TokensValidFrom) {
		issuedAt = *user.TokensValidFrom
	}

	claims := &Claims{
		UserID: user.ID,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessExpiry)),
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("failed to sign access token: %w", err))
	}

	refreshToken := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.config.RefreshExpiry),
	}
	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return nil, err
	}

	s.logger.Info("Tokens issued", zap.String("user_id", user.ID.String()))
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken.Token,
		TokenType:    "bearer",
		ExpiresIn:    int(s.config.AccessExpiry.Seconds()),
	}, nil
}

// revokeSessions moves tokens_valid_from past now and revokes stored refresh tokens
// in one transaction. extra fields are written with the same update.
func revokeSessions(
	ctx context.Context,
	tx database.Transactor,
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	userID uuid.UUID,
	now time.Time,
	extra map[string]any,
) error {
	fields := map[string]any{"tokens_valid_from": revocationPoint(now)}
	for k, v := range extra {
		fields[k] = v
	}

	return tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := users.Update(ctx, userID, fields); err != nil {
			return err
		}
		return tokens.RevokeAllForUser(ctx, userID)
	})
}

// revocationPoint is the first whole second after now. JWT iat has second
// precision, so every token issued up to now compares strictly before it.
func revocationPoint(now time.Time) time.Time {
	return now.UTC().Truncate(time.Second).Add(time.Second)
}

// issuedBefore reports whether a token issued at issuedAt predates validFrom.
// JWT timestamps have second precision, so the comparison is too.
func issuedBefore(issuedAt time.Time, validFrom *time.Time) bool {
	if validFrom == nil {
		return false
	}
	return issuedAt.Truncate(time.Second).Before(validFrom.Truncate(time.Second))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
