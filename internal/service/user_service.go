package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/cache"
	"storefront/internal/database"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserService defines the interface for account management
type UserService interface {
	Get(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.User, error)
	List(ctx context.Context, actor *domain.User, params repository.ListParams) (domain.Page[*domain.User], error)
	Update(ctx context.Context, actor *domain.User, id uuid.UUID, input UserUpdate) (*domain.User, error)
	ChangePassword(ctx context.Context, actor *domain.User, currentPassword, newPassword string) error
	Deactivate(ctx context.Context, actor *domain.User) error
	Delete(ctx context.Context, actor *domain.User, id uuid.UUID) error
}

// UserUpdate carries the profile fields a user may change; nil fields are left alone
type UserUpdate struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,notblank,max=40"`
	Email *string `json:"email,omitempty" validate:"omitempty,email,max=200"`
}

func (u UserUpdate) fields() map[string]any {
	fields := map[string]any{}
	if u.Name != nil {
		fields["name"] = collapseSpaces(*u.Name)
	}
	if u.Email != nil {
		fields["email"] = normalizeEmail(*u.Email)
	}
	return fields
}

type userService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	tx               database.Transactor
	cache            *cache.Service
	logger           *zap.Logger
	now              func() time.Time
}

// NewUserService creates a new instance of UserService
func NewUserService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	tx database.Transactor,
	cacheService *cache.Service,
	logger *zap.Logger,
) UserService {
	return &userService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		tx:               tx,
		cache:            cacheService,
		logger:           logger,
		now:              time.Now,
	}
}

func (s *userService) load(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return cache.GetOrSet(ctx, s.cache, domain.ResourceUser, id, func(ctx context.Context) (*domain.User, error) {
		return s.userRepo.Get(ctx, id)
	}, s.cache.TTL())
}

// Get returns a user profile to its owner or an admin
func (s *userService) Get(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.User, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := requireSelfOrAdmin(actor, user.ID, "view", domain.ResourceUser); err != nil {
		return nil, err
	}

	s.logger.Debug("User retrieved", zap.String("user_id", id.String()), zap.String("actor_id", actor.ID.String()))
	return user, nil
}

func (s *userService) List(ctx context.Context, actor *domain.User, params repository.ListParams) (domain.Page[*domain.User], error) {
	if err := requireAdmin(actor, "list", "users"); err != nil {
		return domain.Page[*domain.User]{}, err
	}
	if err := checkPage(params); err != nil {
		return domain.Page[*domain.User]{}, err
	}

	users, total, err := s.userRepo.List(ctx, params)
	if err != nil {
		return domain.Page[*domain.User]{}, err
	}

	s.logger.Info("User list retrieved", zap.String("actor_id", actor.ID.String()), zap.Int("count", len(users)))
	return domain.NewPage(users, total, params.Skip, params.Limit), nil
}

// Update changes name and email. Users may only update themselves.
func (s *userService) Update(ctx context.Context, actor *domain.User, id uuid.UUID, input UserUpdate) (*domain.User, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor.ID != existing.ID {
		return nil, domain.NotAuthorized("You are not authorized to update this user.")
	}

	fields := input.fields()
	if len(fields) == 0 {
		return nil, domain.Validation("At least one field must be provided for update")
	}

	if email, ok := fields["email"].(string); ok && email != existing.Email {
		other, err := s.userRepo.GetByEmail(ctx, email)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if other != nil && other.ID != existing.ID {
			return nil, domain.AlreadyExists(domain.ResourceUser, "User with email '%s' already exists.", email)
		}
	}

	updated, err := s.userRepo.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, domain.ResourceUser, id)

	s.logger.Info("User updated",
		zap.String("user_id", id.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.Strings("updated_fields", fieldNames(fields)),
	)
	return updated, nil
}

// ChangePassword verifies the current password, stores the new hash and ends every session
func (s *userService) ChangePassword(ctx context.Context, actor *domain.User, currentPassword, newPassword string) error {
	if err := requireAuthenticated(actor); err != nil {
		return err
	}

	user, err := s.userRepo.Get(ctx, actor.ID)
	if err != nil {
		return err
	}

	if err := verifyPassword(user.HashedPassword, currentPassword); err != nil {
		return domain.Unauthenticated("Incorrect current password.")
	}
	if currentPassword == newPassword {
		return domain.Validation("New password must differ from the current password")
	}

	hashed, err := hashPassword(newPassword)
	if err != nil {
		return domain.Internal(fmt.Errorf("failed to hash password: %w", err))
	}

	err = revokeSessions(ctx, s.tx, s.userRepo, s.refreshTokenRepo, user.ID, s.now(), map[string]any{"hashed_password": hashed})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, domain.ResourceUser, user.ID)

	s.logger.Info("Password changed", zap.String("user_id", user.ID.String()))
	return nil
}

// Deactivate disables the actor's account and ends its sessions
func (s *userService) Deactivate(ctx context.Context, actor *domain.User) error {
	if err := requireAuthenticated(actor); err != nil {
		return err
	}

	err := revokeSessions(ctx, s.tx, s.userRepo, s.refreshTokenRepo, actor.ID, s.now(), map[string]any{"is_active": false})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, domain.ResourceUser, actor.ID)

	s.logger.Warn("User deactivated", zap.String("user_id", actor.ID.String()))
	return nil
}

// Delete permanently removes an account; addresses, tokens and wishlist rows cascade
func (s *userService) Delete(ctx context.Context, actor *domain.User, id uuid.UUID) error {
	if err := requireAuthenticated(actor); err != nil {
		return err
	}

	user, err := s.userRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := requireSelfOrAdmin(actor, user.ID, "delete", domain.ResourceUser); err != nil {
		return err
	}

	if err := s.userRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, domain.ResourceUser, id)

	s.logger.Warn("User permanently deleted",
		zap.String("deleted_user_id", id.String()),
		zap.String("deleter_id", actor.ID.String()),
	)
	return nil
}
