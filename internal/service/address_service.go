package service

import (
	"context"

	"storefront/internal/cache"
	"storefront/internal/database"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddressService manages user addresses. Every mutation keeps exactly one default
// address per user who has any, and runs in a single transaction.
type AddressService interface {
	Get(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Address, error)
	List(ctx context.Context, actor *domain.User, userID uuid.UUID, params repository.ListParams) (domain.Page[*domain.Address], error)
	Create(ctx context.Context, actor *domain.User, input AddressInput) (*domain.Address, error)
	Update(ctx context.Context, actor *domain.User, id uuid.UUID, input AddressUpdate) (*domain.Address, error)
	Delete(ctx context.Context, actor *domain.User, id uuid.UUID) error
}

type AddressInput struct {
	StreetAddress string `json:"street_address" validate:"required,notblank,max=200"`
	City          string `json:"city" validate:"required,notblank,max=50"`
	State         string `json:"state" validate:"required,notblank,max=50"`
	ZipCode       string `json:"zip_code" validate:"required,notblank,max=20"`
	IsDefault     bool   `json:"is_default"`
}

type AddressUpdate struct {
	StreetAddress *string `json:"street_address,omitempty" validate:"omitempty,notblank,max=200"`
	City          *string `json:"city,omitempty" validate:"omitempty,notblank,max=50"`
	State         *string `json:"state,omitempty" validate:"omitempty,notblank,max=50"`
	ZipCode       *string `json:"zip_code,omitempty" validate:"omitempty,notblank,max=20"`
	IsDefault     *bool   `json:"is_default,omitempty"`
}

func (u AddressUpdate) fields() map[string]any {
	fields := map[string]any{}
	for column, value := range map[string]*string{
		"street_address": u.StreetAddress,
		"city":           u.City,
		"state":          u.State,
		"zip_code":       u.ZipCode,
	} {
		if value != nil {
			fields[column] = collapseSpaces(*value)
		}
	}
	if u.IsDefault != nil {
		fields["is_default"] = *u.IsDefault
	}
	return fields
}

type addressService struct {
	addressRepo repository.AddressRepository
	tx          database.Transactor
	cache       *cache.Service
	logger      *zap.Logger
}

// NewAddressService creates a new instance of AddressService
func NewAddressService(
	addressRepo repository.AddressRepository,
	tx database.Transactor,
	cacheService *cache.Service,
	logger *zap.Logger,
) AddressService {
	return &addressService{
		addressRepo: addressRepo,
		tx:          tx,
		cache:       cacheService,
		logger:      logger,
	}
}

func (s *addressService) Get(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Address, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}

	address, err := cache.GetOrSet(ctx, s.cache, domain.ResourceAddress, id, func(ctx context.Context) (*domain.Address, error) {
		return s.addressRepo.Get(ctx, id)
	}, s.cache.TTL())
	if err != nil {
		return nil, err
	}

	if err := requireSelfOrAdmin(actor, address.UserID, "fetch", domain.ResourceAddress); err != nil {
		return nil, err
	}

	s.logger.Debug("Address retrieved", zap.String("address_id", id.String()), zap.String("actor_id", actor.ID.String()))
	return address, nil
}

// List pages through the addresses of userID
func (s *addressService) List(ctx context.Context, actor *domain.User, userID uuid.UUID, params repository.ListParams) (domain.Page[*domain.Address], error) {
	if err := requireSelfOrAdmin(actor, userID, "list", "addresses"); err != nil {
		return domain.Page[*domain.Address]{}, err
	}
	if err := checkPage(params); err != nil {
		return domain.Page[*domain.Address]{}, err
	}

	params = withFilter(params, "user_id", userID.String())
	addresses, total, err := s.addressRepo.List(ctx, params)
	if err != nil {
		return domain.Page[*domain.Address]{}, err
	}

	s.logger.Info("Address list retrieved", zap.String("actor_id", actor.ID.String()), zap.Int("count", len(addresses)))
	return domain.NewPage(addresses, total, params.Skip, params.Limit), nil
}

// Create adds an address for the actor. A default address replaces the current
// default; the first address of a user always becomes the default.
func (s *addressService) Create(ctx context.Context, actor *domain.User, input AddressInput) (*domain.Address, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}

	address := &domain.Address{
		ID:            uuid.New(),
		UserID:        actor.ID,
		StreetAddress: collapseSpaces(input.StreetAddress),
		City:          collapseSpaces(input.City),
		State:         collapseSpaces(input.State),
		ZipCode:       collapseSpaces(input.ZipCode),
		IsDefault:     input.IsDefault,
	}

	var cleared []uuid.UUID
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if address.IsDefault {
			var err error
			if cleared, err = s.addressRepo.UnsetDefaultForUser(ctx, actor.ID, uuid.Nil); err != nil {
				return err
			}
		} else {
			count, err := s.addressRepo.CountByUser(ctx, actor.ID)
			if err != nil {
				return err
			}
			if count == 0 {
				s.logger.Info("Setting first address as default", zap.String("user_id", actor.ID.String()))
				address.IsDefault = true
			}
		}
		return s.addressRepo.Create(ctx, address)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cleared...)

	s.logger.Info("Address created", zap.String("user_id", actor.ID.String()), zap.String("address_id", address.ID.String()))
	return address, nil
}

func (s *addressService) Update(ctx context.Context, actor *domain.User, id uuid.UUID, input AddressUpdate) (*domain.Address, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}

	fields := input.fields()
	if len(fields) == 0 {
		return nil, domain.Validation("At least one field must be provided for update")
	}

	var updated *domain.Address
	touched := []uuid.UUID{id}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.addressRepo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := requireSelfOrAdmin(actor, existing.UserID, "update", domain.ResourceAddress); err != nil {
			return err
		}

		makeDefault, changesDefault := fields["is_default"].(bool)
		switch {
		case changesDefault && makeDefault && !existing.IsDefault:
			cleared, err := s.addressRepo.UnsetDefaultForUser(ctx, existing.UserID, id)
			if err != nil {
				return err
			}
			touched = append(touched, cleared...)
		case changesDefault && !makeDefault && existing.IsDefault:
			count, err := s.addressRepo.CountByUser(ctx, existing.UserID)
			if err != nil {
				return err
			}
			if count <= 1 {
				return domain.Validation("Cannot unset the default status of your only address.")
			}
		}

		updated, err = s.addressRepo.Update(ctx, id, fields)
		if err != nil {
			return err
		}

		if changesDefault && !makeDefault && existing.IsDefault {
			next, err := s.promoteOldest(ctx, existing.UserID, id)
			if err != nil {
				return err
			}
			touched = append(touched, next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, touched...)

	s.logger.Info("Address updated",
		zap.String("address_id", id.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.Strings("updated_fields", fieldNames(fields)),
	)
	return updated, nil
}

// Delete removes an address. Removing the default hands the flag to the oldest
// remaining address; a user's only address cannot be removed.
func (s *addressService) Delete(ctx context.Context, actor *domain.User, id uuid.UUID) error {
	if err := requireAuthenticated(actor); err != nil {
		return err
	}

	touched := []uuid.UUID{id}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.addressRepo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := requireSelfOrAdmin(actor, existing.UserID, "delete", domain.ResourceAddress); err != nil {
			return err
		}

		if existing.IsDefault {
			count, err := s.addressRepo.CountByUser(ctx, existing.UserID)
			if err != nil {
				return err
			}
			if count <= 1 {
				return domain.Validation("Cannot delete your only address, especially if it's the default.")
			}
		}

		if err := s.addressRepo.Delete(ctx, id); err != nil {
			return err
		}

		if existing.IsDefault {
			next, err := s.promoteOldest(ctx, existing.UserID, id)
			if err != nil {
				return err
			}
			touched = append(touched, next)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, touched...)

	s.logger.Warn("Address permanently deleted", zap.String("address_id", id.String()), zap.String("deleter_id", actor.ID.String()))
	return nil
}

// invalidate evicts ids from the cache; callers run it after commit
func (s *addressService) invalidate(ctx context.Context, ids ...uuid.UUID) {
	for _, id := range ids {
		s.cache.Invalidate(ctx, domain.ResourceAddress, id)
	}
}

// promoteOldest makes the earliest created address of userID other than excludeID the default
func (s *addressService) promoteOldest(ctx context.Context, userID, excludeID uuid.UUID) (uuid.UUID, error) {
	next, err := s.addressRepo.OldestForUser(ctx, userID, excludeID)
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := s.addressRepo.Update(ctx, next.ID, map[string]any{"is_default": true}); err != nil {
		return uuid.Nil, err
	}
	s.logger.Info("Promoted address to default", zap.String("address_id", next.ID.String()), zap.String("user_id", userID.String()))
	return next.ID, nil
}
