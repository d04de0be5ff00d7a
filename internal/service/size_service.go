package service

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/cache"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SizeService interface {
	Get(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Size, error)
	List(ctx context.Context, actor *domain.User, params repository.ListParams) (domain.Page[*domain.Size], error)
	Create(ctx context.Context, actor *domain.User, input SizeInput) (*domain.Size, error)
	Update(ctx context.Context, actor *domain.User, id uuid.UUID, input SizeUpdate) (*domain.Size, error)
	Delete(ctx context.Context, actor *domain.User, id uuid.UUID) error
}

// Size names are stored upper case: "xl" and "XL" are the same size
type SizeInput struct {
	Name string `json:"name" validate:"required,sizename,max=20"`
}

type SizeUpdate struct {
	Name *string `json:"name,omitempty" validate:"omitempty,sizename,max=20"`
}

type sizeService struct {
	sizeRepo repository.SizeRepository
	cache    *cache.Service
	logger   *zap.Logger
}

// NewSizeService creates a new instance of SizeService
func NewSizeService(sizeRepo repository.SizeRepository, cacheService *cache.Service, logger *zap.Logger) SizeService {
	return &sizeService{sizeRepo: sizeRepo, cache: cacheService, logger: logger}
}

func (s *sizeService) Get(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Size, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}

	return cache.GetOrSet(ctx, s.cache, domain.ResourceSize, id, func(ctx context.Context) (*domain.Size, error) {
		return s.sizeRepo.Get(ctx, id)
	}, s.cache.TTL())
}

func (s *sizeService) List(ctx context.Context, actor *domain.User, params repository.ListParams) (domain.Page[*domain.Size], error) {
	if err := requireAuthenticated(actor); err != nil {
		return domain.Page[*domain.Size]{}, err
	}
	if err := checkPage(params); err != nil {
		return domain.Page[*domain.Size]{}, err
	}

	sizes, total, err := s.sizeRepo.List(ctx, params)
	if err != nil {
		return domain.Page[*domain.Size]{}, err
	}
	return domain.NewPage(sizes, total, params.Skip, params.Limit), nil
}

func (s *sizeService) Create(ctx context.Context, actor *domain.User, input SizeInput) (*domain.Size, error) {
	if err := requireAdmin(actor, "create", domain.ResourceSize); err != nil {
		return nil, err
	}

	size := &domain.Size{ID: uuid.New(), Name: strings.ToUpper(strings.TrimSpace(input.Name))}
	if err := s.checkName(ctx, uuid.Nil, size.Name); err != nil {
		return nil, err
	}

	if err := s.sizeRepo.Create(ctx, size); err != nil {
		return nil, err
	}

	s.logger.Info("Size created", zap.String("size_id", size.ID.String()), zap.String("name", size.Name))
	return size, nil
}

func (s *sizeService) Update(ctx context.Context, actor *domain.User, id uuid.UUID, input SizeUpdate) (*domain.Size, error) {
	if err := requireAdmin(actor, "update", domain.ResourceSize); err != nil {
		return nil, err
	}
	if input.Name == nil {
		return nil, domain.Validation("At least one field must be provided for update")
	}

	existing, err := s.sizeRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	name := strings.ToUpper(strings.TrimSpace(*input.Name))
	if name == existing.Name {
		return existing, nil
	}
	if err := s.checkName(ctx, id, name); err != nil {
		return nil, err
	}

	updated, err := s.sizeRepo.Update(ctx, id, map[string]any{"name": name})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, domain.ResourceSize, id)

	s.logger.Info("Size updated", zap.String("size_id", id.String()), zap.String("name", name))
	return updated, nil
}

// Delete fails with a validation error while variants still use the size
func (s *sizeService) Delete(ctx context.Context, actor *domain.User, id uuid.UUID) error {
	if err := requireAdmin(actor, "delete", domain.ResourceSize); err != nil {
		return err
	}

	if _, err := s.sizeRepo.Get(ctx, id); err != nil {
		return err
	}

	if err := s.sizeRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, domain.ResourceSize, id)

	s.logger.Warn("Size deleted", zap.String("size_id", id.String()), zap.String("deleter_id", actor.ID.String()))
	return nil
}

func (s *sizeService) checkName(ctx context.Context, selfID uuid.UUID, name string) error {
	other, err := s.sizeRepo.GetByName(ctx, name)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if other != nil && other.ID != selfID {
		return domain.AlreadyExists(domain.ResourceSize, "Size already exists with %s", name)
	}
	return nil
}
