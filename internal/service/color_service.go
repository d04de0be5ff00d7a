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

type ColorService interface {
	Get(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Color, error)
	List(ctx context.Context, actor *domain.User, params repository.ListParams) (domain.Page[*domain.Color], error)
	Create(ctx context.Context, actor *domain.User, input ColorInput) (*domain.Color, error)
	Update(ctx context.Context, actor *domain.User, id uuid.UUID, input ColorUpdate) (*domain.Color, error)
	Delete(ctx context.Context, actor *domain.User, id uuid.UUID) error
}

type ColorInput struct {
	Name    string `json:"name" validate:"required,colorname,max=50"`
	HexCode string `json:"hex_code" validate:"required,hexcode"`
}

type ColorUpdate struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,colorname,max=50"`
	HexCode *string `json:"hex_code,omitempty" validate:"omitempty,hexcode"`
}

func normalizeHex(hex string) string {
	return strings.ToUpper(strings.TrimSpace(hex))
}

type colorService struct {
	colorRepo repository.ColorRepository
	cache     *cache.Service
	logger    *zap.Logger
}

// NewColorService creates a new instance of ColorService
func NewColorService(colorRepo repository.ColorRepository, cacheService *cache.Service, logger *zap.Logger) ColorService {
	return &colorService{colorRepo: colorRepo, cache: cacheService, logger: logger}
}

func (s *colorService) Get(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Color, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}

	return cache.GetOrSet(ctx, s.cache, domain.ResourceColor, id, func(ctx context.Context) (*domain.Color, error) {
		return s.colorRepo.Get(ctx, id)
	}, s.cache.TTL())
}

func (s *colorService) List(ctx context.Context, actor *domain.User, params repository.ListParams) (domain.Page[*domain.Color], error) {
	if err := requireAuthenticated(actor); err != nil {
		return domain.Page[*domain.Color]{}, err
	}
	if err := checkPage(params); err != nil {
		return domain.Page[*domain.Color]{}, err
	}

	colors, total, err := s.colorRepo.List(ctx, params)
	if err != nil {
		return domain.Page[*domain.Color]{}, err
	}
	return domain.NewPage(colors, total, params.Skip, params.Limit), nil
}

func (s *colorService) Create(ctx context.Context, actor *domain.User, input ColorInput) (*domain.Color, error) {
	if err := requireAdmin(actor, "create", domain.ResourceColor); err != nil {
		return nil, err
	}

	color := &domain.Color{
		ID:      uuid.New(),
		Name:    collapseSpaces(input.Name),
		HexCode: normalizeHex(input.HexCode),
	}

	if err := s.checkConflicts(ctx, uuid.Nil, color.Name, color.HexCode); err != nil {
		return nil, err
	}

	if err := s.colorRepo.Create(ctx, color); err != nil {
		return nil, err
	}

	s.logger.Info("Color created", zap.String("color_id", color.ID.String()))
	return color, nil
}

func (s *colorService) Update(ctx context.Context, actor *domain.User, id uuid.UUID, input ColorUpdate) (*domain.Color, error) {
	if err := requireAdmin(actor, "update", domain.ResourceColor); err != nil {
		return nil, err
	}
	if input.Name == nil && input.HexCode == nil {
		return nil, domain.Validation("At least one field must be provided for update")
	}

	existing, err := s.colorRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	name, hex := "", ""
	if input.Name != nil {
		if n := collapseSpaces(*input.Name); n != existing.Name {
			name = n
			fields["name"] = n
		}
	}
	if input.HexCode != nil {
		if h := normalizeHex(*input.HexCode); h != existing.HexCode {
			hex = h
			fields["hex_code"] = h
		}
	}
	if len(fields) == 0 {
		return existing, nil
	}

	if err := s.checkConflicts(ctx, id, name, hex); err != nil {
		return nil, err
	}

	updated, err := s.colorRepo.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, domain.ResourceColor, id)

	s.logger.Info("Color updated", zap.String("color_id", id.String()), zap.Strings("updated_fields", fieldNames(fields)))
	return updated, nil
}

// Delete fails with a validation error while variants still use the color
func (s *colorService) Delete(ctx context.Context, actor *domain.User, id uuid.UUID) error {
	if err := requireAdmin(actor, "delete", domain.ResourceColor); err != nil {
		return err
	}

	if _, err := s.colorRepo.Get(ctx, id); err != nil {
		return err
	}

	if err := s.colorRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, domain.ResourceColor, id)

	s.logger.Warn("Color deleted", zap.String("color_id", id.String()), zap.String("deleter_id", actor.ID.String()))
	return nil
}

// checkConflicts skips empty name or hex values
func (s *colorService) checkConflicts(ctx context.Context, selfID uuid.UUID, name, hex string) error {
	if name != "" {
		other, err := s.colorRepo.GetByName(ctx, name)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if other != nil && other.ID != selfID {
			return domain.AlreadyExists(domain.ResourceColor, "Color already exists with %s", name)
		}
	}
	if hex != "" {
		other, err := s.colorRepo.GetByHexCode(ctx, hex)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if other != nil && other.ID != selfID {
			return domain.AlreadyExists(domain.ResourceColor, "Color already exists with %s", hex)
		}
	}
	return nil
}
