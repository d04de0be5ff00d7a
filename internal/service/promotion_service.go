package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"storefront/internal/cache"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PromotionService manages discount codes. Every operation, reads included, is admin-only.
type PromotionService interface {
	Get(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Promotion, error)
	List(ctx context.Context, actor *domain.User, params repository.ListParams) (domain.Page[*domain.Promotion], error)
	Create(ctx context.Context, actor *domain.User, input PromotionInput) (*domain.Promotion, error)
	Update(ctx context.Context, actor *domain.User, id uuid.UUID, input PromotionUpdate) (*domain.Promotion, error)
	Activate(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Promotion, error)
	Deactivate(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Promotion, error)
	Delete(ctx context.Context, actor *domain.User, id uuid.UUID) error
}

var promoCodePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,50}$`)

type PromotionInput struct {
	Code         string              `json:"code" validate:"required,promocode"`
	DiscountType domain.DiscountType `json:"discount_type" validate:"required,oneof=percentage fixed"`
	Value        int                 `json:"value" validate:"gte=1"`
	ExpiresAt    time.Time           `json:"expires_at" validate:"required"`
}

type PromotionUpdate struct {
	Code         *string              `json:"code,omitempty" validate:"omitempty,promocode"`
	DiscountType *domain.DiscountType `json:"discount_type,omitempty" validate:"omitempty,oneof=percentage fixed"`
	Value        *int                 `json:"value,omitempty" validate:"omitempty,gte=1"`
	ExpiresAt    *time.Time           `json:"expires_at,omitempty"`
}

func (u PromotionUpdate) empty() bool {
	return u.Code == nil && u.DiscountType == nil && u.Value == nil && u.ExpiresAt == nil
}

// NormalizePromoCode upper-cases and trims a code; the result must match promoCodePattern
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidPromoCode reports whether code, once normalized, is an acceptable promotion code
func ValidPromoCode(code string) bool {
	return promoCodePattern.MatchString(NormalizePromoCode(code))
}

func checkDiscountValue(discountType domain.DiscountType, value int) error {
	switch discountType {
	case domain.DiscountTypePercentage:
		if value < 1 || value > 100 {
			return domain.Validation("Percentage value must be between 1 and 100.")
		}
	case domain.DiscountTypeFixed:
		if value < 1 {
			return domain.Validation("Fixed discount value must be positive.")
		}
	default:
		return domain.Validation("Unknown discount type '%s'.", discountType)
	}
	return nil
}

type promotionService struct {
	promotionRepo repository.PromotionRepository
	cache         *cache.Service
	logger        *zap.Logger
	now           func() time.Time
}

// NewPromotionService creates a new instance of PromotionService
func NewPromotionService(promotionRepo repository.PromotionRepository, cacheService *cache.Service, logger *zap.Logger) PromotionService {
	return &promotionService{
		promotionRepo: promotionRepo,
		cache:         cacheService,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *promotionService) Get(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Promotion, error) {
	if err := requireAdmin(actor, "fetch", domain.ResourcePromotion); err != nil {
		return nil, err
	}

	promotion, err := cache.GetOrSet(ctx, s.cache, domain.ResourcePromotion, id, func(ctx context.Context) (*domain.Promotion, error) {
		return s.promotionRepo.Get(ctx, id)
	}, s.cache.TTL())
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Promotion retrieved", zap.String("promotion_id", id.String()), zap.String("actor_id", actor.ID.String()))
	return promotion, nil
}

func (s *promotionService) List(ctx context.Context, actor *domain.User, params repository.ListParams) (domain.Page[*domain.Promotion], error) {
	if err := requireAdmin(actor, "list", domain.ResourcePromotion); err != nil {
		return domain.Page[*domain.Promotion]{}, err
	}
	if err := checkPage(params); err != nil {
		return domain.Page[*domain.Promotion]{}, err
	}

	promotions, total, err := s.promotionRepo.List(ctx, params)
	if err != nil {
		return domain.Page[*domain.Promotion]{}, err
	}

	s.logger.Info("Promotion list retrieved", zap.String("actor_id", actor.ID.String()), zap.Int("count", len(promotions)))
	return domain.NewPage(promotions, total, params.Skip, params.Limit), nil
}

func (s *promotionService) Create(ctx context.Context, actor *domain.User, input PromotionInput) (*domain.Promotion, error) {
	if err := requireAdmin(actor, "create", domain.ResourcePromotion); err != nil {
		return nil, err
	}

	promotion := &domain.Promotion{
		ID:           uuid.New(),
		Code:         NormalizePromoCode(input.Code),
		Status:       domain.PromotionStatusActive,
		DiscountType: input.DiscountType,
		Value:        input.Value,
		ExpiresAt:    input.ExpiresAt.UTC(),
	}

	if !promoCodePattern.MatchString(promotion.Code) {
		return nil, domain.Validation("Code must contain only uppercase letters, numbers, underscores, or hyphens.")
	}
	if err := checkDiscountValue(promotion.DiscountType, promotion.Value); err != nil {
		return nil, err
	}
	if err := s.checkExpiry(promotion.ExpiresAt); err != nil {
		return nil, err
	}
	if err := s.checkCode(ctx, uuid.Nil, promotion.Code); err != nil {
		return nil, err
	}

	if err := s.promotionRepo.Create(ctx, promotion); err != nil {
		return nil, err
	}

	s.logger.Info("Promotion created", zap.String("promotion_id", promotion.ID.String()), zap.String("code", promotion.Code))
	return promotion, nil
}

// Update validates the merged promotion, so a new value is checked against the
// stored discount type when only one of them changes.
func (s *promotionService) Update(ctx context.Context, actor *domain.User, id uuid.UUID, input PromotionUpdate) (*domain.Promotion, error) {
	if err := requireAdmin(actor, "update", domain.ResourcePromotion); err != nil {
		return nil, err
	}
	if input.empty() {
		return nil, domain.Validation("At least one field must be provided for update")
	}

	existing, err := s.promotionRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}

	if input.Code != nil {
		code := NormalizePromoCode(*input.Code)
		if !promoCodePattern.MatchString(code) {
			return nil, domain.Validation("Code must contain only uppercase letters, numbers, underscores, or hyphens.")
		}
		if code != existing.Code {
			if err := s.checkCode(ctx, id, code); err != nil {
				return nil, err
			}
			fields["code"] = code
		}
	}

	discountType, value := existing.DiscountType, existing.Value
	if input.DiscountType != nil {
		discountType = *input.DiscountType
		fields["discount_type"] = string(discountType)
	}
	if input.Value != nil {
		value = *input.Value
		fields["value"] = value
	}
	if input.DiscountType != nil || input.Value != nil {
		if err := checkDiscountValue(discountType, value); err != nil {
			return nil, err
		}
	}

	if input.ExpiresAt != nil {
		expiresAt := input.ExpiresAt.UTC()
		if err := s.checkExpiry(expiresAt); err != nil {
			return nil, err
		}
		fields["expires_at"] = expiresAt
	}

	if len(fields) == 0 {
		return existing, nil
	}

	updated, err := s.promotionRepo.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, domain.ResourcePromotion, id)

	s.logger.Info("Promotion updated",
		zap.String("promotion_id", id.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.Strings("updated_fields", fieldNames(fields)),
	)
	return updated, nil
}

func (s *promotionService) Activate(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Promotion, error) {
	return s.setStatus(ctx, actor, id, domain.PromotionStatusActive, "activate")
}

func (s *promotionService) Deactivate(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Promotion, error) {
	return s.setStatus(ctx, actor, id, domain.PromotionStatusInactive, "deactivate")
}

func (s *promotionService) setStatus(ctx context.Context, actor *domain.User, id uuid.UUID, status domain.PromotionStatus, action string) (*domain.Promotion, error) {
	if err := requireAdmin(actor, action, domain.ResourcePromotion); err != nil {
		return nil, err
	}

	existing, err := s.promotionRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == status {
		return nil, domain.Validation("Promotion is already %s.", status)
	}

	updated, err := s.promotionRepo.Update(ctx, id, map[string]any{"status": string(status)})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, domain.ResourcePromotion, id)

	s.logger.Info("Promotion status changed",
		zap.String("promotion_id", id.String()),
		zap.String("status", string(status)),
		zap.String("actor_id", actor.ID.String()),
	)
	return updated, nil
}

func (s *promotionService) Delete(ctx context.Context, actor *domain.User, id uuid.UUID) error {
	if err := requireAdmin(actor, "delete", domain.ResourcePromotion); err != nil {
		return err
	}

	existing, err := s.promotionRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.promotionRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, domain.ResourcePromotion, id)

	s.logger.Warn("Promotion permanently deleted",
		zap.String("promotion_id", id.String()),
		zap.String("code", existing.Code),
		zap.String("deleter_id", actor.ID.String()),
	)
	return nil
}

func (s *promotionService) checkExpiry(expiresAt time.Time) error {
	if !expiresAt.After(s.now()) {
		return domain.Validation("Expiry date must be in the future.")
	}
	return nil
}

func (s *promotionService) checkCode(ctx context.Context, selfID uuid.UUID, code string) error {
	other, err := s.promotionRepo.GetByCode(ctx, code)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if other != nil && other.ID != selfID {
		return domain.AlreadyExists(domain.ResourcePromotion, "A promotion with the code '%s' already exists.", code)
	}
	return nil
}
