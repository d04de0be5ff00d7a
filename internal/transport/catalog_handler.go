package transport

import (
	"context"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type (
	CategoryHandler  = CRUDHandler[*domain.Category, service.CategoryInput, service.CategoryUpdate]
	ColorHandler     = CRUDHandler[*domain.Color, service.ColorInput, service.ColorUpdate]
	SizeHandler      = CRUDHandler[*domain.Size, service.SizeInput, service.SizeUpdate]
	promotionHandler = CRUDHandler[*domain.Promotion, service.PromotionInput, service.PromotionUpdate]
)

func NewCategoryHandler(svc service.CategoryService, logger *zap.Logger) *CategoryHandler {
	return newCRUDHandler[*domain.Category, service.CategoryInput, service.CategoryUpdate](svc, domain.ResourceCategory, logger)
}

func NewColorHandler(svc service.ColorService, logger *zap.Logger) *ColorHandler {
	return newCRUDHandler[*domain.Color, service.ColorInput, service.ColorUpdate](svc, domain.ResourceColor, logger)
}

func NewSizeHandler(svc service.SizeService, logger *zap.Logger) *SizeHandler {
	return newCRUDHandler[*domain.Size, service.SizeInput, service.SizeUpdate](svc, domain.ResourceSize, logger)
}

// PromotionHandler adds activation toggles to the generic endpoints
type PromotionHandler struct {
	*promotionHandler
	promotions service.PromotionService
}

func NewPromotionHandler(svc service.PromotionService, logger *zap.Logger) *PromotionHandler {
	return &PromotionHandler{
		promotionHandler: newCRUDHandler[*domain.Promotion, service.PromotionInput, service.PromotionUpdate](svc, domain.ResourcePromotion, logger),
		promotions:       svc,
	}
}

func (h *PromotionHandler) Routes(r chi.Router) {
	h.promotionHandler.Routes(r)
	r.Patch("/{id}/activate", h.Activate)
	r.Patch("/{id}/deactivate", h.Deactivate)
}

func (h *PromotionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.promotions.Activate)
}

func (h *PromotionHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.promotions.Deactivate)
}

func (h *PromotionHandler) toggle(w http.ResponseWriter, r *http.Request, set func(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Promotion, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	promotion, err := set(r.Context(), actor(r), id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, promotion)
}
