package transport

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type WishlistHandler struct {
	wishlistService service.WishlistService
	logger          *zap.Logger
}

func NewWishlistHandler(wishlistService service.WishlistService, logger *zap.Logger) *WishlistHandler {
	return &WishlistHandler{wishlistService: wishlistService, logger: logger}
}

func (h *WishlistHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/{product_id}", h.Add)
	r.Delete("/{product_id}", h.Remove)
}

func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	page, err := h.wishlistService.List(r.Context(), actor(r), params)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, page)
}

func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "product_id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	item, err := h.wishlistService.Add(r.Context(), actor(r), productID)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, item)
}

func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "product_id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	if err := h.wishlistService.Remove(r.Context(), actor(r), productID); err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "Product removed from wishlist"})
}
