package transport

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProductHandler serves products together with their images and variants
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{productService: productService, logger: logger}
}

func (h *ProductHandler) Routes(r chi.Router) {
	r.Get("/all", h.List)
	r.Post("/", h.Create)

	r.Get("/images/{image_id}", h.GetImage)
	r.Delete("/images/{image_id}", h.DeleteImage)
	r.Get("/variants/{variant_id}", h.GetVariant)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Delete("/delete", h.SoftDelete)
		r.Post("/images", h.AddImage)
		r.Get("/variants", h.ListVariants)
		r.Post("/variants", h.AddVariant)
		r.Patch("/variants/{variant_id}", h.UpdateVariant)
		r.Delete("/variants/{variant_id}", h.DeleteVariant)
	})
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	page, err := h.productService.List(r.Context(), actor(r), params)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, page)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	product, err := h.productService.Get(r.Context(), actor(r), id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Create stores a product with its images and variants in one transaction
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.ProductInput
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	product, err := h.productService.Create(r.Context(), actor(r), req)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	var req service.ProductUpdate
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	product, err := h.productService.Update(r.Context(), actor(r), id, req)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// SoftDelete marks the product inactive
func (h *ProductHandler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	if err := h.productService.SoftDelete(r.Context(), actor(r), id); err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "Product deactivated successfully"})
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	if err := h.productService.Delete(r.Context(), actor(r), id); err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "Product deleted successfully"})
}

func (h *ProductHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "image_id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	image, err := h.productService.GetImage(r.Context(), actor(r), id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, image)
}

func (h *ProductHandler) AddImage(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	var req service.ImageInput
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	image, err := h.productService.AddImage(r.Context(), actor(r), productID, req)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, image)
}

func (h *ProductHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "image_id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	if err := h.productService.DeleteImage(r.Context(), actor(r), id); err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "Image deleted successfully"})
}

func (h *ProductHandler) GetVariant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "variant_id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	variant, err := h.productService.GetVariant(r.Context(), actor(r), id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, variant)
}

func (h *ProductHandler) ListVariants(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	params, err := parseListParams(r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	page, err := h.productService.ListVariants(r.Context(), actor(r), productID, params)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, page)
}

func (h *ProductHandler) AddVariant(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	var req service.VariantInput
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	variant, err := h.productService.AddVariant(r.Context(), actor(r), productID, req)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, variant)
}

func (h *ProductHandler) UpdateVariant(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	variantID, err := pathID(r, "variant_id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	var req service.VariantUpdate
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	variant, err := h.productService.UpdateVariant(r.Context(), actor(r), productID, variantID, req)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, variant)
}

func (h *ProductHandler) DeleteVariant(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	variantID, err := pathID(r, "variant_id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	if err := h.productService.DeleteVariant(r.Context(), actor(r), productID, variantID); err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "Variant deleted successfully"})
}
