package transport

import (
	"context"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// crudService is the shape shared by the catalog and promotion services
type crudService[T, C, U any] interface {
	Get(ctx context.Context, actor *domain.User, id uuid.UUID) (T, error)
	List(ctx context.Context, actor *domain.User, params repository.ListParams) (domain.Page[T], error)
	Create(ctx context.Context, actor *domain.User, input C) (T, error)
	Update(ctx context.Context, actor *domain.User, id uuid.UUID, input U) (T, error)
	Delete(ctx context.Context, actor *domain.User, id uuid.UUID) error
}

// CRUDHandler serves GET /all, GET /{id}, POST /, PATCH /{id} and DELETE /{id}
// for one resource. Authorization is left to the service.
type CRUDHandler[T, C, U any] struct {
	service  crudService[T, C, U]
	resource string
	logger   *zap.Logger
}

func newCRUDHandler[T, C, U any](svc crudService[T, C, U], resource string, logger *zap.Logger) *CRUDHandler[T, C, U] {
	return &CRUDHandler[T, C, U]{service: svc, resource: resource, logger: logger}
}

// Routes mounts the five endpoints on r
func (h *CRUDHandler[T, C, U]) Routes(r chi.Router) {
	r.Get("/all", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/", h.Create)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

func (h *CRUDHandler[T, C, U]) List(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	page, err := h.service.List(r.Context(), actor(r), params)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, page)
}

func (h *CRUDHandler[T, C, U]) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	item, err := h.service.Get(r.Context(), actor(r), id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, item)
}

func (h *CRUDHandler[T, C, U]) Create(w http.ResponseWriter, r *http.Request) {
	var input C
	if !decodeBody(w, r, h.logger, &input) {
		return
	}

	item, err := h.service.Create(r.Context(), actor(r), input)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, item)
}

func (h *CRUDHandler[T, C, U]) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	var input U
	if !decodeBody(w, r, h.logger, &input) {
		return
	}

	item, err := h.service.Update(r.Context(), actor(r), id, input)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, item)
}

func (h *CRUDHandler[T, C, U]) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	if err := h.service.Delete(r.Context(), actor(r), id); err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Resource deleted", zap.String("resource", h.resource), zap.String("id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: h.resource + " deleted successfully"})
}
