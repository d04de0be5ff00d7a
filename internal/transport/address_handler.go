package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AddressHandler struct {
	addressService service.AddressService
	logger         *zap.Logger
}

func NewAddressHandler(addressService service.AddressService, logger *zap.Logger) *AddressHandler {
	return &AddressHandler{addressService: addressService, logger: logger}
}

func (h *AddressHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// List returns the caller's addresses. Admins may name another owner with ?user_id=.
func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	caller := actor(r)
	owner := caller.ID
	if raw, ok := params.Filters["user_id"]; ok {
		delete(params.Filters, "user_id")
		if owner, err = uuid.Parse(raw); err != nil {
			middleware.RespondWithAppError(w, r, h.logger, domain.Validation("Invalid user_id: %q is not a valid UUID", raw))
			return
		}
	}

	page, err := h.addressService.List(r.Context(), caller, owner, params)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, page)
}

func (h *AddressHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	address, err := h.addressService.Get(r.Context(), actor(r), id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, address)
}

func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.AddressInput
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	address, err := h.addressService.Create(r.Context(), actor(r), req)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, address)
}

func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	var req service.AddressUpdate
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	address, err := h.addressService.Update(r.Context(), actor(r), id, req)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, address)
}

func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	if err := h.addressService.Delete(r.Context(), actor(r), id); err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "Address deleted successfully"})
}
