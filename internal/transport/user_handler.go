package transport

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ChangePasswordRequest represents the password change payload
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	userService service.UserService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// Routes mounts the user endpoints; all of them need an authenticated caller
func (h *UserHandler) Routes(r chi.Router, requireAdmin func(http.Handler) http.Handler) {
	r.Get("/me", h.GetProfile)
	r.Patch("/me", h.UpdateProfile)
	r.Delete("/me", h.DeleteAccount)
	r.Delete("/me/deactivate", h.Deactivate)
	r.Post("/change-password", h.ChangePassword)
	r.With(requireAdmin).Get("/all", h.List)
	r.Get("/{user_id}", h.Get)
}

// GetProfile returns the caller's own account
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	caller := actor(r)
	user, err := h.userService.Get(r.Context(), caller, caller.ID)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req service.UserUpdate
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	caller := actor(r)
	user, err := h.userService.Update(r.Context(), caller, caller.ID, req)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	caller := actor(r)
	if err := h.userService.Delete(r.Context(), caller, caller.ID); err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "Account deleted successfully"})
}

func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.Deactivate(r.Context(), actor(r)); err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "Account deactivated successfully"})
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	if err := h.userService.ChangePassword(r.Context(), actor(r), req.CurrentPassword, req.NewPassword); err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "Password changed successfully"})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	page, err := h.userService.List(r.Context(), actor(r), params)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, page)
}

// Get returns any account to an admin, or the caller's own
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "user_id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	user, err := h.userService.Get(r.Context(), actor(r), id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, user)
}
