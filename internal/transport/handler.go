package transport

import (
	"net/http"
	"strconv"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultPageSize = 10

// MessageResponse is the body of endpoints that have nothing else to return
type MessageResponse struct {
	Message string `json:"message"`
}

// reserved query parameters; everything else is passed to the repository as a filter
var listKeys = map[string]bool{"skip": true, "limit": true, "order_by": true, "order_desc": true}

// parseListParams reads skip, limit, order_by and order_desc plus any other
// query parameter as an equality filter. Range checks are left to the services.
func parseListParams(r *http.Request) (repository.ListParams, error) {
	query := r.URL.Query()
	params := repository.ListParams{
		Limit:   defaultPageSize,
		OrderBy: query.Get("order_by"),
		Filters: map[string]string{},
	}

	var err error
	if v := query.Get("skip"); v != "" {
		if params.Skip, err = strconv.Atoi(v); err != nil {
			return params, domain.Validation("skip must be an integer")
		}
	}
	if v := query.Get("limit"); v != "" {
		if params.Limit, err = strconv.Atoi(v); err != nil {
			return params, domain.Validation("limit must be an integer")
		}
	}
	if v := query.Get("order_desc"); v != "" {
		if params.OrderDesc, err = strconv.ParseBool(v); err != nil {
			return params, domain.Validation("order_desc must be true or false")
		}
	}

	for key, values := range query {
		if !listKeys[key] && len(values) > 0 && values[0] != "" {
			params.Filters[key] = values[0]
		}
	}
	return params, nil
}

// pathID parses the uuid in the named route parameter
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.Validation("Invalid %s: %q is not a valid UUID", name, raw)
	}
	return id, nil
}

// actor returns the authenticated caller, or nil on public routes
func actor(r *http.Request) *domain.User {
	user, _ := middleware.CurrentUser(r.Context())
	return user
}

// decodeBody decodes and validates the JSON body into v, answering 400 itself
// when that fails
func decodeBody(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v any) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request body rejected", zap.String("path", r.URL.Path), zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return false
	}
	return true
}
