package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"storefront/internal/domain"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code         string         `json:"code"`
	Message      string         `json:"message"`
	ResourceType string         `json:"resource_type,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Timestamp    string         `json:"timestamp"`
}

// StatusFor maps an error kind to its HTTP status code
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindNotAuthorized:
		return http.StatusForbidden
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAlreadyExists:
		return http.StatusConflict
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithErrorDetails(w, statusCode, ErrorDetail{Message: message})
}

func respondWithErrorDetails(w http.ResponseWriter, statusCode int, detail ErrorDetail) {
	detail.Code = http.StatusText(statusCode)
	detail.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: detail})
}

// RespondWithAppError translates err into a response. Internal errors never leak
// their cause to the client; it is logged with the request id instead.
func RespondWithAppError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	kind := domain.KindOf(err)
	status := StatusFor(kind)

	if kind == domain.KindInternal {
		logger.Error("Request failed",
			zap.Error(err),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		RespondWithError(w, status, "internal server error")
		return
	}

	var appErr *domain.Error
	errors.As(err, &appErr)
	detail := ErrorDetail{Message: appErr.Detail, ResourceType: appErr.ResourceType}
	logger.Debug("Request rejected",
		zap.String("kind", kind.String()),
		zap.String("message", detail.Message),
		zap.String("path", r.URL.Path),
	)
	respondWithErrorDetails(w, status, detail)
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, validationErrors []ValidationError) {
	respondWithErrorDetails(w, http.StatusBadRequest, ErrorDetail{
		Message: "validation failed",
		Details: map[string]any{"validation_errors": validationErrors},
	})
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("request_id", middleware.GetReqID(r.Context())),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
