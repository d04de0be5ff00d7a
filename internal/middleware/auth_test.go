package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// tokenTable authenticates the tokens it knows and rejects everything else
type tokenTable map[string]*domain.User

func (t tokenTable) Authenticate(_ context.Context, token string) (*domain.User, error) {
	if user, ok := t[token]; ok {
		if !user.IsActive {
			return nil, domain.NotAuthorized("User account is inactive")
		}
		return user, nil
	}
	return nil, domain.Unauthenticated("Could not validate credentials")
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestProperty_ProtectedEndpointsRejectMissingTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests without authorization header are rejected", prop.ForAll(
		func(pathSuffix string, method string) bool {
			handler := AuthMiddleware(tokenTable{}, zap.NewNop())(okHandler())

			req := httptest.NewRequest(method, "/"+pathSuffix, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
		gen.OneConstOf("GET", "POST", "PATCH", "DELETE"),
	))

	properties.Property("unknown tokens are rejected", prop.ForAll(
		func(token string) bool {
			handler := AuthMiddleware(tokenTable{}, zap.NewNop())(okHandler())

			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAuthMiddleware(t *testing.T) {
	alice := &domain.User{ID: uuid.New(), Role: domain.RoleUser, IsActive: true}
	inactive := &domain.User{ID: uuid.New(), Role: domain.RoleUser}
	auth := tokenTable{"alice-token": alice, "inactive-token": inactive}

	var seen *domain.User
	handler := AuthMiddleware(auth, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CurrentUser(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid bearer", "Bearer alice-token", http.StatusNoContent},
		{"scheme is case insensitive", "bearer alice-token", http.StatusNoContent},
		{"basic scheme", "Basic alice-token", http.StatusUnauthorized},
		{"no token", "Bearer ", http.StatusUnauthorized},
		{"unknown token", "Bearer mallory-token", http.StatusUnauthorized},
		{"inactive user", "Bearer inactive-token", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest("GET", "/users/me", nil)
			req.Header.Set("Authorization", tt.header)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusNoContent {
				assert.Equal(t, alice, seen)
			} else {
				assert.Nil(t, seen)
				var body ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
				assert.NotEmpty(t, body.Error.Message)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(zap.NewNop())(okHandler())

	serve := func(user *domain.User) int {
		req := httptest.NewRequest("GET", "/users/all", nil)
		if user != nil {
			req = req.WithContext(WithUser(req.Context(), user))
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(nil))
	assert.Equal(t, http.StatusForbidden, serve(&domain.User{ID: uuid.New(), Role: domain.RoleUser}))
	assert.Equal(t, http.StatusOK, serve(&domain.User{ID: uuid.New(), Role: domain.RoleAdmin}))
}

func TestCurrentUser_Empty(t *testing.T) {
	_, ok := CurrentUser(context.Background())
	assert.False(t, ok)

	_, ok = CurrentUser(WithUser(context.Background(), nil))
	assert.False(t, ok)
}
