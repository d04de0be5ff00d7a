package service

import (
	"sort"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

// BcryptCost is the cost factor for password hashes
const BcryptCost = 10

const maxPageSize = 100

// requireAdmin is the capability check for catalog and promotion management.
// It only looks at the actor, so it runs before any lookup.
func requireAdmin(actor *domain.User, action, resource string) error {
	if actor == nil {
		return domain.Unauthenticated("authentication required")
	}
	if !actor.IsAdmin() {
		return domain.NotAuthorized("You are not authorized to %s this %s.", action, strings.ToLower(resource))
	}
	return nil
}

// requireAuthenticated only rejects anonymous callers
func requireAuthenticated(actor *domain.User) error {
	if actor == nil {
		return domain.Unauthenticated("authentication required")
	}
	return nil
}

// requireSelfOrAdmin is the ownership check, applied once the resource is known to exist
func requireSelfOrAdmin(actor *domain.User, ownerID uuid.UUID, action, resource string) error {
	if actor == nil {
		return domain.Unauthenticated("authentication required")
	}
	if actor.IsAdmin() || actor.ID == ownerID {
		return nil
	}
	return domain.NotAuthorized("You are not allowed to %s this %s.", action, strings.ToLower(resource))
}

func checkPage(params repository.ListParams) error {
	if params.Skip < 0 {
		return domain.Validation("Skip parameter must be non-negative")
	}
	if params.Limit <= 0 || params.Limit > maxPageSize {
		return domain.Validation("Limit must be between 1 and %d", maxPageSize)
	}
	return nil
}

// collapseSpaces trims s and folds inner whitespace runs to one space
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// withFilter returns a copy of params with key forced to value
func withFilter(params repository.ListParams, key, value string) repository.ListParams {
	filters := make(map[string]string, len(params.Filters)+1)
	for k, v := range params.Filters {
		filters[k] = v
	}
	filters[key] = value
	params.Filters = filters
	return params
}

func fieldNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
