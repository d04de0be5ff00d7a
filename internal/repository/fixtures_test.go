package repository

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// unique returns a short random suffix so fixtures never collide across tests
func unique() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func createTestUser(t *testing.T, db *sql.DB) *domain.User {
	t.Helper()
	user := &domain.User{
		Name:           "Test User",
		Email:          "user-" + unique() + "@example.com",
		Role:           domain.RoleUser,
		IsActive:       true,
		HashedPassword: "$2a$10$abcdefghijklmnopqrstuv",
	}
	require.NoError(t, NewUserRepository(db, DateMode{}).Create(context.Background(), user))
	return user
}

func createTestCategory(t *testing.T, db *sql.DB) *domain.Category {
	t.Helper()
	suffix := unique()
	category := &domain.Category{Name: "Category " + suffix, Slug: "category-" + suffix}
	require.NoError(t, NewCategoryRepository(db).Create(context.Background(), category))
	return category
}

func createTestColor(t *testing.T, db *sql.DB) *domain.Color {
	t.Helper()
	suffix := unique()
	color := &domain.Color{Name: "Color " + suffix, HexCode: "#" + strings.ToUpper(suffix[:6])}
	require.NoError(t, NewColorRepository(db).Create(context.Background(), color))
	return color
}

func createTestSize(t *testing.T, db *sql.DB) *domain.Size {
	t.Helper()
	size := &domain.Size{Name: "S" + strings.ToUpper(unique())}
	require.NoError(t, NewSizeRepository(db).Create(context.Background(), size))
	return size
}

func createTestProduct(t *testing.T, db *sql.DB, categoryID uuid.UUID) *domain.Product {
	t.Helper()
	product := &domain.Product{
		Name:        "Product " + unique(),
		Description: "A test product",
		Brand:       "Acme",
		Status:      domain.ProductStatusActive,
		Gender:      domain.GenderUnisex,
		CategoryID:  categoryID,
	}
	require.NoError(t, NewProductRepository(db).Create(context.Background(), product))
	return product
}
