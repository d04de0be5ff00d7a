package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/database"
	"storefront/internal/domain"

	"github.com/google/uuid"
)

// WishlistRepository defines the interface for wishlist data access.
// Entries are immutable: there is no update.
type WishlistRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.WishlistItem, error)
	GetByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*domain.WishlistItem, error)
	List(ctx context.Context, params ListParams) ([]*domain.WishlistItem, int, error)
	Create(ctx context.Context, item *domain.WishlistItem) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type wishlistRepository struct {
	db *sql.DB
}

func NewWishlistRepository(db *sql.DB) WishlistRepository {
	return &wishlistRepository{db: db}
}

const wishlistColumns = `id, user_id, product_id, created_at`

var wishlistList = listQuery{
	selectFrom: `SELECT ` + wishlistColumns + ` FROM wishlist_items`,
	countFrom:  `SELECT COUNT(*) FROM wishlist_items`,
	filters: map[string]filter{
		"user_id":    uuidFilter("user_id"),
		"product_id": uuidFilter("product_id"),
	},
	sortable:    map[string]string{"created_at": "created_at"},
	defaultSort: "created_at",
}

func scanWishlistItem(row rowScanner) (*domain.WishlistItem, error) {
	w := &domain.WishlistItem{}
	if err := row.Scan(&w.ID, &w.UserID, &w.ProductID, &w.CreatedAt); err != nil {
		return nil, err
	}
	utc(&w.CreatedAt)
	return w, nil
}

func (r *wishlistRepository) Get(ctx context.Context, id uuid.UUID) (*domain.WishlistItem, error) {
	query := `SELECT ` + wishlistColumns + ` FROM wishlist_items WHERE id = $1`
	item, err := scanWishlistItem(database.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(domain.ResourceWishlist, id)
		}
		return nil, mapStoreError(fmt.Errorf("failed to find wishlist item: %w", err), domain.ResourceWishlist)
	}
	return item, nil
}

func (r *wishlistRepository) GetByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*domain.WishlistItem, error) {
	query := `SELECT ` + wishlistColumns + ` FROM wishlist_items WHERE user_id = $1 AND product_id = $2`
	item, err := scanWishlistItem(database.Executor(ctx, r.db).QueryRowContext(ctx, query, userID, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(domain.ResourceWishlist, "Product %s is not in the wishlist", productID)
		}
		return nil, mapStoreError(fmt.Errorf("failed to find wishlist item: %w", err), domain.ResourceWishlist)
	}
	return item, nil
}

func (r *wishlistRepository) List(ctx context.Context, params ListParams) ([]*domain.WishlistItem, int, error) {
	return listRows(ctx, database.Executor(ctx, r.db), wishlistList, params, domain.ResourceWishlist, scanWishlistItem)
}

func (r *wishlistRepository) Create(ctx context.Context, item *domain.WishlistItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	err := database.Executor(ctx, r.db).QueryRowContext(ctx,
		`INSERT INTO wishlist_items (id, user_id, product_id) VALUES ($1, $2, $3) RETURNING created_at`,
		item.ID, item.UserID, item.ProductID).Scan(&item.CreatedAt)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to create wishlist item: %w", err), domain.ResourceWishlist)
	}
	utc(&item.CreatedAt)

	return nil
}

func (r *wishlistRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := database.Executor(ctx, r.db).ExecContext(ctx, `DELETE FROM wishlist_items WHERE id = $1`, id)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to delete wishlist item: %w", err), domain.ResourceWishlist)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return mapStoreError(err, domain.ResourceWishlist)
	}
	if n == 0 {
		return notFound(domain.ResourceWishlist, id)
	}

	return nil
}
