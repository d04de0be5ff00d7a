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

// VariantRepository defines the interface for product variant data access
type VariantRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.ProductVariant, error)
	GetBySKU(ctx context.Context, sku string) (*domain.ProductVariant, error)
	GetByCombination(ctx context.Context, productID, sizeID, colorID uuid.UUID) (*domain.ProductVariant, error)
	List(ctx context.Context, params ListParams) ([]*domain.ProductVariant, int, error)
	Create(ctx context.Context, variant *domain.ProductVariant) error
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*domain.ProductVariant, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type variantRepository struct {
	db *sql.DB
}

func NewVariantRepository(db *sql.DB) VariantRepository {
	return &variantRepository{db: db}
}

const variantSelect = `
	SELECT v.id, v.product_id, v.size_id, v.color_id, v.sku, v.price_in_cents,
	       v.discount_price_in_cents, v.stock, s.name, c.name, c.hex_code
	FROM product_variants v
	JOIN sizes s ON s.id = v.size_id
	JOIN colors c ON c.id = v.color_id`

var variantList = listQuery{
	selectFrom: variantSelect,
	countFrom:  `SELECT COUNT(*) FROM product_variants v`,
	filters: map[string]filter{
		"product_id": uuidFilter("v.product_id"),
		"size_id":    uuidFilter("v.size_id"),
		"color_id":   uuidFilter("v.color_id"),
		"sku":        eqFilter("v.sku"),
	},
	sortable: map[string]string{
		"sku":            "v.sku",
		"price_in_cents": "v.price_in_cents",
		"stock":          "v.stock",
	},
	defaultSort: "v.sku",
}

var variantUpdatable = map[string]updateColumn{
	"size_id":                 {},
	"color_id":                {},
	"sku":                     {},
	"price_in_cents":          {},
	"discount_price_in_cents": {},
	"stock":                   {},
}

func scanVariant(row rowScanner) (*domain.ProductVariant, error) {
	v := &domain.ProductVariant{Size: &domain.Size{}, Color: &domain.Color{}}
	var discount sql.NullInt64
	err := row.Scan(
		&v.ID,
		&v.ProductID,
		&v.SizeID,
		&v.ColorID,
		&v.SKU,
		&v.PriceInCents,
		&discount,
		&v.Stock,
		&v.Size.Name,
		&v.Color.Name,
		&v.Color.HexCode,
	)
	if err != nil {
		return nil, err
	}
	if discount.Valid {
		d := int(discount.Int64)
		v.DiscountPriceInCents = &d
	}
	v.Size.ID = v.SizeID
	v.Color.ID = v.ColorID
	return v, nil
}

func (r *variantRepository) getOne(ctx context.Context, where string, args ...any) (*domain.ProductVariant, error) {
	variant, err := scanVariant(database.Executor(ctx, r.db).QueryRowContext(ctx, variantSelect+` WHERE `+where, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(domain.ResourceVariant, "ProductVariant not found")
		}
		return nil, mapStoreError(fmt.Errorf("failed to find variant: %w", err), domain.ResourceVariant)
	}
	return variant, nil
}

func (r *variantRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ProductVariant, error) {
	variant, err := r.getOne(ctx, `v.id = $1`, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, notFound(domain.ResourceVariant, id)
	}
	return variant, err
}

func (r *variantRepository) GetBySKU(ctx context.Context, sku string) (*domain.ProductVariant, error) {
	return r.getOne(ctx, `v.sku = $1`, sku)
}

func (r *variantRepository) GetByCombination(ctx context.Context, productID, sizeID, colorID uuid.UUID) (*domain.ProductVariant, error) {
	return r.getOne(ctx, `v.product_id = $1 AND v.size_id = $2 AND v.color_id = $3`, productID, sizeID, colorID)
}

func (r *variantRepository) List(ctx context.Context, params ListParams) ([]*domain.ProductVariant, int, error) {
	return listRows(ctx, database.Executor(ctx, r.db), variantList, params, domain.ResourceVariant, scanVariant)
}

func (r *variantRepository) Create(ctx context.Context, variant *domain.ProductVariant) error {
	if variant.ID == uuid.Nil {
		variant.ID = uuid.New()
	}

	query := `
		INSERT INTO product_variants (id, product_id, size_id, color_id, sku, price_in_cents, discount_price_in_cents, stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := database.Executor(ctx, r.db).ExecContext(
		ctx,
		query,
		variant.ID,
		variant.ProductID,
		variant.SizeID,
		variant.ColorID,
		variant.SKU,
		variant.PriceInCents,
		variant.DiscountPriceInCents,
		variant.Stock,
	)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to create variant: %w", err), domain.ResourceVariant)
	}

	return nil
}

// Update applies the supplied fields and reloads the variant with its size and color
func (r *variantRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*domain.ProductVariant, error) {
	query, args, err := buildUpdate("product_variants", id, fields, variantUpdatable, false, DateMode{})
	if err != nil {
		return nil, err
	}

	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return nil, mapStoreError(fmt.Errorf("failed to update variant: %w", err), domain.ResourceVariant)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return nil, mapStoreError(err, domain.ResourceVariant)
	}
	if n == 0 {
		return nil, notFound(domain.ResourceVariant, id)
	}

	return r.Get(ctx, id)
}

func (r *variantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := database.Executor(ctx, r.db).ExecContext(ctx, `DELETE FROM product_variants WHERE id = $1`, id)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to delete variant: %w", err), domain.ResourceVariant)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return mapStoreError(err, domain.ResourceVariant)
	}
	if n == 0 {
		return notFound(domain.ResourceVariant, id)
	}

	return nil
}
