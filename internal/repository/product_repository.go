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

// ProductRepository defines the interface for product data access.
// Reads return the product with its category, images and variants.
type ProductRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetByName(ctx context.Context, name string) (*domain.Product, error)
	List(ctx context.Context, params ListParams) ([]*domain.Product, int, error)
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productSelect = `
	SELECT p.id, p.name, p.description, p.brand, p.status, p.gender, p.category_id,
	       p.created_at, p.updated_at, c.name, c.slug
	FROM products p
	JOIN categories c ON c.id = p.category_id`

var productList = listQuery{
	selectFrom: productSelect,
	countFrom:  `SELECT COUNT(*) FROM products p`,
	filters: map[string]filter{
		"status":      eqFilter("p.status"),
		"gender":      eqFilter("p.gender"),
		"category_id": uuidFilter("p.category_id"),
		"brand":       eqFilter("p.brand"),
		"search":      searchFilter("p.name", "p.brand"),
	},
	sortable: map[string]string{
		"name":       "p.name",
		"brand":      "p.brand",
		"status":     "p.status",
		"gender":     "p.gender",
		"created_at": "p.created_at",
		"updated_at": "p.updated_at",
	},
	defaultSort: "p.created_at",
}

var productUpdatable = map[string]updateColumn{
	"name":        {},
	"description": {},
	"brand":       {},
	"status":      {},
	"gender":      {},
	"category_id": {},
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{Category: &domain.Category{}}
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Brand,
		&p.Status,
		&p.Gender,
		&p.CategoryID,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Category.Name,
		&p.Category.Slug,
	)
	if err != nil {
		return nil, err
	}
	utc(&p.CreatedAt, &p.UpdatedAt)
	p.Category.ID = p.CategoryID
	p.Images = []domain.ProductImage{}
	p.Variants = []domain.ProductVariant{}
	return p, nil
}

func (r *productRepository) getOne(ctx context.Context, column string, value any) (*domain.Product, error) {
	exec := database.Executor(ctx, r.db)

	product, err := scanProduct(exec.QueryRowContext(ctx, productSelect+` WHERE p.`+column+` = $1`, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(domain.ResourceProduct, "Product with %s %v not found", column, value)
		}
		return nil, mapStoreError(fmt.Errorf("failed to find product by %s: %w", column, err), domain.ResourceProduct)
	}

	if err := loadChildren(ctx, exec, []*domain.Product{product}); err != nil {
		return nil, err
	}

	return product, nil
}

// Get retrieves a product by ID together with its images and variants
func (r *productRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.getOne(ctx, "id", id)
}

func (r *productRepository) GetByName(ctx context.Context, name string) (*domain.Product, error) {
	return r.getOne(ctx, "name", name)
}

// List retrieves products with filtering, pagination and sorting
func (r *productRepository) List(ctx context.Context, params ListParams) ([]*domain.Product, int, error) {
	exec := database.Executor(ctx, r.db)

	products, total, err := listRows(ctx, exec, productList, params, domain.ResourceProduct, scanProduct)
	if err != nil {
		return nil, 0, err
	}

	if err := loadChildren(ctx, exec, products); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// Create inserts the product row only; images and variants are added by their repositories
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}

	query := `
		INSERT INTO products (id, name, description, brand, status, gender, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := database.Executor(ctx, r.db).QueryRowContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Brand,
		product.Status,
		product.Gender,
		product.CategoryID,
	).Scan(&product.CreatedAt, &product.UpdatedAt)

	if err != nil {
		return mapStoreError(fmt.Errorf("failed to create product: %w", err), domain.ResourceProduct)
	}
	utc(&product.CreatedAt, &product.UpdatedAt)

	return nil
}

func (r *productRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*domain.Product, error) {
	query, args, err := buildUpdate("products", id, fields, productUpdatable, true, DateMode{})
	if err != nil {
		return nil, err
	}

	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return nil, mapStoreError(fmt.Errorf("failed to update product: %w", err), domain.ResourceProduct)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return nil, mapStoreError(err, domain.ResourceProduct)
	}
	if n == 0 {
		return nil, notFound(domain.ResourceProduct, id)
	}

	return r.Get(ctx, id)
}

// Delete removes a product; images and variants cascade
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := database.Executor(ctx, r.db).ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to delete product: %w", err), domain.ResourceProduct)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return mapStoreError(err, domain.ResourceProduct)
	}
	if n == 0 {
		return notFound(domain.ResourceProduct, id)
	}

	return nil
}

// loadChildren attaches images and variants to products with one query each
func loadChildren(ctx context.Context, exec database.DBTX, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.Product, len(products))
	ids := make([]string, 0, len(products))
	for _, p := range products {
		byID[p.ID] = p
		ids = append(ids, p.ID.String())
	}

	imgRows, err := exec.QueryContext(ctx,
		`SELECT `+imageColumns+` FROM product_images WHERE product_id = ANY($1::uuid[]) ORDER BY order_index, id`, ids)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to load product images: %w", err), domain.ResourceImage)
	}
	defer imgRows.Close()

	for imgRows.Next() {
		img, err := scanImage(imgRows)
		if err != nil {
			return mapStoreError(fmt.Errorf("failed to scan product image: %w", err), domain.ResourceImage)
		}
		p := byID[img.ProductID]
		p.Images = append(p.Images, *img)
	}
	if err := imgRows.Err(); err != nil {
		return mapStoreError(fmt.Errorf("error iterating product images: %w", err), domain.ResourceImage)
	}
	// release the connection before the next query when running inside a transaction
	imgRows.Close()

	varRows, err := exec.QueryContext(ctx,
		variantSelect+` WHERE v.product_id = ANY($1::uuid[]) ORDER BY v.sku`, ids)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to load product variants: %w", err), domain.ResourceVariant)
	}
	defer varRows.Close()

	for varRows.Next() {
		v, err := scanVariant(varRows)
		if err != nil {
			return mapStoreError(fmt.Errorf("failed to scan product variant: %w", err), domain.ResourceVariant)
		}
		p := byID[v.ProductID]
		p.Variants = append(p.Variants, *v)
	}
	if err := varRows.Err(); err != nil {
		return mapStoreError(fmt.Errorf("error iterating product variants: %w", err), domain.ResourceVariant)
	}

	return nil
}
