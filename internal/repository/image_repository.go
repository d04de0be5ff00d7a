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

// ImageRepository defines the interface for product image data access
type ImageRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.ProductImage, error)
	List(ctx context.Context, params ListParams) ([]*domain.ProductImage, int, error)
	Create(ctx context.Context, image *domain.ProductImage) error
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*domain.ProductImage, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type imageRepository struct {
	db *sql.DB
}

func NewImageRepository(db *sql.DB) ImageRepository {
	return &imageRepository{db: db}
}

const imageColumns = `id, product_id, url, alt_text, order_index`

var imageList = listQuery{
	selectFrom: `SELECT ` + imageColumns + ` FROM product_images`,
	countFrom:  `SELECT COUNT(*) FROM product_images`,
	filters: map[string]filter{
		"product_id": uuidFilter("product_id"),
	},
	sortable:    map[string]string{"order_index": "order_index", "url": "url"},
	defaultSort: "order_index",
}

var imageUpdatable = map[string]updateColumn{"url": {}, "alt_text": {}, "order_index": {}}

func scanImage(row rowScanner) (*domain.ProductImage, error) {
	img := &domain.ProductImage{}
	if err := row.Scan(&img.ID, &img.ProductID, &img.URL, &img.AltText, &img.OrderIndex); err != nil {
		return nil, err
	}
	return img, nil
}

func (r *imageRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ProductImage, error) {
	query := `SELECT ` + imageColumns + ` FROM product_images WHERE id = $1`

	image, err := scanImage(database.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(domain.ResourceImage, id)
		}
		return nil, mapStoreError(fmt.Errorf("failed to find image: %w", err), domain.ResourceImage)
	}

	return image, nil
}

func (r *imageRepository) List(ctx context.Context, params ListParams) ([]*domain.ProductImage, int, error) {
	return listRows(ctx, database.Executor(ctx, r.db), imageList, params, domain.ResourceImage, scanImage)
}

func (r *imageRepository) Create(ctx context.Context, image *domain.ProductImage) error {
	if image.ID == uuid.Nil {
		image.ID = uuid.New()
	}

	_, err := database.Executor(ctx, r.db).ExecContext(ctx,
		`INSERT INTO product_images (id, product_id, url, alt_text, order_index) VALUES ($1, $2, $3, $4, $5)`,
		image.ID, image.ProductID, image.URL, image.AltText, image.OrderIndex)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to create image: %w", err), domain.ResourceImage)
	}

	return nil
}

func (r *imageRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*domain.ProductImage, error) {
	query, args, err := buildUpdate("product_images", id, fields, imageUpdatable, false, DateMode{})
	if err != nil {
		return nil, err
	}

	image, err := scanImage(database.Executor(ctx, r.db).QueryRowContext(ctx, query+` RETURNING `+imageColumns, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(domain.ResourceImage, id)
		}
		return nil, mapStoreError(fmt.Errorf("failed to update image: %w", err), domain.ResourceImage)
	}

	return image, nil
}

func (r *imageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := database.Executor(ctx, r.db).ExecContext(ctx, `DELETE FROM product_images WHERE id = $1`, id)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to delete image: %w", err), domain.ResourceImage)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return mapStoreError(err, domain.ResourceImage)
	}
	if n == 0 {
		return notFound(domain.ResourceImage, id)
	}

	return nil
}
