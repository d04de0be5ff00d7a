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

// CategoryRepository defines the interface for category data access
type CategoryRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	GetByName(ctx context.Context, name string) (*domain.Category, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Category, error)
	List(ctx context.Context, params ListParams) ([]*domain.Category, int, error)
	Create(ctx context.Context, category *domain.Category) error
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*domain.Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type categoryRepository struct {
	db *sql.DB
}

// NewCategoryRepository creates a new instance of CategoryRepository
func NewCategoryRepository(db *sql.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

var categoryList = listQuery{
	selectFrom: `SELECT id, name, slug FROM categories`,
	countFrom:  `SELECT COUNT(*) FROM categories`,
	filters: map[string]filter{
		"name":   eqFilter("name"),
		"slug":   eqFilter("slug"),
		"search": searchFilter("name"),
	},
	sortable:    map[string]string{"name": "name", "slug": "slug"},
	defaultSort: "name",
}

var categoryUpdatable = map[string]updateColumn{"name": {}, "slug": {}}

func scanCategory(row rowScanner) (*domain.Category, error) {
	c := &domain.Category{}
	if err := row.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *categoryRepository) getBy(ctx context.Context, column string, value any) (*domain.Category, error) {
	query := `SELECT id, name, slug FROM categories WHERE ` + column + ` = $1`
	category, err := scanCategory(database.Executor(ctx, r.db).QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(domain.ResourceCategory, "Category with %s %v not found", column, value)
		}
		return nil, mapStoreError(fmt.Errorf("failed to find category by %s: %w", column, err), domain.ResourceCategory)
	}
	return category, nil
}

func (r *categoryRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	return r.getBy(ctx, "id", id)
}

func (r *categoryRepository) GetByName(ctx context.Context, name string) (*domain.Category, error) {
	return r.getBy(ctx, "name", name)
}

func (r *categoryRepository) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	return r.getBy(ctx, "slug", slug)
}

func (r *categoryRepository) List(ctx context.Context, params ListParams) ([]*domain.Category, int, error) {
	return listRows(ctx, database.Executor(ctx, r.db), categoryList, params, domain.ResourceCategory, scanCategory)
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}

	_, err := database.Executor(ctx, r.db).ExecContext(ctx,
		`INSERT INTO categories (id, name, slug) VALUES ($1, $2, $3)`,
		category.ID, category.Name, category.Slug)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to create category: %w", err), domain.ResourceCategory)
	}

	return nil
}

func (r *categoryRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*domain.Category, error) {
	query, args, err := buildUpdate("categories", id, fields, categoryUpdatable, false, DateMode{})
	if err != nil {
		return nil, err
	}

	category, err := scanCategory(database.Executor(ctx, r.db).QueryRowContext(ctx, query+` RETURNING id, name, slug`, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(domain.ResourceCategory, id)
		}
		return nil, mapStoreError(fmt.Errorf("failed to update category: %w", err), domain.ResourceCategory)
	}

	return category, nil
}

// Delete fails with a validation error while products still reference the category
func (r *categoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := database.Executor(ctx, r.db).ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to delete category: %w", err), domain.ResourceCategory)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return mapStoreError(err, domain.ResourceCategory)
	}
	if n == 0 {
		return notFound(domain.ResourceCategory, id)
	}

	return nil
}
