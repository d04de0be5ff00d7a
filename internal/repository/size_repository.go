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

// SizeRepository defines the interface for size data access
type SizeRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Size, error)
	GetByName(ctx context.Context, name string) (*domain.Size, error)
	List(ctx context.Context, params ListParams) ([]*domain.Size, int, error)
	Create(ctx context.Context, size *domain.Size) error
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*domain.Size, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type sizeRepository struct {
	db *sql.DB
}

func NewSizeRepository(db *sql.DB) SizeRepository {
	return &sizeRepository{db: db}
}

var sizeList = listQuery{
	selectFrom: `SELECT id, name FROM sizes`,
	countFrom:  `SELECT COUNT(*) FROM sizes`,
	filters: map[string]filter{
		"name": upperEqFilter("name"),
	},
	sortable:    map[string]string{"name": "name"},
	defaultSort: "name",
}

var sizeUpdatable = map[string]updateColumn{"name": {}}

func scanSize(row rowScanner) (*domain.Size, error) {
	s := &domain.Size{}
	if err := row.Scan(&s.ID, &s.Name); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *sizeRepository) getBy(ctx context.Context, column string, value any) (*domain.Size, error) {
	query := `SELECT id, name FROM sizes WHERE ` + column + ` = $1`
	size, err := scanSize(database.Executor(ctx, r.db).QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(domain.ResourceSize, "Size with %s %v not found", column, value)
		}
		return nil, mapStoreError(fmt.Errorf("failed to find size by %s: %w", column, err), domain.ResourceSize)
	}
	return size, nil
}

func (r *sizeRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Size, error) {
	return r.getBy(ctx, "id", id)
}

func (r *sizeRepository) GetByName(ctx context.Context, name string) (*domain.Size, error) {
	return r.getBy(ctx, "name", name)
}

func (r *sizeRepository) List(ctx context.Context, params ListParams) ([]*domain.Size, int, error) {
	return listRows(ctx, database.Executor(ctx, r.db), sizeList, params, domain.ResourceSize, scanSize)
}

func (r *sizeRepository) Create(ctx context.Context, size *domain.Size) error {
	if size.ID == uuid.Nil {
		size.ID = uuid.New()
	}

	_, err := database.Executor(ctx, r.db).ExecContext(ctx,
		`INSERT INTO sizes (id, name) VALUES ($1, $2)`, size.ID, size.Name)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to create size: %w", err), domain.ResourceSize)
	}

	return nil
}

func (r *sizeRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*domain.Size, error) {
	query, args, err := buildUpdate("sizes", id, fields, sizeUpdatable, false, DateMode{})
	if err != nil {
		return nil, err
	}

	size, err := scanSize(database.Executor(ctx, r.db).QueryRowContext(ctx, query+` RETURNING id, name`, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(domain.ResourceSize, id)
		}
		return nil, mapStoreError(fmt.Errorf("failed to update size: %w", err), domain.ResourceSize)
	}

	return size, nil
}

func (r *sizeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := database.Executor(ctx, r.db).ExecContext(ctx, `DELETE FROM sizes WHERE id = $1`, id)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to delete size: %w", err), domain.ResourceSize)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return mapStoreError(err, domain.ResourceSize)
	}
	if n == 0 {
		return notFound(domain.ResourceSize, id)
	}

	return nil
}
