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

// ColorRepository defines the interface for color data access
type ColorRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Color, error)
	GetByName(ctx context.Context, name string) (*domain.Color, error)
	GetByHexCode(ctx context.Context, hexCode string) (*domain.Color, error)
	List(ctx context.Context, params ListParams) ([]*domain.Color, int, error)
	Create(ctx context.Context, color *domain.Color) error
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*domain.Color, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type colorRepository struct {
	db *sql.DB
}

func NewColorRepository(db *sql.DB) ColorRepository {
	return &colorRepository{db: db}
}

var colorList = listQuery{
	selectFrom: `SELECT id, name, hex_code FROM colors`,
	countFrom:  `SELECT COUNT(*) FROM colors`,
	filters: map[string]filter{
		"name":     eqFilter("name"),
		"hex_code": upperEqFilter("hex_code"),
		"search":   searchFilter("name"),
	},
	sortable:    map[string]string{"name": "name", "hex_code": "hex_code"},
	defaultSort: "name",
}

var colorUpdatable = map[string]updateColumn{"name": {}, "hex_code": {}}

func scanColor(row rowScanner) (*domain.Color, error) {
	c := &domain.Color{}
	if err := row.Scan(&c.ID, &c.Name, &c.HexCode); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *colorRepository) getBy(ctx context.Context, column string, value any) (*domain.Color, error) {
	query := `SELECT id, name, hex_code FROM colors WHERE ` + column + ` = $1`
	color, err := scanColor(database.Executor(ctx, r.db).QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(domain.ResourceColor, "Color with %s %v not found", column, value)
		}
		return nil, mapStoreError(fmt.Errorf("failed to find color by %s: %w", column, err), domain.ResourceColor)
	}
	return color, nil
}

func (r *colorRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Color, error) {
	return r.getBy(ctx, "id", id)
}

func (r *colorRepository) GetByName(ctx context.Context, name string) (*domain.Color, error) {
	return r.getBy(ctx, "name", name)
}

func (r *colorRepository) GetByHexCode(ctx context.Context, hexCode string) (*domain.Color, error) {
	return r.getBy(ctx, "hex_code", hexCode)
}

func (r *colorRepository) List(ctx context.Context, params ListParams) ([]*domain.Color, int, error) {
	return listRows(ctx, database.Executor(ctx, r.db), colorList, params, domain.ResourceColor, scanColor)
}

func (r *colorRepository) Create(ctx context.Context, color *domain.Color) error {
	if color.ID == uuid.Nil {
		color.ID = uuid.New()
	}

	_, err := database.Executor(ctx, r.db).ExecContext(ctx,
		`INSERT INTO colors (id, name, hex_code) VALUES ($1, $2, $3)`,
		color.ID, color.Name, color.HexCode)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to create color: %w", err), domain.ResourceColor)
	}

	return nil
}

func (r *colorRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*domain.Color, error) {
	query, args, err := buildUpdate("colors", id, fields, colorUpdatable, false, DateMode{})
	if err != nil {
		return nil, err
	}

	color, err := scanColor(database.Executor(ctx, r.db).QueryRowContext(ctx, query+` RETURNING id, name, hex_code`, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(domain.ResourceColor, id)
		}
		return nil, mapStoreError(fmt.Errorf("failed to update color: %w", err), domain.ResourceColor)
	}

	return color, nil
}

func (r *colorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := database.Executor(ctx, r.db).ExecContext(ctx, `DELETE FROM colors WHERE id = $1`, id)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to delete color: %w", err), domain.ResourceColor)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return mapStoreError(err, domain.ResourceColor)
	}
	if n == 0 {
		return notFound(domain.ResourceColor, id)
	}

	return nil
}
