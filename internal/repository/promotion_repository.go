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

// PromotionRepository defines the interface for promotion data access
type PromotionRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Promotion, error)
	GetByCode(ctx context.Context, code string) (*domain.Promotion, error)
	List(ctx context.Context, params ListParams) ([]*domain.Promotion, int, error)
	Create(ctx context.Context, promotion *domain.Promotion) error
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*domain.Promotion, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type promotionRepository struct {
	db    *sql.DB
	dates DateMode
}

func NewPromotionRepository(db *sql.DB, dates DateMode) PromotionRepository {
	return &promotionRepository{db: db, dates: dates}
}

const promotionColumns = `id, code, status, discount_type, value, created_at, expires_at`

var promotionList = listQuery{
	selectFrom: `SELECT ` + promotionColumns + ` FROM promotions`,
	countFrom:  `SELECT COUNT(*) FROM promotions`,
	filters: map[string]filter{
		"status":        eqFilter("status"),
		"discount_type": eqFilter("discount_type"),
		"code":          upperEqFilter("code"),
	},
	sortable: map[string]string{
		"code": "code", "status": "status", "value": "value",
		"created_at": "created_at", "expires_at": "expires_at",
	},
	defaultSort: "created_at",
}

var promotionUpdatable = map[string]updateColumn{
	"code":          {},
	"status":        {},
	"discount_type": {},
	"value":         {},
	"expires_at":    {timestamp: true},
}

func scanPromotion(row rowScanner) (*domain.Promotion, error) {
	p := &domain.Promotion{}
	err := row.Scan(&p.ID, &p.Code, &p.Status, &p.DiscountType, &p.Value, &p.CreatedAt, &p.ExpiresAt)
	if err != nil {
		return nil, err
	}
	utc(&p.CreatedAt, &p.ExpiresAt)
	return p, nil
}

func (r *promotionRepository) getBy(ctx context.Context, column string, value any) (*domain.Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE ` + column + ` = $1`
	promotion, err := scanPromotion(database.Executor(ctx, r.db).QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(domain.ResourcePromotion, "Promotion with %s %v not found", column, value)
		}
		return nil, mapStoreError(fmt.Errorf("failed to find promotion by %s: %w", column, err), domain.ResourcePromotion)
	}
	return promotion, nil
}

func (r *promotionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
	return r.getBy(ctx, "id", id)
}

func (r *promotionRepository) GetByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	return r.getBy(ctx, "code", code)
}

func (r *promotionRepository) List(ctx context.Context, params ListParams) ([]*domain.Promotion, int, error) {
	return listRows(ctx, database.Executor(ctx, r.db), promotionList, params, domain.ResourcePromotion, scanPromotion)
}

func (r *promotionRepository) Create(ctx context.Context, promotion *domain.Promotion) error {
	if promotion.ID == uuid.Nil {
		promotion.ID = uuid.New()
	}

	query := `
		INSERT INTO promotions (id, code, status, discount_type, value, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := database.Executor(ctx, r.db).QueryRowContext(
		ctx,
		query,
		promotion.ID,
		promotion.Code,
		promotion.Status,
		promotion.DiscountType,
		promotion.Value,
		promotion.ExpiresAt,
	).Scan(&promotion.CreatedAt)

	if err != nil {
		return mapStoreError(fmt.Errorf("failed to create promotion: %w", err), domain.ResourcePromotion)
	}
	utc(&promotion.CreatedAt, &promotion.ExpiresAt)

	return nil
}

func (r *promotionRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*domain.Promotion, error) {
	query, args, err := buildUpdate("promotions", id, fields, promotionUpdatable, false, r.dates)
	if err != nil {
		return nil, err
	}

	promotion, err := scanPromotion(database.Executor(ctx, r.db).QueryRowContext(ctx, query+` RETURNING `+promotionColumns, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(domain.ResourcePromotion, id)
		}
		return nil, mapStoreError(fmt.Errorf("failed to update promotion: %w", err), domain.ResourcePromotion)
	}

	return promotion, nil
}

func (r *promotionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := database.Executor(ctx, r.db).ExecContext(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to delete promotion: %w", err), domain.ResourcePromotion)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return mapStoreError(err, domain.ResourcePromotion)
	}
	if n == 0 {
		return notFound(domain.ResourcePromotion, id)
	}

	return nil
}
