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

// AddressRepository defines the interface for address data access.
// UnsetDefaultForUser and OldestForUser are meant to run inside a caller's
// transaction (see database.Transactor); they never commit on their own.
type AddressRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Address, error)
	List(ctx context.Context, params ListParams) ([]*domain.Address, int, error)
	Create(ctx context.Context, address *domain.Address) error
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*domain.Address, error)
	Delete(ctx context.Context, id uuid.UUID) error

	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	UnsetDefaultForUser(ctx context.Context, userID uuid.UUID, exceptID uuid.UUID) ([]uuid.UUID, error)
	OldestForUser(ctx context.Context, userID uuid.UUID, excludeID uuid.UUID) (*domain.Address, error)
}

type addressRepository struct {
	db *sql.DB
}

// NewAddressRepository creates a new instance of AddressRepository
func NewAddressRepository(db *sql.DB) AddressRepository {
	return &addressRepository{db: db}
}

const addressColumns = `id, user_id, street_address, city, state, zip_code, is_default, created_at`

var addressList = listQuery{
	selectFrom: `SELECT ` + addressColumns + ` FROM addresses`,
	countFrom:  `SELECT COUNT(*) FROM addresses`,
	filters: map[string]filter{
		"user_id":    uuidFilter("user_id"),
		"city":       eqFilter("city"),
		"state":      eqFilter("state"),
		"zip_code":   eqFilter("zip_code"),
		"is_default": boolFilter("is_default"),
	},
	sortable: map[string]string{
		"city": "city", "state": "state", "zip_code": "zip_code", "is_default": "is_default", "created_at": "created_at",
	},
	defaultSort: "created_at",
}

var addressUpdatable = map[string]updateColumn{
	"street_address": {},
	"city":           {},
	"state":          {},
	"zip_code":       {},
	"is_default":     {},
}

func scanAddress(row rowScanner) (*domain.Address, error) {
	a := &domain.Address{}
	err := row.Scan(&a.ID, &a.UserID, &a.StreetAddress, &a.City, &a.State, &a.ZipCode, &a.IsDefault, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	utc(&a.CreatedAt)
	return a, nil
}

func (r *addressRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1`

	address, err := scanAddress(database.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(domain.ResourceAddress, id)
		}
		return nil, mapStoreError(fmt.Errorf("failed to find address: %w", err), domain.ResourceAddress)
	}

	return address, nil
}

func (r *addressRepository) List(ctx context.Context, params ListParams) ([]*domain.Address, int, error) {
	return listRows(ctx, database.Executor(ctx, r.db), addressList, params, domain.ResourceAddress, scanAddress)
}

func (r *addressRepository) Create(ctx context.Context, address *domain.Address) error {
	if address.ID == uuid.Nil {
		address.ID = uuid.New()
	}

	query := `
		INSERT INTO addresses (id, user_id, street_address, city, state, zip_code, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := database.Executor(ctx, r.db).QueryRowContext(
		ctx,
		query,
		address.ID,
		address.UserID,
		address.StreetAddress,
		address.City,
		address.State,
		address.ZipCode,
		address.IsDefault,
	).Scan(&address.CreatedAt)

	if err != nil {
		return mapStoreError(fmt.Errorf("failed to create address: %w", err), domain.ResourceAddress)
	}
	utc(&address.CreatedAt)

	return nil
}

func (r *addressRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*domain.Address, error) {
	query, args, err := buildUpdate("addresses", id, fields, addressUpdatable, false, DateMode{})
	if err != nil {
		return nil, err
	}

	address, err := scanAddress(database.Executor(ctx, r.db).QueryRowContext(ctx, query+` RETURNING `+addressColumns, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(domain.ResourceAddress, id)
		}
		return nil, mapStoreError(fmt.Errorf("failed to update address: %w", err), domain.ResourceAddress)
	}

	return address, nil
}

func (r *addressRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := database.Executor(ctx, r.db).ExecContext(ctx, `DELETE FROM addresses WHERE id = $1`, id)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to delete address: %w", err), domain.ResourceAddress)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return mapStoreError(err, domain.ResourceAddress)
	}
	if n == 0 {
		return notFound(domain.ResourceAddress, id)
	}

	return nil
}

func (r *addressRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := database.Executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM addresses WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, mapStoreError(fmt.Errorf("failed to count addresses: %w", err), domain.ResourceAddress)
	}
	return count, nil
}

// UnsetDefaultForUser clears is_default on every address of the user except exceptID
// and returns the ids it cleared. Pass uuid.Nil to clear all of them.
func (r *addressRepository) UnsetDefaultForUser(ctx context.Context, userID uuid.UUID, exceptID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := database.Executor(ctx, r.db).QueryContext(ctx,
		`UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND id <> $2 AND is_default RETURNING id`,
		userID, exceptID)
	if err != nil {
		return nil, mapStoreError(fmt.Errorf("failed to unset default addresses: %w", err), domain.ResourceAddress)
	}
	defer rows.Close()

	var cleared []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, mapStoreError(fmt.Errorf("failed to scan address id: %w", err), domain.ResourceAddress)
		}
		cleared = append(cleared, id)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError(fmt.Errorf("failed to unset default addresses: %w", err), domain.ResourceAddress)
	}
	return cleared, nil
}

// OldestForUser returns the earliest created address of the user other than excludeID
func (r *addressRepository) OldestForUser(ctx context.Context, userID uuid.UUID, excludeID uuid.UUID) (*domain.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses
		WHERE user_id = $1 AND id <> $2
		ORDER BY created_at ASC, id ASC
		LIMIT 1`

	address, err := scanAddress(database.Executor(ctx, r.db).QueryRowContext(ctx, query, userID, excludeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(domain.ResourceAddress, "no other address for user %s", userID)
		}
		return nil, mapStoreError(fmt.Errorf("failed to find oldest address: %w", err), domain.ResourceAddress)
	}
	return address, nil
}
