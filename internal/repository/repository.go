package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"storefront/internal/database"
	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// ListParams describes a filtered, ordered and windowed scan.
// Unknown filter keys are ignored and an unknown OrderBy falls back to the
// repository's default column.
type ListParams struct {
	Skip      int
	Limit     int
	Filters   map[string]string
	OrderBy   string
	OrderDesc bool
}

type rowScanner interface {
	Scan(dest ...any) error
}

// filter renders one WHERE condition for a client-supplied value.
// ok is false when the value cannot apply (e.g. a malformed uuid), in which case
// the filter is skipped like an unknown key.
type filter func(value, placeholder string) (clause string, arg any, ok bool)

func eqFilter(column string) filter {
	return func(value, ph string) (string, any, bool) {
		return column + " = " + ph, value, true
	}
}

func upperEqFilter(column string) filter {
	return func(value, ph string) (string, any, bool) {
		return column + " = " + ph, strings.ToUpper(strings.TrimSpace(value)), true
	}
}

func uuidFilter(column string) filter {
	return func(value, ph string) (string, any, bool) {
		id, err := uuid.Parse(value)
		if err != nil {
			return "", nil, false
		}
		return column + " = " + ph, id, true
	}
}

func boolFilter(column string) filter {
	return func(value, ph string) (string, any, bool) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", nil, false
		}
		return column + " = " + ph, b, true
	}
}

// searchFilter matches value case-insensitively against any of columns
func searchFilter(columns ...string) filter {
	return func(value, ph string) (string, any, bool) {
		value = strings.TrimSpace(value)
		if value == "" {
			return "", nil, false
		}
		parts := make([]string, len(columns))
		for i, c := range columns {
			parts[i] = c + " ILIKE " + ph
		}
		return "(" + strings.Join(parts, " OR ") + ")", "%" + value + "%", true
	}
}

// listQuery is the static part of a repository's list statement
type listQuery struct {
	selectFrom  string
	countFrom   string
	filters     map[string]filter
	sortable    map[string]string
	defaultSort string
}

func (q listQuery) where(params ListParams) (string, []any) {
	keys := make([]string, 0, len(params.Filters))
	for k := range params.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var clauses []string
	var args []any
	for _, k := range keys {
		f, known := q.filters[k]
		if !known {
			continue
		}
		clause, arg, ok := f(params.Filters[k], fmt.Sprintf("$%d", len(args)+1))
		if !ok {
			continue
		}
		clauses = append(clauses, clause)
		args = append(args, arg)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (q listQuery) orderBy(params ListParams) string {
	column, ok := q.sortable[params.OrderBy]
	if !ok {
		column = q.defaultSort
	}
	order := SortOrderAsc
	if params.OrderDesc {
		order = SortOrderDesc
	}
	return fmt.Sprintf(" ORDER BY %s %s", column, order)
}

// listRows runs the count and the windowed select for q
func listRows[T any](ctx context.Context, exec database.DBTX, q listQuery, params ListParams, resource string, scan func(rowScanner) (T, error)) ([]T, int, error) {
	where, args := q.where(params)

	var total int
	if err := exec.QueryRowContext(ctx, q.countFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, mapStoreError(fmt.Errorf("failed to count %s: %w", resource, err), resource)
	}

	query := q.selectFrom + where + q.orderBy(params) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, params.Limit, params.Skip)

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapStoreError(fmt.Errorf("failed to list %s: %w", resource, err), resource)
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, 0, mapStoreError(fmt.Errorf("failed to scan %s: %w", resource, err), resource)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, mapStoreError(fmt.Errorf("error iterating %s: %w", resource, err), resource)
	}

	return items, total, nil
}

// updateColumn declares an updatable column; timestamp columns accept strings
type updateColumn struct {
	timestamp bool
}

// buildUpdate renders UPDATE ... SET for the supplied fields only
func buildUpdate(table string, id uuid.UUID, fields map[string]any, columns map[string]updateColumn, touchUpdatedAt bool, dates DateMode) (string, []any, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if _, ok := columns[k]; !ok {
			return "", nil, domain.Validation("field %q cannot be updated", k)
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return "", nil, domain.Validation("no fields to update")
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys)+1)
	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		value := fields[k]
		if columns[k].timestamp {
			if s, ok := value.(string); ok {
				parsed, err := dates.Parse(s)
				if err != nil {
					return "", nil, err
				}
				value = parsed
			}
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", k, len(args)))
	}
	if touchUpdatedAt {
		sets = append(sets, "updated_at = NOW()")
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(sets, ", "), len(args))
	return query, args, nil
}

// DateMode controls how timestamp strings in partial updates are parsed
type DateMode struct {
	Lenient bool
	Now     func() time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse accepts the common ISO-8601 shapes. A malformed value is a validation
// error unless the mode is lenient, in which case it becomes the current time.
func (m DateMode) Parse(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	if m.Lenient {
		now := time.Now
		if m.Now != nil {
			now = m.Now
		}
		return now().UTC(), nil
	}
	return time.Time{}, domain.Validation("invalid timestamp %q", value)
}

// utc converts scanned timestamps in place; the driver returns them in the local zone
func utc(ts ...*time.Time) {
	for _, t := range ts {
		*t = t.UTC()
	}
}

func rowsAffected(result interface{ RowsAffected() (int64, error) }) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgInvalidText         = "22P02"
)

// mapStoreError converts driver errors into domain errors. Constraint violations keep
// their meaning, anything else becomes an opaque internal error carrying the cause.
func mapStoreError(err error, resource string) error {
	if err == nil {
		return nil
	}

	var appErr *domain.Error
	if errors.As(err, &appErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if field := conflictField(pgErr.TableName, pgErr.ConstraintName); field != "" {
				return domain.AlreadyExists(resource, "%s with this %s already exists", resource, field)
			}
			return domain.AlreadyExists(resource, "%s already exists", resource)
		case pgForeignKeyViolation:
			if strings.Contains(pgErr.Detail, "is still referenced") {
				return domain.Validation("%s is still referenced by other records", resource)
			}
			return domain.Validation("%s references a record that does not exist", resource)
		case pgCheckViolation:
			return domain.Validation("%s violates constraint %s", resource, pgErr.ConstraintName)
		case pgInvalidText:
			return domain.Validation("invalid value for %s", resource)
		}
	}

	return domain.Internal(err)
}

// conflictField derives a readable field name from constraint names such as
// users_email_key, uq_product_variants_combination or uq_addresses_user_default.
func conflictField(table, constraint string) string {
	name := strings.TrimPrefix(constraint, "uq_")
	name = strings.TrimPrefix(name, table+"_")
	name = strings.TrimSuffix(name, "_key")
	return strings.ReplaceAll(name, "_", " ")
}

func notFound(resource string, id uuid.UUID) error {
	return domain.NotFound(resource, "%s with id %s not found", resource, id)
}
