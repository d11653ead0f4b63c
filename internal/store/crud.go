// ABOUTME: Generic row helpers for any registered model
// ABOUTME: Insert, Get, Find, Count, Update and Delete work on *sql.DB or *sql.Tx alike

package store

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Insert writes row and sets its primary key from the generated id.
// Zero autonow fields are stamped with the current time first.
func Insert[T Model](ctx context.Context, q Querier, row *T) error {
	def, err := tableFor[T]()
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(row).Elem()
	now := time.Now()

	names := make([]string, 0, len(def.columns))
	args := make([]any, 0, len(def.columns))
	for _, c := range def.columns {
		if c.pk && rv.FieldByIndex(c.field).Int() == 0 {
			continue
		}
		c.stampNow(rv, now)
		names = append(names, quoteIdent(c.name))
		args = append(args, c.value(rv))
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(def.name), strings.Join(names, ", "), placeholders(len(names)))

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: inserting into %s: %v", ErrConstraint, def.name, err)
		}
		return fmt.Errorf("inserting into %s: %w", def.name, err)
	}
	if def.pk >= 0 {
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting insert id: %w", err)
		}
		rv.FieldByIndex(def.columns[def.pk].field).SetInt(id)
	}
	return nil
}

// Get loads the row with the given primary key.
// Returns ErrNotFound if it doesn't exist.
func Get[T Model](ctx context.Context, q Querier, id int64) (*T, error) {
	def, err := tableFor[T]()
	if err != nil {
		return nil, err
	}
	if def.pk < 0 {
		return nil, fmt.Errorf("%w: %s has no primary key", ErrInvalidModel, def.name)
	}
	rows, err := Find[T](ctx, q, quoteIdent(def.columns[def.pk].name)+" = ?", id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// Find returns the rows matching where, ordered by primary key. An empty
// where selects every row.
func Find[T Model](ctx context.Context, q Querier, where string, args ...any) ([]*T, error) {
	def, err := tableFor[T]()
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(def.columnList(false), ", "), quoteIdent(def.name))
	if where != "" {
		query += " WHERE " + where
	}
	if def.pk >= 0 {
		query += " ORDER BY " + quoteIdent(def.columns[def.pk].name)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", def.name, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*T
	for rows.Next() {
		row, err := scanRow[T](def, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", def.name, err)
	}
	return out, nil
}

// Count returns the number of rows matching where.
func Count[T Model](ctx context.Context, q Querier, where string, args ...any) (int64, error) {
	def, err := tableFor[T]()
	if err != nil {
		return 0, err
	}
	query := "SELECT COUNT(*) FROM " + quoteIdent(def.name)
	if where != "" {
		query += " WHERE " + where
	}
	var n int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", def.name, err)
	}
	return n, nil
}

// Update rewrites every column of the row identified by its primary key.
// Returns ErrNotFound if no row matched.
func Update[T Model](ctx context.Context, q Querier, row *T) error {
	def, err := tableFor[T]()
	if err != nil {
		return err
	}
	if def.pk < 0 {
		return fmt.Errorf("%w: %s has no primary key", ErrInvalidModel, def.name)
	}
	rv := reflect.ValueOf(row).Elem()

	sets := make([]string, 0, len(def.columns))
	args := make([]any, 0, len(def.columns))
	for _, c := range def.columns {
		if c.pk {
			continue
		}
		sets = append(sets, quoteIdent(c.name)+" = ?")
		args = append(args, c.value(rv))
	}
	pk := def.columns[def.pk]
	args = append(args, pk.value(rv))
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		quoteIdent(def.name), strings.Join(sets, ", "), quoteIdent(pk.name))

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: updating %s: %v", ErrConstraint, def.name, err)
		}
		return fmt.Errorf("updating %s: %w", def.name, err)
	}
	return expectAffected(result)
}

// Delete removes the row with the given primary key.
// Returns ErrNotFound if it doesn't exist.
func Delete[T Model](ctx context.Context, q Querier, id int64) error {
	def, err := tableFor[T]()
	if err != nil {
		return err
	}
	if def.pk < 0 {
		return fmt.Errorf("%w: %s has no primary key", ErrInvalidModel, def.name)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(def.name), quoteIdent(def.columns[def.pk].name))
	result, err := q.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", def.name, err)
	}
	return expectAffected(result)
}

func expectAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRow[T Model](def *table, rows *sql.Rows) (*T, error) {
	raw := make([]any, len(def.columns))
	dest := make([]any, len(def.columns))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scanning %s row: %w", def.name, err)
	}
	row := new(T)
	rv := reflect.ValueOf(row).Elem()
	for i, c := range def.columns {
		if err := c.assign(rv, raw[i]); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", def.name, err)
		}
	}
	return row, nil
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
