// ABOUTME: Errors, the Querier abstraction and the registered model list
// ABOUTME: Shared by the SQLite store, the generic row helpers and schema maintenance

package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// ErrConstraint is returned when a write violates a UNIQUE or NOT NULL constraint
var ErrConstraint = errors.New("constraint violation")

// ErrUnknownDriver is returned for a driver name other than sqlite or sqlite3
var ErrUnknownDriver = errors.New("unknown database driver")

// ErrInvalidModel is returned when a model struct cannot be mapped to a table
var ErrInvalidModel = errors.New("invalid model")

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// Model is a struct persisted in its own table.
type Model interface {
	TableName() string
}

// Models lists every persisted model in creation order.
func Models() []Model {
	return []Model{
		ChatStreams{},
		LLMUsage{},
		Emoji{},
		Messages{},
		Images{},
		ImageDescriptions{},
		OnlineTime{},
		PersonInfo{},
		GroupInfo{},
		Expression{},
		ActionRecords{},
		MemoryChest{},
		MemoryConflict{},
	}
}

// isConstraintViolation checks if the error is a SQLite constraint failure
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}
