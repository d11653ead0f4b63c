// ABOUTME: SQLite connection setup and the transaction session helper
// ABOUTME: Supports the pure-Go modernc driver and the cgo mattn driver

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Registered driver names. DriverModernc is pure Go and the default;
// DriverMattn needs cgo.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithDriver selects the database/sql driver name.
func WithDriver(name string) Option {
	return func(s *SQLiteStore) { s.driver = name }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// SQLiteStore owns the database handle. There is no package-level engine;
// callers pass the store (or its DB) to whatever needs it.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	driver string
	path   string
}

// NewSQLiteStore opens the database at path. Parent directories are created
// if needed. Every pooled connection gets the WAL, cache, foreign key,
// synchronous and busy timeout pragmas through the DSN. Tables are not
// created here; call Initialize.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		logger: slog.Default().With("module", "database"),
		driver: DriverModernc,
		path:   path,
	}
	for _, opt := range opts {
		opt(s)
	}

	dsn, err := buildDSN(s.driver, path)
	if err != nil {
		return nil, err
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(s.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// each connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	s.db = db

	s.logger.Info("SQLite store opened", "path", path, "driver", s.driver)
	return s, nil
}

func buildDSN(driver, path string) (string, error) {
	var params []string
	switch driver {
	case DriverModernc:
		params = []string{
			"_pragma=journal_mode(WAL)",
			"_pragma=cache_size(-64000)",
			"_pragma=foreign_keys(1)",
			"_pragma=synchronous(NORMAL)",
			"_pragma=busy_timeout(1000)",
		}
	case DriverMattn:
		params = []string{
			"_journal_mode=WAL",
			"_cache_size=-64000",
			"_foreign_keys=on",
			"_synchronous=NORMAL",
			"_busy_timeout=1000",
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	return path + "?" + strings.Join(params, "&"), nil
}

// DB returns the underlying handle.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Driver returns the database/sql driver name in use.
func (s *SQLiteStore) Driver() string {
	return s.driver
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Session runs fn inside a transaction. With autoCommit the transaction is
// committed when fn returns nil; without it fn must call tx.Commit itself and
// anything left uncommitted is rolled back. An error or panic from fn rolls
// back. The transaction is always finished when Session returns.
func (s *SQLiteStore) Session(ctx context.Context, autoCommit bool, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}

	if !autoCommit {
		// no-op when fn already committed
		_ = tx.Rollback()
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
