// Package store persists MaiBot's chat, memory and usage data in SQLite.
//
// # Models
//
// Each table is a plain struct implementing Model. Columns come from db tags:
//
//	StreamID string  `db:"stream_id,unique,index,size=255"`
//	TimeCost *float64 `db:"time_cost"`
//
// Tag options are pk, unique, index, size=N, default=LITERAL and autonow.
// Pointer fields map to nullable columns; everything else is NOT NULL.
// Models lists the registered tables in creation order.
//
// # Access
//
// Insert, Get, Find, Count, Update and Delete are generic over the model and
// take a Querier, so the same call works on the store's *sql.DB or inside a
// transaction opened by SQLiteStore.Session.
//
// # SQLite Configuration
//
// Both the pure-Go driver (modernc.org/sqlite, "sqlite") and the cgo driver
// (github.com/mattn/go-sqlite3, "sqlite3") are supported. Every connection
// is opened with:
//
//	journal_mode=WAL
//	cache_size=-64000
//	foreign_keys=ON
//	synchronous=NORMAL
//	busy_timeout=1000
//
// # Maintenance
//
// Initialize creates missing tables, adds missing columns and reports
// columns the models no longer declare. With constraint syncing enabled it
// rebuilds tables whose NULL constraints differ from the models.
// CheckConstraints previews that drift and FixImageIDs backfills empty image
// ids.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested row does not exist
//   - ErrConstraint: A write violated a UNIQUE or NOT NULL constraint
//   - ErrUnknownDriver: Driver name is neither sqlite nor sqlite3
package store
