// ABOUTME: Schema maintenance: table creation, column sync and NULL constraint repair
// ABOUTME: Also backfills missing image ids left by older database versions

package store

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InitReport summarizes what Initialize changed.
type InitReport struct {
	CreatedTables []string
	AddedColumns  map[string][]string
	ExtraColumns  map[string][]string
	Rebuilt       []string
}

// ConstraintIssue is a column whose NULL constraint in the database differs
// from the model.
type ConstraintIssue struct {
	Column        string
	ModelNullable bool
	DBNullable    bool
}

// Action names the repair: allow_null or disallow_null.
func (i ConstraintIssue) Action() string {
	if i.ModelNullable {
		return "allow_null"
	}
	return "disallow_null"
}

func nullLabel(nullable bool) string {
	if nullable {
		return "NULL"
	}
	return "NOT NULL"
}

type dbColumn struct {
	name    string
	notNull bool
	pk      bool
}

func modelTables() ([]*table, error) {
	models := Models()
	defs := make([]*table, 0, len(models))
	for _, m := range models {
		def, err := tableOf(reflect.TypeOf(m))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func existingTables(ctx context.Context, q Querier) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		names[name] = true
	}
	return names, rows.Err()
}

func tableColumns(ctx context.Context, q Querier, name string) ([]dbColumn, error) {
	rows, err := q.QueryContext(ctx, `SELECT name, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, name)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []dbColumn
	for rows.Next() {
		var (
			col     dbColumn
			notNull int64
			pk      int64
		)
		if err := rows.Scan(&col.name, &notNull, &pk); err != nil {
			return nil, fmt.Errorf("scanning column of %s: %w", name, err)
		}
		col.notNull = notNull != 0
		col.pk = pk != 0
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func createTable(ctx context.Context, q Querier, def *table) error {
	if _, err := q.ExecContext(ctx, def.createSQL()); err != nil {
		return fmt.Errorf("creating table %s: %w", def.name, err)
	}
	return ensureIndexes(ctx, q, def)
}

func ensureIndexes(ctx context.Context, q Querier, def *table) error {
	for _, stmt := range def.indexSQL() {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating index on %s: %w", def.name, err)
		}
	}
	return nil
}

// Initialize creates missing tables and indexes and adds columns the models
// declare but the database lacks. Columns the models don't know are reported
// and left alone, since SQLite cannot drop them in place. With
// syncConstraints, tables whose NULL constraints drifted are rebuilt.
func (s *SQLiteStore) Initialize(ctx context.Context, syncConstraints bool) (*InitReport, error) {
	defs, err := modelTables()
	if err != nil {
		return nil, err
	}
	existing, err := existingTables(ctx, s.db)
	if err != nil {
		return nil, err
	}

	report := &InitReport{
		AddedColumns: make(map[string][]string),
		ExtraColumns: make(map[string][]string),
	}
	for _, def := range defs {
		if !existing[def.name] {
			s.logger.Warn("table not found, creating", "table", def.name)
			if err := createTable(ctx, s.db, def); err != nil {
				return nil, err
			}
			report.CreatedTables = append(report.CreatedTables, def.name)
			continue
		}

		added, extra, err := s.syncColumns(ctx, def)
		if err != nil {
			return nil, err
		}
		if len(added) > 0 {
			report.AddedColumns[def.name] = added
		}
		if len(extra) > 0 {
			report.ExtraColumns[def.name] = extra
		}
		if err := ensureIndexes(ctx, s.db, def); err != nil {
			return nil, err
		}
	}

	if syncConstraints {
		s.logger.Debug("syncing column constraints")
		rebuilt, err := s.syncConstraints(ctx, defs)
		if err != nil {
			return nil, err
		}
		report.Rebuilt = rebuilt
	}

	s.logger.Info("database initialized")
	return report, nil
}

func (s *SQLiteStore) syncColumns(ctx context.Context, def *table) (added, extra []string, err error) {
	cols, err := tableColumns(ctx, s.db, def.name)
	if err != nil {
		return nil, nil, err
	}
	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c.name] = true
	}

	var missing []column
	for _, c := range def.columns {
		if !c.pk && !have[c.name] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		s.logger.Warn("table is missing columns", "table", def.name, "count", len(missing))
	}
	for _, c := range missing {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(def.name), c.definition(true))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return nil, nil, fmt.Errorf("adding column %s to %s: %w", c.name, def.name, err)
		}
		s.logger.Info("column added", "table", def.name, "column", c.name)
		added = append(added, c.name)
	}

	for _, c := range cols {
		if _, ok := def.column(c.name); !ok {
			s.logger.Warn("table has a column the model does not declare; SQLite cannot drop it, remove it manually",
				"table", def.name, "column", c.name)
			extra = append(extra, c.name)
		}
	}
	return added, extra, nil
}

func constraintIssues(ctx context.Context, q Querier, def *table) ([]ConstraintIssue, error) {
	cols, err := tableColumns(ctx, q, def.name)
	if err != nil {
		return nil, err
	}
	var issues []ConstraintIssue
	for _, dc := range cols {
		c, ok := def.column(dc.name)
		if !ok || c.pk {
			continue
		}
		if c.nullable == dc.notNull {
			issues = append(issues, ConstraintIssue{
				Column:        c.name,
				ModelNullable: c.nullable,
				DBNullable:    !dc.notNull,
			})
		}
	}
	return issues, nil
}

// CheckConstraints reports NULL constraint drift per table without changing
// anything. Tables that don't exist yet are skipped.
func (s *SQLiteStore) CheckConstraints(ctx context.Context) (map[string][]ConstraintIssue, error) {
	defs, err := modelTables()
	if err != nil {
		return nil, err
	}
	existing, err := existingTables(ctx, s.db)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]ConstraintIssue)
	for _, def := range defs {
		if !existing[def.name] {
			continue
		}
		issues, err := constraintIssues(ctx, s.db, def)
		if err != nil {
			return nil, err
		}
		if len(issues) > 0 {
			out[def.name] = issues
		}
	}
	return out, nil
}

func (s *SQLiteStore) syncConstraints(ctx context.Context, defs []*table) ([]string, error) {
	existing, err := existingTables(ctx, s.db)
	if err != nil {
		return nil, err
	}

	var rebuilt []string
	for _, def := range defs {
		if !existing[def.name] {
			s.logger.Warn("table does not exist, skipping constraint check", "table", def.name)
			continue
		}
		issues, err := constraintIssues(ctx, s.db, def)
		if err != nil {
			return nil, err
		}
		if len(issues) == 0 {
			s.logger.Debug("constraints in sync", "table", def.name)
			continue
		}
		s.logger.Info("table needs constraint repair", "table", def.name, "columns", len(issues))
		if err := s.rebuildTable(ctx, def, issues); err != nil {
			return nil, err
		}
		rebuilt = append(rebuilt, def.name)
	}
	return rebuilt, nil
}

// rebuildTable recreates def from the model, copying rows through a backup
// table. NULLs in columns that become NOT NULL are replaced by the zero value
// of the column type. The backup is dropped only when row counts match.
func (s *SQLiteStore) rebuildTable(ctx context.Context, def *table, issues []ConstraintIssue) error {
	cols, err := tableColumns(ctx, s.db, def.name)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(cols))
	for _, c := range cols {
		present[c.name] = true
	}
	tightened := make(map[string]bool)
	for _, issue := range issues {
		if !issue.ModelNullable {
			tightened[issue.Column] = true
		}
	}

	now := time.Now()
	backup := fmt.Sprintf("%s_backup_%d", def.name, now.Unix())
	s.logger.Info("rebuilding table", "table", def.name, "backup", backup)

	err = s.Session(ctx, true, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s", quoteIdent(backup), quoteIdent(def.name))); err != nil {
			return fmt.Errorf("creating backup table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DROP TABLE "+quoteIdent(def.name)); err != nil {
			return fmt.Errorf("dropping table: %w", err)
		}
		if err := createTable(ctx, tx, def); err != nil {
			return err
		}

		var names, selects []string
		for _, c := range def.columns {
			if !present[c.name] {
				continue
			}
			name := quoteIdent(c.name)
			names = append(names, name)
			if tightened[c.name] {
				selects = append(selects, fmt.Sprintf("COALESCE(%s, %s)", name, c.zeroLiteral(now)))
			} else {
				selects = append(selects, name)
			}
		}
		copyRows := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
			quoteIdent(def.name), strings.Join(names, ", "), strings.Join(selects, ", "), quoteIdent(backup))
		if _, err := tx.ExecContext(ctx, copyRows); err != nil {
			return fmt.Errorf("restoring rows: %w", err)
		}

		var before, after int64
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(backup)).Scan(&before); err != nil {
			return fmt.Errorf("counting backup rows: %w", err)
		}
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(def.name)).Scan(&after); err != nil {
			return fmt.Errorf("counting restored rows: %w", err)
		}
		if before != after {
			s.logger.Error("row count mismatch after rebuild, keeping backup table",
				"table", def.name, "backup", backup, "before", before, "after", after)
			return nil
		}
		if _, err := tx.ExecContext(ctx, "DROP TABLE "+quoteIdent(backup)); err != nil {
			return fmt.Errorf("dropping backup table: %w", err)
		}
		s.logger.Info("rows restored", "table", def.name, "rows", after)
		return nil
	})
	if err != nil {
		return fmt.Errorf("rebuilding %s: %w", def.name, err)
	}

	for _, issue := range issues {
		s.logger.Info("constraint fixed", "table", def.name, "column", issue.Column,
			"from", nullLabel(issue.DBNullable), "to", nullLabel(issue.ModelNullable))
	}
	return nil
}

// FixImageIDs assigns a random UUID to every image with an empty or NULL
// image_id and returns how many were fixed.
func (s *SQLiteStore) FixImageIDs(ctx context.Context) (int, error) {
	var fixed int
	err := s.Session(ctx, true, func(tx *sql.Tx) error {
		images, err := Find[Images](ctx, tx, `"image_id" = '' OR "image_id" IS NULL`)
		if err != nil {
			return err
		}
		for _, img := range images {
			img.ImageID = uuid.NewString()
			if err := Update(ctx, tx, img); err != nil {
				return err
			}
			s.logger.Info("image id assigned", "id", img.ID, "image_id", img.ImageID)
		}
		fixed = len(images)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("fixing image ids: %w", err)
	}
	s.logger.Info("image ids fixed", "count", fixed)
	return fixed, nil
}
