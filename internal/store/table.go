// ABOUTME: Maps tagged model structs to table definitions and DDL
// ABOUTME: Also converts between Go field values and SQLite column values

package store

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var timeType = reflect.TypeFor[time.Time]()

type column struct {
	name     string
	field    []int
	sqlType  string
	nullable bool
	pk       bool
	unique   bool
	indexed  bool
	def      string
	autoNow  bool
	base     reflect.Type
}

type table struct {
	name    string
	typ     reflect.Type
	columns []column
	pk      int
}

var tables sync.Map // reflect.Type -> *table

func tableFor[T Model]() (*table, error) {
	return tableOf(reflect.TypeFor[T]())
}

func tableOf(t reflect.Type) (*table, error) {
	if cached, ok := tables.Load(t); ok {
		return cached.(*table), nil
	}
	def, err := buildTable(t)
	if err != nil {
		return nil, err
	}
	actual, _ := tables.LoadOrStore(t, def)
	return actual.(*table), nil
}

func buildTable(t reflect.Type) (*table, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrInvalidModel, t)
	}
	m, ok := reflect.Zero(t).Interface().(Model)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no TableName method", ErrInvalidModel, t)
	}
	def := &table{name: m.TableName(), typ: t, pk: -1}
	for i := range t.NumField() {
		f := t.Field(i)
		tag, ok := f.Tag.Lookup("db")
		if !ok || tag == "-" || !f.IsExported() {
			continue
		}
		col, err := parseColumn(f, tag)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidModel, t.Name(), f.Name, err)
		}
		if col.pk {
			if def.pk >= 0 {
				return nil, fmt.Errorf("%w: %s has more than one primary key", ErrInvalidModel, t.Name())
			}
			def.pk = len(def.columns)
		}
		def.columns = append(def.columns, col)
	}
	if len(def.columns) == 0 {
		return nil, fmt.Errorf("%w: %s has no columns", ErrInvalidModel, t.Name())
	}
	return def, nil
}

func parseColumn(f reflect.StructField, tag string) (column, error) {
	parts := strings.Split(tag, ",")
	col := column{name: parts[0], field: f.Index, base: f.Type}
	if col.name == "" {
		return col, fmt.Errorf("empty column name")
	}
	if col.base.Kind() == reflect.Pointer {
		col.nullable = true
		col.base = col.base.Elem()
	}
	size := 0
	for _, opt := range parts[1:] {
		key, value, _ := strings.Cut(opt, "=")
		switch key {
		case "pk":
			col.pk = true
		case "unique":
			col.unique = true
		case "index":
			col.indexed = true
		case "autonow":
			col.autoNow = true
		case "default":
			col.def = value
		case "size":
			n, err := strconv.Atoi(value)
			if err != nil {
				return col, fmt.Errorf("bad size %q", value)
			}
			size = n
		default:
			return col, fmt.Errorf("unknown option %q", key)
		}
	}
	switch {
	case col.base == timeType:
		col.sqlType = "DATETIME"
	case col.base.Kind() == reflect.String:
		col.sqlType = "TEXT"
		if size > 0 {
			col.sqlType = fmt.Sprintf("VARCHAR(%d)", size)
		}
	case col.base.Kind() == reflect.Bool:
		col.sqlType = "BOOLEAN"
	case col.base.Kind() >= reflect.Int && col.base.Kind() <= reflect.Int64:
		col.sqlType = "INTEGER"
	case col.base.Kind() == reflect.Float32 || col.base.Kind() == reflect.Float64:
		col.sqlType = "REAL"
	default:
		return col, fmt.Errorf("unsupported field type %s", f.Type)
	}
	if col.pk && (col.sqlType != "INTEGER" || col.nullable) {
		return col, fmt.Errorf("primary key must be a plain integer")
	}
	return col, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// definition renders the column for CREATE TABLE. When forAlter is set a NOT
// NULL column without a default gets the zero literal, which ALTER TABLE needs.
func (c column) definition(forAlter bool) string {
	if c.pk {
		return quoteIdent(c.name) + " INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	var b strings.Builder
	b.WriteString(quoteIdent(c.name))
	b.WriteString(" ")
	b.WriteString(c.sqlType)
	if !c.nullable {
		b.WriteString(" NOT NULL")
	}
	def := c.def
	if def == "" && forAlter && !c.nullable {
		def = c.zeroLiteral(time.Now())
	}
	if def != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(def)
	}
	return b.String()
}

// zeroLiteral is the SQL literal substituted for NULL in a NOT NULL column.
func (c column) zeroLiteral(now time.Time) string {
	switch c.sqlType {
	case "INTEGER", "REAL", "BOOLEAN":
		return "0"
	case "DATETIME":
		return "'" + now.UTC().Format(timeLayout) + "'"
	}
	return "''"
}

func (t *table) createSQL() string {
	defs := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		defs = append(defs, c.definition(false))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quoteIdent(t.name), strings.Join(defs, ",\n\t"))
}

func (t *table) indexSQL() []string {
	var stmts []string
	for _, c := range t.columns {
		if c.pk || (!c.indexed && !c.unique) {
			continue
		}
		kind := "INDEX"
		if c.unique {
			kind = "UNIQUE INDEX"
		}
		stmts = append(stmts, fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)",
			kind, quoteIdent("ix_"+t.name+"_"+c.name), quoteIdent(t.name), quoteIdent(c.name)))
	}
	return stmts
}

func (t *table) column(name string) (column, bool) {
	for _, c := range t.columns {
		if c.name == name {
			return c, true
		}
	}
	return column{}, false
}

func (t *table) columnList(skipPK bool) []string {
	names := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if skipPK && c.pk {
			continue
		}
		names = append(names, quoteIdent(c.name))
	}
	return names
}

// value returns the driver value stored for the column's field in row.
func (c column) value(row reflect.Value) any {
	v := row.FieldByIndex(c.field)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Type() == timeType {
		return v.Interface().(time.Time).UTC().Format(timeLayout)
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Float32, reflect.Float64:
		return v.Float()
	}
	return v.Interface()
}

// stampNow fills zero autonow fields with now.
func (c column) stampNow(row reflect.Value, now time.Time) {
	if !c.autoNow {
		return
	}
	v := row.FieldByIndex(c.field)
	if !v.IsZero() {
		return
	}
	switch {
	case v.Type() == timeType:
		v.Set(reflect.ValueOf(now))
	case v.Kind() == reflect.String:
		v.SetString(now.Format(time.RFC3339Nano))
	}
}

// assign stores a scanned column value into the field, converting between
// the loose types SQLite drivers return and the field's declared type.
func (c column) assign(row reflect.Value, src any) error {
	v := row.FieldByIndex(c.field)
	if b, ok := src.([]byte); ok {
		src = string(b)
	}
	if src == nil {
		v.SetZero()
		return nil
	}
	if v.Kind() == reflect.Pointer {
		p := reflect.New(v.Type().Elem())
		if err := assignScalar(p.Elem(), src); err != nil {
			return fmt.Errorf("column %s: %w", c.name, err)
		}
		v.Set(p)
		return nil
	}
	if err := assignScalar(v, src); err != nil {
		return fmt.Errorf("column %s: %w", c.name, err)
	}
	return nil
}

func assignScalar(v reflect.Value, src any) error {
	if v.Type() == timeType {
		t, err := cast.ToTimeE(src)
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(t))
		return nil
	}
	switch v.Kind() {
	case reflect.String:
		if t, ok := src.(time.Time); ok {
			v.SetString(t.Format(time.RFC3339Nano))
			return nil
		}
		s, err := cast.ToStringE(src)
		if err != nil {
			return err
		}
		v.SetString(s)
	case reflect.Bool:
		b, err := cast.ToBoolE(src)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(src)
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(src)
		if err != nil {
			return err
		}
		v.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field type %s", v.Type())
	}
	return nil
}
