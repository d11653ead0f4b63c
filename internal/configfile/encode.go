// ABOUTME: Serializes schema structs to commented TOML documents
// ABOUTME: Tables are laid out as scalars, then sub-tables, then arrays of tables

package configfile

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/Pomelo32141/MaiBot/internal/schema"
	"github.com/pelletier/go-toml/v2"
)

var ErrNotWritable = errors.New("only schema-derived types are writable")

var bareKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Encode renders v, a schema struct or a pointer to one, as a versioned TOML
// document.
func Encode(v any, version string, opts ...Option) ([]byte, error) {
	o := newOptions(opts)
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || !schema.IsRecord(rv.Type()) {
		return nil, fmt.Errorf("%w: got %s", ErrNotWritable, rv.Type())
	}
	info, err := schema.Inspect(rv.Type())
	if err != nil {
		return nil, err
	}

	e := &encoder{redact: o.redact}
	var tables []func() error
	for i := range info.Fields {
		f := &info.Fields[i]
		if !e.writes(f) {
			continue
		}
		fv := rv.Field(f.Index)
		switch {
		case schema.IsRecord(f.Type):
			tables = append(tables, func() error {
				return e.table([]string{f.Key}, fv, f.Doc, false)
			})
		case isRecordList(f.Type):
			if fv.Len() == 0 {
				// A key/value pair must precede the first table header.
				if err := e.keyValue(f.Key, []any{}); err != nil {
					return nil, err
				}
				continue
			}
			tables = append(tables, func() error {
				return e.tableArray([]string{f.Key}, fv, f.Doc)
			})
		default:
			return nil, fmt.Errorf("%w: top-level field %q is %s", ErrNotWritable, f.Key, schema.TypeName(f.Type))
		}
	}

	if e.buf.Len() > 0 {
		e.buf.WriteByte('\n')
	}
	e.buf.WriteString("[inner]\n")
	if err := e.keyValue("version", version); err != nil {
		return nil, err
	}
	for _, write := range tables {
		e.buf.WriteByte('\n')
		if err := write(); err != nil {
			return nil, err
		}
	}
	return e.buf.Bytes(), nil
}

// Plain converts v, a schema struct or a pointer to one, into nested maps,
// slices and scalars keyed by config key. Secret fields are left out when
// WithRedaction is given.
func Plain(v any, opts ...Option) (map[string]any, error) {
	o := newOptions(opts)
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || !schema.IsRecord(rv.Type()) {
		return nil, fmt.Errorf("%w: got %s", ErrNotWritable, rv.Type())
	}
	p, _, err := plainValue(rv, o.redact)
	if err != nil {
		return nil, err
	}
	return p.(map[string]any), nil
}

type encoder struct {
	buf    bytes.Buffer
	redact bool
}

func (e *encoder) writes(f *schema.Field) bool {
	return !f.Internal && !(f.Secret && e.redact)
}

func (e *encoder) table(path []string, v reflect.Value, doc string, array bool) error {
	e.comment(doc)
	if array {
		fmt.Fprintf(&e.buf, "[[%s]]\n", headerKey(path))
	} else {
		fmt.Fprintf(&e.buf, "[%s]\n", headerKey(path))
	}

	info, err := schema.Inspect(v.Type())
	if err != nil {
		return err
	}
	var subs, lists []*schema.Field
	for i := range info.Fields {
		f := &info.Fields[i]
		if !e.writes(f) {
			continue
		}
		fv := v.Field(f.Index)
		switch {
		case schema.IsRecord(f.Type):
			subs = append(subs, f)
		case isRecordList(f.Type) && fv.Len() > 0:
			lists = append(lists, f)
		default:
			plain, ok, err := plainValue(fv, e.redact)
			if err != nil {
				return fmt.Errorf("field %q: %w", f.Key, err)
			}
			if !ok {
				continue
			}
			e.comment(f.Doc)
			if err := e.keyValue(f.Key, plain); err != nil {
				return err
			}
			if strings.Contains(f.Doc, "\n") {
				e.buf.WriteByte('\n')
			}
		}
	}

	for _, f := range subs {
		e.buf.WriteByte('\n')
		if err := e.table(append(slices.Clone(path), f.Key), v.Field(f.Index), f.Doc, false); err != nil {
			return err
		}
	}
	for _, f := range lists {
		e.buf.WriteByte('\n')
		if err := e.tableArray(append(slices.Clone(path), f.Key), v.Field(f.Index), f.Doc); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) tableArray(path []string, list reflect.Value, doc string) error {
	for i := 0; i < list.Len(); i++ {
		if i > 0 {
			e.buf.WriteByte('\n')
			doc = ""
		}
		if err := e.table(path, list.Index(i), doc, true); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) comment(doc string) {
	if doc == "" {
		return
	}
	for _, line := range strings.Split(doc, "\n") {
		if line == "" {
			e.buf.WriteString("#\n")
			continue
		}
		e.buf.WriteString("# " + line + "\n")
	}
}

func (e *encoder) keyValue(key string, value any) error {
	var b bytes.Buffer
	enc := toml.NewEncoder(&b)
	enc.SetTablesInline(true)
	enc.SetArraysMultiline(false)
	enc.SetIndentTables(false)
	if err := enc.Encode(map[string]any{key: value}); err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	e.buf.Write(b.Bytes())
	return nil
}

func headerKey(path []string) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = quoteKey(p)
	}
	return strings.Join(parts, ".")
}

func quoteKey(k string) string {
	if bareKey.MatchString(k) {
		return k
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)
	return `"` + r.Replace(k) + `"`
}

func isRecordList(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && schema.IsRecord(t.Elem())
}

// plainValue converts a field value into the types the TOML encoder
// understands. ok is false for values that are left out of the file.
func plainValue(v reflect.Value, redact bool) (any, bool, error) {
	t := v.Type()
	switch {
	case t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface:
		if v.IsNil() {
			return nil, false, nil
		}
		return plainValue(v.Elem(), redact)

	case t == reflect.TypeOf(time.Duration(0)):
		return time.Duration(v.Int()).String(), true, nil

	case schema.IsSet(t):
		keys := v.MapKeys()
		slices.SortFunc(keys, compareScalars)
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			p, _, err := plainValue(k, redact)
			if err != nil {
				return nil, false, err
			}
			out = append(out, p)
		}
		return out, true, nil

	case schema.IsTuple(t) && t.Kind() == reflect.Struct:
		out := make([]any, 0, schema.TupleLen(t))
		for i := 1; i < t.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			p, _, err := plainValue(v.Field(i), redact)
			if err != nil {
				return nil, false, err
			}
			out = append(out, p)
		}
		return out, true, nil

	case t.Kind() == reflect.Slice || t.Kind() == reflect.Array:
		out := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			p, ok, err := plainValue(v.Index(i), redact)
			if err != nil {
				return nil, false, err
			}
			if !ok {
				// TOML arrays cannot hold an absent element
				return nil, false, fmt.Errorf("%w: nil element at index %d", ErrNotWritable, i)
			}
			out = append(out, p)
		}
		return out, true, nil

	case t.Kind() == reflect.Map:
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			p, ok, err := plainValue(iter.Value(), redact)
			if err != nil {
				return nil, false, err
			}
			if !ok {
				return nil, false, fmt.Errorf("%w: nil value for key %v", ErrNotWritable, iter.Key().Interface())
			}
			out[fmt.Sprint(iter.Key().Interface())] = p
		}
		return out, true, nil

	case schema.IsRecord(t):
		info, err := schema.Inspect(t)
		if err != nil {
			return nil, false, err
		}
		out := make(map[string]any, len(info.Fields))
		for _, f := range info.Fields {
			if f.Internal || (f.Secret && redact) {
				continue
			}
			p, ok, err := plainValue(v.Field(f.Index), redact)
			if err != nil {
				return nil, false, err
			}
			if ok {
				out[f.Key] = p
			}
		}
		return out, true, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return v.Bool(), true, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), true, nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), true, nil
	case reflect.String:
		return v.String(), true, nil
	}
	return nil, false, fmt.Errorf("%w: %s", ErrNotWritable, schema.TypeName(t))
}

func compareScalars(a, b reflect.Value) int {
	switch a.Kind() {
	case reflect.String:
		return cmp.Compare(a.String(), b.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return cmp.Compare(a.Uint(), b.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float())
	case reflect.Bool:
		return cmp.Compare(fmt.Sprint(a.Bool()), fmt.Sprint(b.Bool()))
	}
	return cmp.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
}
