// ABOUTME: Schema reflector: walks a struct type once and caches its field table
// ABOUTME: Enforces the data-only rule, parses default literals, attaches descriptions

package schema

import (
	"fmt"
	"maps"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/BurntSushi/toml"
)

// Field describes one configuration key of a schema type.
type Field struct {
	Name     string // Go field name
	Key      string // configuration key
	Index    int
	Type     reflect.Type
	Required bool
	Secret   bool
	Internal bool
	OneOf    []string
	Doc      string

	hasDefault bool
	defaultRaw any
}

// Info is the cached reflection result for a schema type.
type Info struct {
	Type   reflect.Type
	Fields []Field
	Docs   map[string]string
}

// Field returns the field with the given key, or nil.
func (i *Info) Field(key string) *Field {
	for n := range i.Fields {
		if i.Fields[n].Key == key {
			return &i.Fields[n]
		}
	}
	return nil
}

type inspection struct {
	info *Info
	err  error
}

var (
	inspected    sync.Map // reflect.Type -> *inspection
	descriptions sync.Map // reflect.Type -> map[string]string
)

// Describe registers field descriptions for T. Keys are configuration keys;
// an entry here replaces the field's comment tag. It returns the map so it
// can be used in a package-level var declaration.
func Describe[T any](docs map[string]string) map[string]string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	descriptions.Store(t, docs)
	inspected.Delete(t)
	return docs
}

// Inspect returns the field table of a schema struct type. The result, or the
// structural error, is computed once per type.
func Inspect(t reflect.Type) (*Info, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := inspected.Load(t); ok {
		c := cached.(*inspection)
		return c.info, c.err
	}
	info, err := inspect(t)
	actual, _ := inspected.LoadOrStore(t, &inspection{info: info, err: err})
	c := actual.(*inspection)
	return c.info, c.err
}

// Docs returns the description of every documented field of v's type, keyed
// by configuration key.
func Docs(v any) (map[string]string, error) {
	info, err := Inspect(reflect.TypeOf(v))
	if err != nil {
		return nil, err
	}
	return maps.Clone(info.Docs), nil
}

func inspect(t reflect.Type) (*Info, error) {
	if !IsRecord(t) {
		return nil, errorf(ErrNotSchema, "%s is not a schema struct", t.String())
	}
	if err := checkMethods(t); err != nil {
		return nil, err
	}

	info := &Info{Type: t, Docs: make(map[string]string)}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		if sf.Anonymous {
			return nil, errorf(ErrUnsupportedType, "%s.%s: embedded fields are not supported", t.Name(), sf.Name)
		}
		name, opts := parseTag(sf.Tag.Get("toml"))
		if name == "-" {
			continue
		}
		if name == "" {
			name = snakeCase(sf.Name)
		}
		if err := checkType(sf.Type); err != nil {
			return nil, errorf(ErrUnsupportedType, "%s.%s: %v", t.Name(), sf.Name, err)
		}

		f := Field{
			Name:     sf.Name,
			Key:      name,
			Index:    i,
			Type:     sf.Type,
			Required: opts["required"],
			Secret:   opts["secret"],
			Internal: strings.HasPrefix(name, "_"),
			Doc:      normalizeDoc(sf.Tag.Get("comment")),
		}
		if allowed, ok := sf.Tag.Lookup("oneof"); ok {
			for _, a := range strings.Split(allowed, ",") {
				f.OneOf = append(f.OneOf, strings.TrimSpace(a))
			}
		}
		if lit, ok := sf.Tag.Lookup("default"); ok {
			raw, err := parseDefault(sf.Type, lit)
			if err == nil {
				_, err = convert(raw, f.Type, fieldOpts{oneOf: f.OneOf}, nil)
			}
			if err != nil {
				return nil, errorf(ErrInvalidDefault, "%s.%s: default %q: %v", t.Name(), sf.Name, lit, err)
			}
			f.hasDefault, f.defaultRaw = true, raw
		}
		info.Fields = append(info.Fields, f)
	}

	if side, ok := descriptions.Load(t); ok {
		for key, doc := range side.(map[string]string) {
			f := info.Field(key)
			if f == nil {
				return nil, errorf(ErrUnknownDescription, "%s has no field %q to describe", t.Name(), key)
			}
			f.Doc = normalizeDoc(doc)
		}
	}
	for _, f := range info.Fields {
		if f.Doc != "" {
			info.Docs[f.Key] = f.Doc
		}
	}
	return info, nil
}

// checkMethods enforces that the only exported method of a schema type is
// the Validate hook.
func checkMethods(t reflect.Type) error {
	pt := reflect.PointerTo(t)
	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		if m.Name != "Validate" {
			return errorf(ErrMethodNotAllowed, "schema type %s may not define method %s, only Validate", t.Name(), m.Name)
		}
		// Method type includes the receiver.
		if m.Type.NumIn() != 1 || m.Type.NumOut() != 1 || m.Type.Out(0) != errorType {
			return errorf(ErrMethodNotAllowed, "schema type %s: Validate must have signature func() error", t.Name())
		}
	}
	return nil
}

func checkType(t reflect.Type) error {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Interface:
		return nil
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return checkType(t.Elem())
	case reflect.Map:
		switch t.Key().Kind() {
		case reflect.Map, reflect.Slice, reflect.Struct, reflect.Pointer, reflect.Interface:
			return fmt.Errorf("map key type %s is not a scalar", t.Key())
		}
		if IsSet(t) {
			return checkType(t.Key())
		}
		return checkType(t.Elem())
	case reflect.Struct:
		if t == timeType {
			return fmt.Errorf("time.Time is not supported")
		}
		if isTupleStruct(t) {
			for _, i := range tupleItems(t) {
				if err := checkType(t.Field(i).Type); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return fmt.Errorf("type %s is not supported", t)
}

func parseTag(tag string) (string, map[string]bool) {
	parts := strings.Split(tag, ",")
	opts := make(map[string]bool, len(parts)-1)
	for _, p := range parts[1:] {
		opts[strings.TrimSpace(p)] = true
	}
	return strings.TrimSpace(parts[0]), opts
}

// parseDefault turns a default tag into a raw value. String-kinded fields take
// the tag text verbatim; everything else is read as a TOML value.
func parseDefault(t reflect.Type, lit string) (any, error) {
	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Kind() == reflect.String {
		return lit, nil
	}
	var doc map[string]any
	if _, err := toml.Decode("v = "+lit, &doc); err != nil {
		return nil, err
	}
	return doc["v"], nil
}

// normalizeDoc trims surrounding blank lines and strips every line.
func normalizeDoc(doc string) string {
	lines := strings.Split(doc, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// snakeCase converts a Go identifier to a configuration key:
// APIKey -> api_key, MaxRetry -> max_retry, HTTP2Port -> http2_port.
func snakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
