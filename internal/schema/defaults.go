// ABOUTME: Default construction of schema structs from their default tags
// ABOUTME: Nested records are built recursively; collections start empty

package schema

import (
	"reflect"
)

// New returns a T with every field set to its default. Required fields are
// left at their zero value and Validate is not run.
func New[T any]() (*T, error) {
	out := new(T)
	v, err := NewValue(reflect.TypeOf(out).Elem())
	if err != nil {
		return nil, err
	}
	reflect.ValueOf(out).Elem().Set(v)
	return out, nil
}

// NewValue is the reflective form of New.
func NewValue(t reflect.Type) (reflect.Value, error) {
	info, err := Inspect(t)
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(t).Elem()
	for i := range info.Fields {
		f := &info.Fields[i]
		if f.Required {
			continue
		}
		dv, err := f.defaultValue()
		if err != nil {
			return reflect.Value{}, wrapField(f.Key, err)
		}
		out.Field(f.Index).Set(dv)
	}
	return out, nil
}

func (f *Field) defaultValue() (reflect.Value, error) {
	if f.hasDefault {
		return convert(f.defaultRaw, f.Type, fieldOpts{oneOf: f.OneOf}, nil)
	}
	return emptyValue(f.Type)
}

// emptyValue is the default of a field without a default tag.
func emptyValue(t reflect.Type) (reflect.Value, error) {
	switch {
	case IsRecord(t):
		return NewValue(t)
	case t.Kind() == reflect.Slice:
		return reflect.MakeSlice(t, 0, 0), nil
	case t.Kind() == reflect.Map:
		return reflect.MakeMap(t), nil
	}
	return reflect.Zero(t), nil
}
