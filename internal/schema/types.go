// ABOUTME: Collection and hook types recognized by the schema package
// ABOUTME: Set, Tuple marker, Validator hook and the type classification helpers

package schema

import (
	"reflect"
	"time"
)

// Set is an unordered collection of unique values. It is written to TOML as a
// sorted array.
type Set[T comparable] map[T]struct{}

// NewSet returns a set holding items.
func NewSet[T comparable](items ...T) Set[T] {
	s := make(Set[T], len(items))
	s.Add(items...)
	return s
}

func (s Set[T]) Add(items ...T) {
	for _, it := range items {
		s[it] = struct{}{}
	}
}

func (s Set[T]) Has(item T) bool {
	_, ok := s[item]
	return ok
}

// Tuple marks a struct as a positional tuple when embedded as its first field.
// The remaining exported fields are the tuple items, in declaration order:
//
//	type TalkRule struct {
//	    schema.Tuple
//	    Target string
//	    Time   string
//	    Value  float64
//	}
//
// A tuple is stored as an array with exactly one element per item.
type Tuple struct{}

// Validator is the post-construction hook of a schema type. It runs after
// every field has been converted.
type Validator interface {
	Validate() error
}

var (
	tupleType     = reflect.TypeOf(Tuple{})
	emptyStruct   = reflect.TypeOf(struct{}{})
	durationType  = reflect.TypeOf(time.Duration(0))
	timeType      = reflect.TypeOf(time.Time{})
	errorType     = reflect.TypeOf((*error)(nil)).Elem()
	validatorType = reflect.TypeOf((*Validator)(nil)).Elem()
)

// IsTuple reports whether t is a Tuple struct or a fixed-size array.
func IsTuple(t reflect.Type) bool {
	return t.Kind() == reflect.Array || isTupleStruct(t)
}

func isTupleStruct(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t.NumField() > 0 &&
		t.Field(0).Anonymous && t.Field(0).Type == tupleType
}

// IsSet reports whether t is a Set (a map whose values are struct{}).
func IsSet(t reflect.Type) bool {
	return t.Kind() == reflect.Map && t.Elem() == emptyStruct
}

// IsRecord reports whether t is a nested schema struct.
func IsRecord(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && !isTupleStruct(t) && t != timeType
}

// tupleItems returns the field indexes of the positional items of a Tuple struct.
func tupleItems(t reflect.Type) []int {
	var idx []int
	for i := 1; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			idx = append(idx, i)
		}
	}
	return idx
}

// TupleLen returns the arity of a tuple type.
func TupleLen(t reflect.Type) int {
	if t.Kind() == reflect.Array {
		return t.Len()
	}
	return len(tupleItems(t))
}

// TypeName renders t the way error messages and docs refer to it,
// e.g. list[int], set[string], tuple[string, float64].
func TypeName(t reflect.Type) string {
	switch {
	case t == durationType:
		return "duration"
	case t.Kind() == reflect.Pointer:
		return "optional[" + TypeName(t.Elem()) + "]"
	case t.Kind() == reflect.Interface:
		return "any"
	case IsSet(t):
		return "set[" + TypeName(t.Key()) + "]"
	case t.Kind() == reflect.Map:
		return "map[" + TypeName(t.Key()) + ", " + TypeName(t.Elem()) + "]"
	case t.Kind() == reflect.Slice:
		return "list[" + TypeName(t.Elem()) + "]"
	case t.Kind() == reflect.Array:
		name := "tuple["
		for i := 0; i < t.Len(); i++ {
			if i > 0 {
				name += ", "
			}
			name += TypeName(t.Elem())
		}
		return name + "]"
	case isTupleStruct(t):
		name := "tuple["
		for i, fi := range tupleItems(t) {
			if i > 0 {
				name += ", "
			}
			name += TypeName(t.Field(fi).Type)
		}
		return name + "]"
	case t.Name() != "":
		return t.Name()
	}
	return t.String()
}

// kindOf names the shape of a raw value in TOML vocabulary.
func kindOf(raw any) string {
	if raw == nil {
		return "nil"
	}
	switch raw.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case time.Time:
		return "datetime"
	}
	switch reflect.TypeOf(raw).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "float"
	case reflect.Map:
		return "table"
	case reflect.Slice, reflect.Array:
		return "array"
	}
	return reflect.TypeOf(raw).String()
}
