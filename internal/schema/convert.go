// ABOUTME: Typed field converter: coerces raw TOML values into declared Go types
// ABOUTME: Handles optionals, records, lists, sets, tuples, maps, enums and scalars

package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

type fieldOpts struct {
	oneOf []string
}

// Convert coerces raw into a value of type t.
func Convert(raw any, t reflect.Type) (reflect.Value, error) {
	return convert(raw, t, fieldOpts{}, nil)
}

func convert(raw any, t reflect.Type, opts fieldOpts, d *Discrepancies) (reflect.Value, error) {
	switch {
	case t.Kind() == reflect.Pointer:
		if raw == nil {
			return reflect.Zero(t), nil
		}
		ev, err := convert(raw, t.Elem(), opts, d)
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(ev)
		return p, nil

	case t.Kind() == reflect.Interface:
		out := reflect.New(t).Elem()
		if raw == nil {
			return out, nil
		}
		rv := reflect.ValueOf(raw)
		if !rv.Type().AssignableTo(t) {
			return reflect.Value{}, errorf(ErrConvert, "cannot convert %s to %s", kindOf(raw), TypeName(t))
		}
		out.Set(rv)
		return out, nil

	case IsRecord(t):
		m, ok := raw.(map[string]any)
		if !ok {
			return reflect.Value{}, errorf(ErrExpectedMapping, "expected a table for %s, got %s", TypeName(t), kindOf(raw))
		}
		return loadRecord(t, m, d)

	case IsSet(t):
		items, err := sequence(raw, t)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.MakeMapWithSize(t, len(items))
		unit := reflect.New(emptyStruct).Elem()
		for i, it := range items {
			kv, err := convert(it, t.Key(), opts, d)
			if err != nil {
				return reflect.Value{}, wrapField(fmt.Sprintf("[%d]", i), err)
			}
			out.SetMapIndex(kv, unit)
		}
		return out, nil

	case IsTuple(t):
		items, err := sequence(raw, t)
		if err != nil {
			return reflect.Value{}, err
		}
		if want := TupleLen(t); len(items) != want {
			return reflect.Value{}, errorf(ErrArityMismatch, "expected %d items for %s, got %d", want, TypeName(t), len(items))
		}
		out := reflect.New(t).Elem()
		for i, it := range items {
			var dst reflect.Value
			if t.Kind() == reflect.Array {
				dst = out.Index(i)
			} else {
				dst = out.Field(tupleItems(t)[i])
			}
			v, err := convert(it, dst.Type(), fieldOpts{}, d)
			if err != nil {
				return reflect.Value{}, wrapField(fmt.Sprintf("[%d]", i), err)
			}
			dst.Set(v)
		}
		return out, nil

	case t.Kind() == reflect.Slice:
		items, err := sequence(raw, t)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.MakeSlice(t, 0, len(items))
		for i, it := range items {
			v, err := convert(it, t.Elem(), opts, d)
			if err != nil {
				return reflect.Value{}, wrapField(fmt.Sprintf("[%d]", i), err)
			}
			out = reflect.Append(out, v)
		}
		return out, nil

	case t.Kind() == reflect.Map:
		rv := reflect.ValueOf(raw)
		if raw == nil || rv.Kind() != reflect.Map {
			return reflect.Value{}, errorf(ErrExpectedMapping, "expected a table for %s, got %s", TypeName(t), kindOf(raw))
		}
		out := reflect.MakeMapWithSize(t, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key().Interface()
			kv, err := convert(key, t.Key(), fieldOpts{}, d)
			if err != nil {
				return reflect.Value{}, wrapField(fmt.Sprint(key), err)
			}
			vv, err := convert(iter.Value().Interface(), t.Elem(), opts, d)
			if err != nil {
				return reflect.Value{}, wrapField(fmt.Sprint(key), err)
			}
			out.SetMapIndex(kv, vv)
		}
		return out, nil
	}
	return convertScalar(raw, t, opts)
}

// sequence unpacks an array-shaped raw value.
func sequence(raw any, t reflect.Type) ([]any, error) {
	if items, ok := raw.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(raw)
	if raw == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, errorf(ErrExpectedSequence, "expected an array for %s, got %s", TypeName(t), kindOf(raw))
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

func convertScalar(raw any, t reflect.Type, opts fieldOpts) (reflect.Value, error) {
	if len(opts.oneOf) > 0 {
		s := fmt.Sprint(raw)
		found := false
		for _, a := range opts.oneOf {
			if a == s {
				found = true
				break
			}
		}
		if !found {
			return reflect.Value{}, errorf(ErrNotAllowed, "value %q is not one of [%s]", s, strings.Join(opts.oneOf, ", "))
		}
	}
	if raw == nil {
		return reflect.Value{}, errorf(ErrConvert, "cannot convert nil to %s", TypeName(t))
	}

	if t.Kind() == reflect.Bool {
		if s, ok := raw.(string); ok {
			out := reflect.New(t).Elem()
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "true", "1", "enabled", "yes":
				out.SetBool(true)
			case "false", "0", "disabled", "no":
				out.SetBool(false)
			default:
				return reflect.Value{}, errorf(ErrBoolString, "cannot convert string %q to boolean", s)
			}
			return out, nil
		}
	}

	rv := reflect.ValueOf(raw)
	if rv.Type() == t {
		return rv, nil
	}

	fail := func() (reflect.Value, error) {
		return reflect.Value{}, errorf(ErrConvert, "cannot convert %s %v to %s", kindOf(raw), raw, TypeName(t))
	}

	out := reflect.New(t).Elem()
	if t == durationType {
		d, err := cast.ToDurationE(raw)
		if err != nil {
			return fail()
		}
		out.SetInt(int64(d))
		return out, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return fail()
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(raw)
		if err != nil || out.OverflowInt(n) {
			return fail()
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toUint64(raw)
		if err != nil || out.OverflowUint(n) {
			return fail()
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(raw)
		if err != nil || out.OverflowFloat(f) {
			return fail()
		}
		out.SetFloat(f)
	case reflect.String:
		if kind := kindOf(raw); kind == "table" || kind == "array" {
			return fail()
		}
		s, err := cast.ToStringE(raw)
		if err != nil {
			return fail()
		}
		out.SetString(s)
	default:
		return reflect.Value{}, errorf(ErrUnsupportedType, "unsupported target type %s", TypeName(t))
	}
	return out, nil
}

// Numeric strings are always decimal; cast would read "010" as octal.
func toInt64(raw any) (int64, error) {
	if s, ok := raw.(string); ok {
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	}
	return cast.ToInt64E(raw)
}

func toUint64(raw any) (uint64, error) {
	if s, ok := raw.(string); ok {
		return strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	}
	return cast.ToUint64E(raw)
}
