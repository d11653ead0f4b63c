// ABOUTME: Record loader: builds a schema struct from a raw map field by field
// ABOUTME: Collects missing (defaulted) and redundant (unknown) keys as it goes

package schema

import (
	"fmt"
	"reflect"
	"slices"
)

// Discrepancies lists the keys that did not line up with the schema during a
// load. Missing keys were filled from defaults; Redundant keys were present in
// the input but unknown to the schema. Names are bare keys, not paths.
//
// Entries are ordered depth-first in field declaration order. A nested
// record's entries are appended while its parent field is converted, and each
// record appends its own redundant keys, sorted, after its fields.
type Discrepancies struct {
	Missing   []string
	Redundant []string
}

// Empty reports whether the load matched the schema exactly.
func (d *Discrepancies) Empty() bool {
	return len(d.Missing) == 0 && len(d.Redundant) == 0
}

// Load builds a T from raw. Matched keys are removed from raw as they are
// consumed. d may be nil when the caller does not need the discrepancies.
func Load[T any](raw map[string]any, d *Discrepancies) (*T, error) {
	out := new(T)
	v, err := LoadValue(reflect.TypeOf(out).Elem(), raw, d)
	if err != nil {
		return nil, err
	}
	reflect.ValueOf(out).Elem().Set(v)
	return out, nil
}

// LoadValue is the reflective form of Load. raw must be a table.
func LoadValue(t reflect.Type, raw any, d *Discrepancies) (reflect.Value, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return reflect.Value{}, errorf(ErrMalformedInput, "expected a table for %s, got %s", TypeName(t), kindOf(raw))
	}
	return loadRecord(t, m, d)
}

func loadRecord(t reflect.Type, raw map[string]any, d *Discrepancies) (reflect.Value, error) {
	if d == nil {
		d = &Discrepancies{}
	}
	info, err := Inspect(t)
	if err != nil {
		return reflect.Value{}, err
	}

	out := reflect.New(t).Elem()
	for i := range info.Fields {
		f := &info.Fields[i]
		value, present := raw[f.Key]
		if f.Internal || !present {
			if f.Required && !f.Internal {
				return reflect.Value{}, errorf(ErrRequiredField, "missing required field '%s' in %s", f.Key, t.Name())
			}
			if !f.Internal {
				d.Missing = append(d.Missing, f.Key)
			}
			dv, err := f.defaultValue()
			if err != nil {
				return reflect.Value{}, wrapField(f.Key, err)
			}
			out.Field(f.Index).Set(dv)
			continue
		}

		delete(raw, f.Key)
		fv, err := convert(value, f.Type, fieldOpts{oneOf: f.OneOf}, d)
		if err != nil {
			return reflect.Value{}, wrapField(f.Key, err)
		}
		out.Field(f.Index).Set(fv)
	}

	if len(raw) > 0 {
		extra := make([]string, 0, len(raw))
		for k := range raw {
			extra = append(extra, k)
		}
		slices.Sort(extra)
		d.Redundant = append(d.Redundant, extra...)
	}

	if err := validate(out); err != nil {
		return reflect.Value{}, err
	}
	return out, nil
}

func validate(v reflect.Value) error {
	if !reflect.PointerTo(v.Type()).Implements(validatorType) {
		return nil
	}
	if err := v.Addr().Interface().(Validator).Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrValidation, v.Type().Name(), err)
	}
	return nil
}
