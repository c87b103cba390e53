package store

import (
	"fmt"
	"reflect"
)

// ValueOf reads a column value as T.
// A missing or nil column yields the zero value of T.
// Values that round-tripped through a driver with a different representation,
// like int64 for an int column or a string for a named string type, are converted.
func ValueOf[T any](vs Values, column string) (T, error) {
	var zero T
	raw, ok := vs[column]
	if !ok || raw == nil {
		return zero, nil
	}
	if v, ok := raw.(T); ok {
		return v, nil
	}
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() == reflect.Interface {
		return zero, fmt.Errorf("%s column holds %T which does not implement %s", column, raw, typ.String())
	}
	rv, err := ConvertID(raw, typ)
	if err != nil {
		return zero, fmt.Errorf("%s column: %w", column, err)
	}
	return rv.Interface().(T), nil
}

// Match reports whether the row values satisfy the equality filter.
// A nil filter value matches a nil or missing column.
func Match(vs Values, where Values) bool {
	for col, exp := range where {
		got, ok := vs[col]
		if exp == nil {
			if ok && got != nil {
				return false
			}
			continue
		}
		if !ok || got == nil {
			return false
		}
		if IDKey(got) != IDKey(exp) {
			return false
		}
	}
	return true
}
