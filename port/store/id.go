package store

import (
	"fmt"
	"math"
	"reflect"
)

// IsAbsentID tells if the identifier is missing.
// The check follows the dynamic type of id, so a nil pointer is absent, while a pointer to a zero value is not.
func IsAbsentID(id ID) bool {
	if id == nil {
		return true
	}
	rv := reflect.ValueOf(id)
	if rv.Kind() == reflect.Pointer {
		return rv.IsNil()
	}
	return rv.IsZero()
}

// IDKey normalises an identifier into a comparable key.
// Integers of any width fold into int64, strings of any named type fold into string,
// thus the same row has the same key regardless of how a driver or a domain type represents its identifier.
func IDKey(id ID) any {
	if id == nil {
		return nil
	}
	rv := reflect.ValueOf(id)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u <= math.MaxInt64 {
			return int64(u)
		}
		return u
	case reflect.String:
		return rv.String()
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return IDKey(rv.Elem().Interface())
	default:
		if rv.Type().Comparable() {
			return id
		}
		return fmt.Sprintf("%#v", id)
	}
}

// SameID reports whether two identifiers point to the same row.
func SameID(a, b ID) bool {
	if IsAbsentID(a) || IsAbsentID(b) {
		return false
	}
	return IDKey(a) == IDKey(b)
}

// ConvertID converts the identifier into the given type.
// Numeric kinds convert between each other, and values assignable or convertible to the target are converted.
func ConvertID(id ID, typ reflect.Type) (reflect.Value, error) {
	if id == nil {
		return reflect.Zero(typ), nil
	}
	rv := reflect.ValueOf(id)
	if rv.Type() == typ {
		return rv, nil
	}
	if rv.Type().AssignableTo(typ) {
		out := reflect.New(typ).Elem()
		out.Set(rv)
		return out, nil
	}
	if isNumberKind(rv.Kind()) && isNumberKind(typ.Kind()) {
		return rv.Convert(typ), nil
	}
	if rv.Kind() == reflect.String && typ.Kind() == reflect.String {
		return rv.Convert(typ), nil
	}
	if rv.Kind() == reflect.Slice && typ.Kind() == reflect.Array && rv.Type().ConvertibleTo(typ) && rv.Len() == typ.Len() {
		return rv.Convert(typ), nil
	}
	if rv.Kind() == reflect.String && typ.Kind() != reflect.String && reflect.PointerTo(typ).Implements(textUnmarshalerType) {
		ptr := reflect.New(typ)
		if err := ptr.Interface().(textUnmarshaler).UnmarshalText([]byte(rv.String())); err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	}
	return reflect.Value{}, fmt.Errorf("%T identifier is not convertible to %s", id, typ.String())
}

type textUnmarshaler interface {
	UnmarshalText(text []byte) error
}

var textUnmarshalerType = reflect.TypeOf((*textUnmarshaler)(nil)).Elem()

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
