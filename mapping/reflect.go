package mapping

import (
	"reflect"
)

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func typeName[T any]() string {
	return typeOf[T]().String()
}
