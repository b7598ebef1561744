package ecs

import (
	"reflect"
	"unsafe"
)

// iface represents the internal memory layout of an interface{}.
type iface struct {
	typ  unsafe.Pointer
	data unsafe.Pointer
}

// typeKey returns the address of the runtime type descriptor behind t.
// Every distinct Go type has exactly one descriptor, so it is a stable map key.
func typeKey(t reflect.Type) uint64 {
	return uint64(uintptr((*iface)(unsafe.Pointer(&t)).data))
}

// valueType returns the component type of v, looking through one level of pointer.
func valueType(v any) reflect.Type {
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
