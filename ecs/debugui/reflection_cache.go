package debugui

import (
	"reflect"
	"sync"
)

type FieldInfo struct {
	Name      string
	Type      reflect.Type
	Index     []int
	IsPointer bool
}

// ReflectionCache memoises the exported fields of component types.
type ReflectionCache struct {
	fields sync.Map // reflect.Type -> []FieldInfo
}

func NewReflectionCache() *ReflectionCache {
	return &ReflectionCache{}
}

// GetFields returns the exported fields of t, with pointer types unwrapped.
// Index is relative to t; callers prefix the path of the enclosing field.
func (rc *ReflectionCache) GetFields(t reflect.Type) []FieldInfo {
	if cached, ok := rc.fields.Load(t); ok {
		return cached.([]FieldInfo)
	}

	var fields []FieldInfo
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}

			fieldType := field.Type
			isPointer := fieldType.Kind() == reflect.Ptr
			if isPointer {
				fieldType = fieldType.Elem()
			}

			fields = append(fields, FieldInfo{
				Name:      field.Name,
				Type:      fieldType,
				Index:     []int{i},
				IsPointer: isPointer,
			})
		}
	}

	actual, _ := rc.fields.LoadOrStore(t, fields)
	return actual.([]FieldInfo)
}

var globalReflectionCache = NewReflectionCache()
