package ecs

import (
	"fmt"
	"math"
	"reflect"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/kamstrup/intmap"
)

// ComponentId is the dense integer id a ComponentRegistry assigns to a type.
// Components and singletons share the id space.
type ComponentId uint32

// Dropper is implemented by components that must release something when a
// value is destroyed (despawn, remove, overwrite). Drop is not called when a
// value only moves between tables.
type Dropper interface {
	Drop()
}

// ComponentInfo describes the memory layout of a registered type together
// with the typed operations resolved once at registration time.
type ComponentInfo struct {
	id        ComponentId
	typ       reflect.Type
	size      uintptr
	align     uintptr
	needsDrop bool

	// makeBuffer allocates typed backing memory for n values. The returned
	// handle keeps the memory reachable for the garbage collector.
	makeBuffer func(n int) (unsafe.Pointer, any)
	copyN      func(dst, src unsafe.Pointer, n int)
	set        func(dst unsafe.Pointer, value any) bool
	drop       func(ptr unsafe.Pointer)
	zero       func(ptr unsafe.Pointer)
	box        func(ptr unsafe.Pointer) any

	hooks ComponentHooks
}

func (c *ComponentInfo) Id() ComponentId    { return c.id }
func (c *ComponentInfo) Type() reflect.Type { return c.typ }
func (c *ComponentInfo) Name() string       { return c.typ.String() }
func (c *ComponentInfo) Size() uintptr      { return c.size }
func (c *ComponentInfo) Align() uintptr     { return c.align }

// NeedsDrop reports whether destroying a value requires work beyond
// forgetting its bytes: the type holds pointers or implements Dropper.
func (c *ComponentInfo) NeedsDrop() bool { return c.needsDrop }

// ComponentRegistry manages component type registration for an ECS instance.
// Each World is created from a registry; a registry may be shared by several
// worlds.
type ComponentRegistry struct {
	mu     sync.RWMutex
	infos  []*ComponentInfo
	byType *intmap.Map[uint64, ComponentId]

	// hooked is set once any type has hooks, so worlds can skip the lookups.
	hooked atomic.Bool
}

// NewComponentRegistry creates a new component registry.
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		byType: intmap.New[uint64, ComponentId](64),
	}
}

// RegisterComponent registers a new component type with the given registry and
// returns its id. Registering the same type again returns the existing id.
func RegisterComponent[T any](r *ComponentRegistry) ComponentId {
	return register[T](r, true)
}

// ComponentIdFor returns the id of T if it has been registered.
func ComponentIdFor[T any](r *ComponentRegistry) (ComponentId, bool) {
	return r.idOf(reflect.TypeFor[T]())
}

// register assigns an id to T. Singleton types skip the value-type check
// since they never live in table columns.
func register[T any](r *ComponentRegistry, component bool) ComponentId {
	t := reflect.TypeFor[T]()
	if id, ok := r.idOf(t); ok {
		return id
	}

	if component {
		if err := checkComponentType(t); err != nil {
			panic(err.Error())
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byType.Get(typeKey(t)); ok {
		return id
	}
	if uint64(len(r.infos)) >= math.MaxUint32 {
		panic("ecs: too many component types")
	}

	info := newComponentInfo[T](ComponentId(len(r.infos)))
	r.infos = append(r.infos, info)
	r.byType.Put(typeKey(t), info.id)
	return info.id
}

// registerDynamic registers a type known only at runtime. The typed
// operations go through reflection, so it is only used for singletons
// inserted as untyped values.
func (r *ComponentRegistry) registerDynamic(t reflect.Type) ComponentId {
	if id, ok := r.idOf(t); ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byType.Get(typeKey(t)); ok {
		return id
	}

	info := newDynamicComponentInfo(ComponentId(len(r.infos)), t)
	r.infos = append(r.infos, info)
	r.byType.Put(typeKey(t), info.id)
	return info.id
}

func newComponentInfo[T any](id ComponentId) *ComponentInfo {
	var zero T
	t := reflect.TypeFor[T]()

	info := &ComponentInfo{
		id:    id,
		typ:   t,
		size:  unsafe.Sizeof(zero),
		align: unsafe.Alignof(zero),
		makeBuffer: func(n int) (unsafe.Pointer, any) {
			if n == 0 {
				return nil, nil
			}
			buf := make([]T, n)
			return unsafe.Pointer(unsafe.SliceData(buf)), buf
		},
		copyN: func(dst, src unsafe.Pointer, n int) {
			copy(unsafe.Slice((*T)(dst), n), unsafe.Slice((*T)(src), n))
		},
		set: func(dst unsafe.Pointer, value any) bool {
			switch v := value.(type) {
			case T:
				*(*T)(dst) = v
			case *T:
				*(*T)(dst) = *v
			default:
				return false
			}
			return true
		},
		zero: func(ptr unsafe.Pointer) {
			*(*T)(ptr) = zero
		},
		box: func(ptr unsafe.Pointer) any {
			return (*T)(ptr)
		},
	}

	_, isDropper := any((*T)(nil)).(Dropper)
	switch {
	case isDropper:
		info.needsDrop = true
		info.drop = func(ptr unsafe.Pointer) {
			any((*T)(ptr)).(Dropper).Drop()
			*(*T)(ptr) = zero
		}
	case hasPointers(t):
		info.needsDrop = true
		info.drop = info.zero
	}

	return info
}

func newDynamicComponentInfo(id ComponentId, t reflect.Type) *ComponentInfo {
	slice := func(ptr unsafe.Pointer, n int) reflect.Value {
		return reflect.NewAt(reflect.ArrayOf(n, t), ptr).Elem()
	}

	info := &ComponentInfo{
		id:    id,
		typ:   t,
		size:  t.Size(),
		align: uintptr(t.Align()),
		makeBuffer: func(n int) (unsafe.Pointer, any) {
			if n == 0 {
				return nil, nil
			}
			buf := reflect.MakeSlice(reflect.SliceOf(t), n, n)
			return buf.UnsafePointer(), buf.Interface()
		},
		copyN: func(dst, src unsafe.Pointer, n int) {
			reflect.Copy(slice(dst, n), slice(src, n))
		},
		set: func(dst unsafe.Pointer, value any) bool {
			v := reflect.ValueOf(value)
			if v.Kind() == reflect.Ptr && v.Type().Elem() == t {
				v = v.Elem()
			}
			if v.Type() != t {
				return false
			}
			reflect.NewAt(t, dst).Elem().Set(v)
			return true
		},
		zero: func(ptr unsafe.Pointer) {
			reflect.NewAt(t, ptr).Elem().SetZero()
		},
		box: func(ptr unsafe.Pointer) any {
			return reflect.NewAt(t, ptr).Interface()
		},
	}

	switch {
	case reflect.PointerTo(t).Implements(reflect.TypeFor[Dropper]()):
		info.needsDrop = true
		info.drop = func(ptr unsafe.Pointer) {
			reflect.NewAt(t, ptr).Interface().(Dropper).Drop()
			info.zero(ptr)
		}
	case hasPointers(t):
		info.needsDrop = true
		info.drop = info.zero
	}

	return info
}

// checkComponentType rejects types that are not plain values.
func checkComponentType(t reflect.Type) error {
	switch t.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return fmt.Errorf("ecs: %s cannot be a component: pointers, maps, channels, functions and interfaces are not value types", t)
	}
	return nil
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface,
		reflect.UnsafePointer, reflect.Slice, reflect.String:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}

func (r *ComponentRegistry) idOf(t reflect.Type) (ComponentId, bool) {
	if t == nil {
		return 0, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType.Get(typeKey(t))
}

// mustIdOf panics with the type name when t was never registered.
func (r *ComponentRegistry) mustIdOf(t reflect.Type) ComponentId {
	id, ok := r.idOf(t)
	if !ok {
		panic(fmt.Sprintf("ecs: component type %v not registered", t))
	}
	return id
}

// Info returns the descriptor for a registered id.
func (r *ComponentRegistry) Info(id ComponentId) *ComponentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.infos) {
		panic(fmt.Sprintf("ecs: unknown component id %d", id))
	}
	return r.infos[id]
}

// Len returns the number of registered types.
func (r *ComponentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.infos)
}
