package ecs

import (
	"fmt"
	"iter"
	"reflect"
	"strings"
	"unsafe"

	"github.com/kelindar/bitmap"
)

var entityIdType = reflect.TypeFor[EntityId]()

type fetchField struct {
	offset   uintptr
	id       ComponentId
	name     string
	readonly bool
	optional bool
}

type filterField struct {
	kind filterKind
	id   ComponentId
}

// queryLayout is the reflected shape of a query struct: which fields receive
// component pointers, which receive the entity, and which filters apply.
type queryLayout struct {
	typ          reflect.Type
	fetches      []fetchField
	entityFields []uintptr
	filters      []filterField // Added and Changed only; With/Without live in the masks
	with         bitmap.Bitmap
	without      bitmap.Bitmap
	access       FilteredAccess
}

// newQueryLayout reflects over the struct type t. Pointer fields are fetches
// and accept the comma separated tag options "readonly" and "optional".
func newQueryLayout(t reflect.Type, registry *ComponentRegistry) *queryLayout {
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("ecs: query type %v must be a struct", t))
	}

	l := &queryLayout{typ: t}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		switch {
		case field.Type == entityIdType:
			l.entityFields = append(l.entityFields, field.Offset)
		case field.Type.Implements(queryFilterType):
			kind, ct := reflect.Zero(field.Type).Interface().(queryFilter).filterTerm()
			l.addFilter(kind, registry.mustIdOf(ct))
		case field.Type.Kind() == reflect.Ptr:
			l.addFetch(field, registry.mustIdOf(field.Type.Elem()))
		default:
			panic(fmt.Sprintf("ecs: query field %s.%s must be a component pointer, an EntityId or a filter", t, field.Name))
		}
	}
	return l
}

func (l *queryLayout) addFetch(field reflect.StructField, id ComponentId) {
	f := fetchField{offset: field.Offset, id: id, name: field.Name}
	if tag, ok := field.Tag.Lookup("ecs"); ok {
		for _, opt := range strings.Split(tag, ",") {
			switch strings.TrimSpace(opt) {
			case "readonly":
				f.readonly = true
			case "optional":
				f.optional = true
			case "":
			default:
				panic("invalid ecs tag value: \"" + tag + "\" (supported: \"readonly\", \"optional\")")
			}
		}
	}

	for _, other := range l.fetches {
		if other.id == id && (!other.readonly || !f.readonly) {
			panic(fmt.Sprintf("ecs: query %v fetches component %s in %s and %s, and at least one of them writes",
				l.typ, field.Type.Elem(), other.name, field.Name))
		}
	}
	l.fetches = append(l.fetches, f)

	if f.readonly {
		l.access.access.AddRead(id)
	} else {
		l.access.access.AddWrite(id)
	}
	if !f.optional {
		l.with.Set(uint32(id))
		l.access.AddWith(id)
	}
}

func (l *queryLayout) addFilter(kind filterKind, id ComponentId) {
	switch kind {
	case filterWith:
		l.with.Set(uint32(id))
		l.access.AddWith(id)
	case filterWithout:
		l.without.Set(uint32(id))
		l.access.AddWithout(id)
	case filterAdded, filterChanged:
		l.with.Set(uint32(id))
		l.access.AddWith(id)
		l.access.access.AddRead(id)
		l.filters = append(l.filters, filterField{kind: kind, id: id})
	}
}

// matches reports whether entities of the archetype can satisfy the query.
func (l *queryLayout) matches(a *Archetype) bool {
	missing := l.with.Clone(nil)
	missing.AndNot(a.mask)
	return missing.Count() == 0 && !intersects(a.mask, l.without)
}

// matchedArchetype holds the columns of one matching archetype in layout
// order. Missing optional columns are nil.
type matchedArchetype struct {
	archetype     *Archetype
	columns       []*column
	filterColumns []*column
}

func (l *queryLayout) bind(a *Archetype) matchedArchetype {
	m := matchedArchetype{
		archetype:     a,
		columns:       make([]*column, len(l.fetches)),
		filterColumns: make([]*column, len(l.filters)),
	}
	for i, f := range l.fetches {
		m.columns[i] = a.table.column(f.id)
	}
	for i, f := range l.filters {
		m.filterColumns[i] = a.table.column(f.id)
	}
	return m
}

// rowPasses evaluates the Added and Changed filters for one row.
func (l *queryLayout) rowPasses(m *matchedArchetype, row int, lastRun, thisRun Tick) bool {
	for i, f := range l.filters {
		ticks := m.filterColumns[i].ticks[row]
		switch f.kind {
		case filterAdded:
			if !ticks.IsAdded(lastRun, thisRun) {
				return false
			}
		case filterChanged:
			if !ticks.IsChanged(lastRun, thisRun) {
				return false
			}
		}
	}
	return true
}

// fill writes row into the struct at dst. Writable fetches mark the row
// changed at thisRun.
func (l *queryLayout) fill(dst unsafe.Pointer, m *matchedArchetype, row int, thisRun Tick) {
	for i, f := range l.fetches {
		fieldPtr := unsafe.Add(dst, f.offset)
		c := m.columns[i]
		if c == nil {
			*(*unsafe.Pointer)(fieldPtr) = nil
			continue
		}
		*(*unsafe.Pointer)(fieldPtr) = c.ptr(row)
		if !f.readonly {
			c.ticks[row].Changed = thisRun
		}
	}
	if len(l.entityFields) > 0 {
		id := m.archetype.table.entities[row]
		for _, off := range l.entityFields {
			*(*EntityId)(unsafe.Add(dst, off)) = id
		}
	}
}

// View represents a query for entities with a specific combination of components
// The type T should be a struct with embedded pointer fields for each component type
// Named fields can be marked as optional using the `ecs:"optional"` struct tag
//
// A View reads entities one at a time and requires exclusive world access. It
// honours With and Without but ignores Added and Changed; use a Query for those.
type View[T any] struct {
	world  *World
	layout *queryLayout
}

// NewView creates a new view for the given struct type
func NewView[T any](w *World) *View[T] {
	return &View[T]{
		world:  w,
		layout: newQueryLayout(reflect.TypeFor[T](), w.registry),
	}
}

// Fill populates the provided struct pointer with component data for the given entity
// Returns false if the entity is dead or does not match the view
// Optional components are set to nil if not present
func (v *View[T]) Fill(id EntityId, ptr *T) bool {
	loc, ok := v.world.entities.Location(id)
	if !ok {
		return false
	}
	arch := v.world.archetypes.Get(loc.Archetype)
	if !v.layout.matches(arch) {
		return false
	}
	m := v.layout.bind(arch)
	v.layout.fill(unsafe.Pointer(ptr), &m, int(loc.Row), v.world.ChangeTick())
	return true
}

// Get returns a populated view struct for the given entity, or nil if the entity
// doesn't have all the required components
func (v *View[T]) Get(id EntityId) *T {
	var result T
	if !v.Fill(id, &result) {
		return nil
	}
	return &result
}

// Iter walks every matching entity. Unlike a Query, matching archetypes are
// recomputed on each call.
func (v *View[T]) Iter() iter.Seq2[EntityId, T] {
	return func(yield func(EntityId, T) bool) {
		thisRun := v.world.ChangeTick()
		var result T
		resultPtr := unsafe.Pointer(&result)

		for _, arch := range v.world.archetypes.archetypes {
			if arch.Len() == 0 || !v.layout.matches(arch) {
				continue
			}
			m := v.layout.bind(arch)
			entities := arch.table.entities
			for row := range entities {
				v.layout.fill(resultPtr, &m, row, thisRun)
				if !yield(entities[row], result) {
					return
				}
			}
		}
	}
}

// Values is Iter without the entity ids.
func (v *View[T]) Values() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, item := range v.Iter() {
			if !yield(item) {
				return
			}
		}
	}
}

// Spawn creates a new entity with components copied from the non-nil fetch
// fields of data. Panics if a required field is nil.
func (v *View[T]) Spawn(data T) EntityId {
	structPtr := unsafe.Pointer(&data)

	components := make([]any, 0, len(v.layout.fetches))
	for _, f := range v.layout.fetches {
		componentPtr := *(*unsafe.Pointer)(unsafe.Add(structPtr, f.offset))
		if componentPtr == nil {
			if !f.optional {
				panic("required component is nil in View.Spawn")
			}
			continue
		}
		components = append(components, v.world.registry.Info(f.id).box(componentPtr))
	}
	return v.world.Spawn(components...)
}
