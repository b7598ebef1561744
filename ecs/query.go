package ecs

import (
	"iter"
	"reflect"
	"unsafe"

	"github.com/kamstrup/intmap"
)

// queryState caches the archetypes that match a layout. Archetypes are never
// removed, so the cache only grows as new archetypes appear.
type queryState struct {
	layout     *queryLayout
	generation int
	matched    []matchedArchetype
	byArch     *intmap.Map[ArchetypeId, int]
}

func newQueryState(layout *queryLayout) *queryState {
	return &queryState{
		layout: layout,
		byArch: intmap.New[ArchetypeId, int](16),
	}
}

func (s *queryState) update(w *World) {
	archetypes := w.archetypes.archetypes
	if s.generation == len(archetypes) {
		return
	}
	for _, arch := range archetypes[s.generation:] {
		if s.layout.matches(arch) {
			s.byArch.Put(arch.id, len(s.matched))
			s.matched = append(s.matched, s.layout.bind(arch))
		}
	}
	s.generation = len(archetypes)
}

// Query iterates every entity matching the struct type T. See View for the
// shape of T.
//
// As a field of a system struct, a Query is initialised by the Scheduler and
// its component access decides which systems may run alongside it. Added
// and Changed filters compare against the last time that system ran.
type Query[T any] struct {
	world  *World
	state  *queryState
	system *systemMeta
}

// NewQuery creates a standalone query. Its Added and Changed filters compare
// against the end of the last scheduler pass.
func NewQuery[T any](w *World) *Query[T] {
	q := &Query[T]{}
	q.init(w, nil)
	return q
}

func (q *Query[T]) init(w *World, meta *systemMeta) {
	q.world = w
	q.system = meta
	q.state = newQueryState(newQueryLayout(reflect.TypeFor[T](), w.registry))
}

func (q *Query[T]) initParam(w *World, meta *systemMeta) {
	q.init(w, meta)
	meta.addQuery(q.state.layout)
}

// Init initializes or re-initializes the Query as a standalone query on w.
func (q *Query[T]) Init(w *World) {
	q.init(w, nil)
}

func (q *Query[T]) ticks() (Tick, Tick) {
	return q.system.ticks(q.world)
}

// Iter returns an iterator over entity IDs and component data, in table row
// order. The iterator can be restarted; every run sees the current contents.
func (q *Query[T]) Iter() iter.Seq2[EntityId, T] {
	return func(yield func(EntityId, T) bool) {
		q.state.update(q.world)
		lastRun, thisRun := q.ticks()
		layout := q.state.layout

		var result T
		resultPtr := unsafe.Pointer(&result)

		for i := range q.state.matched {
			m := &q.state.matched[i]
			entities := m.archetype.table.entities
			for row := range entities {
				if !layout.rowPasses(m, row, lastRun, thisRun) {
					continue
				}
				layout.fill(resultPtr, m, row, thisRun)
				if !yield(entities[row], result) {
					return
				}
			}
		}
	}
}

// Values returns an iterator over component data only.
func (q *Query[T]) Values() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, value := range q.Iter() {
			if !yield(value) {
				return
			}
		}
	}
}

// Get returns the query item for one entity. It reports false if the entity
// is dead, does not match, or is filtered out.
func (q *Query[T]) Get(id EntityId) (T, bool) {
	var result T
	m, row, ok := q.locate(id)
	if !ok {
		return result, false
	}
	lastRun, thisRun := q.ticks()
	if !q.state.layout.rowPasses(m, row, lastRun, thisRun) {
		return result, false
	}
	q.state.layout.fill(unsafe.Pointer(&result), m, row, thisRun)
	return result, true
}

func (q *Query[T]) locate(id EntityId) (*matchedArchetype, int, bool) {
	loc, ok := q.world.entities.Location(id)
	if !ok {
		return nil, 0, false
	}
	q.state.update(q.world)
	idx, ok := q.state.byArch.Get(loc.Archetype)
	if !ok {
		return nil, 0, false
	}
	return &q.state.matched[idx], int(loc.Row), true
}

// Contains reports whether Get would succeed, without touching change ticks.
func (q *Query[T]) Contains(id EntityId) bool {
	m, row, ok := q.locate(id)
	if !ok {
		return false
	}
	lastRun, thisRun := q.ticks()
	return q.state.layout.rowPasses(m, row, lastRun, thisRun)
}

// Count returns the number of matching entities. Without Added or Changed
// filters this only sums table lengths.
func (q *Query[T]) Count() int {
	q.state.update(q.world)
	layout := q.state.layout
	lastRun, thisRun := q.ticks()

	n := 0
	for i := range q.state.matched {
		m := &q.state.matched[i]
		if len(layout.filters) == 0 {
			n += m.archetype.table.Len()
			continue
		}
		for row := range m.archetype.table.Len() {
			if layout.rowPasses(m, row, lastRun, thisRun) {
				n++
			}
		}
	}
	return n
}

// Single returns the only matching item. It reports false when there are no
// matches or more than one.
func (q *Query[T]) Single() (EntityId, T, bool) {
	var (
		id    EntityId
		item  T
		found bool
	)
	for e, v := range q.Iter() {
		if found {
			var zero T
			return 0, zero, false
		}
		id, item, found = e, v, true
	}
	return id, item, found
}

// MatchingArchetypes iterates the ids of every archetype the query matches.
func (q *Query[T]) MatchingArchetypes() iter.Seq[ArchetypeId] {
	return func(yield func(ArchetypeId) bool) {
		q.state.update(q.world)
		for _, m := range q.state.matched {
			if !yield(m.archetype.id) {
				return
			}
		}
	}
}

// Access returns the component access of the query.
func (q *Query[T]) Access() *FilteredAccess {
	return &q.state.layout.access
}
