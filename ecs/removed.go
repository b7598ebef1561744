package ecs

import (
	"iter"
	"reflect"

	"github.com/kamstrup/intmap"
)

type removal struct {
	entity EntityId
	tick   Tick
}

type removalLog struct {
	entries []removal
}

// removals remembers, per component, which entities lost it recently.
type removals struct {
	byComponent *intmap.Map[ComponentId, *removalLog]
}

func newRemovals() *removals {
	return &removals{byComponent: intmap.New[ComponentId, *removalLog](16)}
}

func (r *removals) record(entity EntityId, ids []ComponentId, now Tick) {
	for _, c := range ids {
		log, ok := r.byComponent.Get(c)
		if !ok {
			log = &removalLog{}
			r.byComponent.Put(c, log)
		}
		log.entries = append(log.entries, removal{entity: entity, tick: now})
	}
}

// prune forgets removals that happened at or before cutoff.
func (r *removals) prune(cutoff, now Tick) {
	r.byComponent.ForEach(func(_ ComponentId, log *removalLog) bool {
		keep := log.entries[:0]
		for _, e := range log.entries {
			if e.tick.IsNewerThan(cutoff, now) {
				keep = append(keep, e)
			}
		}
		clear(log.entries[len(keep):])
		log.entries = keep
		return true
	})
}

// RemovedComponents lists the entities that lost component T, by Remove or
// Despawn, since the system last ran. Each removal stays visible for the
// rest of the pass it happened in and the whole following pass.
//
// As a system field it declares no component access: removals are only
// recorded while no other system runs.
type RemovedComponents[T any] struct {
	world  *World
	system *systemMeta
	id     ComponentId
}

// NewRemovedComponents creates a standalone reader, which sees removals made
// since the end of the last scheduler pass.
func NewRemovedComponents[T any](w *World) *RemovedComponents[T] {
	r := &RemovedComponents[T]{}
	r.initParam(w, nil)
	return r
}

func (r *RemovedComponents[T]) initParam(w *World, meta *systemMeta) {
	r.world = w
	r.system = meta
	r.id = w.registry.mustIdOf(reflect.TypeFor[T]())
}

// Iter yields the entities in removal order. An entity that lost T more than
// once is yielded once per removal; its id is usually stale.
func (r *RemovedComponents[T]) Iter() iter.Seq[EntityId] {
	return func(yield func(EntityId) bool) {
		log, ok := r.world.removed.byComponent.Get(r.id)
		if !ok {
			return
		}
		lastRun, thisRun := r.system.ticks(r.world)
		for _, e := range log.entries {
			if e.tick.IsNewerThan(lastRun, thisRun) && !yield(e.entity) {
				return
			}
		}
	}
}

// Len returns the number of removals Iter would yield.
func (r *RemovedComponents[T]) Len() int {
	n := 0
	for range r.Iter() {
		n++
	}
	return n
}
