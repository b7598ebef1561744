package ecs

import "reflect"

// Condition decides whether a system takes part in a pass. See RunIf.
type Condition func(w *World) bool

// Not inverts a condition.
func Not(c Condition) Condition {
	return func(w *World) bool { return !c(w) }
}

// SingletonExists holds while the singleton T is present.
func SingletonExists[T any]() Condition {
	t := reflect.TypeFor[T]()
	return func(w *World) bool { return w.HasSingleton(t) }
}

// AnyWith holds while at least one entity has component T.
func AnyWith[T any]() Condition {
	t := reflect.TypeFor[T]()
	return func(w *World) bool {
		id, ok := w.registry.idOf(t)
		if !ok {
			return false
		}
		for _, arch := range w.archetypes.archetypes {
			if arch.Len() > 0 && arch.HasComponent(id) {
				return true
			}
		}
		return false
	}
}

// RunOnce holds for the first pass it is evaluated in and never again. Each
// call returns an independent condition.
func RunOnce() Condition {
	done := false
	return func(*World) bool {
		if done {
			return false
		}
		done = true
		return true
	}
}
