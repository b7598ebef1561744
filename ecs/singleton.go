package ecs

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/kamstrup/intmap"
)

type singletonEntry struct {
	info    *ComponentInfo
	data    unsafe.Pointer
	backing any
	ticks   ComponentTicks
}

type singletons struct {
	entries *intmap.Map[ComponentId, *singletonEntry]
}

func newSingletons() *singletons {
	return &singletons{entries: intmap.New[ComponentId, *singletonEntry](16)}
}

func (s *singletons) get(id ComponentId) *singletonEntry {
	entry, _ := s.entries.Get(id)
	return entry
}

func (s *singletons) checkTicks(now Tick) {
	s.entries.ForEach(func(_ ComponentId, entry *singletonEntry) bool {
		entry.ticks.Added.clamp(now)
		entry.ticks.Changed.clamp(now)
		return true
	})
}

func (s *singletons) len() int {
	return s.entries.Len()
}

// AddSingleton stores value as the world-wide instance of its type, replacing
// any previous instance. Pointers are dereferenced.
func (w *World) AddSingleton(value any) {
	t := valueType(value)
	if t == nil {
		panic("ecs: nil singleton")
	}
	id, ok := w.registry.idOf(t)
	if !ok {
		id = w.registry.registerDynamic(t)
	}
	w.insertSingleton(id, value)
}

func (w *World) insertSingleton(id ComponentId, value any) {
	now := w.ChangeTick()
	if entry := w.singletons.get(id); entry != nil {
		if entry.info.drop != nil {
			entry.info.drop(entry.data)
		}
		if !entry.info.set(entry.data, value) {
			panic(fmt.Sprintf("ecs: value of type %T does not match singleton %s", value, entry.info.Name()))
		}
		entry.ticks.Changed = now
		return
	}

	info := w.registry.Info(id)
	data, backing := info.makeBuffer(1)
	entry := &singletonEntry{info: info, data: data, backing: backing, ticks: newComponentTicks(now)}
	if !info.set(data, value) {
		panic(fmt.Sprintf("ecs: value of type %T does not match singleton %s", value, info.Name()))
	}
	w.singletons.entries.Put(id, entry)
}

// removeSingleton destroys the singleton with the given id, if present.
func (w *World) removeSingleton(id ComponentId) bool {
	entry := w.singletons.get(id)
	if entry == nil {
		return false
	}
	if entry.info.drop != nil {
		entry.info.drop(entry.data)
	}
	w.singletons.entries.Del(id)
	return true
}

// HasSingleton reports whether a singleton of the given type exists.
func (w *World) HasSingleton(t reflect.Type) bool {
	id, ok := w.registry.idOf(t)
	return ok && w.singletons.get(id) != nil
}

func singletonEntryFor[T any](w *World) *singletonEntry {
	id, ok := ComponentIdFor[T](w.registry)
	if !ok {
		return nil
	}
	return w.singletons.get(id)
}

// GetSingleton returns the singleton of type T without marking it changed.
func GetSingleton[T any](w *World) (*T, bool) {
	entry := singletonEntryFor[T](w)
	if entry == nil {
		return nil, false
	}
	return (*T)(entry.data), true
}

// GetSingletonMut returns the singleton of type T and marks it changed.
func GetSingletonMut[T any](w *World) (*T, bool) {
	entry := singletonEntryFor[T](w)
	if entry == nil {
		return nil, false
	}
	entry.ticks.Changed = w.ChangeTick()
	return (*T)(entry.data), true
}

// RemoveSingleton destroys the singleton of type T.
func RemoveSingleton[T any](w *World) bool {
	id, ok := ComponentIdFor[T](w.registry)
	if !ok {
		return false
	}
	return w.removeSingleton(id)
}

// SingletonTicks returns the change ticks of the singleton of type T.
func SingletonTicks[T any](w *World) (ComponentTicks, bool) {
	entry := singletonEntryFor[T](w)
	if entry == nil {
		return ComponentTicks{}, false
	}
	return entry.ticks, true
}

// singletonAccess is shared by Singleton and SingletonRef.
type singletonAccess[T any] struct {
	world  *World
	id     ComponentId
	system *systemMeta
}

func (s *singletonAccess[T]) init(w *World, meta *systemMeta) {
	s.world = w
	s.system = meta
	s.id = register[T](w.registry, false)
}

func (s *singletonAccess[T]) entry() *singletonEntry {
	if s.world == nil {
		return nil
	}
	return s.world.singletons.get(s.id)
}

// Exists returns true if the singleton component has been added to the world
func (s *singletonAccess[T]) Exists() bool {
	return s.entry() != nil
}

// IsAdded reports whether the singleton was inserted since the owning system last ran.
func (s *singletonAccess[T]) IsAdded() bool {
	entry := s.entry()
	if entry == nil {
		return false
	}
	lastRun, thisRun := s.system.ticks(s.world)
	return entry.ticks.IsAdded(lastRun, thisRun)
}

// IsChanged reports whether the singleton was written since the owning system last ran.
func (s *singletonAccess[T]) IsChanged() bool {
	entry := s.entry()
	if entry == nil {
		return false
	}
	lastRun, thisRun := s.system.ticks(s.world)
	return entry.ticks.IsChanged(lastRun, thisRun)
}

// Singleton provides write access to a single component instance
// that is not associated with any entity. Use this for global game state,
// configuration, or other singleton data.
//
// As a system field it declares write access to T.
type Singleton[T any] struct {
	singletonAccess[T]
}

// NewSingleton creates a new Singleton accessor for the given world.
// If initializer is provided and the singleton doesn't exist in the world,
// it will be created with the initializer value. Otherwise, a zero value is used.
// This guarantees the singleton exists after the call.
func NewSingleton[T any](w *World, initializer ...T) *Singleton[T] {
	s := &Singleton[T]{}
	s.init(w, nil)
	if s.entry() == nil {
		var value T
		if len(initializer) > 0 {
			value = initializer[0]
		}
		w.insertSingleton(s.id, value)
	}
	return s
}

func (s *Singleton[T]) initParam(w *World, meta *systemMeta) {
	s.init(w, meta)
	meta.addSingletonWrite(s.id, reflect.TypeFor[T]())
}

// Get returns a pointer to the singleton component and marks it changed.
// Returns nil if the singleton has not been added to the world.
func (s *Singleton[T]) Get() *T {
	entry := s.entry()
	if entry == nil {
		return nil
	}
	_, thisRun := s.system.ticks(s.world)
	entry.ticks.Changed = thisRun
	return (*T)(entry.data)
}

// SingletonRef provides read-only access to a singleton. As a system field it
// declares read access to T, so any number of such systems may run together.
type SingletonRef[T any] struct {
	singletonAccess[T]
}

// NewSingletonRef creates a read-only accessor for the singleton of type T.
func NewSingletonRef[T any](w *World) *SingletonRef[T] {
	s := &SingletonRef[T]{}
	s.init(w, nil)
	return s
}

func (s *SingletonRef[T]) initParam(w *World, meta *systemMeta) {
	s.init(w, meta)
	meta.addSingletonRead(s.id, reflect.TypeFor[T]())
}

// Get returns the singleton, or nil if it does not exist. The value must not
// be modified.
func (s *SingletonRef[T]) Get() *T {
	entry := s.entry()
	if entry == nil {
		return nil
	}
	return (*T)(entry.data)
}
