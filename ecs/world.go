package ecs

import (
	"fmt"
	"reflect"
	"slices"
	"sync/atomic"
	"unsafe"

	"github.com/sirupsen/logrus"
)

// World owns all entities, tables and singletons of one simulation.
//
// Methods on World perform structural changes directly and require exclusive
// access: while a Scheduler pass is running, systems read and write through
// their Query and Singleton fields and record structural changes on Commands.
type World struct {
	registry   *ComponentRegistry
	entities   *Entities
	archetypes *Archetypes
	singletons *singletons

	changeTick     atomic.Uint32
	lastChangeTick Tick
	lastCheckTick  Tick

	removed       *removals
	hookCommands  *Commands
	hookDepth     int
	applyingHooks bool

	log *logrus.Entry
}

// WorldOption configures a World.
type WorldOption func(*World)

// WithLogger sets the entry diagnostics are written to.
func WithLogger(entry *logrus.Entry) WorldOption {
	return func(w *World) {
		w.log = entry
	}
}

// NewWorld creates a new world using the component types of registry.
func NewWorld(registry *ComponentRegistry, opts ...WorldOption) *World {
	w := &World{
		registry:   registry,
		entities:   NewEntities(),
		archetypes: newArchetypes(registry),
		singletons: newSingletons(),
		removed:    newRemovals(),
		log:        logrus.WithField("component", "ecs"),
	}
	// Not NewCommands: its leak check would keep the world reachable.
	w.hookCommands = &Commands{world: w, queue: &commandQueue{}}
	w.changeTick.Store(1)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *World) Registry() *ComponentRegistry { return w.registry }
func (w *World) Entities() *Entities          { return w.entities }
func (w *World) Archetypes() *Archetypes      { return w.archetypes }
func (w *World) Logger() *logrus.Entry        { return w.log }

// ChangeTick returns the current value of the world clock.
func (w *World) ChangeTick() Tick {
	return Tick(w.changeTick.Load())
}

// LastChangeTick returns the clock value at the end of the last scheduler pass.
func (w *World) LastChangeTick() Tick {
	return w.lastChangeTick
}

// incrementChangeTick advances the clock and returns the tick that was current
// before, which the caller runs at.
func (w *World) incrementChangeTick() Tick {
	return Tick(w.changeTick.Add(1) - 1)
}

// ClearTrackers closes a frame: changes made before now are no longer
// reported to standalone queries, and removals older than the previous frame
// are forgotten. The Scheduler calls it at the end of every pass; code that
// drives a World without one should call it once per frame.
func (w *World) ClearTrackers() {
	w.removed.prune(w.lastChangeTick, w.ChangeTick())
	w.lastChangeTick = w.incrementChangeTick()
}

// CheckChangeTicks clamps every stored tick that has become too old to
// compare. It does nothing until the clock has advanced CheckTickThreshold
// since the previous check and reports whether a scan happened.
func (w *World) CheckChangeTicks() bool {
	now := w.ChangeTick()
	if now-w.lastCheckTick < CheckTickThreshold {
		return false
	}
	for _, arch := range w.archetypes.archetypes {
		arch.table.checkTicks(now)
	}
	w.singletons.checkTicks(now)
	w.lastCheckTick = now
	return true
}

// flush places entities reserved through Commands in the empty archetype.
func (w *World) flush() {
	if !w.entities.needsFlush() {
		return
	}
	empty := w.archetypes.Get(EmptyArchetypeId)
	w.entities.Flush(func(id EntityId, loc *EntityLocation) {
		row := empty.table.addRow(id)
		*loc = EntityLocation{Archetype: EmptyArchetypeId, Row: row}
	})
}

// Len returns the number of live entities.
func (w *World) Len() int {
	return w.entities.Len()
}

// IsAlive reports whether id refers to a live entity.
func (w *World) IsAlive(id EntityId) bool {
	return w.entities.IsLive(id)
}

// Location returns where the entity is stored. The row is only valid until
// the next structural change.
func (w *World) Location(id EntityId) (EntityLocation, bool) {
	return w.entities.Location(id)
}

func (w *World) mustLocation(id EntityId) EntityLocation {
	loc, ok := w.entities.Location(id)
	if !ok {
		panic(fmt.Sprintf("ecs: entity %v does not exist", id))
	}
	return loc
}

type componentValue struct {
	info  *ComponentInfo
	value any
}

// resolve maps untyped component values to registered ids, sorted by id.
func (w *World) resolve(components []any) []componentValue {
	values := make([]componentValue, 0, len(components))
	for _, comp := range components {
		t := valueType(comp)
		if t == nil {
			panic("ecs: nil component")
		}
		info := w.registry.Info(w.registry.mustIdOf(t))
		values = append(values, componentValue{info: info, value: comp})
	}
	slices.SortFunc(values, func(a, b componentValue) int {
		return int(a.info.id) - int(b.info.id)
	})
	for i := 1; i < len(values); i++ {
		if values[i].info.id == values[i-1].info.id {
			panic(fmt.Sprintf("ecs: component %s given more than once", values[i].info.Name()))
		}
	}
	return values
}

func componentIds(values []componentValue) []ComponentId {
	ids := make([]ComponentId, len(values))
	for i, v := range values {
		ids[i] = v.info.id
	}
	return ids
}

// Spawn creates a new entity with the provided components
func (w *World) Spawn(components ...any) EntityId {
	w.checkStructural()
	w.flush()
	values := w.resolve(components)
	arch := w.archetypes.GetOrCreate(componentIds(values))

	id := w.entities.Allocate()
	row := arch.table.addRow(id)
	w.initializeRow(arch.table, row, values)
	w.entities.setLocation(id.Index(), EntityLocation{Archetype: arch.id, Row: row})

	w.triggerHooks(hookAdd, id, arch.components)
	w.triggerHooks(hookInsert, id, arch.components)
	w.applyHookCommands()
	return id
}

// SpawnEmpty creates an entity without components.
func (w *World) SpawnEmpty() EntityId {
	return w.Spawn()
}

// SpawnBatch creates n entities that all start with a copy of the provided
// components. The entity indices are allocated as one contiguous range.
func (w *World) SpawnBatch(n int, components ...any) []EntityId {
	w.checkStructural()
	w.flush()
	values := w.resolve(components)
	arch := w.archetypes.GetOrCreate(componentIds(values))

	ids := w.entities.AllocateRange(n)
	arch.table.reserve(n)
	for _, id := range ids {
		row := arch.table.addRow(id)
		w.initializeRow(arch.table, row, values)
		w.entities.setLocation(id.Index(), EntityLocation{Archetype: arch.id, Row: row})
	}
	for _, id := range ids {
		w.triggerHooks(hookAdd, id, arch.components)
		w.triggerHooks(hookInsert, id, arch.components)
	}
	w.applyHookCommands()
	return ids
}

func (w *World) initializeRow(t *Table, row uint32, values []componentValue) {
	ticks := newComponentTicks(w.ChangeTick())
	for _, v := range values {
		t.column(v.info.id).initialize(int(row), v.value, ticks)
	}
}

// Despawn removes the entity and destroys all its components.
// It returns false if the entity was already gone.
func (w *World) Despawn(id EntityId) bool {
	w.checkStructural()
	w.flush()
	loc, ok := w.entities.Location(id)
	if !ok {
		return false
	}

	arch := w.archetypes.Get(loc.Archetype)
	w.verifyRow(id, arch, loc.Row)
	// Hooks cannot change structure, so loc stays valid.
	w.despawnHooks(id, arch.components)
	w.removed.record(id, arch.components, w.ChangeTick())

	if swapped, moved := arch.table.swapRemove(loc.Row); moved {
		w.entities.setLocation(swapped.Index(), loc)
	}
	w.entities.Free(id)
	w.applyHookCommands()
	return true
}

func (w *World) verifyRow(id EntityId, arch *Archetype, row uint32) {
	if int(row) >= arch.table.Len() || arch.table.entities[row] != id {
		panic(fmt.Sprintf("ecs: entity %v is not stored in archetype %d at row %d", id, arch.id, row))
	}
}

// moveEntity migrates id from its current archetype to dst and returns its new location.
func (w *World) moveEntity(id EntityId, loc EntityLocation, dst *Archetype) EntityLocation {
	src := w.archetypes.Get(loc.Archetype)
	w.verifyRow(id, src, loc.Row)

	newRow, swapped, moved := src.table.moveTo(loc.Row, dst.table)
	if moved {
		w.entities.setLocation(swapped.Index(), loc)
	}
	newLoc := EntityLocation{Archetype: dst.id, Row: newRow}
	w.entities.setLocation(id.Index(), newLoc)
	return newLoc
}

// Insert adds components to a live entity, replacing values of components it
// already has. Panics if the entity does not exist.
func (w *World) Insert(id EntityId, components ...any) {
	w.checkStructural()
	w.flush()
	loc := w.mustLocation(id)
	values := w.resolve(components)
	if len(values) == 0 {
		return
	}

	src := w.archetypes.Get(loc.Archetype)
	hooked := w.registry.hooked.Load()
	var added, replaced []ComponentId
	if hooked {
		for _, v := range values {
			if src.HasComponent(v.info.id) {
				replaced = append(replaced, v.info.id)
			} else {
				added = append(added, v.info.id)
			}
		}
		w.triggerHooks(hookReplace, id, replaced)
	}

	dst := src
	for _, v := range values {
		dst = w.archetypes.withComponent(dst, v.info.id)
	}
	if dst != src {
		loc = w.moveEntity(id, loc, dst)
	}

	now := w.ChangeTick()
	for _, v := range values {
		c := dst.table.column(v.info.id)
		if src.HasComponent(v.info.id) {
			c.replace(int(loc.Row), v.value, now)
		} else {
			c.initialize(int(loc.Row), v.value, newComponentTicks(now))
		}
	}

	if hooked {
		w.triggerHooks(hookAdd, id, added)
		w.triggerHooks(hookInsert, id, componentIds(values))
		w.applyHookCommands()
	}
}

// Remove removes the given components from a live entity, destroying their
// values. Components the entity lacks are ignored. It reports whether the
// entity's archetype changed. Panics if the entity does not exist.
func (w *World) Remove(id EntityId, components ...ComponentId) bool {
	w.checkStructural()
	w.flush()
	loc := w.mustLocation(id)

	src := w.archetypes.Get(loc.Archetype)
	dst := src
	var removed []ComponentId
	for _, c := range components {
		if dst.HasComponent(c) {
			dst = w.archetypes.withoutComponent(dst, c)
			removed = append(removed, c)
		}
	}
	if dst == src {
		return false
	}

	w.triggerHooks(hookReplace, id, removed)
	w.triggerHooks(hookRemove, id, removed)
	w.removed.record(id, removed, w.ChangeTick())
	w.moveEntity(id, loc, dst)
	w.applyHookCommands()
	return true
}

// RemoveComponent removes component T from the entity.
func RemoveComponent[T any](w *World, id EntityId) bool {
	c, ok := ComponentIdFor[T](w.registry)
	if !ok {
		return false
	}
	return w.Remove(id, c)
}

// Clear despawns every entity, running despawn hooks and recording removals
// as Despawn does.
func (w *World) Clear() {
	w.checkStructural()
	w.flush()
	now := w.ChangeTick()
	for _, arch := range w.archetypes.archetypes {
		for _, id := range arch.table.entities {
			w.despawnHooks(id, arch.components)
			w.removed.record(id, arch.components, now)
		}
		for _, id := range arch.table.entities {
			w.entities.Free(id)
		}
		arch.table.clear()
	}
	w.applyHookCommands()
}

func (w *World) componentPtr(id EntityId, c ComponentId) (unsafe.Pointer, *ComponentTicks) {
	loc, ok := w.entities.Location(id)
	if !ok {
		return nil, nil
	}
	return w.archetypes.Get(loc.Archetype).table.get(c, loc.Row)
}

// GetComponent returns a pointer to the component of the given type, or nil
func (w *World) GetComponent(id EntityId, compType reflect.Type) any {
	c, ok := w.registry.idOf(compType)
	if !ok {
		return nil
	}
	ptr, _ := w.componentPtr(id, c)
	if ptr == nil {
		return nil
	}
	return w.registry.Info(c).box(ptr)
}

// GetComponentMut is GetComponent for callers that write through the pointer.
// The component is marked changed.
func (w *World) GetComponentMut(id EntityId, compType reflect.Type) any {
	c, ok := w.registry.idOf(compType)
	if !ok {
		return nil
	}
	ptr, ticks := w.componentPtr(id, c)
	if ptr == nil {
		return nil
	}
	ticks.Changed = w.ChangeTick()
	return w.registry.Info(c).box(ptr)
}

// HasComponent checks if an entity has a specific component type
func (w *World) HasComponent(id EntityId, compType reflect.Type) bool {
	c, ok := w.registry.idOf(compType)
	if !ok {
		return false
	}
	loc, ok := w.entities.Location(id)
	if !ok {
		return false
	}
	return w.archetypes.Get(loc.Archetype).HasComponent(c)
}

// Has reports whether the entity has component T.
func Has[T any](w *World, id EntityId) bool {
	return w.HasComponent(id, reflect.TypeFor[T]())
}

// Get returns a read-only view of component T of the entity. Writing through
// the pointer is not tracked by change detection; use GetMut for that.
func Get[T any](w *World, id EntityId) (*T, bool) {
	c, ok := ComponentIdFor[T](w.registry)
	if !ok {
		return nil, false
	}
	ptr, _ := w.componentPtr(id, c)
	if ptr == nil {
		return nil, false
	}
	return (*T)(ptr), true
}

// GetMut returns component T of the entity and marks it changed.
func GetMut[T any](w *World, id EntityId) (*T, bool) {
	c, ok := ComponentIdFor[T](w.registry)
	if !ok {
		return nil, false
	}
	ptr, ticks := w.componentPtr(id, c)
	if ptr == nil {
		return nil, false
	}
	ticks.Changed = w.ChangeTick()
	return (*T)(ptr), true
}

// Ticks returns the change ticks of component T of the entity.
func Ticks[T any](w *World, id EntityId) (ComponentTicks, bool) {
	c, ok := ComponentIdFor[T](w.registry)
	if !ok {
		return ComponentTicks{}, false
	}
	_, ticks := w.componentPtr(id, c)
	if ticks == nil {
		return ComponentTicks{}, false
	}
	return *ticks, true
}

type ComponentReader interface {
	GetComponent(EntityId, reflect.Type) any
}

// ReadComponent fetches component T through any ComponentReader, or nil.
func ReadComponent[T any](reader ComponentReader, entityId EntityId) *T {
	comp, _ := reader.GetComponent(entityId, reflect.TypeFor[T]()).(*T)
	return comp
}
