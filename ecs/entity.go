package ecs

import (
	"fmt"
	"math"
	"sync/atomic"
)

// EntityId encodes both the generation (upper 32 bits) and the entity index (lower 32 bits).
// Generation 0 is never issued, so the zero EntityId never refers to a live entity.
type EntityId uint64

// NewEntityId creates an EntityId from an entity index and generation
func NewEntityId(index uint32, generation uint32) EntityId {
	return EntityId(uint64(generation)<<32 | uint64(index))
}

// Index extracts the entity index from the entity ID
func (e EntityId) Index() uint32 {
	return uint32(e & 0xFFFFFFFF)
}

// Generation extracts the generation counter from the entity ID
func (e EntityId) Generation() uint32 {
	return uint32(e >> 32)
}

func (e EntityId) String() string {
	return fmt.Sprintf("%dv%d", e.Index(), e.Generation())
}

// EntityLocation is the archetype and table row an entity currently occupies.
// Rows move on every structural change, so a location must not be kept across one.
type EntityLocation struct {
	Archetype ArchetypeId
	Row       uint32
}

var invalidLocation = EntityLocation{Archetype: InvalidArchetypeId, Row: math.MaxUint32}

type entityMeta struct {
	generation uint32
	alive      bool
	location   EntityLocation
}

// Entities issues entity ids and tracks where every live entity is stored.
//
// Ids can be reserved concurrently (Reserve, ReserveMany) while the world is
// shared by running systems; reserved ids become live on the next Flush.
type Entities struct {
	meta    []entityMeta
	pending []uint32

	// freeCursor counts down through pending while ids are reserved. Once it
	// goes negative, -freeCursor fresh indices past len(meta) are reserved.
	freeCursor atomic.Int64
	live       int
}

// NewEntities creates an empty entity allocator.
func NewEntities() *Entities {
	return &Entities{}
}

func nextGeneration(g uint32) uint32 {
	g++
	if g == 0 {
		g = 1
	}
	return g
}

func (e *Entities) needsFlush() bool {
	return e.freeCursor.Load() != int64(len(e.pending))
}

func (e *Entities) verifyFlushed() {
	if e.needsFlush() {
		panic("ecs: reserved entities must be flushed before allocating or freeing entities")
	}
}

// Allocate returns a fresh or recycled entity id. Recycled indices carry a
// generation strictly greater than any previously issued for them.
func (e *Entities) Allocate() EntityId {
	e.verifyFlushed()
	e.live++

	if n := len(e.pending); n > 0 {
		index := e.pending[n-1]
		e.pending = e.pending[:n-1]
		e.freeCursor.Store(int64(len(e.pending)))

		meta := &e.meta[index]
		meta.alive = true
		meta.location = invalidLocation
		return NewEntityId(index, meta.generation)
	}

	if uint64(len(e.meta)) >= math.MaxUint32 {
		panic("ecs: too many entities")
	}
	index := uint32(len(e.meta))
	e.meta = append(e.meta, entityMeta{generation: 1, alive: true, location: invalidLocation})
	return NewEntityId(index, 1)
}

// AllocateRange allocates n entities with contiguous, never used indices.
func (e *Entities) AllocateRange(n int) []EntityId {
	e.verifyFlushed()
	if n <= 0 {
		return nil
	}
	if uint64(len(e.meta)+n) > math.MaxUint32 {
		panic("ecs: too many entities")
	}

	start := len(e.meta)
	e.meta = append(e.meta, make([]entityMeta, n)...)

	ids := make([]EntityId, n)
	for i := range ids {
		meta := &e.meta[start+i]
		meta.generation = 1
		meta.alive = true
		meta.location = invalidLocation
		ids[i] = NewEntityId(uint32(start+i), 1)
	}
	e.live += n
	return ids
}

// Free releases the id and returns its last location. Stale ids are ignored.
func (e *Entities) Free(id EntityId) (EntityLocation, bool) {
	e.verifyFlushed()

	meta, ok := e.liveMeta(id)
	if !ok {
		return invalidLocation, false
	}

	loc := meta.location
	meta.generation = nextGeneration(meta.generation)
	meta.alive = false
	meta.location = invalidLocation

	e.pending = append(e.pending, id.Index())
	e.freeCursor.Store(int64(len(e.pending)))
	e.live--
	return loc, true
}

// Reserve hands out an id that becomes live on the next Flush.
// Safe to call from multiple goroutines while no structural change is running.
func (e *Entities) Reserve() EntityId {
	n := e.freeCursor.Add(-1) + 1
	if n > 0 {
		index := e.pending[n-1]
		return NewEntityId(index, e.meta[index].generation)
	}
	return NewEntityId(uint32(int64(len(e.meta))-n), 1)
}

// ReserveMany reserves n ids with a single atomic operation.
func (e *Entities) ReserveMany(n int) []EntityId {
	if n <= 0 {
		return nil
	}

	rangeEnd := e.freeCursor.Add(-int64(n)) + int64(n)
	rangeStart := rangeEnd - int64(n)

	ids := make([]EntityId, 0, n)
	for i := max(rangeStart, 0); i < max(rangeEnd, 0); i++ {
		index := e.pending[i]
		ids = append(ids, NewEntityId(index, e.meta[index].generation))
	}

	if rangeStart < 0 {
		base := int64(len(e.meta))
		for index := base - min(rangeEnd, 0); index < base-rangeStart; index++ {
			ids = append(ids, NewEntityId(uint32(index), 1))
		}
	}
	return ids
}

// Flush makes every reserved id live, calling init so the caller can place it.
func (e *Entities) Flush(init func(id EntityId, loc *EntityLocation)) {
	cursor := e.freeCursor.Load()

	newFree := 0
	if cursor >= 0 {
		newFree = int(cursor)
	} else {
		old := len(e.meta)
		e.meta = append(e.meta, make([]entityMeta, int(-cursor))...)
		e.freeCursor.Store(0)

		for index := old; index < len(e.meta); index++ {
			meta := &e.meta[index]
			meta.generation = 1
			meta.alive = true
			meta.location = invalidLocation
			e.live++
			init(NewEntityId(uint32(index), meta.generation), &meta.location)
		}
	}

	for _, index := range e.pending[newFree:] {
		meta := &e.meta[index]
		meta.alive = true
		meta.location = invalidLocation
		e.live++
		init(NewEntityId(index, meta.generation), &meta.location)
	}
	e.pending = e.pending[:newFree]
}

func (e *Entities) liveMeta(id EntityId) (*entityMeta, bool) {
	index := id.Index()
	if int(index) >= len(e.meta) {
		return nil, false
	}
	meta := &e.meta[index]
	if !meta.alive || meta.generation != id.Generation() {
		return nil, false
	}
	return meta, true
}

// IsLive reports whether the id refers to a live entity.
func (e *Entities) IsLive(id EntityId) bool {
	_, ok := e.liveMeta(id)
	return ok
}

// Location returns the current location of a live entity.
func (e *Entities) Location(id EntityId) (EntityLocation, bool) {
	meta, ok := e.liveMeta(id)
	if !ok {
		return invalidLocation, false
	}
	return meta.location, true
}

func (e *Entities) setLocation(index uint32, loc EntityLocation) {
	e.meta[index].location = loc
}

// Len returns the number of live entities.
func (e *Entities) Len() int {
	return e.live
}
