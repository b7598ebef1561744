package ecs

import (
	"fmt"
	"iter"
	"math"
	"slices"

	"github.com/kamstrup/intmap"
	"github.com/kelindar/bitmap"
)

// ArchetypeId identifies an archetype within one World.
type ArchetypeId uint32

const (
	// EmptyArchetypeId is the archetype of entities without components.
	EmptyArchetypeId ArchetypeId = 0
	// InvalidArchetypeId marks a location that does not point anywhere.
	InvalidArchetypeId ArchetypeId = math.MaxUint32
)

// Archetype represents a unique combination of component types
type Archetype struct {
	id         ArchetypeId
	components []ComponentId
	mask       bitmap.Bitmap
	table      *Table

	// edges cache the archetype reached by adding or removing one component.
	addEdges    *intmap.Map[ComponentId, ArchetypeId]
	removeEdges *intmap.Map[ComponentId, ArchetypeId]
}

func newArchetype(id ArchetypeId, components []ComponentId, registry *ComponentRegistry) *Archetype {
	a := &Archetype{
		id:          id,
		components:  components,
		table:       newTable(components, registry),
		addEdges:    intmap.New[ComponentId, ArchetypeId](8),
		removeEdges: intmap.New[ComponentId, ArchetypeId](8),
	}
	for _, c := range components {
		a.mask.Set(uint32(c))
	}
	return a
}

// Id returns the archetype's unique identifier
func (a *Archetype) Id() ArchetypeId {
	return a.id
}

// Components returns the sorted component ids of this archetype
func (a *Archetype) Components() []ComponentId {
	return a.components
}

// HasComponent checks if this archetype has the given component type
func (a *Archetype) HasComponent(id ComponentId) bool {
	return a.mask.Contains(uint32(id))
}

// Table returns the storage backing this archetype.
func (a *Archetype) Table() *Table {
	return a.table
}

// Len returns the number of entities in this archetype.
func (a *Archetype) Len() int {
	return a.table.Len()
}

// Iter returns an iterator over all entities in this archetype, in row order
func (a *Archetype) Iter() iter.Seq[EntityId] {
	return func(yield func(EntityId) bool) {
		for _, e := range a.table.entities {
			if !yield(e) {
				return
			}
		}
	}
}

// Archetypes owns every archetype of a World, keyed by its canonical
// component set.
type Archetypes struct {
	registry   *ComponentRegistry
	archetypes []*Archetype
	byHash     *intmap.Map[uint64, []ArchetypeId]
}

func newArchetypes(registry *ComponentRegistry) *Archetypes {
	a := &Archetypes{
		registry: registry,
		byHash:   intmap.New[uint64, []ArchetypeId](64),
	}
	a.GetOrCreate(nil)
	return a
}

// Len returns the number of archetypes. It only grows, so queries use it as
// a generation counter for their caches.
func (a *Archetypes) Len() int {
	return len(a.archetypes)
}

// Get returns the archetype with the given id.
func (a *Archetypes) Get(id ArchetypeId) *Archetype {
	if int(id) >= len(a.archetypes) {
		panic(fmt.Sprintf("ecs: unknown archetype %d", id))
	}
	return a.archetypes[id]
}

// All iterates archetypes in creation order.
func (a *Archetypes) All() iter.Seq[*Archetype] {
	return slices.Values(a.archetypes)
}

// Find returns the archetype for the set of components, if it exists.
func (a *Archetypes) Find(components []ComponentId) (*Archetype, bool) {
	return a.find(canonicalize(components))
}

func (a *Archetypes) find(canonical []ComponentId) (*Archetype, bool) {
	ids, _ := a.byHash.Get(hashComponentIds(canonical))
	for _, id := range ids {
		if slices.Equal(a.archetypes[id].components, canonical) {
			return a.archetypes[id], true
		}
	}
	return nil, false
}

// GetOrCreate returns the archetype for the set of components, creating it and
// its table on first use. The set is treated as unordered.
func (a *Archetypes) GetOrCreate(components []ComponentId) *Archetype {
	canonical := canonicalize(components)
	if arch, ok := a.find(canonical); ok {
		return arch
	}

	id := ArchetypeId(len(a.archetypes))
	if id == InvalidArchetypeId {
		panic("ecs: too many archetypes")
	}
	arch := newArchetype(id, canonical, a.registry)
	a.archetypes = append(a.archetypes, arch)

	hash := hashComponentIds(canonical)
	ids, _ := a.byHash.Get(hash)
	a.byHash.Put(hash, append(ids, id))
	return arch
}

// withComponent returns the archetype reached by adding c to from.
func (a *Archetypes) withComponent(from *Archetype, c ComponentId) *Archetype {
	if id, ok := from.addEdges.Get(c); ok {
		return a.archetypes[id]
	}
	to := a.GetOrCreate(append(slices.Clone(from.components), c))
	from.addEdges.Put(c, to.id)
	return to
}

// withoutComponent returns the archetype reached by removing c from from.
func (a *Archetypes) withoutComponent(from *Archetype, c ComponentId) *Archetype {
	if id, ok := from.removeEdges.Get(c); ok {
		return a.archetypes[id]
	}
	rest := make([]ComponentId, 0, len(from.components))
	for _, id := range from.components {
		if id != c {
			rest = append(rest, id)
		}
	}
	to := a.GetOrCreate(rest)
	from.removeEdges.Put(c, to.id)
	return to
}

// canonicalize returns a sorted copy of ids without duplicates.
func canonicalize(ids []ComponentId) []ComponentId {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// hashComponentIds hashes a sorted id set with 64-bit FNV-1a.
func hashComponentIds(ids []ComponentId) uint64 {
	var h uint64 = 14695981039346656037 // FNV-1a 64-bit offset basis
	const prime uint64 = 1099511628211  // FNV-1a 64-bit prime

	for _, id := range ids {
		v := uint32(id)
		for i := 0; i < 4; i++ {
			h ^= uint64(byte(v >> (8 * i)))
			h *= prime
		}
	}
	return h
}
