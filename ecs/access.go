package ecs

import (
	"github.com/kelindar/bitmap"
)

// Access records which component ids something reads and writes. A write
// always implies a read of the same id.
type Access struct {
	reads     bitmap.Bitmap
	writes    bitmap.Bitmap
	readsAll  bool
	writesAll bool
}

func (a *Access) AddRead(id ComponentId) {
	a.reads.Set(uint32(id))
}

func (a *Access) AddWrite(id ComponentId) {
	a.reads.Set(uint32(id))
	a.writes.Set(uint32(id))
}

// ReadAll marks every id as read.
func (a *Access) ReadAll() {
	a.readsAll = true
}

// WriteAll marks every id as written.
func (a *Access) WriteAll() {
	a.readsAll = true
	a.writesAll = true
}

func (a *Access) HasRead(id ComponentId) bool {
	return a.readsAll || a.reads.Contains(uint32(id))
}

func (a *Access) HasWrite(id ComponentId) bool {
	return a.writesAll || a.writes.Contains(uint32(id))
}

func (a *Access) readsAny() bool {
	return a.readsAll || a.reads.Count() > 0
}

func (a *Access) writesAny() bool {
	return a.writesAll || a.writes.Count() > 0
}

// Extend adds everything other accesses.
func (a *Access) Extend(other *Access) {
	union(&a.reads, other.reads)
	union(&a.writes, other.writes)
	a.readsAll = a.readsAll || other.readsAll
	a.writesAll = a.writesAll || other.writesAll
}

// IsCompatible reports whether a and other can run at the same time: neither
// writes anything the other reads.
func (a *Access) IsCompatible(other *Access) bool {
	switch {
	case a.writesAll:
		return !other.readsAny()
	case other.writesAll:
		return !a.readsAny()
	case a.readsAll:
		return !other.writesAny()
	case other.readsAll:
		return !a.writesAny()
	}
	return !intersects(a.writes, other.reads) && !intersects(a.reads, other.writes)
}

// Conflicts returns the ids that make a and other incompatible. An access
// with ReadAll or WriteAll conflicts on everything the other one touches.
func (a *Access) Conflicts(other *Access) []ComponentId {
	var out bitmap.Bitmap
	switch {
	case a.writesAll:
		union(&out, other.reads)
	case other.writesAll:
		union(&out, a.reads)
	case a.readsAll:
		union(&out, other.writes)
	case other.readsAll:
		union(&out, a.writes)
	default:
		out = intersection(a.writes, other.reads)
		union(&out, intersection(a.reads, other.writes))
	}
	return toComponentIds(out)
}

// FilteredAccess is the access of one query together with the components its
// matched archetypes must have (with) or must not have (without).
type FilteredAccess struct {
	access  Access
	with    bitmap.Bitmap
	without bitmap.Bitmap
}

func (f *FilteredAccess) Access() *Access {
	return &f.access
}

func (f *FilteredAccess) AddWith(id ComponentId) {
	f.with.Set(uint32(id))
}

func (f *FilteredAccess) AddWithout(id ComponentId) {
	f.without.Set(uint32(id))
}

// IsCompatible reports whether the two accesses can be used concurrently.
// Accesses whose filters exclude each other never touch the same archetype,
// so they are compatible even when their component accesses overlap.
func (f *FilteredAccess) IsCompatible(other *FilteredAccess) bool {
	if f.access.IsCompatible(&other.access) {
		return true
	}
	return intersects(f.with, other.without) || intersects(f.without, other.with)
}

// FilteredAccessSet is the combined access of every parameter of a system.
type FilteredAccessSet struct {
	combined Access
	filtered []FilteredAccess
}

func (s *FilteredAccessSet) Combined() *Access {
	return &s.combined
}

// Add records the access of one parameter.
func (s *FilteredAccessSet) Add(f FilteredAccess) {
	s.combined.Extend(&f.access)
	s.filtered = append(s.filtered, f)
}

func (s *FilteredAccessSet) AddUnfilteredRead(id ComponentId) {
	var f FilteredAccess
	f.access.AddRead(id)
	s.Add(f)
}

func (s *FilteredAccessSet) AddUnfilteredWrite(id ComponentId) {
	var f FilteredAccess
	f.access.AddWrite(id)
	s.Add(f)
}

// WriteAll claims every component.
func (s *FilteredAccessSet) WriteAll() {
	var f FilteredAccess
	f.access.WriteAll()
	s.Add(f)
}

// IsCompatibleWith reports whether a single parameter's access fits in with
// every parameter already in s.
func (s *FilteredAccessSet) IsCompatibleWith(f *FilteredAccess) bool {
	if s.combined.IsCompatible(&f.access) {
		return true
	}
	for i := range s.filtered {
		if !s.filtered[i].IsCompatible(f) {
			return false
		}
	}
	return true
}

func (s *FilteredAccessSet) IsCompatible(other *FilteredAccessSet) bool {
	if s.combined.IsCompatible(&other.combined) {
		return true
	}
	for i := range other.filtered {
		if !s.IsCompatibleWith(&other.filtered[i]) {
			return false
		}
	}
	return true
}

// Conflicts returns the component ids on which s and other conflict, sorted.
// It is empty when the sets are compatible.
func (s *FilteredAccessSet) Conflicts(other *FilteredAccessSet) []ComponentId {
	if s.combined.IsCompatible(&other.combined) {
		return nil
	}
	var out bitmap.Bitmap
	for i := range s.filtered {
		for j := range other.filtered {
			if s.filtered[i].IsCompatible(&other.filtered[j]) {
				continue
			}
			for _, id := range s.filtered[i].access.Conflicts(&other.filtered[j].access) {
				out.Set(uint32(id))
			}
		}
	}
	return toComponentIds(out)
}

func intersects(a, b bitmap.Bitmap) bool {
	return intersection(a, b).Count() > 0
}

func intersection(a, b bitmap.Bitmap) bitmap.Bitmap {
	out := a.Clone(nil)
	out.And(b)
	return out
}

// union ors src into dst. Or dereferences the first block of src, so empty
// sources are skipped.
func union(dst *bitmap.Bitmap, src bitmap.Bitmap) {
	if len(src) > 0 {
		dst.Or(src)
	}
}

func toComponentIds(b bitmap.Bitmap) []ComponentId {
	var ids []ComponentId
	b.Range(func(x uint32) {
		ids = append(ids, ComponentId(x))
	})
	return ids
}
