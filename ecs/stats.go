package ecs

import (
	"slices"
)

// WorldStats is a point-in-time snapshot of a World's storage.
type WorldStats struct {
	TotalEntityCount   int
	ArchetypeCount     int
	SingletonCount     int
	ComponentTypeCount int
	ArchetypeBreakdown []ArchetypeStats
	SingletonTypes     []string
}

// ArchetypeStats describes one archetype in a WorldStats snapshot.
type ArchetypeStats struct {
	ID             ArchetypeId
	ComponentTypes []string
	EntityCount    int
	Capacity       int
}

// CollectStats snapshots entity, archetype and singleton counts. The
// component-less archetype is only listed while it holds entities.
func (w *World) CollectStats() WorldStats {
	stats := WorldStats{
		TotalEntityCount:   w.entities.Len(),
		SingletonCount:     w.singletons.len(),
		ComponentTypeCount: w.registry.Len(),
	}

	for _, arch := range w.archetypes.archetypes {
		if arch.id == EmptyArchetypeId && arch.Len() == 0 {
			continue
		}
		names := make([]string, len(arch.components))
		for i, id := range arch.components {
			names[i] = w.registry.Info(id).Name()
		}
		capacity := cap(arch.table.entities)
		stats.ArchetypeBreakdown = append(stats.ArchetypeBreakdown, ArchetypeStats{
			ID:             arch.id,
			ComponentTypes: names,
			EntityCount:    arch.Len(),
			Capacity:       capacity,
		})
	}
	stats.ArchetypeCount = len(stats.ArchetypeBreakdown)

	w.singletons.entries.ForEach(func(_ ComponentId, entry *singletonEntry) bool {
		stats.SingletonTypes = append(stats.SingletonTypes, entry.info.Name())
		return true
	})
	slices.Sort(stats.SingletonTypes)
	return stats
}
