package debugui

import (
	"github.com/plus3/archon/ecs"
)

type EntityBrowserComponent struct {
	cache              *EntityBrowserCache
	selectedEntityId   ecs.EntityId
	filterText         string
	filterArchetypeId  *ecs.ArchetypeId
	maxEntitiesPerPage int
	currentPage        int
}

type ComponentInspectorComponent struct {
	selectedEntityId ecs.EntityId
}

type ArchetypeViewerComponent struct {
	cache          *ArchetypeViewerCache
	selectedArchId *ecs.ArchetypeId
}

type PerformanceStatsComponent struct {
	historyFrames int
	frameHistory  []float32
	frameIndex    int
}

type QueryDebuggerComponent struct {
	selected map[ecs.ComponentId]bool
	cache    *QueryDebuggerCache
}

// componentNames lists the component type names of an archetype in id order.
func componentNames(registry *ecs.ComponentRegistry, arch *ecs.Archetype) []string {
	names := make([]string, len(arch.Components()))
	for i, id := range arch.Components() {
		names[i] = registry.Info(id).Name()
	}
	return names
}
