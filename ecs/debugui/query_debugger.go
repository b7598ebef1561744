package debugui

import (
	"fmt"
	"sort"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/archon/ecs"
)

type componentEntry struct {
	id   ecs.ComponentId
	name string
}

type QueryDebuggerCache struct {
	components         []componentEntry
	lastArchetypeCount int
}

func NewQueryDebuggerComponent() QueryDebuggerComponent {
	return QueryDebuggerComponent{
		selected: make(map[ecs.ComponentId]bool),
		cache: &QueryDebuggerCache{
			lastArchetypeCount: -1,
		},
	}
}

func (qd *QueryDebuggerComponent) Render(world *ecs.World) {
	if !imgui.BeginV("Query Debugger", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	if n := world.Archetypes().Len(); qd.cache.lastArchetypeCount != n {
		qd.cache.components = storedComponents(world)
		qd.cache.lastArchetypeCount = n
	}

	imgui.Text("Select Component Types:")
	imgui.Separator()

	if imgui.Button("Clear All") {
		clear(qd.selected)
	}

	for _, comp := range qd.cache.components {
		selected := qd.selected[comp.id]
		if imgui.Checkbox(comp.name, &selected) {
			if selected {
				qd.selected[comp.id] = true
			} else {
				delete(qd.selected, comp.id)
			}
		}
	}

	imgui.Separator()

	if len(qd.selected) == 0 {
		imgui.Text("No component types selected")
		imgui.End()
		return
	}

	required := make([]ecs.ComponentId, 0, len(qd.selected))
	for id := range qd.selected {
		required = append(required, id)
	}

	matchingArchetypes := matchingArchetypes(world, required)
	totalEntities := 0
	for _, arch := range matchingArchetypes {
		totalEntities += arch.Len()
	}

	imgui.Text(fmt.Sprintf("Matching Archetypes: %d", len(matchingArchetypes)))
	imgui.Text(fmt.Sprintf("Matching Entities: %d", totalEntities))

	if imgui.TreeNodeStr("Archetype Details") {
		const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg
		if imgui.BeginTableV("QueryArchTable", 3, tableFlags, imgui.NewVec2(0, 0), 0) {
			imgui.TableSetupColumn("Archetype ID")
			imgui.TableSetupColumn("All Components")
			imgui.TableSetupColumn("Entity Count")
			imgui.TableHeadersRow()

			for _, arch := range matchingArchetypes {
				imgui.TableNextRow()

				imgui.TableSetColumnIndex(0)
				imgui.Text(fmt.Sprintf("0x%X", uint32(arch.Id())))

				imgui.TableSetColumnIndex(1)
				imgui.Text(fmt.Sprintf("%v", componentNames(world.Registry(), arch)))

				imgui.TableSetColumnIndex(2)
				imgui.Text(fmt.Sprintf("%d", arch.Len()))
			}

			imgui.EndTable()
		}
		imgui.TreePop()
	}

	imgui.End()
}

// storedComponents lists every component that appears in some archetype,
// sorted by name.
func storedComponents(world *ecs.World) []componentEntry {
	seen := make(map[ecs.ComponentId]bool)
	var entries []componentEntry
	for archetype := range world.Archetypes().All() {
		for _, id := range archetype.Components() {
			if seen[id] {
				continue
			}
			seen[id] = true
			entries = append(entries, componentEntry{id: id, name: world.Registry().Info(id).Name()})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return entries
}

func matchingArchetypes(world *ecs.World, required []ecs.ComponentId) []*ecs.Archetype {
	matching := make([]*ecs.Archetype, 0)
	for archetype := range world.Archetypes().All() {
		if archetypeHasAll(archetype, required) {
			matching = append(matching, archetype)
		}
	}
	return matching
}

func archetypeHasAll(archetype *ecs.Archetype, required []ecs.ComponentId) bool {
	for _, id := range required {
		if !archetype.HasComponent(id) {
			return false
		}
	}
	return true
}
