package debugui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/archon/ecs"
)

type ArchetypeInfo struct {
	ID             ecs.ArchetypeId
	ComponentTypes []string
	EntityCount    int
}

type ArchetypeViewerCache struct {
	archetypes    []ArchetypeInfo
	sortColumn    int
	sortAscending bool
}

func NewArchetypeViewerComponent() ArchetypeViewerComponent {
	return ArchetypeViewerComponent{
		cache: &ArchetypeViewerCache{
			sortColumn:    3,
			sortAscending: false,
		},
	}
}

// Render draws the archetype table and returns the archetype clicked this
// frame, if any.
func (av *ArchetypeViewerComponent) Render(world *ecs.World) *ecs.ArchetypeId {
	if !imgui.BeginV("Archetype Viewer", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return nil
	}

	av.refresh(world)

	maxEntityCount := 0
	for _, arch := range av.cache.archetypes {
		maxEntityCount = max(maxEntityCount, arch.EntityCount)
	}

	var clickedArchId *ecs.ArchetypeId

	const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg | imgui.TableFlagsSortable | imgui.TableFlagsScrollY
	if imgui.BeginTableV("ArchetypeTable", 4, tableFlags, imgui.NewVec2(0, 0), 0) {
		imgui.TableSetupColumn("Archetype ID")
		imgui.TableSetupColumn("Components")
		imgui.TableSetupColumn("Comp Count")
		imgui.TableSetupColumn("Entity Count")
		imgui.TableHeadersRow()

		sortSpecs := imgui.TableGetSortSpecs()
		if sortSpecs.SpecsDirty() && sortSpecs.SpecsCount() > 0 {
			spec := sortSpecs.Specs()
			av.cache.sortColumn = int(spec.ColumnIndex())
			av.cache.sortAscending = spec.SortDirection() == imgui.SortDirectionAscending
			sortArchetypes(av.cache.archetypes, av.cache.sortColumn, av.cache.sortAscending)
			sortSpecs.SetSpecsDirty(false)
		}

		for _, arch := range av.cache.archetypes {
			imgui.TableNextRow()

			imgui.TableNextColumn()
			isSelected := av.selectedArchId != nil && *av.selectedArchId == arch.ID
			if imgui.SelectableBoolV(fmt.Sprintf("0x%X", uint32(arch.ID)), isSelected, imgui.SelectableFlagsSpanAllColumns, imgui.NewVec2(0, 0)) {
				archIdCopy := arch.ID
				clickedArchId = &archIdCopy
				av.selectedArchId = &archIdCopy
			}

			imgui.TableNextColumn()
			imgui.Text(strings.Join(arch.ComponentTypes, ", "))

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", len(arch.ComponentTypes)))

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", arch.EntityCount))

			if maxEntityCount > 0 {
				barWidth := float32(arch.EntityCount) / float32(maxEntityCount) * 80.0
				imgui.SameLine()
				drawList := imgui.WindowDrawList()
				pos := imgui.CursorScreenPos()
				color := imgui.ColorU32Vec4(imgui.NewVec4(0.2, 0.6, 0.8, 0.6))
				drawList.AddRectFilled(pos, imgui.NewVec2(pos.X+barWidth, pos.Y+10), color)
			}
		}

		imgui.EndTable()
	}

	imgui.End()
	return clickedArchId
}

// refresh rebuilds the list when archetypes were created and otherwise only
// updates entity counts, since archetypes are never removed.
func (av *ArchetypeViewerComponent) refresh(world *ecs.World) {
	if len(av.cache.archetypes) != world.Archetypes().Len() {
		av.cache.archetypes = collectArchetypes(world)
	} else {
		for i := range av.cache.archetypes {
			av.cache.archetypes[i].EntityCount = world.Archetypes().Get(av.cache.archetypes[i].ID).Len()
		}
	}
	sortArchetypes(av.cache.archetypes, av.cache.sortColumn, av.cache.sortAscending)
}

func collectArchetypes(world *ecs.World) []ArchetypeInfo {
	archetypes := make([]ArchetypeInfo, 0, world.Archetypes().Len())
	for archetype := range world.Archetypes().All() {
		archetypes = append(archetypes, ArchetypeInfo{
			ID:             archetype.Id(),
			ComponentTypes: componentNames(world.Registry(), archetype),
			EntityCount:    archetype.Len(),
		})
	}
	return archetypes
}

func sortArchetypes(archetypes []ArchetypeInfo, column int, ascending bool) {
	sort.SliceStable(archetypes, func(i, j int) bool {
		a, b := archetypes[i], archetypes[j]
		if !ascending {
			a, b = b, a
		}

		switch column {
		case 0:
			return a.ID < b.ID
		case 1:
			return strings.Join(a.ComponentTypes, ",") < strings.Join(b.ComponentTypes, ",")
		case 2:
			return len(a.ComponentTypes) < len(b.ComponentTypes)
		default:
			return a.EntityCount < b.EntityCount
		}
	})
}
