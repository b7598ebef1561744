package debugui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/archon/ecs"
)

type EntityInfo struct {
	ID             ecs.EntityId
	ArchetypeID    ecs.ArchetypeId
	ComponentTypes []string
}

// EntityBrowserCache is rebuilt whenever the archetype or entity count moves.
type EntityBrowserCache struct {
	entities           []EntityInfo
	lastArchetypeCount int
	lastEntityCount    int
	sortColumn         int
	sortAscending      bool
}

func NewEntityBrowserComponent(maxEntitiesPerPage int) EntityBrowserComponent {
	return EntityBrowserComponent{
		cache: &EntityBrowserCache{
			sortColumn:    0,
			sortAscending: true,
		},
		maxEntitiesPerPage: maxEntitiesPerPage,
	}
}

func (eb *EntityBrowserComponent) Render(world *ecs.World) {
	if !imgui.BeginV("Entity Browser", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	eb.rebuildCacheIfNeeded(world)

	imgui.InputTextWithHint("##search", "Search...", &eb.filterText, imgui.InputTextFlagsNone, nil)
	imgui.SameLine()
	if imgui.Button("Clear Filter") {
		eb.filterText = ""
		eb.filterArchetypeId = nil
	}

	filteredEntities := filterEntities(eb.cache.entities, eb.filterText, eb.filterArchetypeId)

	const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg | imgui.TableFlagsSortable | imgui.TableFlagsScrollY
	if imgui.BeginTableV("EntityTable", 4, tableFlags, imgui.NewVec2(0, 0), 0) {
		imgui.TableSetupColumn("Entity")
		imgui.TableSetupColumn("Archetype ID")
		imgui.TableSetupColumn("Components")
		imgui.TableSetupColumn("Count")
		imgui.TableHeadersRow()

		sortSpecs := imgui.TableGetSortSpecs()
		if sortSpecs.SpecsDirty() && sortSpecs.SpecsCount() > 0 {
			spec := sortSpecs.Specs()
			eb.cache.sortColumn = int(spec.ColumnIndex())
			eb.cache.sortAscending = spec.SortDirection() == imgui.SortDirectionAscending
			sortEntities(eb.cache.entities, eb.cache.sortColumn, eb.cache.sortAscending)
			sortSpecs.SetSpecsDirty(false)
		}

		startIdx := min(eb.currentPage*eb.maxEntitiesPerPage, len(filteredEntities))
		endIdx := min(startIdx+eb.maxEntitiesPerPage, len(filteredEntities))

		for _, entity := range filteredEntities[startIdx:endIdx] {
			imgui.TableNextRow()

			imgui.TableNextColumn()
			isSelected := eb.selectedEntityId == entity.ID
			if imgui.SelectableBoolV(entity.ID.String(), isSelected, imgui.SelectableFlagsSpanAllColumns, imgui.NewVec2(0, 0)) {
				eb.selectedEntityId = entity.ID
			}

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("0x%X", uint32(entity.ArchetypeID)))

			imgui.TableNextColumn()
			imgui.Text(strings.Join(entity.ComponentTypes, ", "))

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", len(entity.ComponentTypes)))
		}

		imgui.EndTable()
	}

	if len(filteredEntities) > eb.maxEntitiesPerPage {
		totalPages := (len(filteredEntities) + eb.maxEntitiesPerPage - 1) / eb.maxEntitiesPerPage
		imgui.Text(fmt.Sprintf("Page %d / %d (%d entities)", eb.currentPage+1, totalPages, len(filteredEntities)))
		imgui.SameLine()
		if imgui.Button("Prev") && eb.currentPage > 0 {
			eb.currentPage--
		}
		imgui.SameLine()
		if imgui.Button("Next") && eb.currentPage < totalPages-1 {
			eb.currentPage++
		}
	} else {
		imgui.Text(fmt.Sprintf("Total: %d entities", len(filteredEntities)))
	}

	imgui.End()
}

func (eb *EntityBrowserComponent) rebuildCacheIfNeeded(world *ecs.World) {
	archetypeCount := world.Archetypes().Len()
	entityCount := world.Len()
	if eb.cache.entities != nil &&
		eb.cache.lastArchetypeCount == archetypeCount &&
		eb.cache.lastEntityCount == entityCount {
		return
	}
	eb.cache.lastArchetypeCount = archetypeCount
	eb.cache.lastEntityCount = entityCount
	eb.cache.entities = collectEntities(world)
	sortEntities(eb.cache.entities, eb.cache.sortColumn, eb.cache.sortAscending)
}

func collectEntities(world *ecs.World) []EntityInfo {
	entities := make([]EntityInfo, 0, world.Len())
	for archetype := range world.Archetypes().All() {
		componentTypes := componentNames(world.Registry(), archetype)
		for entityId := range archetype.Iter() {
			entities = append(entities, EntityInfo{
				ID:             entityId,
				ArchetypeID:    archetype.Id(),
				ComponentTypes: componentTypes,
			})
		}
	}
	return entities
}

func sortEntities(entities []EntityInfo, column int, ascending bool) {
	sort.SliceStable(entities, func(i, j int) bool {
		a, b := entities[i], entities[j]
		if !ascending {
			a, b = b, a
		}

		switch column {
		case 1:
			return a.ArchetypeID < b.ArchetypeID
		case 2:
			return strings.Join(a.ComponentTypes, ",") < strings.Join(b.ComponentTypes, ",")
		case 3:
			return len(a.ComponentTypes) < len(b.ComponentTypes)
		default:
			return a.ID.Index() < b.ID.Index()
		}
	})
}

// filterEntities matches text case-insensitively against the entity id, the
// archetype id and the component names.
func filterEntities(entities []EntityInfo, text string, archetype *ecs.ArchetypeId) []EntityInfo {
	if text == "" && archetype == nil {
		return entities
	}

	filtered := make([]EntityInfo, 0, len(entities))
	filterLower := strings.ToLower(text)

	for _, entity := range entities {
		if archetype != nil && entity.ArchetypeID != *archetype {
			continue
		}

		if text != "" {
			idStr := strings.ToLower(entity.ID.String())
			archStr := fmt.Sprintf("0x%x", uint32(entity.ArchetypeID))
			componentsStr := strings.ToLower(strings.Join(entity.ComponentTypes, " "))

			if !strings.Contains(idStr, filterLower) &&
				!strings.Contains(archStr, filterLower) &&
				!strings.Contains(componentsStr, filterLower) {
				continue
			}
		}

		filtered = append(filtered, entity)
	}

	return filtered
}

func (eb *EntityBrowserComponent) GetSelectedEntity() ecs.EntityId {
	return eb.selectedEntityId
}

// SetArchetypeFilter limits the browser to one archetype; nil clears it.
func (eb *EntityBrowserComponent) SetArchetypeFilter(id *ecs.ArchetypeId) {
	eb.filterArchetypeId = id
	eb.currentPage = 0
}
