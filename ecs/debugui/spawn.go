package debugui

import "github.com/plus3/archon/ecs"

// SpawnDebugUI spawns one entity per inspector panel.
func SpawnDebugUI(world *ecs.World) {
	world.Spawn(NewEntityBrowserComponent(100))
	world.Spawn(NewComponentInspectorComponent())
	world.Spawn(NewArchetypeViewerComponent())
	world.Spawn(NewPerformanceStatsComponent(120))
	world.Spawn(NewQueryDebuggerComponent())
}

func RegisterDebugUIComponents(registry *ecs.ComponentRegistry) {
	ecs.RegisterComponent[ImguiItem](registry)
	ecs.RegisterComponent[EntityBrowserComponent](registry)
	ecs.RegisterComponent[ComponentInspectorComponent](registry)
	ecs.RegisterComponent[ArchetypeViewerComponent](registry)
	ecs.RegisterComponent[PerformanceStatsComponent](registry)
	ecs.RegisterComponent[QueryDebuggerComponent](registry)
}

// Install spawns the inspector panels and registers the systems that draw
// them. The components must already be registered with
// RegisterDebugUIComponents.
func Install(scheduler *ecs.Scheduler) {
	world := scheduler.World()
	world.AddSingleton(ImguiInputState{})
	SpawnDebugUI(world)
	imguiSystem := scheduler.Register(&ImguiSystem{}, ecs.Named("debugui.imgui"))
	scheduler.Register(&PanelSystem{Scheduler: scheduler},
		ecs.Named("debugui.panels"), ecs.Exclusive(), ecs.After(imguiSystem))
}

// PanelSystem draws the inspector panels. It reads arbitrary components
// through the World, so it must be registered as exclusive.
type PanelSystem struct {
	Browsers   ecs.Query[struct{ *EntityBrowserComponent }]
	Inspectors ecs.Query[struct{ *ComponentInspectorComponent }]
	Viewers    ecs.Query[struct{ *ArchetypeViewerComponent }]
	Stats      ecs.Query[struct{ *PerformanceStatsComponent }]
	Queries    ecs.Query[struct{ *QueryDebuggerComponent }]

	// Scheduler, when set, adds per-system timings to the performance panel.
	Scheduler *ecs.Scheduler
}

func (p *PanelSystem) Execute(frame *ecs.UpdateFrame) {
	world := frame.World

	var selected ecs.EntityId
	var browser *EntityBrowserComponent
	if _, b, ok := p.Browsers.Single(); ok {
		browser = b.EntityBrowserComponent
		browser.Render(world)
		selected = browser.GetSelectedEntity()
	}

	for item := range p.Inspectors.Values() {
		item.ComponentInspectorComponent.Render(world, selected)
	}

	for item := range p.Viewers.Values() {
		if clicked := item.ArchetypeViewerComponent.Render(world); clicked != nil && browser != nil {
			browser.SetArchetypeFilter(clicked)
		}
	}

	var schedulerStats *ecs.SchedulerStats
	if p.Scheduler != nil {
		schedulerStats = p.Scheduler.GetStats()
	}
	for item := range p.Stats.Values() {
		item.PerformanceStatsComponent.Render(world, schedulerStats, float32(frame.DeltaTime))
	}

	for item := range p.Queries.Values() {
		item.QueryDebuggerComponent.Render(world)
	}
}
