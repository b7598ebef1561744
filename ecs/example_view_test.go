package ecs_test

import (
	"fmt"

	"github.com/plus3/archon/ecs"
)

// ExampleView demonstrates using Views for flexible entity lookups.
// Unlike Queries, Views don't cache matching archetypes or take part in
// scheduling, making them ideal for one-off lookups, tools, or code running
// outside of a system.
func ExampleView() {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Velocity](registry)
	ecs.RegisterComponent[Health](registry)
	world := ecs.NewWorld(registry)

	player := world.Spawn(
		Position{X: 10, Y: 20},
		Velocity{DX: 1, DY: 0},
		Health{Current: 100, Max: 100},
	)

	view := ecs.NewView[struct {
		*Position
		*Velocity
	}](world)

	if item := view.Get(player); item != nil {
		fmt.Printf("Player at (%.0f, %.0f) moving (%.0f, %.0f)\n",
			item.Position.X, item.Position.Y, item.Velocity.DX, item.Velocity.DY)
	}

	// Output:
	// Player at (10, 20) moving (1, 0)
}

// ExampleView_Iter shows iterating over all entities matching a view.
// Views match entities across all archetypes that contain the required
// components. Iter yields each entity's id alongside its data.
func ExampleView_Iter() {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Velocity](registry)
	ecs.RegisterComponent[Health](registry)
	world := ecs.NewWorld(registry)

	world.Spawn(Position{X: 0, Y: 0}, Velocity{DX: 1, DY: 0})
	world.Spawn(Position{X: 10, Y: 10}, Velocity{DX: 0, DY: 1}, Health{Current: 50, Max: 100})
	world.Spawn(Position{X: 20, Y: 20}, Velocity{DX: -1, DY: -1})
	world.Spawn(Position{X: 100, Y: 100})

	view := ecs.NewView[struct {
		*Position
		*Velocity `ecs:"readonly"`
	}](world)

	entityIds := make([]ecs.EntityId, 0)
	fmt.Println("Entities with position and velocity:")
	for id, item := range view.Iter() {
		item.Position.X += item.Velocity.DX
		item.Position.Y += item.Velocity.DY
		fmt.Printf("New position: (%.0f, %.0f)\n", item.Position.X, item.Position.Y)
		entityIds = append(entityIds, id)
	}
	fmt.Printf("Total entities with IDs: %d\n", len(entityIds))

	// Output:
	// Entities with position and velocity:
	// New position: (1, 0)
	// New position: (19, 19)
	// New position: (10, 11)
	// Total entities with IDs: 3
}

// ExampleView_optional demonstrates using optional components in views.
// Optional components allow a single view to match entities that may or may not
// have certain components.
func ExampleView_optional() {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Velocity](registry)
	ecs.RegisterComponent[Health](registry)
	world := ecs.NewWorld(registry)

	world.Spawn(Position{X: 10, Y: 10}, Velocity{DX: 1, DY: 0}, Health{Current: 50, Max: 100})
	world.Spawn(Position{X: 20, Y: 20}, Velocity{DX: 0, DY: 1}, Health{Current: 75, Max: 100})
	world.Spawn(Position{X: 30, Y: 30}, Velocity{DX: -1, DY: 0})

	view := ecs.NewView[struct {
		Position *Position
		Velocity *Velocity
		Health   *Health `ecs:"optional"`
	}](world)

	fmt.Println("All moving entities:")
	for item := range view.Values() {
		if item.Health != nil {
			fmt.Printf("Entity at (%.0f, %.0f) with health %d/%d\n",
				item.Position.X, item.Position.Y, item.Health.Current, item.Health.Max)
		} else {
			fmt.Printf("Invulnerable entity at (%.0f, %.0f)\n", item.Position.X, item.Position.Y)
		}
	}

	// Output:
	// All moving entities:
	// Entity at (10, 10) with health 50/100
	// Entity at (20, 20) with health 75/100
	// Invulnerable entity at (30, 30)
}

// ExampleView_Spawn creates an entity from a filled view struct.
func ExampleView_Spawn() {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Health](registry)
	world := ecs.NewWorld(registry)

	view := ecs.NewView[struct {
		Position *Position
		Health   *Health `ecs:"optional"`
	}](world)

	id := view.Spawn(struct {
		Position *Position
		Health   *Health `ecs:"optional"`
	}{Position: &Position{X: 4, Y: 2}})

	fmt.Printf("Has health: %v\n", ecs.Has[Health](world, id))
	fmt.Printf("Position: %+v\n", *view.Get(id).Position)

	// Output:
	// Has health: false
	// Position: {X:4 Y:2}
}
