package ecs_test

import (
	"fmt"

	"github.com/plus3/archon/ecs"
)

// ExampleArchetypes shows how entities are grouped by their component set.
// Removing a component moves the entity to another archetype, and despawning
// fills the freed row with the last entity of the table so rows stay dense.
func ExampleArchetypes() {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Health](registry)
	world := ecs.NewWorld(registry)

	entities := make([]ecs.EntityId, 3)
	for i := range entities {
		entities[i] = world.Spawn(
			Position{X: float32(i * 10), Y: 0},
			Health{Current: 100, Max: 100},
		)
	}

	world.Despawn(entities[0])
	loc, _ := world.Location(entities[2])
	fmt.Printf("Last entity moved to row %d\n", loc.Row)

	ecs.RemoveComponent[Health](world, entities[1])

	for arch := range world.Archetypes().All() {
		if arch.Len() == 0 {
			continue
		}
		names := make([]string, 0, len(arch.Components()))
		for _, id := range arch.Components() {
			names = append(names, registry.Info(id).Name())
		}
		fmt.Printf("%v: %d entities\n", names, arch.Len())
	}

	// Output:
	// Last entity moved to row 0
	// [ecs_test.Position ecs_test.Health]: 1 entities
	// [ecs_test.Position]: 1 entities
}
