package main

import (
	"math/rand"

	"github.com/plus3/archon/ecs"
)

type Position struct{ X, Y float32 }
type Velocity struct{ DX, DY float32 }
type Health struct{ Current, Max int32 }
type Damage struct{ PerSecond float32 }
type Lifetime struct{ Remaining float32 }
type Team struct{ ID uint8 }
type Frozen struct{}

// Metrics is a singleton the counting systems write to.
type Metrics struct {
	Changed int
	Spawned int
	Killed  int
}

// Churn is a singleton tracking structural changes issued through commands.
type Churn struct {
	Frozen   int
	Thawed   int
	Respawns int
}

const componentCount = 7

func registerComponents(registry *ecs.ComponentRegistry) {
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Velocity](registry)
	ecs.RegisterComponent[Health](registry)
	ecs.RegisterComponent[Damage](registry)
	ecs.RegisterComponent[Lifetime](registry)
	ecs.RegisterComponent[Team](registry)
	ecs.RegisterComponent[Frozen](registry)
}

// randomComponents picks a random subset of components, always including a
// Position so every entity is visible to at least one system.
func randomComponents(rng *rand.Rand) []any {
	components := []any{Position{X: rng.Float32() * 1000, Y: rng.Float32() * 1000}}
	if rng.Intn(2) == 0 {
		components = append(components, Velocity{DX: rng.Float32() - 0.5, DY: rng.Float32() - 0.5})
	}
	if rng.Intn(2) == 0 {
		components = append(components, Health{Current: 50, Max: 100})
		if rng.Intn(3) == 0 {
			components = append(components, Damage{PerSecond: rng.Float32() * 20})
		}
	}
	if rng.Intn(4) == 0 {
		components = append(components, Lifetime{Remaining: rng.Float32() * 5})
	}
	if rng.Intn(3) == 0 {
		components = append(components, Team{ID: uint8(rng.Intn(4))})
	}
	if rng.Intn(10) == 0 {
		components = append(components, Frozen{})
	}
	return components
}

func populate(world *ecs.World, rng *rand.Rand, n int) {
	for range n {
		world.Spawn(randomComponents(rng)...)
	}
}
