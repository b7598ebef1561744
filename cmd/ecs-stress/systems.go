package main

import (
	"math"
	"math/rand"
	"reflect"

	"github.com/plus3/archon/ecs"
)

var frozenType = reflect.TypeFor[Frozen]()

type MovementSystem struct {
	Entities ecs.Query[struct {
		*Position
		*Velocity `ecs:"readonly"`
		_         ecs.Without[Frozen]
	}]
}

func (s *MovementSystem) Execute(frame *ecs.UpdateFrame) {
	dt := float32(frame.DeltaTime)
	for item := range s.Entities.Values() {
		item.Position.X += item.Velocity.DX * dt
		item.Position.Y += item.Velocity.DY * dt
	}
}

// SettleSystem writes Position too, but only on frozen entities, so it may
// run next to MovementSystem.
type SettleSystem struct {
	Entities ecs.Query[struct {
		*Position
		_ ecs.With[Frozen]
	}]
}

func (s *SettleSystem) Execute(*ecs.UpdateFrame) {
	for item := range s.Entities.Values() {
		item.Position.X = float32(int(item.Position.X))
		item.Position.Y = float32(int(item.Position.Y))
	}
}

type RegenSystem struct {
	Entities ecs.Query[struct{ *Health }]
}

func (s *RegenSystem) Execute(*ecs.UpdateFrame) {
	for item := range s.Entities.Values() {
		if item.Health.Current < item.Health.Max {
			item.Health.Current++
		}
	}
}

type DamageSystem struct {
	Entities ecs.Query[struct {
		ID ecs.EntityId
		*Health
		*Damage `ecs:"readonly"`
	}]
}

func (s *DamageSystem) Execute(frame *ecs.UpdateFrame) {
	for item := range s.Entities.Values() {
		item.Health.Current -= int32(math.Ceil(float64(item.Damage.PerSecond) * frame.DeltaTime))
		if item.Health.Current <= 0 {
			frame.Commands.Despawn(item.ID)
		}
	}
}

// LifetimeSystem expires entities and spawns a replacement for each.
type LifetimeSystem struct {
	Entities ecs.Query[struct {
		ID ecs.EntityId
		*Lifetime
	}]
	Churn ecs.Singleton[Churn]
	rng   *rand.Rand
}

func (s *LifetimeSystem) Execute(frame *ecs.UpdateFrame) {
	churn := s.Churn.Get()
	for item := range s.Entities.Values() {
		item.Lifetime.Remaining -= float32(frame.DeltaTime)
		if item.Lifetime.Remaining > 0 {
			continue
		}
		frame.Commands.Despawn(item.ID)
		frame.Commands.Spawn(randomComponents(s.rng)...)
		churn.Respawns++
	}
}

// FreezeSystem toggles Frozen on a few entities per pass to keep entities
// moving between archetypes.
type FreezeSystem struct {
	Thawed ecs.Query[struct {
		ID ecs.EntityId
		_  ecs.With[Team]
		_  ecs.Without[Frozen]
	}]
	Frozen ecs.Query[struct {
		ID ecs.EntityId
		_  ecs.With[Team]
		_  ecs.With[Frozen]
	}]
	Churn ecs.Singleton[Churn]
	Rate  int
}

func (s *FreezeSystem) Execute(frame *ecs.UpdateFrame) {
	churn := s.Churn.Get()
	n := 0
	for item := range s.Thawed.Values() {
		if n >= s.Rate {
			break
		}
		frame.Commands.Insert(item.ID, Frozen{})
		churn.Frozen++
		n++
	}
	n = 0
	for item := range s.Frozen.Values() {
		if n >= s.Rate {
			break
		}
		frame.Commands.RemoveComponent(item.ID, frozenType)
		churn.Thawed++
		n++
	}
}

type MetricsSystem struct {
	Changed ecs.Query[struct {
		_ ecs.Changed[Health]
	}]
	Added ecs.Query[struct {
		_ ecs.Added[Position]
	}]
	Removed ecs.RemovedComponents[Health]
	Metrics ecs.Singleton[Metrics]
}

func (s *MetricsSystem) Execute(*ecs.UpdateFrame) {
	m := s.Metrics.Get()
	m.Changed += s.Changed.Count()
	m.Spawned += s.Added.Count()
	m.Killed += s.Removed.Len()
}

// registerSystems wires the stress systems and returns how many there are.
func registerSystems(scheduler *ecs.Scheduler, rng *rand.Rand) int {
	movement := scheduler.Register(&MovementSystem{})
	settle := scheduler.Register(&SettleSystem{})
	regen := scheduler.Register(&RegenSystem{})
	damage := scheduler.Register(&DamageSystem{}, ecs.After(regen))
	lifetime := scheduler.Register(&LifetimeSystem{rng: rand.New(rand.NewSource(rng.Int63()))})
	scheduler.Register(&FreezeSystem{Rate: 8}, ecs.After(lifetime), ecs.RunIf(ecs.AnyWith[Team]()))
	scheduler.Register(&MetricsSystem{}, ecs.After(damage, movement, settle))
	return 7
}
