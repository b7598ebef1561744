package ecs_test

import (
	"context"
	"fmt"
	"time"

	"github.com/plus3/archon/ecs"
)

type Transform struct {
	X, Y float32
}

type Speed struct {
	DX, DY float32
}

type Hitpoints struct {
	Current, Max int
}

type PhysicsSystem struct {
	Entities ecs.Query[struct {
		*Transform
		*Speed `ecs:"readonly"`
	}]
}

func (s *PhysicsSystem) Execute(frame *ecs.UpdateFrame) {
	for entity := range s.Entities.Values() {
		entity.Transform.X += entity.Speed.DX * float32(frame.DeltaTime)
		entity.Transform.Y += entity.Speed.DY * float32(frame.DeltaTime)
	}
}

type HealingSystem struct {
	Entities  ecs.Query[struct{ *Hitpoints }]
	RegenRate float32
}

func (s *HealingSystem) Execute(frame *ecs.UpdateFrame) {
	for entity := range s.Entities.Values() {
		if entity.Hitpoints.Current < entity.Hitpoints.Max {
			entity.Hitpoints.Current += int(s.RegenRate * float32(frame.DeltaTime))
			if entity.Hitpoints.Current > entity.Hitpoints.Max {
				entity.Hitpoints.Current = entity.Hitpoints.Max
			}
		}
	}
}

// ExampleScheduler demonstrates building a game loop with multiple systems.
// The Scheduler initializes Query fields, runs systems whose component access
// does not conflict in parallel, and applies command buffers at the end of
// each pass.
func ExampleScheduler() {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Transform](registry)
	ecs.RegisterComponent[Speed](registry)
	ecs.RegisterComponent[Hitpoints](registry)
	world := ecs.NewWorld(registry)

	world.Spawn(
		Transform{X: 0, Y: 0},
		Speed{DX: 10, DY: 5},
		Hitpoints{Current: 80, Max: 100},
	)
	world.Spawn(
		Transform{X: 100, Y: 100},
		Speed{DX: -5, DY: -5},
		Hitpoints{Current: 50, Max: 100},
	)

	scheduler := ecs.NewScheduler(world)
	scheduler.Register(&PhysicsSystem{})
	scheduler.Register(&HealingSystem{RegenRate: 10})

	if err := scheduler.Once(1.0); err != nil {
		panic(err)
	}

	view := ecs.NewView[struct {
		*Transform
		*Hitpoints
	}](world)

	fmt.Println("After one frame:")
	for item := range view.Values() {
		fmt.Printf("Position: (%.0f, %.0f), Health: %d/%d\n",
			item.Transform.X, item.Transform.Y,
			item.Hitpoints.Current, item.Hitpoints.Max)
	}

	// Output:
	// After one frame:
	// Position: (10, 5), Health: 90/100
	// Position: (95, 95), Health: 60/100
}

// ExampleScheduler_Run demonstrates running a continuous game loop.
// The Run method blocks and executes all systems at a fixed interval
// until the context is cancelled.
func ExampleScheduler_Run() {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Transform](registry)
	ecs.RegisterComponent[Speed](registry)
	world := ecs.NewWorld(registry)

	world.Spawn(Transform{X: 0, Y: 0}, Speed{DX: 1, DY: 1})

	scheduler := ecs.NewScheduler(world)
	scheduler.Register(&PhysicsSystem{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := scheduler.Run(ctx, 16*time.Millisecond); err != nil {
		panic(err)
	}

	fmt.Println("Scheduler stopped")
	// Output:
	// Scheduler stopped
}

type GameTime struct {
	TotalFrames int
	TotalTime   float64
}

type TimeTracker struct {
	GameTime ecs.Singleton[GameTime]
}

func (s *TimeTracker) Execute(frame *ecs.UpdateFrame) {
	gameTime := s.GameTime.Get()
	gameTime.TotalFrames++
	gameTime.TotalTime += frame.DeltaTime
}

type ScoreTracker struct {
	Points int
}

type ScoreSystem struct {
	Entities ecs.Query[struct {
		*Transform `ecs:"readonly"`
	}]
	Score ecs.Singleton[ScoreTracker]
}

func (s *ScoreSystem) Execute(frame *ecs.UpdateFrame) {
	s.Score.Get().Points += s.Entities.Count() * 10
}

// ExampleScheduler_withSingletons demonstrates using singleton components in systems.
// Singleton fields are initialized by the Scheduler just like Query fields,
// and declare access to their singleton only.
func ExampleScheduler_withSingletons() {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Transform](registry)
	world := ecs.NewWorld(registry)

	// Initialize singletons
	ecs.NewSingleton[GameTime](world, GameTime{TotalFrames: 0, TotalTime: 0})
	ecs.NewSingleton[ScoreTracker](world, ScoreTracker{Points: 0})

	world.Spawn(Transform{X: 0, Y: 0})
	world.Spawn(Transform{X: 10, Y: 10})
	world.Spawn(Transform{X: 20, Y: 20})

	scheduler := ecs.NewScheduler(world)
	scheduler.Register(&TimeTracker{})
	scheduler.Register(&ScoreSystem{})

	for range 3 {
		if err := scheduler.Once(0.016); err != nil {
			panic(err)
		}
	}

	gameTime, _ := ecs.GetSingleton[GameTime](world)
	fmt.Printf("Frames: %d, Time: %.3f\n", gameTime.TotalFrames, gameTime.TotalTime)

	score, _ := ecs.GetSingleton[ScoreTracker](world)
	fmt.Printf("Score: %d points\n", score.Points)

	// Output:
	// Frames: 3, Time: 0.048
	// Score: 90 points
}

// ExampleScheduler_ordering pins the order of two systems that both write
// Speed. Without After, Build would report them as ambiguous.
func ExampleScheduler_ordering() {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Speed](registry)
	world := ecs.NewWorld(registry)
	world.Spawn(Speed{})

	scheduler := ecs.NewScheduler(world, ecs.WithAmbiguityPolicy(ecs.AmbiguityError))
	gravity := scheduler.Register(ecs.SystemFunc(func(frame *ecs.UpdateFrame) {
		fmt.Println("apply gravity")
	}), ecs.Named("gravity"), ecs.Writes[Speed]())
	scheduler.Register(ecs.SystemFunc(func(frame *ecs.UpdateFrame) {
		fmt.Println("clamp speed")
	}), ecs.Named("clamp"), ecs.Writes[Speed](), ecs.After(gravity))

	if err := scheduler.Once(0); err != nil {
		panic(err)
	}

	// Output:
	// apply gravity
	// clamp speed
}
