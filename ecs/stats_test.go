package ecs

import (
	"testing"
	"time"
)

func TestWorldStats(t *testing.T) {
	registry := NewComponentRegistry()
	RegisterComponent[int](registry)
	RegisterComponent[string](registry)
	RegisterComponent[float64](registry)

	world := NewWorld(registry)

	stats := world.CollectStats()
	if stats.ArchetypeCount != 0 {
		t.Errorf("expected 0 archetypes, got %d", stats.ArchetypeCount)
	}
	if stats.TotalEntityCount != 0 {
		t.Errorf("expected 0 entities, got %d", stats.TotalEntityCount)
	}
	if stats.SingletonCount != 0 {
		t.Errorf("expected 0 singletons, got %d", stats.SingletonCount)
	}

	world.Spawn(42, "hello")
	world.Spawn(100, "world")
	world.Spawn(200.0, "test")

	NewSingleton[float64](world, 3.14)
	NewSingleton[string](world, "singleton")

	stats = world.CollectStats()

	if stats.ArchetypeCount != 2 {
		t.Errorf("expected 2 archetypes, got %d", stats.ArchetypeCount)
	}

	if stats.TotalEntityCount != 3 {
		t.Errorf("expected 3 entities, got %d", stats.TotalEntityCount)
	}

	if stats.SingletonCount != 2 {
		t.Errorf("expected 2 singletons, got %d", stats.SingletonCount)
	}

	if len(stats.ArchetypeBreakdown) != 2 {
		t.Errorf("expected 2 archetype breakdown entries, got %d", len(stats.ArchetypeBreakdown))
	}

	if len(stats.SingletonTypes) != 2 || stats.SingletonTypes[0] != "float64" || stats.SingletonTypes[1] != "string" {
		t.Errorf("expected sorted singleton types [float64 string], got %v", stats.SingletonTypes)
	}

	if stats.ComponentTypeCount != 3 {
		t.Errorf("expected 3 component types, got %d", stats.ComponentTypeCount)
	}

	foundIntString := false
	foundFloat64String := false
	for _, arch := range stats.ArchetypeBreakdown {
		if arch.EntityCount == 2 {
			foundIntString = true
		}
		if arch.EntityCount == 1 {
			foundFloat64String = true
		}
	}

	if !foundIntString || !foundFloat64String {
		t.Errorf("archetype breakdown incorrect: %+v", stats.ArchetypeBreakdown)
	}
}

type TestSystem struct {
	executeCount int
	sleepDur     time.Duration
}

func (s *TestSystem) Execute(frame *UpdateFrame) {
	s.executeCount++
	if s.sleepDur > 0 {
		time.Sleep(s.sleepDur)
	}
}

func TestSchedulerStats(t *testing.T) {
	registry := NewComponentRegistry()
	world := NewWorld(registry)
	scheduler := NewScheduler(world)

	stats := scheduler.GetStats()
	if stats.SystemCount != 0 {
		t.Errorf("expected 0 systems, got %d", stats.SystemCount)
	}
	if stats.TotalExecutions != 0 {
		t.Errorf("expected 0 total executions, got %d", stats.TotalExecutions)
	}

	sys1 := &TestSystem{sleepDur: 1 * time.Millisecond}
	sys2 := &TestSystem{sleepDur: 2 * time.Millisecond}
	scheduler.Register(sys1)
	scheduler.Register(sys2)

	stats = scheduler.GetStats()
	if stats.SystemCount != 2 {
		t.Errorf("expected 2 systems, got %d", stats.SystemCount)
	}

	for range 3 {
		if err := scheduler.Once(0.016); err != nil {
			t.Fatalf("pass failed: %v", err)
		}
	}

	stats = scheduler.GetStats()

	if stats.TotalExecutions != 6 {
		t.Errorf("expected 6 total executions (2 systems * 3 runs), got %d", stats.TotalExecutions)
	}

	if stats.Passes != 3 {
		t.Errorf("expected 3 passes, got %d", stats.Passes)
	}

	if len(stats.Systems) != 2 {
		t.Errorf("expected 2 system stats, got %d", len(stats.Systems))
	}

	for _, sysStats := range stats.Systems {
		if sysStats.Name != "TestSystem" {
			t.Errorf("expected system name 'TestSystem', got '%s'", sysStats.Name)
		}

		if sysStats.ExecutionCount != 3 {
			t.Errorf("expected 3 executions, got %d", sysStats.ExecutionCount)
		}

		if sysStats.MinDuration == 0 {
			t.Errorf("expected non-zero min duration")
		}

		if sysStats.MaxDuration == 0 {
			t.Errorf("expected non-zero max duration")
		}

		if sysStats.AvgDuration == 0 {
			t.Errorf("expected non-zero avg duration")
		}

		if sysStats.LastDuration == 0 {
			t.Errorf("expected non-zero last duration")
		}

		if sysStats.TotalDuration == 0 {
			t.Errorf("expected non-zero total duration")
		}

		if sysStats.MinDuration > sysStats.AvgDuration {
			t.Errorf("min duration (%v) should be <= avg duration (%v)", sysStats.MinDuration, sysStats.AvgDuration)
		}

		if sysStats.AvgDuration > sysStats.MaxDuration {
			t.Errorf("avg duration (%v) should be <= max duration (%v)", sysStats.AvgDuration, sysStats.MaxDuration)
		}
	}

	if sys1.executeCount != 3 {
		t.Errorf("expected sys1 to execute 3 times, got %d", sys1.executeCount)
	}

	if sys2.executeCount != 3 {
		t.Errorf("expected sys2 to execute 3 times, got %d", sys2.executeCount)
	}
}

func TestWorldStatsEmptyArchetype(t *testing.T) {
	world := NewWorld(NewComponentRegistry())
	world.SpawnEmpty()

	stats := world.CollectStats()
	if stats.ArchetypeCount != 1 || stats.ArchetypeBreakdown[0].ID != EmptyArchetypeId {
		t.Errorf("expected only the empty archetype, got %+v", stats.ArchetypeBreakdown)
	}
	if len(stats.ArchetypeBreakdown[0].ComponentTypes) != 0 {
		t.Errorf("expected no component types, got %v", stats.ArchetypeBreakdown[0].ComponentTypes)
	}
}
