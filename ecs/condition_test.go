package ecs_test

import (
	"testing"

	"github.com/plus3/archon/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type passCounter struct {
	runs int
}

func (s *passCounter) Execute(*ecs.UpdateFrame) {
	s.runs++
}

func TestRunIf(t *testing.T) {
	world := newTestWorld()
	scheduler := ecs.NewScheduler(world)

	always := &passCounter{}
	paused := &passCounter{}
	once := &passCounter{}
	withClock := &passCounter{}
	noClock := &passCounter{}
	withFrozen := &passCounter{}
	scheduler.Register(always)
	scheduler.Register(paused, ecs.Named("paused"), ecs.RunIf(func(*ecs.World) bool { return false }))
	scheduler.Register(once, ecs.Named("once"), ecs.RunIf(ecs.RunOnce()))
	scheduler.Register(withClock, ecs.Named("withClock"), ecs.RunIf(ecs.SingletonExists[GameClock]()))
	scheduler.Register(noClock, ecs.Named("noClock"), ecs.RunIf(ecs.Not(ecs.SingletonExists[GameClock]())))
	scheduler.Register(withFrozen, ecs.Named("withFrozen"), ecs.RunIf(ecs.AnyWith[Frozen](), ecs.Not(ecs.AnyWith[Tag]())))

	require.NoError(t, scheduler.Once(0))
	world.AddSingleton(GameClock{})
	frozen := world.Spawn(Frozen{})
	require.NoError(t, scheduler.Once(0))
	world.Despawn(frozen)
	require.NoError(t, scheduler.Once(0))

	assert.Equal(t, 3, always.runs)
	assert.Equal(t, 0, paused.runs)
	assert.Equal(t, 1, once.runs)
	assert.Equal(t, 2, withClock.runs)
	assert.Equal(t, 1, noClock.runs)
	assert.Equal(t, 1, withFrozen.runs)

	skips := make(map[string]int64)
	for _, s := range scheduler.GetStats().Systems {
		skips[s.Name] = s.SkipCount
	}
	assert.Equal(t, int64(3), skips["paused"])
	assert.Equal(t, int64(2), skips["once"])
	assert.Equal(t, int64(0), skips["passCounter"])
}

// A skipped system keeps its change window, so it sees what happened while
// it was not running.
func TestRunIfSkippedSystemKeepsChangeWindow(t *testing.T) {
	for name, opts := range map[string][]ecs.SchedulerOption{
		"single threaded": {ecs.WithSingleThreaded()},
		"parallel":        {ecs.WithWorkers(2)},
	} {
		t.Run(name, func(t *testing.T) {
			world := newTestWorld()
			scheduler := ecs.NewScheduler(world, opts...)
			enabled := false
			counter := &addedPositions{}
			scheduler.Register(counter, ecs.RunIf(func(*ecs.World) bool { return enabled }))
			scheduler.Register(&deferredSpawner{})

			require.NoError(t, scheduler.Once(0))
			require.NoError(t, scheduler.Once(0))
			assert.Empty(t, counter.counts)

			enabled = true
			require.NoError(t, scheduler.Once(0))
			assert.Equal(t, []int{2}, counter.counts)
		})
	}
}
