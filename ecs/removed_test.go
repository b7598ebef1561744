package ecs_test

import (
	"slices"
	"testing"

	"github.com/plus3/archon/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type removedHealth struct {
	Removed ecs.RemovedComponents[Health]
	seen    [][]ecs.EntityId
}

func (s *removedHealth) Execute(*ecs.UpdateFrame) {
	s.seen = append(s.seen, slices.Collect(s.Removed.Iter()))
}

type healthReaper struct {
	Entities ecs.Query[struct {
		ID ecs.EntityId
		*Health `ecs:"readonly"`
	}]
}

func (s *healthReaper) Execute(frame *ecs.UpdateFrame) {
	for item := range s.Entities.Values() {
		if item.Health.Current <= 0 {
			frame.Commands.Despawn(item.ID)
		}
	}
}

func TestRemovedComponentsStandalone(t *testing.T) {
	world := newTestWorld()
	removed := ecs.NewRemovedComponents[Health](world)

	a := world.Spawn(Health{}, Position{})
	b := world.Spawn(Health{})
	c := world.Spawn(Position{})
	assert.Equal(t, 0, removed.Len())

	require.True(t, ecs.RemoveComponent[Health](world, a))
	world.Despawn(b)
	world.Despawn(c)
	assert.Equal(t, []ecs.EntityId{a, b}, slices.Collect(removed.Iter()))

	world.ClearTrackers()
	assert.Equal(t, 0, removed.Len(), "standalone readers only look at the current frame")
}

func TestRemovedComponentsSystem(t *testing.T) {
	world := newTestWorld()
	scheduler := ecs.NewScheduler(world)
	reader := &removedHealth{}
	reaper := scheduler.Register(&healthReaper{})
	scheduler.Register(reader, ecs.After(reaper))

	dying := world.Spawn(Health{Current: 0})
	world.Spawn(Health{Current: 5})

	require.NoError(t, scheduler.Once(0))
	require.NoError(t, scheduler.Once(0))
	require.NoError(t, scheduler.Once(0))

	assert.Equal(t, [][]ecs.EntityId{nil, {dying}, nil}, reader.seen,
		"a despawn applied after a pass is seen once, in the next pass")
}

func TestRemovedComponentsSkippedSystemMissesOldRemovals(t *testing.T) {
	world := newTestWorld()
	scheduler := ecs.NewScheduler(world)
	enabled := true
	reader := &removedHealth{}
	scheduler.Register(reader, ecs.RunIf(func(*ecs.World) bool { return enabled }))

	id := world.Spawn(Health{})
	require.NoError(t, scheduler.Once(0))
	world.Despawn(id)

	require.NoError(t, scheduler.Once(0))
	assert.Equal(t, []ecs.EntityId{id}, reader.seen[1])

	enabled = false
	other := world.Spawn(Health{})
	world.Despawn(other)
	require.NoError(t, scheduler.Once(0))
	require.NoError(t, scheduler.Once(0))
	enabled = true
	require.NoError(t, scheduler.Once(0))
	assert.Len(t, reader.seen, 3)
	assert.Empty(t, reader.seen[2], "removals are kept for one pass after they happen")
}
