package ecs_test

import (
	"testing"

	"github.com/plus3/archon/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestView(t *testing.T) {
	world := newTestWorld()
	id := world.Spawn(Position{X: 1, Y: 2}, Velocity{DX: 3, DY: 4})

	view := ecs.NewView[struct {
		*Position
		*Velocity
	}](world)

	item := view.Get(id)
	require.NotNil(t, item)
	assert.Equal(t, float32(1), item.Position.X)
	assert.Equal(t, float32(4), item.Velocity.DY)
}

func TestViewMissingComponent(t *testing.T) {
	world := newTestWorld()
	id := world.Spawn(Position{X: 1, Y: 2})

	view := ecs.NewView[struct {
		*Position
		*Velocity
	}](world)

	assert.Nil(t, view.Get(id))
}

func TestViewFill(t *testing.T) {
	world := newTestWorld()
	id := world.Spawn(Position{X: 5, Y: 6}, Health{Current: 10, Max: 20})

	view := ecs.NewView[struct {
		*Position
		*Health
	}](world)

	var item struct {
		*Position
		*Health
	}
	require.True(t, view.Fill(id, &item))
	assert.Equal(t, 20, item.Health.Max)
}

func TestViewComponentMutation(t *testing.T) {
	world := newTestWorld()
	id := world.Spawn(Position{X: 1, Y: 1})

	view := ecs.NewView[struct{ *Position }](world)
	view.Get(id).Position.X = 50

	pos, _ := ecs.Get[Position](world, id)
	assert.Equal(t, float32(50), pos.X)
}

func TestViewDeadEntity(t *testing.T) {
	world := newTestWorld()
	id := world.Spawn(Position{})
	world.Despawn(id)

	view := ecs.NewView[struct{ *Position }](world)
	assert.Nil(t, view.Get(id))
	assert.Nil(t, view.Get(ecs.EntityId(0)))
}

func TestViewOptionalComponent(t *testing.T) {
	world := newTestWorld()
	with := world.Spawn(Position{X: 1}, Velocity{DX: 2})
	without := world.Spawn(Position{X: 3})

	view := ecs.NewView[struct {
		Pos *Position
		Vel *Velocity `ecs:"optional"`
	}](world)

	item := view.Get(with)
	require.NotNil(t, item)
	require.NotNil(t, item.Vel)
	assert.Equal(t, float32(2), item.Vel.DX)

	item = view.Get(without)
	require.NotNil(t, item)
	assert.Nil(t, item.Vel)
	assert.Equal(t, float32(3), item.Pos.X)
}

func TestViewFilters(t *testing.T) {
	world := newTestWorld()
	moving := world.Spawn(Position{}, Velocity{})
	frozen := world.Spawn(Position{}, Velocity{}, Frozen{})

	view := ecs.NewView[struct {
		Pos *Position
		_   ecs.With[Velocity]
		_   ecs.Without[Frozen]
	}](world)

	assert.NotNil(t, view.Get(moving))
	assert.Nil(t, view.Get(frozen))
}

func TestViewEntityField(t *testing.T) {
	world := newTestWorld()
	id := world.Spawn(Position{})

	view := ecs.NewView[struct {
		ID  ecs.EntityId
		Pos *Position
	}](world)

	assert.Equal(t, id, view.Get(id).ID)
}

func TestViewInvalidTag(t *testing.T) {
	world := newTestWorld()
	assert.Panics(t, func() {
		ecs.NewView[struct {
			Pos *Position `ecs:"sometimes"`
		}](world)
	})
}

func TestViewInvalidField(t *testing.T) {
	world := newTestWorld()
	assert.Panics(t, func() {
		ecs.NewView[struct{ Pos Position }](world)
	})
	assert.Panics(t, func() {
		ecs.NewView[struct {
			A *Position
			B *Position `ecs:"readonly"`
		}](world)
	}, "a mutable and a readonly fetch of the same component alias")
}

func TestViewSpawn(t *testing.T) {
	world := newTestWorld()
	view := ecs.NewView[struct {
		*Position
		*Velocity
	}](world)

	id := view.Spawn(struct {
		*Position
		*Velocity
	}{&Position{X: 1, Y: 2}, &Velocity{DX: 3, DY: 4}})

	item := view.Get(id)
	require.NotNil(t, item)
	assert.Equal(t, Position{X: 1, Y: 2}, *item.Position)
	assert.Equal(t, Velocity{DX: 3, DY: 4}, *item.Velocity)
}

func TestViewSpawnWithOptionalComponentsNil(t *testing.T) {
	world := newTestWorld()
	type item struct {
		Pos  *Position
		Name *Name `ecs:"optional"`
	}
	view := ecs.NewView[item](world)

	id := view.Spawn(item{Pos: &Position{X: 7}})
	assert.True(t, ecs.Has[Position](world, id))
	assert.False(t, ecs.Has[Name](world, id))
}

func TestViewSpawnNilRequiredComponentPanics(t *testing.T) {
	world := newTestWorld()
	type item struct {
		Pos *Position
		Vel *Velocity
	}
	view := ecs.NewView[item](world)

	assert.Panics(t, func() {
		view.Spawn(item{Pos: &Position{}})
	})
}

func TestViewSpawnCopiesValues(t *testing.T) {
	world := newTestWorld()
	view := ecs.NewView[struct{ *Position }](world)

	src := &Position{X: 1}
	id := view.Spawn(struct{ *Position }{src})
	src.X = 99

	pos, _ := ecs.Get[Position](world, id)
	assert.Equal(t, float32(1), pos.X)
}

func TestViewIter(t *testing.T) {
	world := newTestWorld()
	a := world.Spawn(Position{X: 1}, Velocity{})
	b := world.Spawn(Position{X: 2}, Velocity{}, Health{})
	world.Spawn(Position{X: 3})
	empty := world.Spawn(Position{}, Velocity{})
	world.Despawn(empty)

	view := ecs.NewView[struct {
		Pos *Position `ecs:"readonly"`
		_   ecs.With[Velocity]
	}](world)

	seen := make(map[ecs.EntityId]float32)
	for id, item := range view.Iter() {
		seen[id] = item.Pos.X
	}
	assert.Equal(t, map[ecs.EntityId]float32{a: 1, b: 2}, seen)

	n := 0
	for range view.Values() {
		n++
		break
	}
	assert.Equal(t, 1, n)
}
