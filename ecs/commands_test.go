package ecs_test

import (
	"bytes"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/plus3/archon/ecs"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedWorld() (*ecs.World, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	return ecs.NewWorld(newTestRegistry(), ecs.WithLogger(logrus.NewEntry(logger))), &buf
}

func TestCommandsSpawn(t *testing.T) {
	world := newTestWorld()
	commands := ecs.NewCommands(world)

	id := commands.Spawn(Position{X: 1}, Velocity{DX: 2})
	assert.False(t, world.IsAlive(id), "spawn is deferred")
	assert.Equal(t, 1, commands.Len())

	commands.Apply(world)
	assert.Equal(t, 0, commands.Len())
	require.True(t, world.IsAlive(id))
	pos, ok := ecs.Get[Position](world, id)
	require.True(t, ok)
	assert.Equal(t, float32(1), pos.X)
}

func TestCommandsReservedIdUsableByLaterCommands(t *testing.T) {
	world := newTestWorld()
	commands := ecs.NewCommands(world)

	parent := commands.Spawn(Name{Value: "parent"})
	commands.Insert(parent, Health{Current: 1})
	commands.Spawn(RefComponent{})
	commands.Apply(world)

	assert.True(t, ecs.Has[Name](world, parent))
	assert.True(t, ecs.Has[Health](world, parent))
}

func TestCommandsAppliedInOrder(t *testing.T) {
	world := newTestWorld()
	id := world.Spawn(Position{})
	commands := ecs.NewCommands(world)

	var log []string
	commands.Insert(id, Velocity{DX: 1})
	commands.Defer(func(w *ecs.World) {
		log = append(log, "first")
		assert.True(t, ecs.Has[Velocity](w, id), "insert queued earlier already applied")
	})
	commands.RemoveComponent(id, reflect.TypeFor[Velocity]())
	commands.Defer(func(w *ecs.World) {
		log = append(log, "second")
		assert.False(t, ecs.Has[Velocity](w, id))
	})
	commands.Despawn(id)
	commands.Apply(world)

	assert.Equal(t, []string{"first", "second"}, log)
	assert.False(t, world.IsAlive(id))
}

func TestCommandsDeferQueuingMore(t *testing.T) {
	world := newTestWorld()
	commands := ecs.NewCommands(world)

	var order []int
	commands.Defer(func(w *ecs.World) {
		order = append(order, 1)
		commands.Defer(func(*ecs.World) { order = append(order, 3) })
	})
	commands.Defer(func(*ecs.World) { order = append(order, 2) })
	commands.Apply(world)

	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, commands.Len())
}

func TestCommandsDeadEntityIsSkipped(t *testing.T) {
	world, logs := newBufferedWorld()
	id := world.Spawn(Position{})
	commands := ecs.NewCommands(world)

	commands.Despawn(id)
	commands.Insert(id, Velocity{})
	commands.Remove(id)
	commands.Despawn(id)

	assert.NotPanics(t, func() { commands.Apply(world) })
	assert.False(t, world.IsAlive(id))
	assert.Contains(t, logs.String(), "skipping command for entity that no longer exists")
	assert.Contains(t, logs.String(), `"command":"insert"`)
}

func TestCommandsSpawnBatch(t *testing.T) {
	world := newTestWorld()
	commands := ecs.NewCommands(world)

	ids := commands.SpawnBatch(10, Position{X: 4})
	require.Len(t, ids, 10)
	commands.Apply(world)

	for _, id := range ids {
		pos, ok := ecs.Get[Position](world, id)
		require.True(t, ok)
		assert.Equal(t, float32(4), pos.X)
	}
	assert.Equal(t, 10, world.Len())
}

func TestCommandsSingletons(t *testing.T) {
	world := newTestWorld()
	commands := ecs.NewCommands(world)

	commands.AddSingleton(GameClock{Frame: 3})
	assert.False(t, world.HasSingleton(reflect.TypeFor[GameClock]()))
	commands.Apply(world)

	clock, ok := ecs.GetSingleton[GameClock](world)
	require.True(t, ok)
	assert.Equal(t, 3, clock.Frame)

	commands.RemoveSingleton(reflect.TypeFor[GameClock]())
	commands.Apply(world)
	_, ok = ecs.GetSingleton[GameClock](world)
	assert.False(t, ok)
}

func TestCommandsDiscard(t *testing.T) {
	world := newTestWorld()
	commands := ecs.NewCommands(world)

	id := commands.Spawn(Position{})
	commands.Discard()
	assert.Equal(t, 0, commands.Len())

	commands.Apply(world)
	assert.True(t, world.IsAlive(id), "reserved id is still materialised")
	assert.False(t, ecs.Has[Position](world, id))
}

func TestCommandsReservedEntitiesFlushedByDirectOps(t *testing.T) {
	world := newTestWorld()
	commands := ecs.NewCommands(world)

	reserved := commands.Spawn(Position{X: 1})
	direct := world.Spawn(Velocity{})
	assert.NotEqual(t, reserved, direct)
	assert.True(t, world.IsAlive(reserved))

	commands.Apply(world)
	assert.True(t, ecs.Has[Position](world, reserved))
}

// lockedBuffer is written by cleanup goroutines and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCommandsDroppedBufferWarns(t *testing.T) {
	logs := &lockedBuffer{}
	logger := logrus.New()
	logger.SetOutput(logs)
	logger.SetFormatter(&logrus.JSONFormatter{})
	world := ecs.NewWorld(newTestRegistry(), ecs.WithLogger(logrus.NewEntry(logger)))
	id := world.Spawn(Position{})

	func() {
		applied := ecs.NewCommands(world)
		applied.Insert(id, Health{Current: 1})
		applied.Apply(world)

		dropped := ecs.NewCommands(world)
		dropped.Insert(id, Velocity{})
	}()

	const warning = "command buffer dropped without being applied"
	assert.Eventually(t, func() bool {
		runtime.GC()
		return strings.Contains(logs.String(), warning)
	}, 5*time.Second, 10*time.Millisecond)
	for range 3 {
		runtime.GC()
	}

	out := logs.String()
	assert.Equal(t, 1, strings.Count(out, warning), "applied buffers are dropped silently")
	assert.Contains(t, out, `"commands":1`)
	assert.False(t, ecs.Has[Velocity](world, id))
}
