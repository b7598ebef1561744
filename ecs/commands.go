package ecs

import (
	"reflect"
	"runtime"

	"github.com/sirupsen/logrus"
)

type commandKind uint8

const (
	commandSpawn commandKind = iota
	commandDespawn
	commandInsert
	commandRemove
	commandAddSingleton
	commandRemoveSingleton
	commandDefer
)

type command struct {
	kind       commandKind
	entity     EntityId
	components []any
	ids        []ComponentId
	fn         func(*World)
}

type commandQueue struct {
	commands []command
}

// Commands provides a buffer for deferred ECS operations that are executed at the end of a frame.
// This prevents structural changes to the ECS storage during system execution.
// Commands are applied in the order they were recorded.
type Commands struct {
	world *World
	queue *commandQueue
}

// NewCommands creates an empty buffer for w. A buffer that is garbage
// collected while it still holds commands is reported on the world's logger.
func NewCommands(w *World) *Commands {
	c := &Commands{world: w, queue: &commandQueue{}}
	runtime.AddCleanup(c, func(q *commandQueue) {
		if n := len(q.commands); n > 0 {
			w.log.WithField("commands", n).Warn("command buffer dropped without being applied")
		}
	}, c.queue)
	return c
}

func (c *Commands) push(cmd command) {
	c.queue.commands = append(c.queue.commands, cmd)
}

// Spawn queues an entity spawn operation with the given components. The
// returned id is reserved immediately and can be used by later commands.
func (c *Commands) Spawn(components ...any) EntityId {
	id := c.world.entities.Reserve()
	c.push(command{kind: commandSpawn, entity: id, components: components})
	return id
}

// SpawnBatch queues n spawns that share the same component values.
func (c *Commands) SpawnBatch(n int, components ...any) []EntityId {
	ids := c.world.entities.ReserveMany(n)
	for _, id := range ids {
		c.push(command{kind: commandSpawn, entity: id, components: components})
	}
	return ids
}

// Despawn queues an entity deletion operation.
func (c *Commands) Despawn(entity EntityId) {
	c.push(command{kind: commandDespawn, entity: entity})
}

// Insert queues adding or replacing components on entity.
func (c *Commands) Insert(entity EntityId, components ...any) {
	c.push(command{kind: commandInsert, entity: entity, components: components})
}

// Remove queues removing the components with the given ids from entity.
func (c *Commands) Remove(entity EntityId, ids ...ComponentId) {
	c.push(command{kind: commandRemove, entity: entity, ids: ids})
}

// RemoveComponent queues a component removal operation.
func (c *Commands) RemoveComponent(entity EntityId, compType reflect.Type) {
	c.Remove(entity, c.world.registry.mustIdOf(compType))
}

// AddSingleton queues inserting or replacing a singleton.
func (c *Commands) AddSingleton(value any) {
	c.push(command{kind: commandAddSingleton, components: []any{value}})
}

// RemoveSingleton queues removing the singleton of the given type.
func (c *Commands) RemoveSingleton(t reflect.Type) {
	id, ok := c.world.registry.idOf(t)
	if !ok {
		return
	}
	c.push(command{kind: commandRemoveSingleton, ids: []ComponentId{id}})
}

// Defer queues a function execution operation. It runs with exclusive access
// to the world, in order with the other commands.
func (c *Commands) Defer(fn func(w *World)) {
	c.push(command{kind: commandDefer, fn: fn})
}

// Len returns the number of queued commands.
func (c *Commands) Len() int {
	return len(c.queue.commands)
}

// Discard drops every queued command without applying it. Reserved entities
// still become live, without components, on the next flush.
func (c *Commands) Discard() {
	clear(c.queue.commands)
	c.queue.commands = c.queue.commands[:0]
}

// abandon drops the commands of an aborted pass. Entities reserved by Spawn
// are placed and despawned straight away, leaving their ids stale.
func (c *Commands) abandon(w *World) {
	if len(c.queue.commands) == 0 {
		return
	}
	w.flush()
	for i := range c.queue.commands {
		if cmd := &c.queue.commands[i]; cmd.kind == commandSpawn {
			w.Despawn(cmd.entity)
		}
	}
	c.Discard()
}

// Apply executes all queued commands against w and resets the buffer.
// Commands queued while applying, for example by a deferred function, run
// after the ones already queued.
func (c *Commands) Apply(w *World) {
	w.flush()
	for len(c.queue.commands) > 0 {
		cmds := c.queue.commands
		c.queue.commands = nil
		for i := range cmds {
			c.apply(w, &cmds[i])
		}
		if c.queue.commands == nil {
			clear(cmds)
			c.queue.commands = cmds[:0]
		}
	}
}

func (c *Commands) apply(w *World, cmd *command) {
	switch cmd.kind {
	case commandSpawn:
		if !w.IsAlive(cmd.entity) {
			warnStale(w, cmd, "spawn")
			return
		}
		w.Insert(cmd.entity, cmd.components...)
	case commandDespawn:
		if !w.Despawn(cmd.entity) {
			warnStale(w, cmd, "despawn")
		}
	case commandInsert:
		if !w.IsAlive(cmd.entity) {
			warnStale(w, cmd, "insert")
			return
		}
		w.Insert(cmd.entity, cmd.components...)
	case commandRemove:
		if !w.IsAlive(cmd.entity) {
			warnStale(w, cmd, "remove")
			return
		}
		w.Remove(cmd.entity, cmd.ids...)
	case commandAddSingleton:
		w.AddSingleton(cmd.components[0])
	case commandRemoveSingleton:
		w.removeSingleton(cmd.ids[0])
	case commandDefer:
		cmd.fn(w)
	}
}

func warnStale(w *World, cmd *command, op string) {
	w.log.WithFields(logrus.Fields{
		"entity":  cmd.entity,
		"command": op,
	}).Warn("skipping command for entity that no longer exists")
}
