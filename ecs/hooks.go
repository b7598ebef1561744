package ecs

import "fmt"

// HookContext describes the lifecycle event a ComponentHook runs for.
type HookContext struct {
	World *World
	// Commands queues structural changes. They are applied as soon as the
	// World operation that fired the hook has finished.
	Commands  *Commands
	Entity    EntityId
	Component ComponentId
}

// ComponentHook reacts to a lifecycle event of one component on one entity.
// Hooks may read and modify component values through World, but structural
// changes must go through HookContext.Commands; World panics otherwise.
type ComponentHook func(ctx HookContext)

type hookKind uint8

const (
	hookAdd hookKind = iota
	hookInsert
	hookReplace
	hookRemove
	hookDespawn
	hookKinds
)

var hookNames = [hookKinds]string{"OnAdd", "OnInsert", "OnReplace", "OnRemove", "OnDespawn"}

// ComponentHooks holds the lifecycle hooks of one component type.
//
// OnAdd runs when an entity gains the component and OnInsert on every write
// of a value, after OnAdd. OnReplace runs before a value is overwritten or
// removed, OnRemove before the component leaves the entity, and OnDespawn
// last, for each component of a despawned entity.
type ComponentHooks struct {
	hooks [hookKinds]ComponentHook
}

func (h *ComponentHooks) set(kind hookKind, hook ComponentHook) *ComponentHooks {
	if h.hooks[kind] != nil {
		panic(fmt.Sprintf("ecs: %s hook is already set", hookNames[kind]))
	}
	h.hooks[kind] = hook
	return h
}

func (h *ComponentHooks) OnAdd(hook ComponentHook) *ComponentHooks {
	return h.set(hookAdd, hook)
}

func (h *ComponentHooks) OnInsert(hook ComponentHook) *ComponentHooks {
	return h.set(hookInsert, hook)
}

func (h *ComponentHooks) OnReplace(hook ComponentHook) *ComponentHooks {
	return h.set(hookReplace, hook)
}

func (h *ComponentHooks) OnRemove(hook ComponentHook) *ComponentHooks {
	return h.set(hookRemove, hook)
}

func (h *ComponentHooks) OnDespawn(hook ComponentHook) *ComponentHooks {
	return h.set(hookDespawn, hook)
}

// RegisterComponentHooks registers T if needed and returns its hooks for
// configuration. Each hook can be set once, before the registry is used by a
// running scheduler.
func RegisterComponentHooks[T any](r *ComponentRegistry) *ComponentHooks {
	id := RegisterComponent[T](r)
	r.hooked.Store(true)
	return &r.Info(id).hooks
}

// triggerHooks runs the kind hook of every component in ids that has one.
func (w *World) triggerHooks(kind hookKind, entity EntityId, ids []ComponentId) {
	if !w.registry.hooked.Load() {
		return
	}
	for _, c := range ids {
		if hook := w.registry.Info(c).hooks.hooks[kind]; hook != nil {
			w.runHook(hook, entity, c)
		}
	}
}

func (w *World) runHook(hook ComponentHook, entity EntityId, c ComponentId) {
	w.hookDepth++
	defer func() { w.hookDepth-- }()
	hook(HookContext{World: w, Commands: w.hookCommands, Entity: entity, Component: c})
}

func (w *World) despawnHooks(entity EntityId, ids []ComponentId) {
	w.triggerHooks(hookReplace, entity, ids)
	w.triggerHooks(hookRemove, entity, ids)
	w.triggerHooks(hookDespawn, entity, ids)
}

// checkStructural panics when a hook tries to change the world's structure
// while the operation that fired it is still in progress.
func (w *World) checkStructural() {
	if w.hookDepth > 0 {
		panic("ecs: structural change inside a component hook; queue it on HookContext.Commands")
	}
}

// applyHookCommands runs what hooks queued. Nested operations leave the work
// to the outermost one.
func (w *World) applyHookCommands() {
	if w.applyingHooks || len(w.hookCommands.queue.commands) == 0 {
		return
	}
	w.applyingHooks = true
	defer func() { w.applyingHooks = false }()
	w.hookCommands.Apply(w)
}
