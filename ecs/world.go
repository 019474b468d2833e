// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package ecs

import (
	"reflect"
	"sync"
)

// World owns a dense vector of entities, the set of
// registered systems, and the typed event bus.
// Component-map mutations on distinct entities may proceed
// concurrently; World.CreateEntity itself is not safe for
// concurrent use (use CreateEntityDelay/AddDelayEntity for
// entities populated from a background goroutine).
type World struct {
	mu       sync.Mutex
	nextID   ID
	entities []*Entity

	delayMu sync.Mutex
	delayed []*Entity

	sysMu    sync.Mutex
	enabled  []System
	disabled []System

	events *eventBus

	global *Entity
}

// New creates an initialized World, including its
// distinguished global entity.
func New() *World {
	w := &World{events: newEventBus()}
	w.global = w.newEntity()
	w.entities = append(w.entities, w.global)
	return w
}

// Global returns the world's distinguished global entity, a
// rendezvous for world-level components such as the scene
// grid.
func (w *World) Global() *Entity { return w.global }

// newEntity allocates (but does not publish) a new entity.
func (w *World) newEntity() *Entity {
	id := w.nextID
	w.nextID++
	return &Entity{
		id:         id,
		world:      w,
		components: make(map[reflect.Type]*componentBox),
	}
}

// CreateEntity appends a new entity to the world and returns
// it. It is not safe for concurrent use.
func (w *World) CreateEntity() *Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	e := w.newEntity()
	w.entities = append(w.entities, e)
	return e
}

// CreateEntityDelay reserves a new entity that is not yet
// visible to iteration (Each and its variants). It is safe to call from a
// background goroutine while populating an entity's
// components prior to publishing it with AddDelayEntity.
func (w *World) CreateEntityDelay() *Entity {
	w.delayMu.Lock()
	defer w.delayMu.Unlock()
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.mu.Unlock()
	e := &Entity{id: id, world: w, components: make(map[reflect.Type]*componentBox)}
	w.delayed = append(w.delayed, e)
	return e
}

// AddDelayEntity publishes a previously reserved entity (see
// CreateEntityDelay) to the main entity vector. It must be
// called from the thread that owns the World's entity vector
// (typically the main thread, once per frame).
func (w *World) AddDelayEntity(e *Entity) {
	w.delayMu.Lock()
	for i, d := range w.delayed {
		if d == e {
			w.delayed = append(w.delayed[:i], w.delayed[i+1:]...)
			break
		}
	}
	w.delayMu.Unlock()

	w.mu.Lock()
	w.entities = append(w.entities, e)
	w.mu.Unlock()
}

// DestroyEntity marks e for destruction. If immediate is
// true, e is removed from the entity vector right away (and
// its components freed, firing ComponentRemoved for each);
// otherwise its PendingDestroy flag is set and it stays in
// the entity vector, skipped by Each and its variants, until
// the next Cleanup.
func (w *World) DestroyEntity(e *Entity, immediate bool) {
	e.mu.Lock()
	e.pendingDestroy = true
	e.mu.Unlock()
	if immediate {
		w.removeEntity(e)
	}
}

// removeEntity drops e from the entity vector and frees its
// components.
func (w *World) removeEntity(e *Entity) {
	e.removeAll()
	w.mu.Lock()
	for i, x := range w.entities {
		if x == e {
			w.entities = append(w.entities[:i], w.entities[i+1:]...)
			break
		}
	}
	w.mu.Unlock()
}

// Cleanup sweeps every entity marked PendingDestroy from the
// entity vector, freeing their components. It is called at
// the top of every Tick.
func (w *World) Cleanup() {
	w.mu.Lock()
	var pending []*Entity
	kept := w.entities[:0:0]
	for _, e := range w.entities {
		e.mu.Lock()
		dead := e.pendingDestroy
		e.mu.Unlock()
		if dead {
			pending = append(pending, e)
		} else {
			kept = append(kept, e)
		}
	}
	w.entities = kept
	w.mu.Unlock()
	for _, e := range pending {
		e.removeAll()
	}
}

// RegisterSystem initializes s and, on success, adds it to
// the enabled set. It returns false without storing s if
// Initialize fails.
func (w *World) RegisterSystem(s System) bool {
	if !s.Initialize(w) {
		return false
	}
	w.sysMu.Lock()
	w.enabled = append(w.enabled, s)
	w.sysMu.Unlock()
	return true
}

// UnregisterSystem calls s.Destroy and removes it from
// whichever of the enabled/disabled sets it belongs to.
func (w *World) UnregisterSystem(s System) {
	s.Destroy()
	w.sysMu.Lock()
	defer w.sysMu.Unlock()
	w.enabled = removeSystem(w.enabled, s)
	w.disabled = removeSystem(w.disabled, s)
}

// DisableSystem moves s from the enabled set to the disabled
// set without calling Initialize or Destroy. Ticking stops
// until EnableSystem is called.
func (w *World) DisableSystem(s System) {
	w.sysMu.Lock()
	defer w.sysMu.Unlock()
	if removeFound(w.enabled, s) {
		w.enabled = removeSystem(w.enabled, s)
		w.disabled = append(w.disabled, s)
	}
}

// EnableSystem moves s from the disabled set back to the
// enabled set.
func (w *World) EnableSystem(s System) {
	w.sysMu.Lock()
	defer w.sysMu.Unlock()
	if removeFound(w.disabled, s) {
		w.disabled = removeSystem(w.disabled, s)
		w.enabled = append(w.enabled, s)
	}
}

func removeFound(lst []System, s System) bool {
	for _, x := range lst {
		if x == s {
			return true
		}
	}
	return false
}

func removeSystem(lst []System, s System) []System {
	for i, x := range lst {
		if x == s {
			return append(lst[:i], lst[i+1:]...)
		}
	}
	return lst
}

// Tick sweeps pending-destroy entities, then calls Tick(dt)
// on every enabled system in registration order, stopping at
// the first one that returns false.
func (w *World) Tick(dt float64) bool {
	w.Cleanup()
	w.sysMu.Lock()
	systems := append([]System(nil), w.enabled...)
	w.sysMu.Unlock()
	for _, s := range systems {
		if !s.Tick(dt) {
			return false
		}
	}
	return true
}
