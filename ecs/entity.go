// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package ecs implements the engine's entity-component-system
// world: entities holding per-type component boxes, systems
// driven by a per-frame tick, and a typed, synchronous event
// bus.
package ecs

import (
	"reflect"
	"sync"
)

// ID is the opaque identity of an Entity.
type ID int64

// componentBox is a polymorphic container holding exactly one
// component value of a registered type.
// removed, when set, fires the typed ComponentRemoved[T] event
// for the value it holds; it is invoked before the box is
// dropped from its owning Entity, on every destruction path.
type componentBox struct {
	value   any
	removed func(e *Entity)
}

// Entity is an opaque identity plus a mapping from component
// type to owned component box.
// The zero value is not usable; entities are created by
// World.CreateEntity and its variants.
type Entity struct {
	id    ID
	world *World

	mu             sync.Mutex
	components     map[reflect.Type]*componentBox
	pendingDestroy bool
}

// ID returns the entity's opaque 64-bit identity.
func (e *Entity) ID() ID { return e.id }

// World returns the World that owns e.
func (e *Entity) World() *World { return e.world }

// PendingDestroy reports whether World.DestroyEntity has been
// called for e with immediate set to false; e remains valid
// and in the entity vector until the next World.Cleanup, but
// Each and its variants skip it.
func (e *Entity) PendingDestroy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pendingDestroy
}

func typeTag[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Assign constructs (or overwrites) the component of type T
// owned by e. It first broadcasts ComponentAssigned[T] to
// e.World(); if any subscriber returns false, the assignment
// is aborted and the component is not stored (or, on
// overwrite, is left as it was). On overwrite, the existing
// component's data is replaced in place and no
// ComponentRemoved event fires.
func Assign[T any](e *Entity, value T) (*T, bool) {
	t := typeTag[T]()

	e.mu.Lock()
	box, existed := e.components[t]
	var ptr *T
	if existed {
		ptr = box.value.(*T)
	}
	e.mu.Unlock()

	staged := value
	if !Broadcast(e.world, ComponentAssigned[T]{Entity: e, Component: &staged}) {
		return nil, false
	}

	if !existed {
		ptr = new(T)
	}
	*ptr = staged

	e.mu.Lock()
	e.components[t] = &componentBox{
		value: ptr,
		removed: func(ent *Entity) {
			Broadcast(ent.world, ComponentRemoved[T]{Entity: ent, Component: ptr})
		},
	}
	e.mu.Unlock()
	return ptr, true
}

// Remove destroys the component of type T owned by e, firing
// ComponentRemoved[T] before the storage is freed.
// It reports whether e contained a component of type T.
func Remove[T any](e *Entity) bool {
	t := typeTag[T]()
	e.mu.Lock()
	box, existed := e.components[t]
	e.mu.Unlock()
	if !existed {
		return false
	}
	box.removed(e)
	e.mu.Lock()
	delete(e.components, t)
	e.mu.Unlock()
	return true
}

// removeAll destroys every component owned by e, in
// unspecified order, firing ComponentRemoved for each.
// It is called by the World's destruction paths (immediate
// destroy, cleanup sweep, world reset).
func (e *Entity) removeAll() {
	for {
		e.mu.Lock()
		var t reflect.Type
		var box *componentBox
		for k, v := range e.components {
			t, box = k, v
			break
		}
		e.mu.Unlock()
		if box == nil {
			return
		}
		box.removed(e)
		e.mu.Lock()
		delete(e.components, t)
		e.mu.Unlock()
	}
}

// Contain reports whether e owns a component of type T.
func Contain[T any](e *Entity) bool {
	t := typeTag[T]()
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.components[t]
	return ok
}

// Contain2 reports whether e owns components of both types.
func Contain2[A, B any](e *Entity) bool {
	return Contain[A](e) && Contain[B](e)
}

// Contain3 reports whether e owns components of all three
// types.
func Contain3[A, B, C any](e *Entity) bool {
	return Contain[A](e) && Contain[B](e) && Contain[C](e)
}

// Get returns a pointer to e's component of type T, or
// (nil, false) if it does not own one.
func Get[T any](e *Entity) (*T, bool) {
	t := typeTag[T]()
	e.mu.Lock()
	defer e.mu.Unlock()
	box, ok := e.components[t]
	if !ok {
		return nil, false
	}
	return box.value.(*T), true
}

// With calls fn with e's component of type T, and returns
// whether both the component existed and fn returned true.
func With[T any](e *Entity, fn func(*T) bool) bool {
	c, ok := Get[T](e)
	if !ok {
		return false
	}
	return fn(c)
}

// With2 is the two-type form of With.
func With2[A, B any](e *Entity, fn func(*A, *B) bool) bool {
	a, ok := Get[A](e)
	if !ok {
		return false
	}
	b, ok := Get[B](e)
	if !ok {
		return false
	}
	return fn(a, b)
}
