// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package ecs

// Each calls fn for every entity owning a component of type
// T, skipping entities pending destruction, in entity-vector
// order. It stops at the first call that returns false.
func Each[T any](w *World, fn func(*Entity, *T) bool) {
	w.mu.Lock()
	entities := append([]*Entity(nil), w.entities...)
	w.mu.Unlock()
	for _, e := range entities {
		if e.PendingDestroy() {
			continue
		}
		c, ok := Get[T](e)
		if !ok {
			continue
		}
		if !fn(e, c) {
			return
		}
	}
}

// Each2 is the two-type form of Each: fn is called only for
// entities owning components of both types.
func Each2[A, B any](w *World, fn func(*Entity, *A, *B) bool) {
	w.mu.Lock()
	entities := append([]*Entity(nil), w.entities...)
	w.mu.Unlock()
	for _, e := range entities {
		if e.PendingDestroy() {
			continue
		}
		a, ok := Get[A](e)
		if !ok {
			continue
		}
		b, ok := Get[B](e)
		if !ok {
			continue
		}
		if !fn(e, a, b) {
			return
		}
	}
}

// Each3 is the three-type form of Each.
func Each3[A, B, C any](w *World, fn func(*Entity, *A, *B, *C) bool) {
	w.mu.Lock()
	entities := append([]*Entity(nil), w.entities...)
	w.mu.Unlock()
	for _, e := range entities {
		if e.PendingDestroy() {
			continue
		}
		a, ok := Get[A](e)
		if !ok {
			continue
		}
		b, ok := Get[B](e)
		if !ok {
			continue
		}
		c, ok := Get[C](e)
		if !ok {
			continue
		}
		if !fn(e, a, b, c) {
			return
		}
	}
}

// Count returns the number of entities owning a component of
// type T, excluding those pending destruction.
func Count[T any](w *World) int {
	n := 0
	Each[T](w, func(*Entity, *T) bool { n++; return true })
	return n
}
