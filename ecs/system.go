// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package ecs

// System is implemented by types that participate in the
// World's per-frame tick.
// A System additionally implements zero or more typed
// Subscriber[T] interfaces to receive event broadcasts; it
// must call UnsubscribeAll(w, self) from its Destroy hook.
type System interface {
	// Initialize prepares the system for use. It is called
	// once, synchronously, from World.RegisterSystem.
	Initialize(w *World) bool

	// Destroy releases any resource held by the system and
	// unsubscribes it from every event it registered for.
	// It is called once, synchronously, from
	// World.UnregisterSystem.
	Destroy() bool

	// Tick advances the system's state by dt. It is called
	// once per frame, in registration order, for every
	// enabled system.
	Tick(dt float64) bool
}
