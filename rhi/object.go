// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package rhi is the render hardware interface: a thin,
// ref-counted abstraction over the GPU object model (buffers,
// textures, samplers, pipelines, binding sets, command lists)
// that backends (rhi/vk, rhi/null) implement.
package rhi

import (
	"fmt"
	"sync/atomic"
)

// IID is a 128-bit opaque interface identifier, used by
// QueryInterface to fetch a capability view of an object
// without runtime type assertions leaking across package
// boundaries.
type IID [2]uint64

// Object is the base of every RHI type: a strong reference
// count plus capability lookup.
type Object interface {
	// AddRef increments the strong count and returns the new
	// value. It panics on overflow (wrap to zero).
	AddRef() uint32

	// Release decrements the strong count, invoking the
	// object's destructor when it reaches zero, and returns
	// the new value. It panics if called on an object whose
	// count is already zero.
	Release() uint32

	// QueryInterface returns a differently-typed view of the
	// same underlying object if it implements iid, or
	// (nil, false) otherwise. A successful query adds a
	// reference; the caller must Release it.
	QueryInterface(iid IID) (Object, bool)
}

// ifaceTable maps an IID to the capability view returned for
// it; registered once per concrete instance at construction,
// closing over that instance.
type ifaceTable map[IID]func() Object

// Resource is embedded by every concrete RHI type to supply
// the Object implementation (AddRef/Release/QueryInterface are
// promoted from it). destroy is invoked exactly once, when the
// strong count reaches zero.
type Resource struct {
	count   atomic.Uint32
	ifaces  ifaceTable
	destroy func()
}

// InitResource initializes r with an initial strong count of
// 1, the capability table ifaces (may be nil; build it with
// closures over the owning concrete value), and the destructor
// to run on final release.
func InitResource(r *Resource, ifaces ifaceTable, destroy func()) {
	r.count.Store(1)
	r.ifaces = ifaces
	r.destroy = destroy
}

// StrongCount reports the current reference count, chiefly
// for tests asserting property 1 (every factory path returns
// an object with strong count 1).
func (r *Resource) StrongCount() uint32 { return r.count.Load() }

func (r *Resource) AddRef() uint32 {
	n := r.count.Add(1)
	if n == 0 {
		panic("rhi: AddRef overflow")
	}
	return n
}

func (r *Resource) Release() uint32 {
	for {
		n := r.count.Load()
		if n == 0 {
			panic("rhi: Release called on object with zero strong count")
		}
		if r.count.CompareAndSwap(n, n-1) {
			if n-1 == 0 && r.destroy != nil {
				r.destroy()
			}
			return n - 1
		}
	}
}

// QueryInterface looks up iid in the capability table supplied
// to InitResource. A successful query adds a reference to the
// returned object, which the caller must Release.
func (r *Resource) QueryInterface(iid IID) (Object, bool) {
	fn, ok := r.ifaces[iid]
	if !ok {
		return nil, false
	}
	obj := fn()
	obj.AddRef()
	return obj, true
}

// ErrRefCount is returned by tooling (never by AddRef/Release,
// which panic) that wants to report a ref-counting violation
// without crashing, e.g. an allocator-hook leak check run at
// test teardown.
type ErrRefCount struct {
	Object any
	Count  uint32
}

func (e *ErrRefCount) Error() string {
	return fmt.Sprintf("rhi: object %v leaked with strong count %d", e.Object, e.Count)
}
