// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"fmt"
	"sync"

	"github.com/nyxgfx/nyx/rhi"
)

// ErrNameCollision is returned by ResourceCache.Put when name is
// already bound.
var ErrNameCollision = fmt.Errorf("rendergraph: resource cache name already bound")

type constants struct {
	ptr   any
	count int
}

// ResourceCache is a process-wide, per-graph name → RHI object
// table, plus a name → (pointer, count) table for raw constant
// blocks, populated during pass Compile and looked up by later
// passes by name.
type ResourceCache struct {
	mu        sync.Mutex
	objects   map[string]rhi.Object
	constants map[string]constants
}

// NewResourceCache creates an empty cache.
func NewResourceCache() *ResourceCache {
	return &ResourceCache{
		objects:   make(map[string]rhi.Object),
		constants: make(map[string]constants),
	}
}

// Put binds name to obj. It is an error to rebind a name already
// present.
func (c *ResourceCache) Put(name string, obj rhi.Object) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.objects[name]; ok {
		return fmt.Errorf("%w: %q", ErrNameCollision, name)
	}
	c.objects[name] = obj
	return nil
}

// Get looks up name.
func (c *ResourceCache) Get(name string) (rhi.Object, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	obj, ok := c.objects[name]
	return obj, ok
}

// PutConstants binds name to a raw constant block pointer/count
// pair (e.g. a per-frame uniform array a later pass reads back).
func (c *ResourceCache) PutConstants(name string, ptr any, count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.constants[name]; ok {
		return fmt.Errorf("%w: %q", ErrNameCollision, name)
	}
	c.constants[name] = constants{ptr, count}
	return nil
}

// GetConstants looks up name.
func (c *ResourceCache) GetConstants(name string) (any, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.constants[name]
	return v.ptr, v.count, ok
}

// Reset clears every binding, for graph reset between loads.
func (c *ResourceCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects = make(map[string]rhi.Object)
	c.constants = make(map[string]constants)
}
