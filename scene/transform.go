// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package scene

import (
	"sync"

	"github.com/nyxgfx/nyx/ecs"
	"github.com/nyxgfx/nyx/linear"
	"github.com/nyxgfx/nyx/node"
)

// Transform is the ECS component every entity with a spatial
// presence carries. It implements node.Interface so it can be
// inserted directly into a TransformGraph; Changed reports (and
// clears) whether Set has been called since the graph's last
// Update.
type Transform struct {
	local linear.M4
	dirty bool
	n     node.Node
}

// NewTransform creates a Transform with local as its initial
// local matrix.
func NewTransform(local linear.M4) *Transform {
	return &Transform{local: local, dirty: true}
}

func (t *Transform) Local() *linear.M4 { return &t.local }

func (t *Transform) Changed() bool {
	d := t.dirty
	t.dirty = false
	return d
}

// Set replaces the transform's local matrix, marking it changed
// for the next TransformGraph.Update.
func (t *Transform) Set(m linear.M4) { t.local = m; t.dirty = true }

// Node reports the handle assigned by TransformGraph.Insert, or
// node.Nil if the transform was never inserted.
func (t *Transform) Node() node.Node { return t.n }

// TransformGraph is the single node.Graph the world owns for
// composing entity transform hierarchies: an entity that
// declares a parent inserts its Transform as a child of the
// parent's node in this graph, tagged with the owning *ecs.Entity
// itself so Update can report exactly which entities moved,
// including descendants that moved only because an ancestor did.
type TransformGraph struct {
	mu    sync.Mutex
	graph node.Graph[*ecs.Entity]
}

// NewTransformGraph creates an empty graph.
func NewTransformGraph() *TransformGraph { return &TransformGraph{} }

// Insert adds t as a child of parent (node.Nil for a root
// transform), tagging the node with e so Update's callback can
// report it, and recording the assigned node on t.
func (g *TransformGraph) Insert(e *ecs.Entity, t *Transform, parent node.Node) node.Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	t.n = g.graph.Insert(t, e, parent)
	return t.n
}

// Remove removes t and every descendant transform from the
// graph.
func (g *TransformGraph) Remove(t *Transform) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.graph.Remove(t.n)
	t.n = node.Nil
}

// Update recomputes every dirty transform's world matrix and
// calls moved, if non-nil, once per entity whose world transform
// was recomputed this call — including a child entity whose
// world changed only because an ancestor's did. moved is called
// with g's lock held and must not call any TransformGraph method.
func (g *TransformGraph) Update(moved func(e *ecs.Entity, world linear.M4)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if moved == nil {
		g.graph.Update(nil)
		return
	}
	g.graph.Update(func(e *ecs.Entity, world *linear.M4) { moved(e, *world) })
}

// World returns t's current world matrix. It is only accurate
// as of the most recent Update call.
func (g *TransformGraph) World(t *Transform) linear.M4 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return *g.graph.World(t.n)
}
