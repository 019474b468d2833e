// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package scene implements the scene baker: an ECS world of
// loaded models, their materials, distance fields and surface
// caches, the transform hierarchy and chunk grid that organize
// them spatially, and the render-graph passes that bake their
// GPU-resident SDF and surface-cache data.
package scene

import (
	"fmt"
	"sync"

	"github.com/nyxgfx/nyx/ecs"
	"github.com/nyxgfx/nyx/linear"
	"github.com/nyxgfx/nyx/rendergraph"
	"github.com/nyxgfx/nyx/rhi"
)

// Baker owns one scene: its ECS world, transform hierarchy,
// chunk grid, shared mesh storage, and the render graph driving
// SDF / surface-cache precomputation. Call NewOnscreen or
// NewOffscreen to obtain a valid Baker.
type Baker struct {
	mu sync.Mutex

	dev    rhi.Device
	loader ModelLoader

	World     *ecs.World
	Transform *TransformGraph
	Grid      *Grid
	mesh      *meshStorage
	graph     *rendergraph.Graph

	assetRoot string
}

// newBaker builds the shared state every Baker needs,
// subscribing to the ECS events the scene baker reacts to per
// the model-load lifecycle.
func newBaker(dev rhi.Device, loader ModelLoader, assetRoot string, present func() error) (*Baker, error) {
	mesh, err := newMeshStorage(dev, int64(cfg.InitialMeshBuffer))
	if err != nil {
		return nil, fmt.Errorf("scene: new baker: %w", err)
	}
	b := &Baker{
		dev:       dev,
		loader:    loader,
		World:     ecs.New(),
		Transform: NewTransformGraph(),
		Grid:      NewGrid(cfg.GridChunkSize),
		mesh:      mesh,
		graph:     rendergraph.New(present),
		assetRoot: assetRoot,
	}
	ecs.Subscribe[ecs.ModelLoad](b.World, modelLoadSubscriber{b})
	ecs.Subscribe[ecs.ModelTransform](b.World, modelTransformSubscriber{b})
	return b, nil
}

// NewOnscreen creates a Baker that presents to a window surface
// via present, mirroring the renderer's onscreen/offscreen
// split: an onscreen Baker additionally owns the present hook
// the render graph flushes to every frame.
func NewOnscreen(dev rhi.Device, loader ModelLoader, assetRoot string, present func() error) (*Baker, error) {
	if present == nil {
		return nil, fmt.Errorf("scene: NewOnscreen requires a non-nil present hook")
	}
	return newBaker(dev, loader, assetRoot, present)
}

// NewOffscreen creates a Baker with no present hook: every frame
// renders into render-graph-owned resources only.
func NewOffscreen(dev rhi.Device, loader ModelLoader, assetRoot string) (*Baker, error) {
	return newBaker(dev, loader, assetRoot, nil)
}

// Graph exposes the underlying render graph so callers can
// AddPass/Precede/Succeed application-specific passes alongside
// the baker's own SDF/surface-cache passes.
func (b *Baker) Graph() *rendergraph.Graph { return b.graph }

// AddBakePasses installs the SDF and surface-cache bake passes
// for entity e (which must already carry Mesh, DistanceField and
// SurfaceCache components), wiring them into the render graph.
func (b *Baker) AddBakePasses(e *ecs.Entity) error {
	mesh, ok := ecs.Get[Mesh](e)
	if !ok {
		return fmt.Errorf("scene: AddBakePasses: entity has no Mesh component")
	}
	df, ok := ecs.Get[DistanceField](e)
	if !ok {
		return fmt.Errorf("scene: AddBakePasses: entity has no DistanceField component")
	}
	sc, ok := ecs.Get[SurfaceCache](e)
	if !ok {
		return fmt.Errorf("scene: AddBakePasses: entity has no SurfaceCache component")
	}
	name, ok := ecs.Get[AssetName](e)
	if !ok {
		return fmt.Errorf("scene: AddBakePasses: entity has no AssetName component")
	}
	sdfPass := newSDFBakePass(e, mesh, df, sdfCachePath(b.assetRoot, name.Name))
	scPass := newSurfaceCacheBakePass(e, mesh, sc, surfaceCachePath(b.assetRoot, name.Name))
	b.graph.AddPass(sdfPass)
	b.graph.AddPass(scPass)
	return nil
}

// GenerateSdf re-enables entity e's SDF bake pass for one more
// run, per the precompute-pass lifecycle.
func (b *Baker) GenerateSdf(e *ecs.Entity) {
	ecs.Broadcast(b.World, GenerateSdf{Entity: e})
	if p := b.findPass(e, sdfPassKind); p != nil {
		if sp, ok := p.(*sdfBakePass); ok {
			sp.finished = false
		}
		b.graph.ContinuePrecompute(p)
	}
}

// GenerateSurfaceCache re-enables entity e's surface-cache bake
// pass for one more run.
func (b *Baker) GenerateSurfaceCache(e *ecs.Entity) {
	ecs.Broadcast(b.World, GenerateSurfaceCache{Entity: e})
	if p := b.findPass(e, surfaceCachePassKind); p != nil {
		if sp, ok := p.(*surfaceCacheBakePass); ok {
			sp.finished = false
		}
		b.graph.ContinuePrecompute(p)
	}
}

type passKind int

const (
	sdfPassKind passKind = iota
	surfaceCachePassKind
)

func (b *Baker) findPass(e *ecs.Entity, kind passKind) rendergraph.Pass {
	for _, p := range b.graph.Passes() {
		switch pp := p.(type) {
		case *sdfBakePass:
			if kind == sdfPassKind && pp.entity == e {
				return p
			}
		case *surfaceCacheBakePass:
			if kind == surfaceCachePassKind && pp.entity == e {
				return p
			}
		}
	}
	return nil
}

// Tick advances the transform graph and compiles (once) then
// executes one frame of the render graph, persisting any bake
// pass that completed this frame and re-excluding it until the
// next GenerateSdf/GenerateSurfaceCache.
//
// Every entity whose world transform was recomputed this tick —
// including a child entity moved only because an ancestor was —
// is re-bucketed in the chunk grid at its fresh world-space
// bounds, so a moved parent's descendants never go stale between
// explicit ModelTransform events.
func (b *Baker) Tick() (bool, error) {
	anyMoved := false
	b.Transform.Update(func(e *ecs.Entity, world linear.M4) {
		df, ok := ecs.Get[DistanceField](e)
		if !ok {
			return
		}
		for i := range df.Fields {
			box, _ := df.Fields[i].GetTransformed(world)
			b.Grid.Move(e, box)
			anyMoved = true
		}
	})
	if anyMoved {
		ecs.Broadcast(b.World, UpdateGlobalSdf{})
	}
	if !b.graph.Compiled() {
		if err := b.graph.Compile(b.dev); err != nil {
			return false, fmt.Errorf("scene: compile render graph: %w", err)
		}
	}
	ok, err := b.graph.Execute(b.dev)
	if err != nil || !ok {
		return ok, err
	}
	for _, p := range b.graph.Passes() {
		switch pp := p.(type) {
		case *sdfBakePass:
			if pp.done() {
				if err := pp.finish(); err != nil {
					return false, fmt.Errorf("scene: finish sdf bake: %w", err)
				}
				b.graph.FinishPass(p, true)
			}
		case *surfaceCacheBakePass:
			if pp.done() {
				if err := pp.finish(); err != nil {
					return false, fmt.Errorf("scene: finish surfacecache bake: %w", err)
				}
				b.graph.FinishPass(p, true)
			}
		}
	}
	return ok, nil
}
