// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package scene

import (
	"log"
	"path/filepath"

	"github.com/nyxgfx/nyx/ecs"
	"github.com/nyxgfx/nyx/linear"
	"github.com/nyxgfx/nyx/node"
)

// GenerateSdf is broadcast to request that entity e's SDF bake
// pass run again: it bakes one slice per frame until every
// submesh is done, driving the precompute pass's
// continue_precompute lifecycle.
type GenerateSdf struct{ Entity *ecs.Entity }

// GenerateSurfaceCache is broadcast to request that entity e's
// surface-cache bake pass run again: it handles one submesh per
// frame until every submesh is done.
type GenerateSurfaceCache struct{ Entity *ecs.Entity }

// UpdateGlobalSdf is broadcast whenever the chunk grid's dirty
// set changes, signalling that the global SDF composited from
// per-chunk local fields is stale.
type UpdateGlobalSdf struct{}

// AssetName is the ECS component recording the base name (no
// directory, no extension) of the asset an entity was loaded
// from, so bake passes can name their .sdf/.sc cache files.
type AssetName struct{ Name string }

// modelLoadSubscriber reacts to ecs.ModelLoad by parsing the
// asset, assigning Mesh/Material/DistanceField/SurfaceCache
// components, and inserting the entity into the chunk grid —
// the ComponentAssigned<T> sequence of §4.9.
type modelLoadSubscriber struct{ b *Baker }

func (s modelLoadSubscriber) Publish(w *ecs.World, ev ecs.ModelLoad) bool {
	b := s.b
	model, err := b.loader.Load(ev.Path)
	if err != nil {
		log.Printf("scene: load model %q: %v", ev.Path, err)
		return false
	}

	m := Mesh{}
	for _, sm := range model.Submeshes {
		sub, err := b.storeSubmesh(&sm)
		if err != nil {
			log.Printf("scene: store submesh of %q: %v", ev.Path, err)
			return false
		}
		m.Submeshes = append(m.Submeshes, sub)
	}
	ecs.Assign(ev.Entity, m)

	base := filepath.Base(ev.Path)
	modelName := base[:len(base)-len(filepath.Ext(base))]
	ecs.Assign(ev.Entity, AssetName{Name: modelName})

	df, cached, err := LoadSDFCache(sdfCachePath(b.assetRoot, modelName), len(m.Submeshes), cfg.SDFResolution)
	if err != nil {
		log.Printf("scene: load sdf cache for %q: %v", modelName, err)
	}
	if !cached {
		df = buildSubmeshBVHs(model.Submeshes)
	}
	ecs.Assign(ev.Entity, DistanceField{Fields: df})

	sc, cached, err := LoadSurfaceCache(surfaceCachePath(b.assetRoot, modelName), len(m.Submeshes))
	if err != nil {
		log.Printf("scene: load surface cache for %q: %v", modelName, err)
	}
	if !cached {
		sc = &SurfaceCache{
			CardResolution:    SurfaceCacheResolution,
			SurfaceResolution: SurfaceCacheResolution,
			Submeshes:         make([]SubmeshCache, len(m.Submeshes)),
		}
	}
	ecs.Assign(ev.Entity, *sc)

	var world linear.M4
	world.I()
	if len(model.Submeshes) > 0 {
		world = model.Submeshes[0].WorldMatrix
	}
	// Assign first so the TransformGraph node is tagged with the
	// same *Transform the ECS hands back to every later caller of
	// ecs.Get[Transform] — Insert must not own a separate copy
	// that subsequent Set calls on the component never reach.
	tr, _ := ecs.Assign(ev.Entity, *NewTransform(world))
	b.Transform.Insert(ev.Entity, tr, node.Nil)

	for i := range df {
		box, _ := df[i].GetTransformed(world)
		b.Grid.Insert(ev.Entity, box)
	}
	ecs.Broadcast(b.World, UpdateGlobalSdf{})
	return true
}

// modelTransformSubscriber reacts to ecs.ModelTransform by
// setting the entity's Transform and recomposing the transform
// graph at once: the entity and every descendant whose world
// matrix changed are moved within the chunk grid (marking the
// touched chunks dirty), and UpdateGlobalSdf is broadcast if
// any entity moved.
type modelTransformSubscriber struct{ b *Baker }

func (s modelTransformSubscriber) Publish(w *ecs.World, ev ecs.ModelTransform) bool {
	tr, ok := ecs.Get[Transform](ev.Entity)
	if !ok {
		return true
	}
	tr.Set(ev.Transform)
	b := s.b
	moved := false
	b.Transform.Update(func(e *ecs.Entity, world linear.M4) {
		df, ok := ecs.Get[DistanceField](e)
		if !ok {
			return
		}
		for i := range df.Fields {
			box, _ := df.Fields[i].GetTransformed(world)
			b.Grid.Move(e, box)
			moved = true
		}
	})
	if moved {
		ecs.Broadcast(b.World, UpdateGlobalSdf{})
	}
	return true
}
