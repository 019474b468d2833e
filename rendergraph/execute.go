// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"fmt"

	"github.com/nyxgfx/nyx/rhi"
)

// ErrNotCompiled is returned by Execute when called before a
// successful Compile.
var ErrNotCompiled = fmt.Errorf("rendergraph: Execute called before Compile")

// Execute runs one frame: every non-excluded pass in topological
// order, batching command lists per queue and flushing a batch
// (submitting it) whenever a pass signals a cross-queue
// dependency, per §4.8 step-by-step.
func (g *Graph) Execute(dev rhi.Device) (bool, error) {
	if !g.compiled {
		return false, ErrNotCompiled
	}

	var pending [3][]rhi.CommandList
	flush := func(q rhi.QueueType) error {
		for _, cl := range pending[q] {
			fence, err := dev.Submit(cl)
			if err != nil {
				return fmt.Errorf("rendergraph: submit on queue %d: %w", q, err)
			}
			g.fences[q] = fence
		}
		pending[q] = nil
		return nil
	}

	for _, i := range g.order {
		ps := g.passes[i]
		if ps.runtimeType&Excluded != 0 {
			continue
		}

		if err := ps.cl.Open(); err != nil {
			return false, fmt.Errorf("rendergraph: open command list for pass %q: %w", ps.pass.Name(), err)
		}
		ok, err := ps.pass.Execute(ps.cl, g.cache)
		if err != nil {
			return false, fmt.Errorf("rendergraph: execute pass %q: %w", ps.pass.Name(), err)
		}
		if !ok {
			return false, nil
		}
		if err := ps.cl.Close(); err != nil {
			return false, fmt.Errorf("rendergraph: close command list for pass %q: %w", ps.pass.Name(), err)
		}

		if ps.runtimeType&Regenerate != 0 {
			ps.runtimeType &^= Excluded | PendingExclude | Regenerate
			continue
		}

		q := ps.pass.Queue()
		if ps.wait {
			for _, wq := range ps.waitQueues {
				dev.QueueWaitForCommandList(q, wq, g.fences[wq])
			}
		}
		pending[q] = append(pending[q], ps.cl)
		if ps.signal {
			if err := flush(q); err != nil {
				return false, err
			}
		}

		if ps.runtimeType&PendingExclude != 0 {
			ps.runtimeType |= Excluded
			ps.runtimeType &^= PendingExclude
		}
		if ps.runtimeType&Once != 0 {
			ps.runtimeType |= PendingExclude
		}
	}

	if err := flush(rhi.QueueGraphics); err != nil {
		return false, err
	}

	dev.WaitIdle()
	dev.RunGarbageCollection()
	if g.present != nil {
		if err := g.present(); err != nil {
			return false, fmt.Errorf("rendergraph: present: %w", err)
		}
	}
	return true, nil
}

// ContinuePrecompute makes pass p, if its type includes
// Precompute, eligible to run again next Execute by clearing
// its Excluded bit; other passes are not affected. Driving events
// (GenerateSdf, GenerateSurfaceCache) call this.
func (g *Graph) ContinuePrecompute(p Pass) {
	idx := g.findIndex(p)
	if idx < 0 {
		return
	}
	ps := g.passes[idx]
	if ps.runtimeType&Precompute != 0 {
		ps.runtimeType &^= Excluded
	}
}

// FinishPass lets a pass itself decide, after running, whether to
// re-exclude (done, no more slices this load) or keep going
// (another slice next frame) by toggling its Excluded bit
// directly; this is the "finish_pass" hook of §4.8.
func (g *Graph) FinishPass(p Pass, excludeNow bool) {
	idx := g.findIndex(p)
	if idx < 0 {
		return
	}
	ps := g.passes[idx]
	if excludeNow {
		ps.runtimeType |= Excluded
	} else {
		ps.runtimeType &^= Excluded
	}
}

// PassType reports a pass's current runtime type bits (Type()
// plus any runtime-mutated Excluded/PendingExclude bits), chiefly
// for tests.
func (g *Graph) PassType(p Pass) (PassType, bool) {
	idx := g.findIndex(p)
	if idx < 0 {
		return 0, false
	}
	return g.passes[idx].runtimeType, true
}
