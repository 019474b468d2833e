// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package rendergraph orders GPU work across multiple command
// queues: it compiles a DAG of passes into per-queue command-list
// sequences and inserts the cross-queue synchronisation that the
// topological order requires.
package rendergraph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nyxgfx/nyx/rhi"
)

// ErrCycle is returned by Compile when the pass dependency graph
// is not acyclic.
var ErrCycle = errors.New("rendergraph: pass graph has a cycle")

// PassType is a bitmask describing a pass's queue affinity and
// its precompute scheduling state. The set below is the full
// complement the executor in Compile/Execute actually consults;
// an earlier revision referenced PendingExclude/Once/Regenerate/
// Excluded without ever defining them in the enum.
type PassType uint32

const (
	Graphics PassType = 1 << iota
	Compute
	Precompute
	Once
	PendingExclude
	Excluded
	Regenerate
)

// Pass is one unit of GPU work in the graph. Compile is invoked
// once per graph Compile() to let the pass create any resources
// it contributes to cache; Execute records the pass's commands.
// Pass has no finish step of its own: whether a precompute pass
// keeps running next frame is set through Graph.FinishPass.
type Pass interface {
	Name() string
	Type() PassType
	Queue() rhi.QueueType

	Compile(dev rhi.Device, cache *ResourceCache) error
	Execute(cl rhi.CommandList, cache *ResourceCache) (bool, error)
}

// passState is the graph's bookkeeping for one pass: its
// declared edges (by index into Graph.passes, assigned at
// add_pass time), the PassType bits the executor may mutate
// (PendingExclude/Excluded/Regenerate toggle at runtime even
// though Type() is fixed on the Pass value), and its compiled
// command list/async flags.
type passState struct {
	pass Pass

	index int // -1 until added

	successors map[int]bool // passes this one must run before
	dependents map[int]bool // passes that must run before this one

	runtimeType PassType // Type() | runtime-mutated bits

	// wait is set if any dependent targets a different queue:
	// the device must insert a cross-queue wait before this
	// pass's batch. signal is set if any successor targets a
	// different queue: this pass's batch must be flushed
	// (submitted) immediately so the successor can wait on its
	// fence. Both may be set on the same pass.
	wait, signal bool
	waitQueues   []rhi.QueueType // distinct foreign queues this pass must wait on

	cl rhi.CommandList
}

// Graph owns passes in insertion order, a shared ResourceCache,
// and the per-queue fence state Execute advances.
type Graph struct {
	passes []*passState
	byName map[string]int

	cache *ResourceCache

	fences [3]rhi.Fence // last fence value signalled per rhi.QueueType
	waitFor [3]rhi.Fence // value the next batch on this queue must wait for, from the other queue

	compiled bool
	order    []int // topological pass order, by Graph.passes index

	present func() error
}

// New creates an empty graph. present is invoked once at the end
// of every Execute call (the "present hook" of §4.8 step 7); it
// may be nil.
func New(present func() error) *Graph {
	return &Graph{cache: NewResourceCache(), byName: make(map[string]int), present: present}
}

// Cache returns the graph's resource cache.
func (g *Graph) Cache() *ResourceCache { return g.cache }

// Compiled reports whether Compile has succeeded since the last
// AddPass/Precede/Succeed call.
func (g *Graph) Compiled() bool { return g.compiled }

// Passes returns every pass added to the graph, in insertion
// order.
func (g *Graph) Passes() []Pass {
	out := make([]Pass, len(g.passes))
	for i, ps := range g.passes {
		out[i] = ps.pass
	}
	return out
}

// AddPass appends p, assigning its stable index.
func (g *Graph) AddPass(p Pass) int {
	idx := len(g.passes)
	g.passes = append(g.passes, &passState{
		pass:        p,
		index:       idx,
		successors:  make(map[int]bool),
		dependents:  make(map[int]bool),
		runtimeType: p.Type(),
	})
	g.byName[p.Name()] = idx
	g.compiled = false
	return idx
}

// findIndex resolves a Pass to its passState index, or -1 if it
// was never added (precede/succeed on such a pass is a no-op,
// per the lifecycle invariant that an unassigned index is
// harmless).
func (g *Graph) findIndex(p Pass) int {
	if idx, ok := g.byName[p.Name()]; ok && g.passes[idx].pass == p {
		return idx
	}
	return -1
}

// Precede declares that a must run before b.
func (g *Graph) Precede(a, b Pass) {
	ai, bi := g.findIndex(a), g.findIndex(b)
	if ai < 0 || bi < 0 {
		return
	}
	g.passes[ai].successors[bi] = true
	g.passes[bi].dependents[ai] = true
	g.compiled = false
}

// Succeed declares that a must run after b; equivalent to
// Precede(b, a).
func (g *Graph) Succeed(a, b Pass) { g.Precede(b, a) }

// Compile topologically sorts the passes (Kahn's algorithm),
// fails with ErrCycle if that is not possible, allocates a
// command list per pass on its queue, calls each pass's Compile
// hook, and computes each pass's Wait/Signal async flags.
func (g *Graph) Compile(dev rhi.Device) error {
	n := len(g.passes)
	inDegree := make([]int, n)
	// in-degree in the "dependents" relation: number of passes
	// that must run before this one.
	for i, ps := range g.passes {
		inDegree[i] = len(ps.dependents)
	}

	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]int, 0, n)
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)
		// visit successors in increasing index order for a stable,
		// insertion-order-tie-broken topological sort
		succs := make([]int, 0, len(g.passes[i].successors))
		for s := range g.passes[i].successors {
			succs = append(succs, s)
		}
		sortInts(succs)
		for _, s := range succs {
			inDegree[s]--
			if inDegree[s] == 0 {
				queue = append(queue, s)
			}
		}
	}
	if len(order) != n {
		return ErrCycle
	}
	g.order = order

	for _, i := range order {
		ps := g.passes[i]
		cl, err := dev.CreateCommandList(ps.pass.Queue())
		if err != nil {
			return fmt.Errorf("rendergraph: allocate command list for pass %q: %w", ps.pass.Name(), err)
		}
		ps.cl = cl
		if err := ps.pass.Compile(dev, g.cache); err != nil {
			return fmt.Errorf("rendergraph: compile pass %q: %w", ps.pass.Name(), err)
		}

		seen := make(map[rhi.QueueType]bool)
		for dep := range ps.dependents {
			q := g.passes[dep].pass.Queue()
			if q != ps.pass.Queue() && !seen[q] {
				seen[q] = true
				ps.wait = true
				ps.waitQueues = append(ps.waitQueues, q)
			}
		}
		for succ := range ps.successors {
			if g.passes[succ].pass.Queue() != ps.pass.Queue() {
				ps.signal = true
				break
			}
		}
	}
	g.compiled = true
	return nil
}

func sortInts(s []int) { sort.Ints(s) }
