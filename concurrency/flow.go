// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package concurrency

import (
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// errTaskFailed is returned internally by a Run waiter to
// signal that its task's fn returned false.
var errTaskFailed = errors.New("concurrency: task failed")

// Task identifies a node previously added to a Flow via
// Emplace. It is a lightweight handle: all graph state lives
// in the owning Flow.
type Task int

// taskNode is one node of the task DAG.
type taskNode struct {
	fn           func() bool
	successors   []Task
	dependencies int32 // total in-degree, fixed once Run starts
	unfinished   atomic.Int32
}

// Flow is a directed acyclic graph of task nodes.
// Emplace appends nodes; Precede/Succeed declare edges
// between previously emplaced nodes. A Flow value is ready
// to use once its zero value is addressed (no constructor
// is required).
type Flow struct {
	nodes []*taskNode
}

// Emplace appends a new task running fn and returns its
// handle.
func (f *Flow) Emplace(fn func() bool) Task {
	f.nodes = append(f.nodes, &taskNode{fn: fn})
	return Task(len(f.nodes) - 1)
}

// Precede declares that t must run before every task in
// succ.
func (f *Flow) Precede(t Task, succ ...Task) {
	n := f.nodes[t]
	for _, s := range succ {
		n.successors = append(n.successors, s)
		f.nodes[s].dependencies++
	}
}

// Succeed declares that t must run after every task in
// pred; it is equivalent to calling Precede(p, t) for each
// p in pred.
func (f *Flow) Succeed(t Task, pred ...Task) {
	for _, p := range pred {
		f.Precede(p, t)
	}
}

// Run submits every task in f to pool, respecting the
// dependency edges declared via Precede/Succeed, and blocks
// until either every task has completed or some task
// returned false.
// It returns false if any task returned false; tasks already
// in flight when that happens are allowed to drain, but a
// task that starts afterwards returns false without running
// its function or releasing its successors.
func Run(pool *Pool, f *Flow) bool {
	n := len(f.nodes)
	if n == 0 {
		return true
	}
	for _, nd := range f.nodes {
		nd.unfinished.Store(nd.dependencies)
	}

	failed := make(chan struct{})
	var failedOnce atomic.Bool
	var g errgroup.Group

	// A node is submitted at most once: sources below, the rest
	// when their unfinished count reaches zero. After a failure,
	// a node that starts returns at once without decrementing
	// its successors' counts, so nodes below it are never
	// submitted. g.Go waits on each submission's Pool handle,
	// so g.Wait blocks until every submitted node has drained.
	var submit func(t Task)
	submit = func(t Task) {
		node := f.nodes[t]
		h, _ := pool.Submit(func() bool {
			select {
			case <-failed:
				return false
			default:
			}
			ok := node.fn()
			if !ok && failedOnce.CompareAndSwap(false, true) {
				close(failed)
			}
			for _, s := range node.successors {
				sn := f.nodes[s]
				if sn.unfinished.Add(-1) == 0 {
					submit(s)
				}
			}
			return ok
		})
		g.Go(func() error {
			if !pool.ThreadSuccess(h) {
				return errTaskFailed
			}
			return nil
		})
	}

	for t, nd := range f.nodes {
		if nd.dependencies == 0 {
			submit(Task(t))
		}
	}
	g.Wait()
	return !failedOnce.Load()
}
