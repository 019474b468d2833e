// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package concurrency

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// errChunkFailed is returned internally by a ParallelFor/
// ParallelFor2D waiter to signal its chunk's fn returned
// false; errgroup.Group.Wait reports it as a non-nil error,
// which is all these two callers need to know.
var errChunkFailed = errors.New("concurrency: chunk failed")

// Handle identifies a job submitted to a Pool.
// Handles are monotonically increasing within a given Pool.
type Handle uint64

// job is the unit of work pushed onto a Pool's queue.
type job struct {
	handle Handle
	fn     func() bool
}

// jobResult tracks the outcome of a submitted job.
type jobResult struct {
	done chan struct{}
	ok   bool
}

// Pool is a fixed-size goroutine pool that executes jobs
// pulled from a single Queue.
// A job is a func() bool; returning false marks the job
// (and the pool's overall Wait/WaitIdle outcome) as failed,
// but never stops other jobs from running or panics the
// pool.
type Pool struct {
	queue   *Queue[job]
	wg      sync.WaitGroup
	mu      sync.Mutex
	results map[Handle]*jobResult
	next    atomic.Uint64
	failed  atomic.Bool
	closed  atomic.Bool
	workers int
}

// defaultWorkerFraction is the fraction of GOMAXPROCS used
// by New when n <= 0.
const defaultWorkerFraction = 1

// New creates a Pool with n workers.
// If n <= 0, it defaults to runtime.GOMAXPROCS(0).
func New(n int) *Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0) * defaultWorkerFraction
		if n < 1 {
			n = 1
		}
	}
	p := &Pool{
		queue:   NewQueue[job](),
		results: make(map[Handle]*jobResult),
		workers: n,
	}
	for i := 0; i < n; i++ {
		go p.worker()
	}
	return p
}

// worker runs until the pool is closed and the queue drains.
func (p *Pool) worker() {
	for {
		j, ok := p.queue.PopOrClosed()
		if !ok {
			return
		}
		ok = j.fn()
		p.mu.Lock()
		res := p.results[j.handle]
		p.mu.Unlock()
		res.ok = ok
		if !ok {
			p.failed.Store(true)
		}
		close(res.done)
		p.wg.Done()
	}
}

// Submit enqueues fn for execution and returns a handle
// that identifies it.
// It returns false (with a zero Handle) if the pool has
// been closed.
func (p *Pool) Submit(fn func() bool) (Handle, bool) {
	if p.closed.Load() {
		return 0, false
	}
	h := Handle(p.next.Add(1))
	p.mu.Lock()
	p.results[h] = &jobResult{done: make(chan struct{})}
	p.mu.Unlock()
	p.wg.Add(1)
	p.queue.Push(job{handle: h, fn: fn})
	return h, true
}

// ThreadFinished reports whether the job identified by h
// has completed, without blocking.
func (p *Pool) ThreadFinished(h Handle) bool {
	p.mu.Lock()
	res, ok := p.results[h]
	p.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-res.done:
		return true
	default:
		return false
	}
}

// ThreadSuccess blocks until the job identified by h
// completes and returns the boolean it returned.
func (p *Pool) ThreadSuccess(h Handle) bool {
	p.mu.Lock()
	res, ok := p.results[h]
	p.mu.Unlock()
	if !ok {
		return false
	}
	<-res.done
	return res.ok
}

// WaitIdle blocks until every job submitted so far has
// completed.
// It returns true iff every job returned true; a single
// false result is latched for the lifetime of the Pool, so
// a prior failure keeps WaitIdle returning false even if
// later jobs all succeed.
func (p *Pool) WaitIdle() bool {
	p.wg.Wait()
	return !p.failed.Load()
}

// Close stops accepting new jobs and waits for queued
// jobs to drain before returning.
// It is safe to call Close multiple times.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.wg.Wait()
	p.queue.Close()
}

// Workers returns the number of worker goroutines backing
// the pool.
func (p *Pool) Workers() int { return p.workers }

// ParallelFor splits [0, count) into chunks of at most
// chunk indices each, runs fn(start, end) for every chunk
// concurrently on the pool, and blocks until all chunks
// complete.
// It returns true iff every chunk's fn returned true.
func (p *Pool) ParallelFor(fn func(start, end int) bool, count, chunk int) bool {
	if count <= 0 {
		return true
	}
	if chunk <= 0 {
		chunk = count
	}
	var g errgroup.Group
	for start := 0; start < count; start += chunk {
		end := min(start+chunk, count)
		s, e := start, end
		h, ok := p.Submit(func() bool { return fn(s, e) })
		if !ok {
			return false
		}
		g.Go(func() error {
			if !p.ThreadSuccess(h) {
				return errChunkFailed
			}
			return nil
		})
	}
	return g.Wait() == nil
}

// ParallelFor2D partitions an nx-by-ny index space into one
// job per row (fixed y, all x in [0, nx)), runs fn(x, y) for
// every cell, and blocks until all rows complete.
// It returns true iff every cell's fn returned true.
func (p *Pool) ParallelFor2D(fn func(x, y int) bool, nx, ny int) bool {
	if nx <= 0 || ny <= 0 {
		return true
	}
	var g errgroup.Group
	for y := 0; y < ny; y++ {
		yy := y
		h, ok := p.Submit(func() bool {
			for x := 0; x < nx; x++ {
				if !fn(x, yy) {
					return false
				}
			}
			return true
		})
		if !ok {
			return false
		}
		g.Go(func() error {
			if !p.ThreadSuccess(h) {
				return errChunkFailed
			}
			return nil
		})
	}
	return g.Wait() == nil
}
