// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rhi

import (
	"fmt"

	"github.com/nyxgfx/nyx/internal/bitm"
)

// DescriptorKind selects which of the device's descriptor
// heap pairs a range is allocated from.
type DescriptorKind int

const (
	DescriptorResource DescriptorKind = iota // SRV/UAV/CBV
	DescriptorSampler
	descriptorKindCount
)

// descriptorHeap is one CPU-only/shader-visible heap pair: a
// free-list over the CPU-only heap (the only one with spare
// capacity tracking) mirrored, for its allocated prefix, into
// a shader-visible heap of the same size.
type descriptorHeap struct {
	free     bitm.Bitm[uint64]
	capacity int
	visible  int // number of contiguous descriptors mirrored into the shader-visible heap, starting at 0
}

func (h *descriptorHeap) ensureCapacity(n int) {
	for h.free.Rem() < n {
		h.free.Grow(1)
		h.capacity = h.free.Len()
	}
}

// alloc reserves a contiguous range of n descriptors in the
// CPU-only heap and returns its first index.
func (h *descriptorHeap) alloc(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("rhi: invalid descriptor range size %d", n)
	}
	h.ensureCapacity(n)
	idx, ok := h.free.SearchRange(n)
	if !ok {
		return 0, fmt.Errorf("rhi: descriptor heap exhausted (cap %d, want %d)", h.capacity, n)
	}
	for i := idx; i < idx+n; i++ {
		h.free.Set(i)
	}
	return idx, nil
}

func (h *descriptorHeap) release(first, n int) {
	for i := first; i < first+n; i++ {
		h.free.Unset(i)
	}
}

// DescriptorManager owns the device's two descriptor heap
// pairs (resource and sampler). CopyToShaderVisible is the
// explicit sync point that mirrors a CPU-heap range into the
// shader-visible heap of the same kind.
type DescriptorManager struct {
	heaps [descriptorKindCount]descriptorHeap

	// copy is invoked by CopyToShaderVisible to perform the
	// backend-specific descriptor copy; nil is valid for
	// backends (such as rhi/null) with no real descriptor
	// memory to mirror.
	copy func(kind DescriptorKind, first, n int)
}

// NewDescriptorManager creates a manager whose CopyToShaderVisible
// calls copyFn (may be nil).
func NewDescriptorManager(copyFn func(kind DescriptorKind, first, n int)) *DescriptorManager {
	return &DescriptorManager{copy: copyFn}
}

// Alloc reserves a contiguous descriptor range of kind and
// returns its first index in the CPU-only heap.
func (m *DescriptorManager) Alloc(kind DescriptorKind, n int) (int, error) {
	return m.heaps[kind].alloc(n)
}

// Free releases a previously allocated range back to kind's
// free list.
func (m *DescriptorManager) Free(kind DescriptorKind, first, n int) {
	m.heaps[kind].release(first, n)
}

// CopyToShaderVisible mirrors [first, first+n) of the CPU-only
// heap of kind into the shader-visible heap, growing the
// mirrored prefix if the range extends past what is currently
// mirrored. It is the explicit sync point named in the device
// and resources design: backends must call it (or rely on a
// caller to) before binding newly written descriptors.
func (m *DescriptorManager) CopyToShaderVisible(kind DescriptorKind, first, n int) {
	h := &m.heaps[kind]
	if end := first + n; end > h.visible {
		h.visible = end
	}
	if m.copy != nil {
		m.copy(kind, first, n)
	}
}
