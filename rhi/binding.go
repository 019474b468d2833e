// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rhi

import "fmt"

// SlotKind is the resource kind a binding-layout slot exposes
// to shaders.
type SlotKind int

const (
	SlotSRV SlotKind = iota
	SlotUAV
	SlotCBV
	SlotSampler
	SlotPushConstants
	SlotVolatileConstantBuffer
)

func (k SlotKind) isDescriptorTableKind() bool {
	return k == SlotSRV || k == SlotUAV || k == SlotCBV
}

// Slot is one entry of a BindingLayoutDesc's slot list, in the
// order the user declared it.
type Slot struct {
	Kind SlotKind
	Size int // PushConstants: byte size; otherwise unused
}

// BindingLayoutDesc is the user-declared, ordered slot list a
// BindingLayout is compiled from.
type BindingLayoutDesc struct {
	Slots []Slot
}

// RootParamKind distinguishes the three kinds of root
// parameter a compiled layout may contain.
type RootParamKind int

const (
	RootParamDescriptorTable RootParamKind = iota
	RootParamPushConstants
	RootParamCBV
)

// RootParam is one compiled root parameter: either a
// descriptor-table range (resource or sampler), a 32-bit
// push-constants block, or a volatile root CBV.
type RootParam struct {
	Kind       RootParamKind
	TableKind  SlotKind // valid when Kind == RootParamDescriptorTable
	FirstSlot  int
	SlotCount  int
	ConstantDW int // valid when Kind == RootParamPushConstants: size in 32-bit words
}

// BindingLayout is the compiled, D3D12-root-signature-shaped
// form of a BindingLayoutDesc: each contiguous run of slots of
// one kind (SRV, UAV or CBV) becomes one descriptor-table
// range, and a change of kind starts a new range; sampler
// slots form their own table range; at most one PushConstants
// slot becomes a 32-bit-constants root parameter; a
// VolatileConstantBuffer slot becomes a root CBV parameter.
type BindingLayout struct {
	Resource

	PushConstantSize       int
	SRVRootParamStartIndex int
	SamplerRootParamStartIndex int
	RootParameters          []RootParam
}

// CompileBindingLayout walks desc's slot list and produces its
// root-signature-like form, per the rules documented on
// BindingLayout.
func CompileBindingLayout(desc BindingLayoutDesc) (*BindingLayout, error) {
	l := &BindingLayout{SRVRootParamStartIndex: -1, SamplerRootParamStartIndex: -1}
	havePushConstants := false

	i := 0
	for i < len(desc.Slots) {
		s := desc.Slots[i]
		switch {
		case s.Kind.isDescriptorTableKind():
			kind := s.Kind
			j := i
			for j < len(desc.Slots) && desc.Slots[j].Kind == kind {
				j++
			}
			if l.SRVRootParamStartIndex < 0 {
				l.SRVRootParamStartIndex = len(l.RootParameters)
			}
			l.RootParameters = append(l.RootParameters, RootParam{
				Kind: RootParamDescriptorTable, TableKind: kind,
				FirstSlot: i, SlotCount: j - i,
			})
			i = j

		case s.Kind == SlotSampler:
			j := i
			for j < len(desc.Slots) && desc.Slots[j].Kind == SlotSampler {
				j++
			}
			if l.SamplerRootParamStartIndex < 0 {
				l.SamplerRootParamStartIndex = len(l.RootParameters)
			}
			l.RootParameters = append(l.RootParameters, RootParam{
				Kind: RootParamDescriptorTable, TableKind: SlotSampler,
				FirstSlot: i, SlotCount: j - i,
			})
			i = j

		case s.Kind == SlotPushConstants:
			if havePushConstants {
				return nil, fmt.Errorf("rhi: binding layout declares more than one PushConstants slot")
			}
			havePushConstants = true
			l.PushConstantSize = s.Size
			l.RootParameters = append(l.RootParameters, RootParam{
				Kind: RootParamPushConstants, ConstantDW: (s.Size + 3) / 4,
			})
			i++

		case s.Kind == SlotVolatileConstantBuffer:
			l.RootParameters = append(l.RootParameters, RootParam{Kind: RootParamCBV})
			i++

		default:
			return nil, fmt.Errorf("rhi: unknown binding slot kind %d", s.Kind)
		}
	}

	InitResource(&l.Resource, nil, func() {})
	return l, nil
}

// BindlessLayoutDesc describes a single unbounded descriptor
// table range.
type BindlessLayoutDesc struct {
	Kind      SlotKind
	FirstSlot int
}

// BindlessLayout is a compiled bindless layout: one
// volatile-flagged, unbounded-size descriptor-table range.
type BindlessLayout struct {
	Resource
	Kind      SlotKind
	FirstSlot int
}

// CompileBindlessLayout builds a BindlessLayout from desc.
func CompileBindlessLayout(desc BindlessLayoutDesc) *BindlessLayout {
	l := &BindlessLayout{Kind: desc.Kind, FirstSlot: desc.FirstSlot}
	InitResource(&l.Resource, nil, func() {})
	return l
}

// BindingItem is one user-supplied resource bound to a
// BindingLayout slot at BindingSet construction.
type BindingItem struct {
	Slot     int
	Buffer   Buffer
	Texture  Texture
	Sampler  Sampler
}

// BindingSet holds fixed ranges of descriptors in the device's
// CPU-only heaps (one contiguous range per descriptor-table
// root parameter of its layout, so a layout with two SRV runs
// gets two resource ranges), mirrored into the shader-visible
// heaps. It keeps its ranges for its whole lifetime and
// releases them on destruction.
type BindingSet struct {
	Resource
	layout     *BindingLayout
	resourceFirst, resourceCount int
	samplerFirst, samplerCount   int
	mgr *DescriptorManager
}

// writeFn is supplied by the backend to actually write a
// descriptor at a CPU-heap index for one binding item.
type writeFn func(kind SlotKind, heapIndex int, item BindingItem)

// NewBindingSet allocates a contiguous descriptor range per
// descriptor-table root parameter of layout, writes every slot
// from items (via write), then copies each range into its
// shader-visible heap.
func NewBindingSet(mgr *DescriptorManager, layout *BindingLayout, items []BindingItem, write writeFn) (*BindingSet, error) {
	s := &BindingSet{layout: layout, mgr: mgr}
	type span struct {
		kind     DescriptorKind
		first, n int
	}
	var spans []span

	byItem := make(map[int]BindingItem, len(items))
	for _, it := range items {
		byItem[it.Slot] = it
	}

	for _, p := range layout.RootParameters {
		if p.Kind != RootParamDescriptorTable {
			continue
		}
		first, err := mgr.Alloc(kindToHeap(p.TableKind), p.SlotCount)
		if err != nil {
			return nil, err
		}
		spans = append(spans, span{kindToHeap(p.TableKind), first, p.SlotCount})
		if p.TableKind == SlotSampler {
			s.samplerFirst, s.samplerCount = first, p.SlotCount
		} else {
			s.resourceFirst, s.resourceCount = first, p.SlotCount
		}
		for slot := p.FirstSlot; slot < p.FirstSlot+p.SlotCount; slot++ {
			item, ok := byItem[slot]
			if !ok {
				return nil, fmt.Errorf("rhi: binding set missing item for slot %d", slot)
			}
			heapIndex := first + (slot - p.FirstSlot)
			if write != nil {
				write(p.TableKind, heapIndex, item)
			}
		}
	}
	for _, sp := range spans {
		mgr.CopyToShaderVisible(sp.kind, sp.first, sp.n)
	}

	InitResource(&s.Resource, nil, func() {
		for _, sp := range spans {
			mgr.Free(sp.kind, sp.first, sp.n)
		}
	})
	return s, nil
}

func kindToHeap(k SlotKind) DescriptorKind {
	if k == SlotSampler {
		return DescriptorSampler
	}
	return DescriptorResource
}

// BindlessSet keeps a capacity and a first-descriptor-index
// into the CPU-only heap selected by its layout's kind.
type BindlessSet struct {
	Resource
	layout   *BindlessLayout
	mgr      *DescriptorManager
	first    int
	capacity int
	write    writeFn
}

// NewBindlessSet allocates capacity descriptors for layout.
func NewBindlessSet(mgr *DescriptorManager, layout *BindlessLayout, capacity int, write writeFn) (*BindlessSet, error) {
	s := &BindlessSet{layout: layout, mgr: mgr, capacity: capacity, write: write}
	if capacity > 0 {
		first, err := mgr.Alloc(kindToHeap(layout.Kind), capacity)
		if err != nil {
			return nil, err
		}
		s.first = first
		mgr.CopyToShaderVisible(kindToHeap(layout.Kind), first, capacity)
	}
	InitResource(&s.Resource, nil, func() {
		if s.capacity > 0 {
			mgr.Free(kindToHeap(layout.Kind), s.first, s.capacity)
		}
	})
	return s, nil
}

// SetSlot writes item at offset FirstSlot+slot and re-copies
// that single descriptor into the shader-visible heap.
func (s *BindlessSet) SetSlot(slot int, item BindingItem) error {
	if slot < 0 || slot >= s.capacity {
		return fmt.Errorf("rhi: bindless set slot %d out of range [0,%d)", slot, s.capacity)
	}
	heapIndex := s.first + slot
	if s.write != nil {
		s.write(s.layout.Kind, heapIndex, item)
	}
	s.mgr.CopyToShaderVisible(kindToHeap(s.layout.Kind), heapIndex, 1)
	return nil
}

// Resize changes the set's capacity. Shrinking releases the
// tail of the current range; growing allocates a new range,
// copying the old range into it first when keepContents is
// true (the backend performs the copy via copyRange).
func (s *BindlessSet) Resize(newCapacity int, keepContents bool, copyRange func(oldFirst, newFirst, n int)) error {
	if newCapacity == s.capacity {
		return nil
	}
	kind := kindToHeap(s.layout.Kind)
	if newCapacity < s.capacity {
		if newCapacity > 0 {
			s.mgr.Free(kind, s.first+newCapacity, s.capacity-newCapacity)
		} else {
			s.mgr.Free(kind, s.first, s.capacity)
		}
		s.capacity = newCapacity
		return nil
	}

	newFirst, err := s.mgr.Alloc(kind, newCapacity)
	if err != nil {
		return err
	}
	if keepContents && s.capacity > 0 && copyRange != nil {
		copyRange(s.first, newFirst, s.capacity)
	}
	if s.capacity > 0 {
		s.mgr.Free(kind, s.first, s.capacity)
	}
	s.mgr.CopyToShaderVisible(kind, newFirst, newCapacity)
	s.first, s.capacity = newFirst, newCapacity
	return nil
}

// Capacity reports the set's current slot count.
func (s *BindlessSet) Capacity() int { return s.capacity }

// FirstIndex reports the set's first descriptor index in the
// CPU-only heap, for tests asserting slot-content stability
// across Resize.
func (s *BindlessSet) FirstIndex() int { return s.first }
