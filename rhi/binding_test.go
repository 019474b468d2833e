// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rhi

import "testing"

func TestCompileBindingLayoutMergesContiguousRuns(t *testing.T) {
	l, err := CompileBindingLayout(BindingLayoutDesc{Slots: []Slot{
		{Kind: SlotSRV}, {Kind: SlotSRV}, {Kind: SlotCBV},
		{Kind: SlotSampler}, {Kind: SlotSampler},
		{Kind: SlotPushConstants, Size: 16},
	}})
	if err != nil {
		t.Fatalf("CompileBindingLayout: %v", err)
	}
	// Expect 4 root params: [SRV x2][CBV x1][Sampler x2][PushConstants]
	if len(l.RootParameters) != 4 {
		t.Fatalf("RootParameters count: have %d want 4", len(l.RootParameters))
	}
	if l.RootParameters[0].TableKind != SlotSRV || l.RootParameters[0].SlotCount != 2 {
		t.Fatalf("root param 0: have %+v want SRV x2", l.RootParameters[0])
	}
	if l.RootParameters[1].TableKind != SlotCBV || l.RootParameters[1].SlotCount != 1 {
		t.Fatalf("root param 1: have %+v want CBV x1", l.RootParameters[1])
	}
	if l.RootParameters[2].TableKind != SlotSampler || l.RootParameters[2].SlotCount != 2 {
		t.Fatalf("root param 2: have %+v want Sampler x2", l.RootParameters[2])
	}
	if l.RootParameters[3].Kind != RootParamPushConstants || l.PushConstantSize != 16 {
		t.Fatalf("root param 3: have %+v, PushConstantSize=%d want PushConstants/16", l.RootParameters[3], l.PushConstantSize)
	}
	if l.SRVRootParamStartIndex != 0 {
		t.Fatalf("SRVRootParamStartIndex: have %d want 0", l.SRVRootParamStartIndex)
	}
	if l.SamplerRootParamStartIndex != 2 {
		t.Fatalf("SamplerRootParamStartIndex: have %d want 2", l.SamplerRootParamStartIndex)
	}
}

func TestCompileBindingLayoutRejectsDuplicatePushConstants(t *testing.T) {
	_, err := CompileBindingLayout(BindingLayoutDesc{Slots: []Slot{
		{Kind: SlotPushConstants, Size: 4},
		{Kind: SlotPushConstants, Size: 4},
	}})
	if err == nil {
		t.Fatalf("CompileBindingLayout (duplicate push constants): have nil error want error")
	}
}

func TestBindingSetLifetimeReleasesRange(t *testing.T) {
	mgr := NewDescriptorManager(nil)
	layout, _ := CompileBindingLayout(BindingLayoutDesc{Slots: []Slot{{Kind: SlotSRV}, {Kind: SlotSRV}}})
	// The heap grows on first use; grow it up front so the
	// free count below reflects only this set's allocation.
	mgr.heaps[DescriptorResource].ensureCapacity(2)
	before := mgr.heaps[DescriptorResource].free.Rem()

	set, err := NewBindingSet(mgr, layout, []BindingItem{{Slot: 0}, {Slot: 1}}, nil)
	if err != nil {
		t.Fatalf("NewBindingSet: %v", err)
	}
	mid := mgr.heaps[DescriptorResource].free.Rem()
	if mid != before-2 {
		t.Fatalf("free descriptors after alloc: have %d want %d", mid, before-2)
	}

	set.Release()
	after := mgr.heaps[DescriptorResource].free.Rem()
	if after != before {
		t.Fatalf("free descriptors after release: have %d want %d", after, before)
	}
}

func TestBindlessResizeKeepsContents(t *testing.T) {
	mgr := NewDescriptorManager(nil)
	layout := CompileBindlessLayout(BindlessLayoutDesc{Kind: SlotSRV})

	written := make(map[int]int) // heapIndex -> item.Slot, simulating descriptor memory
	write := func(kind SlotKind, heapIndex int, item BindingItem) {
		written[heapIndex] = item.Slot
	}
	set, err := NewBindlessSet(mgr, layout, 4, write)
	if err != nil {
		t.Fatalf("NewBindlessSet: %v", err)
	}
	for i := 0; i < 4; i++ {
		set.SetSlot(i, BindingItem{Slot: 100 + i})
	}
	oldFirst := set.FirstIndex()

	err = set.Resize(8, true, func(oldFirst, newFirst, n int) {
		for i := 0; i < n; i++ {
			written[newFirst+i] = written[oldFirst+i]
		}
	})
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	newFirst := set.FirstIndex()
	for i := 0; i < 4; i++ {
		if written[newFirst+i] != 100+i {
			t.Fatalf("slot %d content after resize: have %v want %v", i, written[newFirst+i], 100+i)
		}
	}
	_ = oldFirst
}
