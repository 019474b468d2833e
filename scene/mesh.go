// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package scene

import (
	"fmt"
	"sync"

	"github.com/nyxgfx/nyx/internal/bitm"
	"github.com/nyxgfx/nyx/linear"
	"github.com/nyxgfx/nyx/rhi"
)

// span defines a buffer range in number of blocks.
type span struct{ start, end int }

// blockSize is the mesh buffer's span granularity, in bytes.
const blockSize = 512

func (s span) byteLen() int { return (s.end - s.start) * blockSize }

// Submesh is one drawable unit of a loaded model: a vertex/index
// range in the shared mesh buffer, the submesh's world matrix at
// load time, and the index of its Material in the owning Mesh.
type Submesh struct {
	VertexSpan   span
	VertexCount  int
	IndexSpan    span // zero value (start==end) when unindexed; indices are always uint32
	IndexCount   int
	WorldMatrix  linear.M4
	MaterialIndex int
}

// Mesh is the ECS component assigned on ComponentAssigned<Mesh>:
// the parsed, GPU-resident submeshes of one loaded model.
type Mesh struct {
	Submeshes []Submesh
}

// meshStorage manages vertex/index data for every loaded mesh in
// one shared, host-visible rhi.Buffer, using a bitmap free-list
// over fixed-size blocks exactly as the teacher's mesh buffer
// does, replacing its driver.Buffer/ctxt.GPU with the rhi.Device
// equivalents.
type meshStorage struct {
	sync.Mutex
	dev     rhi.Device
	buf     rhi.Buffer
	spanMap bitm.Bitm[uint32]
}

const spanMapNBit = 32

// newMeshStorage creates storage backed by an initial buffer of
// at least minBytes, rounded up to a multiple of blockSize*32.
func newMeshStorage(dev rhi.Device, minBytes int64) (*meshStorage, error) {
	s := &meshStorage{dev: dev}
	nplus := int((minBytes + int64(blockSize*spanMapNBit) - 1) / int64(blockSize*spanMapNBit))
	if nplus < 1 {
		nplus = 1
	}
	if err := s.grow(nplus); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *meshStorage) grow(nplus int) error {
	bcap := int64(s.spanMap.Len()+nplus*spanMapNBit) * blockSize
	buf, err := s.dev.CreateBuffer(rhi.BufferDesc{
		Size:        bcap,
		Usage:       rhi.UsageVertex | rhi.UsageIndex,
		HostVisible: true,
	})
	if err != nil {
		return fmt.Errorf("scene: grow mesh buffer: %w", err)
	}
	if s.buf != nil {
		copy(buf.Bytes(), s.buf.Bytes())
		s.buf.Release()
	}
	s.buf = buf
	s.spanMap.Grow(nplus)
	return nil
}

// store copies byteLen bytes from src into the shared buffer,
// growing it if no free span is large enough, and returns the
// span it was written to.
func (s *meshStorage) store(src []byte) (span, error) {
	s.Lock()
	defer s.Unlock()
	byteLen := len(src)
	nb := (byteLen + blockSize - 1) &^ (blockSize - 1)
	ns := nb / blockSize
	idx, ok := s.spanMap.SearchRange(ns)
	if !ok {
		nplus := (ns + spanMapNBit - 1) / spanMapNBit
		if err := s.grow(nplus); err != nil {
			return span{}, err
		}
		idx, ok = s.spanMap.SearchRange(ns)
		if !ok {
			return span{}, fmt.Errorf("scene: mesh buffer exhausted after growth")
		}
	}
	copy(s.buf.Bytes()[idx*blockSize:idx*blockSize+byteLen], src)
	for i := 0; i < ns; i++ {
		s.spanMap.Set(idx + i)
	}
	return span{idx, idx + ns}, nil
}

// free releases sp's blocks back to the free list. It does not
// shrink the underlying GPU buffer.
func (s *meshStorage) free(sp span) {
	if sp.start == sp.end {
		return
	}
	s.Lock()
	defer s.Unlock()
	for i := sp.start; i < sp.end; i++ {
		s.spanMap.Unset(i)
	}
}

// Buffer returns the shared vertex/index buffer backing every
// Submesh's spans.
func (s *meshStorage) Buffer() rhi.Buffer { return s.buf }
