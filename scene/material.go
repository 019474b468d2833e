// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package scene

import (
	"fmt"

	"github.com/nyxgfx/nyx/rhi"
)

// TexRef identifies a texture/sampler pair and the UV set a
// submesh's texture coordinates must be drawn from to sample
// it.
type TexRef struct {
	Texture rhi.Texture
	Sampler rhi.Sampler
	UVSet   int
}

// UV set indices, matching the vertex layout's texcoord
// attributes.
const (
	UVSet0 = iota
	UVSet1
)

func (r *TexRef) validate(optional bool) error {
	if r.Texture == nil {
		if optional {
			return nil
		}
		return fmt.Errorf("scene: nil TexRef.Texture")
	}
	if r.Sampler == nil {
		return fmt.Errorf("scene: nil TexRef.Sampler")
	}
	switch r.UVSet {
	case UVSet0, UVSet1:
	default:
		return fmt.Errorf("scene: undefined UV set %d", r.UVSet)
	}
	return nil
}

// BaseColor is a material's base color.
type BaseColor struct {
	TexRef
	Factor [4]float32
}

func (p *BaseColor) validate() error {
	if err := p.TexRef.validate(true); err != nil {
		return err
	}
	for _, x := range p.Factor {
		if x < 0 || x > 1 {
			return fmt.Errorf("scene: BaseColor.Factor outside [0,1]")
		}
	}
	return nil
}

// MetalRough is a material's metallic-roughness map.
type MetalRough struct {
	TexRef
	Metalness float32
	Roughness float32
}

func (p *MetalRough) validate() error {
	if err := p.TexRef.validate(true); err != nil {
		return err
	}
	if p.Metalness < 0 || p.Metalness > 1 {
		return fmt.Errorf("scene: MetalRough.Metalness outside [0,1]")
	}
	if p.Roughness < 0 || p.Roughness > 1 {
		return fmt.Errorf("scene: MetalRough.Roughness outside [0,1]")
	}
	return nil
}

// Normal is a material's normal map.
type Normal struct {
	TexRef
	Scale float32
}

func (p *Normal) validate() error {
	if err := p.TexRef.validate(true); err != nil {
		return err
	}
	if p.Scale < 0 {
		return fmt.Errorf("scene: Normal.Scale less than 0")
	}
	return nil
}

// Occlusion is a material's occlusion map.
type Occlusion struct {
	TexRef
	Strength float32
}

func (p *Occlusion) validate() error {
	if err := p.TexRef.validate(true); err != nil {
		return err
	}
	if p.Strength < 0 || p.Strength > 1 {
		return fmt.Errorf("scene: Occlusion.Strength outside [0,1]")
	}
	return nil
}

// Emissive is a material's emissive map.
type Emissive struct {
	TexRef
	Factor [3]float32
}

func (p *Emissive) validate() error {
	if err := p.TexRef.validate(true); err != nil {
		return err
	}
	for _, x := range p.Factor {
		if x < 0 || x > 1 {
			return fmt.Errorf("scene: Emissive.Factor outside [0,1]")
		}
	}
	return nil
}

// Alpha modes.
const (
	AlphaOpaque = iota
	AlphaBlend
	AlphaMask
)

func validateAlpha(mode int) error {
	switch mode {
	case AlphaOpaque, AlphaBlend, AlphaMask:
		return nil
	default:
		return fmt.Errorf("scene: undefined alpha mode %d", mode)
	}
}

// PBR is the default material model: a metallic-roughness
// workflow with normal, occlusion and emissive maps.
type PBR struct {
	BaseColor   BaseColor
	MetalRough  MetalRough
	Normal      Normal
	Occlusion   Occlusion
	Emissive    Emissive
	AlphaMode   int
	AlphaCutoff float32
	DoubleSided bool
}

func (p *PBR) validate() error {
	if err := p.BaseColor.validate(); err != nil {
		return err
	}
	if err := p.MetalRough.validate(); err != nil {
		return err
	}
	if err := p.Normal.validate(); err != nil {
		return err
	}
	if err := p.Occlusion.validate(); err != nil {
		return err
	}
	if err := p.Emissive.validate(); err != nil {
		return err
	}
	return validateAlpha(p.AlphaMode)
}

// Unlit is the unlit material model: base color only.
type Unlit struct {
	BaseColor   BaseColor
	AlphaMode   int
	AlphaCutoff float32
	DoubleSided bool
}

func (p *Unlit) validate() error {
	if err := p.BaseColor.validate(); err != nil {
		return err
	}
	return validateAlpha(p.AlphaMode)
}

// Material is the ECS component a Submesh's MaterialIndex
// refers into: either a *PBR or an *Unlit model.
type Material struct {
	prop any
}

// NewMaterial creates a Material using the PBR model.
func NewMaterial(prop PBR) (*Material, error) {
	if err := prop.validate(); err != nil {
		return nil, err
	}
	p := prop
	return &Material{&p}, nil
}

// NewUnlitMaterial creates a Material using the unlit model.
func NewUnlitMaterial(prop Unlit) (*Material, error) {
	if err := prop.validate(); err != nil {
		return nil, err
	}
	p := prop
	return &Material{&p}, nil
}

// PBR reports the material's PBR properties and whether it
// uses the PBR model.
func (m *Material) PBR() (*PBR, bool) {
	p, ok := m.prop.(*PBR)
	return p, ok
}

// Unlit reports the material's unlit properties and whether it
// uses the unlit model.
func (m *Material) Unlit() (*Unlit, bool) {
	p, ok := m.prop.(*Unlit)
	return p, ok
}
