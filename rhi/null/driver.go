// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package null

import "github.com/nyxgfx/nyx/rhi"

type driver struct {
	dev rhi.Device
}

func (d *driver) Name() string { return "null" }

func (d *driver) Open() (rhi.Device, error) {
	if d.dev == nil {
		d.dev = New()
	}
	return d.dev, nil
}

func (d *driver) Close() { d.dev = nil }

func init() {
	rhi.Register(&driver{})
}
