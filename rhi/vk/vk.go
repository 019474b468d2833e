// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package vk implements rhi.Driver on top of the Vulkan
// driver.GPU, reusing its command buffer, descriptor and
// pipeline model as-is and adapting it to the rhi.Device/
// rhi.CommandList shapes.
package vk

import (
	"fmt"

	"github.com/nyxgfx/nyx/rhi/vk/internal/driver"
	_ "github.com/nyxgfx/nyx/rhi/vk/internal/driver/vk"
	"github.com/nyxgfx/nyx/rhi"
)

const driverName = "vulkan"

// rhiDriver locates the driver package's own "vulkan"-named
// Driver (registered by the blank-imported driver/vk package
// into driver's own registry) and wraps the GPU it opens in an
// rhi.Device.
type rhiDriver struct {
	drv driver.Driver
	dev *device
}

func (d *rhiDriver) Name() string { return driverName }

func (d *rhiDriver) Open() (rhi.Device, error) {
	if d.dev != nil {
		return d.dev, nil
	}
	if d.drv == nil {
		for _, c := range driver.Drivers() {
			if c.Name() == driverName {
				d.drv = c
				break
			}
		}
		if d.drv == nil {
			return nil, fmt.Errorf("rhi/vk: no %q driver registered", driverName)
		}
	}
	gpu, err := d.drv.Open()
	if err != nil {
		return nil, fmt.Errorf("rhi/vk: open driver: %w", err)
	}
	dev, err := newDevice(gpu)
	if err != nil {
		return nil, err
	}
	d.dev = dev
	return dev, nil
}

func (d *rhiDriver) Close() {
	if d.drv != nil {
		d.drv.Close()
	}
	d.dev = nil
}

func init() {
	rhi.Register(&rhiDriver{})
}
