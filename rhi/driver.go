// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rhi

import (
	"errors"
	"log"
	"sync"
)

// Driver loads and unloads a concrete Device implementation
// (one GPU back end, e.g. rhi/vk or rhi/null).
type Driver interface {
	// Open initializes the driver. Further calls with the same
	// receiver must return the same Device.
	Open() (Device, error)
	Name() string
	Close()
}

var (
	ErrNotInstalled  = errors.New("rhi: missing required library")
	ErrNoDevice      = errors.New("rhi: no suitable device found")
	ErrNoHostMemory  = errors.New("rhi: out of host memory")
	ErrNoDeviceMemory = errors.New("rhi: out of device memory")
	ErrFatal         = errors.New("rhi: fatal error")
)

var (
	mu      sync.Mutex
	drivers []Driver
)

// Register registers drv, replacing any previously registered
// driver of the same name. Driver packages call this exactly
// once from an init function.
func Register(drv Driver) {
	mu.Lock()
	defer mu.Unlock()
	for i := range drivers {
		if drivers[i].Name() == drv.Name() {
			drivers[i] = drv
			log.Printf("[!] rhi driver %q replaced", drv.Name())
			return
		}
	}
	drivers = append(drivers, drv)
	log.Printf("rhi driver %q registered", drv.Name())
}

// Drivers returns every registered Driver.
func Drivers() []Driver {
	mu.Lock()
	defer mu.Unlock()
	out := make([]Driver, len(drivers))
	copy(out, drivers)
	return out
}
