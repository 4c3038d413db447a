// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package memmap implements the EFI memory map diagnostics dump and the
// memory map snapshot handed over to the kernel when exiting EFI Boot
// Services.
package memmap

import (
	"io"

	"github.com/usbarmory/go-handoff/uefi"
)

// Firmware represents the EFI Boot Services required to query the memory map.
type Firmware interface {
	GetMemoryMap() (*uefi.MemoryMap, error)
}

// Services represents the EFI Boot Services required to terminate them.
type Services interface {
	Firmware
	ExitBootServices(memoryMap *uefi.MemoryMap) error
}

// Volume represents a writable file system.
type Volume interface {
	Create(name string) (io.WriteCloser, error)
}
