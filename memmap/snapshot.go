// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package memmap

import (
	"errors"
	"fmt"

	"github.com/usbarmory/go-handoff/kernel"
	"github.com/usbarmory/go-handoff/uefi"
)

// MaxExitAttempts is the number of ExitBootServices() calls attempted with a
// freshly queried memory map.
const MaxExitAttempts = 4

// ErrStaleMap is returned when the memory map keeps changing between its
// query and ExitBootServices().
var ErrStaleMap = errors.New("memory map changed during ExitBootServices")

// Usable returns whether the argument memory type can be used by the kernel as
// free memory once EFI Boot Services are terminated.
func Usable(t uint32) bool {
	switch t {
	case uefi.EfiConventionalMemory, uefi.EfiBootServicesCode, uefi.EfiBootServicesData:
		return true
	default:
		return false
	}
}

// Filter copies all usable descriptors of the argument memory map into a
// newly allocated kernel memory map.
func Filter(m *uefi.MemoryMap) *kernel.MemoryMap {
	regions := make([]kernel.MemoryRegion, 0, len(m.Descriptors))

	for _, d := range m.Descriptors {
		if !Usable(d.Type) {
			continue
		}

		regions = append(regions, kernel.MemoryRegion{
			Type:          d.Type,
			PhysicalStart: d.PhysicalStart,
			VirtualStart:  d.VirtualStart,
			NumberOfPages: d.NumberOfPages,
			Attribute:     d.Attribute,
		})
	}

	return kernel.NewMemoryMap(regions)
}

// Snapshot terminates EFI Boot Services and returns the memory map the kernel
// takes ownership of.
//
// The memory map is queried right before each ExitBootServices() attempt, a
// stale map key (EFI_INVALID_PARAMETER) results in a new attempt, up to
// [MaxExitAttempts]. Nothing but memory map queries is performed between
// attempts, as no other service is available after a failed one.
func Snapshot(fw Services) (mm *kernel.MemoryMap, err error) {
	var m *uefi.MemoryMap

	for i := 0; i < MaxExitAttempts; i++ {
		if m, err = fw.GetMemoryMap(); err != nil {
			return nil, fmt.Errorf("could not get memory map, %w", err)
		}

		err = fw.ExitBootServices(m)

		switch {
		case err == nil:
			return Filter(m), nil
		case errors.Is(err, uefi.Status(uefi.EFI_INVALID_PARAMETER)):
			continue
		default:
			return nil, fmt.Errorf("could not exit boot services, %w", err)
		}
	}

	return nil, fmt.Errorf("%w (%d attempts)", ErrStaleMap, MaxExitAttempts)
}
