// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
)

// EFI Boot Services offset for ExitBootServices
const exitBootServices = 0xe8

// ErrExited is returned by Boot Services invoked after a successful
// ExitBootServices().
var ErrExited = errors.New("EFI Boot Services unavailable")

// ExitBootServices calls EFI_BOOT_SERVICES.ExitBootServices() with the key of
// the argument memory map.
//
// A stale key results in an EFI_INVALID_PARAMETER error, in which case only
// GetMemoryMap() and ExitBootServices() can be called again.
func (s *BootServices) ExitBootServices(memoryMap *MemoryMap) (err error) {
	if s.exited {
		return ErrExited
	}

	if memoryMap == nil {
		return errors.New("invalid memory map")
	}

	status := callService(s.base+exitBootServices,
		[]uint64{
			s.imageHandle,
			memoryMap.MapKey,
		},
	)

	if err = parseStatus(status); err != nil {
		return
	}

	s.exited = true

	return
}

// Exited returns whether Boot Services have been terminated.
func (s *BootServices) Exited() bool {
	return s.exited
}
