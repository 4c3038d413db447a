// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package kernel

import (
	"errors"
	"fmt"
	"unsafe"
)

var (
	// ErrEntryRange is returned when an entry point lies outside the
	// loaded image.
	ErrEntryRange = errors.New("entry point outside of loaded image")

	// ErrReturned is returned when the kernel entry point returns control.
	ErrReturned = errors.New("kernel returned")
)

// handover holds the structures passed to the kernel, ownership is
// transferred to the kernel and they are never released.
var handover struct {
	fb *FrameBuffer
	mm *MemoryMap
}

// Entry represents the kernel entry point, it can only be obtained from
// [NewEntry] against the address range of a loaded image.
type Entry struct {
	addr uint64
}

// NewEntry returns the entry point at the argument address, which must lie
// within the loaded image range [start, end).
func NewEntry(addr uint64, start uint64, end uint64) (Entry, error) {
	if start >= end || addr < start || addr >= end {
		return Entry{}, fmt.Errorf("%w (%#x not in %#x-%#x)", ErrEntryRange, addr, start, end)
	}

	return Entry{addr: addr}, nil
}

// Address returns the entry point address.
func (e Entry) Address() uint64 {
	return e.addr
}

// Invoke transfers control to the kernel entry point, with interrupts
// disabled, passing the frame buffer and memory map descriptors.
//
// It must only be called once EFI Boot Services have been terminated and
// returns only if the kernel does, which is always an error.
func (e Entry) Invoke(fb *FrameBuffer, mm *MemoryMap) error {
	if e.addr == 0 {
		return ErrEntryRange
	}

	if fb == nil || mm == nil {
		return errors.New("invalid kernel arguments")
	}

	handover.fb = fb
	handover.mm = mm

	jump(e.addr, uint64(uintptr(unsafe.Pointer(fb))), uint64(uintptr(unsafe.Pointer(mm))))

	return ErrReturned
}

// Halt disables interrupts and idles the CPU forever.
func Halt() {
	halt()
}
