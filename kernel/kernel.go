// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package kernel defines the data structures handed over to an operating
// system kernel and the only code path that transfers control to it.
//
// The kernel entry point is invoked with the System V AMD64 calling
// convention and two arguments:
//
//	entry(fb *FrameBuffer, mm *MemoryMap)
//
// Both structures, and the memory they reference, are owned by the kernel
// from that point on and are never reclaimed by the boot loader.
package kernel

import (
	"fmt"
	"unsafe"
)

// PixelFormat represents the frame buffer pixel channel ordering, each pixel
// is 32 bits wide with 8 bits per color and 8 reserved bits.
type PixelFormat uint32

const (
	// RGB represents a red, green, blue, reserved byte order.
	RGB PixelFormat = iota
	// BGR represents a blue, green, red, reserved byte order.
	BGR
)

func (f PixelFormat) String() string {
	switch f {
	case RGB:
		return "RGB"
	case BGR:
		return "BGR"
	default:
		return fmt.Sprintf("PixelFormat(%d)", uint32(f))
	}
}

// BytesPerPixel represents the frame buffer pixel size.
const BytesPerPixel = 4

// FrameBuffer represents the linear frame buffer descriptor, it is captured
// before exiting EFI Boot Services as the Graphics Output Protocol is no longer
// available afterwards while the frame buffer itself remains valid.
type FrameBuffer struct {
	// Base is the frame buffer physical address.
	Base uint64
	// Width is the horizontal resolution in pixels.
	Width uint32
	// Height is the vertical resolution in pixels.
	Height uint32
	// Stride is the number of pixels per scan line, it can exceed Width.
	Stride uint32
	// Format is the pixel channel ordering.
	Format PixelFormat
}

// Size returns the frame buffer size in bytes.
func (fb *FrameBuffer) Size() uint64 {
	return uint64(fb.Stride) * uint64(fb.Height) * BytesPerPixel
}

func (fb *FrameBuffer) String() string {
	return fmt.Sprintf("%dx%d (stride %d, %s) @ %#x", fb.Width, fb.Height, fb.Stride, fb.Format, fb.Base)
}

// MemoryRegion represents a region of memory usable by the kernel, it follows
// the EFI_MEMORY_DESCRIPTOR layout.
type MemoryRegion struct {
	Type          uint32
	_             uint32
	PhysicalStart uint64
	VirtualStart  uint64
	NumberOfPages uint64
	Attribute     uint64
}

// MemoryMap represents the memory map handed over to the kernel as a pointer
// to a contiguous array of [MemoryRegion] and its length.
type MemoryMap struct {
	// Address is the address of the first region.
	Address uint64
	// Count is the number of regions.
	Count uint64

	regions []MemoryRegion
}

// NewMemoryMap returns the kernel memory map for the argument regions, the
// slice backing array is referenced directly.
func NewMemoryMap(regions []MemoryRegion) (m *MemoryMap) {
	m = &MemoryMap{
		Count:   uint64(len(regions)),
		regions: regions,
	}

	if len(regions) > 0 {
		m.Address = uint64(uintptr(unsafe.Pointer(&regions[0])))
	}

	return
}

// Regions returns the memory map regions.
func (m *MemoryMap) Regions() []MemoryRegion {
	return m.regions
}

// Pages returns the total number of pages described by the memory map.
func (m *MemoryMap) Pages() (n uint64) {
	for _, r := range m.regions {
		n += r.NumberOfPages
	}

	return
}
