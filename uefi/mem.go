// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"

	"github.com/u-root/u-root/pkg/boot/bzimage"
)

const (
	// EFI Boot Services offset for GetMemoryMap
	getMemoryMap = 0x38
	// maximum number of GetMemoryMap() calls to obtain a large enough buffer
	maxMapAttempts = 4
)

// MapSlack represents the number of additional descriptors allocated on top
// of the firmware reported memory map size, as allocations performed between
// the size query and the map request can change the number of descriptors.
const MapSlack = 8

// Advanced Configuration and Power Interface Specification (ACPI)
// Version 6.0 - Table 15-312 Address Range Types12
const AddressRangePersistentMemory = 7

// PageSize represents the EFI page size in bytes
const PageSize = 4096 // 4 KiB

// MemoryDescriptor represents an EFI Memory Descriptor
type MemoryDescriptor struct {
	Type          uint32
	_             uint32
	PhysicalStart uint64
	VirtualStart  uint64
	NumberOfPages uint64
	Attribute     uint64
}

// PhysicalEnd returns the descriptor physical end address.
func (d *MemoryDescriptor) PhysicalEnd() uint64 {
	return d.PhysicalStart + d.NumberOfPages*PageSize
}

// Size returns the descriptor size.
func (d *MemoryDescriptor) Size() int {
	return int(d.NumberOfPages * PageSize)
}

// TypeName returns the EFI_MEMORY_TYPE name of the descriptor.
func (d *MemoryDescriptor) TypeName() string {
	return MemoryTypeName(d.Type)
}

// E820 converts an EFI Memory Map entry to an x86 E820 one suitable for use
// after exiting EFI Boot Services.
func (d *MemoryDescriptor) E820() (bzimage.E820Entry, error) {
	e := bzimage.E820Entry{
		Addr: d.PhysicalStart,
		Size: d.NumberOfPages * PageSize,
	}

	// Unified Extensible Firmware Interface (UEFI) Specification
	// Version 2.10 - Table 7.10: Memory Type Usage after ExitBootServices()
	switch d.Type {
	case EfiLoaderCode, EfiLoaderData, EfiBootServicesCode, EfiBootServicesData, EfiConventionalMemory:
		e.MemType = bzimage.RAM
	case EfiPersistentMemory:
		e.MemType = AddressRangePersistentMemory
	case EfiACPIReclaimMemory:
		e.MemType = bzimage.ACPI
	case EfiACPIMemoryNVS:
		e.MemType = bzimage.NVS
	default:
		e.MemType = bzimage.Reserved
	}

	return e, nil
}

// MemoryMap represents an EFI Memory Map
type MemoryMap struct {
	MapSize           uint64
	Descriptors       []*MemoryDescriptor
	MapKey            uint64
	DescriptorSize    uint64
	DescriptorVersion uint32

	buf []byte
}

// Address returns the EFI Memory Map pointer.
func (m *MemoryMap) Address() uint64 {
	return ptrval(&m.buf[0])
}

// E820 converts all EFI Memory Map entries to x86 E820 ones, contiguous
// entries of the same type are merged.
func (m *MemoryMap) E820() (e820 []bzimage.E820Entry, err error) {
	for _, desc := range m.Descriptors {
		e, err := desc.E820()

		if err != nil {
			return nil, err
		}

		if n := len(e820); n > 0 {
			last := &e820[n-1]

			if last.MemType == e.MemType && last.Addr+last.Size == e.Addr {
				last.Size += e.Size
				continue
			}
		}

		e820 = append(e820, e)
	}

	return
}

// ParseMemoryMap decodes a firmware filled memory map buffer, descriptors are
// walked with the firmware reported size which can exceed the size of
// [MemoryDescriptor].
func ParseMemoryMap(buf []byte, descriptorSize uint64) (descriptors []*MemoryDescriptor, err error) {
	n, _ := marshalBinary(&MemoryDescriptor{})

	if descriptorSize < uint64(len(n)) {
		return nil, fmt.Errorf("invalid descriptor size (%d)", descriptorSize)
	}

	for i := uint64(0); i+descriptorSize <= uint64(len(buf)); i += descriptorSize {
		d := &MemoryDescriptor{}

		if err = unmarshalBinary(buf[i:i+descriptorSize], d); err != nil {
			return nil, err
		}

		descriptors = append(descriptors, d)
	}

	return
}

// GetMemoryMap calls EFI_BOOT_SERVICES.GetMemoryMap().
//
// The required buffer size is queried first and [MapSlack] descriptors are
// added to it.
func (s *BootServices) GetMemoryMap() (m *MemoryMap, err error) {
	if s.exited {
		return nil, ErrExited
	}

	m = &MemoryMap{}

	// a zero sized buffer returns the required size
	status := callService(s.base+getMemoryMap,
		[]uint64{
			ptrval(&m.MapSize),
			0,
			ptrval(&m.MapKey),
			ptrval(&m.DescriptorSize),
			ptrval(&m.DescriptorVersion),
		},
	)

	if err = parseStatus(status); err != nil && !errors.Is(err, Status(EFI_BUFFER_TOO_SMALL)) {
		return nil, err
	}

	for i := 0; i < maxMapAttempts; i++ {
		m.MapSize += MapSlack * m.DescriptorSize
		m.buf = make([]byte, m.MapSize)

		status = callService(s.base+getMemoryMap,
			[]uint64{
				ptrval(&m.MapSize),
				ptrval(&m.buf[0]),
				ptrval(&m.MapKey),
				ptrval(&m.DescriptorSize),
				ptrval(&m.DescriptorVersion),
			},
		)

		err = parseStatus(status)

		if errors.Is(err, Status(EFI_BUFFER_TOO_SMALL)) {
			continue
		}

		if err != nil {
			return nil, err
		}

		m.Descriptors, err = ParseMemoryMap(m.buf[:m.MapSize], m.DescriptorSize)

		return
	}

	return nil, fmt.Errorf("could not size memory map buffer, %w", err)
}
