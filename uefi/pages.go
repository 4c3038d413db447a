// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

// EFI Boot Services offset for AllocatePages
const allocatePages = 0x28

// EFI_ALLOCATE_TYPE
const (
	AllocateAnyPages = iota
	AllocateMaxAddress
	AllocateAddress
	MaxAllocateType
)

// EFI_MEMORY_TYPE
const (
	EfiReservedMemoryType = iota
	EfiLoaderCode
	EfiLoaderData
	EfiBootServicesCode
	EfiBootServicesData
	EfiRuntimeServicesCode
	EfiRuntimeServicesData
	EfiConventionalMemory
	EfiUnusableMemory
	EfiACPIReclaimMemory
	EfiACPIMemoryNVS
	EfiMemoryMappedIO
	EfiMemoryMappedIOPortSpace
	EfiPalCode
	EfiPersistentMemory
	EfiUnacceptedMemoryType
	EfiMaxMemoryType
)

var memoryTypeNames = []string{
	"EfiReservedMemoryType",
	"EfiLoaderCode",
	"EfiLoaderData",
	"EfiBootServicesCode",
	"EfiBootServicesData",
	"EfiRuntimeServicesCode",
	"EfiRuntimeServicesData",
	"EfiConventionalMemory",
	"EfiUnusableMemory",
	"EfiACPIReclaimMemory",
	"EfiACPIMemoryNVS",
	"EfiMemoryMappedIO",
	"EfiMemoryMappedIOPortSpace",
	"EfiPalCode",
	"EfiPersistentMemory",
	"EfiUnacceptedMemoryType",
}

// MemoryTypeName returns the EFI_MEMORY_TYPE name for the argument type code,
// OEM and OS loader reserved ranges are reported as such.
func MemoryTypeName(t uint32) string {
	switch {
	case t < uint32(len(memoryTypeNames)):
		return memoryTypeNames[t]
	case t >= 0x80000000:
		return "OSV"
	case t >= 0x70000000:
		return "OEM"
	default:
		return "Unknown"
	}
}

// Pages returns the number of EFI pages required to hold size bytes.
func Pages(size int) uint64 {
	return (uint64(size) + PageSize - 1) / PageSize
}

// AllocatePages calls EFI_BOOT_SERVICES.AllocatePages().
//
// The size is rounded up to [PageSize], on success the physical address of
// the allocation is returned.
func (s *BootServices) AllocatePages(allocateType int, memoryType int, size int, physicalAddress uint64) (addr uint64, err error) {
	if s.exited {
		return 0, ErrExited
	}

	status := callService(s.base+allocatePages,
		[]uint64{
			uint64(allocateType),
			uint64(memoryType),
			Pages(size),
			ptrval(&physicalAddress),
		},
	)

	return physicalAddress, parseStatus(status)
}

