// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package loader implements loading of ELF kernel images at their link
// address in memory allocated through EFI Boot Services.
package loader

import (
	"errors"
	"fmt"
	"log"

	"github.com/u-root/u-root/pkg/boot/bzimage"

	"github.com/usbarmory/go-handoff/uefi"
)

// ErrRangeUnavailable is returned when the image load range is not entirely
// within system RAM.
var ErrRangeUnavailable = errors.New("load range not in system RAM")

// Allocator represents the EFI Boot Services page allocator.
type Allocator interface {
	AllocatePages(allocateType int, memoryType int, size int, physicalAddress uint64) (uint64, error)
}

// Loader represents a kernel image loader.
type Loader struct {
	// Allocator is used to reserve the image load range.
	Allocator Allocator

	// Map, when set, returns the region for writing to allocated physical
	// memory, otherwise the image is loaded with armory-boot exec.ELFImage.
	Map func(start uint64, size int) (*Region, error)

	// Memory, when set, is the E820 memory map used to validate the load
	// range before allocation.
	Memory []bzimage.E820Entry
}

func findMemory(m []bzimage.E820Entry, start uint64, size uint64) error {
	for _, e := range m {
		if e.MemType != bzimage.RAM || e.Size < size {
			continue
		}

		if start < e.Addr || start-e.Addr > e.Size-size {
			continue
		}

		return nil
	}

	return fmt.Errorf("%w (%#08x - %#08x)", ErrRangeUnavailable, start, start+size)
}

// Load parses the argument ELF image, allocates its load range and copies
// all loadable segments to their addresses.
//
// Allocated pages are not freed on error as the system is not expected to
// proceed after a failed load.
func (l *Loader) Load(img []byte) (k *Image, err error) {
	if k, err = Parse(img); err != nil {
		return
	}

	size := k.Size()

	if l.Memory != nil {
		if err = findMemory(l.Memory, k.Start, uint64(size)); err != nil {
			return nil, err
		}
	}

	log.Printf("allocating memory range %#08x - %#08x (%d pages)", k.Start, k.Start+uint64(size), k.Pages())

	addr, err := l.Allocator.AllocatePages(uefi.AllocateAddress, uefi.EfiLoaderData, size, k.Start)

	if err != nil {
		return nil, fmt.Errorf("could not allocate pages, %w", err)
	}

	if addr != k.Start {
		return nil, fmt.Errorf("unexpected allocation address (%#x != %#x)", addr, k.Start)
	}

	if l.Map == nil {
		if err = load(k, img); err != nil {
			return nil, fmt.Errorf("could not load segments, %w", err)
		}

		return
	}

	mem, err := l.Map(k.Start, size)

	if err != nil {
		return nil, fmt.Errorf("could not map memory, %w", err)
	}

	for _, s := range k.Segments {
		filesz := uint64(len(s.Data))

		if err = mem.Write(s.Vaddr, s.Data); err != nil {
			return nil, err
		}

		if err = mem.Zero(s.Vaddr+filesz, s.Memsz-filesz); err != nil {
			return nil, err
		}
	}

	return
}
