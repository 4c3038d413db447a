// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package loader

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"math"

	"github.com/usbarmory/go-handoff/kernel"
	"github.com/usbarmory/go-handoff/uefi"
)

var (
	// ErrInvalidImage is returned for malformed ELF images.
	ErrInvalidImage = errors.New("invalid kernel image")

	// ErrNoLoadableSegments is returned for ELF images without any
	// PT_LOAD segment.
	ErrNoLoadableSegments = errors.New("no loadable segments")
)

// Segment represents an ELF loadable segment.
type Segment struct {
	// Vaddr is the segment load address, images must be identity mapped
	// as physical and virtual addresses are identical when EFI Boot
	// Services are terminated.
	Vaddr uint64
	// Memsz is the segment size in memory, the part not covered by Data
	// is zero filled.
	Memsz uint64
	// Data holds the segment file contents.
	Data []byte
}

// End returns the address following the last segment byte.
func (s *Segment) End() uint64 {
	return s.Vaddr + s.Memsz
}

// Image represents a parsed kernel ELF image.
type Image struct {
	// Segments holds all loadable segments.
	Segments []*Segment

	// Start is the lowest segment address.
	Start uint64
	// End is the address following the highest segment byte.
	End uint64

	// Entry is the declared ELF entry point.
	Entry kernel.Entry
}

// Size returns the size of the image load range rounded up to [uefi.PageSize].
func (k *Image) Size() int {
	return int(k.Pages() * uefi.PageSize)
}

// Pages returns the number of pages spanned by the image load range.
func (k *Image) Pages() uint64 {
	n := k.End - k.Start
	pages := n / uefi.PageSize

	if n%uefi.PageSize != 0 {
		pages++
	}

	return pages
}

func invalid(format string, a ...any) error {
	return fmt.Errorf("%w, %s", ErrInvalidImage, fmt.Sprintf(format, a...))
}

// Parse decodes the ELF program headers of the argument kernel image and
// returns its loadable segments.
func Parse(img []byte) (k *Image, err error) {
	f, err := elf.NewFile(bytes.NewReader(img))

	if err != nil {
		return nil, fmt.Errorf("%w, %v", ErrInvalidImage, err)
	}

	defer f.Close()

	if f.Class != elf.ELFCLASS64 || f.Data != elf.ELFDATA2LSB {
		return nil, invalid("unsupported ELF class %v (%v)", f.Class, f.Data)
	}

	k = &Image{
		Start: math.MaxUint64,
	}

	for i, prg := range f.Progs {
		if prg.Type != elf.PT_LOAD || prg.Memsz == 0 {
			continue
		}

		if prg.Filesz > prg.Memsz {
			return nil, invalid("segment %d file size exceeds memory size", i)
		}

		if prg.Paddr != prg.Vaddr {
			return nil, invalid("segment %d physical address %#x differs from virtual address %#x", i, prg.Paddr, prg.Vaddr)
		}

		if prg.Vaddr+prg.Memsz < prg.Vaddr {
			return nil, invalid("segment %d address range overflow", i)
		}

		s := &Segment{
			Vaddr: prg.Vaddr,
			Memsz: prg.Memsz,
			Data:  make([]byte, prg.Filesz),
		}

		if _, err = prg.ReadAt(s.Data, 0); err != nil {
			return nil, invalid("could not read segment %d, %v", i, err)
		}

		k.Segments = append(k.Segments, s)
		k.Start = min(k.Start, s.Vaddr)
		k.End = max(k.End, s.End())
	}

	if len(k.Segments) == 0 {
		return nil, ErrNoLoadableSegments
	}

	if k.Start%uefi.PageSize != 0 {
		return nil, invalid("load address %#x not page aligned", k.Start)
	}

	if k.Pages() > math.MaxInt/uefi.PageSize {
		return nil, invalid("load range %#x-%#x too large", k.Start, k.End)
	}

	if k.Entry, err = kernel.NewEntry(f.Entry, k.Start, k.End); err != nil {
		return nil, err
	}

	return
}
