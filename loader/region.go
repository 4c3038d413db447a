// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package loader

import (
	"fmt"
)

// Region represents a physical memory range addressed by its physical
// addresses.
type Region struct {
	start uint64
	buf   []byte
}

// NewRegion returns a [Region] for the argument buffer, mapped at the
// argument physical address.
func NewRegion(start uint64, buf []byte) *Region {
	return &Region{
		start: start,
		buf:   buf,
	}
}

// Start returns the region physical start address.
func (r *Region) Start() uint64 {
	return r.start
}

// Size returns the region size.
func (r *Region) Size() int {
	return len(r.buf)
}

func (r *Region) slice(addr uint64, size uint64) ([]byte, error) {
	n := uint64(len(r.buf))

	if addr < r.start || addr-r.start > n || size > n-(addr-r.start) {
		return nil, fmt.Errorf("range %#x-%#x outside of region %#x-%#x", addr, addr+size, r.start, r.start+n)
	}

	off := addr - r.start

	return r.buf[off : off+size], nil
}

// Write copies data at the argument physical address.
func (r *Region) Write(addr uint64, data []byte) (err error) {
	buf, err := r.slice(addr, uint64(len(data)))

	if err != nil {
		return
	}

	copy(buf, data)

	return
}

// Zero clears size bytes at the argument physical address.
func (r *Region) Zero(addr uint64, size uint64) (err error) {
	buf, err := r.slice(addr, size)

	if err != nil {
		return
	}

	clear(buf)

	return
}
