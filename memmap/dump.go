// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package memmap

import (
	"bytes"
	"fmt"
	"io"

	"github.com/usbarmory/go-handoff/uefi"
)

// AttributeMask selects the memory attribute bits reported by [Dump], runtime
// and vendor bits above bit 19 are omitted.
const AttributeMask = 0xfffff

const header = "Index, Type, Type(name), PhysicalStart, NumberOfPages, Attribute\n"

// Dump writes the argument memory map as a table with one row per
// descriptor.
func Dump(w io.Writer, m *uefi.MemoryMap) (err error) {
	var buf bytes.Buffer

	buf.WriteString(header)

	for i, d := range m.Descriptors {
		fmt.Fprintf(&buf, "%d, %x, %s, %08x, %x, %x\n",
			i, d.Type, d.TypeName(), d.PhysicalStart, d.NumberOfPages, d.Attribute&AttributeMask)
	}

	// a single write as each one is a firmware call
	_, err = w.Write(buf.Bytes())

	return
}

// DumpFile creates, or truncates, the named file on the argument volume and
// writes the current memory map to it.
func DumpFile(fw Firmware, vol Volume, name string) (err error) {
	f, err := vol.Create(name)

	if err != nil {
		return fmt.Errorf("could not create %s, %w", name, err)
	}

	// the map is queried after file creation to include its allocations
	m, err := fw.GetMemoryMap()

	if err != nil {
		f.Close()
		return fmt.Errorf("could not get memory map, %w", err)
	}

	if err = Dump(f, m); err != nil {
		f.Close()
		return fmt.Errorf("could not write %s, %w", name, err)
	}

	return f.Close()
}
