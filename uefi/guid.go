// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"regexp"
)

var guidPattern = regexp.MustCompile(`^([[:xdigit:]]{8})-([[:xdigit:]]{4})-([[:xdigit:]]{4})-([[:xdigit:]]{4})-([[:xdigit:]]{12})$`)

// GUID represents an EFI GUID (Globally Unique Identifier) in its native EFI
// memory layout, where the first three fields are little-endian.
type GUID [16]byte

// ParseGUID parses a GUID in registry string format
// (xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx).
func ParseGUID(s string) (g GUID, err error) {
	m := guidPattern.FindStringSubmatch(s)

	if len(m) != 6 {
		return GUID{}, fmt.Errorf("invalid GUID format: %q", s)
	}

	var fields [5][]byte

	for i, f := range m[1:] {
		if fields[i], err = hex.DecodeString(f); err != nil {
			return GUID{}, err
		}
	}

	binary.LittleEndian.PutUint32(g[0:4], binary.BigEndian.Uint32(fields[0]))
	binary.LittleEndian.PutUint16(g[4:6], binary.BigEndian.Uint16(fields[1]))
	binary.LittleEndian.PutUint16(g[6:8], binary.BigEndian.Uint16(fields[2]))
	copy(g[8:10], fields[3])
	copy(g[10:16], fields[4])

	return
}

// MustParseGUID is like ParseGUID but panics on error, it is intended for
// package level GUID declarations.
func MustParseGUID(s string) GUID {
	g, err := ParseGUID(s)

	if err != nil {
		panic(err)
	}

	return g
}

// String returns the registry format string representation of the GUID.
func (g GUID) String() string {
	return fmt.Sprintf("%08x-%04x-%04x-%x-%x",
		binary.LittleEndian.Uint32(g[0:4]),
		binary.LittleEndian.Uint16(g[4:6]),
		binary.LittleEndian.Uint16(g[6:8]),
		g[8:10],
		g[10:])
}
