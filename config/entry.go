// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package config implements parsing of the boot entry file, a set of `key
// value` lines loosely following the Boot Loader Specification Type #1
// format:
//
//	https://uapi-group.org/specifications/specs/boot_loader_specification/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/usbarmory/go-handoff/transparency"
)

// Default values for keys missing from the boot entry.
const (
	DefaultPath   = `\loader\handoff.conf`
	DefaultKernel = `\kernel.elf`
	DefaultMemmap = `\memmap`
)

// Entry represents the parsed contents of a boot entry.
type Entry struct {
	// Title is the entry description.
	Title string
	// Kernel is the path of the kernel ELF image.
	Kernel string
	// Memmap is the path of the memory map diagnostics file.
	Memmap string
	// Transparency is the boot transparency mode for the kernel image.
	Transparency transparency.Status

	parsed  string
	ignored string
}

// Default returns an entry with default values.
func Default() *Entry {
	return &Entry{
		Title:        "default",
		Kernel:       DefaultKernel,
		Memmap:       DefaultMemmap,
		Transparency: transparency.None,
	}
}

func (e *Entry) parseKey(line string) (err error) {
	kv := strings.Fields(line)

	if len(kv) == 0 || strings.HasPrefix(kv[0], "#") {
		return
	}

	if len(kv) < 2 {
		e.ignored += line
		return
	}

	k := kv[0]
	v := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), k))

	switch k {
	case "title":
		e.Title = v
	case "kernel":
		e.Kernel = strings.ReplaceAll(v, `/`, `\`)
	case "memmap":
		e.Memmap = strings.ReplaceAll(v, `/`, `\`)
	case "transparency":
		if e.Transparency, err = transparency.ParseStatus(v); err != nil {
			return
		}
	default:
		e.ignored += line
		return
	}

	e.parsed += line

	return
}

// String returns the lines successfully parsed.
func (e *Entry) String() string {
	return e.parsed
}

// Ignored returns the lines ignored during parsing.
func (e *Entry) Ignored() string {
	return e.ignored
}

// Load parses the boot entry from the argument file, keys which are not
// present retain their default value. A missing file results in a default
// entry.
func Load(fsys fs.FS, path string) (e *Entry, err error) {
	e = Default()

	entry, err := fs.ReadFile(fsys, path)

	if errors.Is(err, fs.ErrNotExist) {
		return e, nil
	}

	if err != nil {
		return nil, fmt.Errorf("could not read %s, %w", path, err)
	}

	for line := range strings.Lines(string(entry)) {
		if err = e.parseKey(line); err != nil {
			return nil, fmt.Errorf("invalid entry %s, %w", path, err)
		}
	}

	return
}
