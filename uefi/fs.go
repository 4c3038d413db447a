// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
)

var (
	EFI_LOADED_IMAGE_PROTOCOL_GUID       = MustParseGUID("5b1b31a1-9562-11d2-8e3f-00a0c969723b")
	EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_GUID = MustParseGUID("964e5b22-6459-11d2-8e39-00a0c969723b")
)

const (
	EFI_LOADED_IMAGE_PROTOCOL_REVISION       = 0x00001000
	EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_REVISION = 0x00010000
)

// loadedImage represents an EFI Loaded Image Protocol instance.
type loadedImage struct {
	Revision        uint32
	_               uint32
	ParentHandle    uint64
	SystemTable     uint64
	DeviceHandle    uint64
	FilePath        uint64
	_               uint64
	LoadOptionsSize uint32
	_               uint32
	LoadOptions     uint64
	ImageBase       uint64
	ImageSize       uint64
	ImageCodeType   uint32
	ImageDataType   uint32
	Unload          uint64
}

// simpleFileSystem represents an EFI Simple File System Protocol instance.
type simpleFileSystem struct {
	Revision   uint64
	OpenVolume uint64
}

// openVolume calls EFI_SIMPLE_FILE SYSTEM_PROTOCOL.OpenVolume().
func (sfs *simpleFileSystem) openVolume(handle uint64) (f *fileProtocol, addr uint64, err error) {
	status := callService(ptrval(&sfs.OpenVolume),
		[]uint64{
			handle,
			ptrval(&addr),
		},
	)

	if err = parseStatus(status); err != nil {
		return
	}

	f, err = newFileProtocol(addr)

	return
}

// FS implements the [fs.FS] interface for an EFI Simple File System, it
// additionally allows file creation with [FS.Create].
type FS struct {
	volume *File
}

// path converts slash separated paths to EFI ones.
func path(name string) string {
	return strings.ReplaceAll(name, `/`, `\`)
}

// Open opens the named file for reading, [File.Close] must be called to
// release any associated resources.
func (root *FS) Open(name string) (fs.File, error) {
	var err error

	if root.volume == nil || root.volume.file == nil || root.volume.addr == 0 {
		return nil, errors.New("invalid file system instance")
	}

	f := &File{
		name: name,
	}

	if f.file, f.addr, err = root.volume.file.open(root.volume.addr, path(name), EFI_FILE_MODE_READ); err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	return f, nil
}

// Create creates or truncates the named file for writing.
func (root *FS) Create(name string) (io.WriteCloser, error) {
	var err error

	if root.volume == nil || root.volume.file == nil || root.volume.addr == 0 {
		return nil, errors.New("invalid file system instance")
	}

	f := &File{
		name: name,
	}

	mode := uint64(EFI_FILE_MODE_READ | EFI_FILE_MODE_WRITE | EFI_FILE_MODE_CREATE)

	if f.file, f.addr, err = root.volume.file.open(root.volume.addr, path(name), mode); err != nil {
		return nil, &fs.PathError{Op: "create", Path: name, Err: err}
	}

	// EFI_FILE_PROTOCOL has no truncation on open, a previous instance is
	// deleted and created again.
	if err = f.delete(); err != nil {
		return nil, &fs.PathError{Op: "create", Path: name, Err: err}
	}

	if f.file, f.addr, err = root.volume.file.open(root.volume.addr, path(name), mode); err != nil {
		return nil, &fs.PathError{Op: "create", Path: name, Err: err}
	}

	return f, nil
}

func (s *BootServices) loadedImage(imageHandle uint64) (image *loadedImage, err error) {
	var addr uint64

	if addr, err = s.HandleProtocol(imageHandle, EFI_LOADED_IMAGE_PROTOCOL_GUID); err != nil {
		return
	}

	image = &loadedImage{}

	if err = decode(image, addr); err != nil {
		return
	}

	if image.Revision != EFI_LOADED_IMAGE_PROTOCOL_REVISION {
		return nil, fmt.Errorf("invalid loaded image protocol revision (%#x)", image.Revision)
	}

	return
}

// Root returns an EFI Simple File System instance for the volume the current
// EFI image was loaded from.
func (s *Services) Root() (root *FS, err error) {
	var image *loadedImage
	var addr uint64

	sfs := &simpleFileSystem{}

	if image, err = s.Boot.loadedImage(s.imageHandle); err != nil {
		return
	}

	if addr, err = s.Boot.HandleProtocol(image.DeviceHandle, EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_GUID); err != nil {
		return
	}

	if err = decode(sfs, addr); err != nil {
		return
	}

	if sfs.Revision != EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_REVISION {
		return nil, fmt.Errorf("invalid simple file system protocol revision (%#x)", sfs.Revision)
	}

	root = &FS{
		volume: &File{name: `\`},
	}

	if root.volume.file, root.volume.addr, err = sfs.openVolume(addr); err != nil {
		return nil, err
	}

	return
}
