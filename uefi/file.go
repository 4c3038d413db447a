// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"
	"unicode/utf16"
)

const (
	EFI_FILE_PROTOCOL_REVISION  = 0x00010000
	EFI_FILE_PROTOCOL_REVISION2 = 0x00020000

	EFI_FILE_MODE_READ   = 0x0000000000000001
	EFI_FILE_MODE_WRITE  = 0x0000000000000002
	EFI_FILE_MODE_CREATE = 0x8000000000000000

	EFI_FILE_READ_ONLY = 0x0000000000000001
	EFI_FILE_DIRECTORY = 0x0000000000000010

	// EFI_WARN_DELETE_FAILURE
	warnDeleteFailure = 2
)

var EFI_FILE_INFO_ID = MustParseGUID("09576e92-6d3f-11d2-8e39-00a0c969723b")

const (
	// MaxFileName represents the maximum file name length in characters.
	MaxFileName = 256

	// EFI_FILE_INFO size without FileName
	fileInfoSize = 80
)

func toUTF16(s string) (buf []uint16) {
	buf = utf16.Encode([]rune(s))
	return append(buf, 0x00)
}

func fromUTF16(buf []byte) string {
	var s []uint16

	for i := 0; i+1 < len(buf); i += 2 {
		c := uint16(buf[i]) | uint16(buf[i+1])<<8

		if c == 0x00 {
			break
		}

		s = append(s, c)
	}

	return string(utf16.Decode(s))
}

// fileProtocol represents an EFI File Protocol instance.
type fileProtocol struct {
	Revision    uint64
	Open        uint64
	Close       uint64
	Delete      uint64
	Read        uint64
	Write       uint64
	GetPosition uint64
	SetPosition uint64
	GetInfo     uint64
	SetInfo     uint64
	Flush       uint64
}

func newFileProtocol(addr uint64) (f *fileProtocol, err error) {
	f = &fileProtocol{}

	if err = decode(f, addr); err != nil {
		return
	}

	if f.Revision != EFI_FILE_PROTOCOL_REVISION && f.Revision != EFI_FILE_PROTOCOL_REVISION2 {
		return nil, fmt.Errorf("invalid file protocol revision (%#x)", f.Revision)
	}

	return
}

// open calls EFI_FILE_PROTOCOL.Open().
func (fp *fileProtocol) open(addr uint64, name string, mode uint64) (f *fileProtocol, faddr uint64, err error) {
	n := toUTF16(name)

	status := callService(ptrval(&fp.Open),
		[]uint64{
			addr,
			ptrval(&faddr),
			ptrval(&n[0]),
			mode,
			0,
		},
	)

	if err = parseStatus(status); err != nil {
		return
	}

	f, err = newFileProtocol(faddr)

	return
}

// fileInfo represents an EFI_FILE_INFO instance.
type fileInfo struct {
	Size             uint64
	FileSize         uint64
	PhysicalSize     uint64
	CreateTime       [16]byte
	LastAccessTime   [16]byte
	ModificationTime [16]byte
	Attribute        uint64
}

// FileInfo implements the [fs.FileInfo] interface for EFI_FILE_INFO.
type FileInfo struct {
	info *fileInfo
	name string
}

// Name returns the base name of the file.
func (fi *FileInfo) Name() string {
	return fi.name
}

// Size returns the length in bytes of the file.
func (fi *FileInfo) Size() int64 {
	return int64(fi.info.FileSize)
}

// Mode returns the file mode bits.
func (fi *FileInfo) Mode() (mode fs.FileMode) {
	mode = 0444

	if fi.info.Attribute&EFI_FILE_READ_ONLY == 0 {
		mode |= 0200
	}

	if fi.IsDir() {
		mode |= fs.ModeDir | 0111
	}

	return
}

// ModTime is not implemented.
func (fi *FileInfo) ModTime() time.Time {
	return time.Time{}
}

// IsDir reports whether the file is a directory.
func (fi *FileInfo) IsDir() bool {
	return fi.info.Attribute&EFI_FILE_DIRECTORY != 0
}

// Sys returns the underlying EFI_FILE_INFO attributes.
func (fi *FileInfo) Sys() any {
	return fi.info.Attribute
}

// File implements the [fs.File] and [io.Writer] interfaces over the EFI File
// Protocol.
type File struct {
	name string
	file *fileProtocol
	addr uint64
}

// Stat calls EFI_FILE_PROTOCOL.GetInfo().
func (f *File) Stat() (fs.FileInfo, error) {
	buf := make([]byte, fileInfoSize+MaxFileName*2)
	size := uint64(len(buf))
	guid := EFI_FILE_INFO_ID

	status := callService(ptrval(&f.file.GetInfo),
		[]uint64{
			f.addr,
			ptrval(&guid),
			ptrval(&size),
			ptrval(&buf[0]),
		},
	)

	if err := parseStatus(status); err != nil {
		return nil, err
	}

	fi := &FileInfo{
		info: &fileInfo{},
	}

	if err := unmarshalBinary(buf, fi.info); err != nil {
		return nil, err
	}

	fi.name = fromUTF16(buf[fileInfoSize:size])

	return fi, nil
}

// Read calls EFI_FILE_PROTOCOL.Read().
func (f *File) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return
	}

	size := uint64(len(p))

	status := callService(ptrval(&f.file.Read),
		[]uint64{
			f.addr,
			ptrval(&size),
			ptrval(&p[0]),
		},
	)

	if err = parseStatus(status); err != nil {
		return
	}

	if size == 0 {
		return 0, io.EOF
	}

	return int(size), nil
}

// Write calls EFI_FILE_PROTOCOL.Write().
func (f *File) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return
	}

	size := uint64(len(p))

	status := callService(ptrval(&f.file.Write),
		[]uint64{
			f.addr,
			ptrval(&size),
			ptrval(&p[0]),
		},
	)

	if err = parseStatus(status); err != nil {
		return
	}

	if int(size) != len(p) {
		return int(size), io.ErrShortWrite
	}

	return int(size), nil
}

// Close calls EFI_FILE_PROTOCOL.Close().
func (f *File) Close() error {
	status := callService(ptrval(&f.file.Close),
		[]uint64{
			f.addr,
		},
	)

	return parseStatus(status)
}

// delete calls EFI_FILE_PROTOCOL.Delete(), the handle is closed in any case.
func (f *File) delete() error {
	status := callService(ptrval(&f.file.Delete),
		[]uint64{
			f.addr,
		},
	)

	if status == warnDeleteFailure {
		return errors.New("could not delete file")
	}

	return parseStatus(status)
}
