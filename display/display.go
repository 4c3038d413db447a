// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package display builds the frame buffer descriptor handed over to the
// kernel from the EFI Graphics Output Protocol.
package display

import (
	"errors"
	"fmt"

	"github.com/usbarmory/go-handoff/kernel"
	"github.com/usbarmory/go-handoff/uefi"
)

// ErrUnsupportedPixelFormat is returned for pixel formats other than 32-bit
// RGB or BGR, no conversion is attempted.
var ErrUnsupportedPixelFormat = errors.New("unsupported pixel format")

// Graphics represents an EFI Graphics Output Protocol instance.
type Graphics interface {
	CurrentMode() (*uefi.ProtocolMode, *uefi.ModeInformation, error)
}

// Format translates an EFI_GRAPHICS_PIXEL_FORMAT value.
func Format(f uint32) (kernel.PixelFormat, error) {
	switch f {
	case uefi.PixelRedGreenBlueReserved8BitPerColor:
		return kernel.RGB, nil
	case uefi.PixelBlueGreenRedReserved8BitPerColor:
		return kernel.BGR, nil
	default:
		return 0, fmt.Errorf("%w (%d)", ErrUnsupportedPixelFormat, f)
	}
}

// Build returns the frame buffer descriptor for the current graphics mode.
func Build(gop Graphics) (fb *kernel.FrameBuffer, err error) {
	mode, info, err := gop.CurrentMode()

	if err != nil {
		return nil, fmt.Errorf("could not get graphics mode, %w", err)
	}

	if mode.FrameBufferBase == 0 {
		return nil, errors.New("graphics mode has no linear frame buffer")
	}

	if info.PixelsPerScanLine < info.HorizontalResolution {
		return nil, fmt.Errorf("invalid scan line length (%d < %d)", info.PixelsPerScanLine, info.HorizontalResolution)
	}

	fb = &kernel.FrameBuffer{
		Base:   mode.FrameBufferBase,
		Width:  info.HorizontalResolution,
		Height: info.VerticalResolution,
		Stride: info.PixelsPerScanLine,
	}

	if fb.Format, err = Format(info.PixelFormat); err != nil {
		return nil, err
	}

	return
}
