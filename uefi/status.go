// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"fmt"
)

// EFI_STATUS codes (Appendix D - Status Codes), the high bit is masked.
const (
	EFI_SUCCESS = iota
	EFI_LOAD_ERROR
	EFI_INVALID_PARAMETER
	EFI_UNSUPPORTED
	EFI_BAD_BUFFER_SIZE
	EFI_BUFFER_TOO_SMALL
	EFI_NOT_READY
	EFI_DEVICE_ERROR
	EFI_WRITE_PROTECTED
	EFI_OUT_OF_RESOURCES
	EFI_VOLUME_CORRUPTED
	EFI_VOLUME_FULL
	EFI_NO_MEDIA
	EFI_MEDIA_CHANGED
	EFI_NOT_FOUND
	EFI_ACCESS_DENIED
)

// EFI_STATUS error bit
const errorBit = 1 << 63

var statusNames = map[Status]string{
	EFI_LOAD_ERROR:        "EFI_LOAD_ERROR",
	EFI_INVALID_PARAMETER: "EFI_INVALID_PARAMETER",
	EFI_UNSUPPORTED:       "EFI_UNSUPPORTED",
	EFI_BAD_BUFFER_SIZE:   "EFI_BAD_BUFFER_SIZE",
	EFI_BUFFER_TOO_SMALL:  "EFI_BUFFER_TOO_SMALL",
	EFI_NOT_READY:         "EFI_NOT_READY",
	EFI_DEVICE_ERROR:      "EFI_DEVICE_ERROR",
	EFI_WRITE_PROTECTED:   "EFI_WRITE_PROTECTED",
	EFI_OUT_OF_RESOURCES:  "EFI_OUT_OF_RESOURCES",
	EFI_VOLUME_CORRUPTED:  "EFI_VOLUME_CORRUPTED",
	EFI_VOLUME_FULL:       "EFI_VOLUME_FULL",
	EFI_NO_MEDIA:          "EFI_NO_MEDIA",
	EFI_MEDIA_CHANGED:     "EFI_MEDIA_CHANGED",
	EFI_NOT_FOUND:         "EFI_NOT_FOUND",
	EFI_ACCESS_DENIED:     "EFI_ACCESS_DENIED",
}

// Status represents a failed EFI_STATUS, it implements the error interface
// and can be matched with [errors.Is] against a Status value:
//
//	errors.Is(err, uefi.Status(uefi.EFI_INVALID_PARAMETER))
type Status uint64

// Error returns the status code description.
func (s Status) Error() string {
	if name, ok := statusNames[s]; ok {
		return fmt.Sprintf("EFI_STATUS error %s (%d)", name, uint64(s))
	}

	return fmt.Sprintf("EFI_STATUS error %#x", uint64(s))
}

func parseStatus(status uint64) (err error) {
	// warnings (error bit clear) are not failures
	if status&errorBit == 0 {
		return
	}

	return Status(status & 0xff)
}
