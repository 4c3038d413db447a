// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package x64

import (
	_ "unsafe"

	"github.com/usbarmory/go-handoff/uefi"
)

// Console represents the early UEFI services console for pre UEFI.Init()
// standard output.
var Console = &uefi.Console{
	ForceLine: true,
	Out:       conOut,
}

// set once EFI Boot Services are terminated
var serialOnly bool

//go:linkname printk runtime.printk
func printk(c byte) {
	UART0.Tx(c)

	if serialOnly {
		return
	}

	Console.Output([]byte{c})

	if c == 0x0a && Console.ForceLine { // LF
		Console.Output([]byte{0x0d}) // CR
	}
}

// ExitBootServices switches standard output to the serial port only, it must
// be invoked as soon as EFI Boot Services are terminated as the EFI console is
// no longer usable.
func ExitBootServices() {
	serialOnly = true
}
