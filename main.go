// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"log"
	"runtime"

	"github.com/usbarmory/go-handoff/handoff"
	"github.com/usbarmory/go-handoff/kernel"
	"github.com/usbarmory/go-handoff/uefi/x64"
)

// set at build time
var (
	Revision   string
	Build      string
	ConfigPath string
)

func init() {
	log.SetFlags(0)
}

func boot() (err error) {
	if x64.UEFI.Boot == nil {
		return errors.New("EFI Boot Services unavailable")
	}

	root, err := x64.UEFI.Root()

	if err != nil {
		return fmt.Errorf("could not open root volume, %w", err)
	}

	gop, err := x64.UEFI.Boot.GetGraphicsOutput()

	if err != nil {
		return fmt.Errorf("could not locate graphics output protocol, %w", err)
	}

	c := &handoff.Controller{
		Firmware:   x64.UEFI.Boot,
		Graphics:   gop,
		Volume:     root,
		ConfigPath: ConfigPath,
		Cleanup:    x64.ExitBootServices,
	}

	return c.Boot()
}

func main() {
	log.Printf("%s/%s (%s) • UEFI handoff %s %s",
		runtime.GOOS, runtime.GOARCH, runtime.Version(), Revision, Build)

	if err := boot(); err != nil {
		log.Printf("fatal error, %v", err)
	}

	kernel.Halt()
}
