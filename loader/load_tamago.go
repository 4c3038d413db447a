// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago

package loader

import (
	"fmt"

	"github.com/usbarmory/armory-boot/exec"
	"github.com/usbarmory/tamago/dma"
)

// load copies the loadable segments of a parsed image to its allocated load
// range.
func load(k *Image, img []byte) (err error) {
	size := k.Size()

	mem, err := dma.NewRegion(uint(k.Start), size, false)

	if err != nil {
		return
	}

	mem.Reserve(size, 0)

	image := &exec.ELFImage{
		Region: mem,
		ELF:    img,
	}

	if err = image.Load(); err != nil {
		return
	}

	if entry := uint64(image.Entry()); entry != k.Entry.Address() {
		return fmt.Errorf("entry point mismatch (%#x != %#x)", entry, k.Entry.Address())
	}

	return
}
