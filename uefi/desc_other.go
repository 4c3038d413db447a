// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build !tamago

package uefi

import (
	"errors"
)

// decode is only available on bare metal, where firmware structures are
// mapped at their physical address.
func decode(_ any, addr uint64) error {
	if addr == 0 {
		return errors.New("invalid address")
	}

	return errors.New("physical memory access requires GOOS=tamago")
}
