// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build !tamago

package loader

import (
	"errors"
)

func load(_ *Image, _ []byte) error {
	return errors.New("physical memory access requires GOOS=tamago")
}
