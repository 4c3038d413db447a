// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build !amd64

package kernel

func jump(_ uint64, _ uint64, _ uint64) {
	panic("kernel handoff is only supported on amd64")
}

func halt() {
	for {
	}
}
