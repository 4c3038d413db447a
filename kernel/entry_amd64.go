// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build amd64

package kernel

// defined in entry_amd64.s
func jump(entry uint64, fb uint64, mm uint64)

// defined in entry_amd64.s
func halt()
