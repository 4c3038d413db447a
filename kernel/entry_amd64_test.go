// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build amd64

package kernel

import (
	"os"
	"strings"
	"testing"
)

func TestJumpInterrupts(t *testing.T) {
	buf, err := os.ReadFile("entry_amd64.s")

	if err != nil {
		t.Fatal(err)
	}

	src := string(buf)
	start := strings.Index(src, "TEXT ·jump(SB)")

	if start < 0 {
		t.Fatal("jump not found")
	}

	jump := src[start:]
	jump = jump[:strings.Index(jump, "RET")]

	cli := strings.Index(jump, "CLI")
	call := strings.Index(jump, "CALL")

	if cli < 0 || call < 0 || cli > call {
		t.Fatal("interrupts not disabled before kernel entry")
	}
}
