// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package handoff implements the transition from firmware owned to kernel
// owned execution.
//
// The [Controller] sequences the diagnostics dump, frame buffer and kernel
// image preparation, termination of EFI Boot Services and the final jump to
// the kernel entry point. The transition is irreversible and only attempted
// once.
package handoff

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/hako/durafmt"

	"github.com/usbarmory/go-handoff/config"
	"github.com/usbarmory/go-handoff/display"
	"github.com/usbarmory/go-handoff/kernel"
	"github.com/usbarmory/go-handoff/loader"
	"github.com/usbarmory/go-handoff/memmap"
	"github.com/usbarmory/go-handoff/transparency"
)

// ErrAlreadyBooted is returned when a boot is requested more than once.
var ErrAlreadyBooted = errors.New("boot already attempted")

// State represents the execution ownership.
type State int

// Execution ownership states.
const (
	// EFI Boot Services are available.
	FirmwareOwned State = iota
	// ExitBootServices() is in progress, only memory map queries are
	// allowed.
	TransitionRequested
	// EFI Boot Services are terminated.
	KernelOwned
)

func (s State) String() string {
	switch s {
	case FirmwareOwned:
		return "firmware owned"
	case TransitionRequested:
		return "transition requested"
	case KernelOwned:
		return "kernel owned"
	default:
		return fmt.Sprintf("unknown (%d)", int(s))
	}
}

// Firmware represents the EFI Boot Services used during the handoff.
type Firmware interface {
	memmap.Services
	loader.Allocator

	SetWatchdogTimer(sec int) error
}

// Volume represents the boot volume.
type Volume interface {
	fs.FS
	memmap.Volume
}

// Controller represents the handoff sequence.
type Controller struct {
	// Firmware is the EFI Boot Services instance.
	Firmware Firmware
	// Graphics is the EFI Graphics Output Protocol instance.
	Graphics display.Graphics
	// Volume is the boot volume.
	Volume Volume

	// Entry is the boot entry, when nil it is loaded from ConfigPath.
	Entry *config.Entry
	// ConfigPath is the boot entry path, [config.DefaultPath] is used
	// when empty.
	ConfigPath string

	// Map is passed to the kernel image [loader.Loader].
	Map func(start uint64, size int) (*loader.Region, error)

	// Cleanup, when set, is invoked once EFI Boot Services are
	// terminated.
	Cleanup func()
	// Exec transfers control to the kernel, [kernel.Entry.Invoke] is
	// used when nil.
	Exec func(entry kernel.Entry, fb *kernel.FrameBuffer, mm *kernel.MemoryMap) error

	state     State
	attempted bool
}

// State returns the current execution ownership.
func (c *Controller) State() State {
	return c.state
}

func (c *Controller) entry() (e *config.Entry, err error) {
	if c.Entry != nil {
		return c.Entry, nil
	}

	path := c.ConfigPath

	if path == "" {
		path = config.DefaultPath
	}

	if e, err = config.Load(c.Volume, path); err != nil {
		return
	}

	if ignored := e.Ignored(); len(ignored) > 0 {
		log.Printf("ignored entry lines:\n%s", ignored)
	}

	return
}

// prepare performs all steps requiring EFI Boot Services, on success the
// kernel image is loaded in memory.
func (c *Controller) prepare() (k *loader.Image, fb *kernel.FrameBuffer, err error) {
	e, err := c.entry()

	if err != nil {
		return
	}

	log.Printf("booting %s", e.Title)
	log.Printf("dumping memory map to %s", e.Memmap)

	if err = memmap.DumpFile(c.Firmware, c.Volume, e.Memmap); err != nil {
		return
	}

	if fb, err = display.Build(c.Graphics); err != nil {
		return
	}

	log.Printf("frame buffer %s", fb)

	img, err := fs.ReadFile(c.Volume, e.Kernel)

	if err != nil {
		return nil, nil, fmt.Errorf("could not read kernel, %w", err)
	}

	if e.Transparency != transparency.None {
		log.Printf("verifying kernel (transparency %s)", e.Transparency)

		tc := &transparency.Config{
			Status: e.Transparency,
			Root:   c.Volume,
		}

		if err = transparency.Verify(tc, img); err != nil {
			return nil, nil, fmt.Errorf("could not verify kernel, %w", err)
		}
	}

	// the firmware resets the platform after 5 minutes otherwise
	if err = c.Firmware.SetWatchdogTimer(0); err != nil {
		return nil, nil, fmt.Errorf("could not disable watchdog, %w", err)
	}

	m, err := c.Firmware.GetMemoryMap()

	if err != nil {
		return nil, nil, fmt.Errorf("could not get memory map, %w", err)
	}

	l := &loader.Loader{
		Allocator: c.Firmware,
		Map:       c.Map,
	}

	if l.Memory, err = m.E820(); err != nil {
		return
	}

	log.Printf("loading kernel %s", e.Kernel)

	if k, err = l.Load(img); err != nil {
		return nil, nil, fmt.Errorf("could not load kernel, %w", err)
	}

	return
}

// Boot prepares the kernel image and hands off execution to it, terminating
// EFI Boot Services.
//
// On success the function does not return, any returned error occurs either
// before EFI Boot Services termination or after the kernel has returned.
func (c *Controller) Boot() (err error) {
	if c.attempted {
		return ErrAlreadyBooted
	}

	c.attempted = true
	start := time.Now()

	k, fb, err := c.prepare()

	if err != nil {
		return
	}

	log.Printf("exiting EFI boot services")
	c.state = TransitionRequested

	mm, err := memmap.Snapshot(c.Firmware)

	if err != nil {
		return
	}

	c.state = KernelOwned

	if c.Cleanup != nil {
		c.Cleanup()
	}

	log.Printf("starting kernel@%#08x (%d usable regions, %d pages, handoff after %s)",
		k.Entry.Address(), mm.Count, mm.Pages(), durafmt.Parse(time.Since(start)))

	exec := c.Exec

	if exec == nil {
		exec = func(entry kernel.Entry, fb *kernel.FrameBuffer, mm *kernel.MemoryMap) error {
			return entry.Invoke(fb, mm)
		}
	}

	return exec(k.Entry, fb, mm)
}
