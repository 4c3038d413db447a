// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package handoff

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/usbarmory/go-handoff/config"
	"github.com/usbarmory/go-handoff/display"
	"github.com/usbarmory/go-handoff/kernel"
	"github.com/usbarmory/go-handoff/loader"
	"github.com/usbarmory/go-handoff/memmap"
	"github.com/usbarmory/go-handoff/uefi"
)

const kernelBase = 0x100000

// testKernel returns an ELF image with a single segment at kernelBase.
func testKernel(t *testing.T) []byte {
	var buf bytes.Buffer

	text := []byte{0xf4, 0xeb, 0xfd} // hlt; jmp .-1

	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     kernelBase,
		Phoff:     64,
		Ehsize:    64,
		Phentsize: 56,
		Phnum:     1,
	}

	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	prog := elf.Prog64{
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(elf.PF_R | elf.PF_X),
		Off:    64 + 56,
		Vaddr:  kernelBase,
		Paddr:  kernelBase,
		Filesz: uint64(len(text)),
		Memsz:  0x2000,
		Align:  uefi.PageSize,
	}

	for _, v := range []any{hdr, prog, text} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}

	return buf.Bytes()
}

type testFirmware struct {
	events []string
	stale  bool
	exited bool
	key    uint64
}

func (fw *testFirmware) GetMemoryMap() (*uefi.MemoryMap, error) {
	if fw.exited {
		return nil, uefi.ErrExited
	}

	fw.events = append(fw.events, "map")
	fw.key++

	return &uefi.MemoryMap{
		MapKey:         fw.key,
		DescriptorSize: 48,
		Descriptors: []*uefi.MemoryDescriptor{
			{Type: uefi.EfiBootServicesCode, PhysicalStart: 0, NumberOfPages: 0x9f},
			{Type: uefi.EfiReservedMemoryType, PhysicalStart: 0x9f000, NumberOfPages: 0x61},
			{Type: uefi.EfiConventionalMemory, PhysicalStart: kernelBase, NumberOfPages: 0x100},
			{Type: uefi.EfiLoaderData, PhysicalStart: 0x200000, NumberOfPages: 0x100},
		},
	}, nil
}

func (fw *testFirmware) ExitBootServices(m *uefi.MemoryMap) error {
	fw.events = append(fw.events, "exit")

	if fw.stale || m.MapKey != fw.key {
		return uefi.Status(uefi.EFI_INVALID_PARAMETER)
	}

	fw.exited = true

	return nil
}

func (fw *testFirmware) AllocatePages(allocateType int, memoryType int, size int, physicalAddress uint64) (uint64, error) {
	if fw.exited {
		return 0, uefi.ErrExited
	}

	fw.events = append(fw.events, "allocate")

	return physicalAddress, nil
}

func (fw *testFirmware) SetWatchdogTimer(sec int) error {
	if fw.exited {
		return uefi.ErrExited
	}

	if sec != 0 {
		return uefi.Status(uefi.EFI_INVALID_PARAMETER)
	}

	fw.events = append(fw.events, "watchdog")

	return nil
}

type testGraphics struct {
	format uint32
}

func (gop *testGraphics) CurrentMode() (*uefi.ProtocolMode, *uefi.ModeInformation, error) {
	mode := &uefi.ProtocolMode{
		FrameBufferBase: 0xc0000000,
	}

	info := &uefi.ModeInformation{
		HorizontalResolution: 1280,
		VerticalResolution:   720,
		PixelsPerScanLine:    1280,
		PixelFormat:          gop.format,
	}

	return mode, info, nil
}

type testFile struct {
	bytes.Buffer
}

func (f *testFile) Close() error {
	return nil
}

type testVolume struct {
	fstest.MapFS
	created map[string]*testFile
}

func (v *testVolume) Create(name string) (io.WriteCloser, error) {
	f := &testFile{}
	v.created[name] = f

	return f, nil
}

type testExec struct {
	calls int
	entry kernel.Entry
	fb    *kernel.FrameBuffer
	mm    *kernel.MemoryMap
	err   error
}

func (x *testExec) exec(entry kernel.Entry, fb *kernel.FrameBuffer, mm *kernel.MemoryMap) error {
	x.calls++
	x.entry = entry
	x.fb = fb
	x.mm = mm

	return x.err
}

type testSetup struct {
	fw   *testFirmware
	vol  *testVolume
	x    *testExec
	mem  []byte
	ctrl *Controller
}

func newTestSetup(t *testing.T, entry string) *testSetup {
	s := &testSetup{
		fw: &testFirmware{},
		vol: &testVolume{
			MapFS: fstest.MapFS{
				`\boot\kernel.elf`: {Data: testKernel(t)},
			},
			created: make(map[string]*testFile),
		},
		x: &testExec{},
	}

	if entry != "" {
		s.vol.MapFS[config.DefaultPath] = &fstest.MapFile{Data: []byte(entry)}
	}

	s.ctrl = &Controller{
		Firmware: s.fw,
		Graphics: &testGraphics{format: uefi.PixelBlueGreenRedReserved8BitPerColor},
		Volume:   s.vol,
		Map: func(start uint64, size int) (*loader.Region, error) {
			s.fw.events = append(s.fw.events, "map region")
			s.mem = make([]byte, size)
			return loader.NewRegion(start, s.mem), nil
		},
		Cleanup: func() {
			s.fw.events = append(s.fw.events, "cleanup")
		},
		Exec: s.x.exec,
	}

	return s
}

const testEntry = "title test\nkernel /boot/kernel.elf\nmemmap /memmap.txt\n"

func TestBoot(t *testing.T) {
	s := newTestSetup(t, testEntry)

	if s.ctrl.State() != FirmwareOwned {
		t.Fatalf("unexpected initial state %s", s.ctrl.State())
	}

	if err := s.ctrl.Boot(); err != nil {
		t.Fatal(err)
	}

	if s.ctrl.State() != KernelOwned {
		t.Fatalf("unexpected state %s", s.ctrl.State())
	}

	want := "map,watchdog,map,allocate,map region,map,exit,cleanup"

	if events := strings.Join(s.fw.events, ","); events != want {
		t.Fatalf("unexpected sequence\n got: %s\nwant: %s", events, want)
	}

	if s.x.calls != 1 {
		t.Fatalf("kernel started %d times", s.x.calls)
	}

	if s.x.entry.Address() != kernelBase {
		t.Fatalf("unexpected entry %#x", s.x.entry.Address())
	}

	if s.x.fb.Format != kernel.BGR || s.x.fb.Base != 0xc0000000 || s.x.fb.Width != 1280 {
		t.Fatalf("unexpected frame buffer %s", s.x.fb)
	}

	// BootServicesCode and ConventionalMemory
	if s.x.mm.Count != 2 {
		t.Fatalf("got %d usable regions", s.x.mm.Count)
	}

	if !bytes.Equal(s.mem[0:3], []byte{0xf4, 0xeb, 0xfd}) {
		t.Fatal("kernel not loaded")
	}

	f, ok := s.vol.created[`\memmap.txt`]

	if !ok {
		t.Fatal("memory map not dumped")
	}

	// header and one row per descriptor
	if n := strings.Count(f.String(), "\n"); n != 5 {
		t.Fatalf("got %d memory map lines", n)
	}
}

func TestBootTwice(t *testing.T) {
	s := newTestSetup(t, testEntry)

	if err := s.ctrl.Boot(); err != nil {
		t.Fatal(err)
	}

	if err := s.ctrl.Boot(); !errors.Is(err, ErrAlreadyBooted) {
		t.Fatalf("expected ErrAlreadyBooted, got %v", err)
	}

	if s.x.calls != 1 {
		t.Fatalf("kernel started %d times", s.x.calls)
	}
}

func TestBootMissingKernel(t *testing.T) {
	// default entry, pointing to a missing kernel image
	s := newTestSetup(t, "")

	if err := s.ctrl.Boot(); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}

	if s.ctrl.State() != FirmwareOwned || s.fw.exited || s.x.calls != 0 {
		t.Fatalf("unexpected transition (state:%s)", s.ctrl.State())
	}

	if _, ok := s.vol.created[config.DefaultMemmap]; !ok {
		t.Fatal("memory map not dumped")
	}

	// failures are not retried
	if err := s.ctrl.Boot(); !errors.Is(err, ErrAlreadyBooted) {
		t.Fatalf("expected ErrAlreadyBooted, got %v", err)
	}
}

func TestBootUnsupportedDisplay(t *testing.T) {
	s := newTestSetup(t, testEntry)
	s.ctrl.Graphics = &testGraphics{format: uefi.PixelBitMask}

	if err := s.ctrl.Boot(); !errors.Is(err, display.ErrUnsupportedPixelFormat) {
		t.Fatalf("expected ErrUnsupportedPixelFormat, got %v", err)
	}

	for _, ev := range s.fw.events {
		if ev == "allocate" || ev == "exit" {
			t.Fatalf("unexpected %s after display failure", ev)
		}
	}
}

func TestBootStaleMap(t *testing.T) {
	s := newTestSetup(t, testEntry)
	s.fw.stale = true

	if err := s.ctrl.Boot(); !errors.Is(err, memmap.ErrStaleMap) {
		t.Fatalf("expected ErrStaleMap, got %v", err)
	}

	if s.ctrl.State() != TransitionRequested {
		t.Fatalf("unexpected state %s", s.ctrl.State())
	}

	if s.x.calls != 0 {
		t.Fatal("kernel started without exiting boot services")
	}
}

func TestBootKernelReturned(t *testing.T) {
	s := newTestSetup(t, testEntry)
	s.x.err = kernel.ErrReturned

	if err := s.ctrl.Boot(); !errors.Is(err, kernel.ErrReturned) {
		t.Fatalf("expected ErrReturned, got %v", err)
	}
}

func TestBootEntry(t *testing.T) {
	s := newTestSetup(t, "")

	e := config.Default()
	e.Kernel = `\boot\kernel.elf`
	s.ctrl.Entry = e

	if err := s.ctrl.Boot(); err != nil {
		t.Fatal(err)
	}
}

func TestState(t *testing.T) {
	for s, want := range map[State]string{
		FirmwareOwned:       "firmware owned",
		TransitionRequested: "transition requested",
		KernelOwned:         "kernel owned",
		State(7):            "unknown (7)",
	} {
		if s.String() != want {
			t.Errorf("got %q, want %q", s.String(), want)
		}
	}
}
