// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package atapromise programs the boot ROM attached to Promise PDC2026x ATA
// controllers.
//
// There are no public docs on the PDC2026x family; the register protocol
// was worked out by observing what the vendor's DOS utility (PTIFLASH)
// does on the wire. The ROM is not memory mapped for writes: every write
// cycle is staged through an indirect address/data register in the
// adapter's I/O window, and reads come from a memory alias of the ROM
// behind BAR5. The only model verified on real hardware is an Ultra100;
// the other 2026x controllers use the same logic and should, in theory,
// work as well.
//
// The adapter decodes only a slice of the flash part's address space
// through this window. Vendor ROM images are 16 kB, which is the default
// window; Options.AllowLargerWindow raises it to 32 kB when the platform
// confirms that much ROM is present. Chip descriptors larger than the
// window are clamped in fixupChip.
package atapromise

import (
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"

	"github.com/linuxboot/promflash/pkg/flash"
	"github.com/linuxboot/promflash/pkg/hwio"
	"github.com/linuxboot/promflash/pkg/pcidev"
)

// Debug can be set to log.Printf (or similar) to trace the driver.
var Debug = func(format string, v ...interface{}) {}

// Error kinds returned by session initialization. All of them are fatal: no
// flash access is attempted against a half-configured window.
var (
	ErrDeviceNotFound      = errors.New("no supported Promise adapter found")
	ErrResourceUnavailable = errors.New("adapter BAR is not assigned")
	ErrInvalidBridgeSpec   = errors.New("invalid bridge specification")
	ErrBridgeNotAttached   = errors.New("bridge does not lead to the adapter")
	ErrGeometryProbeFailed = errors.New("could not determine ROM decode window")
	ErrMappingFailed       = errors.New("mapping the ROM window failed")
	ErrUnsupportedDevice   = errors.New("no protocol parameters for this device")
)

const promiseVendorID = 0x105a

// SupportedDevices is the adapter allow-list.
var SupportedDevices = []pcidev.DevEntry{
	{Vendor: promiseVendorID, Device: 0x4d38, Status: pcidev.NT, VendorName: "Promise", DeviceName: "PDC20262 (FastTrak66/Ultra66)"},
	{Vendor: promiseVendorID, Device: 0x0d30, Status: pcidev.NT, VendorName: "Promise", DeviceName: "PDC20265 (FastTrak100 Lite/Ultra100)"},
	{Vendor: promiseVendorID, Device: 0x4d30, Status: pcidev.OK, VendorName: "Promise", DeviceName: "PDC20267 (FastTrak100/Ultra100)"},
}

// modelParams are the per-model protocol constants. Every device ID in
// SupportedDevices must have an entry here; an ID without one fails init
// with ErrUnsupportedDevice.
type modelParams struct {
	enableReg uint16 // flash enable register, offset into the I/O window
	dataReg   uint16 // indirect address/data register
	maxDecode uint32 // widest window the model's address decoder drives
	mmioAlias bool   // BAR5 aliases the ROM for reads
}

var models = map[uint16]modelParams{
	0x4d38: {enableReg: 0x10, dataReg: 0x14, maxDecode: 32 * 1024, mmioAlias: true},
	0x0d30: {enableReg: 0x10, dataReg: 0x14, maxDecode: 32 * 1024, mmioAlias: true},
	0x4d30: {enableReg: 0x10, dataReg: 0x14, maxDecode: 32 * 1024, mmioAlias: true},
}

// Bridge fixup modes for Options.Bridge; anything else is parsed as an
// explicit bus:device.function.
const (
	BridgeAuto = "auto"
	BridgeNone = "none"
)

// Options is the configuration surface of a session.
type Options struct {
	// Bridge selects the bridge window fixup strategy: BridgeAuto
	// (default), BridgeNone, or an explicit bus:device.function that must
	// name a bridge leading to the adapter.
	Bridge string

	// AllowLargerWindow opts into the 32 kB decode window. Requires the
	// platform to report at least that much expansion ROM.
	AllowLargerWindow bool
}

// Session is one exclusive adapter session. All protocol state lives here;
// nothing is shared between sessions.
type Session struct {
	opts  Options
	dev   *pcidev.Device
	entry *pcidev.DevEntry
	prm   modelParams
	port  *hwio.Port

	ioBase  uint16
	romBase uint32
	window  uint32

	rom  []byte // mmapped ROM alias, nil on models without one
	romC io.Closer

	unlock    int
	fixupDone bool
	chip      *flash.Chip
}

// newSession locates the adapter and brings the window up. Mapping of the
// ROM alias is left to the caller so tests can substitute plain memory.
func newSession(devs []*pcidev.Device, opts Options, port *hwio.Port) (*Session, error) {
	dev, entry, err := pcidev.Match(devs, SupportedDevices)
	if err != nil {
		if errors.Is(err, pcidev.ErrNoMatch) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	prm, ok := models[dev.Device]
	if !ok {
		return nil, fmt.Errorf("%w: %04x:%04x", ErrUnsupportedDevice, dev.Vendor, dev.Device)
	}
	Debug("found %s %s at %s", entry.VendorName, entry.DeviceName, dev.Addr)

	s := &Session{opts: opts, dev: dev, entry: entry, prm: prm, port: port}

	iob, err := pcidev.ReadBAR(dev.Cfg, 4)
	if err != nil {
		return nil, err
	}
	if iob == 0 {
		return nil, fmt.Errorf("%w: BAR4 (I/O window)", ErrResourceUnavailable)
	}
	s.ioBase = uint16(iob)

	romb, err := pcidev.ReadBAR(dev.Cfg, 5)
	if err != nil {
		return nil, err
	}
	if romb == 0 {
		return nil, fmt.Errorf("%w: BAR5 (ROM window)", ErrResourceUnavailable)
	}
	s.romBase = romb

	if err := s.fixupBridge(devs); err != nil {
		return nil, err
	}
	if err := s.resolveWindow(); err != nil {
		return nil, err
	}

	// PTIFLASH writes this before touching the flash. Flashing seems to
	// work without it, but do what the vendor tool does.
	if err := s.port.Outb(s.ioBase+s.prm.enableReg, 1); err != nil {
		return nil, err
	}
	return s, nil
}

// Shutdown releases the ROM mapping. The session must not be used
// afterwards.
func (s *Session) Shutdown() error {
	var result error
	if s.romC != nil {
		if err := s.romC.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		s.romC = nil
	}
	s.rom = nil
	s.chip = nil
	return result
}

// Master returns the parallel bus master backed by this session's byte
// primitives.
func (s *Session) Master() (*flash.Master, error) {
	m := &flash.Master{
		ChipReadb:  s.ChipReadb,
		ChipWriteb: s.ChipWriteb,
	}
	if err := m.Complete(); err != nil {
		return nil, err
	}
	return m, nil
}

// UseChip attaches the chip descriptor the generic layer is programming, so
// the first access can clamp it to the decode window.
func (s *Session) UseChip(c *flash.Chip) {
	s.chip = c
}

// Entry returns the allow-list entry the session matched.
func (s *Session) Entry() *pcidev.DevEntry { return s.entry }

// Addr returns the adapter's PCI address.
func (s *Session) Addr() string { return s.dev.Addr }

// Window returns the decodable ROM window size in bytes.
func (s *Session) Window() uint32 { return s.window }

// ROMBase returns the bus address of the ROM alias.
func (s *Session) ROMBase() uint32 { return s.romBase }
