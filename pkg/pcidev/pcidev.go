// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pcidev locates PCI devices and gives the programmer raw access to
// their configuration space. Enumeration is done with u-root's pci package;
// this package adds the small pieces a hardware programmer needs on top of
// it: allow-list matching, BAR decoding and PCI-to-PCI bridge registers.
package pcidev

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/u-root/u-root/pkg/pci"
)

// Configuration space offsets used by this package. Only the classic 64-byte
// header is touched.
const (
	RegHeaderType     = 0x0e
	RegBAR0           = 0x10
	RegSecondaryBus   = 0x19
	RegSubordinateBus = 0x1a
	RegMemoryBase     = 0x20 // bridge header (type 1) only
	RegMemoryLimit    = 0x22 // bridge header (type 1) only
	RegExpansionROM   = 0x30

	HeaderTypeBridge = 0x01
)

// ErrNoMatch is returned by Match when no device on the bus is in the
// allow-list.
var ErrNoMatch = errors.New("no matching PCI device found")

// ConfigSpace is the subset of *pci.PCI this package and its users rely on.
// The size argument is in bits, as in u-root.
type ConfigSpace interface {
	ReadConfigRegister(offset, size int64) (uint64, error)
	WriteConfigRegister(offset, size int64, val uint64) error
}

// Status records how well a given device model is known to work with the
// programmer.
type Status int

const (
	// NT means the model should work but has not been tested on real
	// hardware.
	NT Status = iota
	// OK means the model has been verified on real hardware.
	OK
	// BAD means the model is known not to work.
	BAD
)

func (s Status) String() string {
	switch s {
	case OK:
		return "tested"
	case BAD:
		return "broken"
	}
	return "untested"
}

// DevEntry is one allow-list entry.
type DevEntry struct {
	Vendor     uint16
	Device     uint16
	Status     Status
	VendorName string
	DeviceName string
}

// Device is a located PCI device. Cfg is the live configuration space; in
// production it is the *pci.PCI itself, tests substitute an in-memory fake.
type Device struct {
	Addr    string // bus address, e.g. "0000:02:01.0"
	Vendor  uint16
	Device  uint16
	RomSize int64 // expansion ROM size reported by the platform, 0 if unknown
	Cfg     ConfigSpace
}

// Bus returns the device's bus number.
func (d *Device) Bus() (uint8, error) {
	var dom uint16
	var bus, slot, fn uint8
	if _, err := fmt.Sscanf(d.Addr, "%04x:%02x:%02x.%01x", &dom, &bus, &slot, &fn); err != nil {
		return 0, fmt.Errorf("malformed PCI address %q: %w", d.Addr, err)
	}
	return bus, nil
}

// Scan enumerates the live PCI bus.
func Scan() ([]*Device, error) {
	br, err := pci.NewBusReader()
	if err != nil {
		return nil, fmt.Errorf("opening PCI bus: %w", err)
	}
	devs, err := br.Read()
	if err != nil {
		return nil, fmt.Errorf("reading PCI bus: %w", err)
	}
	out := make([]*Device, 0, len(devs))
	for _, d := range devs {
		dev := &Device{
			Addr:   d.Addr,
			Vendor: d.Vendor,
			Device: d.Device,
			Cfg:    d,
		}
		// The rom file only exists if the device has an expansion ROM
		// BAR; its size is the decoded size.
		if fi, err := os.Stat(filepath.Join(d.FullPath, "rom")); err == nil {
			dev.RomSize = fi.Size()
		}
		out = append(out, dev)
	}
	return out, nil
}

// Match finds the first device present in the allow-list.
func Match(devs []*Device, entries []DevEntry) (*Device, *DevEntry, error) {
	for _, d := range devs {
		for i := range entries {
			if d.Vendor == entries[i].Vendor && d.Device == entries[i].Device {
				return d, &entries[i], nil
			}
		}
	}
	return nil, nil, ErrNoMatch
}

// ReadBAR reads base address register bar (0-5) and strips the flag bits,
// returning the bus address the register decodes.
func ReadBAR(cs ConfigSpace, bar int) (uint32, error) {
	raw, err := cs.ReadConfigRegister(RegBAR0+int64(bar)*4, 32)
	if err != nil {
		return 0, err
	}
	v := uint32(raw)
	if v&1 != 0 {
		// I/O space indicator, bit 1 reserved.
		return v &^ 0x3, nil
	}
	return v &^ 0xf, nil
}

// IsBridge reports whether the device is a PCI-to-PCI bridge. The header
// type is read from config space rather than trusted from enumeration.
func IsBridge(cs ConfigSpace) (bool, error) {
	ht, err := cs.ReadConfigRegister(RegHeaderType, 8)
	if err != nil {
		return false, err
	}
	return uint8(ht)&0x7f == HeaderTypeBridge, nil
}

// BusRange returns the secondary and subordinate bus numbers of a bridge.
func BusRange(cs ConfigSpace) (sec, sub uint8, err error) {
	s, err := cs.ReadConfigRegister(RegSecondaryBus, 8)
	if err != nil {
		return 0, 0, err
	}
	u, err := cs.ReadConfigRegister(RegSubordinateBus, 8)
	if err != nil {
		return 0, 0, err
	}
	return uint8(s), uint8(u), nil
}

// ParseBDF normalizes a user-supplied bus:device.function, with or without
// the leading domain, into the canonical sysfs form.
func ParseBDF(s string) (string, error) {
	var dom uint16
	var bus, slot, fn uint8
	if _, err := fmt.Sscanf(s, "%04x:%02x:%02x.%01x", &dom, &bus, &slot, &fn); err != nil {
		dom = 0
		if _, err := fmt.Sscanf(s, "%02x:%02x.%01x", &bus, &slot, &fn); err != nil {
			return "", fmt.Errorf("malformed PCI address %q (want [dddd:]bb:dd.f)", s)
		}
	}
	if fn > 7 {
		return "", fmt.Errorf("malformed PCI address %q: function %d out of range", s, fn)
	}
	return fmt.Sprintf("%04x:%02x:%02x.%01x", dom, bus, slot, fn), nil
}
