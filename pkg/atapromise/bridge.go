// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package atapromise

import (
	"fmt"

	"github.com/linuxboot/promflash/pkg/pcidev"
)

// fixupBridge makes sure a PCI-to-PCI bridge in front of the adapter
// forwards the ROM window. Not being behind a bridge is fine; the ROM is
// then reachable directly.
//
// TODO: chained bridges are not handled; only the innermost one is fixed
// up.
func (s *Session) fixupBridge(devs []*pcidev.Device) error {
	mode := s.opts.Bridge
	if mode == "" {
		mode = BridgeAuto
	}
	if mode == BridgeNone {
		return nil
	}

	bus, err := s.dev.Bus()
	if err != nil {
		return err
	}

	var br *pcidev.Device
	if mode == BridgeAuto {
		if br = findBridge(devs, bus); br == nil {
			Debug("adapter %s is not behind a bridge", s.dev.Addr)
			return nil
		}
	} else {
		addr, err := pcidev.ParseBDF(mode)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidBridgeSpec, err)
		}
		for _, d := range devs {
			if d.Addr == addr {
				br = d
				break
			}
		}
		if br == nil {
			return fmt.Errorf("%w: no device at %s", ErrInvalidBridgeSpec, addr)
		}
		isBr, err := pcidev.IsBridge(br.Cfg)
		if err != nil {
			return err
		}
		if !isBr {
			return fmt.Errorf("%w: %s is not a bridge", ErrInvalidBridgeSpec, addr)
		}
		sec, sub, err := pcidev.BusRange(br.Cfg)
		if err != nil {
			return err
		}
		if bus < sec || bus > sub {
			return fmt.Errorf("%w: bus %02x not in %02x..%02x behind %s",
				ErrBridgeNotAttached, bus, sec, sub, addr)
		}
	}
	Debug("adapter is behind bridge %s", br.Addr)
	return s.widenBridgeWindow(br)
}

// findBridge returns the bridge whose secondary..subordinate bus range
// contains bus, or nil. The header type is always read from config space;
// the one cached by enumeration is not reliable here.
func findBridge(devs []*pcidev.Device, bus uint8) *pcidev.Device {
	for _, d := range devs {
		isBr, err := pcidev.IsBridge(d.Cfg)
		if err != nil || !isBr {
			continue
		}
		sec, sub, err := pcidev.BusRange(d.Cfg)
		if err != nil {
			continue
		}
		if bus >= sec && bus <= sub {
			return d
		}
	}
	return nil
}

// widenBridgeWindow grows the bridge's forwarded memory range until it
// covers the ROM window. The registers hold address bits 31:16 with the low
// four bits reserved. An already-covering window is left untouched; the
// range never shrinks.
func (s *Session) widenBridgeWindow(br *pcidev.Device) error {
	base := uint16(s.romBase>>16) &^ 0xf
	limit := uint16((s.romBase+s.prm.maxDecode-1)>>16) &^ 0xf

	cur, err := br.Cfg.ReadConfigRegister(pcidev.RegMemoryBase, 16)
	if err != nil {
		return err
	}
	if uint16(cur)&^0xf > base {
		Debug("adjusting memory base of bridge to %04x", base)
		if err := br.Cfg.WriteConfigRegister(pcidev.RegMemoryBase, 16, uint64(base)); err != nil {
			return err
		}
	}

	cur, err = br.Cfg.ReadConfigRegister(pcidev.RegMemoryLimit, 16)
	if err != nil {
		return err
	}
	if uint16(cur)&^0xf < limit {
		Debug("adjusting memory limit of bridge to %04x", limit)
		if err := br.Cfg.WriteConfigRegister(pcidev.RegMemoryLimit, 16, uint64(limit)); err != nil {
			return err
		}
	}
	return nil
}
