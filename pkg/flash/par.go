// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flash

import (
	"errors"
)

// Master is the parallel bus master abstraction. A hardware driver must
// supply ChipReadb and ChipWriteb; everything else is optional and filled in
// by Complete with generic compositions of the byte primitives, the same way
// chip-select style programmers expose only byte cycles.
type Master struct {
	ChipReadb  func(addr uint32) (uint8, error)
	ChipWriteb func(addr uint32, val uint8) error

	ChipReadw  func(addr uint32) (uint16, error)
	ChipReadl  func(addr uint32) (uint32, error)
	ChipReadn  func(addr uint32, buf []byte) error
	ChipWritew func(addr uint32, val uint16) error
	ChipWritel func(addr uint32, val uint32) error
	ChipWriten func(addr uint32, buf []byte) error
}

// Complete validates the master and installs fallback accessors. It must be
// called before the master is used.
func (m *Master) Complete() error {
	if m.ChipReadb == nil || m.ChipWriteb == nil {
		return errors.New("bus master must provide byte read and write primitives")
	}
	if m.ChipReadw == nil {
		m.ChipReadw = func(addr uint32) (uint16, error) {
			lo, err := m.ChipReadb(addr)
			if err != nil {
				return 0, err
			}
			hi, err := m.ChipReadb(addr + 1)
			if err != nil {
				return 0, err
			}
			return uint16(hi)<<8 | uint16(lo), nil
		}
	}
	if m.ChipReadl == nil {
		m.ChipReadl = func(addr uint32) (uint32, error) {
			lo, err := m.ChipReadw(addr)
			if err != nil {
				return 0, err
			}
			hi, err := m.ChipReadw(addr + 2)
			if err != nil {
				return 0, err
			}
			return uint32(hi)<<16 | uint32(lo), nil
		}
	}
	if m.ChipReadn == nil {
		m.ChipReadn = func(addr uint32, buf []byte) error {
			for i := range buf {
				b, err := m.ChipReadb(addr + uint32(i))
				if err != nil {
					return err
				}
				buf[i] = b
			}
			return nil
		}
	}
	if m.ChipWritew == nil {
		m.ChipWritew = func(addr uint32, val uint16) error {
			if err := m.ChipWriteb(addr, uint8(val)); err != nil {
				return err
			}
			return m.ChipWriteb(addr+1, uint8(val>>8))
		}
	}
	if m.ChipWritel == nil {
		m.ChipWritel = func(addr uint32, val uint32) error {
			if err := m.ChipWritew(addr, uint16(val)); err != nil {
				return err
			}
			return m.ChipWritew(addr+2, uint16(val>>16))
		}
	}
	if m.ChipWriten == nil {
		m.ChipWriten = func(addr uint32, buf []byte) error {
			for i, b := range buf {
				if err := m.ChipWriteb(addr+uint32(i), b); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return nil
}
