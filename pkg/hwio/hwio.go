// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hwio provides the privileged hardware access primitives used by
// the ROM programmer: x86 port I/O with explicit widths, and a mapping of a
// physical memory range through /dev/mem. Both require root.
package hwio

import (
	"github.com/u-root/u-root/pkg/memio"
)

// Port issues I/O port cycles. The In and Out fields default to the real
// port accessors and can be replaced in tests.
type Port struct {
	In  func(uint16, memio.UintN) error
	Out func(uint16, memio.UintN) error
}

// Inb reads one byte from port.
func (p *Port) Inb(port uint16) (uint8, error) {
	var data memio.Uint8
	if err := p.In(port, &data); err != nil {
		return 0, err
	}
	return uint8(data), nil
}

// Inl reads a 32-bit value from port.
func (p *Port) Inl(port uint16) (uint32, error) {
	var data memio.Uint32
	if err := p.In(port, &data); err != nil {
		return 0, err
	}
	return uint32(data), nil
}

// Outb writes one byte to port.
func (p *Port) Outb(port uint16, val uint8) error {
	data := memio.Uint8(val)
	return p.Out(port, &data)
}

// Outw writes a 16-bit value to port.
func (p *Port) Outw(port uint16, val uint16) error {
	data := memio.Uint16(val)
	return p.Out(port, &data)
}

// Outl writes a 32-bit value to port.
func (p *Port) Outl(port uint16, val uint32) error {
	data := memio.Uint32(val)
	return p.Out(port, &data)
}
