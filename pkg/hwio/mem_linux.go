// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package hwio

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sys/unix"
)

const devMem = "/dev/mem"

// Mapping is a live /dev/mem mapping of a physical address range. It must be
// released with Close.
type Mapping struct {
	f    *os.File
	mem  []byte
	off  int
	size int
}

// MapPhys maps size bytes of physical address space starting at base. The
// base does not have to be page aligned.
func MapPhys(base int64, size int) (*Mapping, error) {
	f, err := os.OpenFile(devMem, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", devMem, err)
	}
	ps := int64(os.Getpagesize())
	page := base &^ (ps - 1)
	off := int(base - page)
	mem, err := unix.Mmap(int(f.Fd()), page, off+size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mapping %#x+%#x from %s: %w", base, size, devMem, err)
	}
	return &Mapping{f: f, mem: mem, off: off, size: size}, nil
}

// Bytes returns the mapped range. Accesses go straight to the bus.
func (m *Mapping) Bytes() []byte {
	return m.mem[m.off : m.off+m.size]
}

// Close unmaps the range and closes the underlying file.
func (m *Mapping) Close() error {
	var result error
	if err := unix.Munmap(m.mem); err != nil {
		result = multierror.Append(result, err)
	}
	if err := m.f.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}
