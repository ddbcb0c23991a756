// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux && (amd64 || 386)

package atapromise

import (
	"fmt"

	"github.com/linuxboot/promflash/pkg/hwio"
	"github.com/linuxboot/promflash/pkg/pcidev"
)

// New scans the live PCI bus, brings up the adapter and maps the ROM alias.
// Requires root.
func New(opts Options) (*Session, error) {
	devs, err := pcidev.Scan()
	if err != nil {
		return nil, err
	}
	s, err := newSession(devs, opts, hwio.NewPort())
	if err != nil {
		return nil, err
	}
	if s.prm.mmioAlias {
		m, err := hwio.MapPhys(int64(s.romBase), int(s.window))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMappingFailed, err)
		}
		s.rom = m.Bytes()
		s.romC = m
	}
	return s, nil
}
