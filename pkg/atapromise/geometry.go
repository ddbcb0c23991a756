// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package atapromise

import (
	"fmt"

	"github.com/linuxboot/promflash/pkg/pcidev"
)

const (
	// Vendor ROM images are 16 kB; defaulting to that keeps unpadded
	// files flashable.
	defaultWindow = 16 * 1024
	largeWindow   = 32 * 1024

	// ArchMaxDecode is the widest window any adapter generation drives.
	ArchMaxDecode = 128 * 1024

	// Address bits implemented by the expansion ROM BAR.
	romProbeMask = 0xfffff800
)

// resolveWindow determines how many bytes of ROM the adapter decodes
// through the current window. The platform-reported expansion ROM size is
// preferred; where there is none, the expansion ROM BAR is sized by probe.
func (s *Session) resolveWindow() error {
	reported := uint32(0)
	if s.dev.RomSize > 0 {
		reported = uint32(s.dev.RomSize)
		Debug("platform reports %d kB of expansion ROM", reported/1024)
	} else if probed, err := probeROMDecode(s.dev.Cfg); err != nil {
		Debug("expansion ROM BAR probe: %v", err)
	} else {
		reported = probed
		Debug("expansion ROM BAR probe: %d kB", reported/1024)
	}
	if reported > s.prm.maxDecode {
		reported = s.prm.maxDecode
	}

	if s.opts.AllowLargerWindow {
		// Only the platform-reported size counts here: the BAR probe
		// measures the decoder width, not how much ROM is populated.
		if uint32(s.dev.RomSize) < largeWindow {
			return fmt.Errorf("%w: ROM size is reported as %d kB, cannot flash %d kB images",
				ErrGeometryProbeFailed, s.dev.RomSize/1024, largeWindow/1024)
		}
		s.window = largeWindow
		return nil
	}

	if reported == 0 {
		return fmt.Errorf("%w: no size reported and probe came up empty", ErrGeometryProbeFailed)
	}
	s.window = defaultWindow
	if reported < s.window {
		s.window = reported
	}
	return nil
}

// probeROMDecode sizes the expansion ROM BAR: write the all-ones address
// pattern, read back which bits the decoder actually drives, and restore
// the original value. Restoration happens on every exit path.
func probeROMDecode(cs pcidev.ConfigSpace) (size uint32, err error) {
	orig, err := cs.ReadConfigRegister(pcidev.RegExpansionROM, 32)
	if err != nil {
		return 0, err
	}
	defer func() {
		if rerr := cs.WriteConfigRegister(pcidev.RegExpansionROM, 32, orig); rerr != nil && err == nil {
			size = 0
			err = fmt.Errorf("restoring expansion ROM BAR: %w", rerr)
		}
	}()

	if werr := cs.WriteConfigRegister(pcidev.RegExpansionROM, 32, romProbeMask); werr != nil {
		return 0, werr
	}
	probed, rerr := cs.ReadConfigRegister(pcidev.RegExpansionROM, 32)
	if rerr != nil {
		return 0, rerr
	}
	bits := uint32(probed) & romProbeMask
	if bits == 0 {
		return 0, nil
	}
	return ^bits + 1, nil
}
