// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package atapromise

import (
	"github.com/linuxboot/promflash/pkg/flash"
	"github.com/linuxboot/promflash/pkg/log"
)

// writePollRetries bounds the diagnostic readback after a program cycle.
// Some adapter revisions complete the program asynchronously beyond this
// budget, which is why a miss is only logged.
const writePollRetries = 16

// unlockSeq is the three cycle JEDEC handshake the engine watches for.
// Once it completes, the next write cycle is the program data phase and
// needs the adapter's commit behavior; indirect writes alone do not commit
// data on all revisions.
var unlockSeq = [3]struct {
	addr uint32
	val  uint8
}{
	{flash.JEDECUnlockAddr1, flash.JEDECUnlock1},
	{flash.JEDECUnlockAddr2, flash.JEDECUnlock2},
	{flash.JEDECUnlockAddr1, 0xa0},
}

// mask folds an address into the decode window, the same aliasing the
// adapter's address decoder applies. Out-of-range addresses wrap; the
// hardware has no bounds checking to mirror.
func (s *Session) mask(addr uint32) uint32 {
	return addr & (s.window - 1)
}

// ChipWriteb issues one write cycle through the indirect address/data
// register.
func (s *Session) ChipWriteb(addr uint32, val uint8) error {
	if s.chip != nil {
		s.fixupChip(s.chip)
	}
	a := s.mask(addr)
	data := (s.romBase+a)<<8 | uint32(val)
	if err := s.port.Outl(s.ioBase+s.prm.dataReg, data); err != nil {
		return err
	}

	if s.unlock == len(unlockSeq) {
		// This write was the program data cycle.
		s.unlock = 0
		s.confirmProgram(a, val)
	} else if a == unlockSeq[s.unlock].addr && val == unlockSeq[s.unlock].val {
		s.unlock++
	} else {
		s.unlock = 0
	}
	return nil
}

// ChipReadb returns one byte of ROM.
func (s *Session) ChipReadb(addr uint32) (uint8, error) {
	if s.chip != nil {
		s.fixupChip(s.chip)
	}
	return s.readByte(s.mask(addr))
}

// readByte reads an already-masked address, preferring the memory alias.
func (s *Session) readByte(a uint32) (uint8, error) {
	if s.rom != nil {
		return s.rom[a], nil
	}
	// No usable alias on this model: push the address out through the
	// indirect register and pull the data back through the byte port.
	if err := s.port.Outl(s.ioBase+s.prm.dataReg, (s.romBase+a)<<8); err != nil {
		return 0, err
	}
	return s.port.Inb(s.ioBase + s.prm.dataReg)
}

// confirmProgram re-reads a freshly programmed cell. Purely diagnostic: the
// generic algorithm above owns verification and retries.
func (s *Session) confirmProgram(addr uint32, val uint8) {
	for i := 0; i < writePollRetries; i++ {
		got, err := s.readByte(addr)
		if err != nil {
			log.Warnf("readback after program at %#x: %v", addr, err)
			return
		}
		if got == val {
			return
		}
	}
	log.Warnf("program at %#x did not read back as %#02x within %d polls",
		addr, val, writePollRetries)
}
