// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flash

import (
	"fmt"
	"time"
)

// JEDEC command framing for 5V parallel chips. Commands are preceded by the
// fixed three cycle unlock handshake; the addresses are decoded by the chip
// modulo its command address width, so they work through a narrow decode
// window too.
const (
	JEDECUnlockAddr1 = 0x555
	JEDECUnlockAddr2 = 0x2aa

	JEDECUnlock1 = 0xaa
	JEDECUnlock2 = 0x55

	jedecCmdProgram     = 0xa0
	jedecCmdEraseSetup  = 0x80
	jedecCmdChipErase   = 0x10
	jedecCmdSectorErase = 0x30
	jedecCmdEnterID     = 0x90
	jedecCmdExitID      = 0xf0

	// Byte programming completes in microseconds, chip erase can take
	// seconds on large parts.
	programPollRetries = 512
	erasePollRetries   = 8192
	erasePollDelay     = time.Millisecond
)

func unlock(m *Master) error {
	if err := m.ChipWriteb(JEDECUnlockAddr1, JEDECUnlock1); err != nil {
		return err
	}
	return m.ChipWriteb(JEDECUnlockAddr2, JEDECUnlock2)
}

func command(m *Master, cmd uint8) error {
	if err := unlock(m); err != nil {
		return err
	}
	return m.ChipWriteb(JEDECUnlockAddr1, cmd)
}

// ProbeJEDEC puts the chip into identification mode and reads the
// manufacturer and model bytes.
func ProbeJEDEC(m *Master) (manufacturer, model uint8, err error) {
	if err := command(m, jedecCmdEnterID); err != nil {
		return 0, 0, err
	}
	manufacturer, err = m.ChipReadb(0)
	if err != nil {
		return 0, 0, err
	}
	model, err = m.ChipReadb(1)
	if err != nil {
		return 0, 0, err
	}
	if err := m.ChipWriteb(0, jedecCmdExitID); err != nil {
		return 0, 0, err
	}
	Debug("JEDEC id: manufacturer %#02x, model %#02x", manufacturer, model)
	return manufacturer, model, nil
}

// ReadRange fills buf from the chip starting at start.
func ReadRange(m *Master, start uint32, buf []byte) error {
	return m.ChipReadn(start, buf)
}

// programByte issues a single byte program command and polls until the cell
// reads back.
func programByte(m *Master, addr uint32, val uint8) error {
	if err := command(m, jedecCmdProgram); err != nil {
		return err
	}
	if err := m.ChipWriteb(addr, val); err != nil {
		return err
	}
	for i := 0; i < programPollRetries; i++ {
		got, err := m.ChipReadb(addr)
		if err != nil {
			return err
		}
		if got == val {
			return nil
		}
	}
	return fmt.Errorf("programming %#02x at %#x did not complete", val, addr)
}

// WriteJEDEC programs data starting at start. Erased bytes (0xff) are
// skipped; the destination is assumed to be erased.
func WriteJEDEC(m *Master, c *Chip, start uint32, data []byte) error {
	for i, b := range data {
		if b == 0xff {
			continue
		}
		if err := programByte(m, start+uint32(i), b); err != nil {
			return err
		}
	}
	return nil
}

// pollErased waits for addr to read as erased flash.
func pollErased(m *Master, addr uint32) error {
	for i := 0; i < erasePollRetries; i++ {
		got, err := m.ChipReadb(addr)
		if err != nil {
			return err
		}
		if got == 0xff {
			return nil
		}
		time.Sleep(erasePollDelay)
	}
	return fmt.Errorf("erase did not complete at %#x", addr)
}

// EraseChipJEDEC issues a whole-chip erase. start and length are accepted
// for the EraseFunc signature; the command always erases the full part.
func EraseChipJEDEC(m *Master, c *Chip, start, length uint32) error {
	if err := command(m, jedecCmdEraseSetup); err != nil {
		return err
	}
	if err := command(m, jedecCmdChipErase); err != nil {
		return err
	}
	return pollErased(m, start)
}

// EraseSectorJEDEC erases the sector containing start.
func EraseSectorJEDEC(m *Master, c *Chip, start, length uint32) error {
	if err := command(m, jedecCmdEraseSetup); err != nil {
		return err
	}
	if err := unlock(m); err != nil {
		return err
	}
	if err := m.ChipWriteb(start, jedecCmdSectorErase); err != nil {
		return err
	}
	return pollErased(m, start)
}

// Erase picks the largest usable eraser covering [start, start+length) and
// runs it. Drivers may have disabled erasers; those are skipped.
func Erase(m *Master, c *Chip, start, length uint32) error {
	for i := len(c.BlockErasers) - 1; i >= 0; i-- {
		be := &c.BlockErasers[i]
		if be.Erase == nil || len(be.Eraseblocks) == 0 || be.Eraseblocks[0].Count == 0 {
			continue
		}
		Debug("erasing %#x+%#x with eraser %d", start, length, i)
		return be.Erase(m, c, start, length)
	}
	return fmt.Errorf("chip %q has no usable eraser", c.Name)
}
