// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flash

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// simChip emulates a parallel flash part with the JEDEC command state
// machine: three cycle unlock, byte program (clears bits only), chip and
// 4 KiB sector erase, and identification mode.
type simChip struct {
	mem    []byte
	seq    int
	idMode bool
	mfg    uint8
	model  uint8
}

func newSimChip(size int, mfg, model uint8) *simChip {
	s := &simChip{mem: make([]byte, size), mfg: mfg, model: model}
	for i := range s.mem {
		s.mem[i] = 0xff
	}
	return s
}

func (s *simChip) mask(addr uint32) uint32 {
	return addr & uint32(len(s.mem)-1)
}

func (s *simChip) readb(addr uint32) (uint8, error) {
	a := s.mask(addr)
	if s.idMode {
		switch a {
		case 0:
			return s.mfg, nil
		case 1:
			return s.model, nil
		}
	}
	return s.mem[a], nil
}

func (s *simChip) writeb(addr uint32, val uint8) error {
	a := s.mask(addr)
	switch {
	case s.seq == 0 && a == 0x555 && val == JEDECUnlock1:
		s.seq = 1
	case s.seq == 1 && a == 0x2aa && val == JEDECUnlock2:
		s.seq = 2
	case s.seq == 2 && a == 0x555:
		switch val {
		case 0xa0:
			s.seq = 3
			return nil
		case 0x90:
			s.idMode = true
		case 0x80:
			s.seq = 4
			return nil
		}
		if s.seq == 2 {
			s.seq = 0
		}
	case s.seq == 3:
		s.mem[a] &= val
		s.seq = 0
	case s.seq == 4 && a == 0x555 && val == JEDECUnlock1:
		s.seq = 5
	case s.seq == 5 && a == 0x2aa && val == JEDECUnlock2:
		s.seq = 6
	case s.seq == 6 && a == 0x555 && val == 0x10:
		for i := range s.mem {
			s.mem[i] = 0xff
		}
		s.seq = 0
	case s.seq == 6 && val == 0x30:
		sector := a &^ 0xfff
		for i := sector; i < sector+0x1000; i++ {
			s.mem[i] = 0xff
		}
		s.seq = 0
	default:
		if val == 0xf0 {
			s.idMode = false
		}
		s.seq = 0
	}
	return nil
}

func (s *simChip) master(t *testing.T) *Master {
	t.Helper()
	m := &Master{ChipReadb: s.readb, ChipWriteb: s.writeb}
	require.NoError(t, m.Complete())
	return m
}

func TestCompleteRequiresBytePrimitives(t *testing.T) {
	require.Error(t, (&Master{}).Complete())
	require.Error(t, (&Master{ChipReadb: func(uint32) (uint8, error) { return 0, nil }}).Complete())
}

func TestFallbackCompositions(t *testing.T) {
	s := newSimChip(128*1024, 0xc2, 0x18)
	copy(s.mem, []byte{0x11, 0x22, 0x33, 0x44})
	m := s.master(t)

	w, err := m.ChipReadw(0)
	require.NoError(t, err)
	require.Equal(t, uint16(0x2211), w)

	l, err := m.ChipReadl(0)
	require.NoError(t, err)
	require.Equal(t, uint32(0x44332211), l)

	buf := make([]byte, 4)
	require.NoError(t, m.ChipReadn(0, buf))
	require.Equal(t, []byte{0x11, 0x22, 0x33, 0x44}, buf)
}

func TestProbeJEDEC(t *testing.T) {
	s := newSimChip(128*1024, 0xc2, 0x18)
	m := s.master(t)

	mfg, model, err := ProbeJEDEC(m)
	require.NoError(t, err)
	require.Equal(t, uint8(0xc2), mfg)
	require.Equal(t, uint8(0x18), model)

	// ID mode must be exited: address 0 reads flash content again.
	b, err := m.ChipReadb(0)
	require.NoError(t, err)
	require.Equal(t, uint8(0xff), b)

	c, ok := ChipByID(mfg, model)
	require.True(t, ok)
	require.Equal(t, "MX29F001T", c.Name)
}

func TestEraseProgramReadback(t *testing.T) {
	s := newSimChip(128*1024, 0xc2, 0x18)
	m := s.master(t)
	c, ok := ChipByID(0xc2, 0x18)
	require.True(t, ok)

	// Dirty the array so erase has something to do.
	for i := range s.mem {
		s.mem[i] = 0x00
	}
	require.NoError(t, Erase(m, c, 0, c.TotalSize))

	img := bytes.Repeat([]byte{0x55, 0xaa, 0xff, 0x00}, 1024)
	require.NoError(t, WriteJEDEC(m, c, 0, img))

	got := make([]byte, len(img))
	require.NoError(t, ReadRange(m, 0, got))
	require.Equal(t, img, got)

	// Untouched cells stay erased.
	tail, err := m.ChipReadb(uint32(len(img)))
	require.NoError(t, err)
	require.Equal(t, uint8(0xff), tail)
}

func TestEraseSector(t *testing.T) {
	s := newSimChip(128*1024, 0xbf, 0xb5)
	m := s.master(t)
	c, ok := ChipByID(0xbf, 0xb5)
	require.True(t, ok)

	for i := range s.mem {
		s.mem[i] = 0x00
	}
	require.NoError(t, EraseSectorJEDEC(m, c, 0x2000, 0x1000))
	for i := 0x2000; i < 0x3000; i++ {
		require.Equal(t, uint8(0xff), s.mem[i], "offset %#x", i)
	}
	require.Equal(t, uint8(0x00), s.mem[0x1fff])
	require.Equal(t, uint8(0x00), s.mem[0x3000])
}

func TestEraseSkipsDisabledErasers(t *testing.T) {
	s := newSimChip(128*1024, 0xc2, 0x18)
	m := s.master(t)
	c, ok := ChipByID(0xc2, 0x18)
	require.True(t, ok)

	// Disable the whole-chip eraser; Erase must fall back to the sector
	// eraser.
	we := c.WholeChipEraser()
	require.NotNil(t, we)
	we.Erase = nil
	we.Eraseblocks[0].Count = 0

	for i := range s.mem {
		s.mem[i] = 0x00
	}
	require.NoError(t, Erase(m, c, 0, 0x1000))
	require.Equal(t, uint8(0xff), s.mem[0])

	for i := range c.BlockErasers {
		c.BlockErasers[i].Erase = nil
	}
	require.Error(t, Erase(m, c, 0, 0x1000))
}

func TestChipByIDReturnsCopy(t *testing.T) {
	c, ok := ChipByID(0xc2, 0x18)
	require.True(t, ok)
	c.TotalSize = 1
	c.BlockErasers[0].Eraseblocks[0].Size = 1

	c2, ok := ChipByID(0xc2, 0x18)
	require.True(t, ok)
	require.Equal(t, uint32(128*1024), c2.TotalSize)
	require.Equal(t, uint32(64*1024), c2.BlockErasers[0].Eraseblocks[0].Size)
}
