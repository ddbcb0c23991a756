// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flash carries the generic side of the ROM programmer: parallel
// flash chip descriptors, the bus master abstraction the hardware drivers
// implement, and the JEDEC command sequences built on top of it.
package flash

import "fmt"

// Debug can be set to log.Printf (or similar) to trace chip accesses.
var Debug = func(format string, v ...interface{}) {}

// Eraseblock is one run of equally sized erase regions.
type Eraseblock struct {
	Size  uint32 // bytes
	Count uint32
}

// EraseFunc erases [start, start+length) through the given master.
type EraseFunc func(m *Master, c *Chip, start, length uint32) error

// BlockEraser is one erase granularity a chip supports. Erase is nil when
// the eraser has been disabled.
type BlockEraser struct {
	Eraseblocks []Eraseblock
	Erase       EraseFunc
}

// Chip describes a parallel flash part. Drivers may clamp a descriptor down
// to what their hardware can decode, so callers must work on a private copy
// (see ChipByID).
type Chip struct {
	Name           string
	Vendor         string
	ManufacturerID uint8
	ModelID        uint8
	TotalSize      uint32 // bytes
	PageSize       uint32 // bytes
	BlockErasers   []BlockEraser
}

// WholeChipEraser returns the first eraser whose leading eraseblock spans
// the entire chip, or nil.
func (c *Chip) WholeChipEraser() *BlockEraser {
	for i := range c.BlockErasers {
		be := &c.BlockErasers[i]
		if len(be.Eraseblocks) == 1 && be.Eraseblocks[0].Size == c.TotalSize {
			return be
		}
	}
	return nil
}

func (c *Chip) String() string {
	return fmt.Sprintf("%s %s (%d kB)", c.Vendor, c.Name, c.TotalSize/1024)
}

// chips lists the parts seen on the supported adapters. The table is small
// on purpose: only 5V parallel chips with the JEDEC command framing belong
// here.
var chips = []Chip{
	{
		Name:           "MX29F001T",
		Vendor:         "Macronix",
		ManufacturerID: 0xc2,
		ModelID:        0x18,
		TotalSize:      128 * 1024,
		PageSize:       128,
		BlockErasers: []BlockEraser{
			{
				Eraseblocks: []Eraseblock{
					{Size: 64 * 1024, Count: 1},
					{Size: 32 * 1024, Count: 1},
					{Size: 8 * 1024, Count: 2},
					{Size: 4 * 1024, Count: 2},
					{Size: 8 * 1024, Count: 1},
				},
				Erase: EraseSectorJEDEC,
			},
			{
				Eraseblocks: []Eraseblock{{Size: 128 * 1024, Count: 1}},
				Erase:       EraseChipJEDEC,
			},
		},
	},
	{
		Name:           "SST39SF010A",
		Vendor:         "SST",
		ManufacturerID: 0xbf,
		ModelID:        0xb5,
		TotalSize:      128 * 1024,
		PageSize:       4096,
		BlockErasers: []BlockEraser{
			{
				Eraseblocks: []Eraseblock{{Size: 4 * 1024, Count: 32}},
				Erase:       EraseSectorJEDEC,
			},
			{
				Eraseblocks: []Eraseblock{{Size: 128 * 1024, Count: 1}},
				Erase:       EraseChipJEDEC,
			},
		},
	},
	{
		Name:           "W29EE011",
		Vendor:         "Winbond",
		ManufacturerID: 0xda,
		ModelID:        0xc1,
		TotalSize:      128 * 1024,
		PageSize:       128,
		BlockErasers: []BlockEraser{
			{
				Eraseblocks: []Eraseblock{{Size: 128 * 1024, Count: 1}},
				Erase:       EraseChipJEDEC,
			},
		},
	},
}

// ChipByID looks up a chip by its JEDEC identification bytes. The returned
// descriptor is a deep copy; drivers mutate it.
func ChipByID(manufacturer, model uint8) (*Chip, bool) {
	for i := range chips {
		if chips[i].ManufacturerID != manufacturer || chips[i].ModelID != model {
			continue
		}
		c := chips[i]
		c.BlockErasers = make([]BlockEraser, len(chips[i].BlockErasers))
		for j := range chips[i].BlockErasers {
			c.BlockErasers[j] = chips[i].BlockErasers[j]
			c.BlockErasers[j].Eraseblocks = append([]Eraseblock(nil),
				chips[i].BlockErasers[j].Eraseblocks...)
		}
		return &c, true
	}
	return nil, false
}

// Chips returns the supported chip table for display purposes.
func Chips() []Chip {
	return chips
}
