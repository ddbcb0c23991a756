// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package atapromise

import (
	"github.com/linuxboot/promflash/pkg/flash"
	"github.com/linuxboot/promflash/pkg/log"
)

// fixupChip clamps a chip descriptor that claims more capacity than the
// adapter decodes. Erasers that operate on anything smaller than the whole
// chip would erase regions the window cannot rewrite, so they are disabled;
// the whole-chip eraser is resized to the window. Runs at most once per
// session, since a second pass would clamp the already-clamped sizes.
func (s *Session) fixupChip(c *flash.Chip) {
	if s.fixupDone {
		return
	}
	s.fixupDone = true

	size := c.TotalSize
	if size <= s.window {
		return
	}

	// Without a whole-chip eraser there is nothing the window could be
	// mapped onto: warn and leave the descriptor alone.
	var whole *flash.BlockEraser
	for i := range c.BlockErasers {
		be := &c.BlockErasers[i]
		if len(be.Eraseblocks) > 0 && be.Eraseblocks[0].Size == size {
			whole = be
			break
		}
	}
	if whole == nil {
		log.Warnf("failed to adjust size of chip %q (%d kB)", c.Name, size/1024)
		return
	}

	for i := range c.BlockErasers {
		be := &c.BlockErasers[i]
		if be == whole {
			continue
		}
		if len(be.Eraseblocks) > 0 {
			be.Eraseblocks[0].Count = 0
		}
		be.Erase = nil
	}

	whole.Eraseblocks[0].Size = s.window
	c.TotalSize = s.window
	if c.PageSize > s.window {
		c.PageSize = s.window
	}
	Debug("clamped chip %q to the %d kB decode window", c.Name, s.window/1024)
}
