// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux && (amd64 || 386)

package commands

import (
	"fmt"
	"log"

	"github.com/linuxboot/promflash/pkg/atapromise"
	"github.com/linuxboot/promflash/pkg/flash"
)

// SessionArgs are the flags shared by every verb that opens the adapter.
type SessionArgs struct {
	Bridge            string `long:"bridge" description:"bridge window fixup: auto, none, or an explicit [domain:]bus:device.function" default:"auto"`
	AllowLargerWindow bool   `long:"allow-larger-window" description:"use a 32 kB decode window instead of the default 16 kB"`
	Debug             bool   `short:"d" long:"debug" description:"enable debug prints"`
}

// Open brings up an adapter session with the selected options.
func (a *SessionArgs) Open() (*atapromise.Session, error) {
	if a.Debug {
		atapromise.Debug = log.Printf
		flash.Debug = log.Printf
	}
	return atapromise.New(atapromise.Options{
		Bridge:            a.Bridge,
		AllowLargerWindow: a.AllowLargerWindow,
	})
}

// ProbeChip identifies the flash part behind the session and attaches its
// descriptor, so accesses through the returned master respect the part's
// real geometry.
func ProbeChip(s *atapromise.Session) (*flash.Master, *flash.Chip, error) {
	m, err := s.Master()
	if err != nil {
		return nil, nil, err
	}
	manufacturer, model, err := flash.ProbeJEDEC(m)
	if err != nil {
		return nil, nil, fmt.Errorf("probing flash chip: %w", err)
	}
	chip, ok := flash.ChipByID(manufacturer, model)
	if !ok {
		return nil, nil, fmt.Errorf("unknown flash chip %02x:%02x", manufacturer, model)
	}
	s.UseChip(chip)
	// The first access clamps oversized descriptors to the decode window;
	// force it now so callers see the final geometry.
	if _, err := s.ChipReadb(0); err != nil {
		return nil, nil, err
	}
	return m, chip, nil
}
