// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux && (amd64 || 386)

package probe

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/linuxboot/promflash/cmds/promflash/commands"
	"github.com/linuxboot/promflash/pkg/atapromise"
	"github.com/linuxboot/promflash/pkg/flash"
)

var _ commands.Command = (*Command)(nil)

type Command struct {
	commands.SessionArgs
	Supported bool `short:"s" long:"supported" description:"list supported adapters and chips instead of touching hardware"`
}

// ShortDescription explains what this command does in one line
func (cmd *Command) ShortDescription() string {
	return "detects the adapter and the flash chip behind it"
}

// LongDescription explains what this verb does (without limitation in amount of lines)
func (cmd *Command) LongDescription() string {
	return ""
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("there are extra arguments")}
	}
	if cmd.Supported {
		printSupported()
		return nil
	}

	s, err := cmd.Open()
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	entry := s.Entry()
	fmt.Printf("found %s %s [%04x:%04x] at %s (%s)\n",
		entry.VendorName, entry.DeviceName, entry.Vendor, entry.Device,
		s.Addr(), entry.Status)
	fmt.Printf("ROM window: %s at %#08x\n",
		humanize.IBytes(uint64(s.Window())), s.ROMBase())

	_, chip, err := commands.ProbeChip(s)
	if err != nil {
		return err
	}
	fmt.Printf("flash chip: %s %s (%s)\n",
		chip.Vendor, chip.Name, humanize.IBytes(uint64(chip.TotalSize)))
	return nil
}

func printSupported() {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Supported adapters")
	t.AppendHeader(table.Row{"Vendor", "Device", "PCI ID", "Status"})
	for _, e := range atapromise.SupportedDevices {
		t.AppendRow(table.Row{
			e.VendorName, e.DeviceName,
			fmt.Sprintf("%04x:%04x", e.Vendor, e.Device), e.Status,
		})
	}
	t.Render()

	t = table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Supported flash chips")
	t.AppendHeader(table.Row{"Vendor", "Chip", "JEDEC ID", "Size"})
	for _, c := range flash.Chips() {
		t.AppendRow(table.Row{
			c.Vendor, c.Name,
			fmt.Sprintf("%02x:%02x", c.ManufacturerID, c.ModelID),
			humanize.IBytes(uint64(c.TotalSize)),
		})
	}
	t.Render()
}
