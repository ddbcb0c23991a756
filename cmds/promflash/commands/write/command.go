// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux && (amd64 || 386)

package write

import (
	"bytes"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/linuxboot/promflash/cmds/promflash/commands"
	"github.com/linuxboot/promflash/pkg/flash"
)

var _ commands.Command = (*Command)(nil)

type Command struct {
	commands.SessionArgs
	InputPath string `short:"i" long:"input" description:"ROM image to flash" required:"true"`
	NoVerify  bool   `long:"no-verify" description:"skip the read back after flashing"`
}

// ShortDescription explains what this command does in one line
func (cmd *Command) ShortDescription() string {
	return "erases the chip and flashes a ROM image"
}

// LongDescription explains what this verb does (without limitation in amount of lines)
func (cmd *Command) LongDescription() string {
	return "Erases the reachable part of the flash chip, programs the given image and " +
		"reads it back for verification. The image must not be larger than the " +
		"adapter's decode window; vendor images are 16 kB."
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("there are extra arguments")}
	}

	image, err := os.ReadFile(cmd.InputPath)
	if err != nil {
		return err
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

	m, chip, err := commands.ProbeChip(s)
	if err != nil {
		return err
	}
	if uint32(len(image)) > chip.TotalSize {
		return fmt.Errorf("image is %s but only %s of '%s' is reachable, try --allow-larger-window",
			humanize.IBytes(uint64(len(image))), humanize.IBytes(uint64(chip.TotalSize)), chip.Name)
	}

	if err := flash.Erase(m, chip, 0, chip.TotalSize); err != nil {
		return fmt.Errorf("erasing %s: %w", chip.Name, err)
	}
	if err := flash.WriteJEDEC(m, chip, 0, image); err != nil {
		return fmt.Errorf("writing %s: %w", chip.Name, err)
	}
	fmt.Printf("wrote %s to %s\n", humanize.IBytes(uint64(len(image))), chip.Name)

	if cmd.NoVerify {
		return nil
	}
	readback := make([]byte, len(image))
	if err := flash.ReadRange(m, 0, readback); err != nil {
		return fmt.Errorf("reading back: %w", err)
	}
	if !bytes.Equal(image, readback) {
		return fmt.Errorf("verification failed, the chip does not match '%s'", cmd.InputPath)
	}
	fmt.Println("verified")
	return nil
}
