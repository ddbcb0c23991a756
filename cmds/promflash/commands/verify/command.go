// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux && (amd64 || 386)

package verify

import (
	"fmt"
	"os"

	"github.com/linuxboot/promflash/cmds/promflash/commands"
	"github.com/linuxboot/promflash/pkg/flash"
)

var _ commands.Command = (*Command)(nil)

type Command struct {
	commands.SessionArgs
	InputPath string `short:"i" long:"input" description:"ROM image to compare the chip against" required:"true"`
}

// ShortDescription explains what this command does in one line
func (cmd *Command) ShortDescription() string {
	return "compares the chip contents against a ROM image"
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
		return fmt.Errorf("image is larger than the reachable part of %s", chip.Name)
	}

	readback := make([]byte, len(image))
	if err := flash.ReadRange(m, 0, readback); err != nil {
		return err
	}
	for i := range image {
		if image[i] != readback[i] {
			return fmt.Errorf("mismatch at %#06x: chip has %#02x, image has %#02x",
				i, readback[i], image[i])
		}
	}
	fmt.Printf("chip matches '%s'\n", cmd.InputPath)
	return nil
}
