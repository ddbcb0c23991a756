// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux && (amd64 || 386)

package erase

import (
	"fmt"
	"os"

	"github.com/linuxboot/promflash/cmds/promflash/commands"
	"github.com/linuxboot/promflash/pkg/flash"
)

var _ commands.Command = (*Command)(nil)

type Command struct {
	commands.SessionArgs
}

// ShortDescription explains what this command does in one line
func (cmd *Command) ShortDescription() string {
	return "erases the reachable part of the flash chip"
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
	if err := flash.Erase(m, chip, 0, chip.TotalSize); err != nil {
		return fmt.Errorf("erasing %s: %w", chip.Name, err)
	}
	fmt.Printf("erased %s\n", chip.Name)
	return nil
}
