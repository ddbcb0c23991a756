// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// promflash reads and writes the boot ROM attached to Promise PDC2026x
// ATA controllers.
//
// Synopsis:
//     promflash probe [-s] [options]
//     promflash read -o ROM_FILE [options]
//     promflash erase [options]
//     promflash write -i ROM_FILE [--no-verify] [options]
//     promflash verify -i ROM_FILE [options]
//
// An example:
//     promflash probe
//     promflash read -o backup.rom
//     promflash write -i ultra100.rom
//
// Description:
//     probe:  Detect the adapter and the flash chip behind it
//     read:   Read the ROM into a file
//     erase:  Erase the reachable part of the flash chip
//     write:  Erase, flash and verify a ROM image
//     verify: Compare the chip contents against a ROM image
//
// All verbs need root; the adapter is driven through raw port I/O and
// /dev/mem.

//go:build linux && (amd64 || 386)

package main

import (
	"log"

	"github.com/jessevdk/go-flags"

	"github.com/linuxboot/promflash/cmds/promflash/commands"
	"github.com/linuxboot/promflash/cmds/promflash/commands/erase"
	"github.com/linuxboot/promflash/cmds/promflash/commands/probe"
	"github.com/linuxboot/promflash/cmds/promflash/commands/read"
	"github.com/linuxboot/promflash/cmds/promflash/commands/verify"
	"github.com/linuxboot/promflash/cmds/promflash/commands/write"
)

var (
	knownCommands = map[string]commands.Command{
		"probe":  &probe.Command{},
		"read":   &read.Command{},
		"erase":  &erase.Command{},
		"write":  &write.Command{},
		"verify": &verify.Command{},
	}
)

func main() {
	flagsParser := flags.NewParser(nil, flags.Default)
	for commandName, command := range knownCommands {
		_, err := flagsParser.AddCommand(commandName, command.ShortDescription(), command.LongDescription(), command)
		if err != nil {
			panic(err)
		}
	}

	// parse arguments and execute the appropriate command
	if _, err := flagsParser.Parse(); err != nil {
		log.Fatal(err)
	}
}
