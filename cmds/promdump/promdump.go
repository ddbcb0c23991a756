// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// promdump dumps the raw ROM decode window of a Promise PDC2026x adapter,
// without probing or touching the flash chip. Useful to grab a quick
// backup before experimenting, or to inspect what the adapter actually
// decodes.
//
//   promdump backup.rom
//   promdump -z backup.rom.xz
//   promdump - | xxd | less

//go:build linux && (amd64 || 386)

package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"
	"github.com/ulikunitz/xz"

	"github.com/linuxboot/promflash/pkg/atapromise"
	"github.com/linuxboot/promflash/pkg/flash"
)

var (
	debug    = flag.BoolP("debug", "d", false, "enable debug prints")
	bridge   = flag.String("bridge", "auto", "bridge window fixup: auto, none, or an explicit bus:device.function")
	large    = flag.BoolP("allow-larger-window", "l", false, "dump the 32 kB window instead of 16 kB")
	compress = flag.BoolP("xz", "z", false, "compress the dump with xz")
)

func main() {
	flag.Parse()

	if *debug {
		atapromise.Debug = log.Printf
		flash.Debug = log.Printf
	}

	a := flag.Args()
	if len(a) != 1 {
		log.Fatal("usage: promdump [options] FILE ('-' for stdout)")
	}

	s, err := atapromise.New(atapromise.Options{
		Bridge:            *bridge,
		AllowLargerWindow: *large,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := s.Shutdown(); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	buf := make([]byte, s.Window())
	for i := range buf {
		b, err := s.ChipReadb(uint32(i))
		if err != nil {
			log.Fatalf("read at %#06x: %v", i, err)
		}
		buf[i] = b
	}

	var out io.Writer = os.Stdout
	if a[0] != "-" {
		f, err := os.Create(a[0])
		if err != nil {
			log.Fatal(err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Fatal(err)
			}
		}()
		out = f
	}

	if *compress {
		w, err := xz.NewWriter(out)
		if err != nil {
			log.Fatal(err)
		}
		if _, err := w.Write(buf); err != nil {
			log.Fatal(err)
		}
		if err := w.Close(); err != nil {
			log.Fatal(err)
		}
	} else if _, err := out.Write(buf); err != nil {
		log.Fatal(err)
	}

	fmt.Fprintf(os.Stderr, "dumped %s from %s at %s\n",
		humanize.IBytes(uint64(len(buf))), s.Entry().DeviceName, s.Addr())
}
