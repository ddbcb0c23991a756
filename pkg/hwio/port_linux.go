// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux && (amd64 || 386)

package hwio

import (
	"github.com/u-root/u-root/pkg/memio"
)

// NewPort returns a Port backed by the machine's I/O port space.
func NewPort() *Port {
	return &Port{
		In:  memio.In,
		Out: memio.Out,
	}
}
