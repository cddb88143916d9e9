// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/foundriesio/hub-link/config"
	"github.com/foundriesio/hub-link/serial"
)

type SerialCmd struct {
	stdout io.Writer // Testing hook
}

func (c *SerialCmd) Run(args CommonArgs) error {
	cfg, err := config.Load(args.Config)
	if err != nil {
		return fmt.Errorf("%w: %s", errConfig, err)
	}
	sn, err := serial.Resolve(cfg.SerialNumber, cfg.SerialNumberCommand)
	if err != nil {
		return err
	}
	out := c.stdout
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintln(out, sn)
	return nil
}
