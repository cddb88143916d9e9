// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alexflint/go-arg"

	"github.com/foundriesio/hub-link/context"
)

type CommonArgs struct {
	Config string `arg:"--config" default:"/etc/hub_link/config.yaml" help:"Path to the agent configuration file"`

	Run    *RunCmd    `arg:"subcommand:run" help:"Run the update agent daemon"`
	Serial *SerialCmd `arg:"subcommand:serial" help:"Print the resolved device serial number"`

	ctx context.Context
}

// errConfig marks startup failures caused by configuration or auth
// material; they exit with code 2 so provisioning scripts can tell them
// apart from runtime failures.
var errConfig = errors.New("invalid configuration")

func main() {
	log, err := context.InitLogger("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(2)
		return
	}

	args := CommonArgs{
		ctx: context.CtxWithLog(context.Background(), log),
	}
	p := arg.MustParse(&args)

	switch {
	case args.Run != nil:
		err = args.Run.Run(args)
	case args.Serial != nil:
		err = args.Serial.Run(args)
	default:
		p.Fail("missing required subcommand")
	}
	if err != nil {
		log.Error("command failed", "error", err)
		if errors.Is(err, errConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
