// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/foundriesio/hub-link/auth"
	"github.com/foundriesio/hub-link/client"
	"github.com/foundriesio/hub-link/config"
	"github.com/foundriesio/hub-link/context"
	"github.com/foundriesio/hub-link/firmware"
	"github.com/foundriesio/hub-link/serial"
	"github.com/foundriesio/hub-link/storage"
)

type RunCmd struct{}

func (c *RunCmd) Run(args CommonArgs) error {
	log := context.CtxGetLog(args.ctx)

	cfg, err := config.Load(args.Config)
	if err != nil {
		return fmt.Errorf("%w: %s", errConfig, err)
	}
	authenticator, err := auth.New(cfg.Auth)
	if err != nil {
		return fmt.Errorf("%w: %s", errConfig, err)
	}
	sn, err := serial.Resolve(cfg.SerialNumber, cfg.SerialNumberCommand)
	if err != nil {
		return fmt.Errorf("unable to determine device identity: %w", err)
	}
	log.Info("resolved device serial number", "serial", sn)

	journal, err := storage.OpenJournal(cfg.DataDir)
	if err != nil {
		// The agent still updates without local bookkeeping
		log.Warn("update journal unavailable", "error", err)
		journal = nil
	} else {
		defer func() {
			if err := journal.Close(); err != nil {
				log.Warn("failed to close update journal", "error", err)
			}
		}()
	}

	writer := firmware.Writer{Fwup: "fwup", Devpath: cfg.FwupDevpath, Task: cfg.FwupTask}
	fwupVersion := writer.Version(args.ctx)
	if fwupVersion == "" {
		log.Warn("unable to discover fwup version")
	}

	executor := &firmware.Executor{
		Client:  &http.Client{},
		Writer:  writer,
		DataDir: cfg.DataDir,
		Journal: journal,
	}

	ctx, stop := signal.NotifyContext(args.ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	supervisor := &client.Supervisor{
		NewSession: func() *client.Session {
			return &client.Session{
				Url:         cfg.SocketUrl(),
				Serial:      sn,
				Auth:        authenticator,
				Executor:    executor,
				Heartbeat:   time.Duration(cfg.HeartbeatIntervalSecs) * time.Second,
				ApiVersion:  cfg.DeviceApiVersion,
				FwupVersion: fwupVersion,
				Firmware:    cfg.Firmware,
			}
		},
	}

	log.Info("starting hub-link agent", "host", cfg.Host, "serial", sn)
	supervisor.Run(ctx)
	return nil
}
