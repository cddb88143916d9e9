// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundriesio/hub-link/context"
)

const testConfigYaml = `
host: devices.example.com
serial_number: SN-CMD-1
auth:
  type: shared_secret
  key: k
  secret: s
firmware:
  uuid: aaaa-bbbb
  version: 1.0.0
  platform: rpi4
  architecture: arm
  product: demo
`

func testArgs(t *testing.T, configYaml string) CommonArgs {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.Nil(t, os.WriteFile(path, []byte(configYaml), 0o600))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return CommonArgs{
		Config: path,
		ctx:    context.CtxWithLog(context.Background(), log),
	}
}

func TestSerialCmd(t *testing.T) {
	args := testArgs(t, testConfigYaml)
	var out bytes.Buffer
	cmd := SerialCmd{stdout: &out}
	require.Nil(t, cmd.Run(args))
	require.Equal(t, "SN-CMD-1\n", out.String())
}

func TestSerialCmdFromCommand(t *testing.T) {
	yaml := `
host: devices.example.com
serial_number_command: echo SN-FROM-CMD
auth:
  type: shared_secret
  key: k
  secret: s
firmware:
  uuid: aaaa-bbbb
  version: 1.0.0
  platform: rpi4
  architecture: arm
  product: demo
`
	args := testArgs(t, yaml)
	var out bytes.Buffer
	cmd := SerialCmd{stdout: &out}
	require.Nil(t, cmd.Run(args))
	require.Equal(t, "SN-FROM-CMD\n", out.String())
}

func TestSerialCmdMissingConfig(t *testing.T) {
	args := testArgs(t, testConfigYaml)
	args.Config = filepath.Join(t.TempDir(), "nonexistent.yaml")
	cmd := SerialCmd{}
	err := cmd.Run(args)
	require.ErrorIs(t, err, errConfig)
}

func TestRunCmdBadConfig(t *testing.T) {
	args := testArgs(t, "host: [unclosed")
	cmd := RunCmd{}
	err := cmd.Run(args)
	require.ErrorIs(t, err, errConfig)
}

func TestRunCmdBadAuthMaterial(t *testing.T) {
	yaml := `
host: devices.example.com
serial_number: SN-CMD-1
auth:
  type: mtls
  cert_path: /nonexistent/cert.pem
  key_path: /nonexistent/key.pem
  ca_cert_path: /nonexistent/ca.pem
firmware:
  uuid: aaaa-bbbb
  version: 1.0.0
  platform: rpi4
  architecture: arm
  product: demo
`
	args := testArgs(t, yaml)
	cmd := RunCmd{}
	err := cmd.Run(args)
	require.ErrorIs(t, err, errConfig)
}

func TestRunCmdUnresolvableSerial(t *testing.T) {
	yaml := `
host: devices.example.com
serial_number_command: "false"
auth:
  type: shared_secret
  key: k
  secret: s
firmware:
  uuid: aaaa-bbbb
  version: 1.0.0
  platform: rpi4
  architecture: arm
  product: demo
`
	args := testArgs(t, yaml)
	cmd := RunCmd{}
	err := cmd.Run(args)
	require.NotNil(t, err)
	require.NotErrorIs(t, err, errConfig)
}
