// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package firmware

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeFakeFwup drops a shell script standing in for the fwup binary.
func writeFakeFwup(t *testing.T, script string) string {
	path := filepath.Join(t.TempDir(), "fwup")
	require.Nil(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func TestWriterVersion(t *testing.T) {
	w := Writer{Fwup: writeFakeFwup(t, `echo "1.10.1"`)}
	require.Equal(t, "1.10.1", w.Version(testCtx()))
}

func TestWriterVersionFirstToken(t *testing.T) {
	w := Writer{Fwup: writeFakeFwup(t, `echo "1.10.1 (build 2024)"`)}
	require.Equal(t, "1.10.1", w.Version(testCtx()))
}

func TestWriterVersionUnavailable(t *testing.T) {
	w := Writer{Fwup: "/nonexistent/fwup"}
	require.Equal(t, "", w.Version(testCtx()))

	w = Writer{Fwup: writeFakeFwup(t, "exit 1")}
	require.Equal(t, "", w.Version(testCtx()))
}

func TestWriterApply(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	w := Writer{
		Fwup:    writeFakeFwup(t, `echo "$@" > `+argsFile),
		Devpath: "/dev/null",
		Task:    "upgrade",
	}

	require.Nil(t, w.Apply(testCtx(), "/tmp/firmware.fw"))

	args, err := os.ReadFile(argsFile)
	require.Nil(t, err)
	require.Equal(t, "-a -d /dev/null -i /tmp/firmware.fw -t upgrade", strings.TrimSpace(string(args)))
}

func TestWriterApplyFailed(t *testing.T) {
	w := Writer{Fwup: writeFakeFwup(t, "echo boom >&2; exit 3"), Devpath: "/dev/null", Task: "upgrade"}
	err := w.Apply(testCtx(), "/tmp/firmware.fw")
	require.ErrorIs(t, err, ErrApplyFailed)
	require.Contains(t, err.Error(), "exit 3")
}

func TestWriterApplyUnavailable(t *testing.T) {
	w := Writer{Fwup: "/nonexistent/fwup", Devpath: "/dev/null", Task: "upgrade"}
	err := w.Apply(testCtx(), "/tmp/firmware.fw")
	require.ErrorIs(t, err, ErrApplyUnavailable)
}
