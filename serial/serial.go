// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package serial

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Resolve determines the device serial number. A static serial number wins
// over a discovery command; the command runs through the platform shell and
// its trimmed stdout becomes the serial.
func Resolve(serialNumber, command string) (string, error) {
	if serialNumber != "" {
		return serialNumber, nil
	}
	if command != "" {
		return runCommand(command)
	}
	return "", errors.New("no serial number configured")
}

func runCommand(command string) (string, error) {
	out, err := exec.Command("sh", "-c", command).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			return "", fmt.Errorf("serial number command failed with %s: %s", exitErr, stderr)
		}
		return "", fmt.Errorf("serial number command failed: %w", err)
	}

	sn := strings.TrimSpace(string(out))
	if sn == "" {
		return "", errors.New("serial number command produced empty output")
	}
	return sn, nil
}
