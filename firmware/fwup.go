// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package firmware

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/foundriesio/hub-link/context"
)

// Writer wraps the external fwup binary.
type Writer struct {
	Fwup    string // binary name or path, normally "fwup"
	Devpath string
	Task    string
}

// Version reports the writer's version, the first whitespace-delimited
// token of `fwup --version`. Returns "" when the binary is unavailable.
func (w Writer) Version(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, w.Fwup, "--version").Output()
	if err != nil {
		return ""
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Apply runs `fwup -a -d devpath -i image -t task`. The process is started
// without a cancelable context: once the writer is flashing, killing it
// mid-write is worse than letting it finish.
func (w Writer) Apply(ctx context.Context, imagePath string) error {
	log := context.CtxGetLog(ctx)
	log.Info("applying firmware", "image", imagePath, "devpath", w.Devpath, "task", w.Task)

	out, err := exec.Command(w.Fwup, "-a", "-d", w.Devpath, "-i", imagePath, "-t", w.Task).CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Warn("fwup failed", "exit", exitErr.ExitCode(), "output", strings.TrimSpace(string(out)))
			return fmt.Errorf("%w: exit %d", ErrApplyFailed, exitErr.ExitCode())
		}
		return fmt.Errorf("%w: %s", ErrApplyUnavailable, err)
	}

	log.Info("firmware applied")
	return nil
}
