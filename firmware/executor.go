// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package firmware

import (
	"net/http"
	"os"

	"github.com/foundriesio/hub-link/context"
	"github.com/foundriesio/hub-link/storage"
)

// Executor runs one update at a time: download the image into the data
// directory, hand it to the writer, clean up. The channel session maps the
// returned error to the terminal status it reports upstream.
type Executor struct {
	Client  *http.Client
	Writer  Writer
	DataDir string
	Journal *storage.Journal // optional, best-effort bookkeeping
}

// Run performs the full update flow. onProgress receives raw download
// percents in [0, 100], non-decreasing, and a final 100 once the writer
// succeeds. The downloaded file is removed on success and retained on
// failure for post-mortem inspection.
func (e *Executor) Run(ctx context.Context, up Update, onProgress func(percent int)) error {
	log := context.CtxGetLog(ctx)
	corId := e.journalStart(ctx, up)

	err := e.run(ctx, up, onProgress)
	if err == nil {
		e.journalFinish(ctx, corId, storage.StatusHandled)
		if onProgress != nil {
			onProgress(100)
		}
		return nil
	}

	log.Warn("firmware update failed", "uuid", up.FirmwareMeta.Uuid, "error", err)
	e.journalFinish(ctx, corId, storage.StatusFailed)
	return err
}

func (e *Executor) run(ctx context.Context, up Update, onProgress func(percent int)) error {
	if err := os.MkdirAll(e.DataDir, 0o755); err != nil {
		return ErrIoFailed
	}
	dest := storage.FirmwarePath(e.DataDir)

	if err := download(ctx, e.Client, up.FirmwareUrl, dest, onProgress); err != nil {
		return err
	}
	if err := e.Writer.Apply(ctx, dest); err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil {
		context.CtxGetLog(ctx).Warn("failed to remove firmware image", "path", dest, "error", err)
	}
	return nil
}

func (e *Executor) journalStart(ctx context.Context, up Update) string {
	if e.Journal == nil {
		return ""
	}
	corId, err := e.Journal.Start(up.FirmwareMeta.Uuid, up.FirmwareMeta.Version, up.FirmwareUrl)
	if err != nil {
		context.CtxGetLog(ctx).Warn("failed to journal update", "error", err)
	}
	return corId
}

func (e *Executor) journalFinish(ctx context.Context, corId, status string) {
	if e.Journal == nil || corId == "" {
		return
	}
	if err := e.Journal.Finish(corId, status); err != nil {
		context.CtxGetLog(ctx).Warn("failed to journal update status", "error", err)
	}
}

// ProgressGate throttles progress reports: a percent passes only when it
// exceeds the last passed value by at least Step, except 100 which always
// passes once. Reported values never decrease.
type ProgressGate struct {
	Step int

	last     int
	sentDone bool
}

func (g *ProgressGate) Pass(percent int) (int, bool) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	step := g.Step
	if step == 0 {
		step = 5
	}
	if g.sentDone {
		return 0, false
	}
	if percent == 100 {
		g.sentDone = true
		g.last = 100
		return 100, true
	}
	if percent-g.last < step {
		return 0, false
	}
	g.last = percent
	return percent, true
}
