// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package firmware

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/foundriesio/hub-link/context"
)

// download fetches the pre-signed firmware URL into destPath, truncating
// any prior file. The image is fully on disk before the writer runs; there
// is no streaming apply. Percent progress is reported through onProgress
// only when the server sent a Content-Length.
func download(ctx context.Context, client *http.Client, url, destPath string, onProgress func(percent int)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDownloadFailed, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDownloadFailed, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			context.CtxGetLog(ctx).Warn("failed to close download body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: HTTP %d", ErrDownloadFailed, resp.StatusCode)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrIoFailed, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			context.CtxGetLog(ctx).Warn("failed to close firmware file", "error", err)
		}
	}()

	total := resp.ContentLength
	var written int64
	buf := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := file.Write(buf[:n]); werr != nil {
				return fmt.Errorf("%w: %s", ErrIoFailed, werr)
			}
			written += int64(n)
			if total > 0 && onProgress != nil {
				onProgress(percent(written, total))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("%w: %s", ErrDownloadFailed, rerr)
		}
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("%w: %s", ErrIoFailed, err)
	}
	if total > 0 && written != total {
		return fmt.Errorf("%w: truncated body, got %d of %d bytes", ErrDownloadFailed, written, total)
	}

	context.CtxGetLog(ctx).Info("firmware downloaded", "path", destPath, "bytes", written)
	return nil
}

func percent(written, total int64) int {
	p := int(written * 100 / total)
	if p > 100 {
		p = 100
	}
	return p
}
