// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package firmware downloads update images and applies them with the fwup
// utility.
package firmware

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Failure classification for an update attempt.
var (
	ErrDownloadFailed   = errors.New("firmware download failed")
	ErrApplyUnavailable = errors.New("firmware writer unavailable")
	ErrApplyFailed      = errors.New("firmware writer failed")
	ErrIoFailed         = errors.New("firmware file i/o failed")
)

type Meta struct {
	Uuid         string `json:"uuid"`
	Version      string `json:"version"`
	Platform     string `json:"platform"`
	Architecture string `json:"architecture"`
	Product      string `json:"product"`
}

// Update is the payload of the server's "update" event.
type Update struct {
	FirmwareUrl  string `json:"firmware_url"`
	FirmwareMeta Meta   `json:"firmware_meta"`
}

func ParseUpdate(payload []byte) (Update, error) {
	var up Update
	if err := json.Unmarshal(payload, &up); err != nil {
		return Update{}, fmt.Errorf("invalid update payload: %w", err)
	}
	if up.FirmwareUrl == "" {
		return Update{}, errors.New("invalid update payload: missing firmware_url")
	}
	return up, nil
}
