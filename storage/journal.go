// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package storage keeps the agent's local state under the configured data
// directory: the downloaded firmware image and a journal of update
// attempts for post-mortem inspection.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const (
	JournalFile  = "journal.db"
	FirmwareFile = "firmware.fw"

	// Terminal statuses recorded for an attempt; same vocabulary the
	// device channel reports upstream.
	StatusHandled = "update-handled"
	StatusFailed  = "update-failed"
)

// FirmwarePath is where the update executor stages a downloaded image.
func FirmwarePath(dataDir string) string {
	return filepath.Join(dataDir, FirmwareFile)
}

// Journal records one row per firmware update attempt. It is best-effort
// local bookkeeping; callers log journal errors and move on.
type Journal struct {
	db *sql.DB
}

func OpenJournal(dataDir string) (*Journal, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create data dir: %w", err)
	}
	dbFile := filepath.Join(dataDir, JournalFile)
	var newDb bool
	if _, err := os.Stat(dbFile); err != nil {
		newDb = errors.Is(err, os.ErrNotExist)
	}
	db, err := sql.Open("sqlite3", dbFile)
	if err != nil {
		return nil, err
	}
	if newDb {
		if err := createTables(db); err != nil {
			return nil, err
		}
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func createTables(db *sql.DB) error {
	sqlStmt := `
		CREATE TABLE updates (
			correlation_id VARCHAR(48) NOT NULL PRIMARY KEY,
			fw_uuid        VARCHAR(48) NOT NULL,
			fw_version     VARCHAR(80) NOT NULL,
			url            TEXT,
			started_at     INT DEFAULT 0,
			finished_at    INT DEFAULT 0,
			status         VARCHAR(32) DEFAULT ''
		) WITHOUT ROWID;
	`
	if _, err := db.Exec(sqlStmt); err != nil {
		return fmt.Errorf("unable to create updates journal: %w", err)
	}
	return nil
}

// Start records the beginning of an update attempt and returns its
// correlation id.
func (j *Journal) Start(fwUuid, fwVersion, url string) (string, error) {
	corId := uuid.New().String()
	_, err := j.db.Exec(
		"INSERT INTO updates (correlation_id, fw_uuid, fw_version, url, started_at) VALUES (?, ?, ?, ?, ?)",
		corId, fwUuid, fwVersion, url, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("unable to journal update start: %w", err)
	}
	return corId, nil
}

// Finish stamps the attempt with its terminal status.
func (j *Journal) Finish(corId, status string) error {
	_, err := j.db.Exec(
		"UPDATE updates SET finished_at = ?, status = ? WHERE correlation_id = ?",
		time.Now().Unix(), status, corId)
	if err != nil {
		return fmt.Errorf("unable to journal update finish: %w", err)
	}
	return nil
}

type Attempt struct {
	CorrelationId string
	FwUuid        string
	FwVersion     string
	Url           string
	StartedAt     int64
	FinishedAt    int64
	Status        string
}

// Attempts lists journaled attempts, oldest first.
func (j *Journal) Attempts() ([]Attempt, error) {
	rows, err := j.db.Query(
		"SELECT correlation_id, fw_uuid, fw_version, url, started_at, finished_at, status FROM updates ORDER BY started_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.CorrelationId, &a.FwUuid, &a.FwVersion, &a.Url, &a.StartedAt, &a.FinishedAt, &a.Status); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
