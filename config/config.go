// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	AuthTypeMtls         = "mtls"
	AuthTypeSharedSecret = "shared_secret"
)

type Auth struct {
	Type string `yaml:"type"`

	// mtls
	CertPath   string `yaml:"cert_path"`
	KeyPath    string `yaml:"key_path"`
	CaCertPath string `yaml:"ca_cert_path"`

	// shared_secret
	Key    string `yaml:"key"`
	Secret string `yaml:"secret"`
}

type Firmware struct {
	Uuid         string `yaml:"uuid"`
	Version      string `yaml:"version"`
	Platform     string `yaml:"platform"`
	Architecture string `yaml:"architecture"`
	Product      string `yaml:"product"`
}

type Config struct {
	Host                  string   `yaml:"host"`
	SerialNumber          string   `yaml:"serial_number"`
	SerialNumberCommand   string   `yaml:"serial_number_command"`
	FwupDevpath           string   `yaml:"fwup_devpath"`
	FwupTask              string   `yaml:"fwup_task"`
	HeartbeatIntervalSecs uint     `yaml:"heartbeat_interval_secs"`
	DataDir               string   `yaml:"data_dir"`
	DeviceApiVersion      string   `yaml:"device_api_version"`
	Firmware              Firmware `yaml:"firmware"`
	Auth                  Auth     `yaml:"auth"`
}

// Load reads and validates the agent configuration. Defaults are filled in
// so callers never need to consult them.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found at %s", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()
	return &config, nil
}

func (c *Config) validate() error {
	if c.Host == "" {
		return errors.New("config missing required field: host")
	}
	if c.SerialNumber == "" && c.SerialNumberCommand == "" {
		return errors.New("config requires either serial_number or serial_number_command")
	}
	for field, val := range map[string]string{
		"firmware.uuid":         c.Firmware.Uuid,
		"firmware.version":      c.Firmware.Version,
		"firmware.platform":     c.Firmware.Platform,
		"firmware.architecture": c.Firmware.Architecture,
		"firmware.product":      c.Firmware.Product,
	} {
		if val == "" {
			return fmt.Errorf("config missing required field: %s", field)
		}
	}
	switch c.Auth.Type {
	case AuthTypeMtls:
		if c.Auth.CertPath == "" || c.Auth.KeyPath == "" || c.Auth.CaCertPath == "" {
			return errors.New("mtls auth requires cert_path, key_path and ca_cert_path")
		}
	case AuthTypeSharedSecret:
		if c.Auth.Key == "" || c.Auth.Secret == "" {
			return errors.New("shared_secret auth requires key and secret")
		}
	case "":
		return errors.New("config missing required field: auth.type")
	default:
		return fmt.Errorf("unsupported auth.type: %s", c.Auth.Type)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.FwupDevpath == "" {
		c.FwupDevpath = "/dev/mmcblk0"
	}
	if c.FwupTask == "" {
		c.FwupTask = "upgrade"
	}
	if c.HeartbeatIntervalSecs == 0 {
		c.HeartbeatIntervalSecs = 30
	}
	if c.DataDir == "" {
		c.DataDir = "/tmp/hub_link"
	}
	if c.DeviceApiVersion == "" {
		c.DeviceApiVersion = "2.3.0"
	}
}

func (c *Config) SocketUrl() string {
	return fmt.Sprintf("wss://%s/device-socket/websocket", c.Host)
}
