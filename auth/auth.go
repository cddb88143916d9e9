// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package auth

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/foundriesio/hub-link/config"
)

// Material is everything a single connection attempt needs from the
// authenticator: the TLS client configuration and any extra headers for the
// WebSocket upgrade request.
type Material struct {
	TlsConfig *tls.Config
	Headers   http.Header
}

// Authenticator holds one of the two configured authentication modes. The
// mTLS TLS config is built once at startup; shared-secret headers are
// regenerated per attempt because the server enforces a validity window on
// the signed timestamp.
type Authenticator struct {
	mtls   *tls.Config
	shared *SharedSecret
}

func New(cfg config.Auth) (*Authenticator, error) {
	switch cfg.Type {
	case config.AuthTypeMtls:
		tlsCfg, err := loadMtlsConfig(cfg.CertPath, cfg.KeyPath, cfg.CaCertPath)
		if err != nil {
			return nil, err
		}
		return &Authenticator{mtls: tlsCfg}, nil
	case config.AuthTypeSharedSecret:
		return &Authenticator{shared: NewSharedSecret(cfg.Key, cfg.Secret)}, nil
	default:
		return nil, fmt.Errorf("unsupported auth type: %s", cfg.Type)
	}
}

// Material produces the connection material for one attempt. The serial is
// the identifier signed by the shared-secret mode.
func (a *Authenticator) Material(serial string) Material {
	if a.mtls != nil {
		return Material{TlsConfig: a.mtls}
	}
	return Material{
		TlsConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		Headers:   a.shared.Headers(serial),
	}
}
