// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package auth

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// loadMtlsConfig builds a TLS client configuration which presents the
// configured certificate chain and trusts only the configured CA roots.
func loadMtlsConfig(certPath, keyPath, caCertPath string) (*tls.Config, error) {
	certPem, err := readPemFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("unable to load client certificate: %w", err)
	}
	keyPem, err := readPemFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("unable to load client key: %w", err)
	}
	// X509KeyPair accepts a full chain and both PKCS#8 and legacy RSA keys
	kp, err := tls.X509KeyPair(certPem, keyPem)
	if err != nil {
		return nil, fmt.Errorf("invalid client certificate or key: %w", err)
	}

	caPem, err := readPemFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("unable to load CA certificate: %w", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caPem) {
		return nil, fmt.Errorf("no CA certificates found in %s", caCertPath)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{kp},
		RootCAs:      caPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func readPemFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("file %s is empty", path)
	}
	return data, nil
}
