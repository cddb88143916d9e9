// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	sharedSecretDigest  = "sha256"
	sharedSecretIters   = 1000
	sharedSecretKeyLen  = 32
	sharedSecretContext = "NH1:device-socket:shared-secret:connect"
)

// SharedSecret signs WebSocket upgrade requests with a key id and secret
// provisioned out of band. The server verifies the signature and enforces a
// 90 second validity window on the timestamp.
type SharedSecret struct {
	Key    string
	Secret string
}

func NewSharedSecret(key, secret string) *SharedSecret {
	return &SharedSecret{Key: key, Secret: secret}
}

// Algorithm is the value of the x-nh-alg header.
func (s *SharedSecret) Algorithm() string {
	return fmt.Sprintf("NH1-HMAC-%s-%d-%d", sharedSecretDigest, sharedSecretIters, sharedSecretKeyLen)
}

// Headers generates the four signed upgrade headers for one connection
// attempt. They must not be reused across attempts.
func (s *SharedSecret) Headers(identifier string) http.Header {
	return s.HeadersAt(identifier, time.Now().Unix())
}

func (s *SharedSecret) HeadersAt(identifier string, timestamp int64) http.Header {
	alg := s.Algorithm()
	ts := strconv.FormatInt(timestamp, 10)

	headers := http.Header{}
	headers.Set("x-nh-alg", alg)
	headers.Set("x-nh-key", s.Key)
	headers.Set("x-nh-time", ts)
	headers.Set("x-nh-signature", s.sign(identifier, alg, ts))
	return headers
}

func (s *SharedSecret) sign(identifier, alg, timestamp string) string {
	// The salt layout must match the server's Plug.Crypto verification
	salt := fmt.Sprintf("%s\n\nx-nh-alg=%s\nx-nh-key=%s\nx-nh-time=%s",
		sharedSecretContext, alg, s.Key, timestamp)

	derived := pbkdf2.Key([]byte(s.Secret), []byte(salt), sharedSecretIters, sharedSecretKeyLen, sha256.New)

	mac := hmac.New(sha256.New, derived)
	mac.Write([]byte(identifier))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
