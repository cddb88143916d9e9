// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package client

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// Kind classifies why a session ended. The supervisor treats every kind the
// same way, reconnecting with backoff; the kind is for logging and tests.
type Kind int

const (
	KindConnectFailed Kind = iota + 1
	KindTlsFailed
	KindUpgradeFailed
	KindAuthRejected
	KindJoinFailed
	KindProtocolMalformed
	KindHeartbeatTimeout
	KindSocketClosed
)

func (k Kind) String() string {
	switch k {
	case KindConnectFailed:
		return "connect-failed"
	case KindTlsFailed:
		return "tls-failed"
	case KindUpgradeFailed:
		return "upgrade-failed"
	case KindAuthRejected:
		return "auth-rejected"
	case KindJoinFailed:
		return "join-failed"
	case KindProtocolMalformed:
		return "protocol-malformed"
	case KindHeartbeatTimeout:
		return "heartbeat-timeout"
	case KindSocketClosed:
		return "socket-closed"
	default:
		return "unknown"
	}
}

// SessionError is the terminal outcome of one session attempt.
type SessionError struct {
	Kind Kind
	Err  error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session ended (%s): %s", e.Kind, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func sessionErr(kind Kind, format string, args ...any) *SessionError {
	return &SessionError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// classifyDialError splits a failed WebSocket dial into its transport
// layer: TLS handshake, HTTP upgrade, or plain connectivity.
func classifyDialError(err error, resp *http.Response) *SessionError {
	var recordErr tls.RecordHeaderError
	var certErr *tls.CertificateVerificationError
	var unknownAuthErr x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	switch {
	case errors.As(err, &recordErr), errors.As(err, &certErr),
		errors.As(err, &unknownAuthErr), errors.As(err, &hostErr):
		return &SessionError{Kind: KindTlsFailed, Err: err}
	case errors.Is(err, websocket.ErrBadHandshake):
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return sessionErr(KindUpgradeFailed, "websocket upgrade refused (HTTP %d): %w", status, err)
	default:
		return &SessionError{Kind: KindConnectFailed, Err: err}
	}
}
