// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package channel implements the framed JSON protocol spoken over the
// device WebSocket: each message is a JSON array of exactly five elements,
// [join_ref, ref, topic, event, payload].
package channel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Server and client events of the device channel.
const (
	EventJoin   = "phx_join"
	EventReply  = "phx_reply"
	EventClose  = "phx_close"
	EventError  = "phx_error"
	EventUpdate = "update"
	EventReboot = "reboot"

	EventProgress  = "fwup_progress"
	EventStatus    = "status_update"
	EventRebooting = "rebooting"

	StatusHandled     = "update-handled"
	StatusFailed      = "update-failed"
	StatusRescheduled = "update-rescheduled"

	// HeartbeatTopic is the control topic heartbeats are sent on.
	HeartbeatTopic = "phoenix"
	EventHeartbeat = "heartbeat"
)

// ErrMalformed is wrapped by all decode failures.
var ErrMalformed = errors.New("malformed channel frame")

// Frame is one protocol message. An empty JoinRef or Ref stands for JSON
// null on the wire; refs are otherwise strings of decimal digits. Payload
// is always a JSON object, {} at minimum.
type Frame struct {
	JoinRef string
	Ref     string
	Topic   string
	Event   string
	Payload json.RawMessage
}

var nullLiteral = []byte("null")

// Decode parses a wire frame, rejecting anything that is not a 5-element
// array with string-or-null refs, string topic and event, and an object
// payload.
func Decode(data []byte) (Frame, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return Frame{}, fmt.Errorf("%w: %s", ErrMalformed, err)
	}
	if len(elems) != 5 {
		return Frame{}, fmt.Errorf("%w: expected 5 elements, got %d", ErrMalformed, len(elems))
	}

	var f Frame
	var err error
	if f.JoinRef, err = decodeRef(elems[0]); err != nil {
		return Frame{}, fmt.Errorf("%w: join_ref: %s", ErrMalformed, err)
	}
	if f.Ref, err = decodeRef(elems[1]); err != nil {
		return Frame{}, fmt.Errorf("%w: ref: %s", ErrMalformed, err)
	}
	if err = json.Unmarshal(elems[2], &f.Topic); err != nil {
		return Frame{}, fmt.Errorf("%w: topic must be a string", ErrMalformed)
	}
	if err = json.Unmarshal(elems[3], &f.Event); err != nil {
		return Frame{}, fmt.Errorf("%w: event must be a string", ErrMalformed)
	}

	payload := bytes.TrimSpace(elems[4])
	if len(payload) == 0 || payload[0] != '{' {
		return Frame{}, fmt.Errorf("%w: payload must be an object", ErrMalformed)
	}
	f.Payload = payload
	return f, nil
}

func decodeRef(raw json.RawMessage) (string, error) {
	if bytes.Equal(bytes.TrimSpace(raw), nullLiteral) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", errors.New("must be a string or null")
	}
	return s, nil
}

// Encode serializes the frame compactly. Empty refs become JSON null and a
// nil payload becomes {}.
func (f Frame) Encode() ([]byte, error) {
	payload := f.Payload
	if payload == nil {
		payload = json.RawMessage("{}")
	}
	return json.Marshal([]any{refOrNull(f.JoinRef), refOrNull(f.Ref), f.Topic, f.Event, payload})
}

func refOrNull(ref string) any {
	if ref == "" {
		return nil
	}
	return ref
}

func (f Frame) IsReply() bool {
	return f.Event == EventReply
}

type replyPayload struct {
	Status   string `json:"status"`
	Response struct {
		Reason string `json:"reason"`
	} `json:"response"`
}

// ReplyStatus returns the status of a phx_reply payload, or "" when the
// frame is not a well-formed reply.
func (f Frame) ReplyStatus() string {
	if !f.IsReply() {
		return ""
	}
	var p replyPayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		return ""
	}
	return p.Status
}

func (f Frame) ReplyOk() bool {
	return f.ReplyStatus() == "ok"
}

// ReplyReason digs the response.reason string out of an error reply.
func (f Frame) ReplyReason() string {
	if !f.IsReply() {
		return ""
	}
	var p replyPayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		return ""
	}
	return p.Response.Reason
}
