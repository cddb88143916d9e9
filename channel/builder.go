// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package channel

import (
	"fmt"
	"strconv"
	"sync/atomic"
)

// RefCounter allocates the strictly increasing per-message refs of one
// session. Refs are rendered as decimal strings on the wire.
type RefCounter struct {
	next atomic.Uint64
}

func (r *RefCounter) Next() string {
	return strconv.FormatUint(r.next.Add(1), 10)
}

// Builder constructs the client frames of one joined topic. The join ref is
// allocated first, so it is always "1" for a fresh session.
type Builder struct {
	Topic   string
	JoinRef string

	refs RefCounter
}

func NewBuilder(topic string) *Builder {
	b := &Builder{Topic: topic}
	b.JoinRef = b.refs.Next()
	return b
}

// Join builds the phx_join frame; ref and join_ref are the same value by
// protocol convention.
func (b *Builder) Join(payload []byte) Frame {
	return Frame{
		JoinRef: b.JoinRef,
		Ref:     b.JoinRef,
		Topic:   b.Topic,
		Event:   EventJoin,
		Payload: payload,
	}
}

// Heartbeat builds a heartbeat frame on the control topic.
func (b *Builder) Heartbeat() Frame {
	return Frame{
		Ref:     b.refs.Next(),
		Topic:   HeartbeatTopic,
		Event:   EventHeartbeat,
		Payload: []byte("{}"),
	}
}

// Push builds a client-initiated frame on the joined topic with a fresh ref.
func (b *Builder) Push(event string, payload []byte) Frame {
	return Frame{
		JoinRef: b.JoinRef,
		Ref:     b.refs.Next(),
		Topic:   b.Topic,
		Event:   event,
		Payload: payload,
	}
}

// DeviceTopic is the per-device logical endpoint on the server.
func DeviceTopic(serial string) string {
	return fmt.Sprintf("device:%s", serial)
}
