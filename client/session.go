// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package client maintains the device's channel to the hub: one session
// per connection attempt, supervised by a reconnect loop.
package client

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/foundriesio/hub-link/auth"
	"github.com/foundriesio/hub-link/channel"
	"github.com/foundriesio/hub-link/config"
	"github.com/foundriesio/hub-link/context"
	"github.com/foundriesio/hub-link/firmware"
)

// State of a session. Transitions only move forward except
// Updating -> Joined when an update reaches a terminal status.
type State int32

const (
	StateConnecting State = iota
	StateOpened
	StateJoining
	StateJoined
	StateUpdating
	StateClosed
)

const (
	dialTimeout = 30 * time.Second
	joinTimeout = 30 * time.Second
)

// Session owns a single WebSocket connection and the channel state machine
// on top of it. A Session is single-use: build a new one per attempt.
type Session struct {
	Url         string
	Serial      string
	Auth        *auth.Authenticator
	Executor    *firmware.Executor
	Heartbeat   time.Duration
	ApiVersion  string
	FwupVersion string
	Firmware    config.Firmware

	state    atomic.Int32
	builder  *channel.Builder
	conn     *websocket.Conn
	joinedAt time.Time
	uptime   time.Duration
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Uptime is how long the session was in Joined or Updating before it
// ended; zero when the join never completed. Valid once Run returns.
func (s *Session) Uptime() time.Duration {
	return s.uptime
}

type joinPayload struct {
	DeviceApiVersion string `json:"device_api_version"`
	FwupVersion      string `json:"fwup_version"`
	NervesFwUuid     string `json:"nerves_fw_uuid"`
	NervesFwVersion  string `json:"nerves_fw_version"`
	NervesFwPlatform string `json:"nerves_fw_platform"`
	NervesFwArch     string `json:"nerves_fw_architecture"`
	NervesFwProduct  string `json:"nerves_fw_product"`
}

// JoinPayload is the body of the phx_join frame, reporting the firmware
// the device currently runs.
func (s *Session) JoinPayload() ([]byte, error) {
	return json.Marshal(joinPayload{
		DeviceApiVersion: s.ApiVersion,
		FwupVersion:      s.FwupVersion,
		NervesFwUuid:     s.Firmware.Uuid,
		NervesFwVersion:  s.Firmware.Version,
		NervesFwPlatform: s.Firmware.Platform,
		NervesFwArch:     s.Firmware.Architecture,
		NervesFwProduct:  s.Firmware.Product,
	})
}

type readResult struct {
	data []byte
	err  error
}

// pendingUpdate tracks the one in-flight update of a session.
type pendingUpdate struct {
	progress chan int
	result   chan error
	gate     firmware.ProgressGate
}

// Run connects, joins the device topic and drives the session until it
// ends. Returns nil on a clean, caller-initiated shutdown.
func (s *Session) Run(ctx context.Context) *SessionError {
	log := context.CtxGetLog(ctx)
	defer s.setState(StateClosed)
	defer func() {
		if !s.joinedAt.IsZero() {
			s.uptime = time.Since(s.joinedAt)
		}
	}()

	s.setState(StateConnecting)
	material := s.Auth.Material(s.Serial)
	dialer := websocket.Dialer{
		TLSClientConfig:  material.TlsConfig,
		HandshakeTimeout: dialTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, s.Url, material.Headers)
	if err != nil {
		return classifyDialError(err, resp)
	}
	s.conn = conn
	defer func() {
		if err := conn.Close(); err != nil && !strings.Contains(err.Error(), "use of closed") {
			log.Debug("failed to close socket", "error", err)
		}
	}()
	s.setState(StateOpened)
	log.Debug("socket opened", "url", s.Url)

	s.builder = channel.NewBuilder(channel.DeviceTopic(s.Serial))
	payload, err := s.JoinPayload()
	if err != nil {
		return sessionErr(KindJoinFailed, "unable to build join payload: %w", err)
	}
	if serr := s.writeFrame(s.builder.Join(payload)); serr != nil {
		return serr
	}
	s.setState(StateJoining)
	log.Info("sent channel join", "topic", s.builder.Topic)

	frames := make(chan readResult, 16)
	done := make(chan struct{})
	defer close(done)
	go readLoop(conn, frames, done)

	return s.loop(ctx, frames)
}

func readLoop(conn *websocket.Conn, frames chan<- readResult, done <-chan struct{}) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case frames <- readResult{err: err}:
			case <-done:
			}
			return
		}
		if msgType != websocket.TextMessage {
			// Ping/pong/binary, nothing for us
			continue
		}
		select {
		case frames <- readResult{data: data}:
		case <-done:
			return
		}
	}
}

func (s *Session) loop(ctx context.Context, frames <-chan readResult) *SessionError {
	log := context.CtxGetLog(ctx)

	heartbeats := time.NewTicker(s.Heartbeat)
	defer heartbeats.Stop()
	joinDeadline := time.NewTimer(joinTimeout)
	defer joinDeadline.Stop()

	var awaitingHeartbeat string
	var pending *pendingUpdate

	for {
		// nil channels mute the update arms while no update is pending
		var progress chan int
		var result chan error
		if pending != nil {
			progress = pending.progress
			result = pending.result
		}

		select {
		case <-ctx.Done():
			return s.shutdown(ctx, pending)

		case <-joinDeadline.C:
			if s.State() == StateJoining {
				return sessionErr(KindJoinFailed, "no join reply within %s", joinTimeout)
			}

		case r := <-frames:
			if r.err != nil {
				return sessionErr(KindSocketClosed, "socket read: %w", r.err)
			}
			frame, err := channel.Decode(r.data)
			if err != nil {
				return sessionErr(KindProtocolMalformed, "%w", err)
			}
			if serr := s.dispatch(ctx, frame, &awaitingHeartbeat, &pending); serr != nil {
				return serr
			}

		case <-heartbeats.C:
			if s.State() != StateJoined && s.State() != StateUpdating {
				continue
			}
			if awaitingHeartbeat != "" {
				return sessionErr(KindHeartbeatTimeout, "no heartbeat reply within %s", s.Heartbeat)
			}
			hb := s.builder.Heartbeat()
			if serr := s.writeFrame(hb); serr != nil {
				return serr
			}
			awaitingHeartbeat = hb.Ref
			log.Debug("sent heartbeat", "ref", hb.Ref)

		case pct := <-progress:
			if v, ok := pending.gate.Pass(pct); ok {
				if serr := s.pushProgress(v); serr != nil {
					return serr
				}
			}

		case err := <-result:
			if serr := s.finishUpdate(ctx, pending, err); serr != nil {
				return serr
			}
			pending = nil
			s.setState(StateJoined)
		}
	}
}

func (s *Session) dispatch(ctx context.Context, frame channel.Frame, awaitingHeartbeat *string, pending **pendingUpdate) *SessionError {
	log := context.CtxGetLog(ctx)

	switch frame.Event {
	case channel.EventReply:
		if s.State() == StateJoining && frame.Ref == s.builder.JoinRef {
			return s.completeJoin(ctx, frame)
		}
		if frame.Ref == *awaitingHeartbeat {
			*awaitingHeartbeat = ""
			return nil
		}
		log.Debug("received reply", "ref", frame.Ref, "status", frame.ReplyStatus())

	case channel.EventClose:
		if frame.Topic == s.builder.Topic {
			return sessionErr(KindSocketClosed, "channel closed by server")
		}

	case channel.EventError:
		log.Warn("channel error", "topic", frame.Topic)

	case channel.EventUpdate:
		return s.startUpdate(ctx, frame, pending)

	case channel.EventReboot:
		log.Info("reboot requested by server")
		// Acknowledge only; rebooting is up to the supervising environment
		return s.writeFrame(s.builder.Push(channel.EventRebooting, []byte("{}")))

	default:
		log.Debug("unhandled event", "event", frame.Event)
	}
	return nil
}

func (s *Session) completeJoin(ctx context.Context, frame channel.Frame) *SessionError {
	log := context.CtxGetLog(ctx)
	if frame.ReplyOk() {
		s.setState(StateJoined)
		s.joinedAt = time.Now()
		log.Info("joined device channel", "topic", s.builder.Topic)
		return nil
	}

	reason := frame.ReplyReason()
	if reason == "" {
		reason = "unknown"
	}
	if strings.Contains(reason, "unauthorized") || strings.Contains(reason, "reject") {
		return sessionErr(KindAuthRejected, "join rejected: %s", reason)
	}
	return sessionErr(KindJoinFailed, "join failed: %s", reason)
}

func (s *Session) startUpdate(ctx context.Context, frame channel.Frame, pending **pendingUpdate) *SessionError {
	log := context.CtxGetLog(ctx)
	if s.State() != StateJoined && s.State() != StateUpdating {
		log.Warn("ignoring update event before join completed")
		return nil
	}
	if *pending != nil {
		log.Warn("update already in progress, rejecting new update event")
		return s.pushStatus(channel.StatusRescheduled)
	}

	up, err := firmware.ParseUpdate(frame.Payload)
	if err != nil {
		log.Warn("ignoring malformed update event", "error", err)
		return nil
	}
	log.Info("firmware update available",
		"uuid", up.FirmwareMeta.Uuid, "version", up.FirmwareMeta.Version)

	p := &pendingUpdate{
		progress: make(chan int, 16),
		result:   make(chan error, 1),
	}
	*pending = p
	s.setState(StateUpdating)

	go func() {
		p.result <- s.Executor.Run(ctx, up, func(pct int) {
			select {
			case p.progress <- pct:
			default:
				// Progress is advisory; drop when the session is busy
			}
		})
	}()
	return nil
}

// finishUpdate reports the terminal status of an update on the channel,
// emitting the final progress first so the server sees 100 before
// update-handled.
func (s *Session) finishUpdate(ctx context.Context, pending *pendingUpdate, err error) *SessionError {
	log := context.CtxGetLog(ctx)
	if err == nil {
		if v, ok := pending.gate.Pass(100); ok {
			if serr := s.pushProgress(v); serr != nil {
				return serr
			}
		}
		log.Info("firmware update handled")
		return s.pushStatus(channel.StatusHandled)
	}
	log.Warn("firmware update failed", "error", err)
	return s.pushStatus(channel.StatusFailed)
}

// shutdown handles cooperative cancellation. A pending update is given the
// chance to finish: the download aborts with the context, but a spawned
// writer always runs to completion.
func (s *Session) shutdown(ctx context.Context, pending *pendingUpdate) *SessionError {
	log := context.CtxGetLog(ctx)
	if pending != nil {
		log.Info("waiting for in-flight update before shutdown")
		err := <-pending.result
		// Best effort; the server learns the rest from the next session
		_ = s.finishUpdate(ctx, pending, err)
	}
	log.Info("session shut down")
	return nil
}

func (s *Session) pushProgress(percent int) *SessionError {
	payload, _ := json.Marshal(map[string]int{"value": percent})
	return s.writeFrame(s.builder.Push(channel.EventProgress, payload))
}

func (s *Session) pushStatus(status string) *SessionError {
	payload, _ := json.Marshal(map[string]string{"status": status})
	return s.writeFrame(s.builder.Push(channel.EventStatus, payload))
}

func (s *Session) writeFrame(frame channel.Frame) *SessionError {
	data, err := frame.Encode()
	if err != nil {
		return sessionErr(KindProtocolMalformed, "unable to encode %s frame: %w", frame.Event, err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return sessionErr(KindSocketClosed, "socket write: %w", err)
	}
	return nil
}
