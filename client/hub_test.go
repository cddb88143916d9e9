// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package client

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/require"

	"github.com/foundriesio/hub-link/auth"
	"github.com/foundriesio/hub-link/channel"
	"github.com/foundriesio/hub-link/config"
	"github.com/foundriesio/hub-link/context"
)

func testCtx(t *testing.T) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return context.CtxWithLog(ctx, log), cancel
}

// testHub is an in-process stand-in for the device socket endpoint. It
// accepts WebSocket upgrades and hands each connection to the test for
// scripted frame exchanges.
type testHub struct {
	srv   *httptest.Server
	conns chan *hubConn
}

type hubConn struct {
	ws      *websocket.Conn
	headers http.Header
}

func newTestHub(t *testing.T) *testHub {
	h := &testHub{conns: make(chan *hubConn, 4)}
	upgrader := websocket.Upgrader{}

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(log.OFF)
	e.GET("/device-socket/websocket", func(c echo.Context) error {
		ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}
		h.conns <- &hubConn{ws: ws, headers: c.Request().Header.Clone()}
		return nil
	})

	h.srv = httptest.NewServer(e)
	t.Cleanup(h.srv.Close)
	return h
}

func (h *testHub) url() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/device-socket/websocket"
}

func (h *testHub) accept(t *testing.T) *hubConn {
	select {
	case c := <-h.conns:
		t.Cleanup(func() {
			_ = c.ws.Close()
		})
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no connection reached the hub")
		return nil
	}
}

func (c *hubConn) readFrame(t *testing.T) channel.Frame {
	require.Nil(t, c.ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := c.ws.ReadMessage()
	require.Nil(t, err)
	frame, err := channel.Decode(data)
	require.Nil(t, err)
	return frame
}

func (c *hubConn) writeFrame(t *testing.T, frame channel.Frame) {
	data, err := frame.Encode()
	require.Nil(t, err)
	require.Nil(t, c.ws.WriteMessage(websocket.TextMessage, data))
}

func (c *hubConn) writeRaw(t *testing.T, data string) {
	require.Nil(t, c.ws.WriteMessage(websocket.TextMessage, []byte(data)))
}

func (c *hubConn) replyOk(t *testing.T, to channel.Frame) {
	c.writeFrame(t, channel.Frame{
		JoinRef: to.JoinRef,
		Ref:     to.Ref,
		Topic:   to.Topic,
		Event:   channel.EventReply,
		Payload: []byte(`{"status":"ok","response":{}}`),
	})
}

func (c *hubConn) replyError(t *testing.T, to channel.Frame, reason string) {
	c.writeFrame(t, channel.Frame{
		JoinRef: to.JoinRef,
		Ref:     to.Ref,
		Topic:   to.Topic,
		Event:   channel.EventReply,
		Payload: []byte(`{"status":"error","response":{"reason":"` + reason + `"}}`),
	})
}

// acceptJoin reads the phx_join frame, acknowledges it and waits for the
// session to reach the joined state.
func (c *hubConn) acceptJoin(t *testing.T, s *Session) channel.Frame {
	frame := c.readFrame(t)
	require.Equal(t, channel.EventJoin, frame.Event)
	c.replyOk(t, frame)
	require.Eventually(t, func() bool {
		return s.State() == StateJoined
	}, 5*time.Second, 5*time.Millisecond)
	return frame
}

func newTestSession(t *testing.T, url string) *Session {
	authn, err := auth.New(config.Auth{
		Type:   config.AuthTypeSharedSecret,
		Key:    "test-key",
		Secret: "test-secret",
	})
	require.Nil(t, err)
	return &Session{
		Url:         url,
		Serial:      "SN123",
		Auth:        authn,
		Heartbeat:   30 * time.Second,
		ApiVersion:  "2.3.0",
		FwupVersion: "1.10.1",
		Firmware: config.Firmware{
			Uuid:         "running-uuid",
			Version:      "1.0.0",
			Platform:     "rpi4",
			Architecture: "arm",
			Product:      "demo",
		},
	}
}

func runSession(ctx context.Context, s *Session) chan *SessionError {
	errs := make(chan *SessionError, 1)
	go func() {
		errs <- s.Run(ctx)
	}()
	return errs
}

func awaitSessionErr(t *testing.T, errs chan *SessionError) *SessionError {
	select {
	case serr := <-errs:
		return serr
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end in time")
		return nil
	}
}
