// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package client

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/foundriesio/hub-link/context"
)

// A session must hold the channel this long before a failure resets the
// reconnect backoff.
const steadyUptime = time.Minute

// Supervisor runs the unbounded reconnect loop: a fresh session per
// attempt, exponential backoff with jitter between failures.
type Supervisor struct {
	NewSession func() *Session
}

// Run loops until the context is canceled. Transport and protocol failures
// never terminate the loop; they only delay the next attempt.
func (s *Supervisor) Run(ctx context.Context) {
	log := context.CtxGetLog(ctx)
	bo := newBackOff()

	for {
		sess := s.NewSession()
		serr := sess.Run(ctx)
		if ctx.Err() != nil {
			log.Info("supervisor stopped")
			return
		}
		switch {
		case serr == nil:
			log.Info("session ended cleanly")
		case serr.Kind == KindAuthRejected:
			log.Error("session ended", "kind", serr.Kind.String(), "error", serr.Err)
		default:
			log.Warn("session ended", "kind", serr.Kind.String(), "error", serr.Err)
		}

		if sess.Uptime() >= steadyUptime {
			bo.Reset()
		}
		delay := bo.NextBackOff()
		log.Info("reconnecting", "delay", delay.String())
		select {
		case <-ctx.Done():
			log.Info("supervisor stopped")
			return
		case <-time.After(delay):
		}
	}
}

// newBackOff produces jittered delays in [0.5, 1.0] x min(60s, 2^(n-1) s)
// for the n-th consecutive failure: base 750ms with a 1/3 randomization
// factor spans exactly that band, and the 45s interval cap lands the
// ceiling on 60s.
func newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 750 * time.Millisecond
	bo.RandomizationFactor = 1.0 / 3.0
	bo.Multiplier = 2
	bo.MaxInterval = 45 * time.Second
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}
