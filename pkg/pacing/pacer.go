// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package pacing schedules a flow's transmissions against a target bitrate,
// independent of any network feedback.
package pacing

import (
	"context"
	"fmt"
	"time"
)

// Pacer computes the wall-clock instant at which each chunk of a flow should
// leave the sender.
//
// Deadlines are derived from an absolute start instant plus the accumulated
// transmission time of all previously scheduled payload bytes. Scheduling off
// the absolute origin instead of the previous send's completion keeps
// per-chunk jitter from accumulating into drift.
//
// The Pacer only computes and waits for deadlines. Whether a missed deadline
// is acceptable is the sender's policy: datagram senders emit regardless of
// transport state, stream senders may be held back by backpressure, in which
// case the gap between scheduled and actual send time is the measurement.
type Pacer struct {
	bitsPerSecond float64
	start         time.Time
	scheduled     time.Duration
}

// NewPacer creates a Pacer for the given target bitrate in bits per second.
func NewPacer(bitsPerSecond float64) (*Pacer, error) {
	if bitsPerSecond <= 0 {
		return nil, fmt.Errorf("target bitrate must be positive, got %f", bitsPerSecond)
	}

	return &Pacer{bitsPerSecond: bitsPerSecond}, nil
}

// Next returns the target send instant for a chunk of n payload bytes and
// advances the schedule by the chunk's transmission time, n*8/bitrate.
// The schedule's origin is pinned on the first call.
func (p *Pacer) Next(n int) time.Time {
	if p.start.IsZero() {
		p.start = time.Now()
	}

	deadline := p.start.Add(p.scheduled)
	p.scheduled += time.Duration(float64(n*8) / p.bitsPerSecond * float64(time.Second))

	return deadline
}

// Wait blocks until the deadline has been reached or ctx is done. A deadline
// in the past returns immediately.
func (p *Pacer) Wait(ctx context.Context, deadline time.Time) error {
	d := time.Until(deadline)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
