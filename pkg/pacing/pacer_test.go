// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package pacing

import (
	"context"
	"testing"
	"time"
)

func TestPacerSpacing(t *testing.T) {
	// 1 Mbit/s, 1250 byte chunks: 10ms per chunk
	pacer, err := NewPacer(1e6)
	if err != nil {
		t.Fatal(err)
	}

	var deadlines []time.Time
	for i := 0; i < 10; i++ {
		deadlines = append(deadlines, pacer.Next(1250))
	}

	for i := 1; i < len(deadlines); i++ {
		gap := deadlines[i].Sub(deadlines[i-1])
		if gap != 10*time.Millisecond {
			t.Fatalf("deadline %d follows its predecessor by %v, expected 10ms", i, gap)
		}
	}
}

func TestPacerAbsoluteSchedule(t *testing.T) {
	pacer, err := NewPacer(8e6)
	if err != nil {
		t.Fatal(err)
	}

	start := pacer.Next(1000)

	// Deadlines depend only on the scheduled bytes, not on when Next is
	// called. A slow caller must not stretch the schedule.
	time.Sleep(20 * time.Millisecond)

	second := pacer.Next(1000)
	if gap := second.Sub(start); gap != time.Millisecond {
		t.Fatalf("second deadline follows the first by %v, expected 1ms", gap)
	}
}

func TestPacerVariableChunkSizes(t *testing.T) {
	pacer, err := NewPacer(8e6) // 1 byte per microsecond
	if err != nil {
		t.Fatal(err)
	}

	first := pacer.Next(1000)
	second := pacer.Next(500)
	third := pacer.Next(500)

	if gap := second.Sub(first); gap != 1000*time.Microsecond {
		t.Fatalf("second deadline offset is %v, expected 1ms", gap)
	}
	if gap := third.Sub(second); gap != 500*time.Microsecond {
		t.Fatalf("third deadline offset is %v, expected 500µs", gap)
	}
}

func TestPacerWaitPastDeadline(t *testing.T) {
	pacer, err := NewPacer(1e6)
	if err != nil {
		t.Fatal(err)
	}

	begin := time.Now()
	if err := pacer.Wait(context.Background(), begin.Add(-time.Second)); err != nil {
		t.Fatal(err)
	}
	if waited := time.Since(begin); waited > 50*time.Millisecond {
		t.Fatalf("waiting for a past deadline took %v", waited)
	}
}

func TestPacerWaitCancellation(t *testing.T) {
	pacer, err := NewPacer(1e6)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if err := pacer.Wait(ctx, time.Now().Add(time.Hour)); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPacerRateFidelity(t *testing.T) {
	// 8 Mbit/s, 1000 byte chunks: 1ms per chunk, 50ms for the whole run
	const (
		chunks    = 50
		target    = time.Millisecond
		tolerance = 4 * time.Millisecond
	)

	pacer, err := NewPacer(8e6)
	if err != nil {
		t.Fatal(err)
	}

	var times []time.Time
	for i := 0; i < chunks; i++ {
		deadline := pacer.Next(1000)
		if err := pacer.Wait(context.Background(), deadline); err != nil {
			t.Fatal(err)
		}
		times = append(times, time.Now())
	}

	// The first wake-up may be late while the last is punctual, so allow the
	// mean to undercut the target slightly.
	mean := times[len(times)-1].Sub(times[0]) / time.Duration(len(times)-1)
	if mean < target-time.Millisecond/2 {
		t.Fatalf("mean inter-send interval %v undercuts the target %v", mean, target)
	}
	if mean > target+tolerance {
		t.Fatalf("mean inter-send interval %v exceeds the target %v beyond tolerance", mean, target)
	}
}

func TestPacerLowRateSchedule(t *testing.T) {
	// 0.1 Mbit/s, 1200 byte chunks: 96ms per chunk, 4.704s until the last
	// of 50 deadlines.
	pacer, err := NewPacer(0.1e6)
	if err != nil {
		t.Fatal(err)
	}

	var first, last time.Time
	for i := 0; i < 50; i++ {
		deadline := pacer.Next(1200)
		if i == 0 {
			first = deadline
		}
		last = deadline
	}

	if span := last.Sub(first); span != 49*96*time.Millisecond {
		t.Fatalf("schedule spans %v, expected %v", span, 49*96*time.Millisecond)
	}
}

func TestPacerInvalidRate(t *testing.T) {
	for _, rate := range []float64{0, -1} {
		if _, err := NewPacer(rate); err == nil {
			t.Fatalf("expected error for bitrate %f", rate)
		}
	}
}
