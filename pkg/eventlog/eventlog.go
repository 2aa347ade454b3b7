// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package eventlog writes the append-only, line-oriented event records a
// flow's sender and receiver produce.
//
// Each flow owns one send log on the client and one receive log on the
// server. A log is a CSV file with a header row and one record per event,
// independently parseable without the other side's log: correlation happens
// offline, purely via sequence number, mode and timestamps.
//
// Timestamps are wall-clock Unix nanoseconds from two independently running
// processes. One-way latency derived from them is only meaningful if both
// clocks are synchronised externally, e.g. by running on the same host or
// under NTP discipline. This is a documented precondition; the records do not
// enforce or compensate for clock offset.
package eventlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/quicbench/quicbench/pkg/wire"
)

// DefaultFlushEvery is the record count after which a Writer flushes its
// buffers if no other cadence is configured.
const DefaultFlushEvery = 200

// SendEvent records one Wire Unit leaving the sender. Scheduled is the rate
// pacer's target instant, Actual the completion of the transport write; on a
// backpressured stream the two diverge, which is the primary experimental
// observable. CCA is the congestion-control label of the run, passed through
// opaquely.
type SendEvent struct {
	SequenceNumber uint64
	Mode           wire.Mode
	Length         int
	Scheduled      time.Time
	Actual         time.Time
	CCA            string
}

// ReceiveEvent records one Wire Unit arriving at the receiver, exactly as it
// arrived: duplicates and reordered units each produce their own event.
type ReceiveEvent struct {
	SequenceNumber uint64
	Mode           wire.Mode
	Length         int
	Received       time.Time
}

var (
	sendHeader    = []string{"seq", "mode", "bytes", "scheduled_unix_ns", "actual_unix_ns", "cca"}
	receiveHeader = []string{"seq", "mode", "bytes", "recv_unix_ns"}
)

// Writer is one flow's event log. It is owned by the flow, opened at flow
// start and closed on every exit path; there is no process-wide log state.
// A Writer may be used from multiple goroutines.
type Writer struct {
	mutex      sync.Mutex
	file       *os.File
	csv        *csv.Writer
	flushEvery int
	records    int
	closed     bool
}

func newWriter(path string, header []string, flushEvery int) (*Writer, error) {
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	// The log's lifetime is the run's lifetime; stale records from an
	// earlier run must not survive.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		file:       file,
		csv:        csv.NewWriter(file),
		flushEvery: flushEvery,
	}

	if err := w.csv.Write(header); err != nil {
		_ = file.Close()
		return nil, err
	}

	return w, nil
}

// NewSendLog opens the send-side event log at path, truncating a previous
// one. Records are flushed every flushEvery events and on Close; flushEvery
// values below one select DefaultFlushEvery.
func NewSendLog(path string, flushEvery int) (*Writer, error) {
	return newWriter(path, sendHeader, flushEvery)
}

// NewReceiveLog opens the receive-side event log at path, truncating a
// previous one.
func NewReceiveLog(path string, flushEvery int) (*Writer, error) {
	return newWriter(path, receiveHeader, flushEvery)
}

// LogSend appends one Send Event.
func (w *Writer) LogSend(e SendEvent) error {
	return w.write([]string{
		strconv.FormatUint(e.SequenceNumber, 10),
		string(e.Mode),
		strconv.Itoa(e.Length),
		strconv.FormatInt(e.Scheduled.UnixNano(), 10),
		strconv.FormatInt(e.Actual.UnixNano(), 10),
		e.CCA,
	})
}

// LogReceive appends one Receive Event.
func (w *Writer) LogReceive(e ReceiveEvent) error {
	return w.write([]string{
		strconv.FormatUint(e.SequenceNumber, 10),
		string(e.Mode),
		strconv.Itoa(e.Length),
		strconv.FormatInt(e.Received.UnixNano(), 10),
	})
}

func (w *Writer) write(record []string) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return fmt.Errorf("event log %s is already closed", w.file.Name())
	}

	if err := w.csv.Write(record); err != nil {
		return err
	}

	w.records++
	if w.records%w.flushEvery == 0 {
		w.csv.Flush()
		return w.csv.Error()
	}

	return nil
}

// Close flushes all buffered records and closes the file. Closing twice is
// harmless. No event accepted before Close may be lost.
func (w *Writer) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		_ = w.file.Close()
		return err
	}

	return w.file.Close()
}
