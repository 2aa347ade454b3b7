// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package flow implements the client side of the benchmark: the run
// controller that owns one flow's lifecycle and the mode-specific senders it
// drives.
//
// One flow is one connection, one transport mode and one sequence-number
// space starting at zero. Concurrent flows share nothing but the network
// path; each runs its own controller with its own event log.
package flow

import (
	"fmt"
	"os"
	"time"

	"github.com/quicbench/quicbench/pkg/wire"
)

const (
	defaultConnectAttempts = 3
	defaultConnectBackoff  = 500 * time.Millisecond
	defaultDrainTimeout    = 2 * time.Second
	defaultIdleTimeout     = 10 * time.Second
)

// Config describes one flow. The zero value is not usable; Validate fills in
// defaults and rejects configurations that must not start a run.
type Config struct {
	// Name labels the flow in operational logs. Defaults to mode@address.
	Name string

	// Address is the receiver's host:port.
	Address string

	// Mode selects the transport packaging, wire.ModeStream or
	// wire.ModeDatagram.
	Mode wire.Mode

	// InputPath names the payload file to transmit.
	InputPath string

	// RateMbps is the target offered load in megabits per second.
	RateMbps float64

	// ChunkBytes is the payload size per chunk; the last chunk may be
	// shorter.
	ChunkBytes int

	// SendLogPath is the send-side event log file.
	SendLogPath string

	// CCA is an opaque congestion-control label recorded in every Send
	// Event for offline correlation. It selects nothing in the transport.
	CCA string

	// MaxDatagramBytes bounds one encoded datagram message. Datagram mode
	// only; a chunk size that cannot fit is rejected at startup.
	MaxDatagramBytes int

	// MaxChunks stops the flow after this many chunks, 0 sends the whole
	// input.
	MaxChunks uint64

	// Timeout caps the run's wall-clock duration, 0 runs to completion.
	// Reaching the cap is a completion condition, not an error.
	Timeout time.Duration

	// ConnectAttempts bounds connection establishment retries.
	ConnectAttempts int

	// ConnectBackoff is the pause between connection attempts.
	ConnectBackoff time.Duration

	// DrainTimeout bounds how long the sender waits after its last unit
	// for the receiver to acknowledge the flow's end by closing the
	// connection.
	DrainTimeout time.Duration

	// IdleTimeout is the connection's QUIC idle timeout.
	IdleTimeout time.Duration

	// FlushEvery is the event log's flush cadence in records.
	FlushEvery int
}

// Validate checks the configuration and fills in defaults. A returned error
// is a configuration error: fatal at startup, no partial run.
func (cfg *Config) Validate() error {
	if cfg.Address == "" {
		return fmt.Errorf("no receiver address configured")
	}

	if _, err := wire.ParseMode(string(cfg.Mode)); err != nil {
		return err
	}

	if cfg.RateMbps <= 0 {
		return fmt.Errorf("target bitrate must be positive, got %f Mbps", cfg.RateMbps)
	}
	if cfg.ChunkBytes <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkBytes)
	}

	if cfg.InputPath == "" {
		return fmt.Errorf("no input payload configured")
	}
	if file, err := os.Open(cfg.InputPath); err != nil {
		return fmt.Errorf("input payload is not readable: %w", err)
	} else {
		_ = file.Close()
	}

	if cfg.SendLogPath == "" {
		return fmt.Errorf("no send log path configured")
	}

	if cfg.Mode == wire.ModeDatagram {
		if cfg.MaxDatagramBytes <= 0 {
			return fmt.Errorf("datagram mode requires a maximum datagram size")
		}
		// validated once here, not per chunk
		if need := cfg.ChunkBytes + wire.DatagramOverhead; need > cfg.MaxDatagramBytes {
			return fmt.Errorf("chunk size %d plus up to %d bytes of encoding overhead exceeds the maximum datagram size %d",
				cfg.ChunkBytes, wire.DatagramOverhead, cfg.MaxDatagramBytes)
		}
	}

	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("%s@%s", cfg.Mode, cfg.Address)
	}
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = defaultConnectAttempts
	}
	if cfg.ConnectBackoff <= 0 {
		cfg.ConnectBackoff = defaultConnectBackoff
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}

	return nil
}
