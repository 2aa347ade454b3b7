// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package flow

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/quic-go/quic-go"
	log "github.com/sirupsen/logrus"

	"github.com/quicbench/quicbench/pkg/chunk"
	"github.com/quicbench/quicbench/pkg/eventlog"
	"github.com/quicbench/quicbench/pkg/pacing"
	"github.com/quicbench/quicbench/pkg/transport"
	"github.com/quicbench/quicbench/pkg/wire"
)

// Run executes one flow from connection establishment to teardown. It
// returns nil on clean completion, which includes runs stopped by the
// configured wall-clock cap or a cancelled context; use Classify on the
// returned error for the process exit code.
//
// The send-side event log is flushed and closed on every exit path.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return configError(err)
	}

	flog := log.WithFields(log.Fields{
		"flow": cfg.Name,
		"mode": cfg.Mode,
		"peer": cfg.Address,
	})

	input, err := os.Open(cfg.InputPath)
	if err != nil {
		return configError(err)
	}
	defer input.Close()

	source, err := chunk.NewSource(input, cfg.ChunkBytes)
	if err != nil {
		return configError(err)
	}

	pacer, err := pacing.NewPacer(cfg.RateMbps * 1e6)
	if err != nil {
		return configError(err)
	}

	events, err := eventlog.NewSendLog(cfg.SendLogPath, cfg.FlushEvery)
	if err != nil {
		return configError(fmt.Errorf("opening the send log failed: %w", err))
	}

	c := &controller{
		cfg:    cfg,
		source: source,
		pacer:  pacer,
		events: events,
		log:    flog,
	}
	runErr := c.run(ctx)

	if err := events.Close(); err != nil {
		flog.WithError(err).Error("Closing the send log failed")
		if runErr == nil {
			runErr = transportError(err)
		}
	}

	return runErr
}

// controller owns one flow's lifecycle: connection, sender dispatch,
// completion condition and teardown.
type controller struct {
	cfg    Config
	source *chunk.Source
	pacer  *pacing.Pacer
	events *eventlog.Writer
	log    *log.Entry
}

func (c *controller) run(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return connectError(err)
	}
	c.log.Info("Connection established")

	sender, err := c.newSender(conn)
	if err != nil {
		_ = conn.CloseWithError(transport.CodeLocalError, "sender setup failed")
		return transportError(err)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	// A stream write blocked on backpressure outlives any context. Closing
	// the connection is the only way to unblock it when the run is
	// interrupted or hits its wall-clock cap.
	stopWatchdog := make(chan struct{})
	defer close(stopWatchdog)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.CloseWithError(transport.CodeShutdown, "run interrupted")
		case <-stopWatchdog:
		}
	}()

	if err := c.sendLoop(ctx, sender); err != nil {
		_ = conn.CloseWithError(transport.CodeLocalError, "send failed")
		return transportError(err)
	}

	if ctx.Err() != nil {
		// interrupted or wall-clock cap: a completion condition, the
		// watchdog already tore the connection down
		return nil
	}

	if err := sender.Finish(); err != nil {
		_ = conn.CloseWithError(transport.CodeLocalError, "finish failed")
		return transportError(fmt.Errorf("finishing the flow failed: %w", err))
	}

	// Wait for the receiver to confirm the drained flow by closing the
	// connection, bounded by the drain timeout.
	select {
	case <-conn.Context().Done():
		c.log.Debug("Receiver closed the connection")
	case <-time.After(c.cfg.DrainTimeout):
		c.log.Debug("Drain timeout expired")
	case <-ctx.Done():
	}

	_ = conn.CloseWithError(transport.CodeDone, "done")
	c.log.Info("Flow completed")

	return nil
}

// dial establishes the QUIC connection with a bounded number of attempts.
func (c *controller) dial(ctx context.Context) (quic.Connection, error) {
	quicConf := transport.GenerateQUICConfig(c.cfg.IdleTimeout, c.cfg.Mode == wire.ModeDatagram)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.ConnectAttempts; attempt++ {
		conn, err := quic.DialAddr(ctx, c.cfg.Address, transport.GenerateDialerTLSConfig(), quicConf)
		if err == nil {
			return conn, nil
		}

		lastErr = err
		c.log.WithFields(log.Fields{
			"attempt": attempt,
			"error":   err,
		}).Warn("Connection attempt failed")

		if attempt == c.cfg.ConnectAttempts {
			break
		}

		select {
		case <-time.After(c.cfg.ConnectBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("connecting to %s failed after %d attempts: %w",
		c.cfg.Address, c.cfg.ConnectAttempts, lastErr)
}

func (c *controller) newSender(conn quic.Connection) (unitSender, error) {
	switch c.cfg.Mode {
	case wire.ModeStream:
		stream, err := conn.OpenUniStream()
		if err != nil {
			return nil, fmt.Errorf("opening the flow's stream failed: %w", err)
		}
		return newStreamSender(stream), nil

	case wire.ModeDatagram:
		if !conn.ConnectionState().SupportsDatagrams {
			return nil, fmt.Errorf("peer does not support datagrams")
		}
		return newDatagramSender(conn, c.cfg.Name), nil

	default:
		// Validate only lets the two known modes through
		return nil, fmt.Errorf("unknown transport mode %q", c.cfg.Mode)
	}
}

// sendLoop drives Source -> Pacer -> Sender until the input is exhausted,
// the chunk-count condition is met or the context ends the run.
func (c *controller) sendLoop(ctx context.Context, sender unitSender) error {
	var sent, dropped uint64

	for {
		if c.cfg.MaxChunks > 0 && sent+dropped >= c.cfg.MaxChunks {
			break
		}

		ck, err := c.source.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return fmt.Errorf("reading the input payload failed: %w", err)
		}

		scheduled := c.pacer.Next(len(ck.Payload))
		if err := c.pacer.Wait(ctx, scheduled); err != nil {
			c.log.WithField("reason", err).Info("Flow stopped before the input was exhausted")
			return nil
		}

		ok, err := sender.Send(ck)
		actual := time.Now()
		if err != nil {
			if ctx.Err() != nil {
				// the watchdog closed the connection underneath us
				c.log.WithField("reason", ctx.Err()).Info("Flow stopped before the input was exhausted")
				return nil
			}
			return fmt.Errorf("sending chunk %d failed: %w", ck.SequenceNumber, err)
		}

		if !ok {
			dropped++
			continue
		}

		if err := c.events.LogSend(eventlog.SendEvent{
			SequenceNumber: ck.SequenceNumber,
			Mode:           c.cfg.Mode,
			Length:         len(ck.Payload),
			Scheduled:      scheduled,
			Actual:         actual,
			CCA:            c.cfg.CCA,
		}); err != nil {
			return fmt.Errorf("recording the send event failed: %w", err)
		}

		sent++
		if sent%1000 == 0 {
			c.log.WithField("sent", sent).Debug("Flow progress")
		}
	}

	c.log.WithFields(log.Fields{
		"sent":    sent,
		"dropped": dropped,
	}).Info("All chunks handed to the transport")

	return nil
}
