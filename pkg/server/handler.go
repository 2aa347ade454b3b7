// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	log "github.com/sirupsen/logrus"

	"github.com/quicbench/quicbench/pkg/eventlog"
	"github.com/quicbench/quicbench/pkg/transport"
	"github.com/quicbench/quicbench/pkg/wire"
)

// flowState tracks a receiving flow through its lifecycle.
type flowState int

const (
	// stateAwaitingData: the connection is up, no unit arrived yet.
	stateAwaitingData flowState = iota
	// stateReceiving: at least one unit arrived.
	stateReceiving
	// stateDrained: the flow's end was observed, stragglers may still be
	// recorded until the connection goes down.
	stateDrained
	// stateClosed: the event log is flushed and closed.
	stateClosed
)

func (s flowState) String() string {
	switch s {
	case stateAwaitingData:
		return "awaiting-data"
	case stateReceiving:
		return "receiving"
	case stateDrained:
		return "drained"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// flowHandler receives one flow: one inbound connection, one event log.
// Handlers are fully isolated from each other; a failing flow never affects
// another one.
type flowHandler struct {
	id       string
	conn     quic.Connection
	cfg      Config
	registry *Registry

	events *eventlog.Writer

	mutex       sync.Mutex
	state       flowState
	mode        wire.Mode
	units       uint64
	bytes       uint64
	parseErrors uint64
	started     time.Time
	lastArrival time.Time

	drainOnce   sync.Once
	connLogOnce sync.Once
}

func newFlowHandler(id string, conn quic.Connection, cfg Config, registry *Registry) *flowHandler {
	return &flowHandler{
		id:       id,
		conn:     conn,
		cfg:      cfg,
		registry: registry,
		started:  time.Now(),
	}
}

func (h *flowHandler) log() *log.Entry {
	return log.WithFields(log.Fields{
		"flow": h.id,
		"peer": h.conn.RemoteAddr(),
	})
}

// handle runs the flow to completion and never returns before the event log
// is flushed and closed.
func (h *flowHandler) handle() {
	events, err := eventlog.NewReceiveLog(h.logPath(), h.cfg.FlushEvery)
	if err != nil {
		h.log().WithError(err).Error("Opening the receive log failed")
		_ = h.conn.CloseWithError(transport.CodeLocalError, "receive log unavailable")
		return
	}
	h.events = events

	h.log().Info("Receiving flow")
	h.publish()

	// Both paths run regardless of the peer's mode: exactly one will see
	// data, both end when the connection goes down.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.receiveStream()
	}()
	go func() {
		defer wg.Done()
		h.receiveDatagrams()
	}()
	wg.Wait()

	h.close()
}

func (h *flowHandler) logPath() string {
	name := fmt.Sprintf("recv_%s_%s.csv", h.id, sanitize(h.conn.RemoteAddr().String()))
	return filepath.Join(h.cfg.OutputDir, name)
}

// receiveStream accepts the flow's single ordered stream and reassembles its
// length-delimited frames.
func (h *flowHandler) receiveStream() {
	stream, err := h.conn.AcceptUniStream(context.Background())
	if err != nil {
		h.logConnectionEnd("waiting for a stream", err)
		return
	}

	reader := bufio.NewReader(stream)
	for {
		frame := new(wire.StreamFrame)
		if err := frame.UnmarshalCbor(reader); err != nil {
			if err == io.EOF {
				// half-close: the sender is done
				h.drain("stream complete", transport.CodeDrained)
			} else {
				// A corrupt length-delimited stream cannot be
				// resynchronised; end the path, keep the events
				// recorded so far.
				h.countParseError()
				h.log().WithError(err).Error("Stream frame unreadable, ending the flow")
				h.drain("frame parse error", transport.CodeProtocolError)
			}
			return
		}

		h.record(frame.SequenceNumber, wire.ModeStream, len(frame.Payload))
	}
}

// receiveDatagrams processes inbound messages independently and immediately:
// no reordering, no deduplication, no buffering. Out-of-order and duplicate
// arrivals each get their own Receive Event; analysis happens offline.
func (h *flowHandler) receiveDatagrams() {
	for {
		raw, err := h.conn.ReceiveMessage(context.Background())
		if err != nil {
			h.logConnectionEnd("receiving datagrams", err)
			return
		}

		msg, err := wire.DecodeDatagramMessage(raw)
		if err != nil {
			h.countParseError()
			h.log().WithFields(log.Fields{
				"bytes": len(raw),
				"error": err,
			}).Warn("Dropping malformed datagram")
			continue
		}

		if !msg.Marker() {
			h.record(msg.SequenceNumber, wire.ModeDatagram, len(msg.Payload))
		}

		if msg.Final() {
			h.log().WithField("seq", msg.SequenceNumber).Debug("Final marker received")

			// keep the connection up for a drain window so reordered
			// stragglers still get recorded
			time.AfterFunc(h.cfg.DrainWindow, func() {
				h.drain("final marker", transport.CodeDrained)
			})
		}
	}
}

// record appends one Receive Event and updates the flow's counters.
func (h *flowHandler) record(seq uint64, mode wire.Mode, length int) {
	now := time.Now()

	h.mutex.Lock()
	if h.state == stateAwaitingData {
		h.state = stateReceiving
	}
	h.mode = mode
	h.units++
	h.bytes += uint64(length)
	h.lastArrival = now
	h.mutex.Unlock()

	h.publish()

	if err := h.events.LogReceive(eventlog.ReceiveEvent{
		SequenceNumber: seq,
		Mode:           mode,
		Length:         length,
		Received:       now,
	}); err != nil {
		h.log().WithError(err).Error("Recording a receive event failed")
	}
}

func (h *flowHandler) countParseError() {
	h.mutex.Lock()
	h.parseErrors++
	h.mutex.Unlock()
	h.publish()
}

// drain marks the flow's end once and closes the connection, which also ends
// the sibling receive path.
func (h *flowHandler) drain(reason string, code quic.ApplicationErrorCode) {
	h.drainOnce.Do(func() {
		h.setState(stateDrained)
		h.log().WithField("reason", reason).Info("Flow drained")
		_ = h.conn.CloseWithError(code, reason)
	})
}

// logConnectionEnd classifies why a receive path ended. Both paths see the
// same connection error; only the first one logs it.
func (h *flowHandler) logConnectionEnd(action string, err error) {
	h.connLogOnce.Do(func() {
		var netErr net.Error
		var appErr *quic.ApplicationError

		switch {
		case transport.CleanClose(err):
			// the peer finished or we drained the flow ourselves
			h.markDrained()
			h.log().Debug("Connection closed at the flow's end")

		case errors.As(err, &netErr) && netErr.Timeout():
			// idle timeout: the drain fallback for datagram flows
			// whose final marker got lost
			h.markDrained()
			h.log().Debug("Peer idle timeout, flow drained")

		case errors.As(err, &appErr):
			h.log().WithFields(log.Fields{
				"action":     action,
				"remote":     appErr.Remote,
				"error code": appErr.ErrorCode,
				"error msg":  appErr.ErrorMessage,
			}).Warn("Peer closed the connection with an error")

		default:
			h.log().WithFields(log.Fields{
				"action": action,
				"error":  err,
			}).Error("Fatal transport error, closing the flow")
		}
	})
}

func (h *flowHandler) markDrained() {
	h.drainOnce.Do(func() {
		h.setState(stateDrained)
	})
}

// close flushes and closes the event log, preserving everything recorded so
// far regardless of how the flow ended.
func (h *flowHandler) close() {
	summary := h.snapshot()

	h.setState(stateClosed)

	if err := h.events.Close(); err != nil {
		h.log().WithError(err).Error("Closing the receive log failed")
	}

	h.log().WithFields(log.Fields{
		"units": summary.Units,
		"bytes": summary.Bytes,
	}).Info("Flow closed")
}

// shutdown tears the flow down on daemon termination.
func (h *flowHandler) shutdown() {
	_ = h.conn.CloseWithError(transport.CodeShutdown, "daemon shutting down")
}

func (h *flowHandler) setState(state flowState) {
	h.mutex.Lock()
	h.state = state
	h.mutex.Unlock()
	h.publish()
}

func (h *flowHandler) snapshot() FlowStatus {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return FlowStatus{
		ID:          h.id,
		Remote:      h.conn.RemoteAddr().String(),
		Mode:        string(h.mode),
		State:       h.state.String(),
		Units:       h.units,
		Bytes:       h.bytes,
		ParseErrors: h.parseErrors,
		StartedAt:   h.started,
		LastArrival: h.lastArrival,
	}
}

func (h *flowHandler) publish() {
	h.registry.put(h.snapshot())
}

// sanitize turns a remote address into a filename-safe fragment.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}
