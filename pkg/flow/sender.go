// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package flow

import (
	"bufio"
	"io"
	"time"

	"github.com/quic-go/quic-go"
	log "github.com/sirupsen/logrus"

	"github.com/quicbench/quicbench/pkg/chunk"
	"github.com/quicbench/quicbench/pkg/transport"
	"github.com/quicbench/quicbench/pkg/wire"
)

// unitSender emits one Wire Unit per chunk. The two implementations are
// selected once at flow start and differ in their failure policy: stream
// write errors are fatal because the stream's ordering guarantee would be
// silently corrupted by skipping, while a failed datagram send abandons just
// that chunk and the sequence continues.
//
// Send reports whether the chunk actually left: a datagram dropped at the
// source returns (false, nil) and must not produce a Send Event.
type unitSender interface {
	Send(c *chunk.Chunk) (sent bool, err error)

	// Finish signals the flow's end: half-close for streams, the final
	// marker message for datagrams.
	Finish() error
}

// sendStream is the subset of quic.SendStream the stream sender relies on.
type sendStream interface {
	io.Writer
	Close() error
	CancelWrite(quic.StreamErrorCode)
}

// streamSender writes length-delimited frames onto one ordered, reliable,
// flow-controlled stream. Writes block under transport backpressure; the
// resulting delay is the experiment's signal and is deliberately neither
// retried nor timed out here.
type streamSender struct {
	stream sendStream
	writer *bufio.Writer
}

func newStreamSender(stream sendStream) *streamSender {
	return &streamSender{
		stream: stream,
		writer: bufio.NewWriter(stream),
	}
}

func (s *streamSender) Send(c *chunk.Chunk) (bool, error) {
	frame := wire.StreamFrame{
		SequenceNumber: c.SequenceNumber,
		Payload:        c.Payload,
	}

	// The buffered writer coalesces header and payload; Flush hands the
	// whole frame to the transport and returns once all bytes are
	// accepted by its send buffer or a write failed for good.
	if err := frame.MarshalCbor(s.writer); err != nil {
		s.stream.CancelWrite(transport.StreamCodeTransmission)
		return false, err
	}
	if err := s.writer.Flush(); err != nil {
		s.stream.CancelWrite(transport.StreamCodeTransmission)
		return false, err
	}

	return true, nil
}

// Finish half-closes the stream, signalling end-of-data to the receiver.
func (s *streamSender) Finish() error {
	if err := s.writer.Flush(); err != nil {
		s.stream.CancelWrite(transport.StreamCodeTransmission)
		return err
	}
	return s.stream.Close()
}

// datagramConn is the subset of quic.Connection the datagram sender relies
// on.
type datagramConn interface {
	SendMessage([]byte) error
}

// datagramSender emits one self-contained unreliable message per chunk, with
// sequence number and send timestamp embedded in the payload. A send the
// transport rejects is logged and the chunk abandoned: retrying would distort
// the offered load the run is supposed to measure.
type datagramSender struct {
	conn datagramConn
	name string
	next uint64
}

func newDatagramSender(conn datagramConn, name string) *datagramSender {
	return &datagramSender{
		conn: conn,
		name: name,
	}
}

func (d *datagramSender) Send(c *chunk.Chunk) (bool, error) {
	msg := wire.DatagramMessage{
		SequenceNumber:   c.SequenceNumber,
		SendTimeUnixNano: uint64(time.Now().UnixNano()),
		Payload:          c.Payload,
	}

	raw, err := msg.Encode()
	if err != nil {
		return false, err
	}

	d.next = c.SequenceNumber + 1

	if err := d.conn.SendMessage(raw); err != nil {
		log.WithFields(log.Fields{
			"flow":  d.name,
			"seq":   c.SequenceNumber,
			"error": err,
		}).Warn("Datagram send failed, chunk dropped at source")
		return false, nil
	}

	return true, nil
}

// Finish emits the flow's end-of-flow marker: an empty final message one
// sequence number past the last chunk. Its loss is tolerable, the receiver's
// idle timeout covers that case.
func (d *datagramSender) Finish() error {
	msg := wire.DatagramMessage{
		SequenceNumber:   d.next,
		SendTimeUnixNano: uint64(time.Now().UnixNano()),
		Flags:            wire.FlagFinal,
	}

	raw, err := msg.Encode()
	if err != nil {
		return err
	}

	if err := d.conn.SendMessage(raw); err != nil {
		log.WithFields(log.Fields{
			"flow":  d.name,
			"error": err,
		}).Warn("Final marker send failed, receiver will drain on idle timeout")
	}

	return nil
}
