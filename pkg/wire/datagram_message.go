// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dtn7/cboring"
)

// DatagramMessage is the Wire Unit of datagram mode: a CBOR array of four
// elements, the chunk's sequence number, the send time as Unix nanoseconds,
// a flags word and the payload byte string.
//
// The sequence number and send timestamp are embedded in the message itself
// because the transport guarantees neither ordering nor delivery; each
// message must be interpretable in isolation. The timestamp is wall-clock
// time, so correlating it with the receiver's clock assumes both processes
// are synchronised externally.
type DatagramMessage struct {
	SequenceNumber   uint64
	SendTimeUnixNano uint64
	Flags            uint64
	Payload          []byte
}

func (m *DatagramMessage) String() string {
	return fmt.Sprintf("DatagramMessage(%d, %d bytes, flags %#x)",
		m.SequenceNumber, len(m.Payload), m.Flags)
}

// Final reports whether this message ends its flow.
func (m *DatagramMessage) Final() bool {
	return m.Flags&FlagFinal != 0
}

// Marker reports whether this message is a pure end-of-flow marker that
// carries no chunk.
func (m *DatagramMessage) Marker() bool {
	return m.Final() && len(m.Payload) == 0
}

// MarshalCbor writes the message's CBOR representation.
func (m *DatagramMessage) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(4, w); err != nil {
		return err
	}

	for _, field := range []uint64{m.SequenceNumber, m.SendTimeUnixNano, m.Flags} {
		if err := cboring.WriteUInt(field, w); err != nil {
			return err
		}
	}

	if err := cboring.WriteByteStringLen(uint64(len(m.Payload)), w); err != nil {
		return err
	}
	if _, err := w.Write(m.Payload); err != nil {
		return err
	}

	return nil
}

// UnmarshalCbor reads the message's CBOR representation.
func (m *DatagramMessage) UnmarshalCbor(r io.Reader) error {
	if n, err := cboring.ReadArrayLength(r); err != nil {
		return fmt.Errorf("reading message header failed: %w", err)
	} else if n != 4 {
		return fmt.Errorf("DatagramMessage expected array length 4, got %d", n)
	}

	for _, field := range []*uint64{&m.SequenceNumber, &m.SendTimeUnixNano, &m.Flags} {
		var err error
		if *field, err = cboring.ReadUInt(r); err != nil {
			return fmt.Errorf("reading message field failed: %w", err)
		}
	}

	length, err := cboring.ReadByteStringLen(r)
	if err != nil {
		return fmt.Errorf("reading payload length failed: %w", err)
	}
	if length > MaxPayloadSize {
		return fmt.Errorf("declared payload length %d exceeds the %d limit", length, MaxPayloadSize)
	}

	m.Payload = make([]byte, length)
	if _, err := io.ReadFull(r, m.Payload); err != nil {
		return fmt.Errorf("message truncated, expected %d payload bytes: %w", length, err)
	}

	return nil
}

// Encode serialises the message into the byte slice handed to the transport's
// datagram send.
func (m *DatagramMessage) Encode() ([]byte, error) {
	buff := new(bytes.Buffer)
	if err := m.MarshalCbor(buff); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

// DecodeDatagramMessage parses one received datagram. The declared payload
// length must exactly use up the datagram's bytes; a mismatch in either
// direction rejects the whole unit.
func DecodeDatagramMessage(raw []byte) (*DatagramMessage, error) {
	buff := bytes.NewReader(raw)

	m := new(DatagramMessage)
	if err := m.UnmarshalCbor(buff); err != nil {
		return nil, err
	}

	if buff.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after a %d byte payload", buff.Len(), len(m.Payload))
	}

	return m, nil
}
