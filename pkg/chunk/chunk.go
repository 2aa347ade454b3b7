// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package chunk splits an input payload into the sequence-numbered,
// size-bounded units a flow transmits.
package chunk

import (
	"fmt"
	"io"
)

// Chunk is one unit of application payload. Sequence numbers start at zero
// and increase by exactly one per Chunk, independent of the transport mode.
// A Chunk must not be modified after the Source handed it out.
type Chunk struct {
	SequenceNumber uint64
	Payload        []byte
}

func (c *Chunk) String() string {
	return fmt.Sprintf("Chunk(%d, %d bytes)", c.SequenceNumber, len(c.Payload))
}

// Source produces a flow's Chunks in increasing sequence order.
//
// All Chunks carry exactly chunkSize bytes of payload, except the last one,
// which may be shorter. A Source is not restartable; reading the same input
// again requires a new Source over a fresh reader.
type Source struct {
	reader    io.Reader
	chunkSize int
	next      uint64
	exhausted bool
}

// NewSource wraps the given reader into a Source yielding Chunks of up to
// chunkSize payload bytes.
func NewSource(r io.Reader, chunkSize int) (*Source, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	return &Source{
		reader:    r,
		chunkSize: chunkSize,
	}, nil
}

// Next returns the following Chunk. After the input is exhausted, io.EOF is
// returned. Every other error means the underlying reader failed, which is
// fatal to the flow.
func (s *Source) Next() (*Chunk, error) {
	if s.exhausted {
		return nil, io.EOF
	}

	buff := make([]byte, s.chunkSize)
	n, err := io.ReadFull(s.reader, buff)
	switch err {
	case nil:

	case io.ErrUnexpectedEOF:
		// short last chunk
		s.exhausted = true

	case io.EOF:
		s.exhausted = true
		return nil, io.EOF

	default:
		return nil, err
	}

	c := &Chunk{
		SequenceNumber: s.next,
		Payload:        buff[:n],
	}
	s.next++

	return c, nil
}
