// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wire

import (
	"errors"
	"fmt"
	"io"

	"github.com/dtn7/cboring"
)

// StreamFrame is the Wire Unit of stream mode: a CBOR array of two elements,
// the chunk's sequence number and its payload byte string. Frames follow each
// other back to back on the flow's ordered stream; the transport guarantees
// their order and integrity, so no timestamp or flags travel with them.
type StreamFrame struct {
	SequenceNumber uint64
	Payload        []byte
}

func (f *StreamFrame) String() string {
	return fmt.Sprintf("StreamFrame(%d, %d bytes)", f.SequenceNumber, len(f.Payload))
}

// MarshalCbor writes the frame's CBOR representation.
func (f *StreamFrame) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}

	if err := cboring.WriteUInt(f.SequenceNumber, w); err != nil {
		return err
	}

	if err := cboring.WriteByteStringLen(uint64(len(f.Payload)), w); err != nil {
		return err
	}
	if _, err := w.Write(f.Payload); err != nil {
		return err
	}

	return nil
}

// UnmarshalCbor reads one frame off the stream. A clean end of the stream at
// a frame boundary is reported as io.EOF; every other failure, including a
// stream ending inside a frame, is an error the caller must treat as final
// because a corrupt length-delimited stream cannot be resynchronised.
func (f *StreamFrame) UnmarshalCbor(r io.Reader) error {
	if n, err := cboring.ReadArrayLength(r); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("reading frame header failed: %w", err)
	} else if n != 2 {
		return fmt.Errorf("StreamFrame expected array length 2, got %d", n)
	}

	var err error
	if f.SequenceNumber, err = cboring.ReadUInt(r); err != nil {
		return fmt.Errorf("reading sequence number failed: %w", err)
	}

	length, err := cboring.ReadByteStringLen(r)
	if err != nil {
		return fmt.Errorf("reading payload length failed: %w", err)
	}
	if length > MaxPayloadSize {
		return fmt.Errorf("declared payload length %d exceeds the %d limit", length, MaxPayloadSize)
	}

	f.Payload = make([]byte, length)
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return fmt.Errorf("frame truncated, expected %d payload bytes: %w", length, err)
	}

	return nil
}
