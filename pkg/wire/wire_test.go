// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wire

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/dtn7/cboring"
)

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"stream", "datagram"} {
		if mode, err := ParseMode(valid); err != nil {
			t.Fatal(err)
		} else if string(mode) != valid {
			t.Fatalf("parsed %q into %q", valid, mode)
		}
	}

	for _, invalid := range []string{"", "dg", "Stream", "quic"} {
		if _, err := ParseMode(invalid); err == nil {
			t.Fatalf("expected error for mode %q", invalid)
		}
	}
}

func TestStreamFrameSequence(t *testing.T) {
	buff := new(bytes.Buffer)

	frames := []StreamFrame{
		{SequenceNumber: 0, Payload: []byte("hello")},
		{SequenceNumber: 1, Payload: bytes.Repeat([]byte{0x23}, 1200)},
		{SequenceNumber: 2, Payload: []byte{}},
	}

	for i := range frames {
		if err := frames[i].MarshalCbor(buff); err != nil {
			t.Fatal(err)
		}
	}

	for i := range frames {
		var frame StreamFrame
		if err := frame.UnmarshalCbor(buff); err != nil {
			t.Fatal(err)
		}

		if frame.SequenceNumber != frames[i].SequenceNumber {
			t.Fatalf("frame %d: sequence number %d", i, frame.SequenceNumber)
		}
		if !bytes.Equal(frame.Payload, frames[i].Payload) {
			t.Fatalf("frame %d: payload differs", i)
		}
	}

	// a stream ending at a frame boundary is a clean EOF
	var frame StreamFrame
	if err := frame.UnmarshalCbor(buff); err != io.EOF {
		t.Fatalf("expected io.EOF at the stream's end, got %v", err)
	}
}

func TestStreamFrameTruncated(t *testing.T) {
	buff := new(bytes.Buffer)

	frame := StreamFrame{SequenceNumber: 42, Payload: bytes.Repeat([]byte{0xff}, 100)}
	if err := frame.MarshalCbor(buff); err != nil {
		t.Fatal(err)
	}

	// chop the payload short: must NOT look like a clean EOF
	raw := buff.Bytes()[:buff.Len()-10]

	var parsed StreamFrame
	err := parsed.UnmarshalCbor(bytes.NewReader(raw))
	if err == nil || err == io.EOF {
		t.Fatalf("expected a truncation error, got %v", err)
	}
}

func TestStreamFrameWrongArrayLength(t *testing.T) {
	buff := new(bytes.Buffer)
	if err := cboring.WriteArrayLength(3, buff); err != nil {
		t.Fatal(err)
	}
	if err := cboring.WriteUInt(0, buff); err != nil {
		t.Fatal(err)
	}

	var frame StreamFrame
	if err := frame.UnmarshalCbor(buff); err == nil {
		t.Fatal("expected an error for array length 3")
	}
}

func TestStreamFrameOversizedLength(t *testing.T) {
	buff := new(bytes.Buffer)
	if err := cboring.WriteArrayLength(2, buff); err != nil {
		t.Fatal(err)
	}
	if err := cboring.WriteUInt(7, buff); err != nil {
		t.Fatal(err)
	}
	if err := cboring.WriteByteStringLen(MaxPayloadSize+1, buff); err != nil {
		t.Fatal(err)
	}

	var frame StreamFrame
	err := frame.UnmarshalCbor(buff)
	if err == nil {
		t.Fatal("expected an error for an oversized declared length")
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("expected the length guard to fire, got: %v", err)
	}
}

func TestDatagramMessageRoundtrip(t *testing.T) {
	msg := DatagramMessage{
		SequenceNumber:   17,
		SendTimeUnixNano: 1620000000000000000,
		Flags:            FlagFinal,
		Payload:          []byte("last chunk"),
	}

	raw, err := msg.Encode()
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := DecodeDatagramMessage(raw)
	if err != nil {
		t.Fatal(err)
	}

	if parsed.SequenceNumber != msg.SequenceNumber ||
		parsed.SendTimeUnixNano != msg.SendTimeUnixNano ||
		parsed.Flags != msg.Flags ||
		!bytes.Equal(parsed.Payload, msg.Payload) {
		t.Fatalf("decoded message differs: %v vs %v", parsed, &msg)
	}

	if !parsed.Final() {
		t.Fatal("message must report itself as final")
	}
	if parsed.Marker() {
		t.Fatal("a final message with payload is not a pure marker")
	}
}

func TestDatagramMessageMarker(t *testing.T) {
	msg := DatagramMessage{SequenceNumber: 50, Flags: FlagFinal}

	raw, err := msg.Encode()
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := DecodeDatagramMessage(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !parsed.Marker() {
		t.Fatal("expected a pure end-of-flow marker")
	}
}

func TestDatagramMessageMalformed(t *testing.T) {
	msg := DatagramMessage{SequenceNumber: 3, Payload: []byte("payload")}
	raw, err := msg.Encode()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "empty", raw: []byte{}},
		{name: "garbage", raw: []byte{0xff, 0xff, 0xff}},
		{name: "truncated", raw: raw[:len(raw)-3]},
		{name: "trailing bytes", raw: append(append([]byte{}, raw...), 0x00)},
	}

	for _, test := range tests {
		if _, err := DecodeDatagramMessage(test.raw); err == nil {
			t.Fatalf("%s: expected a decode error", test.name)
		}
	}
}

func TestDatagramOverheadBound(t *testing.T) {
	msg := DatagramMessage{
		SequenceNumber:   ^uint64(0),
		SendTimeUnixNano: ^uint64(0),
		Flags:            ^uint64(0),
		Payload:          bytes.Repeat([]byte{0x42}, 1200),
	}

	raw, err := msg.Encode()
	if err != nil {
		t.Fatal(err)
	}

	if overhead := len(raw) - len(msg.Payload); overhead > DatagramOverhead {
		t.Fatalf("worst-case encoding overhead is %d, declared bound is %d", overhead, DatagramOverhead)
	}
}
