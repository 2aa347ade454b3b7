// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package wire defines the on-the-wire packaging of chunks, the Wire Units,
// for both transport modes.
//
// Stream mode multiplexes length-delimited frames into a flow's single
// ordered byte stream. Datagram mode packs each chunk into one self-contained
// unreliable message, carrying enough context to be interpreted on its own
// since neither ordering nor delivery is guaranteed.
//
// Both units are serialised as CBOR, checked strictly on decoding: a unit
// whose declared lengths do not match its actual bytes is rejected with an
// error instead of being partially interpreted.
package wire

import (
	"fmt"
)

// Mode selects a flow's transport packaging, fixed once at flow start.
type Mode string

const (
	// ModeStream sends chunks over one ordered, reliable byte stream.
	ModeStream Mode = "stream"
	// ModeDatagram sends each chunk as one unreliable, unordered message.
	ModeDatagram Mode = "datagram"
)

// ParseMode returns the Mode named by s.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeStream, ModeDatagram:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown transport mode %q", s)
	}
}

// FlagFinal marks a datagram message as the last one of its flow. A final
// message with an empty payload is a pure end-of-flow marker and carries no
// chunk.
const FlagFinal uint64 = 0x01

// MaxPayloadSize bounds the payload length a decoder accepts, guarding the
// stream reassembly path against running away on a corrupt length field.
const MaxPayloadSize = 1 << 20

// DatagramOverhead is the worst-case encoding overhead of a DatagramMessage
// over its payload: the array header plus three uints and the byte string
// header, each at most nine bytes.
const DatagramOverhead = 1 + 3*9 + 9
