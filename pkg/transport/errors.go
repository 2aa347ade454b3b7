// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"errors"

	"github.com/quic-go/quic-go"
)

const (
	// CodeDone is sent by the sender after its flow completed normally.
	CodeDone quic.ApplicationErrorCode = 0
	// CodeDrained is sent by the receiver once it observed a flow's end,
	// either the stream's half-close or the final datagram marker.
	CodeDrained quic.ApplicationErrorCode = 1
	// CodeLocalError designates errors on the closing side, like a failure
	// to open the connection's event log.
	CodeLocalError quic.ApplicationErrorCode = 2
	// CodeProtocolError is sent when the peer's data could not be parsed.
	CodeProtocolError quic.ApplicationErrorCode = 3
	// CodeShutdown is sent when a process terminates on a signal and tears
	// its open flows down.
	CodeShutdown quic.ApplicationErrorCode = 4
)

// StreamCodeTransmission cancels a stream after a transmission error.
const StreamCodeTransmission quic.StreamErrorCode = 1

// CleanClose reports whether err stems from a connection that was closed
// deliberately at the end of a flow rather than by a failure.
func CleanClose(err error) bool {
	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) {
		switch appErr.ErrorCode {
		case CodeDone, CodeDrained, CodeShutdown:
			return true
		}
	}
	return false
}
