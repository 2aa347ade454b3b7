// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package flow

import "errors"

// FailureClass groups a flow's failures so the process can surface distinct
// exit codes for them.
type FailureClass int

const (
	// FailureNone: the flow completed cleanly.
	FailureNone FailureClass = iota
	// FailureTransport: the flow died on a fatal transport or IO error
	// after it was established.
	FailureTransport
	// FailureConfig: the configuration was rejected, no run happened.
	FailureConfig
	// FailureConnect: connection establishment failed after all attempts.
	FailureConnect
)

func (c FailureClass) String() string {
	switch c {
	case FailureNone:
		return "none"
	case FailureTransport:
		return "transport"
	case FailureConfig:
		return "configuration"
	case FailureConnect:
		return "connect"
	default:
		return "unknown"
	}
}

type classifiedError struct {
	class FailureClass
	err   error
}

func (e *classifiedError) Error() string {
	return e.err.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.err
}

func configError(err error) error {
	return &classifiedError{class: FailureConfig, err: err}
}

func connectError(err error) error {
	return &classifiedError{class: FailureConnect, err: err}
}

func transportError(err error) error {
	return &classifiedError{class: FailureTransport, err: err}
}

// Classify maps an error returned by Run to its FailureClass.
func Classify(err error) FailureClass {
	if err == nil {
		return FailureNone
	}

	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.class
	}

	return FailureTransport
}
