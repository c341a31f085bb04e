// Copyright 2026 The reqwire Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package status

import "fmt"

// A Code classifies the outcome of a request engine operation. Every
// failure surfaced by this library carries exactly one Code.
type Code int

const (
	// OK indicates success. It never appears inside a non-nil error.
	OK Code = iota
	// OperationTimeout indicates the configured deadline passed before
	// or during the operation.
	OperationTimeout
	// NotStarted indicates an operation that requires an active session
	// was invoked before Start succeeded.
	NotStarted
	// InvalidArgument indicates a sequencing or lookup failure, such as
	// querying the redirect target when no session exists or no
	// Location header was received.
	InvalidArgument
	// SessionError indicates the transport session failed while the
	// exchange was in flight.
	SessionError
	// UriParsingError indicates the target could not be parsed into a
	// usable URI.
	UriParsingError
	// ConnectionProblem indicates a session could not be acquired, for
	// example because the dial failed or the pool is exhausted.
	ConnectionProblem
)

var codeNames = map[Code]string{
	OK:                "OK",
	OperationTimeout:  "OperationTimeout",
	NotStarted:        "NotStarted",
	InvalidArgument:   "InvalidArgument",
	SessionError:      "SessionError",
	UriParsingError:   "UriParsingError",
	ConnectionProblem: "ConnectionProblem",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// A Status is an error with a classification Code and an optional
// wrapped cause. Statuses are always returned, never panicked.
type Status struct {
	Code  Code
	Msg   string
	Cause error
}

// New returns a Status with the given code and message.
func New(code Code, msg string) *Status {
	return &Status{Code: code, Msg: msg}
}

// Newf is New with fmt.Sprintf formatting of the message.
func Newf(code Code, format string, args ...interface{}) *Status {
	return &Status{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns a Status with the given code and message whose Unwrap
// method exposes cause.
func Wrap(code Code, msg string, cause error) *Status {
	return &Status{Code: code, Msg: msg, Cause: cause}
}

func (s *Status) Error() string {
	if s.Cause != nil {
		return fmt.Sprintf("reqwire: %s: %s: %v", s.Code, s.Msg, s.Cause)
	}
	return fmt.Sprintf("reqwire: %s: %s", s.Code, s.Msg)
}

func (s *Status) Unwrap() error {
	return s.Cause
}

// Timeout reports whether the status represents a deadline expiry.
// It satisfies the Timeout() convention used by net.Error so that
// generic timeout detection sees engine deadlines too.
func (s *Status) Timeout() bool {
	return s.Code == OperationTimeout
}

// CodeOf returns the Code carried by err, OK for nil, and SessionError
// for any foreign error type.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	if s, ok := err.(*Status); ok {
		return s.Code
	}
	return SessionError
}
