// Copyright 2026 The reqwire Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package session provides transport sessions: acquired, possibly
// pooled connection handles capable of executing one HTTP exchange.
//
// A Session is push-based on the receive side. The engine registers
// Hooks before submitting, then drives the session by calling Pump;
// each pump delivers whatever arrived on the wire (raw header lines
// first, then opaque body bytes) to the hooks. Pump blocks for at most
// a small quantum, so the caller's cooperative deadline checks run
// between pumps.
package session

import (
	"crypto/tls"
	"time"

	"github.com/reqwire/reqwire/uri"
)

// Hooks are the callbacks a session invokes while receiving a response
// and writing a request body. The engine instance is captured by the
// closures, so there is no user-data pointer to dangle.
type Hooks struct {
	// HeaderLine receives each raw response header line with its line
	// terminator. The bare "\r\n" sentinel ending the header section is
	// delivered last. The response status line is not delivered; the
	// session consumes it itself.
	HeaderLine func(line string)
	// Body receives response body bytes in wire order and returns the
	// count it accepted. Accepting fewer bytes than offered aborts the
	// transfer.
	Body func(p []byte) int
	// Pull produces outgoing request-body bytes on demand. Returning 0
	// ends the body stream.
	Pull func(p []byte) int
}

// A Request is one configured exchange handed to Session.Submit.
type Request struct {
	// Verb is the HTTP method, written verbatim.
	Verb string
	// Target is the absolute target URI, written verbatim into the
	// request line.
	Target string
	// Host is the Host header value to send when Headers does not
	// already carry one.
	Host string
	// Headers are pre-serialized "Name: Value" entries written one per
	// line in the given order. No deduplication, reordering, or casing
	// normalization is applied.
	Headers []string
	// HasBody indicates a request body will be pulled via Hooks.Pull.
	// The body uses the caller's Content-Length header when present and
	// chunked transfer encoding otherwise.
	HasBody bool
	// Deadline, when non-zero, bounds the time spent writing the
	// request onto the wire.
	Deadline time.Time
	// Hooks are the receive and body-pull callbacks for the exchange.
	Hooks Hooks
}

// Params configure session acquisition and pumping.
type Params struct {
	// DialTimeout bounds establishing a new connection. Zero falls back
	// to the factory default.
	DialTimeout time.Duration
	// PumpQuantum bounds how long a single Pump may block waiting for
	// bytes. Zero means 100ms.
	PumpQuantum time.Duration
	// TLS overrides the factory TLS configuration for this session.
	TLS *tls.Config
	// Reuse returns the connection to the factory pool when the
	// exchange completes cleanly. Otherwise the connection is closed.
	Reuse bool
	// Fresh forces a newly dialed connection even when an idle pooled
	// one is available.
	Fresh bool
}

// A Session executes one HTTP exchange over an underlying connection.
// It is exclusively owned by one engine while active and is not safe
// for concurrent use.
type Session interface {
	// Submit writes the request onto the wire, pulling body bytes from
	// the request's Pull hook on demand. It does not read the response.
	Submit(req Request) error
	// Pump drives one bounded step of the receive loop, delivering
	// header lines and body bytes to the hooks. A nil return with no
	// hook invocations means the pump timed out without progress;
	// deadline, when non-zero, caps the blocking time in addition to
	// the pump quantum.
	Pump(deadline time.Time) error
	// Done reports whether the response has been fully received.
	Done() bool
	// StatusCode returns the HTTP status code of the response, or 0
	// when it has not been determined.
	StatusCode() int
	// ErrorText returns the low-level error text of the last transport
	// failure, or "" when none occurred.
	ErrorText() string
	// Recycled reports whether the underlying connection was reused
	// from the pool rather than freshly dialed.
	Recycled() bool
	// DoNotReuse marks the underlying connection so Close discards it
	// instead of returning it to the pool.
	DoNotReuse()
	// Close releases the session exactly once: back to the pool when
	// the exchange completed cleanly and reuse is on, closed otherwise.
	Close() error
}

// A Factory provides sessions for target URIs. Implementations must
// fail with a descriptive error on resource exhaustion and honor the
// dial timeout in Params rather than blocking indefinitely.
type Factory interface {
	ProvideSession(target *uri.URI, params Params) (Session, error)
}
