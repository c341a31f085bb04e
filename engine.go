// Copyright 2026 The reqwire Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package reqwire

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http/httpguts"

	"github.com/reqwire/reqwire/buffer"
	"github.com/reqwire/reqwire/content"
	"github.com/reqwire/reqwire/headerline"
	"github.com/reqwire/reqwire/session"
	"github.com/reqwire/reqwire/status"
	"github.com/reqwire/reqwire/uri"
)

// State is the lifecycle state of an Engine. Transitions are
// one-directional: NotStarted, then Started, then Finished. No
// transition fires twice.
type State int

const (
	// NotStarted means Start has not succeeded yet.
	NotStarted State = iota
	// Started means the request has been dispatched and response bytes
	// may be read.
	Started
	// Finished is terminal; no further network I/O happens.
	Finished
)

var stateNames = []string{"NotStarted", "Started", "Finished"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State(?)"
}

// A Header is one request or response header pair. Order and
// duplicates are preserved everywhere headers travel in this package;
// HTTP permits repeated names and arrival order carries meaning.
type Header struct {
	Name  string
	Value string
}

// Config carries the per-request settings for New. The zero value is
// valid: no headers, no body, no deadline, quiet logging.
type Config struct {
	// Headers are sent in the given order, verbatim. No validation,
	// deduplication, or casing normalization is applied.
	Headers []Header
	// Provider supplies the request body on demand. Nil means no body.
	Provider content.Provider
	// Deadline is the absolute point in time after which the exchange
	// fails with OperationTimeout. Zero means no deadline.
	Deadline time.Time
	// Timeout, when set with a zero Deadline, derives the deadline as
	// now plus Timeout. It is also quoted in timeout failures for
	// diagnostics.
	Timeout time.Duration
	// Params configure session acquisition and pumping.
	Params session.Params
	// Logger receives warnings and debug logs. Nil means no logging.
	Logger *zap.Logger
}

// An Engine drives one HTTP request/response exchange to completion
// over a transport session. It bridges the session's push-based
// receive hooks to a pull-based consumer: response header lines
// accumulate as they arrive, body bytes queue in an internal buffer,
// and the consumer drains them with ReadBlock.
//
// An Engine is single-use and owned by a single goroutine. All network
// I/O happens between Start and End.
type Engine struct {
	factory  session.Factory
	verb     string
	target   *uri.URI
	headers  []Header
	provider content.Provider
	deadline time.Time
	timeout  time.Duration
	params   session.Params
	log      *zap.Logger

	state       State
	sess        session.Session
	buf         buffer.Response
	respHeaders []Header
	headersDone bool
	released    bool
	noReuse     bool
}

// New returns an engine for one exchange. The verb defaults to GET and
// must be a valid HTTP token; the target must have parsed cleanly.
func New(factory session.Factory, verb string, target *uri.URI, cfg Config) (*Engine, error) {
	if factory == nil {
		return nil, status.New(status.InvalidArgument, "nil session factory")
	}
	if verb == "" {
		verb = "GET"
	}
	if !httpguts.ValidHeaderFieldName(verb) {
		return nil, status.Newf(status.InvalidArgument, "invalid verb %q", verb)
	}
	if target == nil || target.Status() != status.OK {
		return nil, status.New(status.UriParsingError, "target URI did not parse")
	}
	deadline := cfg.Deadline
	if deadline.IsZero() && cfg.Timeout > 0 {
		deadline = time.Now().Add(cfg.Timeout)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		factory:  factory,
		verb:     verb,
		target:   target,
		headers:  append([]Header(nil), cfg.Headers...),
		provider: cfg.Provider,
		deadline: deadline,
		timeout:  cfg.Timeout,
		params:   cfg.Params,
		log:      log,
	}, nil
}

// State returns the engine lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Start dispatches the request: it acquires a session, configures the
// exchange, and writes the request onto the wire. Response headers and
// body bytes may already arrive during later pumps or be deferred.
//
// Calling Start again after it succeeded is a no-op returning nil. A
// deadline already expired, or a factory failure, leaves the engine
// NotStarted so the caller can tell "never ran" from "ran and failed".
// The HTTP status code of the response plays no role here: a 4xx or
// 5xx exchange still starts successfully.
func (e *Engine) Start() error {
	if e.state != NotStarted {
		return nil
	}
	if err := e.checkDeadline(); err != nil {
		return err
	}
	sess, err := e.factory.ProvideSession(e.target, e.params)
	if err != nil {
		return err
	}
	hooks := session.Hooks{
		HeaderLine: e.feedHeaderLine,
		Body:       e.buf.Feed,
	}
	if e.provider != nil {
		if err := e.provider.Rewind(); err != nil {
			_ = sess.Close()
			return status.Wrap(status.InvalidArgument, "rewinding content provider", err)
		}
		hooks.Pull = e.pullBody
	}
	lines := make([]string, len(e.headers))
	for i, h := range e.headers {
		lines[i] = h.Name + ": " + h.Value
	}
	e.sess = sess
	if e.noReuse {
		sess.DoNotReuse()
	}
	err = sess.Submit(session.Request{
		Verb:     e.verb,
		Target:   e.target.String(),
		Host:     e.target.HostHeader(),
		Headers:  lines,
		HasBody:  e.provider != nil,
		Deadline: e.deadline,
		Hooks:    hooks,
	})
	if err != nil {
		_ = sess.Close()
		e.sess = nil
		return err
	}
	e.state = Started
	return nil
}

// ReadBlock reads up to len(p) response body bytes into p and returns
// the count. It pumps the transport until the internal buffer has
// data, the transfer completes, or the deadline fires. A 0 count with
// a nil error is not end-of-stream by itself; the transfer is over
// when Complete reports true.
//
// Calling ReadBlock before a session exists fails with a NotStarted
// status; the caller can recover by calling Start first. len(p) == 0
// is a no-op returning 0.
func (e *Engine) ReadBlock(p []byte) (int, error) {
	if e.sess == nil {
		return 0, status.New(status.NotStarted, "request has not been started yet")
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := e.checkDeadline(); err != nil {
		return 0, err
	}
	if err := e.pumpUntil(func() bool { return e.buf.Len() > 0 }); err != nil {
		return 0, err
	}
	return e.buf.Consume(p), nil
}

// ReadResponseHeaders pumps the transport until the full response
// header section has been received, the transfer completes, or the
// deadline fires.
func (e *Engine) ReadResponseHeaders() error {
	if e.sess == nil {
		return status.New(status.NotStarted, "request has not been started yet")
	}
	if err := e.checkDeadline(); err != nil {
		return err
	}
	return e.pumpUntil(func() bool { return e.headersDone })
}

// pumpUntil drives the session event loop until the condition holds or
// the transfer completes, re-checking the deadline between bounded
// pumps.
func (e *Engine) pumpUntil(cond func() bool) error {
	for !cond() && !e.sess.Done() && e.state != Finished {
		if err := e.checkDeadline(); err != nil {
			return err
		}
		if err := e.sess.Pump(e.deadline); err != nil {
			return err
		}
	}
	return nil
}

// End finalizes the exchange. It always succeeds, is idempotent, and
// releases the session exactly once: back to the factory pool when
// reuse is configured and the exchange completed cleanly, closed
// otherwise. After End the engine performs no further network I/O.
func (e *Engine) End() error {
	e.state = Finished
	if e.sess != nil && !e.released {
		e.released = true
		if err := e.sess.Close(); err != nil {
			e.log.Debug("closing transport session", zap.Error(err))
		}
	}
	return nil
}

// StatusCode returns the HTTP status code recorded by the transport,
// or 0 when it cannot be determined. It never fails.
func (e *Engine) StatusCode() int {
	if e.sess == nil {
		return 0
	}
	return e.sess.StatusCode()
}

// Complete reports whether the transport has received the entire
// response. A ReadBlock returning 0 is end-of-stream only once
// Complete is true.
func (e *Engine) Complete() bool {
	return e.sess != nil && e.sess.Done()
}

// HeadersReceived reports whether the end-of-headers sentinel has
// arrived.
func (e *Engine) HeadersReceived() bool {
	return e.headersDone
}

// AnswerHeader returns the value of the first response header whose
// name matches name case-insensitively.
func (e *Engine) AnswerHeader(name string) (string, bool) {
	for _, h := range e.respHeaders {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// AnswerHeaders returns all received response headers in arrival
// order, duplicates included. The returned slice is shared; callers
// must not modify it.
func (e *Engine) AnswerHeaders() []Header {
	return e.respHeaders
}

// RedirectedLocation returns the redirect target advertised by the
// response's Location header, parsed as a URI. The first match wins
// when a malformed server repeats the header. The engine does not
// follow the redirect; that decision belongs to a higher layer.
//
// It fails with InvalidArgument when no session exists or no Location
// header was received.
func (e *Engine) RedirectedLocation() (*uri.URI, error) {
	if e.sess == nil {
		return nil, status.New(status.InvalidArgument, "request not active, impossible to obtain redirected location")
	}
	if v, ok := e.AnswerHeader("Location"); ok {
		return uri.Parse(v), nil
	}
	return nil, status.New(status.InvalidArgument, "could not find Location header in answer headers")
}

// SessionError returns the transport session's low-level error text,
// or "" when no session exists or no transport failure occurred.
func (e *Engine) SessionError() string {
	if e.sess == nil {
		return ""
	}
	return e.sess.ErrorText()
}

// IsRecycledSession reports whether the underlying session was reused
// from the factory pool rather than freshly established.
func (e *Engine) IsRecycledSession() bool {
	return e.sess != nil && e.sess.Recycled()
}

// DoNotReuseSession marks the session so End closes the underlying
// connection instead of returning it to the pool. Safe to call at any
// point in the lifecycle.
func (e *Engine) DoNotReuseSession() {
	e.noReuse = true
	if e.sess != nil {
		e.sess.DoNotReuse()
	}
}

// feedHeaderLine is the session header hook. The bare CRLF sentinel
// flips the headers-received flag and is not stored; every other line
// is parsed leniently and appended in arrival order, duplicate names
// included.
func (e *Engine) feedHeaderLine(line string) {
	if line == "\r\n" {
		e.headersDone = true
		return
	}
	k, v := headerline.Parse(line)
	e.respHeaders = append(e.respHeaders, Header{Name: k, Value: v})
}

// pullBody adapts the content provider to the session pull hook. A
// negative provider return aborts the body stream: it surfaces to the
// transport as zero bytes produced and is logged, not raised; the
// caller observes the consequences through the transport status.
func (e *Engine) pullBody(p []byte) int {
	n := e.provider.PullBytes(p)
	if n < 0 {
		e.log.Warn("content provider aborted the body stream", zap.Int("errc", n))
		return 0
	}
	return n
}

// checkDeadline compares the monotonic clock against the configured
// deadline. The timeout failure quotes the configured duration when
// one was given.
func (e *Engine) checkDeadline() error {
	if e.deadline.IsZero() || time.Now().Before(e.deadline) {
		return nil
	}
	if e.timeout > 0 {
		return status.Newf(status.OperationTimeout, "timeout of %s exceeded", e.timeout)
	}
	return status.Newf(status.OperationTimeout, "deadline %s exceeded", e.deadline.Format(time.RFC3339))
}
