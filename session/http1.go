// Copyright 2026 The reqwire Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reqwire/reqwire/headerline"
	"github.com/reqwire/reqwire/status"
)

const (
	defaultPumpQuantum = 100 * time.Millisecond

	// maxHeaderLineBytes caps a single status or header line so a server
	// that never terminates one cannot balloon memory.
	maxHeaderLineBytes = 1 << 20
)

// http1 executes one HTTP/1.1 exchange over a pooled connection. The
// receive side is an incremental state machine: a pump resumes exactly
// where the previous one left off, and a partial header line survives
// a pump timeout in the scratch field.
type http1 struct {
	pool   *Pool
	key    string
	w      *wire
	params Params
	log    *zap.Logger

	verb  string
	hooks Hooks

	submitted   bool
	statusRead  bool
	headersDone bool
	done        bool
	closed      bool
	noReuse     bool
	broken      bool
	connClose   bool

	statusCode int
	errText    string
	fail       error

	partial []byte
	buf     []byte

	chunked    bool
	closeDelim bool
	inTrailer  bool
	needCRLF   bool
	remain     int64

	respHeaders []headerPair
}

type headerPair struct {
	key   string
	value string
}

func newHTTP1(pool *Pool, key string, w *wire, params Params) *http1 {
	return &http1{
		pool:   pool,
		key:    key,
		w:      w,
		params: params,
		log:    pool.logger(),
		buf:    make([]byte, 8<<10),
	}
}

func (s *http1) Submit(req Request) error {
	if s.submitted {
		return status.New(status.InvalidArgument, "session already carries a submitted request")
	}
	s.submitted = true
	s.verb = req.Verb
	s.hooks = req.Hooks

	if err := s.w.nc.SetWriteDeadline(req.Deadline); err != nil {
		return s.transportFail("setting write deadline", err)
	}
	if err := s.w.nc.SetReadDeadline(time.Time{}); err != nil {
		return s.transportFail("clearing read deadline", err)
	}

	bw := s.w.bw
	fmt.Fprintf(bw, "%s %s HTTP/1.1\r\n", req.Verb, req.Target)
	if req.Host != "" && !hasRequestHeader(req.Headers, "Host") {
		fmt.Fprintf(bw, "Host: %s\r\n", req.Host)
	}
	contentLength := int64(-1)
	if req.HasBody {
		if v, ok := requestHeaderValue(req.Headers, "Content-Length"); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil || n < 0 {
				return s.transportFail(fmt.Sprintf("unusable Content-Length request header %q", v), nil)
			}
			contentLength = n
		} else if !hasRequestHeader(req.Headers, "Transfer-Encoding") {
			fmt.Fprint(bw, "Transfer-Encoding: chunked\r\n")
		}
	}
	for _, line := range req.Headers {
		fmt.Fprintf(bw, "%s\r\n", line)
	}
	fmt.Fprint(bw, "\r\n")

	if req.HasBody {
		if err := s.writeBody(contentLength, req.Hooks.Pull); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return s.transportFail("flushing request", err)
	}
	return nil
}

// writeBody streams the request body from the pull hook: identity
// framing when a Content-Length is known, chunked otherwise. A pull
// returning 0 ends the stream; with identity framing that leaves the
// request truncated on the wire, which the server reports through its
// own response or by dropping the connection.
func (s *http1) writeBody(contentLength int64, pull func([]byte) int) error {
	if pull == nil {
		pull = func([]byte) int { return 0 }
	}
	bw := s.w.bw
	if contentLength >= 0 {
		var written int64
		for written < contentLength {
			want := int64(len(s.buf))
			if want > contentLength-written {
				want = contentLength - written
			}
			n := pull(s.buf[:want])
			if n <= 0 {
				break
			}
			if _, err := bw.Write(s.buf[:n]); err != nil {
				return s.transportFail("writing request body", err)
			}
			written += int64(n)
		}
		return nil
	}
	for {
		n := pull(s.buf)
		if n <= 0 {
			break
		}
		if _, err := fmt.Fprintf(bw, "%x\r\n", n); err != nil {
			return s.transportFail("writing chunk header", err)
		}
		if _, err := bw.Write(s.buf[:n]); err != nil {
			return s.transportFail("writing chunk data", err)
		}
		if _, err := io.WriteString(bw, "\r\n"); err != nil {
			return s.transportFail("writing chunk terminator", err)
		}
	}
	if _, err := io.WriteString(bw, "0\r\n\r\n"); err != nil {
		return s.transportFail("writing final chunk", err)
	}
	return nil
}

func (s *http1) Pump(deadline time.Time) error {
	if !s.submitted {
		return status.New(status.NotStarted, "no request submitted on this session")
	}
	if s.done {
		return nil
	}
	if s.broken {
		// A failed session stays failed; every later pump reports the
		// original failure instead of silently making no progress.
		return s.fail
	}
	quantum := s.params.PumpQuantum
	if quantum <= 0 {
		quantum = defaultPumpQuantum
	}
	until := time.Now().Add(quantum)
	if !deadline.IsZero() && deadline.Before(until) {
		until = deadline
	}
	if err := s.w.nc.SetReadDeadline(until); err != nil {
		return s.transportFail("setting read deadline", err)
	}
	for !s.done {
		progressed, err := s.step()
		if err != nil {
			return err
		}
		if !progressed {
			return nil
		}
	}
	return nil
}

// step advances the receive state machine by one unit: a line, or one
// read of body bytes. It reports no progress when the read deadline
// fired first.
func (s *http1) step() (bool, error) {
	switch {
	case !s.statusRead:
		return s.stepStatusLine()
	case !s.headersDone:
		return s.stepHeaderLine()
	case s.chunked:
		return s.stepChunked()
	case s.closeDelim:
		return s.stepCloseDelimited()
	default:
		return s.stepContentLength()
	}
}

func (s *http1) stepStatusLine() (bool, error) {
	line, ok, err := s.readLine()
	if err != nil {
		return false, s.transportFail("reading status line", err)
	}
	if !ok {
		return false, nil
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/1.") {
		return false, s.transportFail(fmt.Sprintf("malformed status line %q", line), nil)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return false, s.transportFail(fmt.Sprintf("malformed status code in %q", line), nil)
	}
	s.statusCode = code
	s.statusRead = true
	return true, nil
}

func (s *http1) stepHeaderLine() (bool, error) {
	line, ok, err := s.readLine()
	if err != nil {
		return false, s.transportFail("reading response headers", err)
	}
	if !ok {
		return false, nil
	}
	if line == "" {
		if s.hooks.HeaderLine != nil {
			s.hooks.HeaderLine("\r\n")
		}
		s.headersDone = true
		return true, s.decideFraming()
	}
	k, v := headerline.Parse(line)
	s.respHeaders = append(s.respHeaders, headerPair{key: k, value: v})
	if s.hooks.HeaderLine != nil {
		s.hooks.HeaderLine(line + "\r\n")
	}
	return true, nil
}

// decideFraming fixes the body framing once the header sentinel has
// arrived. Close-delimited bodies and Connection: close responses rule
// out recycling the connection.
func (s *http1) decideFraming() error {
	if v, ok := s.respHeaderValue("Connection"); ok && strings.Contains(strings.ToLower(v), "close") {
		s.connClose = true
	}
	code := s.statusCode
	if s.verb == "HEAD" || code == 204 || code == 304 || (code >= 100 && code < 200) {
		s.done = true
		return nil
	}
	if v, ok := s.respHeaderValue("Transfer-Encoding"); ok && strings.Contains(strings.ToLower(v), "chunked") {
		s.chunked = true
		return nil
	}
	if v, ok := s.respHeaderValue("Content-Length"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || n < 0 {
			return s.transportFail(fmt.Sprintf("unusable Content-Length response header %q", v), nil)
		}
		if n == 0 {
			s.done = true
		}
		s.remain = n
		return nil
	}
	s.closeDelim = true
	return nil
}

func (s *http1) stepContentLength() (bool, error) {
	want := int64(len(s.buf))
	if want > s.remain {
		want = s.remain
	}
	n, err := s.w.br.Read(s.buf[:want])
	if n > 0 {
		if !s.feed(s.buf[:n]) {
			return false, s.consumerAbort()
		}
		s.remain -= int64(n)
		if s.remain == 0 {
			s.done = true
		}
		return true, nil
	}
	if isTimeout(err) {
		return false, nil
	}
	if err == io.EOF {
		return false, s.transportFail("connection closed before response body completed", err)
	}
	return false, s.transportFail("reading response body", err)
}

func (s *http1) stepCloseDelimited() (bool, error) {
	n, err := s.w.br.Read(s.buf)
	if n > 0 {
		if !s.feed(s.buf[:n]) {
			return false, s.consumerAbort()
		}
		return true, nil
	}
	if isTimeout(err) {
		return false, nil
	}
	if err == io.EOF {
		// EOF is the framing: the body ends when the server closes.
		s.done = true
		s.connClose = true
		return true, nil
	}
	return false, s.transportFail("reading response body", err)
}

func (s *http1) stepChunked() (bool, error) {
	if s.needCRLF {
		line, ok, err := s.readLine()
		if err != nil {
			return false, s.transportFail("reading chunk terminator", err)
		}
		if !ok {
			return false, nil
		}
		if line != "" {
			return false, s.transportFail(fmt.Sprintf("garbage after chunk data: %q", line), nil)
		}
		s.needCRLF = false
		return true, nil
	}
	if s.inTrailer {
		line, ok, err := s.readLine()
		if err != nil {
			return false, s.transportFail("reading chunked trailers", err)
		}
		if !ok {
			return false, nil
		}
		if line == "" {
			s.done = true
		}
		return true, nil
	}
	if s.remain == 0 {
		line, ok, err := s.readLine()
		if err != nil {
			return false, s.transportFail("reading chunk size", err)
		}
		if !ok {
			return false, nil
		}
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		size, perr := strconv.ParseInt(strings.TrimSpace(line), 16, 64)
		if perr != nil || size < 0 {
			return false, s.transportFail(fmt.Sprintf("malformed chunk size %q", line), nil)
		}
		if size == 0 {
			s.inTrailer = true
			return true, nil
		}
		s.remain = size
		return true, nil
	}
	want := int64(len(s.buf))
	if want > s.remain {
		want = s.remain
	}
	n, err := s.w.br.Read(s.buf[:want])
	if n > 0 {
		if !s.feed(s.buf[:n]) {
			return false, s.consumerAbort()
		}
		s.remain -= int64(n)
		if s.remain == 0 {
			s.needCRLF = true
		}
		return true, nil
	}
	if isTimeout(err) {
		return false, nil
	}
	if err == io.EOF {
		return false, s.transportFail("connection closed mid-chunk", err)
	}
	return false, s.transportFail("reading chunk data", err)
}

// readLine reads one CRLF- or LF-terminated line, without the
// terminator. A read-deadline expiry mid-line keeps the partial bytes
// in s.partial and reports ok == false so the next pump resumes the
// same line.
func (s *http1) readLine() (line string, ok bool, err error) {
	for {
		b, err := s.w.br.ReadByte()
		if err != nil {
			if isTimeout(err) {
				return "", false, nil
			}
			return "", false, err
		}
		if b == '\n' {
			line := strings.TrimSuffix(string(s.partial), "\r")
			s.partial = s.partial[:0]
			return line, true, nil
		}
		s.partial = append(s.partial, b)
		if len(s.partial) > maxHeaderLineBytes {
			return "", false, fmt.Errorf("header line exceeds %d bytes", maxHeaderLineBytes)
		}
	}
}

func (s *http1) feed(p []byte) bool {
	if s.hooks.Body == nil {
		return true
	}
	return s.hooks.Body(p) == len(p)
}

func (s *http1) consumerAbort() error {
	return s.transportFail("response consumer accepted fewer bytes than offered", nil)
}

// transportFail records the session error text, marks the connection
// unusable, and returns the typed status.
func (s *http1) transportFail(msg string, cause error) error {
	s.broken = true
	if cause != nil {
		s.errText = msg + ": " + cause.Error()
	} else {
		s.errText = msg
	}
	s.log.Debug("transport session failed",
		zap.String("conn", s.w.id),
		zap.String("destination", s.key),
		zap.String("detail", s.errText))
	s.fail = status.Wrap(status.SessionError, msg, cause)
	return s.fail
}

func (s *http1) Done() bool {
	return s.done
}

func (s *http1) StatusCode() int {
	return s.statusCode
}

func (s *http1) ErrorText() string {
	return s.errText
}

func (s *http1) Recycled() bool {
	return s.w.recycled
}

func (s *http1) DoNotReuse() {
	s.noReuse = true
}

func (s *http1) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.params.Reuse && s.done && !s.broken && !s.connClose && !s.noReuse {
		_ = s.w.nc.SetReadDeadline(time.Time{})
		_ = s.w.nc.SetWriteDeadline(time.Time{})
		s.pool.release(s.key, s.w)
		return nil
	}
	return s.pool.drop(s.key, s.w)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func hasRequestHeader(lines []string, name string) bool {
	_, ok := requestHeaderValue(lines, name)
	return ok
}

func requestHeaderValue(lines []string, name string) (string, bool) {
	for _, line := range lines {
		k, v := headerline.Parse(line)
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func (s *http1) respHeaderValue(name string) (string, bool) {
	for _, h := range s.respHeaders {
		if strings.EqualFold(h.key, name) {
			return h.value, true
		}
	}
	return "", false
}
