// Copyright 2026 The reqwire Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package uri provides the opaque target-URI value type consumed by the
// request engine.
//
// A URI never fails loudly: Parse always returns a value, and the value
// carries a parse status. Accessors on a failed parse return zero
// values, so code that forgets to check the status degrades instead of
// panicking. Default ports are filled in as an explicit normalization
// step (80 for http, 443 for https) so the policy is testable on its
// own rather than a side effect of whichever parser is underneath.
package uri

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/reqwire/reqwire/status"
)

// A URI is an immutable parsed target. The zero value reports a
// parse failure status.
type URI struct {
	raw    string
	scheme string
	host   string
	port   int
	path   string
	query  string
	code   status.Code
}

// Parse parses raw into a URI. It never returns an error; consult
// Status on the result. A URI is usable by the engine only when Status
// returns status.OK.
func Parse(raw string) *URI {
	u := &URI{raw: raw, code: status.UriParsingError}
	parsed, err := url.Parse(raw)
	if err != nil {
		return u
	}
	if parsed.Scheme == "" || parsed.Hostname() == "" {
		return u
	}
	port := normalizePort(parsed.Scheme, parsed.Port())
	if port == 0 {
		return u
	}
	u.scheme = parsed.Scheme
	u.host = parsed.Hostname()
	u.port = port
	u.path = parsed.EscapedPath()
	if u.path == "" {
		u.path = "/"
	}
	u.query = parsed.RawQuery
	u.code = status.OK
	return u
}

// normalizePort resolves an absent port to the default for known
// schemes. 0 means the port could not be determined.
func normalizePort(scheme, port string) int {
	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n <= 0 || n > 65535 {
			return 0
		}
		return n
	}
	switch strings.ToLower(scheme) {
	case "http":
		return 80
	case "https":
		return 443
	}
	return 0
}

// Status reports whether the URI parsed cleanly.
func (u *URI) Status() status.Code {
	return u.code
}

// String returns the raw string the URI was parsed from, unmodified.
func (u *URI) String() string {
	return u.raw
}

// Scheme returns the URI scheme, or "" on a failed parse.
func (u *URI) Scheme() string {
	return u.scheme
}

// Host returns the host without port, or "" on a failed parse.
func (u *URI) Host() string {
	return u.host
}

// Port returns the normalized port, or -1 on a failed parse.
func (u *URI) Port() int {
	if u.code != status.OK {
		return -1
	}
	return u.port
}

// Path returns the escaped path, "/" when the raw string had none, or
// "" on a failed parse.
func (u *URI) Path() string {
	return u.path
}

// Query returns the raw query string, or "" when absent or on a failed
// parse.
func (u *URI) Query() string {
	return u.query
}

// PathAndQuery returns the path joined with the query by "?", matching
// the origin-form request target.
func (u *URI) PathAndQuery() string {
	if u.query == "" {
		return u.path
	}
	return u.path + "?" + u.query
}

// Authority returns "host:port", always with an explicit port. It is
// the pooling key form of the destination.
func (u *URI) Authority() string {
	if u.code != status.OK {
		return ""
	}
	return joinHostPort(u.host, u.port)
}

// HostHeader returns the value to send as the Host header: the host,
// with the port appended only when it is not the scheme default.
func (u *URI) HostHeader() string {
	if u.code != status.OK {
		return ""
	}
	def := 80
	if strings.EqualFold(u.scheme, "https") {
		def = 443
	}
	if u.port == def {
		return bracketHost(u.host)
	}
	return joinHostPort(u.host, u.port)
}

func joinHostPort(host string, port int) string {
	return bracketHost(host) + ":" + strconv.Itoa(port)
}

func bracketHost(host string) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}
