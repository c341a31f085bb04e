// Copyright 2026 The reqwire Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package headerline parses single raw HTTP header lines into trimmed
// key/value pairs.
//
// Parsing is deliberately lenient: real-world servers emit header lines
// with stray whitespace, missing values, and occasionally no colon at
// all, and rejecting them outright would fail exchanges that every
// mainstream client completes. A malformed line produces a best-effort
// pair rather than an error.
package headerline

import "strings"

// Parse splits one raw header line, including any trailing line
// terminator, into a key and a value. Surrounding whitespace and the
// terminator are stripped from both parts. A line without a colon
// yields the whole trimmed line as the key and an empty value.
func Parse(line string) (key, value string) {
	line = strings.TrimRight(line, "\r\n")
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return strings.TrimSpace(line), ""
	}
	return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:])
}
