// Copyright 2026 The reqwire Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package content abstracts the source of outgoing request-body bytes.
//
// A Provider is a pull source: the transport asks it for bytes on
// demand while the request is being written. Providers must be
// rewindable so a higher layer can replay the body after a redirect or
// retry decision.
package content

import (
	"errors"
	"io"
)

// A Provider produces outgoing request-body bytes on demand.
//
// PullBytes fills p with up to len(p) bytes and returns the count
// produced; 0 means the body is finished. A negative return aborts the
// body stream: the engine surfaces it to the transport as zero bytes
// produced and logs the code, so the request ends truncated rather
// than hanging.
//
// Rewind resets the read position to the beginning and fails when the
// source cannot be replayed. The engine rewinds at most once per Start
// and never pulls before Start has configured the body source.
type Provider interface {
	Rewind() error
	PullBytes(p []byte) int
}

// Bytes is a Provider over an in-memory byte slice. It is always
// rewindable.
type Bytes struct {
	data []byte
	off  int
}

// NewBytes returns a Provider that serves data from memory.
func NewBytes(data []byte) *Bytes {
	return &Bytes{data: data}
}

// Len returns the total body length, which is known up front for an
// in-memory provider.
func (b *Bytes) Len() int {
	return len(b.data)
}

func (b *Bytes) Rewind() error {
	b.off = 0
	return nil
}

func (b *Bytes) PullBytes(p []byte) int {
	n := copy(p, b.data[b.off:])
	b.off += n
	return n
}

// Seeker is a Provider over an io.ReadSeeker, for example an *os.File.
// Rewind seeks to the start; a seek failure means the source is not
// replayable.
type Seeker struct {
	r io.ReadSeeker
}

// NewSeeker returns a Provider that pulls from r.
func NewSeeker(r io.ReadSeeker) *Seeker {
	return &Seeker{r: r}
}

func (s *Seeker) Rewind() error {
	_, err := s.r.Seek(0, io.SeekStart)
	return err
}

// PullBytes reads from the underlying source. io.EOF ends the stream
// cleanly; any other read error aborts it with a negative code.
func (s *Seeker) PullBytes(p []byte) int {
	n, err := s.r.Read(p)
	if n > 0 {
		return n
	}
	if err != nil && err != io.EOF {
		return -1
	}
	return 0
}

const badBodyTypeMsg = "reqwire/content: invalid type (for body use nil, " +
	"string, []byte, io.Reader or io.ReadCloser)"

// FromBody converts a generic body parameter into a Provider, buffering
// readers into memory so the result is rewindable.
//
// The body parameter may be nil (no body, nil Provider), or it may be a
// string, []byte, io.Reader, or io.ReadCloser. An io.Reader is read to
// the end; an io.ReadCloser is additionally closed after buffering. Any
// other type is an error.
func FromBody(body interface{}) (Provider, error) {
	switch x := body.(type) {
	case nil:
		return nil, nil
	case string:
		return NewBytes([]byte(x)), nil
	case []byte:
		return NewBytes(x), nil
	case io.ReadCloser:
		b, err := io.ReadAll(x)
		if err != nil {
			return nil, err
		}
		err = x.Close()
		if err != nil {
			return nil, err
		}
		return NewBytes(b), nil
	case io.Reader:
		return FromBody(io.NopCloser(x))
	default:
		return nil, errors.New(badBodyTypeMsg)
	}
}
