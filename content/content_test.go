// Copyright 2026 The reqwire Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package content

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, p Provider, blockSize int) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, blockSize)
	for {
		n := p.PullBytes(buf)
		require.GreaterOrEqual(t, n, 0)
		if n == 0 {
			return out
		}
		out = append(out, buf[:n]...)
	}
}

func TestBytes(t *testing.T) {
	p := NewBytes([]byte("hello world"))
	assert.Equal(t, 11, p.Len())
	assert.Equal(t, []byte("hello world"), drain(t, p, 4))
	buf := make([]byte, 4)
	assert.Equal(t, 0, p.PullBytes(buf))
	require.NoError(t, p.Rewind())
	assert.Equal(t, []byte("hello world"), drain(t, p, 64))
}

func TestSeeker(t *testing.T) {
	p := NewSeeker(strings.NewReader("abcdef"))
	assert.Equal(t, []byte("abcdef"), drain(t, p, 2))
	require.NoError(t, p.Rewind())
	assert.Equal(t, []byte("abcdef"), drain(t, p, 3))
}

type brokenReadSeeker struct{}

func (brokenReadSeeker) Read([]byte) (int, error)       { return 0, errors.New("broken") }
func (brokenReadSeeker) Seek(int64, int) (int64, error) { return 0, errors.New("not seekable") }

func TestSeekerErrors(t *testing.T) {
	p := NewSeeker(brokenReadSeeker{})
	assert.Error(t, p.Rewind())
	buf := make([]byte, 8)
	assert.Negative(t, p.PullBytes(buf))
}

func TestFromBody(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		p, err := FromBody(nil)
		require.NoError(t, err)
		assert.Nil(t, p)
	})
	t.Run("string", func(t *testing.T) {
		p, err := FromBody("abc")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), drain(t, p, 8))
	})
	t.Run("bytes", func(t *testing.T) {
		p, err := FromBody([]byte{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, drain(t, p, 8))
	})
	t.Run("reader", func(t *testing.T) {
		p, err := FromBody(bytes.NewReader([]byte("xyz")))
		require.NoError(t, err)
		assert.Equal(t, []byte("xyz"), drain(t, p, 8))
		// Buffered, so rewindable even though the reader is spent.
		require.NoError(t, p.Rewind())
		assert.Equal(t, []byte("xyz"), drain(t, p, 8))
	})
	t.Run("read closer", func(t *testing.T) {
		rc := io.NopCloser(strings.NewReader("q"))
		p, err := FromBody(rc)
		require.NoError(t, err)
		assert.Equal(t, []byte("q"), drain(t, p, 8))
	})
	t.Run("bad type", func(t *testing.T) {
		p, err := FromBody(42)
		assert.Nil(t, p)
		assert.EqualError(t, err, badBodyTypeMsg)
	})
}
