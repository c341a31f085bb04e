// Copyright 2026 The reqwire Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package buffer

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedAcknowledgesCount(t *testing.T) {
	b := &Response{}
	assert.Equal(t, 0, b.Feed(nil))
	assert.Equal(t, 5, b.Feed([]byte("hello")))
	assert.Equal(t, 1, b.Feed([]byte("!")))
	assert.Equal(t, 6, b.Len())
}

func TestConsumeEmptyReturnsZero(t *testing.T) {
	b := &Response{}
	p := make([]byte, 16)
	assert.Equal(t, 0, b.Consume(p))
	b.Feed([]byte("x"))
	assert.Equal(t, 1, b.Consume(p))
	assert.Equal(t, 0, b.Consume(p))
}

func TestConsumeNeverExceedsRequest(t *testing.T) {
	b := &Response{}
	b.Feed([]byte("abcdefgh"))
	p := make([]byte, 3)
	assert.Equal(t, 3, b.Consume(p))
	assert.Equal(t, "abc", string(p))
	assert.Equal(t, 3, b.Consume(p))
	assert.Equal(t, "def", string(p))
	assert.Equal(t, 2, b.Consume(p))
	assert.Equal(t, "gh", string(p[:2]))
	assert.Equal(t, 0, b.Len())
}

func TestInterleavedFeedConsumePreservesOrder(t *testing.T) {
	b := &Response{}
	b.Feed([]byte("one"))
	p := make([]byte, 2)
	require.Equal(t, 2, b.Consume(p))
	assert.Equal(t, "on", string(p))
	b.Feed([]byte("two"))
	out := make([]byte, 8)
	require.Equal(t, 4, b.Consume(out))
	assert.Equal(t, "etwo", string(out[:4]))
}

// Feeds random chunks and drains with a random partition of consume
// sizes; the concatenation of everything consumed must equal the
// concatenation of everything fed, in order.
func TestNoLossProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(41))
	b := &Response{}
	var fed, drained bytes.Buffer
	for round := 0; round < 200; round++ {
		chunk := make([]byte, rng.Intn(512))
		rng.Read(chunk)
		require.Equal(t, len(chunk), b.Feed(chunk))
		fed.Write(chunk)
		for b.Len() > 0 && rng.Intn(3) != 0 {
			p := make([]byte, 1+rng.Intn(256))
			n := b.Consume(p)
			drained.Write(p[:n])
		}
	}
	for b.Len() > 0 {
		p := make([]byte, 64)
		n := b.Consume(p)
		drained.Write(p[:n])
	}
	require.Equal(t, fed.Len(), drained.Len())
	assert.True(t, bytes.Equal(fed.Bytes(), drained.Bytes()))
}
