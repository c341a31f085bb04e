// Copyright 2026 The reqwire Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package buffer provides the unbounded byte queue that bridges the
// transport's push-based body callback to the engine's pull-based
// consumer reads.
package buffer

// A Response is an ordered byte queue. The transport's body hook feeds
// bytes at the tail and the consumer drains them from the head, in
// exact arrival order. A Response imposes no capacity bound; if
// backpressure is wanted it must come from pausing the transport pump,
// not from this type.
//
// A Response is not safe for concurrent use. The engine and its hooks
// run on a single caller goroutine, so no locking is needed.
type Response struct {
	data []byte
	off  int
}

// Feed appends p at the tail and returns the number of bytes accepted,
// which is always len(p). The count return matches the transport
// convention that a consumer callback reports how many bytes it took;
// reporting fewer makes the transport abort the transfer.
func (b *Response) Feed(p []byte) int {
	b.data = append(b.data, p...)
	return len(p)
}

// Consume copies up to len(p) bytes from the head into p, removes them
// from the queue, and returns the count copied. An empty queue yields
// 0, which by itself does not mean end-of-stream.
func (b *Response) Consume(p []byte) int {
	n := copy(p, b.data[b.off:])
	b.off += n
	if b.off == len(b.data) {
		b.data = b.data[:0]
		b.off = 0
	} else if b.off > cap(b.data)/2 {
		// Reclaim the consumed head so a long transfer drained in
		// small blocks does not pin its whole history.
		b.data = append(b.data[:0], b.data[b.off:]...)
		b.off = 0
	}
	return n
}

// Len returns the number of bytes currently queued.
func (b *Response) Len() int {
	return len(b.data) - b.off
}
