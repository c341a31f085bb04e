// Copyright 2026 The reqwire Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package reqwire drives single HTTP request/response exchanges over
reusable transport sessions.

An Engine owns one exchange: it acquires a session from a factory,
writes the request (streaming the body from a content provider when one
is configured), accumulates response headers as they arrive, buffers
response body bytes, and enforces an absolute deadline across the whole
exchange. The transport delivers data through callbacks; the consumer
reads it back synchronously, block by block.

Create an engine with a factory, a verb, and a parsed target:

	pool := &session.Pool{}
	target := uri.Parse("https://www.example.com/data")
	eng, err := reqwire.New(pool, "GET", target, reqwire.Config{
		Timeout: 30 * time.Second,
	})
	...
	if err := eng.Start(); err != nil {
		...
	}
	defer eng.End()

	buf := make([]byte, 4096)
	for {
		n, err := eng.ReadBlock(buf)
		...
		if n == 0 && eng.Complete() {
			break
		}
	}

To send a request body, supply a content provider:

	provider := content.NewBytes(payload)
	eng, err := reqwire.New(pool, "PUT", target, reqwire.Config{
		Headers:  []reqwire.Header{{Name: "Content-Type", Value: "application/json"}},
		Provider: provider,
	})

The engine exposes what it observes and decides nothing beyond the
exchange itself. Redirects are surfaced, not followed:

	if code := eng.StatusCode(); code >= 300 && code < 400 {
		location, err := eng.RedirectedLocation()
		...
	}

Retry policy, redirect following, and authentication belong to layers
built on top of this one.
*/
package reqwire
