/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package reactor is the bounded worker pool dispatching decoded requests
// onto servant code. Go's netpoller already multiplexes transceiver
// readiness (see transport/tcp's context-cancelable Accept and
// connection's blocking read/write loops); reactor.Pool exists for the
// part the netpoller doesn't give you for free — bounding how much
// concurrent dispatch work runs at once, and letting an in-flight
// invocation be canceled before or after it's been handed to a worker.
package reactor

import "context"

// Task is one unit of dispatch work submitted to a Pool.
type Task func(ctx context.Context)

// Pool runs submitted Tasks on a bounded set of worker goroutines.
type Pool interface {
	// Submit enqueues fn for execution. It blocks only if the pool's
	// internal queue is full, never waiting for a worker to be free.
	Submit(fn Task) error

	// Running reports the number of worker goroutines currently
	// executing a Task.
	Running() int

	// Start launches the pool's workers. Calling Start twice is a no-op.
	Start()

	// Stop signals workers to exit once their queue drains and waits
	// for them to do so.
	Stop()
}

// Invocation is the cancellation handle for one pending or in-flight
// proxy invocation, returned by proxy.Proxy when dispatching a two-way
// request so a caller-side timeout or context cancellation can abort it.
type Invocation interface {
	// Cancel aborts the invocation. Called before the request reaches
	// the wire, it is simply removed from its connection's send queue.
	// Called after, it flips a flag consulted when (if) the reply
	// eventually arrives, which is then discarded instead of delivered.
	Cancel() error

	// Done reports whether the invocation has completed or been
	// canceled.
	Done() <-chan struct{}
}

// SocketBuffers reports the kernel send/receive buffer sizes configured
// on the descriptor behind fd, for ACM diagnostics and logging.
type SocketBuffers struct {
	ReceiveBuffer int
	SendBuffer    int
}
