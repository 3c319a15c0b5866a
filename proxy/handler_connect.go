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

package proxy

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/nabbar/rimecore/connection"
	"github.com/nabbar/rimecore/internal/ring"
	liberr "github.com/nabbar/rimecore/rerr"
	"github.com/nabbar/rimecore/transport"
)

// pendingInvoke is one caller's Invoke call queued while a
// connectRequestHandler is still establishing its connection.
type pendingInvoke struct {
	ctx                context.Context
	identity           Identity
	facet, operation   string
	mode               Mode
	body               []byte
	result             chan invokeOutcome
}

type invokeOutcome struct {
	status liberr.ReplyStatus
	body   []byte
	err    error
}

// connectRequestHandler is the ConnectRequestHandler of spec §4.6: the
// starting state for a not-yet-connected reference. It resolves
// endpoints (consulting ref.Locator for an indirect reference),
// connects asynchronously through connFactory, queues Invoke calls
// arriving while the connection attempt is in flight, and retries
// across the candidate list per retry before giving up.
type connectRequestHandler struct {
	ref         *Reference
	connFactory ConnectionFactory
	retry       RetryPolicy
	wheel       ring.Wheel
	rnd         *rand.Rand

	mu         sync.Mutex
	active     RequestHandler
	connecting bool
	pending    []*pendingInvoke
}

// NewConnectRequestHandler builds the not-yet-connected strategy for
// ref. wheel schedules retry delays; a nil wheel disables retry
// (the first connect failure is final).
func NewConnectRequestHandler(ref *Reference, connFactory ConnectionFactory, retry RetryPolicy, wheel ring.Wheel) RequestHandler {
	return &connectRequestHandler{
		ref:         ref,
		connFactory: connFactory,
		retry:       retry,
		wheel:       wheel,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (h *connectRequestHandler) Invoke(ctx context.Context, identity Identity, facet, operation string, mode Mode, body []byte) (liberr.ReplyStatus, []byte, error) {
	h.mu.Lock()
	if h.active != nil {
		active := h.active
		h.mu.Unlock()
		return active.Invoke(ctx, identity, facet, operation, mode, body)
	}

	p := &pendingInvoke{ctx: ctx, identity: identity, facet: facet, operation: operation, mode: mode, body: body, result: make(chan invokeOutcome, 1)}
	h.pending = append(h.pending, p)
	if !h.connecting {
		h.connecting = true
		go h.connect()
	}
	h.mu.Unlock()

	select {
	case <-ctx.Done():
		return liberr.ReplyUnknownLocalException, nil, liberr.LocalInvocationTimeout.Error(ctx.Err())
	case out := <-p.result:
		return out.status, out.body, out.err
	}
}

// FlushBatchRequests delegates to the active handler once connected, or
// is a no-op while still connecting (nothing can have been queued onto a
// connection that does not exist yet: Invoke only reaches a batch
// QueueBatchRequest call through an already-active handler).
func (h *connectRequestHandler) FlushBatchRequests(ctx context.Context) error {
	h.mu.Lock()
	active := h.active
	h.mu.Unlock()

	if active == nil {
		return nil
	}
	return active.FlushBatchRequests(ctx)
}

func (h *connectRequestHandler) connect() {
	ctx := context.Background()
	attempt := 0

	for {
		conn, err := h.tryConnect(ctx)
		if err == nil {
			h.succeed(conn)
			return
		}
		if h.wheel == nil || attempt >= h.retry.MaxRetries {
			h.fail(RetriesExhaustedError.Error(err))
			return
		}

		delay := h.retry.Intervals[minInt(attempt, len(h.retry.Intervals)-1)]
		attempt++
		done := make(chan struct{})
		h.wheel.Schedule(delay, func() { close(done) })
		<-done
	}
}

func (h *connectRequestHandler) tryConnect(ctx context.Context) (connection.Connection, error) {
	candidates, err := h.resolveEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, NoEndpointsError.Error()
	}

	ordered := selectEndpoints(h.ref, candidates, h.rnd)

	var lastErr error
	for _, ep := range ordered {
		t, derr := ep.Connect(ctx)
		if derr != nil {
			lastErr = derr
			continue
		}
		c := h.connFactory.New(t, false, connection.Info{Incoming: false, RemoteAddress: ep.String()}, connection.ACM{})
		if serr := c.Start(ctx); serr != nil {
			lastErr = serr
			continue
		}
		return c, nil
	}
	if lastErr == nil {
		lastErr = AllEndpointsFailedError.Error()
	}
	return nil, AllEndpointsFailedError.Error(lastErr)
}

func (h *connectRequestHandler) resolveEndpoints(ctx context.Context) ([]transport.Endpoint, error) {
	if !h.ref.IsIndirect() {
		return h.ref.Endpoints, nil
	}
	if h.ref.Locator == nil {
		return nil, NoLocatorError.Error()
	}
	return h.ref.Locator.FindAdapterById(ctx, h.ref.AdapterId)
}

func (h *connectRequestHandler) succeed(conn connection.Connection) {
	h.mu.Lock()
	h.active = NewConnectionRequestHandler(conn)
	pending := h.pending
	h.pending = nil
	h.connecting = false
	active := h.active
	h.mu.Unlock()

	for _, p := range pending {
		p := p
		go func() {
			status, body, err := active.Invoke(p.ctx, p.identity, p.facet, p.operation, p.mode, p.body)
			p.result <- invokeOutcome{status: status, body: body, err: err}
		}()
	}
}

func (h *connectRequestHandler) fail(err error) {
	h.mu.Lock()
	pending := h.pending
	h.pending = nil
	h.connecting = false
	h.mu.Unlock()

	for _, p := range pending {
		p.result <- invokeOutcome{status: liberr.ReplyUnknownLocalException, err: err}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
