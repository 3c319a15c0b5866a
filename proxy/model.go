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

	"github.com/nabbar/rimecore/duration"
	liberr "github.com/nabbar/rimecore/rerr"
)

// Proxy is the opaque, generic client handle of spec §4.6: structurally
// a Reference plus a type-id for checkedCast, parameterized by the
// generated interface type T the same way cache/item.CacheItem[T] wraps
// one generic value behind a concrete, non-generic implementation
// (proxyState) underneath. Every configuration method is copy-on-modify:
// it returns a new Proxy[T] sharing the same immutable Reference tree.
type Proxy[T any] struct {
	typeID string
	ref    *Reference
	handle func(ref *Reference) RequestHandler
}

// HandlerFactory builds (or reuses) a RequestHandler for a given
// Reference — ordinarily NewConnectRequestHandler bound to a shared
// ConnectionFactory/RetryPolicy/Wheel, or a fixed connectionHandler /
// collocatedRequestHandler for references that never need one built.
type HandlerFactory func(ref *Reference) RequestHandler

// New creates a Proxy[T] for typeID over ref, using factory to obtain a
// RequestHandler the first time (and every time, if the reference is
// fixed or collocated: those factories are expected to return a stable
// handler instance cheaply).
func New[T any](typeID string, ref *Reference, factory HandlerFactory) Proxy[T] {
	return Proxy[T]{typeID: typeID, ref: ref, handle: factory}
}

// Reference returns the underlying immutable reference.
func (p Proxy[T]) Reference() *Reference { return p.ref }

// TypeId returns the interface type-id this proxy was created for.
func (p Proxy[T]) TypeId() string { return p.typeID }

// IceOneway returns a copy of p whose reference uses oneway semantics.
func (p Proxy[T]) IceOneway() Proxy[T] {
	p.ref = p.ref.WithMode(ModeOneway)
	return p
}

// IceTwoway returns a copy of p whose reference uses twoway semantics.
func (p Proxy[T]) IceTwoway() Proxy[T] {
	p.ref = p.ref.WithMode(ModeTwoway)
	return p
}

// IceBatchOneway returns a copy of p whose invocations queue into the
// connection's batch buffer instead of sending immediately (spec §5);
// FlushBatchRequests sends them.
func (p Proxy[T]) IceBatchOneway() Proxy[T] {
	p.ref = p.ref.WithMode(ModeBatchOneway)
	return p
}

// IceBatchDatagram is IceBatchOneway's datagram-transport counterpart.
func (p Proxy[T]) IceBatchDatagram() Proxy[T] {
	p.ref = p.ref.WithMode(ModeBatchDatagram)
	return p
}

// IceSecure returns a copy of p requiring (or not) a secure transport.
func (p Proxy[T]) IceSecure(secure bool) Proxy[T] {
	p.ref = p.ref.WithSecure(secure)
	return p
}

// IceTimeout returns a copy of p with a different per-invocation timeout.
func (p Proxy[T]) IceTimeout(d duration.Duration) Proxy[T] {
	p.ref = p.ref.WithInvocationTimeout(d)
	return p
}

// IceFacet returns a copy of p targeting a different facet of the same
// identity.
func (p Proxy[T]) IceFacet(facet string) Proxy[T] {
	p.ref = p.ref.WithFacet(facet)
	return p
}

// Equal reports whether p and o name the same type-id over an
// structurally-equal reference.
func (p Proxy[T]) Equal(o Proxy[T]) bool {
	return p.typeID == o.typeID && p.ref.Equal(o.ref)
}

// Invoke marshals nothing itself (the caller already encoded body via
// wire.OutputStream, per spec §4.6's marshaling-semantics note for
// collocation); it only resolves a RequestHandler for the current
// reference and drives the send.
func (p Proxy[T]) Invoke(ctx context.Context, operation string, body []byte) (liberr.ReplyStatus, []byte, error) {
	h := p.handle(p.ref)
	return h.Invoke(ctx, p.ref.Identity, p.ref.Facet, operation, p.ref.Mode, body)
}

// FlushBatchRequests sends every invocation queued by a prior
// IceBatchOneway/IceBatchDatagram Invoke call on this proxy's handler.
func (p Proxy[T]) FlushBatchRequests(ctx context.Context) error {
	h := p.handle(p.ref)
	return h.FlushBatchRequests(ctx)
}
