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

// Package proxy implements the invocation target descriptor
// (Reference), the opaque client handle (Proxy[T]) built on it, and
// the strategies (RequestHandler) mapping a reference to a concrete
// send path: connect-on-demand, already-connected, or collocated.
package proxy

import (
	"context"

	"github.com/nabbar/rimecore/connection"
	"github.com/nabbar/rimecore/duration"
	liberr "github.com/nabbar/rimecore/rerr"
	"github.com/nabbar/rimecore/transport"
)

// Identity names an invocation target: name MUST be non-empty for a
// valid identity; category groups related identities (e.g. for a
// ServantLocator or a default servant).
type Identity struct {
	Name     string
	Category string
}

// Mode selects the invocation's delivery semantics.
type Mode uint8

const (
	ModeTwoway Mode = iota
	ModeOneway
	ModeBatchOneway
	ModeDatagram
	ModeBatchDatagram
)

func (m Mode) String() string {
	switch m {
	case ModeTwoway:
		return "twoway"
	case ModeOneway:
		return "oneway"
	case ModeBatchOneway:
		return "batch-oneway"
	case ModeDatagram:
		return "datagram"
	case ModeBatchDatagram:
		return "batch-datagram"
	default:
		return "unknown"
	}
}

// IsOneWay reports whether a reply is never expected for this mode.
func (m Mode) IsOneWay() bool {
	return m == ModeOneway || m == ModeBatchOneway || m == ModeDatagram || m == ModeBatchDatagram
}

// IsBatch reports whether this mode queues into the per-connection batch
// buffer instead of sending immediately (spec §5).
func (m Mode) IsBatch() bool {
	return m == ModeBatchOneway || m == ModeBatchDatagram
}

// EndpointSelection orders a reference's candidate endpoints before a
// ConnectRequestHandler iterates them.
type EndpointSelection uint8

const (
	SelectRandom EndpointSelection = iota
	SelectOrdered
)

// ProtocolVersion is a (major, minor) pair, used both for the wire
// protocol and the encoding version a reference was created against.
type ProtocolVersion struct {
	Major uint8
	Minor uint8
}

// Locator resolves an indirect reference's adapter-id to a concrete
// endpoint list, or a well-known identity directly to a reference, the
// client-visible half of locator/router integration (the TTL cache and
// singleflight collapsing sit in front of it, in the locator package).
type Locator interface {
	FindAdapterById(ctx context.Context, adapterId string) ([]transport.Endpoint, error)
	FindObjectById(ctx context.Context, identity Identity) (*Reference, error)
}

// Router routes every invocation on a reference through the router's
// own client proxy rather than resolving the reference's own endpoints.
type Router interface {
	GetClientProxy(ctx context.Context) (*Reference, error)
}

// LocalDispatcher is implemented by an in-process ObjectAdapter so a
// CollocatedRequestHandler can dispatch without touching a transceiver.
// Declared here (not imported from adapter) to avoid a proxy<->adapter
// import cycle; adapter.ObjectAdapter satisfies this interface.
type LocalDispatcher interface {
	DispatchLocal(ctx context.Context, identity Identity, facet, operation string, body []byte) (liberr.ReplyStatus, []byte, error)
}

// RequestHandler is the strategy mapping a Reference to a concrete
// send path (spec §4.6).
type RequestHandler interface {
	// Invoke dispatches one request body for operation and returns the
	// decoded reply. For a one-way mode, the reply fields are zero and
	// err reflects only pre-send failure. A batch mode instead queues
	// the invocation and always returns immediately with ReplyOK.
	Invoke(ctx context.Context, identity Identity, facet, operation string, mode Mode, body []byte) (liberr.ReplyStatus, []byte, error)

	// FlushBatchRequests sends every invocation queued by a prior batch
	// Invoke call as one BatchRequest frame (spec §5). A no-op for a
	// handler with nothing queued (e.g. collocated, which never batches).
	FlushBatchRequests(ctx context.Context) error
}

// RetryPolicy is the per-communicator retry-interval table and
// retry-count ceiling (spec §4.6).
type RetryPolicy struct {
	Intervals  []duration.Duration
	MaxRetries int
}

// DefaultRetryPolicy mirrors the spec's illustrative table.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Intervals:  []duration.Duration{0, duration.Duration(100_000_000), duration.Duration(1_000_000_000)},
		MaxRetries: 3,
	}
}

// ConnectionFactory establishes or reuses connections for a
// ConnectRequestHandler. Wrapping connection.Factory behind a narrower
// interface keeps handler_connect.go independent of Factory's ACM
// bookkeeping methods it never calls.
type ConnectionFactory interface {
	New(t transport.Transceiver, incoming bool, info connection.Info, acm connection.ACM) connection.Connection
}
