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

// Package adapter implements ObjectAdapter and ServantManager: the
// server-side counterpart of proxy — owning listening transports,
// looking up the servant that answers an incoming identity+facet, and
// driving the dispatch-and-reply cycle, including exception-to-reply-status
// translation.
package adapter

import (
	"context"

	"github.com/nabbar/rimecore/connection"
	"github.com/nabbar/rimecore/proxy"
	"github.com/nabbar/rimecore/reactor"
	liberr "github.com/nabbar/rimecore/rerr"
	"github.com/nabbar/rimecore/rlog"
	"github.com/nabbar/rimecore/transport"
	"github.com/nabbar/rimecore/wire"
)

// State is an ObjectAdapter's position in the lifecycle of spec §4.7:
// Uninitialized -> (activate) -> Active <-> Held -> Deactivating ->
// Deactivated -> Destroyed. The machine is one-way past Deactivating.
type State uint8

const (
	StateUninitialized State = iota
	StateActive
	StateHeld
	StateDeactivating
	StateDeactivated
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateActive:
		return "Active"
	case StateHeld:
		return "Held"
	case StateDeactivating:
		return "Deactivating"
	case StateDeactivated:
		return "Deactivated"
	case StateDestroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

// Current is the per-dispatch context handed to a Servant, carrying
// everything about the incoming request a handler might need beyond its
// decoded arguments. No separate mode byte: proxy.Mode already
// captures it.
type Current struct {
	Adapter    ObjectAdapter
	Identity   proxy.Identity
	Facet      string
	Operation  string
	Mode       proxy.Mode
	Context    map[string]string
	Connection connection.Connection
	RequestId  int32
}

// Servant is the capability surface generated code (out of scope, per
// spec §1 Excluded / SPEC_FULL.md §13) targets: one method-name ->
// dispatcher-function-pointer table instead of a vtable walk. in holds
// the decoded argument encapsulation; out receives the marshaled result
// or exception encapsulation for a twoway request.
//
// Dispatch returns the reply status to send, already classified per
// spec §4.7's exception-propagation rules: ReplyOK or ReplyUserException
// on success (out holds the marshaled payload), the matching
// ReplyObjectNotExist/ReplyFacetNotExist/ReplyOperationNotExist for a
// local exception of those kinds, ReplyUnknownUserException for a user
// exception not declared in the operation's signature, or
// ReplyUnknownLocalException/ReplyUnknownException otherwise. This
// classification is generated code's job in a real IDL compiler (out of
// scope here, per SPEC_FULL.md §13) — ObjectAdapter trusts it and only
// adds the classification a lookup miss implies before ever reaching
// Dispatch.
type Servant interface {
	Dispatch(ctx context.Context, operation string, in *wire.InputStream, out *wire.OutputStream, current Current) (liberr.ReplyStatus, error)
}

// ServantLocator provides servants dynamically instead of registering
// them ahead of time, per spec §4.7's lookup-order bullet: Locate is
// consulted after the explicit map and default-servant tiers miss.
// Finished is invoked exactly once per dispatch that reached Locate,
// on every exit path (success, user exception, local exception), with
// the same cookie Locate returned.
type ServantLocator interface {
	Locate(ctx context.Context, current Current) (servant Servant, cookie any, err error)
	Finished(ctx context.Context, current Current, servant Servant, cookie any)
}

// ObjectAdapter owns one or more transport.Acceptors, a ServantManager,
// and the dispatch loop translating accepted transceivers into
// connection.Connections, each registered with a per-connection
// connection.DispatchFunc built by the adapter.
type ObjectAdapter interface {
	proxy.LocalDispatcher

	Name() string
	State() State

	// Activate moves Uninitialized or Held to Active, starting accept
	// loops on every configured endpoint the first time it is called.
	Activate(ctx context.Context) error

	// Hold moves Active to Held: accept loops keep running (so TCP
	// backlog doesn't overflow) but newly accepted connections are not
	// started until Activate is called again.
	Hold()

	// Deactivate moves Active|Held to Deactivating, then Deactivated
	// once every in-flight dispatch has completed and every incoming
	// connection has closed gracefully. One-way past this call.
	Deactivate(ctx context.Context) error

	// Destroy releases the adapter's servant map and acceptors.
	// Deactivate is called first if not already past Deactivating.
	Destroy(ctx context.Context) error

	ServantManager() *ServantManager

	// OpenConnections reports the number of incoming connections this
	// adapter currently has registered.
	OpenConnections() int64

	// AddEndpoint registers an additional transport.Endpoint to listen
	// on. Only valid before Activate is first called.
	AddEndpoint(ep transport.Endpoint) error
}

// Config bundles the dependencies and policy knobs an ObjectAdapter
// needs beyond its listen endpoints.
type Config struct {
	Name string

	// ConnectionFactory builds and ACM-monitors incoming connections.
	ConnectionFactory connection.Factory

	// Dispatch runs servant lookups and invocations when Serialize is
	// false. A nil pool is replaced with a small internally-owned one,
	// started on Activate and stopped on Destroy.
	Dispatch reactor.Pool

	// Serialize routes every decoded request from the same incoming
	// connection through a single-consumer channel instead of Dispatch,
	// guaranteeing at most one concurrent dispatch per connection
	// (spec §5's "Adapters may be configured serial-per-connection").
	Serialize bool

	// Log builds the adapter's logger. Defaults to a Warn-level logger
	// discarding output if nil.
	Log func() rlog.Logger
}
