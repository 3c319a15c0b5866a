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

// Package instance is the Communicator: the single value an embedding
// application owns to talk to every other package in this module. It
// composes one client-side and one server-side reactor.Pool (optionally
// merged), one connection.Factory, one locator.Cache, a proxy.EndpointParsers
// registry, and the plugin / value-factory / type-id-descriptor registries
// spec.md's "Global state" design note asks to be constructor parameters
// rather than package-level mutable maps the way the source's CommunicatorI
// keeps its Instance.
package instance

import (
	"context"

	"github.com/nabbar/rimecore/adapter"
	"github.com/nabbar/rimecore/locator"
	"github.com/nabbar/rimecore/proxy"
	"github.com/nabbar/rimecore/reactor"
	liberr "github.com/nabbar/rimecore/rerr"
	"github.com/nabbar/rimecore/rlog"
	"github.com/nabbar/rimecore/transport"
	"github.com/nabbar/rimecore/wire"
)

// OperationDescriptor is one operation entry of a TypeDescriptor: the
// name generated code dispatches on, and the wire format tagged
// optional parameters of that operation's encapsulation default to when
// no per-parameter format is otherwise known.
type OperationDescriptor struct {
	Name       string
	FormatHint wire.Format
}

// TypeDescriptor is the shape an IDL-compiler-equivalent (out of scope
// for this module, per spec §1 Excluded) hands the runtime so it can
// validate a checkedCast and drive class/exception slicing without a
// compiled vtable: type-id, optional Slice compact-id, base type-id for
// the "is-a" walk checkedCast needs, member list (by name only — member
// wire types are read generically through wire.InputStream), and the
// operation list above.
type TypeDescriptor struct {
	TypeId     string
	CompactId  int32
	BaseTypeId string
	Members    []string
	Operations []OperationDescriptor
}

// ValueFactory constructs an empty instance of the class or exception
// named typeId, to be filled in by wire.InputStream's sliced-graph
// unmarshaling. A nil return tells the caller to fall back to
// UnknownSlicedValue (spec §7's unknown-user-exception handling
// extended to class graphs).
type ValueFactory func(typeId string) any

// Dependencies bundles everything a Communicator needs handed in at
// construction instead of resolving globally, per spec.md's "Global
// state" design note.
type Dependencies struct {
	// Log builds the Communicator's own logger and the default logger
	// handed to components and adapters that don't carry their own.
	Log rlog.FuncLog

	// EndpointParsers maps stringified-proxy transport tokens to the
	// transport.Endpoint parser used by StringToProxy (spec §6). A
	// Communicator always adds transport/opaque under "opaque" itself
	// if the caller didn't, so an endpoint type it has no real plugin
	// for still round-trips byte-identically.
	EndpointParsers proxy.EndpointParsers

	// ClientPool and ServerPool back client-side retry/collocated
	// dispatch and server-side adapter dispatch, respectively. Spec §5
	// allows a communicator to merge the two into a single pool; passing
	// the same reactor.Pool for both does exactly that. A nil pool is
	// built internally with the engine config's default worker/queue
	// sizes.
	ClientPool reactor.Pool
	ServerPool reactor.Pool

	// Locator is the embedding application's Locator proxy
	// implementation (typically itself a Proxy[T] invoking a remote
	// locator service), wrapped in the Communicator's own locator.Cache
	// so every Reference pointing its own Locator field at
	// Communicator.LocatorCache() shares one TTL cache and one
	// singleflight-collapsed resolution per adapter-id or identity
	// (spec §4.6). Nil if this Communicator never resolves indirect
	// references itself.
	Locator proxy.Locator
}

// Communicator is the root object of an embedding application's use of
// this module: it creates adapters, builds proxies from stringified
// form, and owns every registry spec.md asks not to be a package global.
type Communicator interface {
	// CreateObjectAdapter builds and registers a new named ObjectAdapter,
	// listening on endpoints. The name must be unique for the lifetime of
	// this Communicator.
	CreateObjectAdapter(name string, endpoints ...transport.Endpoint) (adapter.ObjectAdapter, error)

	// ObjectAdapter looks up a previously created adapter by name.
	ObjectAdapter(name string) (adapter.ObjectAdapter, bool)

	// StringToProxy parses s into a Reference using this Communicator's
	// EndpointParsers (spec §6).
	StringToProxy(s string) (*proxy.Reference, error)

	// ProxyToString renders ref per spec §6.
	ProxyToString(ref *proxy.Reference) string

	// LocatorCache returns the shared locator.Cache wrapping
	// Dependencies.Locator, or nil if none was configured.
	LocatorCache() *locator.Cache

	// NewConnectHandler builds the ConnectRequestHandler strategy a
	// Proxy[T] built over ref should start from, sharing this
	// Communicator's connection factory, retry policy, and retry wheel.
	// Generated code (out of scope, per SPEC_FULL.md §13) would normally
	// call this from a `NewXxxPrx` constructor; without one, an
	// embedding application calls it directly when building proxy.Proxy[T]
	// via proxy.New with a HandlerFactory that just returns this.
	NewConnectHandler(ref *proxy.Reference) proxy.RequestHandler

	// RegisterPlugin installs plugin under name. Plugins are opaque to
	// this package (spec.md's "Global state" note lists the plugin
	// registry as a parameter, not a behavior this core interprets).
	RegisterPlugin(name string, plugin any) error
	Plugin(name string) (any, bool)

	// RegisterValueFactory installs factory for typeId, consulted while
	// unmarshaling a sliced class or exception graph of that type-id.
	RegisterValueFactory(typeId string, factory ValueFactory) error
	ValueFactory(typeId string) (ValueFactory, bool)

	// RegisterDescriptor installs the generated-code descriptor for
	// typeId (SPEC_FULL.md §13).
	RegisterDescriptor(typeId string, d TypeDescriptor) error
	Descriptor(typeId string) (TypeDescriptor, bool)

	// Destroy deactivates every adapter this Communicator created, stops
	// its reactor pools and connection factory, and releases its
	// registries. Idempotent; Destroy after Destroy returns
	// AlreadyDestroyedError.
	Destroy(ctx context.Context) liberr.Error
}
