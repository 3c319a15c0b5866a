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

package instance

import (
	"context"
	"io"
	"sync"

	"github.com/nabbar/rimecore/adapter"
	"github.com/nabbar/rimecore/connection"
	"github.com/nabbar/rimecore/internal/ring"
	"github.com/nabbar/rimecore/locator"
	"github.com/nabbar/rimecore/proxy"
	"github.com/nabbar/rimecore/reactor"
	liberr "github.com/nabbar/rimecore/rerr"
	"github.com/nabbar/rimecore/rlog"
	"github.com/nabbar/rimecore/rlog/level"
	"github.com/nabbar/rimecore/transport"
	"github.com/nabbar/rimecore/transport/opaque"
	"github.com/nabbar/rimecore/wire"
)

const retryWheelSlots = 64

// communicatorModel is the concrete Communicator. It owns no locator
// resolver of its own — that is supplied per-Reference via
// proxy.Reference.Locator/Router, resolved through the shared
// connFactory/clientPool/wheel every ConnectRequestHandler this
// Communicator's proxies build from uses.
type communicatorModel struct {
	cfg  EngineConfig
	log  rlog.FuncLog
	eps  proxy.EndpointParsers

	connFactory connection.Factory
	clientPool  reactor.Pool
	serverPool  reactor.Pool
	wheel       ring.Wheel
	locCache    *locator.Cache

	ownsClientPool bool
	ownsServerPool bool

	mu        sync.RWMutex
	destroyed bool
	adapters  map[string]adapter.ObjectAdapter
	plugins   map[string]any
	factories map[string]ValueFactory
	types     map[string]TypeDescriptor
}

// New builds a Communicator from cfg and deps. A nil deps.EndpointParsers
// or one missing an "opaque" entry gets transport/opaque added
// automatically, so every Communicator can always at least preserve an
// endpoint type it has no real transport plugin for (spec §6).
func New(cfg EngineConfig, deps Dependencies) Communicator {
	logFn := deps.Log
	if logFn == nil {
		logFn = func() rlog.Logger { return rlog.New("instance", io.Discard, level.WarnLevel) }
	}

	eps := proxy.EndpointParsers{}
	for k, v := range deps.EndpointParsers {
		eps[k] = v
	}
	if _, ok := eps["opaque"]; !ok {
		eps["opaque"] = opaque.Parse
	}

	limits := cfg.Limits()
	connFactory := connection.NewFactory(logFn, wire.EncodingVersion{Major: cfg.DefaultEncodingMajor, Minor: cfg.DefaultEncodingMinor}, limits, cfg.ACMSweepInterval)

	clientPool := deps.ClientPool
	ownsClient := false
	if clientPool == nil {
		clientPool = reactor.NewPool(cfg.ClientPoolSize, cfg.ClientPoolQueue)
		ownsClient = true
	}
	serverPool := deps.ServerPool
	ownsServer := false
	if serverPool == nil {
		serverPool = reactor.NewPool(cfg.ServerPoolSize, cfg.ServerPoolQueue)
		ownsServer = true
	}
	clientPool.Start()
	if serverPool != clientPool {
		serverPool.Start()
	}

	var locCache *locator.Cache
	if deps.Locator != nil {
		locCache = locator.NewCache(deps.Locator, logFn)
	}

	return &communicatorModel{
		cfg:            cfg,
		log:            logFn,
		eps:            eps,
		connFactory:    connFactory,
		clientPool:     clientPool,
		serverPool:     serverPool,
		wheel:          ring.New(cfg.ACMSweepInterval, retryWheelSlots),
		locCache:       locCache,
		ownsClientPool: ownsClient,
		ownsServerPool: ownsServer,
		adapters:       make(map[string]adapter.ObjectAdapter),
		plugins:        make(map[string]any),
		factories:      make(map[string]ValueFactory),
		types:          make(map[string]TypeDescriptor),
	}
}

func (c *communicatorModel) CreateObjectAdapter(name string, endpoints ...transport.Endpoint) (adapter.ObjectAdapter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return nil, AlreadyDestroyedError.Error(nil)
	}
	if _, ok := c.adapters[name]; ok {
		return nil, AdapterNameInUseError.Error(nil)
	}

	a := adapter.New(name, adapter.Config{
		Name:              name,
		ConnectionFactory: c.connFactory,
		Dispatch:          c.serverPool,
		Log:               c.log,
	}, endpoints...)
	c.adapters[name] = a
	return a, nil
}

func (c *communicatorModel) ObjectAdapter(name string) (adapter.ObjectAdapter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.adapters[name]
	return a, ok
}

func (c *communicatorModel) StringToProxy(s string) (*proxy.Reference, error) {
	return proxy.StringToProxy(s, c.eps)
}

func (c *communicatorModel) ProxyToString(ref *proxy.Reference) string {
	return proxy.ProxyToString(ref)
}

func (c *communicatorModel) LocatorCache() *locator.Cache {
	return c.locCache
}

// NewConnectHandler builds the ConnectRequestHandler a freshly-resolved
// Proxy[T] for ref should start from, sharing this Communicator's
// connection factory, retry policy, and retry wheel. Every caller
// building a proxy from a Reference needs these same three
// collaborators, so exposing it here avoids every embedding application
// re-deriving them from EngineConfig by hand.
func (c *communicatorModel) NewConnectHandler(ref *proxy.Reference) proxy.RequestHandler {
	return proxy.NewConnectRequestHandler(ref, connectionFactoryAdapter{c.connFactory}, c.cfg.RetryPolicy(), c.wheel)
}

func (c *communicatorModel) RegisterPlugin(name string, plugin any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return AlreadyDestroyedError.Error(nil)
	}
	if _, ok := c.plugins[name]; ok {
		return PluginNameInUseError.Error(nil)
	}
	c.plugins[name] = plugin
	return nil
}

func (c *communicatorModel) Plugin(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.plugins[name]
	return p, ok
}

func (c *communicatorModel) RegisterValueFactory(typeId string, factory ValueFactory) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return AlreadyDestroyedError.Error(nil)
	}
	if _, ok := c.factories[typeId]; ok {
		return TypeIdInUseError.Error(nil)
	}
	c.factories[typeId] = factory
	return nil
}

func (c *communicatorModel) ValueFactory(typeId string) (ValueFactory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.factories[typeId]
	return f, ok
}

func (c *communicatorModel) RegisterDescriptor(typeId string, d TypeDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return AlreadyDestroyedError.Error(nil)
	}
	if _, ok := c.types[typeId]; ok {
		return TypeIdInUseError.Error(nil)
	}
	c.types[typeId] = d
	return nil
}

func (c *communicatorModel) Descriptor(typeId string) (TypeDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.types[typeId]
	return d, ok
}

func (c *communicatorModel) Destroy(ctx context.Context) liberr.Error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return AlreadyDestroyedError.Error(nil)
	}
	c.destroyed = true
	adapters := make([]adapter.ObjectAdapter, 0, len(c.adapters))
	for _, a := range c.adapters {
		adapters = append(adapters, a)
	}
	c.mu.Unlock()

	for _, a := range adapters {
		_ = a.Destroy(ctx)
	}
	c.connFactory.Shutdown()
	c.wheel.Stop()
	if c.ownsClientPool {
		c.clientPool.Stop()
	}
	if c.ownsServerPool && c.serverPool != c.clientPool {
		c.serverPool.Stop()
	}
	return nil
}

// connectionFactoryAdapter narrows connection.Factory to
// proxy.ConnectionFactory so handler_connect.go stays independent of
// Factory's Shutdown/ACM bookkeeping it never calls.
type connectionFactoryAdapter struct {
	f connection.Factory
}

func (a connectionFactoryAdapter) New(t transport.Transceiver, incoming bool, info connection.Info, acm connection.ACM) connection.Connection {
	return a.f.New(t, incoming, info, acm)
}

var _ proxy.ConnectionFactory = connectionFactoryAdapter{}
var _ Communicator = (*communicatorModel)(nil)
