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

package adapter

import (
	"context"
	"io"
	"sync"

	"github.com/nabbar/rimecore/connection"
	"github.com/nabbar/rimecore/proxy"
	"github.com/nabbar/rimecore/reactor"
	liberr "github.com/nabbar/rimecore/rerr"
	"github.com/nabbar/rimecore/rlog"
	"github.com/nabbar/rimecore/rlog/fields"
	"github.com/nabbar/rimecore/rlog/level"
	"github.com/nabbar/rimecore/transport"
	"github.com/nabbar/rimecore/wire"
)

const (
	defaultPoolWorkers = 8
	defaultPoolQueue   = 256
	serialQueueSize    = 32
)

type dispatchResult struct {
	status liberr.ReplyStatus
	body   []byte
}

// pendingDispatch is one decoded request queued for a connection's
// single-consumer serial worker (Config.Serialize).
type pendingDispatch struct {
	ctx     context.Context
	current Current
	payload []byte
	enc     wire.EncodingVersion
	result  chan dispatchResult
}

// connState is what objectAdapter tracks per incoming connection. serialCh is
// non-nil only when Config.Serialize routes this connection's requests
// through one dedicated worker instead of the shared Dispatch pool.
type connState struct {
	serialCh chan *pendingDispatch
}

var _ ObjectAdapter = (*objectAdapter)(nil)
var _ proxy.LocalDispatcher = (*objectAdapter)(nil)

// objectAdapter is the concrete ObjectAdapter of spec §4.7. Its accept
// loops are grounded on the teacher's socket/server/{tcp,udp,unix}
// Listen/Accept/Shutdown shape: one goroutine per transport.Acceptor
// blocked in Accept, demultiplexing into connection.Connections the
// same way those servers demultiplex into their own connection
// bookkeeping (srv.IsRunning/srv.IsGone/srv.OpenConnections here become
// State/IsActive-by-state/OpenConnections).
type objectAdapter struct {
	name string
	cfg  Config
	log  rlog.Logger
	sm   *ServantManager

	mu           sync.Mutex
	state        State
	endpoints    []transport.Endpoint
	acceptors    []transport.Acceptor
	resumeCh     chan struct{}
	acceptCancel context.CancelFunc
	acceptWG     sync.WaitGroup
	dispatchWG   sync.WaitGroup

	connMu sync.Mutex
	conns  map[connection.Connection]*connState

	ownsPool bool
}

// New builds an ObjectAdapter named name, not yet activated, optionally
// pre-seeded with endpoints (more can be added via AddEndpoint before
// the first Activate).
func New(name string, cfg Config, endpoints ...transport.Endpoint) ObjectAdapter {
	if cfg.Log == nil {
		cfg.Log = func() rlog.Logger { return rlog.New(name, io.Discard, level.WarnLevel) }
	}
	a := &objectAdapter{
		name:      name,
		cfg:       cfg,
		log:       cfg.Log(),
		sm:        NewServantManager(),
		endpoints: append([]transport.Endpoint{}, endpoints...),
		conns:     make(map[connection.Connection]*connState),
	}
	if a.cfg.Dispatch == nil && !a.cfg.Serialize {
		a.cfg.Dispatch = reactor.NewPool(defaultPoolWorkers, defaultPoolQueue)
		a.ownsPool = true
	}
	return a
}

func (a *objectAdapter) Name() string { return a.name }

func (a *objectAdapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *objectAdapter) ServantManager() *ServantManager { return a.sm }

func (a *objectAdapter) AddEndpoint(ep transport.Endpoint) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateUninitialized {
		return AlreadyActivatedError.Error()
	}
	a.endpoints = append(a.endpoints, ep)
	return nil
}

func (a *objectAdapter) Activate(ctx context.Context) error {
	a.mu.Lock()
	switch a.state {
	case StateDeactivating, StateDeactivated, StateDestroyed:
		a.mu.Unlock()
		return liberr.LocalObjectAdapterDeactivated.Error()
	case StateActive:
		a.mu.Unlock()
		return nil
	}

	first := a.state == StateUninitialized
	a.state = StateActive
	if a.resumeCh != nil {
		close(a.resumeCh)
		a.resumeCh = nil
	}
	if !first {
		a.mu.Unlock()
		return nil
	}
	if len(a.endpoints) == 0 {
		a.state = StateUninitialized
		a.mu.Unlock()
		return NoEndpointConfiguredError.Error()
	}
	endpoints := append([]transport.Endpoint{}, a.endpoints...)
	acceptCtx, cancel := context.WithCancel(context.Background())
	a.acceptCancel = cancel
	a.mu.Unlock()

	if a.cfg.Dispatch != nil {
		a.cfg.Dispatch.Start()
	}

	for _, ep := range endpoints {
		acc, err := ep.Listen(ctx)
		if err != nil {
			cancel()
			a.mu.Lock()
			a.state = StateUninitialized
			a.mu.Unlock()
			return err
		}
		a.mu.Lock()
		a.acceptors = append(a.acceptors, acc)
		a.mu.Unlock()

		a.acceptWG.Add(1)
		go a.acceptLoop(acceptCtx, acc)
	}
	a.log.Info("object adapter activated", fields.String("name", a.name), fields.Int("endpoints", len(endpoints)))
	return nil
}

func (a *objectAdapter) Hold() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateActive {
		return
	}
	a.state = StateHeld
	a.resumeCh = make(chan struct{})
}

func (a *objectAdapter) acceptLoop(ctx context.Context, acc transport.Acceptor) {
	defer a.acceptWG.Done()

	for {
		t, err := acc.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.log.Warn("accept failed", fields.String("adapter", a.name), fields.Err(err))
			continue
		}

		a.mu.Lock()
		state := a.state
		resume := a.resumeCh
		a.mu.Unlock()

		if state == StateHeld && resume != nil {
			select {
			case <-resume:
			case <-ctx.Done():
				_ = t.Close()
				return
			}
		}

		a.startConnection(ctx, t, acc.Endpoint())
	}
}

func (a *objectAdapter) startConnection(ctx context.Context, t transport.Transceiver, ep transport.Endpoint) {
	info := connection.Info{Incoming: true, LocalAddress: ep.String(), AdapterName: a.name}
	conn := a.cfg.ConnectionFactory.New(t, true, info, connection.ACM{})

	state := &connState{}
	if a.cfg.Serialize {
		state.serialCh = make(chan *pendingDispatch, serialQueueSize)
		go a.serialWorker(ctx, state.serialCh)
	}

	conn.RegisterDispatcher(a.makeDispatchFunc(conn, state))

	a.connMu.Lock()
	a.conns[conn] = state
	a.connMu.Unlock()

	go func() {
		defer func() {
			a.connMu.Lock()
			delete(a.conns, conn)
			a.connMu.Unlock()
			if state.serialCh != nil {
				close(state.serialCh)
			}
		}()
		if err := conn.Start(ctx); err != nil {
			a.log.Warn("incoming connection failed", fields.String("adapter", a.name), fields.Err(err))
		}
	}()
}

// serialWorker is the single consumer draining one connection's pending
// requests, guaranteeing at most one dispatch in flight per connection
// when Config.Serialize is set.
func (a *objectAdapter) serialWorker(ctx context.Context, ch chan *pendingDispatch) {
	for {
		select {
		case pd, ok := <-ch:
			if !ok {
				return
			}
			status, body := a.dispatch(pd.ctx, pd.current, pd.payload, pd.enc)
			pd.result <- dispatchResult{status: status, body: body}
		case <-ctx.Done():
			return
		}
	}
}

func (a *objectAdapter) makeDispatchFunc(conn connection.Connection, state *connState) connection.DispatchFunc {
	return func(ctx context.Context, requestId int32, operation string, body []byte, enc wire.EncodingVersion) (liberr.ReplyStatus, []byte) {
		identity, facet, mode, reqCtx, payload, err := proxy.DecodeEnvelope(body)
		if err != nil {
			a.log.Warn("request envelope corrupt", fields.String("adapter", a.name), fields.Err(err))
			return liberr.ReplyUnknownLocalException, nil
		}

		current := Current{
			Adapter:    a,
			Identity:   identity,
			Facet:      facet,
			Operation:  operation,
			Mode:       mode,
			Context:    reqCtx,
			Connection: conn,
			RequestId:  requestId,
		}

		if state.serialCh != nil {
			pd := &pendingDispatch{ctx: ctx, current: current, payload: payload, enc: enc, result: make(chan dispatchResult, 1)}
			select {
			case state.serialCh <- pd:
			case <-ctx.Done():
				return liberr.ReplyUnknownLocalException, nil
			}
			select {
			case r := <-pd.result:
				return r.status, r.body
			case <-ctx.Done():
				return liberr.ReplyUnknownLocalException, nil
			}
		}

		if a.cfg.Dispatch == nil {
			return a.dispatch(ctx, current, payload, enc)
		}

		done := make(chan dispatchResult, 1)
		if err := a.cfg.Dispatch.Submit(func(taskCtx context.Context) {
			status, resp := a.dispatch(ctx, current, payload, enc)
			done <- dispatchResult{status: status, body: resp}
		}); err != nil {
			a.log.Warn("dispatch pool rejected request", fields.String("adapter", a.name), fields.Err(err))
			return liberr.ReplyUnknownLocalException, nil
		}
		select {
		case r := <-done:
			return r.status, r.body
		case <-ctx.Done():
			return liberr.ReplyUnknownLocalException, nil
		}
	}
}

// DispatchLocal implements proxy.LocalDispatcher for the collocation
// optimization (spec §4.6's SupportsCollocation): an in-process caller
// bypasses both wire encoding and the accept-loop goroutine, but still
// goes through the same servant-lookup and exception-propagation rules.
func (a *objectAdapter) DispatchLocal(ctx context.Context, identity proxy.Identity, facet, operation string, body []byte) (liberr.ReplyStatus, []byte, error) {
	current := Current{Adapter: a, Identity: identity, Facet: facet, Operation: operation, Mode: proxy.ModeTwoway}
	status, resp := a.dispatch(ctx, current, body, wire.Encoding1_1)
	return status, resp, nil
}

func (a *objectAdapter) dispatch(ctx context.Context, current Current, payload []byte, enc wire.EncodingVersion) (liberr.ReplyStatus, []byte) {
	a.mu.Lock()
	state := a.state
	a.mu.Unlock()
	if state == StateDeactivating || state == StateDeactivated || state == StateDestroyed {
		return liberr.ReplyUnknownLocalException, nil
	}

	a.dispatchWG.Add(1)
	defer a.dispatchWG.Done()

	servant, identityKnown := a.sm.Lookup(current.Identity, current.Facet)

	var locator ServantLocator
	var cookie any
	if servant == nil {
		locator = a.sm.findLocator(current.Identity)
		if locator != nil {
			var lerr error
			servant, cookie, lerr = locator.Locate(ctx, current)
			if lerr != nil {
				a.log.Warn("servant locator failed", fields.String("operation", current.Operation), fields.Err(lerr))
				return liberr.ReplyUnknownLocalException, nil
			}
		}
	}

	if servant == nil {
		return MissingIdentityStatus(identityKnown), nil
	}

	status, body := a.invokeSafe(ctx, servant, current, payload, enc)

	if locator != nil {
		locator.Finished(ctx, current, servant, cookie)
	}
	return status, body
}

func (a *objectAdapter) invokeSafe(ctx context.Context, servant Servant, current Current, payload []byte, enc wire.EncodingVersion) (status liberr.ReplyStatus, body []byte) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("servant dispatch panicked",
				fields.String("operation", current.Operation),
				fields.String("panic", panicString(r)))
			status, body = liberr.ReplyUnknownException, nil
		}
	}()

	in := wire.NewInputStream(payload, enc, wire.DefaultLimits, nil, nil)
	defer in.Release()
	out := wire.NewOutputStream(enc, wire.DefaultLimits)
	defer out.Release()

	st, err := servant.Dispatch(ctx, current.Operation, in, out, current)
	if err != nil {
		a.log.Warn("dispatch failed",
			fields.String("operation", current.Operation),
			fields.String("reply-status", st.String()),
			fields.Err(err))
	}

	switch st {
	case liberr.ReplyOK, liberr.ReplyUserException:
		outBytes := make([]byte, out.Len())
		copy(outBytes, out.Bytes())
		return st, outBytes
	default:
		return st, nil
	}
}

func panicString(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return "unexpected panic"
}

func (a *objectAdapter) Deactivate(ctx context.Context) error {
	a.mu.Lock()
	switch a.state {
	case StateDeactivated, StateDestroyed:
		a.mu.Unlock()
		return nil
	case StateUninitialized:
		a.state = StateDeactivated
		a.mu.Unlock()
		return nil
	}
	a.state = StateDeactivating
	cancel := a.acceptCancel
	if a.resumeCh != nil {
		close(a.resumeCh)
		a.resumeCh = nil
	}
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.acceptWG.Wait()

	a.mu.Lock()
	for _, acc := range a.acceptors {
		_ = acc.Close()
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.dispatchWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	a.connMu.Lock()
	conns := make([]connection.Connection, 0, len(a.conns))
	for c := range a.conns {
		conns = append(conns, c)
	}
	a.connMu.Unlock()
	for _, c := range conns {
		_ = c.Close(true, connection.CloseGracefully, nil)
	}

	a.mu.Lock()
	a.state = StateDeactivated
	a.mu.Unlock()
	a.log.Info("object adapter deactivated", fields.String("name", a.name))
	return nil
}

func (a *objectAdapter) Destroy(ctx context.Context) error {
	a.mu.Lock()
	past := a.state == StateDeactivated || a.state == StateDestroyed
	a.mu.Unlock()
	if !past {
		if err := a.Deactivate(ctx); err != nil {
			return err
		}
	}

	a.mu.Lock()
	a.state = StateDestroyed
	a.mu.Unlock()

	if a.ownsPool && a.cfg.Dispatch != nil {
		a.cfg.Dispatch.Stop()
	}
	return nil
}

func (a *objectAdapter) OpenConnections() int64 {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	return int64(len(a.conns))
}
