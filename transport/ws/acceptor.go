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

package ws

import (
	"context"
	"net"
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/nabbar/rimecore/transport"
)

// acceptor runs an http.Server over the underlying transport.Acceptor,
// routing every upgrade request at path to websocket.Server and pushing
// the resulting *websocket.Conn (still wrapped as a transport.Transceiver)
// to Accept's caller. This is the one place the package reaches past
// the teacher's transceiver model, because RFC 6455's handshake is an
// HTTP request/response exchange and golang.org/x/net/websocket only
// drives that exchange through net/http.
type acceptor struct {
	inner    transport.Acceptor
	path     string
	accepted chan *transceiver
	closed   chan struct{}
}

func (a *acceptor) serve(ctx context.Context) {
	srv := &http.Server{Handler: a}
	ln := &acceptorListener{inner: a.inner, ctx: ctx}
	_ = srv.Serve(ln)
}

func (a *acceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != a.path {
		http.NotFound(w, r)
		return
	}
	handler := func(ws *websocket.Conn) {
		t := &transceiver{ws: ws, done: make(chan struct{})}
		select {
		case a.accepted <- t:
			<-t.done
		case <-a.closed:
			_ = ws.Close()
		}
	}
	websocket.Handler(handler).ServeHTTP(w, r)
}

func (a *acceptor) Accept(ctx context.Context) (transport.Transceiver, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.closed:
		return nil, net.ErrClosed
	case t := <-a.accepted:
		return t, nil
	}
}

func (a *acceptor) Endpoint() transport.Endpoint {
	return &endpoint{underlying: a.inner.Endpoint(), path: a.path}
}

func (a *acceptor) Close() error {
	select {
	case <-a.closed:
	default:
		close(a.closed)
	}
	return a.inner.Close()
}

// acceptorListener adapts a transport.Acceptor (yielding
// transport.Transceiver) to net.Listener (yielding net.Conn) so
// http.Server.Serve can drive the HTTP upgrade exchange.
type acceptorListener struct {
	inner transport.Acceptor
	ctx   context.Context
}

func (l *acceptorListener) Accept() (net.Conn, error) {
	t, err := l.inner.Accept(l.ctx)
	if err != nil {
		return nil, err
	}
	return connAdapter{t: t}, nil
}

func (l *acceptorListener) Close() error { return l.inner.Close() }
func (l *acceptorListener) Addr() net.Addr {
	return placeholderAddr{network: l.inner.Endpoint().Protocol()}
}

// placeholderAddr satisfies net.Listener.Addr(); http.Server never uses
// it beyond logging, and the underlying transport.Acceptor's real bound
// address is already available via transceiver.LocalAddr() on every
// accepted connection.
type placeholderAddr struct{ network string }

func (p placeholderAddr) Network() string { return p.network }
func (p placeholderAddr) String() string  { return p.network }
