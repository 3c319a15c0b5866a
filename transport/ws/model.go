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

// Package ws wraps another transport.Endpoint (transport/tcp or
// transport/tls) with an RFC 6455 upgrade, using golang.org/x/net/websocket
// the same way transport/tls layers crypto/tls over a raw transceiver:
// ws always sits on top, never duplicates the byte-stream transport
// underneath it. Framing/masking is delegated entirely to
// golang.org/x/net/websocket.Conn.
package ws

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/websocket"

	"github.com/nabbar/rimecore/transport"
)

// transceiver adapts a *websocket.Conn (itself a net.Conn) to
// transport.Transceiver. The upgrade handshake has already completed
// by the time Connect/Accept hand one back, so Initialize is a no-op.
type transceiver struct {
	ws   *websocket.Conn
	raw  transport.Transceiver
	done chan struct{}
}

func (t *transceiver) Initialize(_, _ []byte) (transport.Operation, error) {
	t.ws.PayloadType = websocket.BinaryFrame
	return transport.OperationNone, nil
}

func (t *transceiver) Read(p []byte) (int, error)  { return t.ws.Read(p) }
func (t *transceiver) Write(p []byte) (int, error) { return t.ws.Write(p) }

func (t *transceiver) Closing(_ bool, _ error) transport.Operation {
	return transport.OperationNone
}

func (t *transceiver) Close() error {
	if t.done != nil {
		select {
		case <-t.done:
		default:
			close(t.done)
		}
	}
	return t.ws.Close()
}

func (t *transceiver) Fd() uintptr {
	if t.raw != nil {
		return t.raw.Fd()
	}
	return ^uintptr(0)
}

func (t *transceiver) LocalAddr() net.Addr  { return t.ws.LocalAddr() }
func (t *transceiver) RemoteAddr() net.Addr { return t.ws.RemoteAddr() }

// endpoint describes a ws:// or wss:// resource path layered over an
// underlying byte-stream endpoint.
type endpoint struct {
	underlying transport.Endpoint
	path       string
	origin     string
}

// New wraps underlying (normally transport/tcp or transport/tls) with a
// WebSocket upgrade at resourcePath. origin is sent as the outgoing
// Origin header and echoed back by Listen's handshake validation.
func New(underlying transport.Endpoint, resourcePath, origin string) transport.Endpoint {
	if resourcePath == "" {
		resourcePath = "/"
	}
	return &endpoint{underlying: underlying, path: resourcePath, origin: origin}
}

func (e *endpoint) Protocol() string {
	if e.underlying.Secure() {
		return "wss"
	}
	return "ws"
}

func (e *endpoint) Secure() bool { return e.underlying.Secure() }

func (e *endpoint) Timeout() (bool, int64) { return e.underlying.Timeout() }

func (e *endpoint) Connect(ctx context.Context) (transport.Transceiver, error) {
	inner, err := e.underlying.Connect(ctx)
	if err != nil {
		return nil, err
	}

	scheme := "ws"
	if e.underlying.Secure() {
		scheme = "wss"
	}
	cfg, err := websocket.NewConfig(scheme+"://"+inner.RemoteAddr().String()+e.path, e.origin)
	if err != nil {
		_ = inner.Close()
		return nil, transport.HandshakeError.Error(err)
	}

	conn, err := websocket.NewClient(cfg, connAdapter{t: inner})
	if err != nil {
		_ = inner.Close()
		return nil, transport.HandshakeError.Error(err)
	}
	return &transceiver{ws: conn, raw: inner}, nil
}

func (e *endpoint) Listen(ctx context.Context) (transport.Acceptor, error) {
	inner, err := e.underlying.Listen(ctx)
	if err != nil {
		return nil, err
	}
	a := &acceptor{
		inner:    inner,
		path:     e.path,
		accepted: make(chan *transceiver, 16),
		closed:   make(chan struct{}),
	}
	go a.serve(ctx)
	return a, nil
}

func (e *endpoint) String() string {
	return e.Protocol() + e.underlying.String()[len(e.underlying.Protocol()):] + " -r " + e.path
}

func (e *endpoint) Equal(other transport.Endpoint) bool {
	o, ok := other.(*endpoint)
	return ok && e.path == o.path && e.underlying.Equal(o.underlying)
}

// connAdapter presents a transport.Transceiver as a net.Conn so
// websocket.NewClient, which only knows how to drive net.Conn, can sit
// on top of any transport.Transceiver.
type connAdapter struct {
	t transport.Transceiver
}

func (c connAdapter) Read(p []byte) (int, error)  { return c.t.Read(p) }
func (c connAdapter) Write(p []byte) (int, error) { return c.t.Write(p) }
func (c connAdapter) Close() error                { return c.t.Close() }
func (c connAdapter) LocalAddr() net.Addr         { return c.t.LocalAddr() }
func (c connAdapter) RemoteAddr() net.Addr        { return c.t.RemoteAddr() }

func (c connAdapter) SetDeadline(time.Time) error      { return nil }
func (c connAdapter) SetReadDeadline(time.Time) error  { return nil }
func (c connAdapter) SetWriteDeadline(time.Time) error { return nil }

var _ http.Handler = (*acceptor)(nil)

// NewParser builds a parser for "ws"/"wss" endpoint tokens, pulling out
// "-r <path>" and "-o <origin>" and handing the rest (host, port, and
// any layer-specific options) to underlying, which builds the
// transport/tcp or transport/tls endpoint this one wraps. Composing
// parsers this way mirrors how New itself composes endpoints: ws always
// sits on top, never duplicates the byte-stream transport underneath.
func NewParser(underlying func(tokens []string) (transport.Endpoint, error)) func(tokens []string) (transport.Endpoint, error) {
	return func(tokens []string) (transport.Endpoint, error) {
		var path, origin string
		rest := make([]string, 0, len(tokens))

		for i := 0; i < len(tokens); i++ {
			switch tokens[i] {
			case "-r":
				i++
				if i >= len(tokens) {
					return nil, transport.EndpointParseError.Error(fmt.Errorf("ws endpoint missing -r value"))
				}
				path = tokens[i]
			case "-o":
				i++
				if i >= len(tokens) {
					return nil, transport.EndpointParseError.Error(fmt.Errorf("ws endpoint missing -o value"))
				}
				origin = tokens[i]
			default:
				rest = append(rest, tokens[i])
			}
		}

		base, err := underlying(rest)
		if err != nil {
			return nil, err
		}
		return New(base, path, origin), nil
	}
}
