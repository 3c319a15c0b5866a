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

// Package tls wraps another transport.Endpoint (normally transport/tcp)
// with a crypto/tls handshake, configured through the teacher's
// certificates package (certificates.TLSConfig, certificates/tlsversion,
// certificates/cipher, certificates/curves, certificates/certs,
// certificates/ca, certificates/auth) kept and adapted from the
// teacher's HTTP-server TLS wiring to this module's transceiver model.
package tls

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/nabbar/rimecore/certificates"
	"github.com/nabbar/rimecore/transport"
	"github.com/nabbar/rimecore/transport/tcp"
)

type transceiver struct {
	conn *tls.Conn
	raw  net.Conn
}

func (t *transceiver) Initialize(_, _ []byte) (transport.Operation, error) {
	if err := t.conn.Handshake(); err != nil {
		return transport.OperationNone, transport.HandshakeError.Error(err)
	}
	return transport.OperationNone, nil
}

func (t *transceiver) Read(p []byte) (int, error)  { return t.conn.Read(p) }
func (t *transceiver) Write(p []byte) (int, error) { return t.conn.Write(p) }

func (t *transceiver) Closing(_ bool, _ error) transport.Operation {
	_ = t.conn.CloseWrite()
	return transport.OperationNone
}

func (t *transceiver) Close() error { return t.conn.Close() }

func (t *transceiver) Fd() uintptr {
	// tls.Conn does not itself expose a descriptor; the underlying
	// transceiver wrapped by connAdapter owns the real one.
	return t.raw.(connAdapter).t.Fd()
}

func (t *transceiver) LocalAddr() net.Addr  { return t.conn.LocalAddr() }
func (t *transceiver) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

// ConnectionState exposes the negotiated TLS state (peer certificates,
// cipher suite, negotiated protocol) for connection.Info.
func (t *transceiver) ConnectionState() tls.ConnectionState {
	return t.conn.ConnectionState()
}

type endpoint struct {
	underlying transport.Endpoint
	cfg        certificates.TLSConfig
	serverName string
}

// New wraps underlying with a TLS handshake configured by cfg. serverName
// drives SNI on outgoing connections and certificate verification.
func New(underlying transport.Endpoint, cfg certificates.TLSConfig, serverName string) transport.Endpoint {
	return &endpoint{underlying: underlying, cfg: cfg, serverName: serverName}
}

func (e *endpoint) Protocol() string { return "ssl" }
func (e *endpoint) Secure() bool     { return true }

func (e *endpoint) Timeout() (bool, int64) { return e.underlying.Timeout() }

func (e *endpoint) Connect(ctx context.Context) (transport.Transceiver, error) {
	inner, err := e.underlying.Connect(ctx)
	if err != nil {
		return nil, err
	}
	raw := connAdapter{t: inner}
	conn := tls.Client(raw, e.cfg.TLS(e.serverName))
	return &transceiver{conn: conn, raw: raw}, nil
}

func (e *endpoint) Listen(ctx context.Context) (transport.Acceptor, error) {
	inner, err := e.underlying.Listen(ctx)
	if err != nil {
		return nil, err
	}
	return &acceptor{inner: inner, cfg: e.cfg, serverName: e.serverName}, nil
}

func (e *endpoint) String() string {
	return "ssl" + e.underlying.String()[3:]
}

func (e *endpoint) Equal(other transport.Endpoint) bool {
	o, ok := other.(*endpoint)
	return ok && e.underlying.Equal(o.underlying)
}

type acceptor struct {
	inner      transport.Acceptor
	cfg        certificates.TLSConfig
	serverName string
}

func (a *acceptor) Accept(ctx context.Context) (transport.Transceiver, error) {
	inner, err := a.inner.Accept(ctx)
	if err != nil {
		return nil, err
	}
	raw := connAdapter{t: inner}
	conn := tls.Server(raw, a.cfg.TLS(a.serverName))
	return &transceiver{conn: conn, raw: raw}, nil
}

func (a *acceptor) Endpoint() transport.Endpoint {
	return &endpoint{underlying: a.inner.Endpoint(), cfg: a.cfg, serverName: a.serverName}
}

func (a *acceptor) Close() error { return a.inner.Close() }

// connAdapter presents a transport.Transceiver as a net.Conn so
// crypto/tls, which only knows how to drive net.Conn, can sit on top of
// any transport.Transceiver (in practice, always transport/tcp).
type connAdapter struct {
	t transport.Transceiver
}

func (c connAdapter) Read(p []byte) (int, error)  { return c.t.Read(p) }
func (c connAdapter) Write(p []byte) (int, error) { return c.t.Write(p) }
func (c connAdapter) Close() error                { return c.t.Close() }
func (c connAdapter) LocalAddr() net.Addr         { return c.t.LocalAddr() }
func (c connAdapter) RemoteAddr() net.Addr        { return c.t.RemoteAddr() }

// Deadlines are managed by the reactor driving the underlying
// transceiver's Read/Write, not by crypto/tls directly.
func (c connAdapter) SetDeadline(time.Time) error      { return nil }
func (c connAdapter) SetReadDeadline(time.Time) error  { return nil }
func (c connAdapter) SetWriteDeadline(time.Time) error { return nil }

// NewParser builds a parser for "ssl -h <host> -p <port>" endpoint
// tokens, wrapping transport/tcp's own parser with cfg. The stringified
// proxy grammar never carries certificate material (spec §6); cfg comes
// from the process's own configuration, the same way the original's
// ssl endpoint relies on the already-installed IceSSL transport.
func NewParser(cfg certificates.TLSConfig) func(tokens []string) (transport.Endpoint, error) {
	return func(tokens []string) (transport.Endpoint, error) {
		underlying, err := tcp.Parse(tokens)
		if err != nil {
			return nil, err
		}
		serverName := ""
		for i := 0; i < len(tokens); i++ {
			if tokens[i] == "-h" && i+1 < len(tokens) {
				serverName = tokens[i+1]
				break
			}
		}
		return New(underlying, cfg, serverName), nil
	}
}
