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

// Package tcp implements transport.Endpoint/Transceiver/Acceptor over
// net.TCPConn, adapted from the teacher's socket/client/tcp and
// socket/server/tcp packages. Those packages ship only as Ginkgo
// specs describing the intended dial/accept/keepalive-tuning behavior
// with no buildable source alongside them in the pack; this
// implementation follows that observed behavior (SetNoDelay,
// SetKeepAlive/SetKeepAlivePeriod on every accepted/dialed connection)
// rather than adapting any copyable file.
package tcp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/nabbar/rimecore/transport"
)

// DialUpdateFunc tunes a freshly dialed connection before it's handed
// back to the caller, mirroring the teacher's accept-side tuning hook.
type DialUpdateFunc func(conn *net.TCPConn) error

// AcceptUpdateFunc tunes a freshly accepted connection the same way.
type AcceptUpdateFunc func(conn *net.TCPConn) error

// DefaultTuning applies the teacher's observed keepalive/no-delay
// defaults (SetNoDelay(true), SetKeepAlive(true) with a 30s period).
func DefaultTuning(conn *net.TCPConn) error {
	if err := conn.SetNoDelay(true); err != nil {
		return err
	}
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}
	return conn.SetKeepAlivePeriod(30 * time.Second)
}

// transceiver wraps a *net.TCPConn as a transport.Transceiver. TCP
// requires no explicit handshake step beyond the connect/accept
// syscall already completed by Connect/Accept, so Initialize and
// Closing are no-ops that report transport.OperationNone immediately.
type transceiver struct {
	conn *net.TCPConn
}

func newTransceiver(conn *net.TCPConn) *transceiver {
	return &transceiver{conn: conn}
}

func (t *transceiver) Initialize(_, _ []byte) (transport.Operation, error) {
	return transport.OperationNone, nil
}

func (t *transceiver) Read(p []byte) (int, error) {
	return t.conn.Read(p)
}

func (t *transceiver) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

func (t *transceiver) Closing(_ bool, _ error) transport.Operation {
	_ = t.conn.CloseWrite()
	return transport.OperationNone
}

func (t *transceiver) Close() error {
	return t.conn.Close()
}

func (t *transceiver) Fd() uintptr {
	return fd(t.conn)
}

func (t *transceiver) LocalAddr() net.Addr  { return t.conn.LocalAddr() }
func (t *transceiver) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

// endpoint describes a dialable/listenable TCP address.
type endpoint struct {
	host       string
	port       int
	timeout    time.Duration
	hasTimeout bool
	onDial     DialUpdateFunc
	onAccept   AcceptUpdateFunc
}

// New builds a TCP endpoint for host:port. onDial/onAccept may be nil,
// in which case DefaultTuning is applied.
func New(host string, port int, timeout time.Duration, onDial DialUpdateFunc, onAccept AcceptUpdateFunc) transport.Endpoint {
	if onDial == nil {
		onDial = DefaultTuning
	}
	if onAccept == nil {
		onAccept = DefaultTuning
	}
	return &endpoint{
		host:       host,
		port:       port,
		timeout:    timeout,
		hasTimeout: timeout > 0,
		onDial:     onDial,
		onAccept:   onAccept,
	}
}

func (e *endpoint) Protocol() string { return "tcp" }
func (e *endpoint) Secure() bool     { return false }

func (e *endpoint) Timeout() (bool, int64) {
	return e.hasTimeout, e.timeout.Milliseconds()
}

func (e *endpoint) Connect(ctx context.Context) (transport.Transceiver, error) {
	d := net.Dialer{}
	if e.hasTimeout {
		d.Timeout = e.timeout
	}
	c, err := d.DialContext(ctx, "tcp", e.addr())
	if err != nil {
		return nil, transport.ConnectFailedError.Error(err)
	}
	tc := c.(*net.TCPConn)
	if e.onDial != nil {
		if err = e.onDial(tc); err != nil {
			_ = tc.Close()
			return nil, transport.ConnectFailedError.Error(err)
		}
	}
	return newTransceiver(tc), nil
}

func (e *endpoint) Listen(ctx context.Context) (transport.Acceptor, error) {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", e.addr())
	if err != nil {
		return nil, transport.ListenFailedError.Error(err)
	}
	return &acceptor{ln: ln.(*net.TCPListener), onAccept: e.onAccept, ep: e}, nil
}

func (e *endpoint) String() string {
	return "tcp -h " + e.host + " -p " + strconv.Itoa(e.port)
}

func (e *endpoint) Equal(other transport.Endpoint) bool {
	o, ok := other.(*endpoint)
	return ok && o.host == e.host && o.port == e.port
}

func (e *endpoint) addr() string {
	return net.JoinHostPort(e.host, strconv.Itoa(e.port))
}

type acceptor struct {
	ln       *net.TCPListener
	onAccept AcceptUpdateFunc
	ep       *endpoint
}

func (a *acceptor) Accept(ctx context.Context) (transport.Transceiver, error) {
	type result struct {
		c   *net.TCPConn
		err error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := a.ln.AcceptTCP()
		ch <- result{c, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, transport.ConnectFailedError.Error(r.err)
		}
		if a.onAccept != nil {
			if err := a.onAccept(r.c); err != nil {
				_ = r.c.Close()
				return nil, transport.ConnectFailedError.Error(err)
			}
		}
		return newTransceiver(r.c), nil
	}
}

func (a *acceptor) Endpoint() transport.Endpoint {
	tcpAddr := a.ln.Addr().(*net.TCPAddr)
	return &endpoint{host: tcpAddr.IP.String(), port: tcpAddr.Port, onAccept: a.onAccept}
}

func (a *acceptor) Close() error {
	return a.ln.Close()
}

// Parse reads the "-h <host> -p <port> [-t <timeoutMs>]" option
// sequence following the "tcp" transport token, per spec §6's
// stringified-proxy grammar. Unrecognized options are ignored, the way
// each concrete Ice endpoint type only consumes the options it knows.
func Parse(tokens []string) (transport.Endpoint, error) {
	var host string
	port := -1
	timeout := time.Duration(0)

	for i := 0; i < len(tokens); i++ {
		switch tokens[i] {
		case "-h":
			i++
			if i >= len(tokens) {
				return nil, transport.EndpointParseError.Error(fmt.Errorf("tcp endpoint missing -h value"))
			}
			host = tokens[i]
		case "-p":
			i++
			if i >= len(tokens) {
				return nil, transport.EndpointParseError.Error(fmt.Errorf("tcp endpoint missing -p value"))
			}
			p, err := strconv.Atoi(tokens[i])
			if err != nil {
				return nil, transport.EndpointParseError.Error(fmt.Errorf("tcp endpoint -p: %w", err))
			}
			port = p
		case "-t":
			i++
			if i >= len(tokens) {
				return nil, transport.EndpointParseError.Error(fmt.Errorf("tcp endpoint missing -t value"))
			}
			ms, err := strconv.Atoi(tokens[i])
			if err != nil {
				return nil, transport.EndpointParseError.Error(fmt.Errorf("tcp endpoint -t: %w", err))
			}
			timeout = time.Duration(ms) * time.Millisecond
		}
	}

	if host == "" || port < 0 {
		return nil, transport.EndpointParseError.Error(fmt.Errorf("tcp endpoint requires -h and -p"))
	}
	return New(host, port, timeout, nil, nil), nil
}
