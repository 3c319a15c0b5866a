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

// Package unix implements transport.Endpoint/Transceiver/Acceptor over
// net.UnixConn stream sockets, the local-machine transport an
// ObjectAdapter uses for a collocated-adapter optimization (spec §4.3's
// "collocation optimization"): same-process proxies still speak the
// wire protocol, just over a loopback-local socket instead of TCP,
// grounded on the same socket/client+server shape transport/tcp follows
// since the teacher's socket/client/unix and socket/server/unix
// packages are, like socket/tcp, test-only in the pack.
package unix

import (
	"context"
	"net"
	"os"

	"github.com/nabbar/rimecore/transport"
)

type transceiver struct {
	conn *net.UnixConn
}

func (t *transceiver) Initialize(_, _ []byte) (transport.Operation, error) {
	return transport.OperationNone, nil
}

func (t *transceiver) Read(p []byte) (int, error)  { return t.conn.Read(p) }
func (t *transceiver) Write(p []byte) (int, error) { return t.conn.Write(p) }

func (t *transceiver) Closing(_ bool, _ error) transport.Operation {
	return transport.OperationNone
}

func (t *transceiver) Close() error { return t.conn.Close() }

func (t *transceiver) Fd() uintptr {
	raw, err := t.conn.SyscallConn()
	if err != nil {
		return ^uintptr(0)
	}
	var out uintptr
	_ = raw.Control(func(f uintptr) { out = f })
	return out
}

func (t *transceiver) LocalAddr() net.Addr  { return t.conn.LocalAddr() }
func (t *transceiver) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

type endpoint struct {
	path string
}

// New builds a unix-domain-socket endpoint bound at path.
func New(path string) transport.Endpoint {
	return &endpoint{path: path}
}

func (e *endpoint) Protocol() string       { return "unix" }
func (e *endpoint) Secure() bool           { return false }
func (e *endpoint) Timeout() (bool, int64) { return false, 0 }
func (e *endpoint) String() string         { return "unix -f " + e.path }

func (e *endpoint) Equal(other transport.Endpoint) bool {
	o, ok := other.(*endpoint)
	return ok && o.path == e.path
}

func (e *endpoint) Connect(ctx context.Context) (transport.Transceiver, error) {
	d := net.Dialer{}
	c, err := d.DialContext(ctx, "unix", e.path)
	if err != nil {
		return nil, transport.ConnectFailedError.Error(err)
	}
	return &transceiver{conn: c.(*net.UnixConn)}, nil
}

func (e *endpoint) Listen(ctx context.Context) (transport.Acceptor, error) {
	_ = os.Remove(e.path)
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "unix", e.path)
	if err != nil {
		return nil, transport.ListenFailedError.Error(err)
	}
	return &acceptor{ln: ln.(*net.UnixListener), path: e.path}, nil
}

type acceptor struct {
	ln   *net.UnixListener
	path string
}

func (a *acceptor) Accept(ctx context.Context) (transport.Transceiver, error) {
	type result struct {
		c   *net.UnixConn
		err error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := a.ln.AcceptUnix()
		ch <- result{c, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, transport.ConnectFailedError.Error(r.err)
		}
		return &transceiver{conn: r.c}, nil
	}
}

func (a *acceptor) Endpoint() transport.Endpoint { return &endpoint{path: a.path} }
func (a *acceptor) Close() error {
	err := a.ln.Close()
	_ = os.Remove(a.path)
	return err
}
