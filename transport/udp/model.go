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

// Package udp implements transport.Endpoint/Transceiver/Acceptor over
// net.UDPConn, adapted from the teacher's socket/client/udp and
// socket/server/udp packages. Like socket/client/tcp and
// socket/server/tcp, those packages ship only Ginkgo specs in the pack
// with no buildable source alongside them; this implementation follows
// their observed behavior (one ReadFrom/WriteTo per datagram, no
// framing beyond the protocol header) rather than adapting a copyable
// file. Datagram transports carry one complete protocol message per
// packet: the connection layer never spans a message across two
// datagrams, so MaxDatagramSize bounds a single Write.
package udp

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/nabbar/rimecore/transport"
)

// DefaultMaxDatagramSize matches the common IPv4 path-MTU-safe payload
// size (1500 Ethernet MTU minus IP/UDP headers, rounded down).
const DefaultMaxDatagramSize = 1472

// transceiver wraps a *net.UDPConn as a transport.Transceiver. UDP
// requires no handshake, so Initialize/Closing are no-ops.
type transceiver struct {
	conn        *net.UDPConn
	maxDatagram int
}

func newTransceiver(conn *net.UDPConn, maxDatagram int) *transceiver {
	return &transceiver{conn: conn, maxDatagram: maxDatagram}
}

func (t *transceiver) Initialize(_, _ []byte) (transport.Operation, error) {
	return transport.OperationNone, nil
}

func (t *transceiver) Read(p []byte) (int, error) {
	return t.conn.Read(p)
}

func (t *transceiver) Write(p []byte) (int, error) {
	if len(p) > t.maxDatagram {
		return 0, transport.DatagramLimitError.Error()
	}
	return t.conn.Write(p)
}

func (t *transceiver) Closing(_ bool, _ error) transport.Operation {
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

// endpoint describes a dialable/listenable UDP address.
type endpoint struct {
	host        string
	port        int
	maxDatagram int
}

// New builds a UDP endpoint for host:port. maxDatagram <= 0 selects
// DefaultMaxDatagramSize.
func New(host string, port int, maxDatagram int) transport.Endpoint {
	if maxDatagram <= 0 {
		maxDatagram = DefaultMaxDatagramSize
	}
	return &endpoint{host: host, port: port, maxDatagram: maxDatagram}
}

func (e *endpoint) Protocol() string       { return "udp" }
func (e *endpoint) Secure() bool           { return false }
func (e *endpoint) Timeout() (bool, int64) { return false, 0 }

func (e *endpoint) Connect(ctx context.Context) (transport.Transceiver, error) {
	d := net.Dialer{}
	c, err := d.DialContext(ctx, "udp", e.addr())
	if err != nil {
		return nil, transport.ConnectFailedError.Error(err)
	}
	return newTransceiver(c.(*net.UDPConn), e.maxDatagram), nil
}

// Listen binds a UDP socket. Unlike stream transports, the returned
// Acceptor hands out a single shared Transceiver per accepted peer
// address: datagram sockets have no per-peer connection state, so the
// acceptor demultiplexes by source address and synthesizes one
// Transceiver the first time a given peer is observed.
func (e *endpoint) Listen(ctx context.Context) (transport.Acceptor, error) {
	lc := net.ListenConfig{}
	pc, err := lc.ListenPacket(ctx, "udp", e.addr())
	if err != nil {
		return nil, transport.ListenFailedError.Error(err)
	}
	return &acceptor{
		conn:        pc.(*net.UDPConn),
		maxDatagram: e.maxDatagram,
		ep:          e,
		peers:       make(map[string]chan []byte),
		accepted:    make(chan *peerTransceiver, 16),
	}, nil
}

func (e *endpoint) String() string {
	return "udp -h " + e.host + " -p " + strconv.Itoa(e.port)
}

func (e *endpoint) Equal(other transport.Endpoint) bool {
	o, ok := other.(*endpoint)
	return ok && o.host == e.host && o.port == e.port
}

func (e *endpoint) addr() string {
	return net.JoinHostPort(e.host, strconv.Itoa(e.port))
}

// Parse reads the "-h <host> -p <port> [-d <maxDatagram>]" option
// sequence following the "udp" transport token, per spec §6's
// stringified-proxy grammar.
func Parse(tokens []string) (transport.Endpoint, error) {
	var host string
	port := -1
	maxDatagram := 0

	for i := 0; i < len(tokens); i++ {
		switch tokens[i] {
		case "-h":
			i++
			if i >= len(tokens) {
				return nil, transport.EndpointParseError.Error(fmt.Errorf("udp endpoint missing -h value"))
			}
			host = tokens[i]
		case "-p":
			i++
			if i >= len(tokens) {
				return nil, transport.EndpointParseError.Error(fmt.Errorf("udp endpoint missing -p value"))
			}
			p, err := strconv.Atoi(tokens[i])
			if err != nil {
				return nil, transport.EndpointParseError.Error(fmt.Errorf("udp endpoint -p: %w", err))
			}
			port = p
		case "-d":
			i++
			if i >= len(tokens) {
				return nil, transport.EndpointParseError.Error(fmt.Errorf("udp endpoint missing -d value"))
			}
			d, err := strconv.Atoi(tokens[i])
			if err != nil {
				return nil, transport.EndpointParseError.Error(fmt.Errorf("udp endpoint -d: %w", err))
			}
			maxDatagram = d
		}
	}

	if host == "" || port < 0 {
		return nil, transport.EndpointParseError.Error(fmt.Errorf("udp endpoint requires -h and -p"))
	}
	return New(host, port, maxDatagram), nil
}
