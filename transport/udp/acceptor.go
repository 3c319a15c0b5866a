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

package udp

import (
	"context"
	"net"
	"sync"

	"github.com/nabbar/rimecore/transport"
)

// peerTransceiver is the per-source-address view of a shared UDP
// socket: Read drains the demultiplexed inbound queue for this peer,
// Write sends back to that one peer address.
type peerTransceiver struct {
	conn        *net.UDPConn
	raddr       *net.UDPAddr
	maxDatagram int
	inbox       chan []byte
	closeOnce   sync.Once
	closed      chan struct{}
}

func (p *peerTransceiver) Initialize(_, _ []byte) (transport.Operation, error) {
	return transport.OperationNone, nil
}

func (p *peerTransceiver) Read(buf []byte) (int, error) {
	select {
	case b, ok := <-p.inbox:
		if !ok {
			return 0, net.ErrClosed
		}
		return copy(buf, b), nil
	case <-p.closed:
		return 0, net.ErrClosed
	}
}

func (p *peerTransceiver) Write(buf []byte) (int, error) {
	if len(buf) > p.maxDatagram {
		return 0, transport.DatagramLimitError.Error()
	}
	return p.conn.WriteToUDP(buf, p.raddr)
}

func (p *peerTransceiver) Closing(_ bool, _ error) transport.Operation {
	return transport.OperationNone
}

func (p *peerTransceiver) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *peerTransceiver) Fd() uintptr {
	return fd(p.conn)
}

func (p *peerTransceiver) LocalAddr() net.Addr  { return p.conn.LocalAddr() }
func (p *peerTransceiver) RemoteAddr() net.Addr { return p.raddr }

// acceptor demultiplexes one shared listening UDP socket into one
// peerTransceiver per distinct source address, reading datagrams on a
// single background goroutine since only one goroutine may call
// ReadFromUDP on a given socket at a time.
type acceptor struct {
	conn        *net.UDPConn
	maxDatagram int
	ep          *endpoint

	mu       sync.Mutex
	peers    map[string]chan []byte
	accepted chan *peerTransceiver

	pumpOnce sync.Once
	closed   chan struct{}
}

func (a *acceptor) startPump() {
	a.pumpOnce.Do(func() {
		a.closed = make(chan struct{})
		go a.pump()
	})
}

func (a *acceptor) pump() {
	buf := make([]byte, DefaultMaxDatagramSize)
	for {
		n, raddr, err := a.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		body := make([]byte, n)
		copy(body, buf[:n])

		a.mu.Lock()
		inbox, known := a.peers[raddr.String()]
		if !known {
			inbox = make(chan []byte, 64)
			a.peers[raddr.String()] = inbox
			pt := &peerTransceiver{
				conn:        a.conn,
				raddr:       raddr,
				maxDatagram: a.maxDatagram,
				inbox:       inbox,
				closed:      make(chan struct{}),
			}
			select {
			case a.accepted <- pt:
			default:
			}
		}
		a.mu.Unlock()

		select {
		case inbox <- body:
		default:
		}
	}
}

func (a *acceptor) Accept(ctx context.Context) (transport.Transceiver, error) {
	a.startPump()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case pt := <-a.accepted:
		return pt, nil
	}
}

func (a *acceptor) Endpoint() transport.Endpoint {
	udpAddr := a.conn.LocalAddr().(*net.UDPAddr)
	return &endpoint{host: udpAddr.IP.String(), port: udpAddr.Port, maxDatagram: a.maxDatagram}
}

func (a *acceptor) Close() error {
	return a.conn.Close()
}
