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

// Package transport defines the Transceiver/Endpoint/Connector/Acceptor
// abstractions the connection and reactor layers drive, independent of
// any one concrete network kind.
package transport

import (
	"context"
	"net"
)

// Operation is the I/O readiness a Transceiver still needs before it can
// make progress, returned by Initialize/Closing so a reactor knows
// whether to keep watching for read-ready, write-ready, or neither.
type Operation uint8

const (
	// OperationNone means the transceiver needs no further I/O;
	// Initialize/Closing is complete.
	OperationNone Operation = iota
	OperationRead
	OperationWrite
)

// Transceiver is the per-connection I/O primitive the connection state
// machine drives. A Transceiver never blocks indefinitely: Read/Write
// operate against a deadline-bearing net.Conn and report
// OperationRead/OperationWrite via the connection's retry loop rather
// than via blocking internally.
type Transceiver interface {
	// Initialize drives the handshake (TCP connect completion, TLS
	// handshake, WS upgrade). readBuf/writeBuf are scratch space the
	// transceiver may use for handshake I/O. Returns OperationNone once
	// the handshake has completed.
	Initialize(readBuf, writeBuf []byte) (Operation, error)

	// Read fills p with newly available bytes, returning the count read.
	Read(p []byte) (int, error)

	// Write sends p, returning the count written.
	Write(p []byte) (int, error)

	// Closing begins graceful shutdown; initiator is true when this side
	// requested the close. Returns OperationNone once shutdown I/O (e.g.
	// TLS close_notify) has completed.
	Closing(initiator bool, err error) Operation

	// Close releases the underlying resource unconditionally.
	Close() error

	// Fd exposes the underlying file descriptor for reactor registration
	// and SO_RCVBUF/SO_SNDBUF diagnostics; returns ^uintptr(0) if none
	// exists (e.g. an in-process collocated transceiver).
	Fd() uintptr

	// LocalAddr/RemoteAddr describe the connection's two endpoints.
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// Endpoint is a parsed, immutable description of how to reach a
// connectable or listenable address: "tcp -h 127.0.0.1 -p 4061",
// "ssl -h host -p 4062", "ws -h host -p 80 -r /path", and so on, per the
// proxy string grammar.
type Endpoint interface {
	// Protocol names the transport kind ("tcp", "ssl", "udp", "ws",
	// "wss"), matching network.NetworkProtocol's String().
	Protocol() string

	// Timeout is the connect/handshake deadline Connect applies.
	Timeout() (hasTimeout bool, d int64)

	// Secure reports whether this endpoint requires transport
	// encryption (ssl/wss).
	Secure() bool

	// Connect dials the endpoint and returns an initialized Transceiver.
	Connect(ctx context.Context) (Transceiver, error)

	// Listen starts accepting connections for an adapter bound to this
	// endpoint.
	Listen(ctx context.Context) (Acceptor, error)

	// String renders the endpoint back to its proxy-string form.
	String() string

	// Equal reports whether other describes the same address.
	Equal(other Endpoint) bool
}

// Connector resolves an Endpoint description to zero or more concrete
// connectable endpoints (DNS can return multiple A/AAAA records).
type Connector interface {
	Connect(ctx context.Context) ([]Endpoint, error)
}

// Acceptor is a bound, listening transport waiting for inbound
// connections, driven by an ObjectAdapter.
type Acceptor interface {
	// Accept blocks until a new Transceiver is available or ctx is
	// canceled.
	Accept(ctx context.Context) (Transceiver, error)

	// Endpoint is the concrete bound address (port 0 resolved to the
	// OS-assigned port after Listen).
	Endpoint() Endpoint

	Close() error
}
