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

// Package connection implements the per-peer state machine: framing
// requests/replies over a transport.Transceiver, Active Connection
// Management (ACM), flow control, and bidirectional request/reply
// demultiplexing.
package connection

import (
	"context"

	"github.com/nabbar/rimecore/duration"
	liberr "github.com/nabbar/rimecore/rerr"
	"github.com/nabbar/rimecore/rlog/fields"
	"github.com/nabbar/rimecore/transport"
	"github.com/nabbar/rimecore/wire"
)

// State is a connection's position in its lifecycle state machine.
type State uint8

const (
	StateNotInitialized State = iota
	StateNotValidated
	StateActive
	StateClosing
	StateClosingPending
	StateClosed
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateNotInitialized:
		return "NotInitialized"
	case StateNotValidated:
		return "NotValidated"
	case StateActive:
		return "Active"
	case StateClosing:
		return "Closing"
	case StateClosingPending:
		return "ClosingPending"
	case StateClosed:
		return "Closed"
	case StateFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// ClosePolicy selects when ACM proactively closes an idle connection.
type ClosePolicy uint8

const (
	CloseOff ClosePolicy = iota
	CloseOnIdle
	CloseOnInvocation
	CloseOnInvocationAndIdle
	CloseOnIdleForceful
)

// HeartbeatPolicy selects when ACM sends a Heartbeat frame to keep a
// connection from being considered idle by the peer.
type HeartbeatPolicy uint8

const (
	HeartbeatOff HeartbeatPolicy = iota
	HeartbeatOnDispatch
	HeartbeatOnIdle
	HeartbeatAlways
)

// ACM bundles the Active Connection Management knobs for one connection.
type ACM struct {
	Timeout   duration.Duration
	Close     ClosePolicy
	Heartbeat HeartbeatPolicy

	// BatchAutoFlushSize is the byte threshold past which QueueBatchRequest
	// auto-flushes the batch buffer instead of waiting for an explicit
	// FlushBatchRequests call. Zero disables auto-flush.
	BatchAutoFlushSize int
}

// CloseMode selects how Close tears down a connection: how much it waits
// for in-flight work before transitioning to Closed.
type CloseMode uint8

const (
	// CloseForcefully transitions straight to Closed, failing every
	// pending invocation with ConnectionLost.
	CloseForcefully CloseMode = iota
	// CloseGracefully sends the CloseConnection exchange (if initiator)
	// and lets in-flight server-side dispatches finish before tearing
	// down, but does not wait for this side's own pending invocations.
	CloseGracefully
	// CloseGracefullyWithWait additionally blocks the initiator until
	// every locally pending invocation on this connection has received
	// its reply, so none of them surface ConnectionLost.
	CloseGracefullyWithWait
)

func (m CloseMode) String() string {
	switch m {
	case CloseForcefully:
		return "Forcefully"
	case CloseGracefully:
		return "Gracefully"
	case CloseGracefullyWithWait:
		return "GracefullyWithWait"
	default:
		return "Unknown"
	}
}

// Event is a structured connection lifecycle event logged via rlog,
// mirroring the teacher's socket package's accept/read/write/close
// event logging shape.
type Event uint8

const (
	EventConnected Event = iota
	EventValidated
	EventClosing
	EventClosed
	EventHeartbeat
)

func (e Event) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventValidated:
		return "validated"
	case EventClosing:
		return "closing"
	case EventClosed:
		return "closed"
	case EventHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Info describes a connection's two endpoints and, for a secure
// transport, the peer's verified certificate chain.
type Info struct {
	Incoming        bool
	LocalAddress    string
	RemoteAddress   string
	AdapterName     string
	ConnectionId    string
	PeerCertDigests []string
}

// LogFields renders i as structured fields for an rlog call site.
func (i Info) LogFields() []fields.Field {
	return []fields.Field{
		fields.String("connection-id", i.ConnectionId),
		fields.String("local-address", i.LocalAddress),
		fields.String("remote-address", i.RemoteAddress),
		fields.Bool("incoming", i.Incoming),
	}
}

// OutgoingRequest is a caller-supplied encoded invocation body awaiting
// dispatch over the wire, keyed by a locally-assigned request id.
type OutgoingRequest struct {
	RequestId int32
	Operation string
	Body      []byte
	OneWay    bool
	// Reply receives the decoded reply body, or err if the invocation
	// failed locally (timeout, connection lost) before or without ever
	// producing a reply.
	Reply chan OutgoingReply
}

// OutgoingReply is what an OutgoingRequest's Reply channel carries.
type OutgoingReply struct {
	Status liberr.ReplyStatus
	Body   []byte
	Err    error
}

// Connection is the state-machine-driven, bidirectional message pump
// over one transport.Transceiver.
type Connection interface {
	Info() Info
	State() State

	// Start begins the connect/accept handshake (ValidateConnection
	// exchange) and the read/write pumps. Returns once the connection
	// reaches StateActive or fails.
	Start(ctx context.Context) error

	// SendRequest enqueues req for transmission, assigning it the next
	// outgoing request id unless req.OneWay.
	SendRequest(req *OutgoingRequest) error

	// QueueBatchRequest appends one oneway invocation to the per-connection
	// batch buffer instead of sending it immediately, auto-flushing first
	// if appending would overflow ACM.BatchAutoFlushSize.
	QueueBatchRequest(operation string, body []byte) error

	// FlushBatchRequests atomically swaps the batch buffer onto the wire
	// as one BatchRequest frame. A no-op if the buffer is empty.
	FlushBatchRequests() error

	// Close tears down the connection per mode (see CloseMode); initiator
	// distinguishes the side that requested the close from the side
	// reacting to a CloseConnection already received.
	Close(initiator bool, mode CloseMode, err error) error

	// RegisterDispatcher installs the callback invoked for each decoded
	// inbound Request/BatchRequest frame.
	RegisterDispatcher(fn DispatchFunc)
}

// DispatchFunc handles one decoded inbound request, returning the reply
// status and body to send back (ignored for one-way requests).
type DispatchFunc func(ctx context.Context, requestId int32, operation string, body []byte, enc wire.EncodingVersion) (liberr.ReplyStatus, []byte)

// Factory creates and ACM-monitors Connections sharing one set of
// defaults, the way the teacher's monitor/pool package runs one
// goroutine sweeping many independent checks instead of one timer per
// check.
type Factory interface {
	New(t transport.Transceiver, incoming bool, info Info, acm ACM) Connection

	// Shutdown stops the ACM sweep goroutine and closes every
	// connection it still tracks.
	Shutdown()
}
