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

package connection_test

import (
	"context"
	"io"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/rimecore/connection"
	"github.com/nabbar/rimecore/duration"
	liberr "github.com/nabbar/rimecore/rerr"
	"github.com/nabbar/rimecore/rlog"
	"github.com/nabbar/rimecore/rlog/level"
	"github.com/nabbar/rimecore/transport"
	"github.com/nabbar/rimecore/wire"
)

// pipeTransceiver adapts a net.Conn (one end of a net.Pipe) to
// transport.Transceiver, the same way transport/tcp wraps a *net.TCPConn,
// so the state machine can be exercised without a real socket.
type pipeTransceiver struct {
	net.Conn
}

func (p pipeTransceiver) Initialize(_, _ []byte) (transport.Operation, error) {
	return transport.OperationNone, nil
}

func (p pipeTransceiver) Closing(_ bool, _ error) transport.Operation {
	return transport.OperationNone
}

func (p pipeTransceiver) Fd() uintptr { return 0 }

func newPair() (transport.Transceiver, transport.Transceiver) {
	a, b := net.Pipe()
	return pipeTransceiver{a}, pipeTransceiver{b}
}

func newTestFactory() connection.Factory {
	logger := rlog.New("connection-test", io.Discard, level.DebugLevel)
	return connection.NewFactory(func() rlog.Logger { return logger }, wire.Encoding1_1, wire.DefaultLimits, duration.Duration(50*time.Millisecond))
}

var _ = Describe("Factory/Connection", func() {
	var factory connection.Factory

	BeforeEach(func() {
		factory = newTestFactory()
	})

	AfterEach(func() {
		factory.Shutdown()
	})

	It("completes the validate handshake and reaches Active on both ends", func() {
		serverT, clientT := newPair()

		server := factory.New(serverT, true, connection.Info{Incoming: true, ConnectionId: "server"}, connection.ACM{})
		client := factory.New(clientT, false, connection.Info{Incoming: false, ConnectionId: "client"}, connection.ACM{})

		done := make(chan error, 2)
		go func() { done <- server.Start(context.Background()) }()
		go func() { done <- client.Start(context.Background()) }()

		Expect(<-done).To(Succeed())
		Expect(<-done).To(Succeed())

		Expect(server.State()).To(Equal(connection.StateActive))
		Expect(client.State()).To(Equal(connection.StateActive))
	})

	It("round-trips a two-way request through the dispatcher", func() {
		serverT, clientT := newPair()

		server := factory.New(serverT, true, connection.Info{Incoming: true, ConnectionId: "server"}, connection.ACM{})
		client := factory.New(clientT, false, connection.Info{Incoming: false, ConnectionId: "client"}, connection.ACM{})

		server.RegisterDispatcher(func(_ context.Context, _ int32, operation string, body []byte, _ wire.EncodingVersion) (liberr.ReplyStatus, []byte) {
			Expect(operation).To(Equal("ping"))
			return liberr.ReplyOK, append([]byte("pong:"), body...)
		})

		startErr := make(chan error, 2)
		go func() { startErr <- server.Start(context.Background()) }()
		go func() { startErr <- client.Start(context.Background()) }()
		Expect(<-startErr).To(Succeed())
		Expect(<-startErr).To(Succeed())

		reply := make(chan connection.OutgoingReply, 1)
		req := &connection.OutgoingRequest{Operation: "ping", Body: []byte("hello"), Reply: reply}
		Expect(client.SendRequest(req)).To(Succeed())

		var got connection.OutgoingReply
		Eventually(reply, time.Second).Should(Receive(&got))
		Expect(got.Status).To(Equal(liberr.ReplyOK))
		Expect(string(got.Body)).To(Equal("pong:hello"))
	})

	It("does not wait for a reply on a one-way request", func() {
		serverT, clientT := newPair()

		dispatched := make(chan struct{}, 1)
		server := factory.New(serverT, true, connection.Info{Incoming: true, ConnectionId: "server"}, connection.ACM{})
		client := factory.New(clientT, false, connection.Info{Incoming: false, ConnectionId: "client"}, connection.ACM{})

		server.RegisterDispatcher(func(_ context.Context, _ int32, _ string, _ []byte, _ wire.EncodingVersion) (liberr.ReplyStatus, []byte) {
			dispatched <- struct{}{}
			return liberr.ReplyOK, nil
		})

		startErr := make(chan error, 2)
		go func() { startErr <- server.Start(context.Background()) }()
		go func() { startErr <- client.Start(context.Background()) }()
		Expect(<-startErr).To(Succeed())
		Expect(<-startErr).To(Succeed())

		req := &connection.OutgoingRequest{Operation: "notify", OneWay: true, Reply: make(chan connection.OutgoingReply, 1)}
		Expect(client.SendRequest(req)).To(Succeed())

		Eventually(dispatched, time.Second).Should(Receive())
	})

	It("rejects SendRequest before the connection is active", func() {
		serverT, _ := newPair()
		server := factory.New(serverT, true, connection.Info{ConnectionId: "server"}, connection.ACM{})

		req := &connection.OutgoingRequest{Operation: "ping", Reply: make(chan connection.OutgoingReply, 1)}
		Expect(server.SendRequest(req)).To(HaveOccurred())
	})

	It("assigns disjoint request-id sequences by direction", func() {
		serverT, clientT := newPair()
		server := factory.New(serverT, true, connection.Info{ConnectionId: "server"}, connection.ACM{})
		client := factory.New(clientT, false, connection.Info{ConnectionId: "client"}, connection.ACM{})

		server.RegisterDispatcher(func(_ context.Context, _ int32, _ string, _ []byte, _ wire.EncodingVersion) (liberr.ReplyStatus, []byte) {
			return liberr.ReplyOK, nil
		})
		client.RegisterDispatcher(func(_ context.Context, _ int32, _ string, _ []byte, _ wire.EncodingVersion) (liberr.ReplyStatus, []byte) {
			return liberr.ReplyOK, nil
		})

		startErr := make(chan error, 2)
		go func() { startErr <- server.Start(context.Background()) }()
		go func() { startErr <- client.Start(context.Background()) }()
		Expect(<-startErr).To(Succeed())
		Expect(<-startErr).To(Succeed())

		clientReq := &connection.OutgoingRequest{Operation: "a", Reply: make(chan connection.OutgoingReply, 1)}
		Expect(client.SendRequest(clientReq)).To(Succeed())
		Expect(clientReq.RequestId).To(BeNumerically(">", 0))

		serverReq := &connection.OutgoingRequest{Operation: "b", Reply: make(chan connection.OutgoingReply, 1)}
		Expect(server.SendRequest(serverReq)).To(Succeed())
		Expect(serverReq.RequestId).To(BeNumerically("<", 0))
	})

	It("closes both ends on an initiator-driven CloseConnection exchange", func() {
		serverT, clientT := newPair()
		server := factory.New(serverT, true, connection.Info{ConnectionId: "server"}, connection.ACM{})
		client := factory.New(clientT, false, connection.Info{ConnectionId: "client"}, connection.ACM{})

		startErr := make(chan error, 2)
		go func() { startErr <- server.Start(context.Background()) }()
		go func() { startErr <- client.Start(context.Background()) }()
		Expect(<-startErr).To(Succeed())
		Expect(<-startErr).To(Succeed())

		Expect(client.Close(true, connection.CloseForcefully, nil)).To(Succeed())
		Expect(client.State()).To(Equal(connection.StateFinished))

		Eventually(server.State, time.Second).Should(Equal(connection.StateFinished))
	})

	It("force-closes an idle connection under CloseOnIdleForceful ACM", func() {
		serverT, clientT := newPair()
		acm := connection.ACM{Timeout: duration.Duration(20 * time.Millisecond), Close: connection.CloseOnIdleForceful}

		server := factory.New(serverT, true, connection.Info{ConnectionId: "server"}, acm)
		client := factory.New(clientT, false, connection.Info{ConnectionId: "client"}, connection.ACM{})

		startErr := make(chan error, 2)
		go func() { startErr <- server.Start(context.Background()) }()
		go func() { startErr <- client.Start(context.Background()) }()
		Expect(<-startErr).To(Succeed())
		Expect(<-startErr).To(Succeed())

		Eventually(server.State, time.Second).Should(Equal(connection.StateFinished))
	})

	It("queues batch requests and only dispatches them on FlushBatchRequests", func() {
		serverT, clientT := newPair()
		server := factory.New(serverT, true, connection.Info{ConnectionId: "server"}, connection.ACM{})
		client := factory.New(clientT, false, connection.Info{ConnectionId: "client"}, connection.ACM{})

		received := make(chan string, 3)
		server.RegisterDispatcher(func(_ context.Context, requestId int32, operation string, _ []byte, _ wire.EncodingVersion) (liberr.ReplyStatus, []byte) {
			Expect(requestId).To(Equal(int32(0)))
			received <- operation
			return liberr.ReplyOK, nil
		})

		startErr := make(chan error, 2)
		go func() { startErr <- server.Start(context.Background()) }()
		go func() { startErr <- client.Start(context.Background()) }()
		Expect(<-startErr).To(Succeed())
		Expect(<-startErr).To(Succeed())

		Expect(client.QueueBatchRequest("one", []byte("a"))).To(Succeed())
		Expect(client.QueueBatchRequest("two", []byte("b"))).To(Succeed())
		Consistently(received, 100*time.Millisecond).ShouldNot(Receive())

		Expect(client.FlushBatchRequests()).To(Succeed())

		var op1, op2 string
		Eventually(received, time.Second).Should(Receive(&op1))
		Eventually(received, time.Second).Should(Receive(&op2))
		Expect([]string{op1, op2}).To(ConsistOf("one", "two"))
	})

	It("auto-flushes the batch buffer past BatchAutoFlushSize", func() {
		serverT, clientT := newPair()
		acm := connection.ACM{BatchAutoFlushSize: 16}
		server := factory.New(serverT, true, connection.Info{ConnectionId: "server"}, connection.ACM{})
		client := factory.New(clientT, false, connection.Info{ConnectionId: "client"}, acm)

		received := make(chan string, 8)
		server.RegisterDispatcher(func(_ context.Context, _ int32, operation string, _ []byte, _ wire.EncodingVersion) (liberr.ReplyStatus, []byte) {
			received <- operation
			return liberr.ReplyOK, nil
		})

		startErr := make(chan error, 2)
		go func() { startErr <- server.Start(context.Background()) }()
		go func() { startErr <- client.Start(context.Background()) }()
		Expect(<-startErr).To(Succeed())
		Expect(<-startErr).To(Succeed())

		for i := 0; i < 5; i++ {
			Expect(client.QueueBatchRequest("op", []byte("payload"))).To(Succeed())
		}

		Eventually(received, time.Second).Should(Receive())
	})

	It("blocks GracefullyWithWait until a pending invocation's reply arrives, surfacing no ConnectionLost", func() {
		serverT, clientT := newPair()
		server := factory.New(serverT, true, connection.Info{ConnectionId: "server"}, connection.ACM{})
		client := factory.New(clientT, false, connection.Info{ConnectionId: "client"}, connection.ACM{})

		release := make(chan struct{})
		server.RegisterDispatcher(func(_ context.Context, _ int32, _ string, body []byte, _ wire.EncodingVersion) (liberr.ReplyStatus, []byte) {
			<-release
			return liberr.ReplyOK, body
		})

		startErr := make(chan error, 2)
		go func() { startErr <- server.Start(context.Background()) }()
		go func() { startErr <- client.Start(context.Background()) }()
		Expect(<-startErr).To(Succeed())
		Expect(<-startErr).To(Succeed())

		reply := make(chan connection.OutgoingReply, 1)
		req := &connection.OutgoingRequest{Operation: "slow", Body: []byte("payload"), Reply: reply}
		Expect(client.SendRequest(req)).To(Succeed())

		closeDone := make(chan error, 1)
		go func() { closeDone <- client.Close(true, connection.CloseGracefullyWithWait, nil) }()

		Consistently(closeDone, 100*time.Millisecond).ShouldNot(Receive())
		close(release)

		Eventually(closeDone, time.Second).Should(Receive(Succeed()))

		var got connection.OutgoingReply
		Eventually(reply, time.Second).Should(Receive(&got))
		Expect(got.Err).To(BeNil())
		Expect(got.Status).To(Equal(liberr.ReplyOK))
	})
})
