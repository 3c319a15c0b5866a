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

package proxy

import (
	"context"

	"github.com/nabbar/rimecore/connection"
	liberr "github.com/nabbar/rimecore/rerr"
)

// connectionHandler is the ConnectionRequestHandler of spec §4.6: a
// reference with a connection already cached on it forwards every
// invocation directly, with no endpoint selection or retry bookkeeping
// of its own.
type connectionHandler struct {
	conn connection.Connection
}

// NewConnectionRequestHandler wraps an already-established connection
// as a RequestHandler.
func NewConnectionRequestHandler(conn connection.Connection) RequestHandler {
	return &connectionHandler{conn: conn}
}

func (h *connectionHandler) Invoke(ctx context.Context, identity Identity, facet, operation string, mode Mode, body []byte) (liberr.ReplyStatus, []byte, error) {
	if h.conn.State() != connection.StateActive {
		return liberr.ReplyUnknownLocalException, nil, liberr.LocalRetryError.Error()
	}

	envelope := EncodeEnvelope(identity, facet, mode, nil, body)

	if mode.IsBatch() {
		if err := h.conn.QueueBatchRequest(operation, envelope); err != nil {
			return liberr.ReplyUnknownLocalException, nil, err
		}
		return liberr.ReplyOK, nil, nil
	}

	req := &connection.OutgoingRequest{
		Operation: operation,
		Body:      envelope,
		OneWay:    mode.IsOneWay(),
		Reply:     make(chan connection.OutgoingReply, 1),
	}
	if err := h.conn.SendRequest(req); err != nil {
		return liberr.ReplyUnknownLocalException, nil, err
	}
	if req.OneWay {
		return liberr.ReplyOK, nil, nil
	}

	select {
	case <-ctx.Done():
		return liberr.ReplyUnknownLocalException, nil, liberr.LocalInvocationTimeout.Error(ctx.Err())
	case reply := <-req.Reply:
		return reply.Status, reply.Body, reply.Err
	}
}

// FlushBatchRequests sends the connection's batch buffer as one
// BatchRequest frame.
func (h *connectionHandler) FlushBatchRequests(_ context.Context) error {
	return h.conn.FlushBatchRequests()
}
