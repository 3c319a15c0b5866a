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

	liberr "github.com/nabbar/rimecore/rerr"
)

// collocatedRequestHandler dispatches in-process when the target
// adapter lives in the same communicator, skipping the transceiver
// entirely while still flowing through the same marshaled body the
// wire would have carried (spec §4.6: "It still flows through the
// OutputStream/InputStream to preserve identical marshaling semantics").
// Marshaling itself happens in the caller (proxy.Proxy[T].Invoke); this
// handler only owns the in-process routing decision.
type collocatedRequestHandler struct {
	dispatcher LocalDispatcher
}

// NewCollocatedRequestHandler wraps a LocalDispatcher (an
// adapter.ObjectAdapter) as a RequestHandler for same-process targets.
func NewCollocatedRequestHandler(dispatcher LocalDispatcher) RequestHandler {
	return &collocatedRequestHandler{dispatcher: dispatcher}
}

func (h *collocatedRequestHandler) Invoke(ctx context.Context, identity Identity, facet, operation string, mode Mode, body []byte) (liberr.ReplyStatus, []byte, error) {
	status, reply, err := h.dispatcher.DispatchLocal(ctx, identity, facet, operation, body)
	if mode.IsOneWay() {
		return liberr.ReplyOK, nil, nil
	}
	return status, reply, err
}

// FlushBatchRequests is a no-op: collocation disables batching (spec
// §4.6), so nothing is ever queued on this handler.
func (h *collocatedRequestHandler) FlushBatchRequests(_ context.Context) error {
	return nil
}
