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

package transport

import (
	"fmt"

	liberr "github.com/nabbar/rimecore/rerr"
)

// Error codes for the transport package.
const (
	// EndpointParseError indicates a malformed proxy-style endpoint string.
	EndpointParseError liberr.CodeError = iota + liberr.MinPkgTransport

	// ConnectFailedError indicates Connect/dial could not reach the peer.
	ConnectFailedError

	// DatagramLimitError indicates a marshaled message exceeds a
	// datagram transport's MaxDatagramSize.
	DatagramLimitError

	// HandshakeError indicates a TLS or WebSocket handshake failure.
	HandshakeError

	// ListenFailedError indicates Listen could not bind the endpoint.
	ListenFailedError
)

func init() {
	if liberr.ExistInMapMessage(EndpointParseError) {
		panic(fmt.Errorf("error code collision with package transport"))
	}
	liberr.RegisterIdFctMessage(EndpointParseError, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case EndpointParseError:
		return "cannot parse endpoint string"
	case ConnectFailedError:
		return "connect failed"
	case DatagramLimitError:
		return "message exceeds maximum datagram size"
	case HandshakeError:
		return "transport handshake failed"
	case ListenFailedError:
		return "listen failed"
	}

	return liberr.NullMessage
}
