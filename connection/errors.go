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

package connection

import (
	"fmt"

	liberr "github.com/nabbar/rimecore/rerr"
)

// Error codes for the connection package.
const (
	// NotActiveError indicates a send was attempted on a connection not
	// in StateActive.
	NotActiveError liberr.CodeError = iota + liberr.MinPkgConnection

	// SendQueueClosedError indicates the connection's send loop has
	// already exited.
	SendQueueClosedError

	// ValidationFailedError indicates the ValidateConnection exchange
	// did not complete.
	ValidationFailedError

	// UnexpectedReplyError indicates a Reply frame arrived for a
	// request id this connection has no pending invocation for.
	UnexpectedReplyError
)

func init() {
	if liberr.ExistInMapMessage(NotActiveError) {
		panic(fmt.Errorf("error code collision with package connection"))
	}
	liberr.RegisterIdFctMessage(NotActiveError, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case NotActiveError:
		return "connection is not active"
	case SendQueueClosedError:
		return "connection send loop has stopped"
	case ValidationFailedError:
		return "connection validation failed"
	case UnexpectedReplyError:
		return "reply for unknown request id"
	}

	return liberr.NullMessage
}
