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

package proto

import (
	"fmt"

	liberr "github.com/nabbar/rimecore/rerr"
)

// Error codes for the proto package.
const (
	// BadMagicError indicates a header whose first 4 bytes are not "IceP".
	BadMagicError liberr.CodeError = iota + liberr.MinPkgProto

	// UnsupportedProtocolError indicates a protocol-version major this
	// process cannot speak.
	UnsupportedProtocolError

	// UnsupportedCompressionError indicates a peer declared a
	// Compressible or Compressed body; this module never compresses.
	UnsupportedCompressionError

	// TruncatedHeaderError indicates fewer than HeaderSize bytes were
	// available to parse.
	TruncatedHeaderError

	// MessageTooLargeError indicates a header's declared Size exceeds
	// the connection's configured message-size limit.
	MessageTooLargeError
)

func init() {
	if liberr.ExistInMapMessage(BadMagicError) {
		panic(fmt.Errorf("error code collision with package proto"))
	}
	liberr.RegisterIdFctMessage(BadMagicError, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case BadMagicError:
		return "invalid frame magic"
	case UnsupportedProtocolError:
		return "unsupported protocol version"
	case UnsupportedCompressionError:
		return "compressed frames are not supported"
	case TruncatedHeaderError:
		return "truncated message header"
	case MessageTooLargeError:
		return "message size exceeds configured limit"
	}

	return liberr.NullMessage
}
