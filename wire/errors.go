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

package wire

import (
	"fmt"

	liberr "github.com/nabbar/rimecore/rerr"
)

// Error codes for the wire package.
const (
	// MarshalError indicates that a value could not be written to an
	// OutputStream (unregistered factory, invalid tag ordering, negative
	// size, and similar writer-side invariant violations).
	MarshalError liberr.CodeError = iota + liberr.MinPkgWire

	// UnmarshalError indicates that an InputStream could not decode a
	// value: truncated buffer, malformed size prefix, invalid tag format,
	// or out-of-range enum.
	UnmarshalError

	// MemoryLimitError indicates that a declared or inferred allocation
	// would exceed Limits.MessageSizeMax or Limits.ClassGraphDepthMax.
	MemoryLimitError

	// UnsupportedEncodingError indicates an EncodingVersion this process
	// does not know how to read or write.
	UnsupportedEncodingError

	// InvalidTagOrderError indicates tagged members were written or read
	// out of ascending tag order.
	InvalidTagOrderError
)

func init() {
	if liberr.ExistInMapMessage(MarshalError) {
		panic(fmt.Errorf("error code collision with package wire"))
	}
	liberr.RegisterIdFctMessage(MarshalError, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case MarshalError:
		return "cannot marshal value to output stream"
	case UnmarshalError:
		return "cannot unmarshal value from input stream"
	case MemoryLimitError:
		return "declared size exceeds configured limit"
	case UnsupportedEncodingError:
		return "unsupported encoding version"
	case InvalidTagOrderError:
		return "tagged members out of ascending order"
	}

	return liberr.NullMessage
}
