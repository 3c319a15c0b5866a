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
	"fmt"

	liberr "github.com/nabbar/rimecore/rerr"
)

const (
	NoEndpointsError liberr.CodeError = iota + liberr.MinPkgProxy
	AllEndpointsFailedError
	RetriesExhaustedError
	NoLocatorError
	NoConnectionError
	EnvelopeCorruptError
	ProxyParseError
)

func init() {
	if liberr.ExistInMapMessage(NoEndpointsError) {
		panic(fmt.Errorf("error code collision with package proxy"))
	}
	liberr.RegisterIdFctMessage(NoEndpointsError, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case NoEndpointsError:
		return "reference has no usable endpoints"
	case AllEndpointsFailedError:
		return "every candidate endpoint failed to connect"
	case RetriesExhaustedError:
		return "retry policy exhausted"
	case NoLocatorError:
		return "indirect reference has no locator configured"
	case NoConnectionError:
		return "no connection available for fixed reference"
	case EnvelopeCorruptError:
		return "request envelope could not be decoded"
	case ProxyParseError:
		return "malformed stringified proxy"
	}
	return liberr.NullMessage
}
