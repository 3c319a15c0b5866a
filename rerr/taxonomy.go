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

package rerr

// This file partitions the error code space into the three disjoint kinds
// the dispatch pipeline distinguishes: failures that never leave the
// process (SystemCode), failures mapped to a reply-status byte on the wire
// (LocalCode), and application-declared exceptions carried inside a reply
// encapsulation (UserCode). Reply-status mapping lives on LocalCode via
// ReplyStatus(); SystemCode has none, by construction.

const taxonomyBase = MinAvailable + 10000

// LocalCode enumerates the transport/dispatch local exceptions: recoverable
// via retry for some, terminal for others, but always expressible as one of
// the eight reply-status bytes (or, client-side, re-raised locally without
// ever crossing the wire).
const (
	LocalConnectFailed CodeError = taxonomyBase + iota
	LocalConnectionLost
	LocalCloseConnectionReceived
	LocalTimeout
	LocalConnectionTimeout
	LocalObjectNotExist
	LocalFacetNotExist
	LocalOperationNotExist
	LocalObjectAdapterDeactivated
	LocalRetryError
	LocalInvocationCanceled
	LocalInvocationTimeout
)

// ReplyStatus is the single byte a Reply envelope carries identifying the
// outcome of a dispatched request.
type ReplyStatus uint8

const (
	ReplyOK ReplyStatus = iota
	ReplyUserException
	ReplyObjectNotExist
	ReplyFacetNotExist
	ReplyOperationNotExist
	ReplyUnknownLocalException
	ReplyUnknownUserException
	ReplyUnknownException
)

func (r ReplyStatus) String() string {
	switch r {
	case ReplyOK:
		return "OK"
	case ReplyUserException:
		return "UserException"
	case ReplyObjectNotExist:
		return "ObjectNotExist"
	case ReplyFacetNotExist:
		return "FacetNotExist"
	case ReplyOperationNotExist:
		return "OperationNotExist"
	case ReplyUnknownLocalException:
		return "UnknownLocalException"
	case ReplyUnknownUserException:
		return "UnknownUserException"
	case ReplyUnknownException:
		return "UnknownException"
	default:
		return "Unknown"
	}
}

// ReplyStatusFor maps a LocalCode to the reply-status byte a server sends
// for it; codes with no direct wire representation (ConnectFailed,
// ConnectionLost, Timeout, RetryError, InvocationCanceled,
// InvocationTimeout — all client-local, never dispatched by a server) map
// to ReplyUnknownLocalException as a safe fallback.
func ReplyStatusFor(c CodeError) ReplyStatus {
	switch c {
	case LocalObjectNotExist:
		return ReplyObjectNotExist
	case LocalFacetNotExist:
		return ReplyFacetNotExist
	case LocalOperationNotExist:
		return ReplyOperationNotExist
	default:
		return ReplyUnknownLocalException
	}
}

// Retryable reports whether c is, in isolation, a condition the retry
// queue should act on. Idempotency of the call still gates whether a
// retry is actually attempted (spec §4.6/§7).
func Retryable(c CodeError) bool {
	switch c {
	case LocalConnectFailed, LocalConnectionLost, LocalCloseConnectionReceived, LocalTimeout:
		return true
	default:
		return false
	}
}

// UserCode identifies the single reply-status used for every declared user
// exception; the concrete type is distinguished by the type-id string
// carried in the encapsulation, not by a distinct CodeError per exception.
const UserCode CodeError = taxonomyBase + 100

// SystemCode enumerates internal invariant violations: never transported,
// always logged at Fatal via rlog, and always abort the in-flight dispatch.
const (
	SystemInvariantViolation CodeError = taxonomyBase + 200 + iota
	SystemEncodingCorrupt
	SystemUnexpectedPanic
)

func init() {
	if ExistInMapMessage(LocalConnectFailed) {
		panic("error code collision in rerr taxonomy band")
	}
	RegisterIdFctMessage(LocalConnectFailed, taxonomyMessage)
}

func taxonomyMessage(code CodeError) string {
	switch code {
	case LocalConnectFailed:
		return "connection establishment failed"
	case LocalConnectionLost:
		return "connection lost"
	case LocalCloseConnectionReceived:
		return "peer sent CloseConnection"
	case LocalTimeout:
		return "invocation timed out"
	case LocalConnectionTimeout:
		return "connection I/O timed out"
	case LocalObjectNotExist:
		return "no servant for identity"
	case LocalFacetNotExist:
		return "no servant for facet"
	case LocalOperationNotExist:
		return "operation not found on servant"
	case LocalObjectAdapterDeactivated:
		return "object adapter is deactivated"
	case LocalRetryError:
		return "request rejected during connection closing; re-dispatch"
	case LocalInvocationCanceled:
		return "invocation canceled"
	case LocalInvocationTimeout:
		return "invocation timeout"
	case UserCode:
		return "declared user exception"
	case SystemInvariantViolation:
		return "internal invariant violation"
	case SystemEncodingCorrupt:
		return "encoding invariant violated"
	case SystemUnexpectedPanic:
		return "unexpected panic during dispatch"
	}
	return NullMessage
}
