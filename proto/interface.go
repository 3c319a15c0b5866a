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

// Package proto implements the 14-byte message header every frame on a
// connection carries, ahead of its wire-encoded body.
package proto

import (
	"github.com/nabbar/rimecore/rlog/fields"
	"github.com/nabbar/rimecore/wire"
)

// HeaderSize is the fixed byte length of a message header.
const HeaderSize = 14

// magic is the 4-byte frame marker every header begins with.
var magic = [4]byte{'I', 'c', 'e', 'P'}

// MessageType discriminates the kind of frame a header introduces.
type MessageType uint8

const (
	MessageRequest MessageType = iota
	MessageBatchRequest
	MessageReply
	MessageValidateConnection
	MessageCloseConnection
	MessageHeartbeat
)

func (t MessageType) String() string {
	switch t {
	case MessageRequest:
		return "Request"
	case MessageBatchRequest:
		return "BatchRequest"
	case MessageReply:
		return "Reply"
	case MessageValidateConnection:
		return "ValidateConnection"
	case MessageCloseConnection:
		return "CloseConnection"
	case MessageHeartbeat:
		return "Heartbeat"
	default:
		return "Unknown"
	}
}

// CompressionStatus is the wire byte describing whether a message body is
// compressed. This module never compresses; Compressible/Compressed
// frames received from a peer are rejected cleanly rather than silently
// accepted and mishandled.
type CompressionStatus uint8

const (
	CompressionNone CompressionStatus = iota
	CompressionCompressible
	CompressionCompressed
)

func (c CompressionStatus) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionCompressible:
		return "Compressible"
	case CompressionCompressed:
		return "Compressed"
	default:
		return "Unknown"
	}
}

// ProtocolVersion is the (major, minor) pair of the framing protocol
// itself, distinct from the body's wire.EncodingVersion.
type ProtocolVersion struct {
	Major uint8
	Minor uint8
}

// CurrentProtocol is the only framing version this module writes.
var CurrentProtocol = ProtocolVersion{Major: 1, Minor: 0}

// Header is the fixed 14-byte preamble of every frame:
//
//	magic[4] | protocol-major | protocol-minor | encoding-major |
//	encoding-minor | message-type | compression-status | message-size[4]
type Header struct {
	Protocol    ProtocolVersion
	Encoding    wire.EncodingVersion
	Type        MessageType
	Compression CompressionStatus
	// Size is the total frame length, header included.
	Size int32
}

// LogFields renders h as structured fields for an rlog call site.
func (h Header) LogFields() []fields.Field {
	return []fields.Field{
		fields.String("message-type", h.Type.String()),
		fields.String("compression", h.Compression.String()),
		fields.Int("message-size", int(h.Size)),
	}
}
