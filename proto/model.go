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
	"encoding/binary"

	"github.com/nabbar/rimecore/wire"
)

// Marshal writes h as its 14-byte wire form.
func (h Header) Marshal() [HeaderSize]byte {
	var out [HeaderSize]byte
	copy(out[0:4], magic[:])
	out[4] = h.Protocol.Major
	out[5] = h.Protocol.Minor
	out[6] = h.Encoding.Major
	out[7] = h.Encoding.Minor
	out[8] = byte(h.Type)
	out[9] = byte(h.Compression)
	binary.LittleEndian.PutUint32(out[10:14], uint32(h.Size))
	return out
}

// Unmarshal parses a Header from p, which must be at least HeaderSize
// bytes. It validates the magic marker, rejects a compressed body, and
// enforces messageSizeMax before the caller allocates anything
// proportional to the declared Size.
func Unmarshal(p []byte, messageSizeMax int) (Header, error) {
	var h Header
	if len(p) < HeaderSize {
		return h, TruncatedHeaderError.Errorf("need %d bytes, have %d", HeaderSize, len(p))
	}
	if p[0] != magic[0] || p[1] != magic[1] || p[2] != magic[2] || p[3] != magic[3] {
		return h, BadMagicError.Errorf("got %q", p[0:4])
	}

	h.Protocol = ProtocolVersion{Major: p[4], Minor: p[5]}
	if h.Protocol.Major != CurrentProtocol.Major {
		return h, UnsupportedProtocolError.Errorf("protocol %d.%d", h.Protocol.Major, h.Protocol.Minor)
	}

	h.Encoding.Major = p[6]
	h.Encoding.Minor = p[7]
	h.Type = MessageType(p[8])
	h.Compression = CompressionStatus(p[9])
	if h.Compression != CompressionNone {
		return h, UnsupportedCompressionError.Errorf("compression status %s", h.Compression)
	}

	h.Size = int32(binary.LittleEndian.Uint32(p[10:14]))
	if messageSizeMax > 0 && int(h.Size) > messageSizeMax {
		return h, MessageTooLargeError.Errorf("declared size %d exceeds limit %d", h.Size, messageSizeMax)
	}

	return h, nil
}

// NewHeader builds the header for an outgoing Request/BatchRequest/
// Reply/Heartbeat frame of the given total size.
func NewHeader(t MessageType, enc wire.EncodingVersion, size int32) Header {
	return Header{
		Protocol:    CurrentProtocol,
		Encoding:    enc,
		Type:        t,
		Compression: CompressionNone,
		Size:        size,
	}
}
