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
	"github.com/nabbar/rimecore/wire"
)

// connection.OutgoingRequest only carries an operation name and a body:
// the connection state machine frames requests generically and has no
// notion of identity, facet or per-invocation context. Those fields of
// the request envelope (identity, facet-path, operation name, mode,
// context map, encapsulation) live one layer up, so connectionHandler
// packs them ahead of the caller's encapsulation bytes here, and the
// dispatch function an ObjectAdapter registers on the connection
// unpacks them with DecodeEnvelope before consulting its ServantManager.
func EncodeEnvelope(identity Identity, facet string, mode Mode, reqCtx map[string]string, body []byte) []byte {
	os := wire.NewOutputStream(wire.Encoding1_1, wire.DefaultLimits)
	defer os.Release()

	os.WriteString(identity.Name)
	os.WriteString(identity.Category)
	os.WriteString(facet)
	os.WriteByte(byte(mode))
	os.WriteStringDict(reqCtx)
	os.WriteByteSeq(body)

	out := make([]byte, os.Len())
	copy(out, os.Bytes())
	return out
}

// DecodeEnvelope reverses EncodeEnvelope.
func DecodeEnvelope(data []byte) (identity Identity, facet string, mode Mode, reqCtx map[string]string, body []byte, err error) {
	err = decodeEnvelopeSafe(func() {
		is := wire.NewInputStream(data, wire.Encoding1_1, wire.DefaultLimits, nil, nil)
		defer is.Release()

		identity.Name = is.ReadString()
		identity.Category = is.ReadString()
		facet = is.ReadString()
		mode = Mode(is.ReadByte())
		reqCtx = is.ReadStringDict()
		body = is.ReadByteSeq()
	})
	return
}

// decodeEnvelopeSafe recovers the panics wire's InputStream raises on
// malformed input (liberr.MarshalError/UnmarshalError), turning them
// into a plain error the caller can fold into a reply status instead of
// crashing the dispatch goroutine.
func decodeEnvelopeSafe(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = EnvelopeCorruptError.Error()
			}
		}
	}()
	fn()
	return nil
}
