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

import "sync"

// buffer is a growable byte slice with a read cursor, shared by
// OutputStream (append-only writes) and InputStream (cursor-advancing
// reads). Pooled because every request and reply allocates one.
type buffer struct {
	b   []byte
	pos int
}

var bufferPool = sync.Pool{
	New: func() interface{} {
		return &buffer{b: make([]byte, 0, 256)}
	},
}

// acquireBuffer returns a pooled, empty buffer.
func acquireBuffer() *buffer {
	buf := bufferPool.Get().(*buffer)
	buf.b = buf.b[:0]
	buf.pos = 0
	return buf
}

// releaseBuffer returns buf to the pool. Callers must not retain buf, or
// any slice previously returned by buf.bytes(), after calling this.
func releaseBuffer(buf *buffer) {
	if buf == nil {
		return
	}
	bufferPool.Put(buf)
}

func (buf *buffer) bytes() []byte {
	return buf.b
}

func (buf *buffer) len() int {
	return len(buf.b)
}

// remaining is the number of unread bytes left at the cursor.
func (buf *buffer) remaining() int {
	return len(buf.b) - buf.pos
}

func (buf *buffer) appendByte(v byte) {
	buf.b = append(buf.b, v)
}

func (buf *buffer) appendBytes(p []byte) {
	buf.b = append(buf.b, p...)
}

// reserve grows buf by n zeroed bytes and returns a slice over them, for
// callers that patch a value in after writing data whose length wasn't
// known up front (e.g. encapsulation total-size headers).
func (buf *buffer) reserve(n int) []byte {
	start := len(buf.b)
	buf.b = append(buf.b, make([]byte, n)...)
	return buf.b[start : start+n]
}

// readByte advances the cursor by one and returns the consumed byte.
func (buf *buffer) readByte() (byte, bool) {
	if buf.pos >= len(buf.b) {
		return 0, false
	}
	v := buf.b[buf.pos]
	buf.pos++
	return v, true
}

// readBytes advances the cursor by n and returns the consumed slice, or
// ok=false if fewer than n bytes remain.
func (buf *buffer) readBytes(n int) ([]byte, bool) {
	if n < 0 || buf.pos+n > len(buf.b) {
		return nil, false
	}
	p := buf.b[buf.pos : buf.pos+n]
	buf.pos += n
	return p, true
}

func (buf *buffer) peekByte() (byte, bool) {
	if buf.pos >= len(buf.b) {
		return 0, false
	}
	return buf.b[buf.pos], true
}

func (buf *buffer) skip(n int) bool {
	if n < 0 || buf.pos+n > len(buf.b) {
		return false
	}
	buf.pos += n
	return true
}
