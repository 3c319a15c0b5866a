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
	"encoding/binary"
	"math"

	liberr "github.com/nabbar/rimecore/rerr"
)

// decapsState mirrors encapsState on the read side: instances already
// decoded within the active encapsulation, keyed by the id they were
// written with, so back-references patch in the same object rather than
// decoding a duplicate.
type decapsState struct {
	instances map[int32]AnyClass
	depth     int
}

// InputStream decodes a single message's payload. Not safe for
// concurrent use.
type InputStream struct {
	buf     *buffer
	limits  Limits
	enc     EncodingVersion
	lastTag int
	decaps  []*decapsState
	values  ValueFactory
	excs    UserExceptionFactory
}

// NewInputStream wraps p for decoding under enc/limits. values and excs
// may be nil if the caller never decodes class instances or user
// exceptions from this stream.
func NewInputStream(p []byte, enc EncodingVersion, limits Limits, values ValueFactory, excs UserExceptionFactory) *InputStream {
	buf := acquireBuffer()
	buf.appendBytes(p)
	return &InputStream{
		buf:     buf,
		limits:  limits,
		enc:     enc,
		lastTag: -1,
		values:  values,
		excs:    excs,
	}
}

// Release returns the stream's backing buffer to the pool.
func (is *InputStream) Release() {
	releaseBuffer(is.buf)
	is.buf = nil
}

// Remaining is the number of unread bytes.
func (is *InputStream) Remaining() int {
	return is.buf.remaining()
}

// --- primitives ---------------------------------------------------------

// ReadSize reads the variable-length size encoding written by
// OutputStream.WriteSize, rejecting a declared size beyond
// Limits.MessageSizeMax before the caller can act on it to allocate.
func (is *InputStream) ReadSize() int {
	b, ok := is.buf.readByte()
	if !ok {
		panic(liberr.UnmarshalError.Errorf("truncated size"))
	}
	var n int
	if b == 0xFF {
		raw, ok := is.buf.readBytes(4)
		if !ok {
			panic(liberr.UnmarshalError.Errorf("truncated extended size"))
		}
		n = int(binary.LittleEndian.Uint32(raw))
	} else {
		n = int(b)
	}
	if is.limits.MessageSizeMax > 0 && n > is.limits.MessageSizeMax {
		panic(liberr.MemoryLimitError.Errorf("declared size %d exceeds limit %d", n, is.limits.MessageSizeMax))
	}
	return n
}

func (is *InputStream) ReadByte() byte {
	b, ok := is.buf.readByte()
	if !ok {
		panic(liberr.UnmarshalError.Errorf("truncated byte"))
	}
	return b
}

func (is *InputStream) ReadBool() bool {
	return is.ReadByte() != 0
}

func (is *InputStream) ReadInt16() int16 {
	p, ok := is.buf.readBytes(2)
	if !ok {
		panic(liberr.UnmarshalError.Errorf("truncated int16"))
	}
	return int16(binary.LittleEndian.Uint16(p))
}

func (is *InputStream) ReadInt32() int32 {
	p, ok := is.buf.readBytes(4)
	if !ok {
		panic(liberr.UnmarshalError.Errorf("truncated int32"))
	}
	return int32(binary.LittleEndian.Uint32(p))
}

func (is *InputStream) ReadInt64() int64 {
	p, ok := is.buf.readBytes(8)
	if !ok {
		panic(liberr.UnmarshalError.Errorf("truncated int64"))
	}
	return int64(binary.LittleEndian.Uint64(p))
}

func (is *InputStream) ReadFloat32() float32 {
	return math.Float32frombits(uint32(is.ReadInt32()))
}

func (is *InputStream) ReadFloat64() float64 {
	return math.Float64frombits(uint64(is.ReadInt64()))
}

// ReadString reads a size-prefixed UTF-8 string. The size is validated by
// ReadSize before the byte slice is sliced out, so a hostile huge length
// fails before any allocation proportional to it occurs.
func (is *InputStream) ReadString() string {
	n := is.ReadSize()
	p, ok := is.buf.readBytes(n)
	if !ok {
		panic(liberr.UnmarshalError.Errorf("truncated string of declared length %d", n))
	}
	return string(p)
}

// ReadByteSeq reads a size-prefixed raw byte sequence.
func (is *InputStream) ReadByteSeq() []byte {
	n := is.ReadSize()
	p, ok := is.buf.readBytes(n)
	if !ok {
		panic(liberr.UnmarshalError.Errorf("truncated byte sequence of declared length %d", n))
	}
	out := make([]byte, n)
	copy(out, p)
	return out
}

// ReadStringSeq reads a sequence of strings. The outer size is validated
// by ReadSize; per-element allocation still comes from ReadString itself,
// so a declared count that outruns the buffer fails on the first short
// read rather than pre-allocating n empty strings.
func (is *InputStream) ReadStringSeq() []string {
	n := is.ReadSize()
	out := make([]string, 0, clampPrealloc(n))
	for i := 0; i < n; i++ {
		out = append(out, is.ReadString())
	}
	return out
}

// ReadInt32Seq reads a sequence of 32-bit integers.
func (is *InputStream) ReadInt32Seq() []int32 {
	n := is.ReadSize()
	if n*4 > is.buf.remaining() {
		panic(liberr.UnmarshalError.Errorf("int32 sequence of declared length %d exceeds remaining buffer", n))
	}
	out := make([]int32, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, is.ReadInt32())
	}
	return out
}

// ReadStringDict reads a string-keyed, string-valued dictionary.
func (is *InputStream) ReadStringDict() map[string]string {
	n := is.ReadSize()
	out := make(map[string]string, clampPrealloc(n))
	for i := 0; i < n; i++ {
		k := is.ReadString()
		v := is.ReadString()
		out[k] = v
	}
	return out
}

// ReadEnum reads an enumerator value and range-checks it against
// maxValue, rejecting a peer that sent an ordinal this process's enum
// type doesn't declare.
func (is *InputStream) ReadEnum(maxValue int) int {
	v := is.ReadSize()
	if v < 0 || v > maxValue {
		panic(liberr.UnmarshalError.Errorf("enum ordinal %d out of range [0,%d]", v, maxValue))
	}
	return v
}

// clampPrealloc bounds a trusted-looking count to a sane pre-allocation
// size; ReadSize already rejected anything beyond MessageSizeMax, this
// just avoids asking make() for an absurd capacity for tiny element types.
func clampPrealloc(n int) int {
	const cap = 4096
	if n > cap {
		return cap
	}
	return n
}

// --- encapsulations ------------------------------------------------------

// StartEncapsulation reads the total-size and encoding-version header and
// pushes a fresh instance table, returning the size of the payload that
// follows (total size minus the 6-byte header just read).
func (is *InputStream) StartEncapsulation() int {
	raw, ok := is.buf.readBytes(4)
	if !ok {
		panic(liberr.UnmarshalError.Errorf("truncated encapsulation size"))
	}
	total := int(binary.LittleEndian.Uint32(raw))
	major := is.ReadByte()
	minor := is.ReadByte()
	if major != is.enc.Major {
		panic(liberr.UnsupportedEncodingError.Errorf("encapsulation encoding %d.%d unsupported", major, minor))
	}

	is.decaps = append(is.decaps, &decapsState{instances: map[int32]AnyClass{}})
	return total - 6
}

// EndEncapsulation pops the instance table pushed by StartEncapsulation.
func (is *InputStream) EndEncapsulation() {
	n := len(is.decaps)
	if n == 0 {
		panic(liberr.UnmarshalError.Errorf("EndEncapsulation without matching StartEncapsulation"))
	}
	is.decaps = is.decaps[:n-1]
}

// SkipEncapsulation reads and discards an encapsulation this process
// doesn't understand, using its declared size rather than attempting to
// decode its contents.
func (is *InputStream) SkipEncapsulation() {
	n := is.StartEncapsulation()
	if n < 0 || !is.buf.skip(n) {
		panic(liberr.UnmarshalError.Errorf("truncated encapsulation payload of declared length %d", n))
	}
	is.EndEncapsulation()
}

func (is *InputStream) currentDecaps() *decapsState {
	n := len(is.decaps)
	if n == 0 {
		panic(liberr.UnmarshalError.Errorf("class/exception graph read outside an encapsulation"))
	}
	return is.decaps[n-1]
}

// --- tagged optionals ----------------------------------------------------

// StartTags resets ascending-tag tracking to match the writer side's
// StartTags scope.
func (is *InputStream) StartTags() {
	is.lastTag = -1
}

// PeekTag reports the tag and format of the next tagged member without
// consuming it, or ok=false at end of the current tagged member list
// (callers detect this either by encapsulation exhaustion or a sentinel
// the generated code defines; this package only exposes the peek).
func (is *InputStream) PeekTag() (tag int, format Format, ok bool) {
	b, present := is.buf.peekByte()
	if !present {
		return 0, 0, false
	}
	format = Format(b & 0x07)
	tag = int(b >> 3)
	return tag, format, true
}

// ReadTag consumes the tag/format byte (and, for an escaped tag>=30, the
// size-encoded tag value), mirroring WriteTag.
func (is *InputStream) ReadTag() (tag int, format Format) {
	b := is.ReadByte()
	format = Format(b & 0x07)
	tag = int(b >> 3)
	if tag == 30 {
		tag = is.ReadSize()
	}
	if tag <= is.lastTag {
		panic(liberr.InvalidTagOrderError.Errorf("tag %d does not ascend past %d", tag, is.lastTag))
	}
	is.lastTag = tag
	return tag, format
}

// SkipTagged discards the value of a tagged member whose tag the reader
// doesn't recognize, using format to determine how to locate its end.
func (is *InputStream) SkipTagged(format Format) {
	switch format {
	case FormatF1, FormatF2, FormatF4, FormatF8:
		if !is.buf.skip(format.wireSizeOf()) {
			panic(liberr.UnmarshalError.Errorf("truncated fixed-width tagged value"))
		}
	case FormatSize:
		is.ReadSize()
	case FormatVSize:
		n := is.ReadSize()
		if !is.buf.skip(n) {
			panic(liberr.UnmarshalError.Errorf("truncated VSize tagged value of length %d", n))
		}
	case FormatFSize:
		n := int(is.ReadInt32())
		if n < 0 || !is.buf.skip(n) {
			panic(liberr.UnmarshalError.Errorf("truncated FSize tagged value of length %d", n))
		}
	case FormatClass:
		is.ReadValue(nil)
	default:
		panic(liberr.UnmarshalError.Errorf("unknown tagged format %d", format))
	}
}

// --- sliced class and exception instances ---------------------------------

// ReadValue decodes a class instance reference. If the concrete type is
// known to factory (or the stream's default ValueFactory when factory is
// nil but a read is still required to stay in sync, e.g. from
// SkipTagged), the instance is constructed and its members unmarshaled;
// otherwise the slice is skipped and nil is returned, the unsliced-data
// discard the spec permits for forward-compatible readers.
func (is *InputStream) ReadValue(factory ValueFactory) AnyClass {
	if factory == nil {
		factory = is.values
	}

	id := is.ReadInt32()
	if id == 0 {
		return nil
	}

	state := is.currentDecaps()
	if id < 0 {
		v, ok := state.instances[-id]
		if !ok {
			panic(liberr.UnmarshalError.Errorf("back-reference to unknown instance id %d", -id))
		}
		return v
	}

	state.depth++
	if state.depth > is.limits.ClassGraphDepthMax {
		panic(liberr.MemoryLimitError.Errorf("class graph depth exceeds %d", is.limits.ClassGraphDepthMax))
	}

	typeId := is.ReadString()
	sliceLen := is.ReadSize()
	raw, ok := is.buf.readBytes(sliceLen)
	if !ok {
		panic(liberr.UnmarshalError.Errorf("truncated class slice of declared length %d", sliceLen))
	}

	var v AnyClass
	if factory != nil {
		v = factory(typeId)
	}
	if v != nil {
		state.instances[id] = v
		sub := NewInputStream(raw, is.enc, is.limits, is.values, is.excs)
		sub.decaps = is.decaps
		v.UnmarshalMembers(sub)
		sub.Release()
	}

	state.depth--
	return v
}

// ReadUserException decodes a reply-body user exception by type-id,
// falling back to nil (the caller maps that to UnknownUserException) if
// factory doesn't recognize it.
func (is *InputStream) ReadUserException(factory UserExceptionFactory) AnyUserException {
	if factory == nil {
		factory = is.excs
	}

	typeId := is.ReadString()
	sliceLen := is.ReadSize()
	raw, ok := is.buf.readBytes(sliceLen)
	if !ok {
		panic(liberr.UnmarshalError.Errorf("truncated exception slice of declared length %d", sliceLen))
	}

	var e AnyUserException
	if factory != nil {
		e = factory(typeId)
	}
	if e != nil {
		sub := NewInputStream(raw, is.enc, is.limits, is.values, is.excs)
		sub.decaps = is.decaps
		e.UnmarshalMembers(sub)
		sub.Release()
	}
	return e
}
