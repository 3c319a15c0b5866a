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

// encapsState tracks the class/exception instance graph being written
// inside one encapsulation, so cyclic references become negative-size
// back-references instead of being re-written, plus the offset of its
// total-size placeholder so EndEncapsulation can patch it in O(1).
type encapsState struct {
	sizeOffset     int
	nextInstanceId int32
	written        map[AnyClass]int32
	depth          int
}

// OutputStream accumulates a single message's encoded payload. Not safe
// for concurrent use; callers own one per outgoing Request/Reply.
type OutputStream struct {
	buf     *buffer
	limits  Limits
	enc     EncodingVersion
	lastTag int
	encaps  []*encapsState
}

// NewOutputStream allocates an OutputStream writing encoding enc, bounded
// by limits.
func NewOutputStream(enc EncodingVersion, limits Limits) *OutputStream {
	return &OutputStream{
		buf:     acquireBuffer(),
		limits:  limits,
		enc:     enc,
		lastTag: -1,
	}
}

// Release returns the stream's backing buffer to the pool. Bytes() must
// not be used afterward.
func (os *OutputStream) Release() {
	releaseBuffer(os.buf)
	os.buf = nil
}

// Bytes returns the encoded payload written so far.
func (os *OutputStream) Bytes() []byte {
	return os.buf.bytes()
}

// Len is the number of bytes written so far.
func (os *OutputStream) Len() int {
	return os.buf.len()
}

// --- primitives ---------------------------------------------------------

// WriteSize writes n using the variable-length size encoding: a single
// byte for 0-254, or 0xFF followed by a 4-byte little-endian value for
// 255 and above.
func (os *OutputStream) WriteSize(n int) {
	if n < 0 {
		panic(liberr.MarshalError.Errorf("negative size %d", n))
	}
	if n < 255 {
		os.buf.appendByte(byte(n))
		return
	}
	os.buf.appendByte(0xFF)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(n))
	os.buf.appendBytes(tmp[:])
}

func (os *OutputStream) WriteByte(v byte) {
	os.buf.appendByte(v)
}

func (os *OutputStream) WriteBool(v bool) {
	if v {
		os.buf.appendByte(1)
	} else {
		os.buf.appendByte(0)
	}
}

func (os *OutputStream) WriteInt16(v int16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], uint16(v))
	os.buf.appendBytes(tmp[:])
}

func (os *OutputStream) WriteInt32(v int32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	os.buf.appendBytes(tmp[:])
}

func (os *OutputStream) WriteInt64(v int64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	os.buf.appendBytes(tmp[:])
}

func (os *OutputStream) WriteFloat32(v float32) {
	os.WriteInt32(int32(math.Float32bits(v)))
}

func (os *OutputStream) WriteFloat64(v float64) {
	os.WriteInt64(int64(math.Float64bits(v)))
}

// WriteString writes a UTF-8 string as a size-prefixed byte sequence.
func (os *OutputStream) WriteString(s string) {
	os.WriteSize(len(s))
	os.buf.appendBytes([]byte(s))
}

// WriteByteSeq writes a raw byte sequence (size prefix then the bytes).
func (os *OutputStream) WriteByteSeq(p []byte) {
	os.WriteSize(len(p))
	os.buf.appendBytes(p)
}

// WriteStringSeq writes a sequence of strings.
func (os *OutputStream) WriteStringSeq(seq []string) {
	os.WriteSize(len(seq))
	for _, s := range seq {
		os.WriteString(s)
	}
}

// WriteInt32Seq writes a sequence of 32-bit integers.
func (os *OutputStream) WriteInt32Seq(seq []int32) {
	os.WriteSize(len(seq))
	for _, v := range seq {
		os.WriteInt32(v)
	}
}

// WriteStringDict writes a string-keyed, string-valued dictionary as a
// size-prefixed sequence of key/value pairs.
func (os *OutputStream) WriteStringDict(m map[string]string) {
	os.WriteSize(len(m))
	for k, v := range m {
		os.WriteString(k)
		os.WriteString(v)
	}
}

// WriteEnum writes an enumerator value, range-checked against maxValue
// (the highest declared enumerator ordinal).
func (os *OutputStream) WriteEnum(value, maxValue int) {
	if value < 0 || value > maxValue {
		panic(liberr.MarshalError.Errorf("enum value %d out of range [0,%d]", value, maxValue))
	}
	os.WriteSize(value)
}

// --- encapsulations ------------------------------------------------------

// StartEncapsulation reserves a 4-byte total-size placeholder, writes the
// encoding version, and pushes a fresh instance-graph scope for class/
// exception writing within it.
func (os *OutputStream) StartEncapsulation() {
	offset := os.buf.len()
	os.buf.reserve(4)
	os.buf.appendByte(os.enc.Major)
	os.buf.appendByte(os.enc.Minor)
	os.encaps = append(os.encaps, &encapsState{
		sizeOffset:     offset,
		nextInstanceId: 1,
		written:        map[AnyClass]int32{},
	})
}

// EndEncapsulation patches the total-size field reserved by the matching
// StartEncapsulation with the actual encapsulation length, including the
// size field and encoding version bytes themselves.
func (os *OutputStream) EndEncapsulation() {
	n := len(os.encaps)
	if n == 0 {
		panic(liberr.MarshalError.Errorf("EndEncapsulation without matching StartEncapsulation"))
	}
	state := os.encaps[n-1]
	os.encaps = os.encaps[:n-1]

	total := os.buf.len() - state.sizeOffset
	binary.LittleEndian.PutUint32(os.buf.b[state.sizeOffset:state.sizeOffset+4], uint32(total))
}

func (os *OutputStream) currentEncaps() *encapsState {
	n := len(os.encaps)
	if n == 0 {
		panic(liberr.MarshalError.Errorf("class/exception graph write outside an encapsulation"))
	}
	return os.encaps[n-1]
}

// --- tagged optionals ----------------------------------------------------

// StartTags resets ascending-tag tracking for the member list about to be
// written (a struct, class slice, or exception slice). Tags are only
// required to ascend within one such list.
func (os *OutputStream) StartTags() {
	os.lastTag = -1
}

// WriteTag writes the tag byte (and, for tag>=30, the escaped size-encoded
// tag value) for a tagged optional member. Tags within one StartTags scope
// must strictly ascend; violating that is a caller bug, not peer data, so
// it panics rather than returning an error.
func (os *OutputStream) WriteTag(tag int, format Format) {
	if tag < 0 {
		panic(liberr.MarshalError.Errorf("negative tag %d", tag))
	}
	if tag <= os.lastTag {
		panic(liberr.InvalidTagOrderError.Errorf("tag %d does not ascend past %d", tag, os.lastTag))
	}
	os.lastTag = tag

	if tag < 30 {
		os.buf.appendByte(byte(tag<<3) | byte(format))
		return
	}
	os.buf.appendByte(byte(30<<3) | byte(format))
	os.WriteSize(tag)
}

// WriteOptional writes tag/format followed by the value produced by write.
// For FormatVSize and FormatFSize the value is first encoded into a
// scratch stream so its byte length can be prefixed, letting a peer that
// doesn't recognize the tag skip over it.
func (os *OutputStream) WriteOptional(tag int, format Format, write func(*OutputStream)) {
	os.WriteTag(tag, format)

	switch format {
	case FormatF1, FormatF2, FormatF4, FormatF8, FormatSize, FormatClass:
		write(os)
	case FormatVSize:
		sub := os.scratch()
		write(sub)
		os.WriteSize(sub.Len())
		os.buf.appendBytes(sub.Bytes())
		sub.Release()
	case FormatFSize:
		sub := os.scratch()
		write(sub)
		os.WriteInt32(int32(sub.Len()))
		os.buf.appendBytes(sub.Bytes())
		sub.Release()
	default:
		panic(liberr.MarshalError.Errorf("unknown tagged format %d", format))
	}
}

// scratch returns a nested OutputStream sharing this stream's encoding and
// instance-graph scope (so class references written inside it still
// resolve against the enclosing encapsulation's instance table) but with
// its own buffer, for callers that need to know a sub-value's length
// before splicing it in.
func (os *OutputStream) scratch() *OutputStream {
	sub := NewOutputStream(os.enc, os.limits)
	sub.encaps = os.encaps
	return sub
}

// --- sliced class and exception instances ---------------------------------

// WriteValue encodes v as a class instance reference: 0 for nil, a
// positive instance id followed by type-id and sliced member data the
// first time v is seen within the active encapsulation, or the negated
// id of a prior occurrence for a cyclic/shared reference.
func (os *OutputStream) WriteValue(v AnyClass) {
	if v == nil {
		os.WriteInt32(0)
		return
	}

	state := os.currentEncaps()
	if id, seen := state.written[v]; seen {
		os.WriteInt32(-id)
		return
	}

	state.depth++
	if state.depth > os.limits.ClassGraphDepthMax {
		panic(liberr.MemoryLimitError.Errorf("class graph depth exceeds %d", os.limits.ClassGraphDepthMax))
	}

	id := state.nextInstanceId
	state.nextInstanceId++
	state.written[v] = id

	os.WriteInt32(id)
	os.WriteString(v.IceId())

	sub := os.scratch()
	v.MarshalMembers(sub)
	os.WriteSize(sub.Len())
	os.buf.appendBytes(sub.Bytes())
	sub.Release()

	state.depth--
}

// WriteUserException encodes e as a reply-body encapsulation payload: its
// most-derived type-id followed by length-prefixed sliced member data, so
// a peer unaware of the concrete type can still skip it and fall back to
// UnknownUserException.
func (os *OutputStream) WriteUserException(e AnyUserException) {
	os.WriteString(e.IceId())

	sub := os.scratch()
	e.MarshalMembers(sub)
	os.WriteSize(sub.Len())
	os.buf.appendBytes(sub.Bytes())
	sub.Release()
}
