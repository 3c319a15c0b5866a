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

// Package wire implements the bidirectional, length-prefixed, version-tagged
// binary codec used on every message: variable-length sizes, little-endian
// primitives, strings, sequences, dictionaries, encapsulations, tagged
// optional parameters in seven wire formats, enums, and sliced class/
// exception graphs.
package wire

import "github.com/nabbar/rimecore/rlog/fields"

// EncodingVersion is a (major, minor) pair identifying the codec version an
// Encapsulation was written with; a reader not understanding the encoding
// skips the encapsulation using its declared size instead of failing.
type EncodingVersion struct {
	Major uint8
	Minor uint8
}

// Encoding1_1 is the default, and currently only fully implemented, wire
// encoding version.
var Encoding1_1 = EncodingVersion{Major: 1, Minor: 1}

func (e EncodingVersion) String() string {
	return string(rune('0'+e.Major)) + "." + string(rune('0'+e.Minor))
}

// Format is the on-wire category of a tagged optional parameter.
type Format uint8

const (
	FormatF1 Format = iota
	FormatF2
	FormatF4
	FormatF8
	FormatSize
	FormatVSize
	FormatFSize
	FormatClass
)

// wireSizeOf returns the fixed byte width for fixed-width formats, or -1 for
// formats whose width is only known by reading a length prefix.
func (f Format) wireSizeOf() int {
	switch f {
	case FormatF1:
		return 1
	case FormatF2:
		return 2
	case FormatF4:
		return 4
	case FormatF8:
		return 8
	default:
		return -1
	}
}

// Limits bounds allocation driven by untrusted peer data.
type Limits struct {
	// MessageSizeMax caps any single message, including its header.
	MessageSizeMax int
	// ClassGraphDepthMax caps the number of slices in a single class or
	// exception instance graph depth-first walk.
	ClassGraphDepthMax int
}

// DefaultLimits mirrors the spec's recommended defaults: 1 MiB messages,
// 100 slices of class-graph depth.
var DefaultLimits = Limits{
	MessageSizeMax:     1024 * 1024,
	ClassGraphDepthMax: 100,
}

// LogFields renders l as structured fields for an rlog call site.
func (l Limits) LogFields() []fields.Field {
	return []fields.Field{
		fields.Int("message-size-max", l.MessageSizeMax),
		fields.Int("class-graph-depth-max", l.ClassGraphDepthMax),
	}
}

// AnyClass is the capability surface a generated class type implements: a
// stable type-id plus member marshal/unmarshal callbacks invoked by
// OutputStream/InputStream during sliced-graph encoding.
type AnyClass interface {
	IceId() string
	MarshalMembers(os *OutputStream)
	UnmarshalMembers(is *InputStream)
}

// AnyUserException is the capability surface for a declared user
// exception: like AnyClass but additionally exposes its base type-id so a
// reader ignorant of the most-derived type can unwind to the closest known
// base (spec §4.1 "user exception").
type AnyUserException interface {
	AnyClass
	error
	IceBaseId() string
}

// ValueFactory constructs a zero-value AnyClass for typeId, or nil if the
// type is not known to this process — in which case the instance is kept
// as an opaque UnknownSlicedValue.
type ValueFactory func(typeId string) AnyClass

// UserExceptionFactory constructs a zero-value AnyUserException for
// typeId, or nil if undeclared at this call site.
type UserExceptionFactory func(typeId string) AnyUserException
