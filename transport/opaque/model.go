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

// Package opaque implements transport.Endpoint for an endpoint type this
// process has no live transport plugin for: it preserves the type
// number, encoding version, and raw bytes exactly, so a process can
// parse, store, forward, and re-stringify an endpoint it can never
// Connect or Listen on, per spec §6's opaque-endpoint round-trip
// requirement and original_source/cpp/src/Ice/OpaqueEndpointI.cpp.
package opaque

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/nabbar/rimecore/transport"
	"github.com/nabbar/rimecore/wire"
)

type endpoint struct {
	typ int16
	enc wire.EncodingVersion
	raw []byte
}

// New builds an opaque endpoint for an unrecognized transport type,
// holding enc and raw exactly as decoded or parsed.
func New(typ int16, enc wire.EncodingVersion, raw []byte) transport.Endpoint {
	return &endpoint{typ: typ, enc: enc, raw: raw}
}

// Type returns the opaque transport type number.
func (e *endpoint) Type() int16 { return e.typ }

// RawBytes returns the preserved endpoint body.
func (e *endpoint) RawBytes() []byte { return e.raw }

func (e *endpoint) Protocol() string      { return "opaque" }
func (e *endpoint) Secure() bool          { return false }
func (e *endpoint) Timeout() (bool, int64) { return false, -1 }

// Connect always fails: this process has no plugin for the endpoint's
// real transport type, only its byte-preserving shell.
func (e *endpoint) Connect(context.Context) (transport.Transceiver, error) {
	return nil, transport.ConnectFailedError.Error(fmt.Errorf("no transport plugin for opaque endpoint type %d", e.typ))
}

func (e *endpoint) Listen(context.Context) (transport.Acceptor, error) {
	return nil, transport.ListenFailedError.Error(fmt.Errorf("no transport plugin for opaque endpoint type %d", e.typ))
}

func (e *endpoint) String() string {
	return fmt.Sprintf("opaque -t %d -e %d.%d -v %s", e.typ, e.enc.Major, e.enc.Minor, base64.StdEncoding.EncodeToString(e.raw))
}

func (e *endpoint) Equal(other transport.Endpoint) bool {
	o, ok := other.(*endpoint)
	if !ok || o.typ != e.typ || o.enc != e.enc || len(o.raw) != len(e.raw) {
		return false
	}
	for i := range e.raw {
		if e.raw[i] != o.raw[i] {
			return false
		}
	}
	return true
}

// Parse reads the "-t <type> -e <major.minor> -v <base64>" option
// sequence following the "opaque" transport token, per spec §6's
// stringified-proxy grammar.
func Parse(tokens []string) (transport.Endpoint, error) {
	var (
		typ    int64  = -1
		enc           = wire.Encoding1_1
		raw    []byte
		sawV   bool
	)

	for i := 0; i < len(tokens); i++ {
		switch tokens[i] {
		case "-t":
			i++
			if i >= len(tokens) {
				return nil, transport.EndpointParseError.Error(fmt.Errorf("opaque endpoint missing -t value"))
			}
			v, err := strconv.ParseInt(tokens[i], 10, 16)
			if err != nil {
				return nil, transport.EndpointParseError.Error(fmt.Errorf("opaque endpoint -t: %w", err))
			}
			typ = v
		case "-e":
			i++
			if i >= len(tokens) {
				return nil, transport.EndpointParseError.Error(fmt.Errorf("opaque endpoint missing -e value"))
			}
			parts := strings.SplitN(tokens[i], ".", 2)
			if len(parts) != 2 {
				return nil, transport.EndpointParseError.Error(fmt.Errorf("opaque endpoint -e malformed: %q", tokens[i]))
			}
			major, err1 := strconv.ParseUint(parts[0], 10, 8)
			minor, err2 := strconv.ParseUint(parts[1], 10, 8)
			if err1 != nil || err2 != nil {
				return nil, transport.EndpointParseError.Error(fmt.Errorf("opaque endpoint -e malformed: %q", tokens[i]))
			}
			enc = wire.EncodingVersion{Major: uint8(major), Minor: uint8(minor)}
		case "-v":
			i++
			if i >= len(tokens) {
				return nil, transport.EndpointParseError.Error(fmt.Errorf("opaque endpoint missing -v value"))
			}
			b, err := base64.StdEncoding.DecodeString(tokens[i])
			if err != nil {
				return nil, transport.EndpointParseError.Error(fmt.Errorf("opaque endpoint -v: %w", err))
			}
			raw = b
			sawV = true
		default:
			return nil, transport.EndpointParseError.Error(fmt.Errorf("opaque endpoint unknown option %q", tokens[i]))
		}
	}

	if typ < 0 {
		return nil, transport.EndpointParseError.Error(fmt.Errorf("opaque endpoint missing -t option"))
	}
	if !sawV {
		return nil, transport.EndpointParseError.Error(fmt.Errorf("opaque endpoint missing -v option"))
	}

	return New(int16(typ), enc, raw), nil
}
