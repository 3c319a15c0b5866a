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
	"strconv"
	"strings"

	"github.com/nabbar/rimecore/transport"
)

// EndpointParsers maps a proxy-string transport token ("tcp", "ssl",
// "udp", "ws", "wss", "opaque", ...) to the function that turns the
// option tokens following it into a transport.Endpoint. A Communicator
// builds one from whichever transport packages it has wired in plus
// transport/opaque for everything it hasn't (spec §6's opaque-endpoint
// round-trip requirement).
type EndpointParsers map[string]func(tokens []string) (transport.Endpoint, error)

// StringToProxy parses s per spec §6's stringified-proxy grammar into a
// Reference. Only the fields that grammar actually encodes are set —
// identity, facet, mode, secure, protocol/encoding versions, and either
// an endpoint list or an adapter-id reference. InvocationTimeout,
// LocatorCacheTTL, Context, PreferSecure, EndpointSelection, Locator,
// and Router are never part of the wire-stringified form (in the
// original, they're process-local proxy properties layered on top) and
// are left zero; a caller combines StringToProxy's result with those
// separately, the way Communicator::propertyToProxy layers
// property-based overrides onto stringToProxy's result in the original.
func StringToProxy(s string, parsers EndpointParsers) (*Reference, error) {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return nil, ProxyParseError.Error(fmt.Errorf("empty proxy string"))
	}

	identity, err := parseIdentity(tokens[0])
	if err != nil {
		return nil, err
	}
	ref := &Reference{Identity: identity, Protocol: ProtocolVersion{Major: 1, Minor: 0}, Encoding: ProtocolVersion{Major: 1, Minor: 1}}

	i := 1
	for i < len(tokens) && strings.HasPrefix(tokens[i], "-") {
		switch tokens[i] {
		case "-t":
			ref.Mode = ModeTwoway
		case "-o":
			ref.Mode = ModeOneway
		case "-O":
			ref.Mode = ModeBatchOneway
		case "-d":
			ref.Mode = ModeDatagram
		case "-D":
			ref.Mode = ModeBatchDatagram
		case "-s":
			ref.Secure = true
		case "-f":
			i++
			if i >= len(tokens) {
				return nil, ProxyParseError.Error(fmt.Errorf("proxy missing -f value"))
			}
			facet, uerr := unescapeComponent(tokens[i])
			if uerr != nil {
				return nil, ProxyParseError.Error(uerr)
			}
			ref.Facet = facet
		case "-e":
			i++
			if i >= len(tokens) {
				return nil, ProxyParseError.Error(fmt.Errorf("proxy missing -e value"))
			}
			v, verr := parseVersion(tokens[i])
			if verr != nil {
				return nil, ProxyParseError.Error(verr)
			}
			ref.Encoding = v
		case "-p":
			i++
			if i >= len(tokens) {
				return nil, ProxyParseError.Error(fmt.Errorf("proxy missing -p value"))
			}
			v, verr := parseVersion(tokens[i])
			if verr != nil {
				return nil, ProxyParseError.Error(verr)
			}
			ref.Protocol = v
		default:
			return nil, ProxyParseError.Error(fmt.Errorf("unknown proxy option %q", tokens[i]))
		}
		i++
	}

	if i >= len(tokens) {
		return ref, nil
	}

	if strings.HasPrefix(tokens[i], "@") {
		adapterId, uerr := unescapeComponent(strings.TrimPrefix(tokens[i], "@"))
		if uerr != nil {
			return nil, ProxyParseError.Error(uerr)
		}
		ref.AdapterId = adapterId
		return ref, nil
	}

	endpoints, err := parseEndpoints(tokens[i:], parsers)
	if err != nil {
		return nil, err
	}
	ref.Endpoints = endpoints
	return ref, nil
}

// ProxyToString renders r per spec §6's grammar. As with StringToProxy,
// only grammar-visible fields are rendered.
func ProxyToString(r *Reference) string {
	var b strings.Builder
	b.WriteString(escapeComponent(r.Identity.Category))
	if r.Identity.Category != "" {
		b.WriteByte('/')
	}
	b.WriteString(escapeComponent(r.Identity.Name))

	switch r.Mode {
	case ModeOneway:
		b.WriteString(" -o")
	case ModeBatchOneway:
		b.WriteString(" -O")
	case ModeDatagram:
		b.WriteString(" -d")
	case ModeBatchDatagram:
		b.WriteString(" -D")
	default:
		b.WriteString(" -t")
	}
	if r.Secure {
		b.WriteString(" -s")
	}
	if r.Facet != "" {
		b.WriteString(" -f ")
		b.WriteString(escapeComponent(r.Facet))
	}
	b.WriteString(" -e ")
	b.WriteString(strconv.Itoa(int(r.Encoding.Major)) + "." + strconv.Itoa(int(r.Encoding.Minor)))
	b.WriteString(" -p ")
	b.WriteString(strconv.Itoa(int(r.Protocol.Major)) + "." + strconv.Itoa(int(r.Protocol.Minor)))

	if r.AdapterId != "" {
		b.WriteString(" @")
		b.WriteString(escapeComponent(r.AdapterId))
		return b.String()
	}
	for _, ep := range r.Endpoints {
		b.WriteString(" : ")
		b.WriteString(ep.String())
	}
	return b.String()
}

// parseIdentity splits tok on its first unescaped '/' before unescaping
// either half, so an escaped "\/" inside a category or name is never
// confused with the category/name separator.
func parseIdentity(tok string) (Identity, error) {
	sep := -1
	for i := 0; i < len(tok); i++ {
		if tok[i] == '\\' {
			i++
			continue
		}
		if tok[i] == '/' {
			sep = i
			break
		}
	}

	if sep < 0 {
		name, err := unescapeComponent(tok)
		if err != nil {
			return Identity{}, ProxyParseError.Error(err)
		}
		if name == "" {
			return Identity{}, ProxyParseError.Error(fmt.Errorf("identity name must be non-empty"))
		}
		return Identity{Name: name}, nil
	}

	category, err := unescapeComponent(tok[:sep])
	if err != nil {
		return Identity{}, ProxyParseError.Error(err)
	}
	name, err := unescapeComponent(tok[sep+1:])
	if err != nil {
		return Identity{}, ProxyParseError.Error(err)
	}
	if name == "" {
		return Identity{}, ProxyParseError.Error(fmt.Errorf("identity name must be non-empty"))
	}
	return Identity{Category: category, Name: name}, nil
}

func parseVersion(tok string) (ProtocolVersion, error) {
	parts := strings.SplitN(tok, ".", 2)
	if len(parts) != 2 {
		return ProtocolVersion{}, fmt.Errorf("malformed version %q", tok)
	}
	major, err1 := strconv.ParseUint(parts[0], 10, 8)
	minor, err2 := strconv.ParseUint(parts[1], 10, 8)
	if err1 != nil || err2 != nil {
		return ProtocolVersion{}, fmt.Errorf("malformed version %q", tok)
	}
	return ProtocolVersion{Major: uint8(major), Minor: uint8(minor)}, nil
}

func parseEndpoints(tokens []string, parsers EndpointParsers) ([]transport.Endpoint, error) {
	var endpoints []transport.Endpoint
	i := 0
	for i < len(tokens) {
		if tokens[i] != ":" {
			return nil, ProxyParseError.Error(fmt.Errorf("expected ':' before endpoint, got %q", tokens[i]))
		}
		i++
		if i >= len(tokens) {
			return nil, ProxyParseError.Error(fmt.Errorf("endpoint missing transport after ':'"))
		}
		transportName := tokens[i]
		i++

		var opts []string
		for i < len(tokens) && tokens[i] != ":" {
			opts = append(opts, tokens[i])
			i++
		}

		parse, ok := parsers[transportName]
		if !ok {
			return nil, ProxyParseError.Error(fmt.Errorf("no endpoint parser registered for transport %q", transportName))
		}
		ep, err := parse(opts)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	if len(endpoints) == 0 {
		return nil, ProxyParseError.Error(fmt.Errorf("proxy has no endpoints"))
	}
	return endpoints, nil
}

// escapeComponent backslash-escapes '\', ':', '/' and '@', and writes
// whitespace and non-printable bytes as \xHH (so the result never
// contains a space that StringToProxy's field split would break on), per
// spec §6's "escaping of non-printable identity bytes" round-trip
// requirement.
func escapeComponent(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' || c == '/' || c == '@' || c == ':':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == ' ' || c < 0x20 || c >= 0x7f:
			b.WriteString(fmt.Sprintf("\\x%02x", c))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func unescapeComponent(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("dangling escape in %q", s)
		}
		if s[i] == 'x' {
			if i+2 >= len(s) {
				return "", fmt.Errorf("truncated \\x escape in %q", s)
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return "", fmt.Errorf("malformed \\x escape in %q: %w", s, err)
			}
			b.WriteByte(byte(v))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String(), nil
}
