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
	"github.com/nabbar/rimecore/connection"
	"github.com/nabbar/rimecore/duration"
	"github.com/nabbar/rimecore/transport"
)

// Reference is the immutable logical invocation target described in
// spec §3. It is created by a Proxy factory or by unmarshaling a
// stringified proxy, never mutated in place: every With* method
// returns a new Reference sharing the unchanged fields.
type Reference struct {
	Identity Identity
	Facet    string
	Mode     Mode

	Secure   bool
	Protocol ProtocolVersion
	Encoding ProtocolVersion

	// Exactly one of Endpoints, AdapterId, or FixedConnection is set;
	// which one selects direct, indirect, or fixed resolution.
	Endpoints       []transport.Endpoint
	AdapterId       string
	FixedConnection connection.Connection

	InvocationTimeout duration.Duration
	LocatorCacheTTL   int64 // seconds; -1 = forever, 0 = no cache

	Context map[string]string

	PreferSecure      bool
	EndpointSelection EndpointSelection

	Locator Locator
	Router  Router
}

// IsIndirect reports whether this reference must be resolved through a
// Locator before it has any endpoints to dial.
func (r *Reference) IsIndirect() bool {
	return r.AdapterId != "" && r.FixedConnection == nil
}

// IsFixed reports whether this reference is permanently bound to one
// already-established connection (no endpoint selection, no retry).
func (r *Reference) IsFixed() bool {
	return r.FixedConnection != nil
}

// Equal reports whether r and o are structurally equal, per spec §3's
// "two references compare equal iff all attributes are structurally
// equal." FixedConnection compares by identity since connection.Connection
// has no value semantics.
func (r *Reference) Equal(o *Reference) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Identity != o.Identity || r.Facet != o.Facet || r.Mode != o.Mode {
		return false
	}
	if r.Secure != o.Secure || r.Protocol != o.Protocol || r.Encoding != o.Encoding {
		return false
	}
	if r.AdapterId != o.AdapterId || r.FixedConnection != o.FixedConnection {
		return false
	}
	if r.InvocationTimeout != o.InvocationTimeout || r.LocatorCacheTTL != o.LocatorCacheTTL {
		return false
	}
	if r.PreferSecure != o.PreferSecure || r.EndpointSelection != o.EndpointSelection {
		return false
	}
	if len(r.Endpoints) != len(o.Endpoints) {
		return false
	}
	for i := range r.Endpoints {
		if !r.Endpoints[i].Equal(o.Endpoints[i]) {
			return false
		}
	}
	if len(r.Context) != len(o.Context) {
		return false
	}
	for k, v := range r.Context {
		if ov, ok := o.Context[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// clone returns a shallow copy of r; callers mutate only the field(s)
// their With* method targets before returning the copy.
func (r *Reference) clone() *Reference {
	c := *r
	if r.Endpoints != nil {
		c.Endpoints = append([]transport.Endpoint(nil), r.Endpoints...)
	}
	if r.Context != nil {
		c.Context = make(map[string]string, len(r.Context))
		for k, v := range r.Context {
			c.Context[k] = v
		}
	}
	return &c
}

// WithMode returns a new Reference with the invocation mode changed.
func (r *Reference) WithMode(m Mode) *Reference {
	c := r.clone()
	c.Mode = m
	return c
}

// WithSecure returns a new Reference requiring (or not) a secure
// transport.
func (r *Reference) WithSecure(secure bool) *Reference {
	c := r.clone()
	c.Secure = secure
	return c
}

// WithEndpoints returns a new Reference resolved directly against eps,
// clearing any adapter-id indirection.
func (r *Reference) WithEndpoints(eps ...transport.Endpoint) *Reference {
	c := r.clone()
	c.Endpoints = append([]transport.Endpoint(nil), eps...)
	c.AdapterId = ""
	return c
}

// WithAdapterId returns a new Reference resolved indirectly through id,
// clearing any direct endpoint list.
func (r *Reference) WithAdapterId(id string) *Reference {
	c := r.clone()
	c.AdapterId = id
	c.Endpoints = nil
	return c
}

// WithInvocationTimeout returns a new Reference with a per-call timeout.
func (r *Reference) WithInvocationTimeout(d duration.Duration) *Reference {
	c := r.clone()
	c.InvocationTimeout = d
	return c
}

// WithLocatorCacheTTL returns a new Reference with a different locator
// cache TTL (seconds; -1 forever, 0 no-cache).
func (r *Reference) WithLocatorCacheTTL(ttl int64) *Reference {
	c := r.clone()
	c.LocatorCacheTTL = ttl
	return c
}

// WithContext returns a new Reference carrying ctx as its per-invocation
// context map.
func (r *Reference) WithContext(ctx map[string]string) *Reference {
	c := r.clone()
	c.Context = make(map[string]string, len(ctx))
	for k, v := range ctx {
		c.Context[k] = v
	}
	return c
}

// WithFacet returns a new Reference targeting a different facet of the
// same identity.
func (r *Reference) WithFacet(facet string) *Reference {
	c := r.clone()
	c.Facet = facet
	return c
}

// SupportsCollocation reports whether this reference is eligible for
// in-process dispatch: collocation is opt-in and automatically disabled
// when the caller requested a non-default invocation timeout or a
// batching mode (spec §4.6).
func (r *Reference) SupportsCollocation() bool {
	if r.InvocationTimeout != 0 {
		return false
	}
	switch r.Mode {
	case ModeBatchOneway, ModeBatchDatagram:
		return false
	}
	return true
}
