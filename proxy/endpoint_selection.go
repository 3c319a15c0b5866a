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
	"math/rand"

	"github.com/nabbar/rimecore/transport"
)

// selectEndpoints orders candidates per spec §4.6: endpoints that
// don't satisfy a required secure reference are dropped; the remainder
// is partitioned into preferred/non-preferred by preferSecure, each
// partition ordered by policy (Ordered preserves list order, Random
// shuffles with the given source so tests can supply a seeded one).
func selectEndpoints(ref *Reference, candidates []transport.Endpoint, rnd *rand.Rand) []transport.Endpoint {
	filtered := make([]transport.Endpoint, 0, len(candidates))
	for _, ep := range candidates {
		if ref.Secure && !ep.Secure() {
			continue
		}
		filtered = append(filtered, ep)
	}

	var preferred, rest []transport.Endpoint
	for _, ep := range filtered {
		if ref.PreferSecure && ep.Secure() {
			preferred = append(preferred, ep)
		} else {
			rest = append(rest, ep)
		}
	}

	order := func(eps []transport.Endpoint) []transport.Endpoint {
		if ref.EndpointSelection != SelectRandom || len(eps) < 2 {
			return eps
		}
		shuffled := append([]transport.Endpoint(nil), eps...)
		rnd.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		return shuffled
	}

	out := make([]transport.Endpoint, 0, len(filtered))
	out = append(out, order(preferred)...)
	out = append(out, order(rest)...)
	return out
}
