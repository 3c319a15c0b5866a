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

// Package ring is a hashed timing wheel for scheduling the proxy
// package's per-invocation retry delays without allocating one
// time.Timer per pending retry. It represents delays with the
// teacher's duration.Duration, the same JSON/YAML-friendly duration
// type the teacher's socket/config uses for ConIdleTimeout.
package ring

import (
	"github.com/nabbar/rimecore/duration"
)

// Wheel schedules one-shot callbacks after a delay. Callbacks run on
// the wheel's own goroutine; long-running work should be handed off
// (e.g. to a reactor.Pool) rather than run inline.
type Wheel interface {
	// Schedule arranges for fn to run once after d has elapsed,
	// returning a handle that can cancel it before it fires.
	Schedule(d duration.Duration, fn func()) Handle

	// Stop halts the wheel's ticking goroutine. Pending entries never fire.
	Stop()
}

// Handle cancels a previously scheduled callback.
type Handle interface {
	// Cancel prevents the callback from firing. Returns false if it had
	// already fired or been canceled.
	Cancel() bool
}

// New builds a Wheel with the given tick resolution and number of
// slots. A delay is placed tickInterval*slots apart before wrapping;
// longer delays accumulate extra "rounds" around the ring rather than
// requiring more slots.
func New(tickInterval duration.Duration, slots int) Wheel {
	return newWheel(tickInterval, slots)
}
