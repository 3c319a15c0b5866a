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

package ring

import (
	"sync"
	"time"

	"github.com/nabbar/rimecore/duration"
)

type entry struct {
	fn       func()
	rounds   int
	canceled bool
}

type handle struct {
	mu *sync.Mutex
	e  *entry
}

func (h *handle) Cancel() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.e.canceled {
		return false
	}
	h.e.canceled = true
	return true
}

type wheelModel struct {
	tick  time.Duration
	slots []map[*entry]struct{}

	mu   sync.Mutex
	pos  int
	done chan struct{}
	wg   sync.WaitGroup
}

func newWheel(tickInterval duration.Duration, slots int) *wheelModel {
	if slots <= 0 {
		slots = 64
	}
	t := tickInterval.Time()
	if t <= 0 {
		t = 100 * time.Millisecond
	}

	w := &wheelModel{
		tick:  t,
		slots: make([]map[*entry]struct{}, slots),
		done:  make(chan struct{}),
	}
	for i := range w.slots {
		w.slots[i] = make(map[*entry]struct{})
	}

	w.wg.Add(1)
	go w.run()
	return w
}

func (w *wheelModel) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.advance()
		}
	}
}

func (w *wheelModel) advance() {
	w.mu.Lock()
	slot := w.slots[w.pos]
	w.pos = (w.pos + 1) % len(w.slots)

	var fire []*entry
	for e := range slot {
		if e.canceled {
			delete(slot, e)
			continue
		}
		if e.rounds > 0 {
			e.rounds--
			continue
		}
		e.canceled = true
		fire = append(fire, e)
		delete(slot, e)
	}
	w.mu.Unlock()

	for _, e := range fire {
		e.fn()
	}
}

func (w *wheelModel) Schedule(d duration.Duration, fn func()) Handle {
	delay := d.Time()
	if delay < 0 {
		delay = 0
	}

	ticks := int(delay / w.tick)
	if ticks < 1 {
		ticks = 1
	}
	rounds := ticks / len(w.slots)
	offset := ticks % len(w.slots)

	e := &entry{fn: fn, rounds: rounds}

	w.mu.Lock()
	slot := (w.pos + offset) % len(w.slots)
	w.slots[slot][e] = struct{}{}
	w.mu.Unlock()

	return &handle{mu: &w.mu, e: e}
}

func (w *wheelModel) Stop() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	w.wg.Wait()
}
