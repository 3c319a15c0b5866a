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

package reactor

import (
	"context"
	"sync"
	"sync/atomic"
)

// poolModel is a bounded worker pool: size goroutines pull Tasks off a
// buffered channel. Grounded on the observed behavior of the teacher's
// runner/startStop package (New(start, stop)/Start/Stop/IsRunning, every
// call idempotent and safe from concurrent callers) since, like
// socket/client and socket/server, runner/startStop ships no non-test
// source in the pack — only its Ginkgo specs describe the contract.
type poolModel struct {
	size  int
	queue chan Task

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	active atomic.Int32
}

// NewPool builds a Pool of size worker goroutines, each pulling Tasks off
// a queue of the given capacity. size and queueSize are both clamped to
// at least 1.
func NewPool(size, queueSize int) Pool {
	if size < 1 {
		size = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &poolModel{
		size:  size,
		queue: make(chan Task, queueSize),
	}
}

func (p *poolModel) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.running = true

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *poolModel) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case fn, ok := <-p.queue:
			if !ok {
				return
			}
			p.active.Add(1)
			fn(ctx)
			p.active.Add(-1)
		}
	}
}

func (p *poolModel) Submit(fn Task) error {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	if !running {
		return PoolStoppedError.Error()
	}

	select {
	case p.queue <- fn:
		return nil
	default:
		return QueueFullError.Error()
	}
}

func (p *poolModel) Running() int {
	return int(p.active.Load())
}

func (p *poolModel) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

// invocationModel is the cancellation handle handed back to a caller
// dispatching a two-way request through a Pool-backed proxy invocation.
type invocationModel struct {
	mu        sync.Mutex
	done      chan struct{}
	canceled  bool
	completed bool
	onCancel  func()
}

// NewInvocation builds an Invocation. onCancel is invoked at most once, the
// first time Cancel succeeds against an invocation not yet completed; it is
// the hook a proxy.RequestHandler uses to pull the request back out of its
// connection's send queue.
func NewInvocation(onCancel func()) (inv Invocation, complete func()) {
	m := &invocationModel{
		done:     make(chan struct{}),
		onCancel: onCancel,
	}
	return m, m.complete
}

func (m *invocationModel) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.completed {
		return AlreadyCompletedError.Error()
	}
	if m.canceled {
		return nil
	}

	m.canceled = true
	if m.onCancel != nil {
		m.onCancel()
	}
	close(m.done)
	return nil
}

func (m *invocationModel) complete() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.completed || m.canceled {
		return
	}
	m.completed = true
	close(m.done)
}

func (m *invocationModel) Done() <-chan struct{} {
	return m.done
}
