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

package connection

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nabbar/rimecore/duration"
	"github.com/nabbar/rimecore/proto"
	liberr "github.com/nabbar/rimecore/rerr"
	"github.com/nabbar/rimecore/rlog"
	"github.com/nabbar/rimecore/rlog/fields"
	"github.com/nabbar/rimecore/transport"
	"github.com/nabbar/rimecore/wire"
)

// request frame body: int32 requestId, bool oneWay, string operation, byte-seq body.
// reply frame body: int32 requestId, byte status, byte-seq body.

type connModel struct {
	t        transport.Transceiver
	incoming bool
	info     Info
	acm      ACM
	log      rlog.Logger
	enc      wire.EncodingVersion
	limits   wire.Limits

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	state        atomic.Uint32
	lastActivity atomic.Int64

	dispatchMu sync.RWMutex
	dispatch   DispatchFunc

	nextId int32

	pendingMu sync.Mutex
	pending   map[int32]*OutgoingRequest
	pendingWG sync.WaitGroup

	// dispatchWG tracks in-flight server-side dispatch goroutines spawned
	// by handleRequest/handleBatchRequest, so a graceful Close can wait
	// for them to finish and send their reply before tearing the wire down.
	dispatchWG sync.WaitGroup

	batchMu   sync.Mutex
	batch     []batchEntry
	batchSize int

	writeCh   chan []byte
	closeOnce sync.Once
}

func newConnection(t transport.Transceiver, incoming bool, info Info, acm ACM, log rlog.Logger, enc wire.EncodingVersion, limits wire.Limits) *connModel {
	c := &connModel{
		t:        t,
		incoming: incoming,
		info:     info,
		acm:      acm,
		log:      log.With(info.LogFields()...),
		enc:      enc,
		limits:   limits,
		pending:  make(map[int32]*OutgoingRequest),
		writeCh:  make(chan []byte, 16),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.state.Store(uint32(StateNotInitialized))
	c.touch()
	return c
}

func (c *connModel) Info() Info   { return c.info }
func (c *connModel) State() State { return State(c.state.Load()) }

func (c *connModel) touch() { c.lastActivity.Store(time.Now().UnixNano()) }

func (c *connModel) idleFor() time.Duration {
	return time.Since(time.Unix(0, c.lastActivity.Load()))
}

func (c *connModel) RegisterDispatcher(fn DispatchFunc) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()
	c.dispatch = fn
}

func (c *connModel) Start(ctx context.Context) error {
	if _, err := c.t.Initialize(nil, nil); err != nil {
		return err
	}
	c.state.Store(uint32(StateNotValidated))

	c.wg.Add(1)
	go c.writeLoop()

	if c.incoming {
		if err := c.send(proto.MessageValidateConnection, nil); err != nil {
			return err
		}
	} else {
		if err := c.readValidate(ctx); err != nil {
			return err
		}
	}

	c.state.Store(uint32(StateActive))
	c.log.Info("connection active", fields.Bool("incoming", c.incoming))

	c.wg.Add(1)
	go c.readLoop()

	return nil
}

func (c *connModel) readValidate(ctx context.Context) error {
	hdr, body, err := c.readFrame(ctx)
	if err != nil {
		return ValidationFailedError.Error(err)
	}
	if hdr.Type != proto.MessageValidateConnection || len(body) != 0 {
		return ValidationFailedError.Errorf("unexpected frame type %s during handshake", hdr.Type)
	}
	return nil
}

func (c *connModel) SendRequest(req *OutgoingRequest) error {
	if c.State() != StateActive {
		return NotActiveError.Error()
	}

	if req.OneWay {
		// Request id 0 is the reserved oneway sentinel.
		req.RequestId = 0
	} else if c.incoming {
		req.RequestId = atomic.AddInt32(&c.nextId, -1)
	} else {
		req.RequestId = atomic.AddInt32(&c.nextId, 1)
	}

	if !req.OneWay {
		c.pendingMu.Lock()
		c.pending[req.RequestId] = req
		c.pendingMu.Unlock()
		c.pendingWG.Add(1)
	}

	os := wire.NewOutputStream(c.enc, c.limits)
	defer os.Release()
	os.WriteInt32(req.RequestId)
	os.WriteBool(req.OneWay)
	os.WriteString(req.Operation)
	os.WriteByteSeq(req.Body)

	if err := c.send(proto.MessageRequest, os.Bytes()); err != nil {
		if !req.OneWay {
			c.pendingMu.Lock()
			_, ok := c.pending[req.RequestId]
			delete(c.pending, req.RequestId)
			c.pendingMu.Unlock()
			if ok {
				c.pendingWG.Done()
			}
		}
		return err
	}
	return nil
}

// batchEntry is one oneway sub-request accumulated in a connection's batch
// buffer, awaiting a flush onto the wire as part of a BatchRequest frame.
type batchEntry struct {
	operation string
	body      []byte
}

// size estimates this entry's encoded footprint (size-prefixed string plus
// size-prefixed byte sequence) for the BatchAutoFlushSize threshold check.
func (e batchEntry) size() int {
	return len(e.operation) + len(e.body) + 10
}

// QueueBatchRequest appends operation/body to the per-connection batch
// buffer as an id-less oneway sub-request (spec's BatchRequest framing:
// count:i32 followed by count concatenated request bodies, no per-request
// id since every batched invocation is implicitly oneway). Auto-flushes
// first if ACM.BatchAutoFlushSize is set and appending would overflow it.
func (c *connModel) QueueBatchRequest(operation string, body []byte) error {
	if c.State() != StateActive {
		return NotActiveError.Error()
	}

	entry := batchEntry{operation: operation, body: body}

	c.batchMu.Lock()
	if max := c.acm.BatchAutoFlushSize; max > 0 && len(c.batch) > 0 && c.batchSize+entry.size() > max {
		if err := c.flushBatchLocked(); err != nil {
			c.batchMu.Unlock()
			return err
		}
	}
	c.batch = append(c.batch, entry)
	c.batchSize += entry.size()
	c.batchMu.Unlock()
	return nil
}

// FlushBatchRequests atomically swaps the batch buffer onto the wire as
// one BatchRequest frame (spec §5: "flushBatchRequests atomically swaps
// the buffer onto the wire").
func (c *connModel) FlushBatchRequests() error {
	c.batchMu.Lock()
	defer c.batchMu.Unlock()
	return c.flushBatchLocked()
}

// flushBatchLocked must be called with batchMu held.
func (c *connModel) flushBatchLocked() error {
	if len(c.batch) == 0 {
		return nil
	}

	entries := c.batch
	c.batch = nil
	c.batchSize = 0

	os := wire.NewOutputStream(c.enc, c.limits)
	defer os.Release()
	os.WriteInt32(int32(len(entries)))
	for _, e := range entries {
		os.WriteString(e.operation)
		os.WriteByteSeq(e.body)
	}

	return c.send(proto.MessageBatchRequest, os.Bytes())
}

func (c *connModel) sendReply(requestId int32, status liberr.ReplyStatus, body []byte) error {
	os := wire.NewOutputStream(c.enc, c.limits)
	defer os.Release()
	os.WriteInt32(requestId)
	os.WriteByte(byte(status))
	os.WriteByteSeq(body)
	return c.send(proto.MessageReply, os.Bytes())
}

func (c *connModel) sendHeartbeat() {
	if err := c.send(proto.MessageHeartbeat, nil); err != nil {
		c.log.Warn("heartbeat send failed", fields.Err(err))
	}
}

func (c *connModel) send(t proto.MessageType, body []byte) error {
	hdr := proto.NewHeader(t, c.enc, int32(proto.HeaderSize+len(body)))
	raw := hdr.Marshal()

	frame := make([]byte, 0, proto.HeaderSize+len(body))
	frame = append(frame, raw[:]...)
	frame = append(frame, body...)

	select {
	case c.writeCh <- frame:
		return nil
	case <-c.ctx.Done():
		return SendQueueClosedError.Error()
	}
}

func (c *connModel) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case frame, ok := <-c.writeCh:
			if !ok {
				return
			}
			if _, err := c.t.Write(frame); err != nil {
				c.fail(err)
				return
			}
			c.touch()
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *connModel) readFrame(ctx context.Context) (proto.Header, []byte, error) {
	var raw [proto.HeaderSize]byte
	if _, err := io.ReadFull(ioReader{c: c, ctx: ctx}, raw[:]); err != nil {
		return proto.Header{}, nil, err
	}
	hdr, err := proto.Unmarshal(raw[:], c.limits.MessageSizeMax)
	if err != nil {
		return proto.Header{}, nil, err
	}

	bodyLen := int(hdr.Size) - proto.HeaderSize
	if bodyLen == 0 {
		return hdr, nil, nil
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(ioReader{c: c, ctx: ctx}, body); err != nil {
		return proto.Header{}, nil, err
	}
	return hdr, body, nil
}

// ioReader adapts a transceiver's Read to io.Reader so io.ReadFull can
// drive it across short reads, bailing out early if ctx is canceled.
type ioReader struct {
	c   *connModel
	ctx context.Context
}

func (r ioReader) Read(p []byte) (int, error) {
	select {
	case <-r.ctx.Done():
		return 0, r.ctx.Err()
	default:
	}
	return r.c.t.Read(p)
}

func (c *connModel) readLoop() {
	defer c.wg.Done()
	for {
		hdr, body, err := c.readFrame(c.ctx)
		if err != nil {
			if c.State() != StateClosed && c.State() != StateFinished {
				c.fail(err)
			}
			return
		}
		c.touch()

		switch hdr.Type {
		case proto.MessageHeartbeat:
			c.log.Debug("heartbeat received")

		case proto.MessageCloseConnection:
			c.log.Info("close connection received")
			// Close waits for this very readLoop goroutine to exit, so it
			// must run from elsewhere: returning below is what lets it
			// exit, after which Close's wg.Wait unblocks. Gracefully lets
			// this side's own in-flight dispatches finish and reply before
			// the wire goes down.
			go func() { _ = c.Close(false, CloseGracefully, nil) }()
			return

		case proto.MessageRequest:
			c.handleRequest(body)

		case proto.MessageBatchRequest:
			c.handleBatchRequest(body)

		case proto.MessageReply:
			c.handleReply(body)

		default:
			c.log.Warn("unexpected frame type", fields.String("type", hdr.Type.String()))
		}
	}
}

// handleRequest decodes one inbound request frame. The wire package signals
// malformed input by panicking (liberr.MarshalError/UnmarshalError), so a
// corrupt frame from a misbehaving peer is recovered here and turned into a
// connection failure instead of taking down the read loop's goroutine.
func (c *connModel) handleRequest(body []byte) {
	var requestId int32
	var oneWay bool
	var operation string
	var payload []byte

	if !c.decodeSafe(func() {
		is := wire.NewInputStream(body, c.enc, c.limits, nil, nil)
		defer is.Release()
		requestId = is.ReadInt32()
		oneWay = is.ReadBool()
		operation = is.ReadString()
		payload = is.ReadByteSeq()
	}) {
		return
	}

	c.dispatchMu.RLock()
	fn := c.dispatch
	c.dispatchMu.RUnlock()

	if fn == nil {
		if !oneWay {
			_ = c.sendReply(requestId, liberr.ReplyObjectNotExist, nil)
		}
		return
	}

	c.dispatchWG.Add(1)
	go func() {
		defer c.dispatchWG.Done()
		status, resp := c.dispatchSafe(fn, requestId, operation, payload)
		if !oneWay {
			if err := c.sendReply(requestId, status, resp); err != nil {
				c.log.Warn("reply send failed", fields.Err(err))
			}
		}
	}()
}

// handleBatchRequest decodes one inbound BatchRequest frame: count:i32
// followed by count concatenated (operation, body) sub-requests, none of
// which carry a request id since every batched invocation is implicitly
// oneway (spec §4.2).
func (c *connModel) handleBatchRequest(body []byte) {
	var entries []batchEntry

	if !c.decodeSafe(func() {
		is := wire.NewInputStream(body, c.enc, c.limits, nil, nil)
		defer is.Release()
		count := is.ReadInt32()
		entries = make([]batchEntry, 0, count)
		for i := int32(0); i < count; i++ {
			op := is.ReadString()
			payload := is.ReadByteSeq()
			entries = append(entries, batchEntry{operation: op, body: payload})
		}
	}) {
		return
	}

	c.dispatchMu.RLock()
	fn := c.dispatch
	c.dispatchMu.RUnlock()

	if fn == nil {
		return
	}

	for _, e := range entries {
		c.dispatchWG.Add(1)
		go func(e batchEntry) {
			defer c.dispatchWG.Done()
			// Request id 0 is the reserved oneway sentinel; batched
			// sub-requests have none of their own and never get a reply.
			c.dispatchSafe(fn, 0, e.operation, e.body)
		}(e)
	}
}

// dispatchSafe invokes fn and recovers a panicking servant, reporting it
// back as ReplyUnknownException the way a server-side unexpected failure
// is meant to surface to the caller instead of killing this goroutine.
func (c *connModel) dispatchSafe(fn DispatchFunc, requestId int32, operation string, payload []byte) (status liberr.ReplyStatus, body []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("servant dispatch panicked",
				fields.Int("request-id", int(requestId)),
				fields.String("operation", operation),
				fields.String("panic", toString(r)))
			status, body = liberr.ReplyUnknownException, nil
		}
	}()
	return fn(c.ctx, requestId, operation, payload, c.enc)
}

func (c *connModel) handleReply(body []byte) {
	var requestId int32
	var status liberr.ReplyStatus
	var payload []byte

	if !c.decodeSafe(func() {
		is := wire.NewInputStream(body, c.enc, c.limits, nil, nil)
		defer is.Release()
		requestId = is.ReadInt32()
		status = liberr.ReplyStatus(is.ReadByte())
		payload = is.ReadByteSeq()
	}) {
		return
	}

	c.pendingMu.Lock()
	req, ok := c.pending[requestId]
	if ok {
		delete(c.pending, requestId)
	}
	c.pendingMu.Unlock()

	if !ok {
		c.log.Warn("reply for unknown request", fields.Int("request-id", int(requestId)))
		return
	}

	c.pendingWG.Done()

	select {
	case req.Reply <- OutgoingReply{Status: status, Body: payload}:
	case <-c.ctx.Done():
	}
}

// Close tears down the connection per mode. CloseForcefully cancels and
// fails every pending invocation immediately. CloseGracefully and
// CloseGracefullyWithWait additionally wait for dispatchWG, so in-flight
// server-side dispatches started by handleRequest/handleBatchRequest get a
// chance to send their reply before the wire goes down. CloseGracefullyWithWait
// further blocks an initiator until its own locally pending invocations on
// this connection have all resolved, so none of them surface ConnectionLost
// (spec §4.4, scenario 5: "client blocks until reply arrives ... no
// ConnectionLost surfaced to caller").
func (c *connModel) Close(initiator bool, mode CloseMode, err error) error {
	prev := State(c.state.Load())
	if prev == StateClosed || prev == StateFinished {
		return nil
	}

	c.state.Store(uint32(StateClosing))
	c.log.Info("connection closing",
		fields.Bool("initiator", initiator),
		fields.String("mode", mode.String()),
		fields.Err(err))

	if initiator && mode == CloseGracefullyWithWait {
		c.pendingWG.Wait()
	}

	if initiator && prev == StateActive {
		c.state.Store(uint32(StateClosingPending))
		_ = c.send(proto.MessageCloseConnection, nil)
	}

	if mode != CloseForcefully {
		c.dispatchWG.Wait()
	}

	c.closeOnce.Do(func() {
		c.cancel()
		close(c.writeCh)
		_ = c.t.Close()
	})

	c.wg.Wait()
	c.state.Store(uint32(StateClosed))

	c.failPending(err)
	c.state.Store(uint32(StateFinished))
	c.log.Info("connection finished")

	return nil
}

func (c *connModel) failPending(err error) {
	if err == nil {
		err = liberr.LocalConnectionLost.Error()
	}
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[int32]*OutgoingRequest)
	c.pendingMu.Unlock()

	for _, req := range pending {
		select {
		case req.Reply <- OutgoingReply{Status: liberr.ReplyUnknownLocalException, Err: err}:
		default:
		}
		c.pendingWG.Done()
	}
}

// decodeSafe runs fn, which is expected to decode a frame body via the wire
// package, and reports whether it completed without panicking. A panic is
// treated as a corrupt frame: the connection is failed with
// SystemEncodingCorrupt rather than propagated, since a single malformed
// frame from a peer must not crash the process.
func (c *connModel) decodeSafe(fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			c.log.Error("malformed frame body", fields.String("panic", toString(r)))
			c.fail(liberr.SystemEncodingCorrupt.Error())
		}
	}()
	fn()
	return true
}

func toString(v any) string {
	if err, isErr := v.(error); isErr {
		return err.Error()
	}
	if s, isStr := v.(string); isStr {
		return s
	}
	return "unknown panic value"
}

// fail reports a read/write/decode failure and closes the connection. It
// may be called from inside the readLoop or writeLoop goroutine itself, and
// Close blocks until both have exited, so the actual Close call is always
// handed off to a fresh goroutine to avoid a goroutine waiting on itself.
func (c *connModel) fail(err error) {
	c.log.Warn("connection failed", fields.Err(err))
	go func() { _ = c.Close(false, CloseForcefully, err) }()
}

// factoryModel runs a single ACM sweep goroutine over every connection it
// created, grounded on the teacher's monitor/pool package running one
// background goroutine fanning out over many independent checks instead
// of one timer per check.
type factoryModel struct {
	log    rlog.FuncLog
	enc    wire.EncodingVersion
	limits wire.Limits

	mu    sync.Mutex
	conns map[*connModel]struct{}

	interval duration.Duration
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewFactory builds a connection Factory whose ACM sweep goroutine runs
// every interval (clamped to at least 100ms).
func NewFactory(log rlog.FuncLog, enc wire.EncodingVersion, limits wire.Limits, interval duration.Duration) Factory {
	if interval.Time() < 100*time.Millisecond {
		interval = duration.Duration(100 * time.Millisecond)
	}

	f := &factoryModel{
		log:      log,
		enc:      enc,
		limits:   limits,
		conns:    make(map[*connModel]struct{}),
		interval: interval,
		done:     make(chan struct{}),
	}

	f.wg.Add(1)
	go f.sweepLoop()

	return f
}

func (f *factoryModel) New(t transport.Transceiver, incoming bool, info Info, acm ACM) Connection {
	c := newConnection(t, incoming, info, acm, f.log(), f.enc, f.limits)

	f.mu.Lock()
	f.conns[c] = struct{}{}
	f.mu.Unlock()

	return c
}

func (f *factoryModel) sweepLoop() {
	defer f.wg.Done()
	t := time.NewTicker(f.interval.Time())
	defer t.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-t.C:
			f.sweepOnce()
		}
	}
}

func (f *factoryModel) sweepOnce() {
	f.mu.Lock()
	snapshot := make([]*connModel, 0, len(f.conns))
	for c := range f.conns {
		snapshot = append(snapshot, c)
	}
	f.mu.Unlock()

	for _, c := range snapshot {
		f.sweepOne(c)
	}
}

func (f *factoryModel) sweepOne(c *connModel) {
	if c.State() != StateActive {
		if c.State() == StateFinished {
			f.mu.Lock()
			delete(f.conns, c)
			f.mu.Unlock()
		}
		return
	}

	timeout := c.acm.Timeout.Time()
	if timeout <= 0 {
		return
	}
	idle := c.idleFor()

	switch c.acm.Heartbeat {
	case HeartbeatAlways:
		c.sendHeartbeat()
	case HeartbeatOnIdle:
		if idle >= timeout/2 {
			c.sendHeartbeat()
		}
	}

	switch c.acm.Close {
	case CloseOnIdle:
		if idle >= timeout {
			c.log.Info("ACM closing idle connection")
			_ = c.Close(true, CloseGracefully, liberr.LocalTimeout.Error())
		}
	case CloseOnInvocation:
		if idle >= timeout && c.hasPending() {
			c.log.Info("ACM closing connection with overdue pending invocation")
			_ = c.Close(true, CloseGracefully, liberr.LocalTimeout.Error())
		}
	case CloseOnInvocationAndIdle:
		if idle >= timeout {
			c.log.Info("ACM closing idle connection")
			_ = c.Close(true, CloseGracefully, liberr.LocalTimeout.Error())
		}
	case CloseOnIdleForceful:
		if idle >= timeout {
			c.log.Info("ACM force-closing idle connection")
			_ = c.Close(true, CloseForcefully, liberr.LocalTimeout.Error())
		}
	}
}

// hasPending reports whether any locally initiated invocation on this
// connection is still awaiting its reply.
func (c *connModel) hasPending() bool {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.pending) > 0
}

func (f *factoryModel) Shutdown() {
	close(f.done)
	f.wg.Wait()

	f.mu.Lock()
	snapshot := make([]*connModel, 0, len(f.conns))
	for c := range f.conns {
		snapshot = append(snapshot, c)
	}
	f.conns = make(map[*connModel]struct{})
	f.mu.Unlock()

	for _, c := range snapshot {
		_ = c.Close(true, CloseForcefully, nil)
	}
}
