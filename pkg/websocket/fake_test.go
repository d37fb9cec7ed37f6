package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taskpulse/pkg/exception"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Duration
	seq   int
	f     func()
	done  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{}
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, at: c.now + d, seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	c.removeLocked(t)
	return true
}

func (c *fakeClock) removeLocked(target *fakeTimer) {
	for i, t := range c.timers {
		if t == target {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}

// Advance moves simulated time forward, firing due timers in order.
// Callbacks run without the clock lock so they may schedule or stop timers.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.at > target {
				continue
			}
			if next == nil || t.at < next.at || (t.at == next.at && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			break
		}
		c.removeLocked(next)
		next.done = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// Pending returns the remaining wait of every active timer.
func (c *fakeClock) Pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := make([]time.Duration, 0, len(c.timers))
	for _, t := range c.timers {
		pending = append(pending, t.at-c.now)
	}
	return pending
}

type fakeConn struct {
	inbox     chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	writes   []string
	writeErr error
	gate     chan struct{}
	blocked  atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbox:  make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) (MessageType, []byte, error) {
	select {
	case <-c.closed:
		return 0, nil, exception.ErrWebSocketConnectionClose
	case payload := <-c.inbox:
		return MessageText, payload, nil
	}
}

func (c *fakeConn) Write(ctx context.Context, msgType MessageType, payload []byte) error {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		c.blocked.Add(1)
		select {
		case <-gate:
		case <-c.closed:
			return exception.ErrWebSocketConnectionClose
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, string(payload))
	return nil
}

func (c *fakeConn) Close(code CloseCode, reason string) error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) Push(payload string) {
	c.inbox <- []byte(payload)
}

func (c *fakeConn) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

// BlockWrites stalls every write until ReleaseWrites or Close.
func (c *fakeConn) BlockWrites() {
	c.mu.Lock()
	c.gate = make(chan struct{})
	c.mu.Unlock()
}

func (c *fakeConn) ReleaseWrites() {
	c.mu.Lock()
	if c.gate != nil {
		close(c.gate)
		c.gate = nil
	}
	c.mu.Unlock()
}

func (c *fakeConn) FailWrites(err error) {
	c.mu.Lock()
	c.writeErr = err
	c.mu.Unlock()
}

func (c *fakeConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type dialMode int32

const (
	dialSucceed dialMode = iota
	dialFail
	dialBlock
)

var errDialRefused = exception.ErrWebSocketConnectionClose

type fakeDialer struct {
	mode     atomic.Int32
	attempts atomic.Int32
	canceled atomic.Int32

	mu     sync.Mutex
	tokens []string
	conns  []*fakeConn
}

func (d *fakeDialer) SetMode(mode dialMode) {
	d.mode.Store(int32(mode))
}

func (d *fakeDialer) Dial(ctx context.Context, token string) (Conn, error) {
	d.attempts.Add(1)
	d.mu.Lock()
	d.tokens = append(d.tokens, token)
	d.mu.Unlock()

	switch dialMode(d.mode.Load()) {
	case dialFail:
		return nil, errDialRefused
	case dialBlock:
		<-ctx.Done()
		d.canceled.Add(1)
		return nil, ctx.Err()
	}
	conn := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

func (d *fakeDialer) Attempts() int {
	return int(d.attempts.Load())
}

func (d *fakeDialer) Last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) Tokens() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.tokens...)
}

type recordingObserver struct {
	dials       atomic.Int32
	opens       atomic.Int32
	disconnects atomic.Int32
	reconnects  atomic.Int32
	cooldowns   atomic.Int32
	pings       atomic.Int32
	acks        atomic.Int32
	deliveries  atomic.Int32

	mu     sync.Mutex
	delays []time.Duration
}

func (o *recordingObserver) ObserveDial()       { o.dials.Add(1) }
func (o *recordingObserver) ObserveOpen()       { o.opens.Add(1) }
func (o *recordingObserver) ObserveDisconnect() { o.disconnects.Add(1) }
func (o *recordingObserver) ObserveCooldown()   { o.cooldowns.Add(1) }
func (o *recordingObserver) ObservePing()       { o.pings.Add(1) }
func (o *recordingObserver) ObserveAck()        { o.acks.Add(1) }

func (o *recordingObserver) ObserveReconnect(attempt int, delay time.Duration) {
	o.reconnects.Add(1)
	o.mu.Lock()
	o.delays = append(o.delays, delay)
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveDelivery(kind MessageKind, subscribers int) {
	o.deliveries.Add(int32(subscribers))
}

func (o *recordingObserver) Delays() []time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]time.Duration(nil), o.delays...)
}

type harness struct {
	ch       *Channel
	clock    *fakeClock
	dialer   *fakeDialer
	observer *recordingObserver
}

func newHarness(t *testing.T, opt Option) *harness {
	t.Helper()
	h := &harness{
		clock:    newFakeClock(),
		dialer:   &fakeDialer{},
		observer: &recordingObserver{},
	}
	opt.Clock = h.clock
	opt.Dialer = h.dialer
	opt.Observer = h.observer
	ch, err := New(opt)
	require.NoError(t, err)
	h.ch = ch
	t.Cleanup(ch.Shutdown)
	return h
}

const waitFor = 2 * time.Second
const tick = 2 * time.Millisecond

func (h *harness) waitStatus(t *testing.T, status Status) {
	t.Helper()
	require.Eventuallyf(t, func() bool {
		return h.ch.Status() == status
	}, waitFor, tick, "status should become %s, got %s", status, h.ch.Status())
}

func (h *harness) waitAttempts(t *testing.T, attempts int) {
	t.Helper()
	require.Eventuallyf(t, func() bool {
		return h.ch.Stats().Attempts == attempts
	}, waitFor, tick, "attempts should become %d, got %d", attempts, h.ch.Stats().Attempts)
}

// waitPinged waits for open and for the newest transport's first ping.
func (h *harness) waitPinged(t *testing.T) *fakeConn {
	t.Helper()
	h.waitStatus(t, StatusOpen)
	var conn *fakeConn
	require.Eventually(t, func() bool {
		conn = h.dialer.Last()
		return conn != nil && len(conn.Writes()) > 0
	}, waitFor, tick, "first ping should be written")
	return conn
}
