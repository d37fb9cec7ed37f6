package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"taskpulse/pkg/exception"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultPingInterval   = 10 * time.Second
	DefaultMaxAttempts    = 10
	DefaultCooldown       = time.Minute
)

// Option defines the channel runtime configuration.
type Option struct {
	// Endpoint builds the default dialer. Required when Dialer is nil.
	Endpoint Endpoint
	// Dialer opens transports. Optional; default NewDialer(Endpoint).
	Dialer Dialer
	// Clock schedules every timer. Optional; default SystemClock().
	Clock Clock
	// Backoff defines reconnect delays. Optional; default DefaultBackoff when all fields are zero.
	Backoff Backoff
	// ConnectTimeout bounds each attempt to reach open. Optional; default DefaultConnectTimeout.
	ConnectTimeout time.Duration
	// PingInterval is the keep-alive period while open. Optional; default DefaultPingInterval.
	PingInterval time.Duration
	// MaxAttempts is the reconnect budget before cooling down. Optional; default DefaultMaxAttempts.
	MaxAttempts int
	// Cooldown is the pause after the budget is spent. Optional; default DefaultCooldown.
	Cooldown time.Duration
	// Observer receives lifecycle events. Optional.
	Observer Observer
	// OnConnect runs after every transition to open. Optional.
	OnConnect func()
	// OnDisconnect runs when an open transport is lost, with the cause. Optional.
	OnDisconnect func(err error)
}

func (opt Option) withDefaults() (Option, error) {
	if opt.Dialer == nil {
		if opt.Endpoint.Host == "" {
			return opt, exception.ErrEmptyHost
		}
		opt.Dialer = NewDialer(opt.Endpoint)
	}
	if opt.Clock == nil {
		opt.Clock = SystemClock()
	}
	if opt.Backoff == (Backoff{}) {
		opt.Backoff = DefaultBackoff()
	}
	if opt.ConnectTimeout <= 0 {
		opt.ConnectTimeout = DefaultConnectTimeout
	}
	if opt.PingInterval <= 0 {
		opt.PingInterval = DefaultPingInterval
	}
	if opt.MaxAttempts <= 0 {
		opt.MaxAttempts = DefaultMaxAttempts
	}
	if opt.Cooldown <= 0 {
		opt.Cooldown = DefaultCooldown
	}
	if opt.Observer == nil {
		opt.Observer = nopObserver{}
	}
	return opt, nil
}

// Stats is a point-in-time view of a channel.
type Stats struct {
	Status      Status
	Generation  uint64
	Attempts    int
	Delay       time.Duration
	Subscribers int
}

// Channel is a reconnecting notification channel.
//
// Every dial, read and timer callback captures the generation current when it was
// created and does nothing once the generation has moved on, so work belonging to a
// replaced transport can never touch the current one.
type Channel struct {
	id   string
	opt  Option
	subs *subscribers

	mu           sync.Mutex
	token        string
	status       Status
	generation   uint64
	conn         Conn
	cancelDial   context.CancelFunc
	attempts     int
	delay        time.Duration
	connectTimer Timer
	keepAlive    Timer
	reconnect    Timer
}

// New validates the option and returns an idle channel.
func New(opt Option) (*Channel, error) {
	opt, err := opt.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Channel{
		id:    uuid.NewString(),
		opt:   opt,
		subs:  newSubscribers(),
		delay: opt.Backoff.floor(),
	}, nil
}

// Open creates a channel and immediately starts connecting with token.
func Open(token string, opt Option) (*Channel, error) {
	c, err := New(opt)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(token); err != nil {
		return nil, err
	}
	return c, nil
}

// ID identifies the channel in logs.
func (c *Channel) ID() string {
	return c.id
}

// Connect drops the current transport, if any, and starts a new attempt with token.
// An empty token is a configuration error: nothing is dialed and nothing is retried.
func (c *Channel) Connect(token string) error {
	if token == "" {
		logs.Errorf("websocket[%s]: cannot connect, no token provided", c.id)
		return exception.ErrEmptyToken
	}

	c.mu.Lock()
	if c.status == StatusClosed {
		c.mu.Unlock()
		return exception.ErrWebSocketChannelClosed
	}
	c.token = token
	c.stopTimerLocked(&c.reconnect)
	fx := c.connectLocked()
	c.mu.Unlock()

	c.apply(fx)
	return nil
}

// Subscribe registers handler for every delivered message and returns a func that
// removes exactly this registration.
func (c *Channel) Subscribe(handler Handler) (unsubscribe func()) {
	c.mu.Lock()
	closed := c.status == StatusClosed
	c.mu.Unlock()
	if closed {
		return func() {}
	}
	return c.subs.Add(handler)
}

// Shutdown cancels all timers, closes the transport and clears subscribers.
// The channel never reconnects afterwards. Calling it again is a no-op.
func (c *Channel) Shutdown() {
	c.mu.Lock()
	if c.status == StatusClosed {
		c.mu.Unlock()
		return
	}
	fx := c.teardownLocked(exception.ErrWebSocketChannelClosed)
	c.stopTimerLocked(&c.reconnect)
	c.generation++
	c.status = StatusClosed
	c.mu.Unlock()

	c.subs.Clear()
	c.apply(fx)
	logs.Infof("websocket[%s]: closed", c.id)
}

// Status returns the current lifecycle state.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Stats returns a snapshot of the channel state.
func (c *Channel) Stats() Stats {
	c.mu.Lock()
	stats := Stats{
		Status:     c.status,
		Generation: c.generation,
		Attempts:   c.attempts,
		Delay:      c.delay,
	}
	c.mu.Unlock()
	stats.Subscribers = c.subs.Count()
	return stats
}

// effects are transport closes and hook invocations collected under the lock and
// run after it is released.
type effects struct {
	closing      Conn
	connected    bool
	disconnected bool
	err          error
}

func (c *Channel) apply(fx effects) {
	if fx.closing != nil {
		if err := fx.closing.Close(CloseNormal, "session_end"); err != nil {
			logs.Debugf("websocket[%s]: close transport, err: %+v", c.id, err)
		}
	}
	if fx.connected && c.opt.OnConnect != nil {
		c.opt.OnConnect()
	}
	if fx.disconnected && c.opt.OnDisconnect != nil {
		c.opt.OnDisconnect(fx.err)
	}
}

func (c *Channel) currentLocked(gen uint64) bool {
	return gen == c.generation && c.status != StatusClosed
}

func (c *Channel) stopTimerLocked(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// teardownLocked forgets the transport, the keep-alive timer and any in-flight dial.
// The transport itself is closed by apply once the lock is released.
func (c *Channel) teardownLocked(cause error) effects {
	var fx effects
	c.stopTimerLocked(&c.keepAlive)
	c.stopTimerLocked(&c.connectTimer)
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	if c.conn != nil {
		fx.closing = c.conn
		c.conn = nil
	}
	if c.status == StatusOpen {
		c.opt.Observer.ObserveDisconnect()
		fx.disconnected = true
		fx.err = cause
	}
	return fx
}

func (c *Channel) connectLocked() effects {
	fx := c.teardownLocked(nil)
	c.generation++
	gen := c.generation
	c.status = StatusConnecting

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel
	c.connectTimer = c.opt.Clock.AfterFunc(c.opt.ConnectTimeout, func() {
		c.onConnectTimeout(gen)
	})
	c.opt.Observer.ObserveDial()
	logs.Debugf("websocket[%s]: connecting, generation %d", c.id, gen)

	go c.dial(ctx, gen, c.token)
	return fx
}

func (c *Channel) dial(ctx context.Context, gen uint64, token string) {
	conn, err := c.opt.Dialer.Dial(ctx, token)

	c.mu.Lock()
	if !c.currentLocked(gen) || c.status == StatusOpen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close(CloseNormal, "stale_attempt")
		}
		return
	}
	if err != nil {
		logs.Errorf("websocket[%s]: dial failed, err: %+v", c.id, err)
		fx := c.failLocked(err)
		c.mu.Unlock()
		c.apply(fx)
		return
	}
	fx := c.openLocked(gen, conn)
	c.mu.Unlock()

	c.apply(fx)
	if c.sendPing(gen, conn) {
		go c.readLoop(gen, conn)
	}
}

func (c *Channel) openLocked(gen uint64, conn Conn) effects {
	c.stopTimerLocked(&c.connectTimer)
	c.conn = conn
	c.status = StatusOpen
	c.attempts = 0
	c.delay = c.opt.Backoff.floor()
	c.opt.Observer.ObserveOpen()
	logs.Infof("websocket[%s]: connected", c.id)

	c.scheduleKeepAliveLocked(gen)
	return effects{connected: true}
}

func (c *Channel) onConnectTimeout(gen uint64) {
	c.mu.Lock()
	if !c.currentLocked(gen) || c.status == StatusOpen {
		c.mu.Unlock()
		return
	}
	c.connectTimer = nil
	logs.Errorf("websocket[%s]: connection timeout after %s", c.id, c.opt.ConnectTimeout)
	fx := c.failLocked(exception.ErrWebSocketConnectTimeout)
	c.mu.Unlock()

	c.apply(fx)
}

func (c *Channel) scheduleKeepAliveLocked(gen uint64) {
	c.keepAlive = c.opt.Clock.AfterFunc(c.opt.PingInterval, func() {
		c.onKeepAlive(gen)
	})
}

func (c *Channel) onKeepAlive(gen uint64) {
	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		return
	}
	c.keepAlive = nil
	if c.status != StatusOpen || c.conn == nil {
		logs.Warnf("websocket[%s]: cannot send ping, status: %s", c.id, c.status)
		fx := c.failLocked(exception.ErrWebSocketNotConnected)
		c.mu.Unlock()
		c.apply(fx)
		return
	}
	conn := c.conn
	c.scheduleKeepAliveLocked(gen)
	c.mu.Unlock()

	c.sendPing(gen, conn)
}

// sendPing writes one keep-alive ping without holding the channel lock. A failed
// write is a disconnect of conn, unless conn has already been replaced.
func (c *Channel) sendPing(gen uint64, conn Conn) bool {
	err := c.write(conn, []byte(keywordPing))
	if err == nil {
		c.opt.Observer.ObservePing()
		return true
	}
	logs.Errorf("websocket[%s]: send ping, err: %+v", c.id, err)

	c.mu.Lock()
	if !c.currentLocked(gen) || c.conn != conn {
		c.mu.Unlock()
		return false
	}
	fx := c.failLocked(err)
	c.mu.Unlock()

	c.apply(fx)
	return false
}

// sendAck is best effort: write errors are only logged.
func (c *Channel) sendAck(conn Conn) {
	payload, err := encodeAck()
	if err != nil {
		logs.Errorf("websocket[%s]: encode ack, err: %+v", c.id, err)
		return
	}
	if err := c.write(conn, payload); err != nil {
		logs.Warnf("websocket[%s]: send ack, err: %+v", c.id, err)
		return
	}
	c.opt.Observer.ObserveAck()
}

func (c *Channel) write(conn Conn, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultWriteTimeout)
	defer cancel()
	return conn.Write(ctx, MessageText, payload)
}

// failLocked forgets the current transport and enters the reconnect path.
func (c *Channel) failLocked(cause error) effects {
	fx := c.teardownLocked(cause)
	c.generation++
	c.status = StatusConnecting
	c.handleReconnectLocked()
	return fx
}

// handleReconnectLocked schedules exactly one future attempt: after the current delay
// while the budget lasts, otherwise after the cooldown with counters reset.
func (c *Channel) handleReconnectLocked() {
	c.stopTimerLocked(&c.reconnect)
	gen := c.generation

	if c.attempts >= c.opt.MaxAttempts {
		logs.Errorf("websocket[%s]: max reconnection attempts reached, retry in %s", c.id, c.opt.Cooldown)
		c.opt.Observer.ObserveCooldown()
		c.reconnect = c.opt.Clock.AfterFunc(c.opt.Cooldown, func() {
			c.onCooldown(gen)
		})
		return
	}

	delay := c.delay
	c.attempts++
	c.delay = c.opt.Backoff.Grow(delay)
	c.opt.Observer.ObserveReconnect(c.attempts, delay)
	logs.Infof("websocket[%s]: reconnect attempt %d/%d in %s", c.id, c.attempts, c.opt.MaxAttempts, delay)
	c.reconnect = c.opt.Clock.AfterFunc(c.opt.Backoff.Wait(delay), func() {
		c.onReconnect(gen)
	})
}

func (c *Channel) onReconnect(gen uint64) {
	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		return
	}
	c.reconnect = nil
	fx := c.connectLocked()
	c.mu.Unlock()

	c.apply(fx)
}

func (c *Channel) onCooldown(gen uint64) {
	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		return
	}
	c.reconnect = nil
	c.attempts = 0
	c.delay = c.opt.Backoff.floor()
	logs.Infof("websocket[%s]: resetting reconnection attempts", c.id)
	fx := c.connectLocked()
	c.mu.Unlock()

	c.apply(fx)
}

func (c *Channel) readLoop(gen uint64, conn Conn) {
	for {
		msgType, payload, err := conn.Read(context.Background())
		if err != nil {
			c.onReadError(gen, err)
			return
		}
		if msgType != MessageText && msgType != MessageBinary {
			continue
		}
		if !c.onMessage(gen, payload) {
			return
		}
	}
}

func (c *Channel) onReadError(gen uint64, err error) {
	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		return
	}
	logs.Warnf("websocket[%s]: disconnected, err: %+v", c.id, err)
	fx := c.failLocked(err)
	c.mu.Unlock()

	c.apply(fx)
}

// onMessage classifies and dispatches one inbound payload. It reports false once the
// generation is stale so the reader stops.
func (c *Channel) onMessage(gen uint64, raw []byte) bool {
	msg := Classify(raw)

	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		return false
	}
	var ackConn Conn
	switch msg.Kind {
	case KindUpdate:
		if c.status == StatusOpen {
			ackConn = c.conn
		}
	case KindPong:
		c.mu.Unlock()
		c.opt.Observer.ObserveDelivery(msg.Kind, 0)
		return true
	case KindPayload:
	}
	c.mu.Unlock()

	if ackConn != nil {
		c.sendAck(ackConn)
	}

	delivered := c.subs.Deliver(msg)
	c.opt.Observer.ObserveDelivery(msg.Kind, delivered)
	return true
}
