package obs

import (
	"sync/atomic"
	"time"

	"taskpulse/pkg/websocket"
)

const maxMessageKind = int(websocket.KindPayload)

// Metrics collects lightweight channel counters and reconnect delay stats.
// It implements websocket.Observer.
type Metrics struct {
	dials       uint64
	opens       uint64
	disconnects uint64
	reconnects  uint64
	cooldowns   uint64
	pings       uint64
	acks        uint64

	messages   [maxMessageKind + 1]uint64
	deliveries uint64

	reconnectDelay LatencyStats
	lastAttempt    int64
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Dials          uint64
	Opens          uint64
	Disconnects    uint64
	Reconnects     uint64
	Cooldowns      uint64
	Pings          uint64
	Acks           uint64
	Messages       map[websocket.MessageKind]uint64
	Deliveries     uint64
	LastAttempt    int
	ReconnectDelay LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

var _ websocket.Observer = (*Metrics)(nil)

func (m *Metrics) ObserveDial() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.dials, 1)
}

func (m *Metrics) ObserveOpen() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.opens, 1)
	atomic.StoreInt64(&m.lastAttempt, 0)
}

func (m *Metrics) ObserveDisconnect() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.disconnects, 1)
}

// ObserveReconnect counts a scheduled reconnect and records its delay.
func (m *Metrics) ObserveReconnect(attempt int, delay time.Duration) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.reconnects, 1)
	atomic.StoreInt64(&m.lastAttempt, int64(attempt))
	m.reconnectDelay.Observe(delay)
}

func (m *Metrics) ObserveCooldown() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.cooldowns, 1)
}

func (m *Metrics) ObservePing() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.pings, 1)
}

func (m *Metrics) ObserveAck() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.acks, 1)
}

// ObserveDelivery counts an inbound message and the handler calls it produced.
func (m *Metrics) ObserveDelivery(kind websocket.MessageKind, subscribers int) {
	if m == nil {
		return
	}
	idx := int(kind)
	if idx >= 0 && idx < len(m.messages) {
		atomic.AddUint64(&m.messages[idx], 1)
	}
	if subscribers > 0 {
		atomic.AddUint64(&m.deliveries, uint64(subscribers))
	}
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	messages := make(map[websocket.MessageKind]uint64)
	for i := range m.messages {
		if v := atomic.LoadUint64(&m.messages[i]); v > 0 {
			messages[websocket.MessageKind(i)] = v
		}
	}
	return Snapshot{
		Dials:          atomic.LoadUint64(&m.dials),
		Opens:          atomic.LoadUint64(&m.opens),
		Disconnects:    atomic.LoadUint64(&m.disconnects),
		Reconnects:     atomic.LoadUint64(&m.reconnects),
		Cooldowns:      atomic.LoadUint64(&m.cooldowns),
		Pings:          atomic.LoadUint64(&m.pings),
		Acks:           atomic.LoadUint64(&m.acks),
		Messages:       messages,
		Deliveries:     atomic.LoadUint64(&m.deliveries),
		LastAttempt:    int(atomic.LoadInt64(&m.lastAttempt)),
		ReconnectDelay: m.reconnectDelay.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
