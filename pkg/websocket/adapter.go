package websocket

import (
	"context"
	"time"
)

// Conn is a minimal interface for an established WebSocket connection.
// Read blocks until a data message arrives or the connection fails.
// Implementations must return from Read with an error once Close is called.
type Conn interface {
	Read(ctx context.Context) (msgType MessageType, payload []byte, err error)
	Write(ctx context.Context, msgType MessageType, payload []byte) error
	Close(code CloseCode, reason string) error
}

// Dialer opens a new authenticated connection.
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// Timer is a single-shot scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call stopped it.
	Stop() bool
}

// Clock schedules callbacks. Channel never reads wall time directly.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Handler receives every message delivered to subscribers.
type Handler func(msg Message)

// Observer receives channel lifecycle events. All methods must be cheap and non-blocking.
type Observer interface {
	ObserveDial()
	ObserveOpen()
	ObserveDisconnect()
	ObserveReconnect(attempt int, delay time.Duration)
	ObserveCooldown()
	ObservePing()
	ObserveAck()
	ObserveDelivery(kind MessageKind, subscribers int)
}

type systemClock struct{}

// SystemClock returns a Clock backed by time.AfterFunc.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type nopObserver struct{}

func (nopObserver) ObserveDial() {}
func (nopObserver) ObserveOpen() {}
func (nopObserver) ObserveDisconnect() {}
func (nopObserver) ObserveReconnect(int, time.Duration) {}
func (nopObserver) ObserveCooldown() {}
func (nopObserver) ObservePing() {}
func (nopObserver) ObserveAck() {}
func (nopObserver) ObserveDelivery(MessageKind, int) {}
