package websocket

import "time"

// MessageType represents a WebSocket message type.
// Values match RFC 6455 opcodes where applicable.
type MessageType uint8

const (
	// MessageText is a text data frame.
	MessageText MessageType = 1
	// MessageBinary is a binary data frame.
	MessageBinary MessageType = 2
	// MessageClose is a close control frame.
	MessageClose MessageType = 8
	// MessagePing is a ping control frame.
	MessagePing MessageType = 9
	// MessagePong is a pong control frame.
	MessagePong MessageType = 10
)

// CloseCode is a WebSocket close code.
type CloseCode uint16

const (
	// CloseNormal indicates a normal closure.
	CloseNormal CloseCode = 1000
	// CloseGoingAway indicates the client is shutting down.
	CloseGoingAway CloseCode = 1001
)

// Status is the lifecycle state of a Channel.
type Status uint8

const (
	// StatusIdle is the state before the first connection attempt.
	StatusIdle Status = iota
	// StatusConnecting covers dialing and waiting for a scheduled reconnect.
	StatusConnecting
	// StatusOpen means the transport is established and the keep-alive timer runs.
	StatusOpen
	// StatusClosed is terminal and only reached through Shutdown.
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// OverflowPolicy defines queue behavior when full.
type OverflowPolicy uint8

const (
	// OverflowBlock blocks until space is available.
	OverflowBlock OverflowPolicy = iota
	// OverflowDropNewest drops the incoming item if the queue is full.
	OverflowDropNewest
	// OverflowDropOldest drops the oldest item to make room.
	OverflowDropOldest
)

// Backoff defines reconnect backoff behavior.
type Backoff struct {
	// Min is the floor delay, used for the first reconnect and after every successful open.
	Min time.Duration
	// Max is the ceiling delay.
	Max time.Duration
	// Factor multiplies the delay after each scheduled reconnect.
	Factor float64
	// Jitter adds randomization to the scheduled wait as a fraction of the delay (0-1).
	// The stored delay is never jittered.
	Jitter float64
}
