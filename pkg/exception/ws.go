package exception

import "github.com/yanun0323/errors"

// WS errors
var (
	ErrWebSocketConnectionClose = errors.New("websocket: connection closed")
	ErrWebSocketProtocol        = errors.New("websocket: protocol error")
	ErrWebSocketNotConnected    = errors.New("websocket: not connected")
	ErrWebSocketChannelClosed   = errors.New("websocket: channel closed")
	ErrWebSocketConnectTimeout  = errors.New("websocket: connect timeout")

	// ErrEmptyToken is a configuration error and is never retried.
	ErrEmptyToken = errors.New("websocket: empty token")
	// ErrEmptyHost is returned when the endpoint has no host.
	ErrEmptyHost = errors.New("websocket: empty host")
)
