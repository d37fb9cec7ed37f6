package websocket

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/yanun0323/errors"

	"taskpulse/pkg/exception"
)

const (
	DefaultDialerTimeout = 10 * time.Second
	DefaultWriteTimeout  = 5 * time.Second
)

type dialer struct {
	endpoint     Endpoint
	dialer       *gws.Dialer
	writeTimeout time.Duration
}

// NewDialer returns a Dialer that upgrades to the endpoint with the token in the query string.
func NewDialer(endpoint Endpoint) Dialer {
	host := endpoint.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return &dialer{
		endpoint: endpoint,
		dialer: &gws.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: DefaultDialerTimeout,
			TLSClientConfig: &tls.Config{
				ServerName: host,
				MinVersion: tls.VersionTLS12,
			},
		},
		writeTimeout: DefaultWriteTimeout,
	}
}

func (d *dialer) Dial(ctx context.Context, token string) (Conn, error) {
	target, err := d.endpoint.URL(token)
	if err != nil {
		return nil, err
	}
	conn, resp, err := d.dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrap(err, "dial websocket").With("status", resp.StatusCode)
		}
		return nil, errors.Wrap(err, "dial websocket")
	}
	return &wsConn{conn: conn, writeTimeout: d.writeTimeout}, nil
}

// wsConn serializes data frame writes; gorilla allows one concurrent writer.
type wsConn struct {
	conn         *gws.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
	closeOnce    sync.Once
	closeErr     error
}

func (c *wsConn) Read(ctx context.Context) (MessageType, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	for {
		msgType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
				return 0, nil, exception.ErrWebSocketConnectionClose
			}
			return 0, nil, err
		}
		switch msgType {
		case gws.TextMessage:
			return MessageText, payload, nil
		case gws.BinaryMessage:
			return MessageBinary, payload, nil
		}
	}
}

func (c *wsConn) Write(ctx context.Context, msgType MessageType, payload []byte) error {
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	switch msgType {
	case MessageText, MessageBinary:
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		if err := c.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
		return c.conn.WriteMessage(int(msgType), payload)
	case MessagePing, MessagePong, MessageClose:
		return c.conn.WriteControl(int(msgType), payload, deadline)
	default:
		return exception.ErrWebSocketProtocol
	}
}

func (c *wsConn) Close(code CloseCode, reason string) error {
	c.closeOnce.Do(func() {
		msg := gws.FormatCloseMessage(int(code), reason)
		_ = c.conn.WriteControl(gws.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
