package websocket

import (
	"net/url"
	"strings"

	"taskpulse/pkg/exception"
)

const DefaultPath = "/ws"

// Endpoint describes where the notification server lives.
// It replaces any lookup of the host page's location.
type Endpoint struct {
	// Host is host[:port] of the server. Required.
	Host string
	// Secure upgrades the scheme to wss.
	Secure bool
	// Path is the upgrade path. Optional; default DefaultPath.
	Path string
}

// URL builds the dial URL with the percent-encoded token as query credential.
func (e Endpoint) URL(token string) (string, error) {
	if e.Host == "" {
		return "", exception.ErrEmptyHost
	}
	if token == "" {
		return "", exception.ErrEmptyToken
	}
	scheme := "ws"
	if e.Secure {
		scheme = "wss"
	}
	path := e.Path
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     e.Host,
		Path:     path,
		RawQuery: "token=" + escapeToken(token),
	}
	return u.String(), nil
}

// escapeToken percent-encodes everything outside the unreserved set, spaces included.
func escapeToken(token string) string {
	return strings.ReplaceAll(url.QueryEscape(token), "+", "%20")
}
