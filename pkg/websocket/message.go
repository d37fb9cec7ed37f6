package websocket

import (
	"bytes"

	"github.com/bytedance/sonic"
)

// MessageKind tags an inbound message.
type MessageKind uint8

const (
	_kind_beg MessageKind = iota
	// KindUpdate means upstream data changed and subscribers should re-fetch.
	KindUpdate
	// KindPong is a liveness reply. It is never delivered to subscribers.
	KindPong
	// KindPayload is any other application message.
	KindPayload
	_kind_end
)

func (k MessageKind) IsAvailable() bool {
	return k > _kind_beg && k < _kind_end
}

func (k MessageKind) String() string {
	switch k {
	case KindUpdate:
		return "update"
	case KindPong:
		return "pong"
	case KindPayload:
		return "payload"
	default:
		return "unknown"
	}
}

// Wire keywords.
const (
	keywordUpdate = "update"
	keywordPong   = "pong"
	keywordPing   = "ping"
)

// Message is an inbound message after classification.
type Message struct {
	Kind MessageKind
	// Raw is the payload as received.
	Raw []byte
	// Value holds the decoded JSON when Kind is KindPayload and Raw parsed; otherwise nil.
	Value any
	// Parsed reports whether Value came from a successful JSON decode.
	Parsed bool
}

// IsUpdate reports whether the message is the re-fetch sentinel.
func (m Message) IsUpdate() bool {
	return m.Kind == KindUpdate
}

// Text returns the raw payload as a string.
func (m Message) Text() string {
	return string(m.Raw)
}

// Unmarshal decodes the raw payload into v.
func (m Message) Unmarshal(v any) error {
	return sonic.Unmarshal(m.Raw, v)
}

// Classify turns a raw inbound payload into a Message.
// Keywords are matched after trimming surrounding whitespace. Malformed JSON degrades
// to a raw payload instead of failing.
func Classify(raw []byte) Message {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case keywordUpdate:
		return Message{Kind: KindUpdate, Raw: raw}
	case keywordPong:
		return Message{Kind: KindPong, Raw: raw}
	}

	msg := Message{Kind: KindPayload, Raw: raw}
	if len(trimmed) == 0 {
		return msg
	}
	var value any
	if err := sonic.Unmarshal(trimmed, &value); err == nil {
		msg.Value = value
		msg.Parsed = true
	}
	return msg
}

// Ack is sent back after an update notification.
type Ack struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

var updateAck = Ack{Type: "ack", Message: "update_received"}

func encodeAck() ([]byte, error) {
	return sonic.Marshal(updateAck)
}
