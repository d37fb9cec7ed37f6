package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		desc   string
		raw    string
		kind   MessageKind
		parsed bool
		value  any
	}{
		{"update", "update", KindUpdate, false, nil},
		{"update with whitespace", "  update\r\n", KindUpdate, false, nil},
		{"pong", "pong", KindPong, false, nil},
		{"json object", `{"type":"task","id":3}`, KindPayload, true, map[string]any{"type": "task", "id": float64(3)}},
		{"json string", `"update"`, KindPayload, true, "update"},
		{"json array", `[1,2]`, KindPayload, true, []any{float64(1), float64(2)}},
		{"raw text", "hello there", KindPayload, false, nil},
		{"broken json", `{"type":`, KindPayload, false, nil},
		{"empty", "", KindPayload, false, nil},
		{"keyword is case sensitive", "UPDATE", KindPayload, false, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			msg := Classify([]byte(tc.raw))
			assert.Equal(t, tc.kind, msg.Kind)
			assert.Equal(t, tc.parsed, msg.Parsed)
			assert.Equal(t, tc.value, msg.Value)
			assert.Equal(t, tc.raw, msg.Text())
			assert.True(t, msg.Kind.IsAvailable())
		})
	}
}

func TestMessageUnmarshal(t *testing.T) {
	msg := Classify([]byte(`{"type":"task","id":3}`))

	var body struct {
		Type string `json:"type"`
		ID   int64  `json:"id"`
	}
	require.NoError(t, msg.Unmarshal(&body))
	assert.Equal(t, "task", body.Type)
	assert.EqualValues(t, 3, body.ID)
}

func TestEncodeAck(t *testing.T) {
	payload, err := encodeAck()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ack","message":"update_received"}`, string(payload))
}
