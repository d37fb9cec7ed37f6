package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscribersDuplicateHandlerIndependent(t *testing.T) {
	subs := newSubscribers()
	count := 0
	handler := func(Message) { count++ }

	removeFirst := subs.Add(handler)
	removeSecond := subs.Add(handler)
	assert.Equal(t, 2, subs.Count())

	assert.Equal(t, 2, subs.Deliver(Message{Kind: KindUpdate}))
	assert.Equal(t, 2, count)

	removeFirst()
	removeFirst()
	assert.Equal(t, 1, subs.Count())
	assert.Equal(t, 1, subs.Deliver(Message{Kind: KindUpdate}))
	assert.Equal(t, 3, count)

	removeSecond()
	assert.Equal(t, 0, subs.Deliver(Message{Kind: KindUpdate}))
}

func TestSubscribersMutationDuringDelivery(t *testing.T) {
	subs := newSubscribers()
	var calls []string
	var removeSelf, removeLater func()

	removeSelf = subs.Add(func(Message) {
		calls = append(calls, "self")
		removeSelf()
	})
	subs.Add(func(Message) {
		calls = append(calls, "remover")
		removeLater()
		subs.Add(func(Message) { calls = append(calls, "added") })
	})
	removeLater = subs.Add(func(Message) { calls = append(calls, "later") })

	assert.NotPanics(t, func() { subs.Deliver(Message{Kind: KindUpdate}) })
	assert.Equal(t, []string{"self", "remover"}, calls)

	calls = nil
	subs.Deliver(Message{Kind: KindUpdate})
	assert.Equal(t, []string{"remover", "added"}, calls)
}

func TestSubscribersClear(t *testing.T) {
	subs := newSubscribers()
	subs.Add(func(Message) {})
	subs.Add(nil)
	assert.Equal(t, 1, subs.Count())

	subs.Clear()
	assert.Equal(t, 0, subs.Count())
	assert.Equal(t, 0, subs.Deliver(Message{Kind: KindPayload}))
}
