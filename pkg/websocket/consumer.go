package websocket

import "sync"

// Consumer buffers delivered messages so a goroutine can pull them with Next
// instead of being called back on the reader goroutine.
type Consumer struct {
	queue *MessageQueue
}

// NewConsumer creates a consumer with a bounded queue.
func NewConsumer(capacity int, policy OverflowPolicy) *Consumer {
	return &Consumer{
		queue: NewMessageQueue(capacity, policy),
	}
}

// Handler returns the Handler to register with Channel.Subscribe.
func (c *Consumer) Handler() Handler {
	return func(msg Message) {
		c.enqueue(msg)
	}
}

// Next blocks until a message is available or the queue is closed.
func (c *Consumer) Next() (Message, bool) {
	if c == nil || c.queue == nil {
		return Message{}, false
	}
	return c.queue.Pop()
}

// Close stops the consumer. Messages already queued can still be read with Next.
func (c *Consumer) Close() {
	if c == nil || c.queue == nil {
		return
	}
	c.queue.Close()
}

// Len returns the number of queued messages.
func (c *Consumer) Len() int {
	if c == nil || c.queue == nil {
		return 0
	}
	return c.queue.Len()
}

// Dropped returns how many messages the overflow policy discarded.
func (c *Consumer) Dropped() uint64 {
	if c == nil || c.queue == nil {
		return 0
	}
	return c.queue.Dropped()
}

func (c *Consumer) enqueue(msg Message) bool {
	if c == nil || c.queue == nil {
		return false
	}
	return c.queue.Push(msg)
}

// MessageQueue is a bounded ring buffer for messages.
type MessageQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	buf      []Message
	head     int
	tail     int
	size     int
	dropped  uint64
	closed   bool
	policy   OverflowPolicy
}

// NewMessageQueue creates a bounded ring buffer.
func NewMessageQueue(capacity int, policy OverflowPolicy) *MessageQueue {
	if capacity <= 0 {
		capacity = 1
	}
	q := &MessageQueue{
		buf:    make([]Message, capacity),
		policy: policy,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a message according to the overflow policy.
func (q *MessageQueue) Push(msg Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.closed {
			return false
		}
		if q.size < len(q.buf) {
			q.buf[q.tail] = msg
			q.tail = (q.tail + 1) % len(q.buf)
			q.size++
			q.notEmpty.Signal()
			return true
		}
		switch q.policy {
		case OverflowBlock:
			q.notFull.Wait()
		case OverflowDropOldest:
			q.buf[q.head] = Message{}
			q.head = (q.head + 1) % len(q.buf)
			q.size--
			q.dropped++
		default:
			q.dropped++
			return false
		}
	}
}

// Pop dequeues the next message, blocking until available or closed.
// Messages queued before Close are still drained.
func (q *MessageQueue) Pop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.size > 0 {
			msg := q.buf[q.head]
			q.buf[q.head] = Message{}
			q.head = (q.head + 1) % len(q.buf)
			q.size--
			q.notFull.Signal()
			return msg, true
		}
		if q.closed {
			return Message{}, false
		}
		q.notEmpty.Wait()
	}
}

// Close stops the queue. Pending messages remain poppable.
func (q *MessageQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.mu.Unlock()
}

// Len returns the number of queued messages.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	size := q.size
	q.mu.Unlock()
	return size
}

// Dropped returns the number of messages discarded by the overflow policy.
func (q *MessageQueue) Dropped() uint64 {
	q.mu.Lock()
	dropped := q.dropped
	q.mu.Unlock()
	return dropped
}
