package websocket

import "sync"

type subscriber struct {
	id      uint64
	handler Handler
}

// subscribers is the registry of message handlers owned by one Channel.
// Every registration gets its own id, so the same handler may be added twice and
// removed independently.
type subscribers struct {
	mu      sync.Mutex
	nextID  uint64
	entries map[uint64]Handler
	order   []uint64
}

func newSubscribers() *subscribers {
	return &subscribers{
		entries: make(map[uint64]Handler),
	}
}

// Add registers handler and returns a func removing exactly this registration.
func (s *subscribers) Add(handler Handler) (remove func()) {
	if handler == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.entries[id] = handler
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *subscribers) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return
	}
	delete(s.entries, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Clear drops every registration.
func (s *subscribers) Clear() {
	s.mu.Lock()
	clear(s.entries)
	s.order = nil
	s.mu.Unlock()
}

// Count returns the number of registrations.
func (s *subscribers) Count() int {
	s.mu.Lock()
	count := len(s.entries)
	s.mu.Unlock()
	return count
}

// Deliver calls every handler registered at the start of the pass, skipping those
// removed before their turn. Handlers run without the registry lock held, so they may
// subscribe or unsubscribe freely. It returns the number of handlers called.
func (s *subscribers) Deliver(msg Message) int {
	s.mu.Lock()
	snapshot := make([]subscriber, 0, len(s.order))
	for _, id := range s.order {
		snapshot = append(snapshot, subscriber{id: id, handler: s.entries[id]})
	}
	s.mu.Unlock()

	delivered := 0
	for _, sub := range snapshot {
		if !s.contains(sub.id) {
			continue
		}
		sub.handler(msg)
		delivered++
	}
	return delivered
}

func (s *subscribers) contains(id uint64) bool {
	s.mu.Lock()
	_, ok := s.entries[id]
	s.mu.Unlock()
	return ok
}
