package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"taskpulse/internal/task"
	"taskpulse/pkg/exception"
	"taskpulse/pkg/websocket"
)

type fakeLoader struct {
	mu    sync.Mutex
	tasks []task.Task
	err   error
	calls int
}

func (l *fakeLoader) ListByFilter(_ context.Context, filter task.Filter) ([]task.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	var out []task.Task
	for _, t := range l.tasks {
		if filter.Match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (l *fakeLoader) Counts(context.Context) (task.Counts, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return task.CountOf(l.tasks), nil
}

func (l *fakeLoader) set(tasks ...task.Task) {
	l.mu.Lock()
	l.tasks = tasks
	l.mu.Unlock()
}

type fakeSource struct {
	mu       sync.Mutex
	handlers map[int]websocket.Handler
	next     int
}

func (s *fakeSource) Subscribe(handler websocket.Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = make(map[int]websocket.Handler)
	}
	s.next++
	id := s.next
	s.handlers[id] = handler
	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

func (s *fakeSource) emit(raw string) {
	s.mu.Lock()
	handlers := make([]websocket.Handler, 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()
	msg := websocket.Classify([]byte(raw))
	for _, h := range handlers {
		h(msg)
	}
}

func (s *fakeSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot")
		return Snapshot{}
	}
}

func TestRefresherRun(t *testing.T) {
	loader := &fakeLoader{}
	loader.set(task.Task{ID: 1, Title: "a"}, task.Task{ID: 2, Title: "b", Completed: true})
	src := &fakeSource{}
	snapshots := make(chan Snapshot, 8)
	payloads := make(chan websocket.Message, 8)

	r, err := New(loader, Option{
		Filter:    task.FilterPending,
		Sink:      func(s Snapshot) { snapshots <- s },
		OnPayload: func(m websocket.Message) { payloads <- m },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, src) }()

	first := receive(t, snapshots)
	assert.Equal(t, task.FilterPending, first.Filter)
	require.Len(t, first.Tasks, 1)
	assert.Equal(t, "a", first.Tasks[0].Title)
	assert.Equal(t, task.Counts{All: 2, Completed: 1, Pending: 1}, first.Counts)
	require.Equal(t, 1, src.count())

	loader.set(task.Task{ID: 1, Title: "a"}, task.Task{ID: 3, Title: "c"})
	src.emit("update")
	second := receive(t, snapshots)
	assert.Greater(t, second.Revision, first.Revision)
	assert.Len(t, second.Tasks, 2)

	src.emit(`{"type":"hello"}`)
	select {
	case msg := <-payloads:
		assert.True(t, msg.Parsed)
	case <-time.After(2 * time.Second):
		t.Fatal("payload not forwarded")
	}
	select {
	case snap := <-snapshots:
		t.Fatalf("payload triggered a refresh: %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
	assert.Equal(t, 0, src.count())
}

func TestRefresherKeepsRunningAfterLoadError(t *testing.T) {
	loader := &fakeLoader{err: exception.ErrInternal}
	src := &fakeSource{}
	snapshots := make(chan Snapshot, 8)

	r, err := New(loader, Option{Sink: func(s Snapshot) { snapshots <- s }})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx, src) }()

	require.Eventually(t, func() bool { return src.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	loader.mu.Lock()
	loader.err = nil
	loader.mu.Unlock()
	src.emit("update")

	snap := receive(t, snapshots)
	assert.Equal(t, task.FilterAll, snap.Filter)
}

func TestRefresh(t *testing.T) {
	loader := &fakeLoader{}
	var got []Snapshot
	r, err := New(loader, Option{Sink: func(s Snapshot) { got = append(got, s) }})
	require.NoError(t, err)

	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, snap.Revision, got[0].Revision)

	loader.err = exception.ErrInternal
	_, err = r.Refresh(context.Background())
	require.True(t, errors.Is(err, exception.ErrInternal))
	assert.Len(t, got, 1)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Option{Sink: func(Snapshot) {}})
	require.True(t, errors.Is(err, exception.ErrNilInstance))

	_, err = New(&fakeLoader{}, Option{})
	require.True(t, errors.Is(err, exception.ErrNilInstance))

	_, err = New(&fakeLoader{}, Option{Filter: task.Filter(9), Sink: func(Snapshot) {}})
	require.True(t, errors.Is(err, exception.ErrTaskInvalidFilter))
}
