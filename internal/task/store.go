package task

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// Store persists tasks.
type Store interface {
	List(ctx context.Context) ([]Task, error)
	ListByFilter(ctx context.Context, filter Filter) ([]Task, error)
	Add(ctx context.Context, draft Draft) (Task, error)
	// Update applies patch to the task with id. A missing id yields an error that
	// matches exception.ErrTaskNotFound under github.com/yanun0323/errors.Is.
	Update(ctx context.Context, id int64, patch Patch) (Task, error)
	// Delete reports whether a task was removed.
	Delete(ctx context.Context, id int64) (bool, error)
	Toggle(ctx context.Context, id int64) (Task, error)
	Counts(ctx context.Context) (Counts, error)
	Clear(ctx context.Context) error
	Close() error
}

// Op names a store mutation.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpToggle Op = "toggle"
	OpClear  Op = "clear"
)

// Change describes a committed mutation. ID is zero for OpClear.
type Change struct {
	Op Op
	ID int64
}

// Option is shared by every store backend.
type Option struct {
	// Now stamps CreatedAt and seeds IDs. Optional; default time.Now.
	Now func() time.Time
	// OnChange runs after every committed mutation. Optional.
	OnChange func(Change)
}

func (opt Option) now() time.Time {
	if opt.Now == nil {
		return time.Now()
	}
	return opt.Now()
}

func (opt Option) notify(op Op, id int64) {
	if opt.OnChange != nil {
		opt.OnChange(Change{Op: op, ID: id})
	}
}

// idSource hands out millisecond timestamps, bumped so every id is larger than the last.
type idSource struct {
	mu   sync.Mutex
	last int64
}

func (s *idSource) Seed(id int64) {
	s.mu.Lock()
	if id > s.last {
		s.last = id
	}
	s.mu.Unlock()
}

func (s *idSource) Next(now time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := now.UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id
}

// Query narrows a task list. Zero fields match everything.
type Query struct {
	// Text is matched case-insensitively against title and description.
	Text     string
	Priority Priority
	Tag      string
}

// Search returns the tasks matching q, keeping their order.
func Search(tasks []Task, q Query) []Task {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	tag := strings.TrimSpace(q.Tag)
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if text != "" &&
			!strings.Contains(strings.ToLower(t.Title), text) &&
			!strings.Contains(strings.ToLower(t.Description), text) {
			continue
		}
		if q.Priority != 0 && t.Priority != q.Priority {
			continue
		}
		if tag != "" && !slices.Contains(t.Tags, tag) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Tags returns every distinct tag in first-seen order.
func Tags(tasks []Task) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, t := range tasks {
		for _, tag := range t.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

func filterTasks(tasks []Task, filter Filter) []Task {
	if filter == FilterAll {
		return tasks
	}
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if filter.Match(t) {
			out = append(out, t)
		}
	}
	return out
}
