package task

import (
	"strings"
	"time"

	"github.com/yanun0323/errors"

	"taskpulse/pkg/exception"
)

// Priority ranks a task.
type Priority uint8

const (
	_priority_beg Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
	_priority_end
)

// DefaultPriority is assigned when a draft leaves the priority unset.
const DefaultPriority = PriorityMedium

func (p Priority) IsAvailable() bool {
	return p > _priority_beg && p < _priority_end
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	default:
		return ""
	}
}

// ParsePriority accepts the priority name in any case.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	default:
		return 0, errors.Wrap(exception.ErrTaskInvalidPriority, "parse priority").With("priority", s)
	}
}

func (p Priority) MarshalText() ([]byte, error) {
	if !p.IsAvailable() {
		return nil, errors.Wrap(exception.ErrTaskInvalidPriority, "marshal priority").With("priority", uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Filter selects tasks by completion.
type Filter uint8

const (
	_filter_beg Filter = iota
	FilterAll
	FilterCompleted
	FilterPending
	_filter_end
)

func (f Filter) IsAvailable() bool {
	return f > _filter_beg && f < _filter_end
}

func (f Filter) String() string {
	switch f {
	case FilterAll:
		return "all"
	case FilterCompleted:
		return "completed"
	case FilterPending:
		return "pending"
	default:
		return ""
	}
}

// ParseFilter maps all, completed and pending to a Filter. Empty means all.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FilterAll, nil
	case "completed", "done":
		return FilterCompleted, nil
	case "pending", "todo":
		return FilterPending, nil
	default:
		return 0, errors.Wrap(exception.ErrTaskInvalidFilter, "parse filter").With("filter", s)
	}
}

// Match reports whether t passes the filter.
func (f Filter) Match(t Task) bool {
	switch f {
	case FilterCompleted:
		return t.Completed
	case FilterPending:
		return !t.Completed
	default:
		return true
	}
}

// Task is a single tracked item.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Tags        []string   `json:"tags"`
}

// Draft carries the caller supplied fields of a new task.
type Draft struct {
	Title       string
	Description string
	Priority    Priority
	DueDate     *time.Time
	Tags        []string
}

// Patch holds partial updates. Nil fields are left untouched.
type Patch struct {
	Title       *string
	Description *string
	Completed   *bool
	Priority    *Priority
	DueDate     *time.Time
	ClearDue    bool
	Tags        []string
	SetTags     bool
}

// Counts is the number of tasks per filter.
type Counts struct {
	All       int `json:"all"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// CountOf tallies tasks by completion.
func CountOf(tasks []Task) Counts {
	c := Counts{All: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			c.Completed++
		}
	}
	c.Pending = c.All - c.Completed
	return c
}

// newTask validates a draft and fills its defaults.
func newTask(id int64, now time.Time, d Draft) (Task, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return Task{}, exception.ErrTaskEmptyTitle
	}
	priority := d.Priority
	if priority == 0 {
		priority = DefaultPriority
	}
	if !priority.IsAvailable() {
		return Task{}, errors.Wrap(exception.ErrTaskInvalidPriority, "new task").With("priority", uint8(priority))
	}
	return Task{
		ID:          id,
		Title:       title,
		Description: d.Description,
		CreatedAt:   now,
		Priority:    priority,
		DueDate:     d.DueDate,
		Tags:        normalizeTags(d.Tags),
	}, nil
}

// apply merges the patch into t.
func (p Patch) apply(t Task) (Task, error) {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return t, exception.ErrTaskEmptyTitle
		}
		t.Title = title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Priority != nil {
		if !p.Priority.IsAvailable() {
			return t, errors.Wrap(exception.ErrTaskInvalidPriority, "apply patch").With("priority", uint8(*p.Priority))
		}
		t.Priority = *p.Priority
	}
	if p.ClearDue {
		t.DueDate = nil
	} else if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
	if p.SetTags {
		t.Tags = normalizeTags(p.Tags)
	}
	return t, nil
}

// normalizeTags trims tags, drops empties and duplicates and never returns nil.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
