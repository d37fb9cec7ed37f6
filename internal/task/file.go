package task

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"taskpulse/pkg/exception"
)

// FileStore keeps every task in one JSON document on disk.
//
// The document is re-read on every call, so edits made by another process sharing
// the file are visible without a restart.
type FileStore struct {
	path string
	opt  Option
	mu   sync.Mutex
	ids  idSource
}

// NewFileStore opens the document at path, creating its directory when needed.
func NewFileStore(path string, opt Option) (*FileStore, error) {
	if path == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "new file store").With("path", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create store directory").With("path", path)
	}
	s := &FileStore{path: path, opt: opt}
	tasks, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		s.ids.Seed(t.ID)
	}
	return s, nil
}

// Path returns the document location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) List(ctx context.Context) ([]Task, error) {
	return s.ListByFilter(ctx, FilterAll)
}

func (s *FileStore) ListByFilter(_ context.Context, filter Filter) ([]Task, error) {
	if !filter.IsAvailable() {
		return nil, errors.Wrap(exception.ErrTaskInvalidFilter, "list tasks").With("filter", uint8(filter))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterTasks(s.read(), filter), nil
}

func (s *FileStore) Add(_ context.Context, draft Draft) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.load()
	if err != nil {
		return Task{}, err
	}
	now := s.opt.now()
	t, err := newTask(s.ids.Next(now), now, draft)
	if err != nil {
		return Task{}, err
	}
	tasks = append(tasks, t)
	if err := s.save(tasks); err != nil {
		return Task{}, err
	}
	s.opt.notify(OpAdd, t.ID)
	return t, nil
}

func (s *FileStore) Update(_ context.Context, id int64, patch Patch) (Task, error) {
	return s.modify(OpUpdate, id, patch.apply)
}

func (s *FileStore) Toggle(_ context.Context, id int64) (Task, error) {
	return s.modify(OpToggle, id, func(t Task) (Task, error) {
		t.Completed = !t.Completed
		return t, nil
	})
}

func (s *FileStore) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.load()
	if err != nil {
		return false, err
	}
	kept := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(tasks) {
		return false, nil
	}
	if err := s.save(kept); err != nil {
		return false, err
	}
	s.opt.notify(OpDelete, id)
	return true, nil
}

func (s *FileStore) Counts(_ context.Context) (Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CountOf(s.read()), nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove store file").With("path", s.path)
	}
	s.opt.notify(OpClear, 0)
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) modify(op Op, id int64, fn func(Task) (Task, error)) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.load()
	if err != nil {
		return Task{}, err
	}
	for i := range tasks {
		if tasks[i].ID != id {
			continue
		}
		updated, err := fn(tasks[i])
		if err != nil {
			return Task{}, err
		}
		tasks[i] = updated
		if err := s.save(tasks); err != nil {
			return Task{}, err
		}
		s.opt.notify(op, id)
		return updated, nil
	}
	return Task{}, errors.Wrap(exception.ErrTaskNotFound, string(op)).With("id", id)
}

// read is load for queries: an unreadable document reads as empty.
func (s *FileStore) read() []Task {
	tasks, err := s.load()
	if err != nil {
		logs.Errorf("read tasks from %s, err: %+v", s.path, err)
		return []Task{}
	}
	return tasks
}

func (s *FileStore) load() ([]Task, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Task{}, nil
		}
		return nil, errors.Wrap(err, "read store file").With("path", s.path)
	}
	if len(data) == 0 {
		return []Task{}, nil
	}
	var tasks []Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		return nil, errors.Wrap(err, "decode store file").With("path", s.path)
	}
	for i := range tasks {
		if tasks[i].Tags == nil {
			tasks[i].Tags = []string{}
		}
		if tasks[i].Priority == 0 {
			tasks[i].Priority = DefaultPriority
		}
	}
	return tasks, nil
}

// save writes through a temp file so readers never see a partial document.
func (s *FileStore) save(tasks []Task) error {
	data, err := sonic.ConfigStd.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode tasks")
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file").With("path", s.path)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp file").With("path", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file").With("path", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, "replace store file").With("path", s.path)
	}
	return nil
}
