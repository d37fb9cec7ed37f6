package auth

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Watch reloads the session whenever its file changes and calls fn with the current
// token, empty when signed out. It blocks until ctx is done.
func (s *Session) Watch(ctx context.Context, fn func(token string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "new file watcher")
	}
	defer watcher.Close()

	// The file is replaced by rename, so watch its directory.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "create session directory").With("dir", dir)
	}
	if err := watcher.Add(dir); err != nil {
		return errors.Wrap(err, "watch session directory").With("dir", dir)
	}
	name := filepath.Clean(s.path)

	last, _ := s.Token()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.Reload(); err != nil {
				logs.Warnf("reload session %s, err: %+v", s.path, err)
				continue
			}
			token, _ := s.Token()
			if token == last {
				continue
			}
			last = token
			fn(token)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logs.Errorf("watch session %s, err: %+v", s.path, err)
		}
	}
}
