package auth

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/yanun0323/errors"

	"taskpulse/pkg/exception"
)

// User is the signed-in identity.
type User struct {
	Username string `json:"username"`
}

type state struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Session keeps the signed-in user and their bearer token in a small JSON file.
type Session struct {
	path string

	mu    sync.RWMutex
	state state
}

// Load restores the session stored at path. A missing file is a signed-out session.
func Load(path string) (*Session, error) {
	if path == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "load session").With("path", path)
	}
	s := &Session{path: path}
	st, err := readState(path)
	if err != nil {
		return nil, err
	}
	s.state = st
	return s, nil
}

// Path returns the session file location.
func (s *Session) Path() string {
	return s.path
}

// Login signs username in. An empty token gets a random one.
func (s *Session) Login(username, token string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, exception.ErrUsernameRequired
	}
	token = strings.TrimSpace(token)
	if token == "" {
		token = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := state{Username: username, Token: token}
	if err := writeState(s.path, next); err != nil {
		return User{}, err
	}
	s.state = next
	return User{Username: username}, nil
}

// Logout forgets the user and token.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove session file").With("path", s.path)
	}
	s.state = state{}
	return nil
}

// User returns the signed-in user, or false when signed out.
func (s *Session) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Username == "" {
		return User{}, false
	}
	return User{Username: s.state.Username}, true
}

// Token returns the bearer token or ErrNotAuthenticated.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Username == "" || s.state.Token == "" {
		return "", exception.ErrNotAuthenticated
	}
	return s.state.Token, nil
}

func (s *Session) Authenticated() bool {
	_, err := s.Token()
	return err == nil
}

// Reload re-reads the file, picking up a login or logout made by another process.
func (s *Session) Reload() error {
	st, err := readState(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return nil
}

func readState(path string) (state, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return state{}, nil
		}
		return state{}, errors.Wrap(err, "read session file").With("path", path)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return state{}, nil
	}
	var st state
	if err := sonic.Unmarshal(data, &st); err != nil {
		return state{}, errors.Wrap(err, "decode session file").With("path", path)
	}
	st.Username = strings.TrimSpace(st.Username)
	return st, nil
}

func writeState(path string, st state) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "create session directory").With("path", path)
	}
	data, err := sonic.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file").With("path", path)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp file").With("path", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file").With("path", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "replace session file").With("path", path)
	}
	return nil
}
