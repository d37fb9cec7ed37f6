package exception

import "github.com/yanun0323/errors"

var (
	ErrUsernameRequired = errors.New("session: username is required")
	ErrNotAuthenticated = errors.New("session: not authenticated")
)
