package exception

import "github.com/yanun0323/errors"

var (
	ErrTaskNotFound        = errors.New("task: not found")
	ErrTaskEmptyTitle      = errors.New("task: empty title")
	ErrTaskInvalidFilter   = errors.New("task: invalid filter")
	ErrTaskInvalidPriority = errors.New("task: invalid priority")
	ErrTaskUnknownBackend  = errors.New("task: unknown store backend")
)
