package exception

import "github.com/yanun0323/errors"

var (
	ErrConfigUnsupportedFormat = errors.New("config: unsupported file format")
	ErrConfigInvalidDuration   = errors.New("config: invalid duration")
)
