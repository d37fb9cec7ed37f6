// Package exception holds the sentinel errors shared across packages.
//
// Sentinels are wrapped with github.com/yanun0323/errors on the way out, and a
// wrapped value only unwraps to the sentinel's cause. Callers must match with
// errors.Is from github.com/yanun0323/errors; the standard library errors.Is
// does not see a wrapped sentinel.
package exception

import "github.com/yanun0323/errors"

// General errors
var (
	ErrNilInstance         = errors.New("nil instance")
	ErrArgumentUnsupported = errors.New("argument unsupported")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInternal            = errors.New("internal error")
)
