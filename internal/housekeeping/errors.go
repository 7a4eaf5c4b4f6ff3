package housekeeping

import (
	"errors"
	"fmt"
)

// Validation error kinds. A *ValidationError unwraps to exactly one of these.
var (
	ErrUnresolvableTarget = errors.New("unresolvable target")
	ErrMalformedTask      = errors.New("malformed task")
	ErrInvalidTimestamp   = errors.New("invalid timestamp")
	ErrMissingArgument    = errors.New("missing argument")
)

// Input errors returned by the registrar and the parsing helpers.
var (
	ErrInvalidTargetList = errors.New("invalid target list")
	ErrInvalidCommand    = errors.New("invalid command")
	ErrNegativeDelay     = errors.New("delay must not be negative")
	ErrInvalidDelay      = errors.New("invalid delay")
	ErrMalformedSchedule = errors.New("malformed schedule")
)

// ValidationError describes the first rule a schedule entry broke.
type ValidationError struct {
	Key    string
	Kind   error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Key, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Key, e.Kind, e.Detail)
}

// Unwrap lets errors.Is match the error kind.
func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// IsCorrupted reports whether err means the stored schedule is unusable
// and would be discarded by the next Register or RunDue.
func IsCorrupted(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr) || errors.Is(err, ErrMalformedSchedule)
}

func invalid(key string, kind error, format string, args ...any) *ValidationError {
	return &ValidationError{Key: key, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
