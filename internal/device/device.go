// Package device dispatches housekeeping commands to physical devices.
package device

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
)

// ErrUnsupportedCommand is returned when a driver cannot express a command.
var ErrUnsupportedCommand = errors.New("unsupported command")

// ErrBadArgument is returned when a command argument has the wrong type or range.
var ErrBadArgument = errors.New("bad argument")

// Dispatcher sends a command with optional arguments to a device.
type Dispatcher interface {
	CallDevice(ctx context.Context, id int, cmd string, args ...any) error
}

// LogDispatcher only logs commands. Used for dry runs and when no device
// driver is configured.
type LogDispatcher struct{}

// NewLogDispatcher creates a LogDispatcher.
func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{}
}

// CallDevice logs the command.
func (d *LogDispatcher) CallDevice(_ context.Context, id int, cmd string, args ...any) error {
	log.Info().
		Int("device", id).
		Str("cmd", cmd).
		Interface("args", args).
		Msg("Device command (dry run)")
	return nil
}

// number converts a decoded argument (JSON or Lua number, or numeric string)
// to float64.
func number(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrBadArgument, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %v (%T) is not a number", ErrBadArgument, v, v)
	}
}

func argAt(args []any, i int) (any, error) {
	if i >= len(args) || args[i] == nil {
		return nil, fmt.Errorf("%w: argument %d is missing", ErrBadArgument, i+1)
	}
	return args[i], nil
}
