package housekeeping

import (
	"fmt"
)

// Command is a device command with zero, one or two arguments.
// The concrete types are ZeroArg, OneArg and TwoArg.
type Command interface {
	Name() string
	// Args returns the positional arguments passed to the device.
	Args() []any
	task(due int64) Task
}

// ZeroArg is a command without arguments, e.g. turnOn.
type ZeroArg struct {
	Cmd string
}

// OneArg is a command with a single value, e.g. setValue 50.
type OneArg struct {
	Cmd   string
	Value any
}

// TwoArg is a command with two arguments, e.g. setProperty "ui.label" "Hall".
type TwoArg struct {
	Cmd  string
	Arg1 any
	Arg2 any
}

func (c ZeroArg) Name() string { return c.Cmd }
func (c OneArg) Name() string  { return c.Cmd }
func (c TwoArg) Name() string  { return c.Cmd }

func (c ZeroArg) Args() []any { return nil }
func (c OneArg) Args() []any  { return []any{c.Value} }
func (c TwoArg) Args() []any  { return []any{c.Arg1, c.Arg2} }

func (c ZeroArg) task(due int64) Task { return Task{Due: due, Cmd: c.Cmd} }
func (c OneArg) task(due int64) Task  { return Task{Due: due, Cmd: c.Cmd, Value: c.Value} }
func (c TwoArg) task(due int64) Task {
	return Task{Due: due, Cmd: c.Cmd, Arg1: c.Arg1, Arg2: c.Arg2}
}

// Commands that require a value.
var oneArgCommands = map[string]bool{
	"setValue":       true,
	"setTargetLevel": true,
	"setBrightness":  true,
	"setMode":        true,
	"setFanMode":     true,
	"setVolume":      true,
	"pressButton":    true,
	"setArmed":       true,
}

// Commands that require arg1 and arg2.
var twoArgCommands = map[string]bool{
	"setProperty":           true,
	"setSlider":             true,
	"setThermostatSetpoint": true,
	"setColorTemperature":   true,
}

// IsOneArgCommand reports whether name must carry a value.
func IsOneArgCommand(name string) bool {
	return oneArgCommands[name]
}

// IsTwoArgCommand reports whether name must carry arg1 and arg2.
func IsTwoArgCommand(name string) bool {
	return twoArgCommands[name]
}

// ParseCommand converts a loosely typed command into a Command.
// Accepted shapes: a command name, or a sequence {name}, {name, value} or
// {name, arg1, arg2}.
func ParseCommand(v any) (Command, error) {
	switch c := v.(type) {
	case Command:
		return c, nil
	case string:
		if c == "" {
			return nil, fmt.Errorf("%w: empty name", ErrInvalidCommand)
		}
		return ZeroArg{Cmd: c}, nil
	case []any:
		if len(c) == 0 || len(c) > 3 {
			return nil, fmt.Errorf("%w: expected 1 to 3 elements, got %d", ErrInvalidCommand, len(c))
		}
		name, ok := c[0].(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: first element must be the command name", ErrInvalidCommand)
		}
		switch len(c) {
		case 1:
			return ZeroArg{Cmd: name}, nil
		case 2:
			return OneArg{Cmd: name, Value: c[1]}, nil
		default:
			return TwoArg{Cmd: name, Arg1: c[1], Arg2: c[2]}, nil
		}
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidCommand, v)
	}
}
