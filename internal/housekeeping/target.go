package housekeeping

import (
	"fmt"
	"math"
	"strconv"
)

// Target identifies what a task acts on: a numeric device identifier or the
// name of a global variable. It is the schedule key.
type Target string

// DeviceTarget returns the target for a device id.
func DeviceTarget(id int) Target {
	return Target(strconv.Itoa(id))
}

// VariableTarget returns the target for a global variable.
func VariableTarget(name string) Target {
	return Target(name)
}

// DeviceID returns the device id if the target is a canonical decimal
// number. "010" is not a device key, so one device maps to exactly one key.
func (t Target) DeviceID() (int, bool) {
	id, err := strconv.ParseUint(string(t), 10, 31)
	if err != nil || strconv.FormatUint(id, 10) != string(t) {
		return 0, false
	}
	return int(id), true
}

// IsDevice reports whether the target addresses a device.
func (t Target) IsDevice() bool {
	_, ok := t.DeviceID()
	return ok
}

func (t Target) String() string {
	return string(t)
}

// ParseTargets normalizes a loosely typed target list.
// A number is one device; a sequence is taken element by element. Any other
// scalar, including a bare variable name, is rejected so that a single name is
// never mistaken for a list.
func ParseTargets(v any) ([]Target, error) {
	var targets []Target

	switch tv := v.(type) {
	case int, int32, int64, float64:
		t, err := numericTarget(tv)
		if err != nil {
			return nil, err
		}
		return []Target{t}, nil
	case []Target:
		targets = append(targets, tv...)
	case []int:
		for _, id := range tv {
			t, err := numericTarget(id)
			if err != nil {
				return nil, err
			}
			targets = append(targets, t)
		}
	case []string:
		for _, name := range tv {
			targets = append(targets, Target(name))
		}
	case []any:
		for i, item := range tv {
			switch iv := item.(type) {
			case string:
				targets = append(targets, Target(iv))
			case Target:
				targets = append(targets, iv)
			case int, int32, int64, float64:
				t, err := numericTarget(iv)
				if err != nil {
					return nil, err
				}
				targets = append(targets, t)
			default:
				return nil, fmt.Errorf("%w: element %d has type %T", ErrInvalidTargetList, i+1, item)
			}
		}
	default:
		return nil, fmt.Errorf("%w: expected a device id or a sequence, got %T", ErrInvalidTargetList, v)
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidTargetList)
	}
	for _, t := range targets {
		if t == "" {
			return nil, fmt.Errorf("%w: empty target", ErrInvalidTargetList)
		}
	}

	return targets, nil
}

func numericTarget(v any) (Target, error) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case float64:
		f = n
	}

	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return "", fmt.Errorf("%w: %v is not a device id", ErrInvalidTargetList, v)
	}
	return DeviceTarget(int(f)), nil
}
