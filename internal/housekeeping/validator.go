package housekeeping

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Resolver answers whether a global variable exists.
type Resolver interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// Validator checks a decoded schedule before anything is scheduled or run.
type Validator struct {
	resolver Resolver
}

// NewValidator creates a validator that resolves variable targets through r.
func NewValidator(r Resolver) *Validator {
	return &Validator{resolver: r}
}

// Validate checks every entry and returns the typed schedule. It stops at the
// first broken entry (keys are visited in sorted order) and returns a
// *ValidationError. Errors from the resolver itself are returned as-is.
func (v *Validator) Validate(ctx context.Context, doc Document) (Schedule, error) {
	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	sched := make(Schedule, len(doc))
	for _, key := range keys {
		task, err := v.CheckEntry(ctx, key, doc[key])
		if err != nil {
			return nil, err
		}
		sched[Target(key)] = task
	}

	return sched, nil
}

// CheckEntry applies the schedule rules to a single key and raw task.
func (v *Validator) CheckEntry(ctx context.Context, key string, raw any) (Task, error) {
	if err := v.checkTarget(ctx, key); err != nil {
		return Task{}, err
	}

	fields, ok := raw.(map[string]any)
	if !ok {
		return Task{}, invalid(key, ErrMalformedTask, "expected a record, got %T", raw)
	}
	rawCmd, hasCmd := fields["cmd"]
	rawDue, hasDue := fields["time"]
	if !hasCmd || !hasDue {
		return Task{}, invalid(key, ErrMalformedTask, "record needs both cmd and time")
	}
	cmd, ok := rawCmd.(string)
	if !ok || cmd == "" {
		return Task{}, invalid(key, ErrMalformedTask, "cmd must be a non-empty string")
	}

	due, ok := toFloat(rawDue)
	if !ok || math.IsNaN(due) || math.IsInf(due, 0) {
		return Task{}, invalid(key, ErrInvalidTimestamp, "time %v is not a number", rawDue)
	}
	if due <= float64(MinTimestamp) {
		return Task{}, invalid(key, ErrInvalidTimestamp, "time %.0f is before %d", due, MinTimestamp)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
	if due >= float64(math.MaxInt64) {
		return Task{}, invalid(key, ErrInvalidTimestamp, "time %g is out of range", due)
	}

	task := Task{
		Due:   int64(due),
		Cmd:   cmd,
		Value: fields["value"],
		Arg1:  fields["arg1"],
		Arg2:  fields["arg2"],
	}

	if IsOneArgCommand(cmd) && task.Value == nil {
		return Task{}, invalid(key, ErrMissingArgument, "%s needs a value", cmd)
	}
	if IsTwoArgCommand(cmd) && (task.Arg1 == nil || task.Arg2 == nil) {
		return Task{}, invalid(key, ErrMissingArgument, "%s needs arg1 and arg2", cmd)
	}

	return task, nil
}

func (v *Validator) checkTarget(ctx context.Context, key string) error {
	if Target(key).IsDevice() {
		return nil
	}
	if key == "" {
		return invalid(key, ErrUnresolvableTarget, "empty key")
	}

	exists, err := v.resolver.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", key, err)
	}
	if !exists {
		return invalid(key, ErrUnresolvableTarget, "no device id and no such global")
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
