package housekeeping

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultSlot is the global variable that holds the schedule.
const DefaultSlot = "HOUSEKEEPING"

// Variables is the part of the host's global variable API the scheduler uses.
// globals.Store satisfies it.
type Variables interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
	Declare(ctx context.Context, name, value string) (bool, error)
	Exists(ctx context.Context, name string) (bool, error)
}

// Store reads and writes the whole schedule as one JSON blob in a global
// variable. There is no compare-and-swap: Save always overwrites.
type Store struct {
	vars Variables
	slot string
}

// NewStore creates a store for the given slot.
func NewStore(vars Variables, slot string) *Store {
	if slot == "" {
		slot = DefaultSlot
	}
	return &Store{vars: vars, slot: slot}
}

// Slot returns the name of the backing variable.
func (s *Store) Slot() string {
	return s.slot
}

// Init declares the slot with an empty schedule if it doesn't exist yet.
func (s *Store) Init(ctx context.Context) (bool, error) {
	created, err := s.vars.Declare(ctx, s.slot, "{}")
	if err != nil {
		return false, fmt.Errorf("failed to initialize %s: %w", s.slot, err)
	}
	return created, nil
}

// Load decodes the slot. A missing or blank slot is an empty schedule;
// anything that isn't a JSON object fails with ErrMalformedSchedule.
func (s *Store) Load(ctx context.Context) (Document, error) {
	raw, err := s.vars.Get(ctx, s.slot)
	if err != nil {
		// First use: the slot was never declared
		if exists, xerr := s.vars.Exists(ctx, s.slot); xerr == nil && !exists {
			if _, err := s.Init(ctx); err != nil {
				return nil, err
			}
			return Document{}, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w", s.slot, err)
	}
	return Decode(raw)
}

// Save encodes the schedule and overwrites the slot.
func (s *Store) Save(ctx context.Context, sched Schedule) error {
	blob, err := Encode(sched)
	if err != nil {
		return err
	}
	if err := s.vars.Set(ctx, s.slot, blob); err != nil {
		return fmt.Errorf("failed to save %s: %w", s.slot, err)
	}
	return nil
}

// Reset overwrites the slot with an empty schedule.
func (s *Store) Reset(ctx context.Context) error {
	return s.Save(ctx, Schedule{})
}

// Encode serializes a schedule.
func Encode(sched Schedule) (string, error) {
	if sched == nil {
		sched = Schedule{}
	}
	data, err := json.Marshal(sched)
	if err != nil {
		return "", fmt.Errorf("failed to encode schedule: %w", err)
	}
	return string(data), nil
}

// Decode parses a serialized schedule into its untyped form.
func Decode(raw string) (Document, error) {
	if strings.TrimSpace(raw) == "" {
		return Document{}, nil
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSchedule, err)
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected an object, got %T", ErrMalformedSchedule, v)
	}
	return Document(obj), nil
}
