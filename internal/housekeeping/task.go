package housekeeping

import (
	"sort"
	"time"
)

// MinTimestamp is the earliest due time a task may carry (2018-01-01 UTC).
// Anything older is treated as a corrupted timestamp.
const MinTimestamp int64 = 1514764800

// Task is one pending command. The JSON layout is the persisted format.
type Task struct {
	Due   int64  `json:"time"`
	Cmd   string `json:"cmd"`
	Value any    `json:"value,omitempty"`
	Arg1  any    `json:"arg1,omitempty"`
	Arg2  any    `json:"arg2,omitempty"`
}

// DueAt returns the due time.
func (t Task) DueAt() time.Time {
	return time.Unix(t.Due, 0)
}

// Command returns the command the task carries.
func (t Task) Command() Command {
	switch {
	case t.Arg1 != nil || t.Arg2 != nil:
		return TwoArg{Cmd: t.Cmd, Arg1: t.Arg1, Arg2: t.Arg2}
	case t.Value != nil:
		return OneArg{Cmd: t.Cmd, Value: t.Value}
	default:
		return ZeroArg{Cmd: t.Cmd}
	}
}

// document returns the task in its decoded, untyped form.
func (t Task) document() map[string]any {
	doc := map[string]any{
		"time": float64(t.Due),
		"cmd":  t.Cmd,
	}
	if t.Value != nil {
		doc["value"] = t.Value
	}
	if t.Arg1 != nil {
		doc["arg1"] = t.Arg1
	}
	if t.Arg2 != nil {
		doc["arg2"] = t.Arg2
	}
	return doc
}

// Schedule maps each target to its single pending task.
type Schedule map[Target]Task

// Document is a schedule as decoded from the store, before validation.
type Document map[string]any

// Entry is a schedule item, used for ordered iteration.
type Entry struct {
	Target Target
	Task   Task
}

// Entries returns the schedule ordered by due time, then target.
func (s Schedule) Entries() []Entry {
	entries := make([]Entry, 0, len(s))
	for target, task := range s {
		entries = append(entries, Entry{Target: target, Task: task})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Task.Due != entries[j].Task.Due {
			return entries[i].Task.Due < entries[j].Task.Due
		}
		return entries[i].Target < entries[j].Target
	})
	return entries
}

// Document converts the schedule to its untyped form.
func (s Schedule) Document() Document {
	doc := make(Document, len(s))
	for target, task := range s {
		doc[string(target)] = task.document()
	}
	return doc
}
