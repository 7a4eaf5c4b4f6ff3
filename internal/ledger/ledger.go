// Package ledger provides an append-only history of housekeeping activity.
// It backs the `hkctl history` command and retention cleanup.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/housekeepd/internal/housekeeping"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventTaskRegistered EventType = "task_registered"
	EventTaskExecuted   EventType = "task_executed"
	EventTaskFailed     EventType = "task_failed"
	EventScheduleReset  EventType = "schedule_reset"
	EventSceneRun       EventType = "scene_run"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID        int64          `json:"id"`
	EventType EventType      `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Target    string         `json:"target,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Query filters List. Zero fields match everything.
type Query struct {
	Type   EventType
	Target string
	Since  time.Time
	Limit  int
}

// Ledger provides append-only event logging
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Append adds a new event to the ledger
func (l *Ledger) Append(ctx context.Context, eventType EventType, target, runID string, payload map[string]any) error {
	var payloadJSON []byte
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO event_ledger (event_type, timestamp, target, run_id, payload) VALUES (?, ?, ?, ?, ?)`,
		string(eventType), l.now().UTC().Unix(), target, runID, string(payloadJSON))
	return err
}

// List returns matching entries, newest first
func (l *Ledger) List(ctx context.Context, q Query) ([]*Entry, error) {
	var (
		where []string
		args  []any
	)
	if q.Type != "" {
		where = append(where, "event_type = ?")
		args = append(args, string(q.Type))
	}
	if q.Target != "" {
		where = append(where, "target = ?")
		args = append(args, q.Target)
	}
	if !q.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, q.Since.Unix())
	}

	query := `SELECT id, event_type, timestamp, target, run_id, payload FROM event_ledger`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).Unix()
	result, err := l.db.ExecContext(ctx, `DELETE FROM event_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payloadStr, target, runID sql.NullString
		var timestamp int64

		if err := rows.Scan(&entry.ID, &entry.EventType, &timestamp, &target, &runID, &payloadStr); err != nil {
			return nil, err
		}

		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		entry.Target = target.String
		entry.RunID = runID.String

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Recorder writes keeper activity into the ledger. Write failures are logged
// and never fail the housekeeping operation.
type Recorder struct {
	ledger *Ledger
}

// NewRecorder creates a housekeeping observer backed by l.
func NewRecorder(l *Ledger) *Recorder {
	return &Recorder{ledger: l}
}

var _ housekeeping.Observer = (*Recorder)(nil)

func (r *Recorder) OnRegistered(ctx context.Context, target housekeeping.Target, task housekeeping.Task) {
	r.append(ctx, EventTaskRegistered, string(target), "", taskPayload(task))
}

func (r *Recorder) OnExecuted(ctx context.Context, runID string, target housekeeping.Target, task housekeeping.Task, err error) {
	payload := taskPayload(task)
	eventType := EventTaskExecuted
	if err != nil {
		eventType = EventTaskFailed
		payload["error"] = err.Error()
	}
	r.append(ctx, eventType, string(target), runID, payload)
}

func (r *Recorder) OnReset(ctx context.Context, cause error) {
	payload := map[string]any{}
	if cause != nil {
		payload["cause"] = cause.Error()
	}
	r.append(ctx, EventScheduleReset, "", "", payload)
}

// SceneRun records a scene invocation.
func (r *Recorder) SceneRun(ctx context.Context, name, trigger string, err error) {
	payload := map[string]any{"trigger": trigger}
	if err != nil {
		payload["error"] = err.Error()
	}
	r.append(ctx, EventSceneRun, name, "", payload)
}

func (r *Recorder) append(ctx context.Context, eventType EventType, target, runID string, payload map[string]any) {
	if err := r.ledger.Append(ctx, eventType, target, runID, payload); err != nil {
		log.Error().Err(err).Str("event", string(eventType)).Msg("Failed to append ledger event")
	}
}

func taskPayload(task housekeeping.Task) map[string]any {
	payload := map[string]any{
		"cmd":  task.Cmd,
		"time": task.Due,
	}
	if args := task.Command().Args(); len(args) > 0 {
		payload["args"] = args
	}
	return payload
}
