package housekeeping

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Dispatcher sends a command to a device.
type Dispatcher interface {
	CallDevice(ctx context.Context, id int, cmd string, args ...any) error
}

// Observer is notified about schedule activity (ledger, metrics).
type Observer interface {
	OnRegistered(ctx context.Context, target Target, task Task)
	OnExecuted(ctx context.Context, runID string, target Target, task Task, err error)
	OnReset(ctx context.Context, cause error)
}

// RunReport summarizes one RunDue pass.
type RunReport struct {
	RunID     string
	Executed  int
	Failed    int
	Remaining int
	Reset     bool
}

// Keeper registers deferred commands and replays them once they are due.
//
// Every operation is one read-modify-write of the store. Calls within the
// process are serialized; writers in other processes are not coordinated and
// the last save wins.
type Keeper struct {
	mu sync.Mutex

	store     *Store
	validator *Validator
	vars      Variables
	devices   Dispatcher
	observers []Observer

	now             func() time.Time
	dispatchTimeout time.Duration
}

// Option configures a Keeper.
type Option func(*Keeper)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(k *Keeper) { k.now = now }
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(k *Keeper) { k.observers = append(k.observers, o) }
}

// WithDispatchTimeout bounds each device call. Zero means no timeout.
func WithDispatchTimeout(d time.Duration) Option {
	return func(k *Keeper) { k.dispatchTimeout = d }
}

// New creates a Keeper.
func New(store *Store, validator *Validator, vars Variables, devices Dispatcher, opts ...Option) *Keeper {
	k := &Keeper{
		store:     store,
		validator: validator,
		vars:      vars,
		devices:   devices,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Register schedules cmd for every target, delay from now, replacing any task
// already pending for a target. A corrupted schedule is discarded first.
// New tasks go through the same rules as the stored schedule; if any of them
// is rejected nothing is written.
func (k *Keeper) Register(ctx context.Context, targets []Target, delay time.Duration, cmd Command) error {
	if len(targets) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidTargetList)
	}
	if delay < 0 {
		return ErrNegativeDelay
	}
	if cmd == nil {
		return fmt.Errorf("%w: nil", ErrInvalidCommand)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	sched, _, err := k.loadValid(ctx)
	if err != nil {
		return err
	}

	due := k.now().Add(delay).Unix()
	added := make(Schedule, len(targets))
	for _, target := range targets {
		task := cmd.task(due)
		checked, err := k.validator.CheckEntry(ctx, string(target), task.document())
		if err != nil {
			return err
		}
		added[target] = checked
	}

	for target, task := range added {
		sched[target] = task
	}

	if err := k.store.Save(ctx, sched); err != nil {
		return err
	}

	for target, task := range added {
		log.Info().
			Str("target", string(target)).
			Str("cmd", task.Cmd).
			Time("due", task.DueAt()).
			Msg("Housekeeping task registered")
		for _, o := range k.observers {
			o.OnRegistered(ctx, target, task)
		}
	}
	k.logSchedule(sched)

	return nil
}

// RunDue executes and removes every task whose due time has passed. A task is
// removed whether or not its dispatch succeeded and is never retried. A
// corrupted schedule is discarded without running anything.
func (k *Keeper) RunDue(ctx context.Context) (RunReport, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	report := RunReport{RunID: uuid.NewString()}

	sched, wasReset, err := k.loadValid(ctx)
	if err != nil {
		return report, err
	}
	if wasReset {
		report.Reset = true
		return report, nil
	}

	now := k.now().Unix()
	removed := 0
	for _, entry := range sched.Entries() {
		if entry.Task.Due > now {
			continue
		}

		err := k.execute(ctx, entry.Target, entry.Task)
		delete(sched, entry.Target)
		removed++

		if err != nil {
			report.Failed++
			log.Warn().Err(err).
				Str("run_id", report.RunID).
				Str("target", string(entry.Target)).
				Str("cmd", entry.Task.Cmd).
				Msg("Housekeeping task failed")
		} else {
			report.Executed++
			log.Info().
				Str("run_id", report.RunID).
				Str("target", string(entry.Target)).
				Str("cmd", entry.Task.Cmd).
				Msg("Housekeeping task executed")
		}

		for _, o := range k.observers {
			o.OnExecuted(ctx, report.RunID, entry.Target, entry.Task, err)
		}
	}
	report.Remaining = len(sched)

	if removed > 0 {
		if err := k.store.Save(ctx, sched); err != nil {
			return report, err
		}
		k.logSchedule(sched)
	}

	return report, nil
}

// Pending returns the validated schedule. A corrupted schedule is discarded
// and reported as empty.
func (k *Keeper) Pending(ctx context.Context) (Schedule, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	sched, _, err := k.loadValid(ctx)
	return sched, err
}

// Inspect returns the validated schedule without repairing it. A corrupted
// schedule is reported through an error matching IsCorrupted and stays in
// the store untouched.
func (k *Keeper) Inspect(ctx context.Context) (Schedule, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return k.validator.Validate(ctx, doc)
}

// Cancel drops the pending tasks of the given targets and returns how many
// were removed.
func (k *Keeper) Cancel(ctx context.Context, targets []Target) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	sched, _, err := k.loadValid(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, target := range targets {
		if _, ok := sched[target]; ok {
			delete(sched, target)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}

	if err := k.store.Save(ctx, sched); err != nil {
		return 0, err
	}
	log.Info().Int("removed", removed).Msg("Housekeeping tasks cancelled")
	return removed, nil
}

// Reset discards every pending task.
func (k *Keeper) Reset(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.store.Reset(ctx); err != nil {
		return err
	}
	log.Info().Str("slot", k.store.Slot()).Msg("Housekeeping schedule cleared")
	return nil
}

// loadValid loads and validates the schedule, resetting the store to an empty
// schedule when the contents are corrupted. Storage errors are returned.
func (k *Keeper) loadValid(ctx context.Context) (Schedule, bool, error) {
	doc, err := k.store.Load(ctx)
	if err == nil {
		var sched Schedule
		sched, err = k.validator.Validate(ctx, doc)
		if err == nil {
			return sched, false, nil
		}
	}

	if !IsCorrupted(err) {
		return nil, false, err
	}

	log.Warn().Err(err).Str("slot", k.store.Slot()).Msg("Housekeeping schedule is corrupted, discarding all pending tasks")
	if resetErr := k.store.Reset(ctx); resetErr != nil {
		return nil, false, resetErr
	}
	for _, o := range k.observers {
		o.OnReset(ctx, err)
	}

	return Schedule{}, true, nil
}

// execute dispatches one task. Device targets get the command with its
// arguments; variable targets are set to the command string.
func (k *Keeper) execute(ctx context.Context, target Target, task Task) error {
	if k.dispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.dispatchTimeout)
		defer cancel()
	}

	if id, ok := target.DeviceID(); ok {
		cmd := task.Command()
		return k.devices.CallDevice(ctx, id, cmd.Name(), cmd.Args()...)
	}
	return k.vars.Set(ctx, string(target), task.Cmd)
}

func (k *Keeper) logSchedule(sched Schedule) {
	if e := log.Debug(); e.Enabled() {
		blob, err := Encode(sched)
		if err != nil {
			e.Discard()
			return
		}
		e.RawJSON("schedule", []byte(blob)).Int("pending", len(sched)).Msg("Housekeeping schedule")
	}
}
