package housekeeping

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestKeeper_RegisterThenRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.keeper.Register(ctx, []Target{DeviceTarget(10)}, 25*time.Second, ZeroArg{Cmd: "turnOn"}))
	assert.JSONEq(t, `{"10":{"time":1700000025,"cmd":"turnOn"}}`, f.slot(t))

	// Not due yet
	f.clock.Set(base + 10)
	report, err := f.keeper.RunDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Executed)
	assert.Equal(t, 1, report.Remaining)
	assert.Empty(t, f.devices.calls)
	assert.JSONEq(t, `{"10":{"time":1700000025,"cmd":"turnOn"}}`, f.slot(t))

	f.clock.Set(base + 30)
	report, err = f.keeper.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Executed)
	assert.Zero(t, report.Remaining)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, []deviceCall{{ID: 10, Cmd: "turnOn"}}, f.devices.calls)
	assert.JSONEq(t, `{}`, f.slot(t))
}

func TestKeeper_RunAtExactDueTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.keeper.Register(ctx, []Target{DeviceTarget(3)}, time.Minute, ZeroArg{Cmd: "turnOff"}))

	f.clock.Set(base + 60)
	report, err := f.keeper.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Executed)
	assert.Len(t, f.devices.calls, 1)
}

func TestKeeper_MultipleTargetsOneArg(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	targets, err := ParseTargets([]any{10.0, 11.0})
	require.NoError(t, err)
	cmd, err := ParseCommand([]any{"setValue", 50.0})
	require.NoError(t, err)

	require.NoError(t, f.keeper.Register(ctx, targets, 0, cmd))
	assert.JSONEq(t, `{
		"10":{"time":1700000000,"cmd":"setValue","value":50},
		"11":{"time":1700000000,"cmd":"setValue","value":50}
	}`, f.slot(t))

	report, err := f.keeper.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Executed)
	require.Len(t, f.devices.calls, 2)
	for i, id := range []int{10, 11} {
		assert.Equal(t, id, f.devices.calls[i].ID)
		assert.Equal(t, "setValue", f.devices.calls[i].Cmd)
		require.Len(t, f.devices.calls[i].Args, 1)
		assert.EqualValues(t, 50, f.devices.calls[i].Args[0])
	}
	assert.JSONEq(t, `{}`, f.slot(t))
}

func TestKeeper_TwoArgDispatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.keeper.Register(ctx, []Target{DeviceTarget(4)}, 0,
		TwoArg{Cmd: "setProperty", Arg1: "ui.label", Arg2: "Hall"}))

	_, err := f.keeper.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []deviceCall{{ID: 4, Cmd: "setProperty", Args: []any{"ui.label", "Hall"}}}, f.devices.calls)
}

func TestKeeper_RegisterOverwrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.keeper.Register(ctx, []Target{DeviceTarget(10)}, time.Hour, ZeroArg{Cmd: "turnOn"}))
	require.NoError(t, f.keeper.Register(ctx, []Target{DeviceTarget(10)}, 5*time.Second, ZeroArg{Cmd: "turnOff"}))

	sched, err := f.keeper.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, sched, 1)
	assert.Equal(t, Task{Due: base + 5, Cmd: "turnOff"}, sched[DeviceTarget(10)])
}

func TestKeeper_VariableTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.vars.Declare(ctx, "AlarmState", "armed")
	require.NoError(t, err)

	require.NoError(t, f.keeper.Register(ctx, []Target{VariableTarget("AlarmState")}, 0, ZeroArg{Cmd: "disarmed"}))

	_, err = f.keeper.RunDue(ctx)
	require.NoError(t, err)

	value, err := f.vars.Get(ctx, "AlarmState")
	require.NoError(t, err)
	assert.Equal(t, "disarmed", value)
	assert.Empty(t, f.devices.calls)
}

func TestKeeper_RegisterRejectsBadTasks(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		targets []Target
		delay   time.Duration
		cmd     Command
		wantErr error
	}{
		{"no_targets", nil, 0, ZeroArg{Cmd: "turnOn"}, ErrInvalidTargetList},
		{"negative_delay", []Target{"1"}, -time.Second, ZeroArg{Cmd: "turnOn"}, ErrNegativeDelay},
		{"nil_command", []Target{"1"}, 0, nil, ErrInvalidCommand},
		{"undeclared_variable", []Target{"Missing"}, 0, ZeroArg{Cmd: "on"}, ErrUnresolvableTarget},
		{"one_arg_command_without_value", []Target{"1"}, 0, ZeroArg{Cmd: "setValue"}, ErrMissingArgument},
		{"two_arg_command_with_one_arg", []Target{"1"}, 0, OneArg{Cmd: "setSlider", Value: 1}, ErrMissingArgument},
		{"empty_command", []Target{"1"}, 0, ZeroArg{}, ErrMalformedTask},
		{"device_key_with_leading_zero", []Target{"010"}, 0, ZeroArg{Cmd: "turnOn"}, ErrUnresolvableTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.keeper.Register(ctx, []Target{DeviceTarget(99)}, time.Hour, ZeroArg{Cmd: "turnOn"}))
			before := f.slot(t)

			err := f.keeper.Register(ctx, tt.targets, tt.delay, tt.cmd)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, f.slot(t), "rejected registration must not touch the schedule")
		})
	}
}

func TestKeeper_RunLeavesFutureTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.keeper.Register(ctx, []Target{DeviceTarget(1)}, 10*time.Second, ZeroArg{Cmd: "turnOn"}))
	require.NoError(t, f.keeper.Register(ctx, []Target{DeviceTarget(2)}, time.Hour, ZeroArg{Cmd: "turnOff"}))

	f.clock.Set(base + 60)
	report, err := f.keeper.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Executed)
	assert.Equal(t, 1, report.Remaining)
	assert.JSONEq(t, `{"2":{"time":1700003600,"cmd":"turnOff"}}`, f.slot(t))
}

func TestKeeper_RunLeavesFarFutureTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setSlot(t, `{"10":{"time":9e18,"cmd":"turnOn"}}`)

	report, err := f.keeper.RunDue(ctx)
	require.NoError(t, err)
	assert.False(t, report.Reset)
	assert.Equal(t, 0, report.Executed)
	assert.Equal(t, 1, report.Remaining)
	assert.Empty(t, f.devices.calls)

	sched, err := f.keeper.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9e18), sched[DeviceTarget(10)].Due)
}

func TestKeeper_FailedDispatchIsNotRetried(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.devices.err = errors.New("bridge unreachable")

	require.NoError(t, f.keeper.Register(ctx, []Target{DeviceTarget(10)}, 0, ZeroArg{Cmd: "turnOn"}))

	report, err := f.keeper.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Executed)
	assert.JSONEq(t, `{}`, f.slot(t))

	report, err = f.keeper.RunDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Failed)
	assert.Len(t, f.devices.calls, 1)
}

func TestKeeper_CorruptedScheduleIsReset(t *testing.T) {
	corruptions := map[string]string{
		"missing_cmd":       `{"10":{"time":1700000000}}`,
		"garbage_time":      `{"10":{"time":5,"cmd":"turnOn"}}`,
		"not_json":          `{"10":`,
		"not_an_object":     `[1,2,3]`,
		"undeclared_var":    `{"Ghost":{"time":1700000000,"cmd":"x"}}`,
		"time_beyond_int64": `{"10":{"time":1e19,"cmd":"turnOn"},"11":{"time":9.3e18,"cmd":"turnOff"}}`,
	}

	for name, raw := range corruptions {
		t.Run(name+"/run", func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.setSlot(t, raw)

			report, err := f.keeper.RunDue(ctx)
			require.NoError(t, err)
			assert.True(t, report.Reset)
			assert.Empty(t, f.devices.calls)
			assert.JSONEq(t, `{}`, f.slot(t))
		})

		t.Run(name+"/register", func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.setSlot(t, raw)

			require.NoError(t, f.keeper.Register(ctx, []Target{DeviceTarget(5)}, 0, ZeroArg{Cmd: "turnOn"}))
			assert.JSONEq(t, `{"5":{"time":1700000000,"cmd":"turnOn"}}`, f.slot(t))
		})
	}
}

func TestKeeper_BlankOrMissingSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setSlot(t, "")

	sched, err := f.keeper.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, sched)

	_, err = f.vars.Delete(ctx, DefaultSlot)
	require.NoError(t, err)

	require.NoError(t, f.keeper.Register(ctx, []Target{DeviceTarget(1)}, 0, ZeroArg{Cmd: "turnOn"}))
	assert.JSONEq(t, `{"1":{"time":1700000000,"cmd":"turnOn"}}`, f.slot(t))
}

func TestKeeper_CancelAndReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.keeper.Register(ctx, []Target{"1", "2", "3"}, time.Minute, ZeroArg{Cmd: "turnOff"}))

	removed, err := f.keeper.Cancel(ctx, []Target{"2", "42"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	sched, err := f.keeper.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, sched, 2)

	require.NoError(t, f.keeper.Reset(ctx))
	assert.JSONEq(t, `{}`, f.slot(t))
}

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) OnRegistered(_ context.Context, target Target, task Task) {
	m.Called(target, task)
}

func (m *mockObserver) OnExecuted(_ context.Context, runID string, target Target, task Task, err error) {
	m.Called(runID, target, task, err)
}

func (m *mockObserver) OnReset(_ context.Context, cause error) {
	m.Called(cause)
}

func TestKeeper_Observers(t *testing.T) {
	ctx := context.Background()
	obs := &mockObserver{}
	f := newFixture(t, WithObserver(obs))

	task := Task{Due: base, Cmd: "turnOn"}
	obs.On("OnRegistered", DeviceTarget(8), task).Once()
	obs.On("OnExecuted", mock.AnythingOfType("string"), DeviceTarget(8), task, nil).Once()
	obs.On("OnReset", mock.MatchedBy(func(err error) bool { return errors.Is(err, ErrMalformedTask) })).Once()

	require.NoError(t, f.keeper.Register(ctx, []Target{DeviceTarget(8)}, 0, ZeroArg{Cmd: "turnOn"}))
	_, err := f.keeper.RunDue(ctx)
	require.NoError(t, err)

	f.setSlot(t, `{"8":{"time":1700000000}}`)
	_, err = f.keeper.RunDue(ctx)
	require.NoError(t, err)

	obs.AssertExpectations(t)
}

type slowDispatcher struct{}

func (slowDispatcher) CallDevice(ctx context.Context, _ int, _ string, _ ...any) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestKeeper_DispatchTimeout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	k := New(f.store, NewValidator(f.vars), f.vars, slowDispatcher{},
		WithClock(f.clock.Now), WithDispatchTimeout(10*time.Millisecond))

	require.NoError(t, k.Register(ctx, []Target{DeviceTarget(1)}, 0, ZeroArg{Cmd: "turnOn"}))

	report, err := k.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
}

func TestKeeper_InspectDoesNotRepair(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.keeper.Register(ctx, []Target{DeviceTarget(3)}, time.Minute, ZeroArg{Cmd: "turnOn"}))
	sched, err := f.keeper.Inspect(ctx)
	require.NoError(t, err)
	assert.Len(t, sched, 1)

	broken := `{"10":{"time":1700000000}}`
	f.setSlot(t, broken)

	_, err = f.keeper.Inspect(ctx)
	require.ErrorIs(t, err, ErrMalformedTask)
	assert.True(t, IsCorrupted(err))
	assert.Equal(t, broken, f.slot(t))

	f.setSlot(t, `[1]`)
	_, err = f.keeper.Inspect(ctx)
	assert.True(t, IsCorrupted(err))
	assert.Equal(t, `[1]`, f.slot(t))
}
