package modules

import (
	"context"
	"fmt"
	"math"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/housekeepd/internal/housekeeping"
)

// Housekeeper is the part of the keeper exposed to scenes.
type Housekeeper interface {
	Register(ctx context.Context, targets []housekeeping.Target, delay time.Duration, cmd housekeeping.Command) error
	RunDue(ctx context.Context) (housekeeping.RunReport, error)
	Pending(ctx context.Context) (housekeeping.Schedule, error)
	Cancel(ctx context.Context, targets []housekeeping.Target) (int, error)
}

// HousekeepingModule provides deferred device commands to Lua.
//
// ERROR HANDLING CONVENTION:
//   - every function returns (result, error_string); bad input is reported
//     the same way as storage failures so scenes can decide what to do
type HousekeepingModule struct {
	keeper Housekeeper
}

// NewHousekeepingModule creates a new housekeeping module
func NewHousekeepingModule(keeper Housekeeper) *HousekeepingModule {
	return &HousekeepingModule{keeper: keeper}
}

// Loader is the module loader for Lua
func (m *HousekeepingModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "schedule", L.NewFunction(m.schedule))
	L.SetField(mod, "run_due", L.NewFunction(m.runDue))
	L.SetField(mod, "cancel", L.NewFunction(m.cancel))
	L.SetField(mod, "pending", L.NewFunction(m.pending))

	L.Push(mod)
	return 1
}

// schedule(targets, delay_seconds, cmd) -> (ok, err)
//
//	housekeeping.schedule(4, 600, "turnOff")
//	housekeeping.schedule({4, 5}, 60, {"setValue", 30})
//	housekeeping.schedule({"AWAY_MODE"}, 3600, "off")
func (m *HousekeepingModule) schedule(L *lua.LState) int {
	targets, err := housekeeping.ParseTargets(fromLua(L.CheckAny(1)))
	if err != nil {
		return pushError(L, err)
	}
	delay, err := delayFromSeconds(float64(L.CheckNumber(2)))
	if err != nil {
		return pushError(L, err)
	}
	cmd, err := housekeeping.ParseCommand(fromLua(L.CheckAny(3)))
	if err != nil {
		return pushError(L, err)
	}

	if err := m.keeper.Register(L.Context(), targets, delay, cmd); err != nil {
		return pushError(L, err)
	}

	L.Push(lua.LTrue)
	L.Push(lua.LNil)
	return 2
}

// run_due() -> ({executed, failed, remaining, reset, run_id}, err)
func (m *HousekeepingModule) runDue(L *lua.LState) int {
	report, err := m.keeper.RunDue(L.Context())
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	result := L.NewTable()
	L.SetField(result, "run_id", lua.LString(report.RunID))
	L.SetField(result, "executed", lua.LNumber(report.Executed))
	L.SetField(result, "failed", lua.LNumber(report.Failed))
	L.SetField(result, "remaining", lua.LNumber(report.Remaining))
	L.SetField(result, "reset", lua.LBool(report.Reset))

	L.Push(result)
	L.Push(lua.LNil)
	return 2
}

// cancel(targets) -> (removed, err)
func (m *HousekeepingModule) cancel(L *lua.LState) int {
	targets, err := housekeeping.ParseTargets(fromLua(L.CheckAny(1)))
	if err != nil {
		L.Push(lua.LNumber(0))
		L.Push(lua.LString(err.Error()))
		return 2
	}

	removed, err := m.keeper.Cancel(L.Context(), targets)
	if err != nil {
		L.Push(lua.LNumber(0))
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(lua.LNumber(removed))
	L.Push(lua.LNil)
	return 2
}

// pending() -> ({[target] = {time, cmd, value, arg1, arg2}}, err)
func (m *HousekeepingModule) pending(L *lua.LState) int {
	sched, err := m.keeper.Pending(L.Context())
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(MapToTable(L, sched.Document()))
	L.Push(lua.LNil)
	return 2
}

// maxDelaySeconds is the longest delay a time.Duration can hold, about 292 years.
var maxDelaySeconds = float64(math.MaxInt64) / float64(time.Second)

func delayFromSeconds(sec float64) (time.Duration, error) {
	switch {
	case math.IsNaN(sec) || math.IsInf(sec, 0):
		return 0, fmt.Errorf("%w: %v seconds", housekeeping.ErrInvalidDelay, sec)
	case sec < 0:
		return 0, housekeeping.ErrNegativeDelay
	case sec >= maxDelaySeconds:
		return 0, fmt.Errorf("%w: %g seconds is too long", housekeeping.ErrInvalidDelay, sec)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

func pushError(L *lua.LState, err error) int {
	L.Push(lua.LFalse)
	L.Push(lua.LString(err.Error()))
	return 2
}
