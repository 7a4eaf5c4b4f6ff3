package modules

import (
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/housekeepd/internal/timewindow"
)

// TimeWindowModule provides time-of-day checks to Lua
type TimeWindowModule struct {
	eval *timewindow.Evaluator
	now  func() time.Time
}

// NewTimeWindowModule creates a new timewindow module
func NewTimeWindowModule(eval *timewindow.Evaluator) *TimeWindowModule {
	return &TimeWindowModule{eval: eval, now: time.Now}
}

// Loader is the module loader for Lua
func (m *TimeWindowModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "between", L.NewFunction(m.between))
	L.SetField(mod, "now", L.NewFunction(m.nowUnix))
	L.SetField(mod, "next", L.NewFunction(m.next))

	L.Push(mod)
	return 1
}

// between(start, end) -> bool
//
//	if timewindow.between("@sunset", "23:00") then ... end
func (m *TimeWindowModule) between(L *lua.LState) int {
	w, err := timewindow.ParseWindow(L.CheckString(1), L.CheckString(2))
	if err != nil {
		L.RaiseError("invalid time window: %s", err.Error())
		return 0
	}

	in, err := m.eval.Contains(w, m.now())
	if err != nil {
		L.RaiseError("failed to evaluate %s: %s", w, err.Error())
		return 0
	}

	log.Debug().Str("window", w.String()).Bool("inside", in).Msg("Time window checked")
	L.Push(lua.LBool(in))
	return 1
}

// now() -> unix seconds
func (m *TimeWindowModule) nowUnix(L *lua.LState) int {
	L.Push(lua.LNumber(m.now().Unix()))
	return 1
}

// next(expr) -> unix seconds of the next occurrence
func (m *TimeWindowModule) next(L *lua.LState) int {
	expr, err := timewindow.ParseExpr(L.CheckString(1))
	if err != nil {
		L.RaiseError("invalid time expression: %s", err.Error())
		return 0
	}

	t, err := m.eval.Next(expr, m.now())
	if err != nil {
		L.RaiseError("failed to evaluate %s: %s", expr, err.Error())
		return 0
	}

	L.Push(lua.LNumber(t.Unix()))
	return 1
}
