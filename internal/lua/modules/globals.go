package modules

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/housekeepd/internal/globals"
)

// GlobalsModule provides the global variable store to Lua.
// Values are strings; numbers and booleans are converted on set.
type GlobalsModule struct {
	store globals.Store
}

// NewGlobalsModule creates a new globals module.
func NewGlobalsModule(store globals.Store) *GlobalsModule {
	return &GlobalsModule{store: store}
}

// Loader is the module loader for Lua.
func (m *GlobalsModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "get", L.NewFunction(m.get))
	L.SetField(mod, "set", L.NewFunction(m.set))
	L.SetField(mod, "declare", L.NewFunction(m.declare))
	L.SetField(mod, "exists", L.NewFunction(m.exists))

	L.Push(mod)
	return 1
}

// get(name) -> value | nil, err
func (m *GlobalsModule) get(L *lua.LState) int {
	name := L.CheckString(1)

	value, err := m.store.Get(L.Context(), name)
	if err != nil {
		if !errors.Is(err, globals.ErrUndeclared) {
			log.Warn().Err(err).Str("name", name).Msg("Failed to get global")
		}
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(lua.LString(value))
	L.Push(lua.LNil)
	return 2
}

// set(name, value) -> ok, err
func (m *GlobalsModule) set(L *lua.LState) int {
	name := L.CheckString(1)
	value, err := globalString(L.CheckAny(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}

	if err := m.store.Set(L.Context(), name, value); err != nil {
		return pushError(L, err)
	}

	L.Push(lua.LTrue)
	L.Push(lua.LNil)
	return 2
}

// declare(name, initial) -> created, err
func (m *GlobalsModule) declare(L *lua.LState) int {
	name := L.CheckString(1)
	value, err := globalString(L.CheckAny(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}

	created, err := m.store.Declare(L.Context(), name, value)
	if err != nil {
		return pushError(L, err)
	}

	L.Push(lua.LBool(created))
	L.Push(lua.LNil)
	return 2
}

// exists(name) -> bool
func (m *GlobalsModule) exists(L *lua.LState) int {
	name := L.CheckString(1)

	exists, err := m.store.Exists(L.Context(), name)
	if err != nil {
		log.Warn().Err(err).Str("name", name).Msg("Failed to check global existence")
		L.Push(lua.LFalse)
		return 1
	}

	L.Push(lua.LBool(exists))
	return 1
}

func globalString(v lua.LValue) (string, error) {
	switch val := v.(type) {
	case lua.LString:
		return string(val), nil
	case lua.LNumber, lua.LBool:
		return val.String(), nil
	default:
		return "", fmt.Errorf("string, number or boolean expected, got %s", v.Type())
	}
}
