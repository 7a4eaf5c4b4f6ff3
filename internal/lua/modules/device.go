package modules

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/housekeepd/internal/device"
)

// DeviceModule sends commands to devices right away.
type DeviceModule struct {
	devices device.Dispatcher
}

// NewDeviceModule creates a new device module
func NewDeviceModule(devices device.Dispatcher) *DeviceModule {
	return &DeviceModule{devices: devices}
}

// Loader is the module loader for Lua
func (m *DeviceModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "call", L.NewFunction(m.call))

	L.Push(mod)
	return 1
}

// call(id, cmd, ...) -> ok, err
func (m *DeviceModule) call(L *lua.LState) int {
	id := L.CheckInt(1)
	cmd := L.CheckString(2)

	var args []any
	for i := 3; i <= L.GetTop(); i++ {
		args = append(args, fromLua(L.Get(i)))
	}

	if err := m.devices.CallDevice(L.Context(), id, cmd, args...); err != nil {
		return pushError(L, err)
	}

	L.Push(lua.LTrue)
	L.Push(lua.LNil)
	return 2
}
