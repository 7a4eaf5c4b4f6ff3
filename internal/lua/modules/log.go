package modules

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
)

// LogModule provides logging functions to Lua
type LogModule struct {
	scene string
}

// NewLogModule creates a log module whose entries carry the scene name
func NewLogModule(scene string) *LogModule {
	return &LogModule{scene: scene}
}

// Loader is the module loader for Lua
func (m *LogModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "debug", L.NewFunction(m.logger(zerolog.DebugLevel)))
	L.SetField(mod, "info", L.NewFunction(m.logger(zerolog.InfoLevel)))
	L.SetField(mod, "warn", L.NewFunction(m.logger(zerolog.WarnLevel)))
	L.SetField(mod, "error", L.NewFunction(m.logger(zerolog.ErrorLevel)))

	L.Push(mod)
	return 1
}

// logger returns log.<level>(msg, fields?)
func (m *LogModule) logger(level zerolog.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)

		event := log.WithLevel(level).Str("source", "lua").Str("scene", m.scene)
		if tbl, ok := L.Get(2).(*lua.LTable); ok {
			for k, v := range tableToMap(tbl) {
				event = event.Interface(k, v)
			}
		}
		event.Msg(msg)

		return 0
	}
}
