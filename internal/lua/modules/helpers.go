package modules

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// fromLua converts a Lua value into the loosely typed form the housekeeping
// parsers accept. A table keyed 1..n without gaps becomes []any, anything
// else becomes map[string]any. Numbers stay float64.
func fromLua(v lua.LValue) any {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if n := val.Len(); n > 0 && sequenceLen(val) == n {
			seq := make([]any, n)
			for i := 1; i <= n; i++ {
				seq[i-1] = fromLua(val.RawGetInt(i))
			}
			return seq
		}
		return tableToMap(val)
	default:
		return v.String()
	}
}

// sequenceLen counts the entries of tbl, returning -1 as soon as a key is
// not a positive integer.
func sequenceLen(tbl *lua.LTable) int {
	count := 0
	tbl.ForEach(func(k, _ lua.LValue) {
		if count < 0 {
			return
		}
		n, ok := k.(lua.LNumber)
		if !ok || n < 1 || float64(n) != float64(int(n)) {
			count = -1
			return
		}
		count++
	})
	return count
}

// toLua converts decoded schedule documents and report values for Lua.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		tbl := L.CreateTable(len(val), 0)
		for _, item := range val {
			tbl.Append(toLua(L, item))
		}
		return tbl
	case map[string]any:
		return MapToTable(L, val)
	case fmt.Stringer:
		return lua.LString(val.String())
	default:
		return lua.LString(fmt.Sprint(v))
	}
}

// MapToTable converts a Go map, such as scene arguments, to a Lua table.
func MapToTable(L *lua.LState, m map[string]any) *lua.LTable {
	tbl := L.CreateTable(0, len(m))
	for k, v := range m {
		tbl.RawSetString(k, toLua(L, v))
	}
	return tbl
}

func tableToMap(tbl *lua.LTable) map[string]any {
	m := make(map[string]any)
	tbl.ForEach(func(k, v lua.LValue) {
		m[lua.LVAsString(k)] = fromLua(v)
	})
	return m
}
