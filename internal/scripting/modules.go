package scripting

import (
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers the destiny.* Lua table into L:
//
//	destiny.log(msg)       logs msg at Info
//	destiny.roll(expr)     rolls a dice expression, returning the total or nil, err
//	destiny.chance(p)      true with probability p
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: destiny global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"log": func(L *lua.LState) int {
			m.logger.Info("script", zap.String("message", L.CheckString(1)))
			return 0
		},
		"roll": func(L *lua.LState) int {
			res, err := m.roller.RollExpr(L.CheckString(1))
			if err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(err.Error()))
				return 2
			}
			L.Push(lua.LNumber(res.Total()))
			return 1
		},
		"chance": func(L *lua.LState) int {
			ok, _ := m.roller.Chance("script", float64(L.CheckNumber(1)))
			L.Push(lua.LBool(ok))
			return 1
		},
	})
	L.SetGlobal("destiny", mod)
}

// ToLua converts a decoded JSON value into a Lua value. Maps become tables
// with sorted string keys, slices become 1-based arrays, numbers become
// LNumber. Unsupported types become nil.
func ToLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return x
	case bool:
		return lua.LBool(x)
	case string:
		return lua.LString(x)
	case float64:
		return lua.LNumber(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case map[string]any:
		t := L.NewTable()
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.RawSetString(k, ToLua(L, x[k]))
		}
		return t
	case []any:
		t := L.NewTable()
		for _, e := range x {
			t.Append(ToLua(L, e))
		}
		return t
	}
	return lua.LNil
}
