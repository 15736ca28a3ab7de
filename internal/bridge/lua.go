package bridge

import (
	"context"
	"fmt"

	"github.com/Shopify/go-lua"
)

// LuaInterpreter evaluates command scripts in a fresh Lua state per call.
// Env entries become globals; nested maps become tables. The chunk's return
// value, when it has one, is read back as a string.
type LuaInterpreter struct{}

func NewLuaInterpreter() *LuaInterpreter {
	return &LuaInterpreter{}
}

func (li *LuaInterpreter) Eval(ctx context.Context, script string, env map[string]interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	state := lua.NewState()
	lua.OpenLibraries(state)
	for name, value := range env {
		pushValue(state, value)
		state.SetGlobal(name)
	}
	if err := lua.DoString(state, script); err != nil {
		return "", fmt.Errorf("lua: %w", err)
	}
	if state.Top() > 0 {
		if result, ok := state.ToString(state.Top()); ok {
			return result, nil
		}
	}
	// scripts without a return may set a result global instead
	state.Global("result")
	if result, ok := state.ToString(-1); ok {
		return result, nil
	}
	return "", nil
}

func pushValue(state *lua.State, value interface{}) {
	switch v := value.(type) {
	case nil:
		state.PushNil()
	case string:
		state.PushString(v)
	case bool:
		state.PushBoolean(v)
	case int:
		state.PushInteger(v)
	case int64:
		state.PushNumber(float64(v))
	case float64:
		state.PushNumber(v)
	case map[string]interface{}:
		state.NewTable()
		for key, item := range v {
			pushValue(state, item)
			state.SetField(-2, key)
		}
	default:
		state.PushString(fmt.Sprint(v))
	}
}
