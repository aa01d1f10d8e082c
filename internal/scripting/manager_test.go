package scripting_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/destiny/internal/game/dice"
	"github.com/cory-johannsen/destiny/internal/scripting"
)

func newTestManager(t *testing.T, src dice.Source, instLimit int) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	mgr := scripting.NewManager(dice.NewRoller(src, logger), logger, instLimit)
	t.Cleanup(mgr.Close)
	return mgr, logs
}

func writeTempLua(t *testing.T, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0644))
	return dir
}

func TestManager_LoadDir_CallsHook(t *testing.T) {
	mgr, _ := newTestManager(t, dice.NewSeededSource(1), 0)
	dir := writeTempLua(t, "hooks.lua", `
		function test_hook(a, b)
			return a + b
		end
	`)
	n, err := mgr.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, mgr.HasHook("test_hook"))
	assert.Equal(t, lua.LNumber(7), mgr.CallHook("test_hook", 3, 4))
}

func TestManager_CallHook_MissingHook_NoOp(t *testing.T) {
	mgr, _ := newTestManager(t, dice.NewSeededSource(1), 0)
	assert.False(t, mgr.HasHook("nonexistent_hook"))
	assert.Equal(t, lua.LNil, mgr.CallHook("nonexistent_hook"))
}

func TestManager_CallHook_RuntimeError_WarnLogNoPanic(t *testing.T) {
	mgr, logs := newTestManager(t, dice.NewSeededSource(1), 0)
	require.NoError(t, mgr.LoadString("bad", `
		function bad_hook()
			error("intentional error")
		end
	`))
	assert.Equal(t, lua.LNil, mgr.CallHook("bad_hook"))
	assert.Equal(t, 1, logs.FilterMessage("scripting: Lua runtime error").Len())
}

func TestManager_CallHook_BudgetIsPerCall(t *testing.T) {
	mgr, logs := newTestManager(t, dice.NewSeededSource(1), 200)
	require.NoError(t, mgr.LoadString("hooks", `
		function spin() while true do end end
		function small() local x = 0 for i = 1, 10 do x = x + i end return x end
	`))
	assert.Equal(t, lua.LNil, mgr.CallHook("spin"))
	assert.Equal(t, 1, logs.FilterMessage("scripting: Lua runtime error").Len())
	for range 20 {
		assert.Equal(t, lua.LNumber(55), mgr.CallHook("small"))
	}
}

func TestManager_LoadDir_InvalidLua_ReturnsError(t *testing.T) {
	mgr, _ := newTestManager(t, dice.NewSeededSource(1), 0)
	dir := writeTempLua(t, "bad.lua", `this is not valid lua @@@@`)
	_, err := mgr.LoadDir(dir)
	assert.Error(t, err)
}

func TestManager_LoadDir_MissingDir(t *testing.T) {
	mgr, _ := newTestManager(t, dice.NewSeededSource(1), 0)
	_, err := mgr.LoadDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestManager_LoadDir_MultipleFiles_OrderedByName(t *testing.T) {
	mgr, _ := newTestManager(t, dice.NewSeededSource(1), 0)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`base_val = 10`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"), []byte(`
		function get_val() return base_val end
	`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`ignored`), 0644))
	n, err := mgr.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, lua.LNumber(10), mgr.CallHook("get_val"))
}

func TestManager_DestinyModule(t *testing.T) {
	mgr, logs := newTestManager(t, dice.NewSequence(0.0), 0)
	require.NoError(t, mgr.LoadString("mod", `
		function roll() return destiny.roll("2d6+3") end
		function bad_roll() local v, err = destiny.roll("banana") return err end
		function lucky() return destiny.chance(0.5) end
		function say() destiny.log("hello from lua") end
	`))
	assert.Equal(t, lua.LNumber(5), mgr.CallHook("roll"), "lowest faces with a zero source")
	assert.Equal(t, lua.LTString, mgr.CallHook("bad_roll").Type())
	assert.Equal(t, lua.LTrue, mgr.CallHook("lucky"))
	mgr.CallHook("say")
	assert.Equal(t, 1, logs.FilterMessage("script").Len())
}

func TestManager_CallHook_ConvertsArgs(t *testing.T) {
	mgr, _ := newTestManager(t, dice.NewSeededSource(1), 0)
	require.NoError(t, mgr.LoadString("args", `
		function describe(t) return t.name .. ":" .. t.payload.slot .. ":" .. #t.list end
	`))
	got := mgr.CallHook("describe", map[string]any{
		"name":    "GAME_SAVED",
		"payload": map[string]any{"slot": float64(2)},
		"list":    []any{"a", "b", true},
	})
	assert.Equal(t, lua.LString("GAME_SAVED:2:3"), got)
}

func TestManager_CallHook_Concurrent_NoRace(t *testing.T) {
	mgr, _ := newTestManager(t, dice.NewSeededSource(1), 0)
	require.NoError(t, mgr.LoadString("c", `function add(a, b) return a + b end`))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 5 {
				assert.Equal(t, lua.LNumber(3), mgr.CallHook("add", 1, 2))
			}
		}()
	}
	wg.Wait()
}

func TestManager_Close(t *testing.T) {
	mgr, _ := newTestManager(t, dice.NewSeededSource(1), 0)
	require.NoError(t, mgr.LoadString("x", `function get_x() return 1 end`))
	mgr.Close()
	assert.Equal(t, lua.LNil, mgr.CallHook("get_x"))
	assert.ErrorIs(t, mgr.LoadString("y", `y = 1`), scripting.ErrClosed)
	mgr.Close()
}

func TestProperty_CallHookUnknownNeverPanics(t *testing.T) {
	mgr, _ := newTestManager(t, dice.NewSeededSource(1), 0)
	rapid.Check(t, func(rt *rapid.T) {
		hook := "on_" + rapid.StringMatching(`[a-z_]{1,12}`).Draw(rt, "hook")
		if mgr.CallHook(hook) != lua.LNil {
			rt.Fatalf("undefined hook %q returned a value", hook)
		}
	})
}
