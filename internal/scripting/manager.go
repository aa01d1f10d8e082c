package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/game/dice"
)

// ErrClosed is returned by loads after Close.
var ErrClosed = errors.New("scripting: manager closed")

// Manager owns one sandboxed LState holding every loaded hook script.
//
// An LState is single-threaded, so every load and call holds mu.
type Manager struct {
	roller    *dice.Roller
	logger    *zap.Logger
	instLimit int

	mu sync.Mutex
	L  *lua.LState
}

// NewManager creates a Manager with an empty VM. instLimit caps the opcodes
// of each script load and hook call; 0 uses DefaultInstructionLimit.
//
// Precondition: roller and logger must be non-nil.
// Postcondition: Returns a Manager whose VM has the destiny module registered.
func NewManager(roller *dice.Roller, logger *zap.Logger, instLimit int) *Manager {
	m := &Manager{roller: roller, logger: logger, instLimit: instLimit}
	m.L = NewSandboxedState()
	m.RegisterModules(m.L)
	return m
}

// LoadDir executes every *.lua file in scriptDir in lexicographic order.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: Returns the number of files loaded, or an error naming the
// first file that failed. Files before it stay loaded.
func (m *Manager) LoadDir(scriptDir string) (int, error) {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return 0, fmt.Errorf("scripting: reading script dir %q: %w", scriptDir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.L == nil {
		return 0, ErrClosed
	}
	for i, path := range luaFiles {
		release := limit(m.L, m.instLimit)
		err := m.L.DoFile(path)
		release()
		if err != nil {
			return i, fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}
	m.logger.Info("scripts loaded", zap.String("dir", scriptDir), zap.Int("files", len(luaFiles)))
	return len(luaFiles), nil
}

// LoadString executes src as a chunk named name.
func (m *Manager) LoadString(name, src string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.L == nil {
		return ErrClosed
	}
	release := limit(m.L, m.instLimit)
	defer release()
	fn, err := m.L.LoadString(src)
	if err != nil {
		return fmt.Errorf("scripting: compiling %q: %w", name, err)
	}
	m.L.Push(fn)
	if err := m.L.PCall(0, lua.MultRet, nil); err != nil {
		return fmt.Errorf("scripting: running %q: %w", name, err)
	}
	return nil
}

// HasHook reports whether a global function named hook is defined.
func (m *Manager) HasHook(hook string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.L != nil && m.L.GetGlobal(hook).Type() == lua.LTFunction
}

// CallHook calls the named Lua global function with args converted by
// ToLua. Returns LNil if the hook is not defined. Lua runtime errors,
// including an exhausted instruction budget, are logged at Warn level and
// never propagated.
//
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(hook string, args ...any) lua.LValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.L == nil {
		return lua.LNil
	}

	fn := m.L.GetGlobal(hook)
	if fn.Type() != lua.LTFunction {
		return lua.LNil
	}

	lvs := make([]lua.LValue, len(args))
	for i, a := range args {
		lvs[i] = ToLua(m.L, a)
	}
	release := limit(m.L, m.instLimit)
	defer release()
	if err := m.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lvs...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil
	}

	ret := m.L.Get(-1)
	m.L.Pop(1)
	return ret
}

// Close releases the VM. Later hook calls are no-ops.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.L != nil {
		m.L.Close()
		m.L = nil
	}
}
