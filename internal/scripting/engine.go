package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM holding the server's announcement
// hooks. Single-goroutine access only (server tick loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

func newState() *lua.LState {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	return vm
}

// NewEngine creates a Lua engine and loads every .lua file in dir, in name
// order. A missing directory yields an engine with no hooks.
func NewEngine(dir string, log *zap.Logger) (*Engine, error) {
	e := &Engine{vm: newState(), log: log}
	if err := e.loadDir(dir); err != nil {
		e.vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

// NewEngineFromString builds an engine from a single chunk of Lua source.
func NewEngineFromString(src string, log *zap.Logger) (*Engine, error) {
	e := &Engine{vm: newState(), log: log}
	if err := e.vm.DoString(src); err != nil {
		e.vm.Close()
		return nil, fmt.Errorf("load script: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			e.log.Debug("no script directory", zap.String("dir", dir))
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// JoinMessage returns the chat line announcing that name connected. Scripts
// override it by defining on_join(name).
func (e *Engine) JoinMessage(name string) string {
	if s, ok := e.callString("on_join", name); ok {
		return s
	}
	return name + " has connected"
}

// LeaveMessage returns the chat line announcing that name left. Scripts
// override it by defining on_leave(name).
func (e *Engine) LeaveMessage(name string) string {
	if s, ok := e.callString("on_leave", name); ok {
		return s
	}
	return name + " has disconnected"
}

// HasHook reports whether the loaded scripts define a global function name.
func (e *Engine) HasHook(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// callString calls a global Lua function with string arguments and expects
// one string back. Any failure is logged and reported as !ok.
func (e *Engine) callString(name string, args ...string) (string, bool) {
	fn, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return "", false
	}
	lArgs := make([]lua.LValue, len(args))
	for i, a := range args {
		lArgs[i] = lua.LString(a)
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lArgs...); err != nil {
		e.log.Error("lua call error", zap.String("func", name), zap.Error(err))
		return "", false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	s, ok := result.(lua.LString)
	if !ok {
		e.log.Warn("lua hook returned a non-string", zap.String("func", name), zap.String("type", result.Type().String()))
		return "", false
	}
	return string(s), true
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
