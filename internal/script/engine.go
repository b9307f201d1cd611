package script

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
)

// DefaultTimeout bounds a single Lua call.
const DefaultTimeout = 5 * time.Second

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the per-call timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger behind signals.log.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// Engine is a sandboxed Lua state.
type Engine struct {
	mu      sync.Mutex
	L       *lua.LState
	timeout time.Duration
	logger  zerolog.Logger
	closed  bool
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(e.L)
	e.installModule()
	return e
}

func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// installModule exposes the "signals" table to scripts.
func (e *Engine) installModule() {
	mod := e.L.NewTable()
	e.L.SetField(mod, "log", e.L.NewFunction(func(L *lua.LState) int {
		level := zerolog.InfoLevel
		msg := L.CheckString(1)
		if L.GetTop() >= 2 {
			if lv, err := zerolog.ParseLevel(L.CheckString(2)); err == nil {
				level = lv
			}
		}
		e.logger.WithLevel(level).Str("component", "lua").Msg(msg)
		return 0
	}))
	e.L.SetGlobal("signals", mod)
}

// DoString executes Lua source, typically function definitions.
func (e *Engine) DoString(code string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	return e.protect(func() error { return e.L.DoString(code) })
}

// DoFile executes a Lua file.
func (e *Engine) DoFile(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	return e.protect(func() error { return e.L.DoFile(path) })
}

// HasFunction reports whether name is a global function.
func (e *Engine) HasFunction(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}
	return e.L.GetGlobal(name).Type() == lua.LTFunction
}

// Call calls the global function fn with Go arguments converted by ToLua
// and returns its results converted by ToGo.
func (e *Engine) Call(ctx context.Context, fn string, args ...any) ([]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}

	fnVal := e.L.GetGlobal(fn)
	if fnVal.Type() != lua.LTFunction {
		return nil, &ScriptError{Function: fn, Err: ErrFunctionNotFound}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	e.L.SetContext(ctx)
	defer e.L.RemoveContext()

	top := e.L.GetTop()
	e.L.Push(fnVal)
	for _, a := range args {
		lv, err := ToLua(e.L, a)
		if err != nil {
			e.L.SetTop(top)
			return nil, &ScriptError{Function: fn, Err: err}
		}
		e.L.Push(lv)
	}

	if err := e.protect(func() error { return e.L.PCall(len(args), lua.MultRet, nil) }); err != nil {
		e.L.SetTop(top)
		return nil, &ScriptError{Function: fn, Err: err}
	}

	n := e.L.GetTop() - top
	results := make([]any, n)
	for i := 0; i < n; i++ {
		results[i] = ToGo(e.L.Get(top + i + 1))
	}
	e.L.SetTop(top)
	return results, nil
}

func (e *Engine) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Close releases the Lua state.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	e.L.Close()
}
