// Package script is a post-processing stage driven by a Lua script.
//
// The script defines a global function
//
//	function filter(kind, id, x, y) return keep[, x, y] end
//
// called once per event with kind one of "down", "move" or "up" and the
// normalized position. A falsy keep drops the event; returning two numbers
// moves the touch. The stage registers itself as "script".
package script

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/phuslu/log"
	"go.yuchanns.xyz/lua"

	"go.yuchanns.xyz/touchloop"
)

const Name = "script"

var ErrNoFilter = errors.New("script: no global filter function")

func init() {
	touchloop.RegisterPostProc(Name, func(cfg touchloop.PostProcConfig) (touchloop.PostProc, error) {
		return New(LibPath(cfg.LuaLib), cfg.Script)
	})
}

// LibPath returns path, or the platform's default Lua 5.4 shared library
// name when path is empty.
func LibPath(path string) string {
	if path != "" {
		return path
	}
	switch runtime.GOOS {
	case "windows":
		return "lua54.dll"
	case "darwin":
		return "liblua54.dylib"
	}
	return "liblua54.so"
}

// Filter runs every event through the script's filter function. It must
// only be used from the loop goroutine.
type Filter struct {
	lib *lua.Lib
	L   *lua.State
}

// New loads the Lua library at libPath and runs the script file.
func New(libPath, file string) (f *Filter, err error) {
	if file == "" {
		return nil, errors.New("script: no script file configured")
	}
	f, err = newState(libPath)
	if err != nil {
		return
	}
	if err = f.L.DoFile(file); err != nil {
		f.Close()
		return nil, fmt.Errorf("script: run %s: %w", file, err)
	}
	if err = f.check(); err != nil {
		f.Close()
		return nil, err
	}
	return
}

// NewString is New with the script given inline.
func NewString(libPath, code string) (f *Filter, err error) {
	f, err = newState(libPath)
	if err != nil {
		return
	}
	if err = f.L.DoString(code); err != nil {
		f.Close()
		return nil, fmt.Errorf("script: %w", err)
	}
	if err = f.check(); err != nil {
		f.Close()
		return nil, err
	}
	return
}

func newState(libPath string) (*Filter, error) {
	lib, err := lua.New(libPath)
	if err != nil {
		return nil, fmt.Errorf("script: load %s: %w", libPath, err)
	}
	L, err := lib.NewState()
	if err != nil {
		lib.Close()
		return nil, fmt.Errorf("script: new state: %w", err)
	}
	L.OpenLibs()
	return &Filter{lib: lib, L: L}, nil
}

func (f *Filter) check() error {
	L := f.L
	L.GetGlobal("filter")
	defer L.Pop(1)
	if L.Type(-1) != lua.LUA_TFUNCTION {
		return ErrNoFilter
	}
	return nil
}

func (f *Filter) Process(events []touchloop.Event) []touchloop.Event {
	out := events[:0]
	for _, ev := range events {
		keep, err := f.call(ev)
		if err != nil {
			log.Error().Err(err).Msgf("script filter failed on %s %d", ev.Kind, ev.Touch.ID)
			out = append(out, ev)
			continue
		}
		if keep {
			out = append(out, ev)
		}
	}
	return out
}

func (f *Filter) call(ev touchloop.Event) (keep bool, err error) {
	L := f.L
	t := ev.Touch
	top := L.GetTop()
	defer func() {
		if n := L.GetTop() - top; n > 0 {
			L.Pop(n)
		}
	}()
	L.GetGlobal("filter")
	L.PushString(ev.Kind.String())
	L.PushInteger(t.ID)
	L.PushNumber(t.SX)
	L.PushNumber(t.SY)
	if err = L.PCall(4, 3, 0); err != nil {
		return
	}
	keep = L.ToBoolean(-3)
	if L.Type(-2) == lua.LUA_TNUMBER && L.Type(-1) == lua.LUA_TNUMBER {
		sx, sy := L.ToNumber(-2), L.ToNumber(-1)
		t.SX, t.SY = sx, sy
		t.X, t.Y = sx, sy
	}
	return
}

func (f *Filter) Close() {
	if f.L != nil {
		f.L.Close()
		f.L = nil
	}
	if f.lib != nil {
		f.lib.Close()
		f.lib = nil
	}
}
