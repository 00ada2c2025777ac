// Package script evaluates canopy constraints written in Lua.
//
// An Engine owns one gopher-lua VM. Scripts define global functions of the
// form
//
//	function follow(current, a, b)
//	  return (a + b) / 2
//	end
//
// and Engine.Constraint binds such a function to a float property and its
// sources. The VM is not safe for concurrent use; create the engine, load
// scripts and apply its constraints on the update goroutine only.
package script

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/phanxgames/canopy"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger

	args     []lua.LValue // reused call arguments
	failures int
}

// NewEngine creates an engine with the standard Lua libraries opened.
func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	return &Engine{vm: vm, log: log}
}

// Close releases the VM.
func (e *Engine) Close() {
	e.vm.Close()
}

// LoadString runs a chunk of Lua source.
func (e *Engine) LoadString(source string) error {
	if err := e.vm.DoString(source); err != nil {
		return fmt.Errorf("load lua chunk: %w", err)
	}
	return nil
}

// LoadFile runs one Lua file.
func (e *Engine) LoadFile(path string) error {
	if err := e.vm.DoFile(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	e.log.Debug("loaded lua script", zap.String("file", path))
	return nil
}

// LoadDir runs every .lua file in dir in name order. A missing directory is
// not an error.
func (e *Engine) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read script dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		if err := e.LoadFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Constraint binds the global Lua function fnName to target. Each frame the
// function is called with the target's current value followed by the
// source values, and its numeric result is written to target. A failing or
// non-numeric call keeps the current value and is logged.
func (e *Engine) Constraint(target *canopy.Property[float32], fnName string, sources ...canopy.PropertyInput[float32]) (*canopy.ConstraintN[float32, float32], error) {
	fn, ok := e.vm.GetGlobal(fnName).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("lua function %s not found", fnName)
	}
	return canopy.NewConstraintN(target, sources, func(current float32, inputs []float32) float32 {
		return e.call(fnName, fn, current, inputs)
	}), nil
}

// Failures returns how many constraint calls failed.
func (e *Engine) Failures() int {
	return e.failures
}

func (e *Engine) call(name string, fn *lua.LFunction, current float32, inputs []float32) float32 {
	e.args = append(e.args[:0], lua.LNumber(current))
	for _, v := range inputs {
		e.args = append(e.args, lua.LNumber(v))
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, e.args...); err != nil {
		e.failures++
		e.log.Error("lua constraint error", zap.String("fn", name), zap.Error(err))
		return current
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	n, ok := result.(lua.LNumber)
	if !ok {
		e.failures++
		e.log.Error("lua constraint returned non-number",
			zap.String("fn", name), zap.String("type", result.Type().String()))
		return current
	}
	return float32(n)
}
