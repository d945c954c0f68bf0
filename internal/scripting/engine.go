// Package scripting runs the per-object interaction scripts a map's
// Interact operation dispatches into (spec §4.6). It is adapted from the
// teacher's combat-context Lua bridge (internal/scripting/engine.go): same
// single-VM, single-goroutine-access, gopher-lua foundation with
// CallByParam(Protect: true), but repurposed from "one fixed set of named
// combat functions on a shared VM" to "one script body per map object,
// keyed by name, executed with that object's interaction globals bound".
package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/worldmap"
)

// defaultScript is synthesized for any object without a declared script
// (spec §4.6: "A default script is synthesized for any object without one
// declared (simple log)").
const defaultScript = `print(string.format("interact: no script bound for this object (call_type=%s)", call_type))`

// Engine loads every *.lua file from a directory (one file per script
// name, e.g. npc_guard.lua runs for objects whose ScriptName is
// "npc_guard") and runs them on a single shared VM, matching
// worldmap.ScriptRunner.
//
// The VM opens only the base, table, string, and math libraries; io and os
// are not opened. The base library's dofile and loadfile stay available,
// and no time limit or watchdog applies to a run, so a script that does
// not terminate blocks its caller. The callbacks exposed to scripts
// (send/get_object/get_npc/get_extra_data) are synchronous closures over
// the InteractContext passed to Run.
type Engine struct {
	vm      *lua.LState
	scripts map[string]string
	log     *zap.Logger
}

func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, pair := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := vm.CallByParam(lua.P{Fn: vm.NewFunction(pair.fn), NRet: 0, Protect: true}, lua.LString(pair.name)); err != nil {
			vm.Close()
			return nil, fmt.Errorf("open lua lib %s: %w", pair.name, err)
		}
	}

	e := &Engine{vm: vm, scripts: map[string]string{}, log: log}
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read script %s: %w", path, err)
		}
		name := strings.TrimSuffix(entry.Name(), ".lua")
		e.scripts[name] = string(data)
		e.log.Debug("loaded interaction script", zap.String("name", name))
	}
	return nil
}

// Run implements worldmap.ScriptRunner: bind ctx's globals and callbacks,
// then execute the named script (or the synthesized default) on the
// shared VM.
func (e *Engine) Run(scriptName string, ctx worldmap.InteractContext) error {
	source, ok := e.scripts[scriptName]
	if !ok {
		source = defaultScript
	}

	e.vm.SetGlobal("sender", lua.LNumber(ctx.SenderID))
	e.vm.SetGlobal("call_type", lua.LString(ctx.CallType))
	e.vm.SetGlobal("packet", lua.LString(string(ctx.Packet)))
	e.vm.SetGlobal("players", e.playersTable(ctx))
	e.vm.SetGlobal("send", e.vm.NewFunction(sendCallback(ctx)))
	e.vm.SetGlobal("get_object", e.vm.NewFunction(objectCallback(e.vm, ctx.GetObject)))
	e.vm.SetGlobal("get_npc", e.vm.NewFunction(objectCallback(e.vm, ctx.GetNPC)))
	e.vm.SetGlobal("get_extra_data", e.vm.NewFunction(extraDataCallback(e.vm, ctx.GetExtraData)))

	if err := e.vm.DoString(source); err != nil {
		e.log.Debug("interaction script error", zap.String("script", scriptName), zap.Error(err))
		return fmt.Errorf("run script %s: %w", scriptName, err)
	}
	return nil
}

func (e *Engine) playersTable(ctx worldmap.InteractContext) *lua.LTable {
	t := e.vm.NewTable()
	if ctx.Players == nil {
		return t
	}
	for i, id := range ctx.Players() {
		t.RawSetInt(i+1, lua.LNumber(id))
	}
	return t
}

func sendCallback(ctx worldmap.InteractContext) lua.LGFunction {
	return func(vm *lua.LState) int {
		if ctx.Send == nil {
			return 0
		}
		receiver := worldmap.ObjectID(vm.CheckNumber(1))
		pkt := vm.CheckString(2)
		_ = ctx.Send(receiver, []byte(pkt))
		return 0
	}
}

func objectCallback(vm *lua.LState, lookup func(worldmap.ObjectID) (worldmap.StaticObject, bool)) lua.LGFunction {
	return func(L *lua.LState) int {
		if lookup == nil {
			L.Push(lua.LNil)
			return 1
		}
		id := worldmap.ObjectID(L.CheckNumber(1))
		obj, ok := lookup(id)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		t := vm.NewTable()
		t.RawSetString("id", lua.LNumber(obj.ID))
		t.RawSetString("kind", lua.LString(obj.Kind))
		t.RawSetString("name", lua.LString(obj.Name))
		L.Push(t)
		return 1
	}
}

func extraDataCallback(vm *lua.LState, lookup func(worldmap.ObjectID) ([]byte, bool)) lua.LGFunction {
	return func(L *lua.LState) int {
		if lookup == nil {
			L.Push(lua.LNil)
			return 1
		}
		id := worldmap.ObjectID(L.CheckNumber(1))
		data, ok := lookup(id)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(string(data)))
		return 1
	}
}

// Close shuts down the shared VM.
func (e *Engine) Close() {
	e.vm.Close()
}
