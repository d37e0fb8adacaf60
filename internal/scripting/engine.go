// Package scripting hosts the gopher-lua VM that owns the tunable game
// logic: enemy AI decisions and reward shaping. Go detects the situation
// and executes the outcome; Lua only decides. Every bridge falls back to
// fixed defaults when the script is missing or errors.
package scripting

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

//go:embed scripts/*.lua
var defaultScripts embed.FS

// Engine wraps a single gopher-lua VM. Single-goroutine access only
// (room loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine, loads the embedded default scripts, then
// overlays any .lua files from scriptsDir (optional, "" to skip).
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	entries, err := defaultScripts.ReadDir("scripts")
	if err != nil {
		vm.Close()
		return nil, fmt.Errorf("read embedded scripts: %w", err)
	}
	for _, entry := range entries {
		src, err := defaultScripts.ReadFile("scripts/" + entry.Name())
		if err != nil {
			vm.Close()
			return nil, fmt.Errorf("read embedded %s: %w", entry.Name(), err)
		}
		if err := vm.DoString(string(src)); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load embedded %s: %w", entry.Name(), err)
		}
	}

	if scriptsDir != "" {
		if err := e.loadDir(scriptsDir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory, overriding earlier globals.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
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

// --- Enemy AI Bridge ---

// AIContext holds pre-packed data for one enemy AI decision.
type AIContext struct {
	EnemyID uint64
	Type    string
	Boss    bool

	HP, MaxHP int
	Level     int

	// Target (detected by Go; negative TargetDist = no player in range)
	TargetDist float64
	AnchorDist float64

	// BaseStep is the template move-step override (0 = script defaults)
	BaseStep float64
}

// AICommand is the decision returned by Lua enemy_ai.
type AICommand struct {
	Type string  // "pursue", "return_home", "drift", "idle"
	Step float64 // per-tick move step
}

// RunEnemyAI calls Lua enemy_ai(ctx). The second return is false when the
// script is missing or failed, in which case the caller applies the fixed
// Go decision tree.
func (e *Engine) RunEnemyAI(ctx AIContext) (AICommand, bool) {
	fn := e.vm.GetGlobal("enemy_ai")
	if fn == lua.LNil {
		return AICommand{}, false
	}

	t := e.vm.NewTable()
	t.RawSetString("enemy_id", lua.LNumber(ctx.EnemyID))
	t.RawSetString("type", lua.LString(ctx.Type))
	if ctx.Boss {
		t.RawSetString("boss", lua.LTrue)
	} else {
		t.RawSetString("boss", lua.LFalse)
	}
	t.RawSetString("hp", lua.LNumber(ctx.HP))
	t.RawSetString("max_hp", lua.LNumber(ctx.MaxHP))
	t.RawSetString("level", lua.LNumber(ctx.Level))
	t.RawSetString("target_dist", lua.LNumber(ctx.TargetDist))
	t.RawSetString("anchor_dist", lua.LNumber(ctx.AnchorDist))
	t.RawSetString("base_step", lua.LNumber(ctx.BaseStep))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua enemy_ai error", zap.Error(err), zap.Uint64("enemy_id", ctx.EnemyID))
		return AICommand{}, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return AICommand{}, false
	}

	cmd := AICommand{
		Type: lStr(rt, "type"),
		Step: float64(lua.LVAsNumber(rt.RawGetString("step"))),
	}
	if cmd.Type == "" {
		return AICommand{}, false
	}
	return cmd, true
}

// --- Reward Bridge ---

// RewardContext holds data for dungeon completion reward shaping.
type RewardContext struct {
	Kind       string // "xp" or "credits"
	Base       int
	Level      int
	Difficulty int
}

// RewardBonus calls Lua reward_bonus(ctx) and returns the shaped amount.
// Any failure returns the base unchanged.
func (e *Engine) RewardBonus(ctx RewardContext) int {
	fn := e.vm.GetGlobal("reward_bonus")
	if fn == lua.LNil {
		return ctx.Base
	}

	t := e.vm.NewTable()
	t.RawSetString("kind", lua.LString(ctx.Kind))
	t.RawSetString("base", lua.LNumber(ctx.Base))
	t.RawSetString("level", lua.LNumber(ctx.Level))
	t.RawSetString("difficulty", lua.LNumber(ctx.Difficulty))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua reward_bonus error", zap.Error(err))
		return ctx.Base
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	n := int(lua.LVAsNumber(result))
	if n < 0 {
		return ctx.Base
	}
	return n
}

// --- Lua helpers ---

// lStr reads a string field from a Lua table.
func lStr(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
