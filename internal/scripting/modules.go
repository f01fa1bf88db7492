package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/keeper/internal/game/check"
	"github.com/cory-johannsen/keeper/internal/game/dice"
)

// RegisterModules registers the keeper Lua table into L:
//
//	keeper.roll(expr)               -> total, detail
//	keeper.max(expr)                -> maximum of expr
//	keeper.classify(roll, target)   -> success level label
//	keeper.check(skill, target, [tier], [roll]) -> {roll, level, passed, text}
//	keeper.log(msg)                 -> writes msg to the keeper log
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: keeper global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	keeper := L.NewTable()
	L.SetFuncs(keeper, map[string]lua.LGFunction{
		"roll":     m.luaRoll,
		"max":      luaMax,
		"classify": luaClassify,
		"check":    m.luaCheck,
		"log":      m.luaLog,
	})
	L.SetGlobal("keeper", keeper)
}

func (m *Manager) luaRoll(L *lua.LState) int {
	res := m.roller.RollExpr(L.CheckString(1))
	L.Push(lua.LNumber(res.Total()))
	L.Push(lua.LString(res.String()))
	return 2
}

func luaMax(L *lua.LState) int {
	L.Push(lua.LNumber(dice.Maximize(L.CheckString(1))))
	return 1
}

func luaClassify(L *lua.LState) int {
	roll := L.CheckInt(1)
	if roll < 1 || roll > 100 {
		L.ArgError(1, "roll must be 1-100")
		return 0
	}
	L.Push(lua.LString(check.Classify(roll, L.CheckInt(2)).String()))
	return 1
}

// luaCheck rolls (or takes) a percentile and returns the check as a table.
func (m *Manager) luaCheck(L *lua.LState) int {
	skill := L.CheckString(1)
	target := L.CheckInt(2)
	d := check.DifficultyFromTier(L.OptInt(3, 0))
	roll := L.OptInt(4, 0)

	var c check.Check
	if roll == 0 {
		c = check.Roll(m.roller, skill, target, d)
	} else {
		if roll < 1 || roll > 100 {
			L.ArgError(4, "roll must be 1-100")
			return 0
		}
		c = check.Resolved(skill, target, d, roll)
	}

	t := L.NewTable()
	t.RawSetString("roll", lua.LNumber(c.Roll))
	t.RawSetString("level", lua.LString(c.Level.String()))
	t.RawSetString("passed", lua.LBool(c.Passed))
	t.RawSetString("text", lua.LString(c.String()))
	L.Push(t)
	return 1
}

func (m *Manager) luaLog(L *lua.LState) int {
	m.logger.Info("macro", zap.String("message", L.CheckString(1)))
	return 0
}
