package scripting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/keeper/internal/game/dice"
)

func TestKeeperRoll_UsesRoller(t *testing.T) {
	mgr, _ := newTestManager(t, dice.NewScriptedSource(4, 2))
	loadMacro(t, mgr, `
		function damage()
			return keeper.roll("2D6+1")
		end
	`)
	ret, err := mgr.Call("damage")
	require.NoError(t, err)
	require.Len(t, ret, 2)
	assert.Equal(t, lua.LNumber(7), ret[0])
	assert.Contains(t, ret[1].String(), "2D6+1")
}

func TestKeeperRoll_MalformedIsZero(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	loadMacro(t, mgr, `function bad() return keeper.roll("banana") end`)
	ret, err := mgr.Call("bad")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(0), ret[0])
}

func TestKeeperMax(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	loadMacro(t, mgr, `function top(expr) return keeper.max(expr) end`)
	for expr, want := range map[string]int{"1D8+1D4": 12, "3D6": 18, "1D10-2": 8, "": 0} {
		ret, err := mgr.Call("top", lua.LString(expr))
		require.NoError(t, err)
		assert.Equal(t, lua.LNumber(want), ret[0], expr)
	}
}

func TestKeeperClassify(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	loadMacro(t, mgr, `function lvl(r, s) return keeper.classify(r, s) end`)
	cases := []struct {
		roll, target int
		want         string
	}{
		{1, 50, "critical success"},
		{10, 50, "extreme success"},
		{25, 50, "hard success"},
		{50, 50, "regular success"},
		{51, 50, "failure"},
		{100, 50, "fumble"},
	}
	for _, tc := range cases {
		ret, err := mgr.Call("lvl", lua.LNumber(tc.roll), lua.LNumber(tc.target))
		require.NoError(t, err)
		assert.Equal(t, lua.LString(tc.want), ret[0], "roll %d target %d", tc.roll, tc.target)
	}

	_, err := mgr.Call("lvl", lua.LNumber(0), lua.LNumber(50))
	assert.Error(t, err)
}

func TestKeeperCheck_RollsFromSource(t *testing.T) {
	mgr, _ := newTestManager(t, dice.NewScriptedSource(20))
	loadMacro(t, mgr, `
		function spot(target, tier)
			local c = keeper.check("Spot Hidden", target, tier)
			return c.roll, c.level, c.passed, c.text
		end
	`)
	ret, err := mgr.Call("spot", lua.LNumber(60), lua.LNumber(2))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(20), ret[0])
	assert.Equal(t, lua.LString("hard success"), ret[1])
	assert.Equal(t, lua.LTrue, ret[2])
	assert.Contains(t, ret[3].String(), "Spot Hidden 60")

	ret, err = mgr.Call("spot", lua.LNumber(60), lua.LNumber(3))
	require.NoError(t, err)
	assert.Equal(t, lua.LFalse, ret[2], "20 against 60 is not an extreme success")
}

func TestKeeperCheck_CalledRoll(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	loadMacro(t, mgr, `
		function called(roll)
			local c = keeper.check("Dodge", 40, 1, roll)
			return c.roll, c.passed
		end
	`)
	ret, err := mgr.Call("called", lua.LNumber(41))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(41), ret[0])
	assert.Equal(t, lua.LFalse, ret[1])

	_, err = mgr.Call("called", lua.LNumber(101))
	assert.Error(t, err)
}

func TestKeeperLog_WritesToLogger(t *testing.T) {
	mgr, logs := newTestManager(t, nil)
	loadMacro(t, mgr, `function say() keeper.log("hello from lua") end`)
	_, err := mgr.Call("say")
	require.NoError(t, err)

	entries := logs.FilterMessage("macro").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, "hello from lua", entries[0].ContextMap()["message"])
}

func TestProperty_KeeperRollWithinBounds(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	loadMacro(t, mgr, `
		function bounds(expr)
			local total = keeper.roll(expr)
			return total, keeper.max(expr)
		end
	`)
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(rt, "n")
		sides := rapid.SampledFrom([]int{4, 6, 8, 10, 12, 20}).Draw(rt, "sides")
		expr := lua.LString(dice.Formula{Terms: []dice.Term{{Sign: 1, Count: n, Sides: sides}}}.String())
		ret, err := mgr.Call("bounds", expr)
		if err != nil {
			rt.Fatalf("bounds(%s): %v", expr, err)
		}
		total, hi := int(ret[0].(lua.LNumber)), int(ret[1].(lua.LNumber))
		if total < n || total > hi || hi != n*sides {
			rt.Fatalf("%s rolled %d, max %d", expr, total, hi)
		}
	})
}
