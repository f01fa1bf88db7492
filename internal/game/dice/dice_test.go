package dice_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/keeper/internal/game/dice"
)

// TestRollResult_Total verifies the postcondition: Total() == sum(Dice) + Modifier.
func TestRollResult_Total(t *testing.T) {
	r := dice.RollResult{
		Expression: "2D6+3",
		Dice:       []int{4, 5},
		Modifier:   3,
	}
	assert.Equal(t, 12, r.Total(), "Total() must equal sum(Dice)+Modifier")
}

// TestRollResult_String verifies the audit string contains expression, dice, and total.
func TestRollResult_String(t *testing.T) {
	r := dice.RollResult{
		Expression: "2D6+3",
		Dice:       []int{4, 5},
		Modifier:   3,
	}
	assert.Equal(t, "2D6+3 → [4 5] +3 = 12", r.String())
}

func TestRollResult_String_EmptyExpression(t *testing.T) {
	assert.Equal(t, "0 → [] +0 = 0", dice.RollResult{}.String())
}

// TestRollResult_String_Property verifies String() always contains the expression
// and the total for arbitrary RollResult values.
func TestRollResult_String_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		expr := rapid.StringMatching(`[0-9]+D[0-9]+[+-][0-9]+`).Draw(rt, "expression")
		dice_ := rapid.SliceOfN(rapid.IntRange(1, 20), 1, 10).Draw(rt, "dice")
		modifier := rapid.IntRange(-100, 100).Draw(rt, "modifier")

		r := dice.RollResult{Expression: expr, Dice: dice_, Modifier: modifier}

		s := r.String()
		assert.True(rt, strings.Contains(s, expr), "String() must contain the expression %q", expr)
		assert.Contains(rt, s, fmt.Sprintf("= %d", r.Total()), "String() must contain the computed total")
	})
}

// TestCryptoSource_Intn_InRange verifies every value returned by Intn(6) is in [0, 6).
func TestCryptoSource_Intn_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
}

// TestCryptoSource_Intn_PanicsOnZero verifies Intn panics when called with n <= 0.
func TestCryptoSource_Intn_PanicsOnZero(t *testing.T) {
	src := dice.NewCryptoSource()
	assert.Panics(t, func() { src.Intn(0) })
}

func TestSeededSource_Reproducible(t *testing.T) {
	a := dice.NewSeededSource(42)
	b := dice.NewSeededSource(42)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Intn(100), b.Intn(100), "draw %d", i)
	}
}

func TestScriptedSource_FacesAndClamp(t *testing.T) {
	src := dice.NewScriptedSource(5, 60, 9)
	assert.Equal(t, 5, dice.Percentile(src))
	assert.Equal(t, 60, dice.Percentile(src))
	// 9 on a d6 clamps to the highest face.
	assert.Equal(t, 6, dice.D(src, 6))
	// Exhausted: the last face repeats.
	assert.Equal(t, 4, dice.D(src, 4))
	assert.Equal(t, 0, src.Remaining())
}

func TestPercentile_Property_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	rapid.Check(t, func(rt *rapid.T) {
		v := dice.Percentile(src)
		assert.GreaterOrEqual(rt, v, 1)
		assert.LessOrEqual(rt, v, 100)
	})
}
