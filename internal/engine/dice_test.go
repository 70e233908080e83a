package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeededDiceReplayIdentically(t *testing.T) {
	a := NewDice(42)
	b := NewDice(42)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.RollD6("test", "u1"), b.RollD6("test", "u1"))
	}
	assert.Equal(t, a.Log(), b.Log())
}

func TestScriptedDiceFeedThrough(t *testing.T) {
	d := NewScriptedDice(3, 2, 6)
	v1 := d.RollD6("battle_shock_test", "u1")
	v2 := d.RollD6("battle_shock_test", "u1")
	assert.Equal(t, 3, v1)
	assert.Equal(t, 2, v2)
	assert.Equal(t, 6, d.RollD6("advance", "u2"))

	log := d.Log()
	require.Len(t, log, 3)
	assert.Equal(t, "battle_shock_test", log[0].Context)
	assert.Equal(t, "u1", log[0].Unit)
	assert.Equal(t, []int{3}, log[0].Values)
	assert.Equal(t, "advance", log[2].Context)
}

func TestScriptedDiceExhaustionPanics(t *testing.T) {
	d := NewScriptedDice(4)
	d.RollD6("x", "")
	assert.Panics(t, func() { d.RollD6("x", "") })
}

func TestRoll2D6(t *testing.T) {
	d := NewScriptedDice(4, 5)
	a, b := d.Roll2D6("charge", "u1")
	assert.Equal(t, 4, a)
	assert.Equal(t, 5, b)
	require.Len(t, d.Log(), 1)
	assert.Equal(t, 9, d.Log()[0].Total)
}

func TestRollExpr(t *testing.T) {
	tt := []struct {
		expr  string
		faces []int
		want  int
	}{
		{"3", nil, 3},
		{"d6", []int{5}, 5},
		{"2d6", []int{2, 3}, 5},
		{"2d6+1", []int{2, 3}, 6},
		{"d3-4", []int{1}, 0}, // clamped at zero
		{"2d3 x2", []int{3, 1}, 8},
		{"garbage", nil, 0},
		{"", nil, 0},
	}
	for _, tc := range tt {
		t.Run(tc.expr, func(t *testing.T) {
			d := NewScriptedDice(tc.faces...)
			assert.Equal(t, tc.want, d.RollExpr("test", "u1", tc.expr))
		})
	}
}

func TestMaxExpr(t *testing.T) {
	assert.Equal(t, 6, MaxExpr("D6"))
	assert.Equal(t, 3, MaxExpr("D3"))
	assert.Equal(t, 15, MaxExpr("2d6+3"))
	assert.Equal(t, 4, MaxExpr("4"))
	assert.Equal(t, 0, MaxExpr("nope"))
}
