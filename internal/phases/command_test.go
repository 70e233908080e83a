package phases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/w40k-tabletop/internal/engine"
	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// commandFixture deploys both units and knocks player 2's Boyz below half
// strength so they owe a battle-shock test on their turn.
func commandFixture() *state.Game {
	g := fixtureGame()
	deployLine(g.Units["u1"], geometry.Point{X: 10, Y: 5}, 1.5)
	deployLine(g.Units["u2"], geometry.Point{X: 10, Y: 40}, 1.5)
	g.Meta.Round = 1
	g.Meta.ActivePlayer = 2
	g.Units["u2"].Models[0].Alive = false
	g.Units["u2"].Models[1].Alive = false
	return g
}

func TestCommandOnEnterGrantsCPAndClearsShock(t *testing.T) {
	g := commandFixture()
	g.Units["u2"].Flags[state.FlagBattleShocked] = true
	g.Units["u2"].Flags[state.FlagShockTested] = true
	env := testEnv(g, engine.NewDice(1))

	p := newCommandPhase()
	applyDiffs(t, g, p.OnEnter(env))

	assert.Equal(t, 1, g.Players[2].CP)
	assert.False(t, g.Units["u2"].Flags[state.FlagBattleShocked])
	assert.False(t, g.Units["u2"].Flags[state.FlagShockTested])
}

func TestBattleShockTestFailsUnderLeadership(t *testing.T) {
	g := commandFixture()
	// 3+2=5 against Leadership 7: failed.
	env := testEnv(g, engine.NewScriptedDice(3, 2))
	p := newCommandPhase()
	applyDiffs(t, g, p.OnEnter(env))

	a := Action{Type: ActionBattleShockTest, Player: 2, Unit: "u2"}
	require.True(t, p.ValidateAction(env, a).Valid)
	res := p.ProcessAction(env, a)
	require.True(t, res.Success)
	applyDiffs(t, g, res.Diffs)

	assert.True(t, g.Units["u2"].Flags[state.FlagBattleShocked])
	assert.True(t, g.Units["u2"].Flags[state.FlagShockTested])
	require.Len(t, res.Events, 1)
	assert.Equal(t, "battle_shocked", res.Events[0].Name)
}

func TestBattleShockTestPassesOnLeadership(t *testing.T) {
	g := commandFixture()
	// 4+5=9 against Leadership 7: passed.
	env := testEnv(g, engine.NewScriptedDice(4, 5))
	p := newCommandPhase()
	applyDiffs(t, g, p.OnEnter(env))

	res := p.ProcessAction(env, Action{Type: ActionBattleShockTest, Player: 2, Unit: "u2"})
	require.True(t, res.Success)
	applyDiffs(t, g, res.Diffs)

	assert.False(t, g.Units["u2"].Flags[state.FlagBattleShocked])
	assert.True(t, g.Units["u2"].Flags[state.FlagShockTested])
	assert.Empty(t, res.Events)
}

func TestBattleShockRejectsFullStrengthUnit(t *testing.T) {
	g := commandFixture()
	g.Meta.ActivePlayer = 1
	env := testEnv(g, engine.NewDice(1))
	p := newCommandPhase()

	v := p.ValidateAction(env, Action{Type: ActionBattleShockTest, Player: 1, Unit: "u1"})
	require.False(t, v.Valid)
	assert.Contains(t, v.Errors[0], "not below half strength")
}

func TestEndCommandAutoResolvesPendingTests(t *testing.T) {
	g := commandFixture()
	env := testEnv(g, engine.NewScriptedDice(1, 2))
	p := newCommandPhase()
	applyDiffs(t, g, p.OnEnter(env))

	res := p.ProcessAction(env, Action{Type: ActionEndCommand, Player: 2})
	require.True(t, res.Success)
	applyDiffs(t, g, res.Diffs)

	assert.True(t, p.ShouldComplete(env))
	assert.True(t, g.Units["u2"].Flags[state.FlagBattleShocked])
	assert.NotNil(t, res.Extra["auto_battle_shock"])
}

func TestCommandAvailableActionsListPendingTests(t *testing.T) {
	g := commandFixture()
	env := testEnv(g, engine.NewDice(1))
	p := newCommandPhase()

	acts := p.AvailableActions(env)
	require.Len(t, acts, 2)
	assert.Equal(t, ActionBattleShockTest, acts[0].Type)
	assert.Equal(t, "u2", acts[0].Unit)
	assert.Equal(t, ActionEndCommand, acts[1].Type)
}
