package phases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/w40k-tabletop/internal/engine"
	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/state"
)

func movementFixture() *state.Game {
	g := fixtureGame()
	deployLine(g.Units["u1"], geometry.Point{X: 10, Y: 5}, 1.5)
	deployLine(g.Units["u2"], geometry.Point{X: 10, Y: 40}, 1.5)
	g.Meta.Round = 1
	g.Meta.ActivePlayer = 1
	return g
}

func TestNormalMoveWithinCap(t *testing.T) {
	g := movementFixture()
	env := testEnv(g, engine.NewDice(1))
	p := newMovementPhase()

	res := p.ProcessAction(env, Action{Type: ActionBeginMove, Player: 1, Unit: "u1"})
	require.True(t, res.Success)
	assert.Equal(t, 6.0, res.Extra["move_cap"])

	mv := Action{Type: ActionMoveModel, Player: 1, Unit: "u1",
		Moves: []ModelMove{{Model: 0, To: geometry.Point{X: 10, Y: 10}}}}
	require.True(t, p.ValidateAction(env, mv).Valid)
	res = p.ProcessAction(env, mv)
	require.True(t, res.Success)
	applyDiffs(t, g, res.Diffs)
	assert.Equal(t, 10.0, g.Units["u1"].Models[0].Pos.Y)

	// The cap is cumulative across steps for the same model.
	mv.Moves[0].To = geometry.Point{X: 10, Y: 13}
	v := p.ValidateAction(env, mv)
	require.False(t, v.Valid)
	assert.Contains(t, v.Errors[0], "cap")
}

func TestCommitNormalMoveSetsFlag(t *testing.T) {
	g := movementFixture()
	env := testEnv(g, engine.NewDice(1))
	p := newMovementPhase()

	require.True(t, p.ProcessAction(env, Action{Type: ActionBeginMove, Player: 1, Unit: "u1"}).Success)
	commit := Action{Type: ActionCommitMove, Player: 1, Unit: "u1"}
	require.True(t, p.ValidateAction(env, commit).Valid)
	res := p.ProcessAction(env, commit)
	require.True(t, res.Success)
	applyDiffs(t, g, res.Diffs)

	assert.True(t, g.Units["u1"].Flags[state.FlagMoved])
	// One move per unit per turn.
	v := p.ValidateAction(env, Action{Type: ActionBeginMove, Player: 1, Unit: "u1"})
	require.False(t, v.Valid)
}

func TestAdvanceAddsDieToCap(t *testing.T) {
	g := movementFixture()
	env := testEnv(g, engine.NewScriptedDice(4))
	p := newMovementPhase()

	res := p.ProcessAction(env, Action{Type: ActionBeginMove, Player: 1, Unit: "u1", Mode: MoveModeAdvance})
	require.True(t, res.Success)
	assert.Equal(t, 4, res.Extra["advance_roll"])
	assert.Equal(t, 10.0, res.Extra["move_cap"])

	res = p.ProcessAction(env, Action{Type: ActionCommitMove, Player: 1, Unit: "u1"})
	require.True(t, res.Success)
	applyDiffs(t, g, res.Diffs)
	assert.True(t, g.Units["u1"].Flags[state.FlagAdvanced])
}

func TestResetUnitMoveRestoresPositions(t *testing.T) {
	g := movementFixture()
	env := testEnv(g, engine.NewDice(1))
	p := newMovementPhase()

	require.True(t, p.ProcessAction(env, Action{Type: ActionBeginMove, Player: 1, Unit: "u1"}).Success)
	res := p.ProcessAction(env, Action{Type: ActionMoveModel, Player: 1, Unit: "u1",
		Moves: []ModelMove{{Model: 0, To: geometry.Point{X: 12, Y: 8}}}})
	require.True(t, res.Success)
	applyDiffs(t, g, res.Diffs)

	res = p.ProcessAction(env, Action{Type: ActionResetUnitMove, Player: 1, Unit: "u1"})
	require.True(t, res.Success)
	applyDiffs(t, g, res.Diffs)

	assert.Equal(t, geometry.Point{X: 10, Y: 5}, *g.Units["u1"].Models[0].Pos)
	assert.False(t, g.Units["u1"].Flags[state.FlagMoved])
	// The unit may begin a fresh move afterwards.
	require.True(t, p.ValidateAction(env, Action{Type: ActionBeginMove, Player: 1, Unit: "u1"}).Valid)
}

func TestEngagedUnitMustFallBack(t *testing.T) {
	g := movementFixture()
	// Put the Boyz in engagement range of the Intercessors.
	deployLine(g.Units["u2"], geometry.Point{X: 10, Y: 6.5}, 1.5)
	env := testEnv(g, engine.NewDice(1))
	p := newMovementPhase()

	v := p.ValidateAction(env, Action{Type: ActionBeginMove, Player: 1, Unit: "u1"})
	require.False(t, v.Valid)
	assert.Contains(t, v.Errors[0], "fall back")

	require.True(t, p.ValidateAction(env,
		Action{Type: ActionBeginMove, Player: 1, Unit: "u1", Mode: MoveModeFallBack}).Valid)
}

func TestBattleShockedCannotFallBack(t *testing.T) {
	g := movementFixture()
	deployLine(g.Units["u2"], geometry.Point{X: 10, Y: 6.5}, 1.5)
	g.Units["u1"].Flags[state.FlagBattleShocked] = true
	env := testEnv(g, engine.NewDice(1))
	p := newMovementPhase()

	v := p.ValidateAction(env, Action{Type: ActionBeginMove, Player: 1, Unit: "u1", Mode: MoveModeFallBack})
	require.False(t, v.Valid)
	assert.Contains(t, v.Errors[0], "battle-shocked")
}

func TestFallBackDesperateEscape(t *testing.T) {
	g := movementFixture()
	deployLine(g.Units["u2"], geometry.Point{X: 10, Y: 6.5}, 1.5)
	env := testEnv(g, engine.NewScriptedDice(1, 5, 6))
	p := newMovementPhase()

	require.True(t, p.ProcessAction(env,
		Action{Type: ActionBeginMove, Player: 1, Unit: "u1", Mode: MoveModeFallBack}).Success)
	for i := 0; i < 3; i++ {
		mv := Action{Type: ActionMoveModel, Player: 1, Unit: "u1",
			Moves: []ModelMove{{Model: i, To: geometry.Point{X: 10 + float64(i)*1.5, Y: 1}}}}
		require.True(t, p.ValidateAction(env, mv).Valid, "model %d", i)
		res := p.ProcessAction(env, mv)
		require.True(t, res.Success)
		applyDiffs(t, g, res.Diffs)
	}

	res := p.ProcessAction(env, Action{Type: ActionCommitMove, Player: 1, Unit: "u1"})
	require.True(t, res.Success)
	applyDiffs(t, g, res.Diffs)

	// Die faces 1,5,6: only the first mover is slain on the way out.
	assert.False(t, g.Units["u1"].Models[0].Alive)
	assert.True(t, g.Units["u1"].Models[1].Alive)
	assert.True(t, g.Units["u1"].Models[2].Alive)
	assert.True(t, g.Units["u1"].Flags[state.FlagFellBack])
	assert.True(t, g.Units["u1"].Flags[state.FlagLostModels])
}

func TestMoveCannotEndInEngagementRange(t *testing.T) {
	g := movementFixture()
	env := testEnv(g, engine.NewDice(1))
	p := newMovementPhase()

	require.True(t, p.ProcessAction(env, Action{Type: ActionBeginMove, Player: 1, Unit: "u1"}).Success)
	// Walking into the enemy buffer is blocked at the step level.
	mv := Action{Type: ActionMoveModel, Player: 1, Unit: "u1",
		Moves: []ModelMove{{Model: 0, To: geometry.Point{X: 10, Y: 39.5}}}}
	v := p.ValidateAction(env, mv)
	require.False(t, v.Valid)
}

func TestArriveFromReserves(t *testing.T) {
	g := movementFixture()
	g.Meta.Round = 2
	u3 := g.AddUnit("u3", 1, 2, 28, intercessorProfile())
	u3.Status = state.StatusInReserves
	env := testEnv(g, engine.NewDice(1))
	p := newMovementPhase()

	// Too close to the Boyz line at y=40.
	tooClose := Action{Type: ActionArriveFromReserves, Player: 1, Unit: "u3",
		Positions: line(geometry.Point{X: 10, Y: 35}, 2, 1.5)}
	require.False(t, p.ValidateAction(env, tooClose).Valid)

	arrive := Action{Type: ActionArriveFromReserves, Player: 1, Unit: "u3",
		Positions: line(geometry.Point{X: 30, Y: 20}, 2, 1.5)}
	require.True(t, p.ValidateAction(env, arrive).Valid)
	res := p.ProcessAction(env, arrive)
	require.True(t, res.Success)
	applyDiffs(t, g, res.Diffs)

	assert.Equal(t, state.StatusDeployed, g.Units["u3"].Status)
	assert.True(t, g.Units["u3"].Flags[state.FlagMoved])
}

func TestReservesCannotArriveRoundOne(t *testing.T) {
	g := movementFixture()
	u3 := g.AddUnit("u3", 1, 2, 28, intercessorProfile())
	u3.Status = state.StatusInReserves
	env := testEnv(g, engine.NewDice(1))
	p := newMovementPhase()

	v := p.ValidateAction(env, Action{Type: ActionArriveFromReserves, Player: 1, Unit: "u3",
		Positions: line(geometry.Point{X: 30, Y: 20}, 2, 1.5)})
	require.False(t, v.Valid)
	assert.Contains(t, v.Errors[0], "first battle round")
}

func TestEndMovementBlockedMidMove(t *testing.T) {
	g := movementFixture()
	env := testEnv(g, engine.NewDice(1))
	p := newMovementPhase()

	require.True(t, p.ProcessAction(env, Action{Type: ActionBeginMove, Player: 1, Unit: "u1"}).Success)
	v := p.ValidateAction(env, Action{Type: ActionEndMovement, Player: 1})
	require.False(t, v.Valid)
}
