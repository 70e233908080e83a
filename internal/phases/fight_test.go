package phases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/w40k-tabletop/internal/engine"
	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// fightFixture locks the Intercessors and the Boyz in combat. Active
// player is 1, so player 2 leads each fight tier.
func fightFixture() *state.Game {
	g := fixtureGame()
	deployLine(g.Units["u1"], geometry.Point{X: 10, Y: 5}, 1.5)
	deployLine(g.Units["u2"], geometry.Point{X: 10, Y: 6.5}, 1.5)
	g.Meta.Round = 1
	g.Meta.ActivePlayer = 1
	return g
}

func TestFightSequenceNonActiveLeads(t *testing.T) {
	g := fightFixture()
	g.AddUnit("u3", 1, 3, 32, intercessorProfile())
	deployLine(g.Units["u3"], geometry.Point{X: 20, Y: 5}, 1.5)
	g.AddUnit("u4", 2, 3, 25, boyzProfile())
	deployLine(g.Units["u4"], geometry.Point{X: 20, Y: 6.5}, 1.5)

	// Normal tier only: player 2's units interleave first.
	assert.Equal(t, []string{"u2", "u1", "u4", "u3"}, buildFightSequence(g))
}

func TestFightSequenceChargersFirst(t *testing.T) {
	g := fightFixture()
	g.AddUnit("u3", 1, 3, 32, intercessorProfile())
	deployLine(g.Units["u3"], geometry.Point{X: 20, Y: 5}, 1.5)
	g.AddUnit("u4", 2, 3, 25, boyzProfile())
	deployLine(g.Units["u4"], geometry.Point{X: 20, Y: 6.5}, 1.5)
	g.Units["u3"].Flags[state.FlagCharged] = true

	// u3 charged, so it fights in the first tier despite belonging to the
	// active player.
	assert.Equal(t, []string{"u3", "u2", "u1", "u4"}, buildFightSequence(g))
}

func TestFightSequenceChargeBeatsFightsLast(t *testing.T) {
	g := fightFixture()
	u := g.Units["u1"]
	u.Meta.Abilities = []string{"Fights Last"}
	u.Flags[state.FlagCharged] = true

	assert.Equal(t, []string{"u1", "u2"}, buildFightSequence(g))
}

func TestFightSequenceFightsLastTier(t *testing.T) {
	g := fightFixture()
	g.Units["u2"].Meta.Abilities = []string{"Fights Last"}

	assert.Equal(t, []string{"u1", "u2"}, buildFightSequence(g))
}

func TestFightSkipsUnengagedUnits(t *testing.T) {
	g := fightFixture()
	g.AddUnit("u5", 2, 3, 25, boyzProfile())
	deployLine(g.Units["u5"], geometry.Point{X: 40, Y: 40}, 1.5)

	assert.Equal(t, []string{"u2", "u1"}, buildFightSequence(g))
}

func TestFightFullExchange(t *testing.T) {
	g := fightFixture()
	// Boyz swing first: 3 models x A2 = 6 attacks, hitting on 3+ with
	// faces 3,3,2,6,5,4 -> 5 hits; S4 vs T4 wounds on 4+ with 5,6,2,1,4
	// -> 3 wounds; 3+ save at AP-1 means 4+ with 6,3,1 -> 2 unsaved; flat
	// damage 1 each. Two damage onto 2-wound models: first Intercessor
	// drops to 0 and dies... allocation spills, so both points land on
	// model 0.
	env := testEnv(g, engine.NewScriptedDice(3, 3, 2, 6, 5, 4, 5, 6, 2, 1, 4, 6, 3, 1))
	p := newFightPhase()
	applyDiffs(t, g, p.OnEnter(env))

	require.Equal(t, 2, p.Actor(env))

	sel := Action{Type: ActionSelectFighter, Player: 2, Unit: "u2"}
	require.True(t, p.ValidateAction(env, sel).Valid)
	require.True(t, p.ProcessAction(env, sel).Success)

	wsel := Action{Type: ActionSelectWeapon, Player: 2, Unit: "u2", Weapon: "Choppa"}
	require.True(t, p.ValidateAction(env, wsel).Valid)
	require.True(t, p.ProcessAction(env, wsel).Success)

	asg := Action{Type: ActionAssignAttacks, Player: 2, Unit: "u2", Target: "u1", Models: 3}
	require.True(t, p.ValidateAction(env, asg).Valid)
	require.True(t, p.ProcessAction(env, asg).Success)

	res := p.ProcessAction(env, Action{Type: ActionResolveAttacks, Player: 2, Unit: "u2"})
	require.True(t, res.Success)
	applyDiffs(t, g, res.Diffs)

	assert.False(t, g.Units["u1"].Models[0].Alive)
	assert.Equal(t, 0, g.Units["u1"].Models[0].Wounds)
	assert.True(t, g.Units["u1"].Models[1].Alive)
	assert.True(t, g.Units["u2"].Flags[state.FlagFought])
	assert.True(t, g.Units["u1"].Flags[state.FlagLostModels])

	// Consolidation hands the sequence to the Intercessors.
	res = p.ProcessAction(env, Action{Type: ActionSkipFight, Player: 2, Unit: "u2"})
	require.True(t, res.Success)
	applyDiffs(t, g, res.Diffs)
	require.Equal(t, 1, p.Actor(env))
	assert.Equal(t, "u1", p.current(g).ID)
}

func TestFightWrongTurnRejected(t *testing.T) {
	g := fightFixture()
	env := testEnv(g, engine.NewDice(1))
	p := newFightPhase()
	applyDiffs(t, g, p.OnEnter(env))

	// u1 belongs to the active player and fights second.
	v := p.ValidateAction(env, Action{Type: ActionSelectFighter, Player: 1, Unit: "u1"})
	require.False(t, v.Valid)
}

func TestPileInMustCloseAndStayCoherent(t *testing.T) {
	g := fightFixture()
	env := testEnv(g, engine.NewDice(1))
	p := newFightPhase()
	applyDiffs(t, g, p.OnEnter(env))

	require.True(t, p.ProcessAction(env, Action{Type: ActionSelectFighter, Player: 2, Unit: "u2"}).Success)

	// Moving away from the enemy is not a pile in.
	away := Action{Type: ActionPileIn, Player: 2, Unit: "u2",
		Positions: line(geometry.Point{X: 10, Y: 8}, 3, 1.5)}
	v := p.ValidateAction(env, away)
	require.False(t, v.Valid)
	assert.Contains(t, v.Errors[0], "nearest enemy")

	// Beyond 3" is out even when it closes.
	tooFar := Action{Type: ActionPileIn, Player: 2, Unit: "u2",
		Positions: line(geometry.Point{X: 14, Y: 5.5}, 3, 1.5)}
	require.False(t, p.ValidateAction(env, tooFar).Valid)

	in := Action{Type: ActionPileIn, Player: 2, Unit: "u2",
		Positions: line(geometry.Point{X: 10, Y: 6}, 3, 1.5)}
	require.True(t, p.ValidateAction(env, in).Valid)
	res := p.ProcessAction(env, in)
	require.True(t, res.Success)
	applyDiffs(t, g, res.Diffs)
	assert.Equal(t, 6.0, g.Units["u2"].Models[0].Pos.Y)

	// One pile in per activation.
	require.False(t, p.ValidateAction(env, in).Valid)
}

func TestFightSkipSpendsActivation(t *testing.T) {
	g := fightFixture()
	env := testEnv(g, engine.NewDice(1))
	p := newFightPhase()
	applyDiffs(t, g, p.OnEnter(env))

	res := p.ProcessAction(env, Action{Type: ActionSkipFight, Player: 2, Unit: "u2"})
	require.True(t, res.Success)
	applyDiffs(t, g, res.Diffs)
	assert.True(t, g.Units["u2"].Flags[state.FlagFought])

	res = p.ProcessAction(env, Action{Type: ActionSkipFight, Player: 1, Unit: "u1"})
	require.True(t, res.Success)
	applyDiffs(t, g, res.Diffs)
	assert.True(t, p.ShouldComplete(env))
}

func TestFightDestroyedUnitDropsFromSequence(t *testing.T) {
	g := fightFixture()
	env := testEnv(g, engine.NewDice(1))
	p := newFightPhase()
	applyDiffs(t, g, p.OnEnter(env))

	// The Boyz are wiped out before their slot comes up.
	for i := range g.Units["u2"].Models {
		g.Units["u2"].Models[i].Alive = false
	}
	g.Units["u2"].Status = state.StatusDestroyed

	// u1 is no longer engaged with anything either, so the phase is over.
	assert.True(t, p.ShouldComplete(env))
}
