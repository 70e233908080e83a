package phases

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pefman/w40k-tabletop/internal/collab"
	"github.com/pefman/w40k-tabletop/internal/engine"
	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/state"
)

func intercessorProfile() state.Profile {
	return state.Profile{
		Name: "Intercessor Squad", Move: 6, Toughness: 4, Save: 3, Wounds: 2,
		Leadership: 6, OC: 2, Points: 80,
		Weapons: []state.Weapon{
			{Name: "Astartes chainsword", Type: "melee", Attacks: "3", Skill: 3, S: 4, AP: -1, Damage: "1"},
			{Name: "Bolt rifle", Type: "ranged", Attacks: "2", Skill: 3, S: 4, AP: -1, Damage: "1"},
		},
	}
}

func boyzProfile() state.Profile {
	return state.Profile{
		Name: "Boyz", Move: 6, Toughness: 5, Save: 5, Wounds: 1,
		Leadership: 7, OC: 2, Points: 85,
		Weapons: []state.Weapon{
			{Name: "Choppa", Type: "melee", Attacks: "2", Skill: 3, S: 4, AP: -1, Damage: "1"},
		},
	}
}

// fixtureGame builds a small two-player match: three Intercessors for
// player 1, three Boyz for player 2, one central objective.
func fixtureGame() *state.Game {
	g := state.NewGame(60, 44)
	g.Board.Zones[1] = state.Zone{MinX: 0, MinY: 0, MaxX: 60, MaxY: 12}
	g.Board.Zones[2] = state.Zone{MinX: 0, MinY: 32, MaxX: 60, MaxY: 44}
	g.Board.Objectives = []state.Objective{{Pos: geometry.Point{X: 30, Y: 22}, Radius: 3}}
	g.AddUnit("u1", 1, 3, 32, intercessorProfile())
	g.AddUnit("u2", 2, 3, 25, boyzProfile())
	return g
}

func testEnv(g *state.Game, dice *engine.Dice) *Env {
	return &Env{Game: g, Dice: dice, Svc: collab.Defaults(), Log: zap.NewNop()}
}

// applyDiffs pushes phase-produced diffs into the game under strict path
// checking, the way the controller does.
func applyDiffs(t *testing.T, g *state.Game, diffs []state.Diff) {
	t.Helper()
	require.NoError(t, state.Applier{Strict: true}.Apply(g, diffs))
}

// line places n models in a row starting at origin, spaced apart.
func line(origin geometry.Point, n int, spacing float64) []geometry.Point {
	out := make([]geometry.Point, n)
	for i := range out {
		out[i] = geometry.Point{X: origin.X + float64(i)*spacing, Y: origin.Y}
	}
	return out
}

// deployLine marks a unit deployed with its models in a row.
func deployLine(u *state.Unit, origin geometry.Point, spacing float64) {
	u.Status = state.StatusDeployed
	for i := range u.Models {
		p := geometry.Point{X: origin.X + float64(i)*spacing, Y: origin.Y}
		u.Models[i].Pos = &p
	}
}

// deployAll drives both players through Formations on a controller.
func deployAll(t *testing.T, c *Controller) {
	t.Helper()
	res := c.SubmitAction(Action{Type: ActionDeployUnit, Player: 1, Unit: "u1",
		Positions: line(geometry.Point{X: 10, Y: 5}, 3, 1.5)})
	require.True(t, res.Success, res.Error)
	res = c.SubmitAction(Action{Type: ActionEndFormations, Player: 1})
	require.True(t, res.Success, res.Error)
	res = c.SubmitAction(Action{Type: ActionDeployUnit, Player: 2, Unit: "u2",
		Positions: line(geometry.Point{X: 10, Y: 40}, 3, 1.5)})
	require.True(t, res.Success, res.Error)
	res = c.SubmitAction(Action{Type: ActionEndFormations, Player: 2})
	require.True(t, res.Success, res.Error)
}

// endTurn submits the minimal end-of-phase actions that walk one player
// turn from Command to the end of Scoring.
func endTurn(t *testing.T, c *Controller, player int) {
	t.Helper()
	for _, typ := range []string{ActionEndCommand, ActionEndMovement, ActionEndCharge, ActionEndScoring} {
		res := c.SubmitAction(Action{Type: typ, Player: player})
		require.True(t, res.Success, "%s: %s", typ, res.Error)
	}
}
