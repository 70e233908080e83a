package phases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/w40k-tabletop/internal/engine"
	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/state"
)

func TestDeployOutsideZoneRejected(t *testing.T) {
	g := fixtureGame()
	env := testEnv(g, engine.NewDice(1))
	p := newFormationsPhase()

	v := p.ValidateAction(env, Action{Type: ActionDeployUnit, Player: 1, Unit: "u1",
		Positions: line(geometry.Point{X: 10, Y: 20}, 3, 1.5)})
	require.False(t, v.Valid)
	assert.Contains(t, v.Errors[0], "deployment zone")
}

func TestDeployInsideTerrainRejected(t *testing.T) {
	g := fixtureGame()
	g.Board.Terrain = []state.Terrain{{Name: "ruin", Verts: []geometry.Point{
		{X: 8, Y: 3}, {X: 16, Y: 3}, {X: 16, Y: 8}, {X: 8, Y: 8},
	}}}
	env := testEnv(g, engine.NewDice(1))
	p := newFormationsPhase()

	v := p.ValidateAction(env, Action{Type: ActionDeployUnit, Player: 1, Unit: "u1",
		Positions: line(geometry.Point{X: 10, Y: 5}, 3, 1.5)})
	require.False(t, v.Valid)
	assert.Contains(t, v.Errors[0], "terrain")
}

func TestDeployOutOfCoherencyRejected(t *testing.T) {
	g := fixtureGame()
	env := testEnv(g, engine.NewDice(1))
	p := newFormationsPhase()

	v := p.ValidateAction(env, Action{Type: ActionDeployUnit, Player: 1, Unit: "u1",
		Positions: line(geometry.Point{X: 10, Y: 5}, 3, 10)})
	require.False(t, v.Valid)
	assert.Contains(t, v.Errors[0], "coherency")
}

func TestReservePointsCap(t *testing.T) {
	g := fixtureGame()
	// Player 1's army is a single 80-point unit; the 50% cap admits
	// nothing into reserves.
	env := testEnv(g, engine.NewDice(1))
	p := newFormationsPhase()

	v := p.ValidateAction(env, Action{Type: ActionPlaceInReserves, Player: 1, Unit: "u1"})
	require.False(t, v.Valid)
	assert.Contains(t, v.Errors[0], "reserves points limit")

	// A second unit doubles the army total and makes room.
	g.AddUnit("u3", 1, 3, 32, intercessorProfile())
	require.True(t, p.ValidateAction(env, Action{Type: ActionPlaceInReserves, Player: 1, Unit: "u1"}).Valid)
}

func TestEndFormationsNeedsEveryUnitPlaced(t *testing.T) {
	g := fixtureGame()
	env := testEnv(g, engine.NewDice(1))
	p := newFormationsPhase()

	v := p.ValidateAction(env, Action{Type: ActionEndFormations, Player: 1})
	require.False(t, v.Valid)
	assert.Contains(t, v.Errors[0], "neither deployed nor in reserves")
}
