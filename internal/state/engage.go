package state

import (
	"math"

	"github.com/pefman/w40k-tabletop/internal/geometry"
)

// Tabletop rule distances, in inches.
const (
	EngagementRange = 1.0 // edge-to-edge, never center-to-center
	PileInMax       = 3.0
	ConsolidateMax  = 3.0
	CoherencyRange  = 2.0
	ChargeDeclareMax = 12.0
	ReserveClearance = 9.0
)

// InEngagementRange reports whether any live placed model of a is within
// engagement range of any live placed model of b, edge to edge. The check
// is symmetric by construction.
func InEngagementRange(a, b *Unit) bool {
	for _, ma := range a.Models {
		if !ma.Alive || ma.Pos == nil {
			continue
		}
		ra := geometry.BaseRadius(ma.BaseMM)
		for _, mb := range b.Models {
			if !mb.Alive || mb.Pos == nil {
				continue
			}
			if geometry.EdgeDist(*ma.Pos, ra, *mb.Pos, geometry.BaseRadius(mb.BaseMM)) <= EngagementRange {
				return true
			}
		}
	}
	return false
}

// Engaged reports whether the unit is in combat with any enemy unit.
func Engaged(g *Game, u *Unit) bool {
	return len(EnemiesInCombatWith(g, u)) > 0
}

// EnemiesInCombatWith returns enemy units in engagement range of u, in
// stable id order.
func EnemiesInCombatWith(g *Game, u *Unit) []*Unit {
	out := []*Unit{}
	for _, id := range g.UnitIDs() {
		e := g.Units[id]
		if e.Owner == u.Owner || e.Status != StatusDeployed || e.AliveModels() == 0 {
			continue
		}
		if InEngagementRange(u, e) {
			out = append(out, e)
		}
	}
	return out
}

// NearestEnemyEdgeDist returns the smallest edge-to-edge distance from a
// base at p to any live enemy model of the given player. ok is false when
// the enemy has nothing on the table.
func NearestEnemyEdgeDist(g *Game, owner int, p geometry.Point, baseMM float64) (float64, bool) {
	r := geometry.BaseRadius(baseMM)
	best := math.Inf(1)
	found := false
	for _, id := range g.UnitIDs() {
		e := g.Units[id]
		if e.Owner == owner || e.Status != StatusDeployed {
			continue
		}
		for _, m := range e.Models {
			if !m.Alive || m.Pos == nil {
				continue
			}
			d := geometry.EdgeDist(p, r, *m.Pos, geometry.BaseRadius(m.BaseMM))
			if d < best {
				best = d
				found = true
			}
		}
	}
	return best, found
}

// Coherent reports whether every live model is within coherency range of
// at least one other live model of the unit. Units with one (or zero)
// live models are trivially coherent.
func Coherent(models []Model) bool {
	live := []Model{}
	for _, m := range models {
		if m.Alive && m.Pos != nil {
			live = append(live, m)
		}
	}
	if len(live) <= 1 {
		return true
	}
	for i, a := range live {
		ok := false
		ra := geometry.BaseRadius(a.BaseMM)
		for j, b := range live {
			if i == j {
				continue
			}
			if geometry.EdgeDist(*a.Pos, ra, *b.Pos, geometry.BaseRadius(b.BaseMM)) <= CoherencyRange {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// PathCrossesEnemy reports whether moving a base of the given size from
// a to b clips the engagement buffer (base radius + engagement range +
// mover radius) of any live enemy model, excluding the listed unit ids
// (e.g. charge targets, which a charger is allowed to close with).
func PathCrossesEnemy(g *Game, owner int, a, b geometry.Point, baseMM float64, exclude map[string]bool) bool {
	r := geometry.BaseRadius(baseMM)
	for _, id := range g.UnitIDs() {
		e := g.Units[id]
		if e.Owner == owner || e.Status != StatusDeployed || exclude[id] {
			continue
		}
		for _, m := range e.Models {
			if !m.Alive || m.Pos == nil {
				continue
			}
			buffer := geometry.BaseRadius(m.BaseMM) + EngagementRange + r
			if geometry.SegCrossesCircle(a, b, *m.Pos, buffer) {
				return true
			}
		}
	}
	return false
}

// PathCrossesTerrain reports whether the segment a-b cuts through any
// impassable terrain footprint.
func PathCrossesTerrain(g *Game, a, b geometry.Point) bool {
	for _, t := range g.Board.Terrain {
		if geometry.SegCrossesPolygon(a, b, t.Verts) {
			return true
		}
	}
	return false
}

// OnBoard reports whether p is on the battlefield.
func (g *Game) OnBoard(p geometry.Point) bool {
	return p.X >= 0 && p.X <= g.Board.Width && p.Y >= 0 && p.Y <= g.Board.Height
}
