package phases

import (
	"strconv"
	"strings"

	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/state"
)

func pointInTerrain(p geometry.Point, t state.Terrain) bool {
	return geometry.PointInPolygon(p, t.Verts)
}

// coherentAt checks coherency for a unit as if its models stood at the
// given positions (one per model slot).
func coherentAt(u *state.Unit, positions []geometry.Point) bool {
	models := make([]state.Model, len(u.Models))
	copy(models, u.Models)
	for i := range models {
		if i < len(positions) {
			p := positions[i]
			models[i].Pos = &p
		}
	}
	return state.Coherent(models)
}

// coherentWith checks coherency with a subset of models repositioned.
func coherentWith(u *state.Unit, overrides map[int]geometry.Point) bool {
	models := make([]state.Model, len(u.Models))
	copy(models, u.Models)
	for i, p := range overrides {
		if i >= 0 && i < len(models) {
			pp := p
			models[i].Pos = &pp
		}
	}
	return state.Coherent(models)
}

// scoutEligible returns the player's deployed units that still have a
// scout move available.
func scoutEligible(g *state.Game, player int) []*state.Unit {
	out := []*state.Unit{}
	for _, u := range g.UnitsOf(player) {
		if u.Status != state.StatusDeployed || u.AliveModels() == 0 {
			continue
		}
		if !u.HasAbility("scouts") {
			continue
		}
		if hasFlag(u, state.FlagScoutMoved) || hasFlag(u, state.FlagMoved) {
			continue
		}
		out = append(out, u)
	}
	return out
}

// scoutDistance parses the distance out of a "Scouts 6" / "Scouts 6\""
// ability string, defaulting to 6 inches.
func scoutDistance(u *state.Unit) float64 {
	for _, a := range u.Meta.Abilities {
		al := strings.ToLower(strings.TrimSpace(a))
		if !strings.HasPrefix(al, "scouts") {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(al, "scouts"))
		rest = strings.TrimSuffix(rest, `"`)
		if n, err := strconv.ParseFloat(strings.TrimSpace(rest), 64); err == nil && n > 0 {
			return n
		}
	}
	return 6
}

// farFromEnemies reports whether a base at p keeps at least the given
// edge-to-edge clearance from every live enemy model.
func farFromEnemies(g *state.Game, owner int, p geometry.Point, baseMM, clearance float64) bool {
	d, found := state.NearestEnemyEdgeDist(g, owner, p, baseMM)
	return !found || d >= clearance
}
