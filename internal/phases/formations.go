package phases

import (
	"fmt"

	"github.com/pefman/w40k-tabletop/internal/state"
)

// Formations runs once before round one: both players place their units
// in their deployment zones or hold them in reserves, then declare done.
type formationsPhase struct {
	ended map[int]bool
}

func newFormationsPhase() *formationsPhase {
	return &formationsPhase{ended: map[int]bool{}}
}

func (p *formationsPhase) Type() PhaseType { return PhaseFormations }

func (p *formationsPhase) OnEnter(env *Env) []state.Diff { return nil }

func (p *formationsPhase) OnExit(env *Env) []state.Diff {
	// The battle proper starts now.
	return []state.Diff{
		state.Set("meta.round", 1),
		state.Set("meta.active_player", env.Game.Meta.FirstPlayer),
	}
}

// Player 1 deploys first; once done, player 2 finishes up.
func (p *formationsPhase) Actor(env *Env) int {
	if !p.ended[1] {
		return 1
	}
	return 2
}

func (p *formationsPhase) ShouldComplete(env *Env) bool {
	return p.ended[1] && p.ended[2]
}

// reservePointsShare is the fraction of army points allowed into
// reserves.
const reservePointsShare = 0.5

func (p *formationsPhase) ValidateAction(env *Env, a Action) Validation {
	if errs := checkActor(p, env, a); errs != nil {
		return invalid(errs...)
	}
	switch a.Type {
	case ActionDeployUnit:
		u, errs := ownUnit(env, a.Player, a.Unit)
		if errs != nil {
			return invalid(errs...)
		}
		if u.Status != state.StatusUndeployed {
			return invalid(fmt.Sprintf("unit %q is already %s", u.ID, u.Status))
		}
		if len(a.Positions) != len(u.Models) {
			return invalid(fmt.Sprintf("unit %q needs %d positions, got %d", u.ID, len(u.Models), len(a.Positions)))
		}
		zone, okZone := env.Game.Board.Zones[a.Player]
		for i, pos := range a.Positions {
			if !env.Game.OnBoard(pos) {
				return invalid(fmt.Sprintf("model %d is off the battlefield", i))
			}
			if okZone && !zone.Contains(pos) {
				return invalid(fmt.Sprintf("model %d is outside player %d's deployment zone", i, a.Player))
			}
			for _, t := range env.Game.Board.Terrain {
				if pointInTerrain(pos, t) {
					return invalid(fmt.Sprintf("model %d is inside terrain %q", i, t.Name))
				}
			}
		}
		if !coherentAt(u, a.Positions) {
			return invalid(fmt.Sprintf("unit %q would break coherency", u.ID))
		}
		return valid()
	case ActionPlaceInReserves:
		u, errs := ownUnit(env, a.Player, a.Unit)
		if errs != nil {
			return invalid(errs...)
		}
		if u.Status != state.StatusUndeployed {
			return invalid(fmt.Sprintf("unit %q is already %s", u.ID, u.Status))
		}
		if reservePoints(env.Game, a.Player)+u.Meta.Points > maxReservePoints(env.Game, a.Player) {
			return invalid(fmt.Sprintf("unit %q would exceed the reserves points limit", u.ID))
		}
		return valid()
	case ActionEndFormations:
		if p.ended[a.Player] {
			return invalid("formations already ended")
		}
		for _, u := range env.Game.UnitsOf(a.Player) {
			if u.Status == state.StatusUndeployed {
				return invalid(fmt.Sprintf("unit %q is neither deployed nor in reserves", u.ID))
			}
		}
		return valid()
	}
	return unknownAction(p.Type(), a.Type)
}

func (p *formationsPhase) ProcessAction(env *Env, a Action) Result {
	switch a.Type {
	case ActionDeployUnit:
		u := env.Game.Units[a.Unit]
		diffs := make([]state.Diff, 0, len(u.Models)+1)
		for i, pos := range a.Positions {
			diffs = append(diffs, state.Set(state.ModelPosPath(u.ID, i), pos))
		}
		diffs = append(diffs, state.Set(state.UnitStatusPath(u.ID), string(state.StatusDeployed)))
		return ok(diffs...).withEvent("unit_deployed", map[string]any{"unit": u.ID})
	case ActionPlaceInReserves:
		return ok(state.Set(state.UnitStatusPath(a.Unit), string(state.StatusInReserves))).
			withEvent("unit_reserved", map[string]any{"unit": a.Unit})
	case ActionEndFormations:
		p.ended[a.Player] = true
		return ok()
	}
	return fail("unhandled action " + a.Type)
}

func (p *formationsPhase) AvailableActions(env *Env) []Descriptor {
	actor := p.Actor(env)
	out := []Descriptor{}
	done := true
	for _, u := range env.Game.UnitsOf(actor) {
		if u.Status != state.StatusUndeployed {
			continue
		}
		done = false
		out = append(out, Descriptor{Type: ActionDeployUnit, Unit: u.ID})
		if reservePoints(env.Game, actor)+u.Meta.Points <= maxReservePoints(env.Game, actor) {
			out = append(out, Descriptor{Type: ActionPlaceInReserves, Unit: u.ID})
		}
	}
	if done && !p.ended[actor] {
		out = append(out, Descriptor{Type: ActionEndFormations})
	}
	return out
}

func reservePoints(g *state.Game, player int) int {
	pts := 0
	for _, u := range g.UnitsOf(player) {
		if u.Status == state.StatusInReserves {
			pts += u.Meta.Points
		}
	}
	return pts
}

func maxReservePoints(g *state.Game, player int) int {
	total := 0
	for _, u := range g.UnitsOf(player) {
		total += u.Meta.Points
	}
	return int(float64(total) * reservePointsShare)
}
