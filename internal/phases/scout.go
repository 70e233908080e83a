package phases

import (
	"fmt"

	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// Scout Moves is entered only when the active player has a deployed unit
// with a Scouts ability that has not used it. A scout move is a one-shot
// reposition within the scout distance that must end well clear of the
// enemy.
type scoutMovesPhase struct {
	ended bool
}

func newScoutMovesPhase() *scoutMovesPhase { return &scoutMovesPhase{} }

func (p *scoutMovesPhase) Type() PhaseType { return PhaseScoutMoves }

func (p *scoutMovesPhase) OnEnter(env *Env) []state.Diff { return nil }

func (p *scoutMovesPhase) OnExit(env *Env) []state.Diff { return nil }

func (p *scoutMovesPhase) Actor(env *Env) int { return env.Game.Meta.ActivePlayer }

func (p *scoutMovesPhase) ShouldComplete(env *Env) bool {
	return p.ended || len(scoutEligible(env.Game, env.Game.Meta.ActivePlayer)) == 0
}

func (p *scoutMovesPhase) ValidateAction(env *Env, a Action) Validation {
	if errs := checkActor(p, env, a); errs != nil {
		return invalid(errs...)
	}
	switch a.Type {
	case ActionScoutMove:
		u, errs := ownUnit(env, a.Player, a.Unit)
		if errs != nil {
			return invalid(errs...)
		}
		eligible := false
		for _, e := range scoutEligible(env.Game, a.Player) {
			if e.ID == u.ID {
				eligible = true
				break
			}
		}
		if !eligible {
			return invalid(fmt.Sprintf("unit %q has no scout move available", u.ID))
		}
		if len(a.Positions) != len(u.Models) {
			return invalid(fmt.Sprintf("unit %q needs %d positions, got %d", u.ID, len(u.Models), len(a.Positions)))
		}
		cap := scoutDistance(u)
		for i, pos := range a.Positions {
			m := u.Models[i]
			if !m.Alive {
				continue
			}
			if m.Pos != nil && geometry.Dist(*m.Pos, pos) > cap+1e-9 {
				return invalid(fmt.Sprintf("model %d would move beyond the %.0f\" scout distance", i, cap))
			}
			if !env.Game.OnBoard(pos) {
				return invalid(fmt.Sprintf("model %d is off the battlefield", i))
			}
			for _, t := range env.Game.Board.Terrain {
				if pointInTerrain(pos, t) {
					return invalid(fmt.Sprintf("model %d is inside terrain %q", i, t.Name))
				}
			}
			if !farFromEnemies(env.Game, u.Owner, pos, m.BaseMM, state.ReserveClearance) {
				return invalid(fmt.Sprintf("model %d must end at least %.0f\" from enemy models", i, state.ReserveClearance))
			}
		}
		if !coherentAt(u, a.Positions) {
			return invalid(fmt.Sprintf("unit %q would break coherency", u.ID))
		}
		return valid()
	case ActionEndScoutMoves:
		return valid()
	}
	return unknownAction(p.Type(), a.Type)
}

func (p *scoutMovesPhase) ProcessAction(env *Env, a Action) Result {
	switch a.Type {
	case ActionScoutMove:
		u := env.Game.Units[a.Unit]
		res := ok()
		for i, pos := range a.Positions {
			if u.Models[i].Alive {
				res.Diffs = append(res.Diffs, state.Set(state.ModelPosPath(u.ID, i), pos))
			}
		}
		res.Diffs = append(res.Diffs, state.Set(state.UnitFlagPath(u.ID, state.FlagScoutMoved), true))
		return res
	case ActionEndScoutMoves:
		p.ended = true
		return ok()
	}
	return fail("unhandled action " + a.Type)
}

func (p *scoutMovesPhase) AvailableActions(env *Env) []Descriptor {
	out := []Descriptor{}
	for _, u := range scoutEligible(env.Game, env.Game.Meta.ActivePlayer) {
		out = append(out, Descriptor{Type: ActionScoutMove, Unit: u.ID})
	}
	out = append(out, Descriptor{Type: ActionEndScoutMoves})
	return out
}
