package phases

import (
	"github.com/pefman/w40k-tabletop/internal/state"
)

// Turn flags cleared when the player's turn ends.
var turnFlags = []string{
	state.FlagMoved, state.FlagAdvanced, state.FlagFellBack,
	state.FlagCharged, state.FlagFought, state.FlagLostModels,
	state.FlagAttritionTested,
}

// Scoring closes the player turn: objective holders refresh, primary VP
// is awarded to the active player, secondaries score on request, and the
// exit hook hands the turn (and eventually the round) over.
type scoringPhase struct {
	ended bool
}

func newScoringPhase() *scoringPhase { return &scoringPhase{} }

func (p *scoringPhase) Type() PhaseType { return PhaseScoring }

func (p *scoringPhase) OnEnter(env *Env) []state.Diff {
	g := env.Game
	diffs := env.Svc.Missions.CheckAllObjectives(g)
	// Holder diffs are not applied yet; score off the refreshed view.
	probe := g.Clone()
	applier := state.Applier{}
	if err := applier.Apply(probe, diffs); err == nil {
		diffs = append(diffs, env.Svc.Missions.ScorePrimaryObjectives(probe, g.Meta.ActivePlayer)...)
	}
	return diffs
}

func (p *scoringPhase) OnExit(env *Env) []state.Diff {
	g := env.Game
	active := g.Meta.ActivePlayer
	diffs := []state.Diff{}
	for _, id := range g.UnitIDs() {
		u := g.Units[id]
		for _, f := range turnFlags {
			if hasFlag(u, f) {
				diffs = append(diffs, state.Remove(state.UnitFlagPath(u.ID, f)))
			}
		}
	}
	secondPlayer := active != g.Meta.FirstPlayer
	if secondPlayer {
		// Units still in reserves when round 3 closes never arrive.
		if g.Meta.Round == 3 {
			for _, id := range g.UnitIDs() {
				u := g.Units[id]
				if u.Status != state.StatusInReserves || hasFlag(u, state.FlagReserveLossReported) {
					continue
				}
				for i := range u.Models {
					if u.Models[i].Alive {
						diffs = append(diffs,
							state.Set(state.ModelWoundsPath(u.ID, i), 0),
							state.Set(state.ModelAlivePath(u.ID, i), false))
					}
				}
				diffs = append(diffs,
					state.Set(state.UnitStatusPath(u.ID), string(state.StatusDestroyed)),
					state.Set(state.UnitFlagPath(u.ID, state.FlagReserveLossReported), true))
				env.Svc.Missions.ReportDestroyed(g, u.ID)
			}
		}
		if g.Meta.Round >= 5 {
			diffs = append(diffs, state.Set("meta.battle_ended", true))
		} else {
			diffs = append(diffs, state.Set("meta.round", g.Meta.Round+1))
		}
	}
	diffs = append(diffs, state.Set("meta.active_player", state.Opponent(active)))
	return diffs
}

func (p *scoringPhase) Actor(env *Env) int { return env.Game.Meta.ActivePlayer }

func (p *scoringPhase) ShouldComplete(env *Env) bool { return p.ended }

func (p *scoringPhase) ValidateAction(env *Env, a Action) Validation {
	if errs := checkActor(p, env, a); errs != nil {
		return invalid(errs...)
	}
	switch a.Type {
	case ActionScoreSecondaries, ActionEndScoring:
		return valid()
	}
	return unknownAction(p.Type(), a.Type)
}

func (p *scoringPhase) ProcessAction(env *Env, a Action) Result {
	switch a.Type {
	case ActionScoreSecondaries:
		diffs := env.Svc.Secondaries.ScoreSecondaryMissionsForPlayer(env.Game, a.Player)
		return ok(diffs...).withExtra("active_missions",
			env.Svc.Secondaries.GetActiveMissions(env.Game, a.Player))
	case ActionEndScoring:
		p.ended = true
		return ok()
	}
	return fail("unhandled action " + a.Type)
}

func (p *scoringPhase) AvailableActions(env *Env) []Descriptor {
	return []Descriptor{
		{Type: ActionScoreSecondaries},
		{Type: ActionEndScoring},
	}
}
