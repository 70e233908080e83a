package phases

import (
	"fmt"

	"github.com/pefman/w40k-tabletop/internal/state"
)

// Morale makes battle-shocked units that lost models this turn test
// again: 2d6 under Leadership costs them another model. Both players'
// units test; the active player drives the phase.
type moralePhase struct {
	ended bool
}

func newMoralePhase() *moralePhase { return &moralePhase{} }

func (p *moralePhase) Type() PhaseType { return PhaseMorale }

func (p *moralePhase) OnEnter(env *Env) []state.Diff { return nil }

func (p *moralePhase) OnExit(env *Env) []state.Diff { return nil }

func (p *moralePhase) Actor(env *Env) int { return env.Game.Meta.ActivePlayer }

func (p *moralePhase) ShouldComplete(env *Env) bool {
	return p.ended || len(attritionPending(env.Game)) == 0
}

// attritionPending lists units of either player that owe an attrition
// test, in stable id order.
func attritionPending(g *state.Game) []*state.Unit {
	out := []*state.Unit{}
	for _, id := range g.UnitIDs() {
		u := g.Units[id]
		if u.Status != state.StatusDeployed || u.AliveModels() == 0 {
			continue
		}
		if hasFlag(u, state.FlagBattleShocked) && hasFlag(u, state.FlagLostModels) &&
			!hasFlag(u, state.FlagAttritionTested) {
			out = append(out, u)
		}
	}
	return out
}

func (p *moralePhase) ValidateAction(env *Env, a Action) Validation {
	if errs := checkActor(p, env, a); errs != nil {
		return invalid(errs...)
	}
	switch a.Type {
	case ActionAttritionTest:
		u, okU := env.Game.Units[a.Unit]
		if !okU {
			return invalid(fmt.Sprintf("unknown unit %q", a.Unit))
		}
		for _, e := range attritionPending(env.Game) {
			if e.ID == u.ID {
				return valid()
			}
		}
		return invalid(fmt.Sprintf("unit %q owes no attrition test", u.ID))
	case ActionEndMorale:
		return valid()
	}
	return unknownAction(p.Type(), a.Type)
}

func (p *moralePhase) ProcessAction(env *Env, a Action) Result {
	switch a.Type {
	case ActionAttritionTest:
		res := ok()
		diffs, extra, ev := rollAttrition(env, env.Game.Units[a.Unit])
		res.Diffs = diffs
		res = res.withExtra("attrition", extra)
		if ev != nil {
			res.Events = append(res.Events, *ev)
		}
		return res
	case ActionEndMorale:
		// Outstanding tests auto-resolve in stable unit order.
		res := ok()
		tests := []map[string]any{}
		for _, u := range attritionPending(env.Game) {
			diffs, extra, ev := rollAttrition(env, u)
			res.Diffs = append(res.Diffs, diffs...)
			tests = append(tests, extra)
			if ev != nil {
				res.Events = append(res.Events, *ev)
			}
		}
		if len(tests) > 0 {
			res = res.withExtra("auto_attrition", tests)
		}
		p.ended = true
		return res
	}
	return fail("unhandled action " + a.Type)
}

// rollAttrition rolls 2d6 against leadership; on a failure the unit's
// first live model is slain.
func rollAttrition(env *Env, u *state.Unit) ([]state.Diff, map[string]any, *Event) {
	d1, d2 := env.Dice.Roll2D6("morale", u.ID)
	total := d1 + d2
	passed := total >= u.Meta.Leadership
	diffs := []state.Diff{state.Set(state.UnitFlagPath(u.ID, state.FlagAttritionTested), true)}
	var ev *Event
	if !passed {
		for i, m := range u.Models {
			if !m.Alive {
				continue
			}
			diffs = append(diffs,
				state.Set(state.ModelWoundsPath(u.ID, i), 0),
				state.Set(state.ModelAlivePath(u.ID, i), false))
			ev = &Event{Name: "model_slain", Data: map[string]any{"unit": u.ID, "model": i, "cause": "attrition"}}
			if u.AliveModels() == 1 {
				diffs = append(diffs, state.Set(state.UnitStatusPath(u.ID), string(state.StatusDestroyed)))
				ev = &Event{Name: "unit_destroyed", Data: map[string]any{"unit": u.ID, "cause": "attrition"}}
			}
			break
		}
	}
	extra := map[string]any{
		"unit": u.ID, "dice": []int{d1, d2}, "total": total,
		"leadership": u.Meta.Leadership, "passed": passed,
	}
	return diffs, extra, ev
}

func (p *moralePhase) AvailableActions(env *Env) []Descriptor {
	out := []Descriptor{}
	for _, u := range attritionPending(env.Game) {
		out = append(out, Descriptor{Type: ActionAttritionTest, Unit: u.ID})
	}
	out = append(out, Descriptor{Type: ActionEndMorale})
	return out
}
