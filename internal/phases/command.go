package phases

import (
	"fmt"

	"github.com/pefman/w40k-tabletop/internal/state"
)

// Command opens the active player's turn: their round flags reset, they
// gain a command point, and every unit below half strength must take a
// battle-shock test before the phase can end.
type commandPhase struct {
	ended bool
}

func newCommandPhase() *commandPhase { return &commandPhase{} }

func (p *commandPhase) Type() PhaseType { return PhaseCommand }

func (p *commandPhase) OnEnter(env *Env) []state.Diff {
	g := env.Game
	actor := g.Meta.ActivePlayer
	diffs := []state.Diff{}
	if g.Meta.Round == 0 {
		diffs = append(diffs, state.Set("meta.round", 1))
	}
	diffs = append(diffs, state.Set(state.PlayerCPPath(actor), g.Players[actor].CP+1))
	// Battle-shock from the previous round wears off at the start of the
	// owner's command phase.
	for _, u := range g.UnitsOf(actor) {
		if hasFlag(u, state.FlagBattleShocked) {
			diffs = append(diffs, state.Remove(state.UnitFlagPath(u.ID, state.FlagBattleShocked)))
		}
		if hasFlag(u, state.FlagShockTested) {
			diffs = append(diffs, state.Remove(state.UnitFlagPath(u.ID, state.FlagShockTested)))
		}
	}
	return diffs
}

func (p *commandPhase) OnExit(env *Env) []state.Diff { return nil }

func (p *commandPhase) Actor(env *Env) int { return env.Game.Meta.ActivePlayer }

func (p *commandPhase) ShouldComplete(env *Env) bool { return p.ended }

// shockPending lists the active player's units that still owe a
// battle-shock test, in stable id order.
func (p *commandPhase) shockPending(env *Env) []*state.Unit {
	out := []*state.Unit{}
	for _, u := range env.Game.UnitsOf(env.Game.Meta.ActivePlayer) {
		if u.Status != state.StatusDeployed || u.AliveModels() == 0 {
			continue
		}
		if u.BelowHalfStrength() && !hasFlag(u, state.FlagShockTested) {
			out = append(out, u)
		}
	}
	return out
}

func (p *commandPhase) ValidateAction(env *Env, a Action) Validation {
	if errs := checkActor(p, env, a); errs != nil {
		return invalid(errs...)
	}
	switch a.Type {
	case ActionBattleShockTest:
		u, errs := ownUnit(env, a.Player, a.Unit)
		if errs != nil {
			return invalid(errs...)
		}
		if u.Status != state.StatusDeployed || u.AliveModels() == 0 {
			return invalid(fmt.Sprintf("unit %q is not on the battlefield", u.ID))
		}
		if !u.BelowHalfStrength() {
			return invalid(fmt.Sprintf("unit %q is not below half strength", u.ID))
		}
		if hasFlag(u, state.FlagShockTested) {
			return invalid(fmt.Sprintf("unit %q already tested this turn", u.ID))
		}
		return valid()
	case ActionUseStratagem:
		if a.Stratagem == "" {
			return invalid("action requires a stratagem id")
		}
		check := env.Svc.Stratagems.CanUseStratagem(env.Game, a.Player, a.Stratagem, a.Target)
		if !check.CanUse {
			return invalid(check.Reason)
		}
		return valid()
	case ActionEndCommand:
		return valid()
	}
	return unknownAction(p.Type(), a.Type)
}

func (p *commandPhase) ProcessAction(env *Env, a Action) Result {
	switch a.Type {
	case ActionBattleShockTest:
		res := ok()
		diffs, extra, ev := p.rollShockTest(env, env.Game.Units[a.Unit])
		res.Diffs = diffs
		res = res.withExtra("battle_shock", extra)
		if ev != nil {
			res.Events = append(res.Events, *ev)
		}
		return res
	case ActionUseStratagem:
		diffs, errMsg := env.Svc.Stratagems.UseStratagem(env.Game, a.Player, a.Stratagem, a.Target)
		if errMsg != "" {
			return fail(errMsg)
		}
		return ok(diffs...).withEvent("stratagem_used", map[string]any{
			"player": a.Player, "stratagem": a.Stratagem})
	case ActionEndCommand:
		// Outstanding tests auto-resolve, first eligible unit first.
		// Greedy order is a policy default, not a rule.
		res := ok()
		tests := []map[string]any{}
		for _, u := range p.shockPending(env) {
			diffs, extra, ev := p.rollShockTest(env, u)
			res.Diffs = append(res.Diffs, diffs...)
			tests = append(tests, extra)
			if ev != nil {
				res.Events = append(res.Events, *ev)
			}
		}
		if len(tests) > 0 {
			res = res.withExtra("auto_battle_shock", tests)
		}
		p.ended = true
		return res
	}
	return fail("unhandled action " + a.Type)
}

// rollShockTest rolls 2d6 against leadership: the unit passes iff the
// total is at least its Leadership value.
func (p *commandPhase) rollShockTest(env *Env, u *state.Unit) ([]state.Diff, map[string]any, *Event) {
	d1, d2 := env.Dice.Roll2D6("battle_shock_test", u.ID)
	total := d1 + d2
	passed := total >= u.Meta.Leadership
	diffs := []state.Diff{state.Set(state.UnitFlagPath(u.ID, state.FlagShockTested), true)}
	var ev *Event
	if !passed {
		diffs = append(diffs, state.Set(state.UnitFlagPath(u.ID, state.FlagBattleShocked), true))
		ev = &Event{Name: "battle_shocked", Data: map[string]any{"unit": u.ID}}
	}
	extra := map[string]any{
		"unit": u.ID, "dice": []int{d1, d2}, "total": total,
		"leadership": u.Meta.Leadership, "passed": passed,
	}
	return diffs, extra, ev
}

func (p *commandPhase) AvailableActions(env *Env) []Descriptor {
	out := []Descriptor{}
	for _, u := range p.shockPending(env) {
		out = append(out, Descriptor{Type: ActionBattleShockTest, Unit: u.ID})
	}
	out = append(out, Descriptor{Type: ActionEndCommand})
	return out
}
