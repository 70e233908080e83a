package phases

import (
	"fmt"
	"math"

	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// activeCharge is the phase-local record of one declared charge.
type activeCharge struct {
	targets []string
	roll    int
	rolled  bool
}

// Charge lets unengaged units declare targets within declare range, roll
// 2d6 for distance, and move into engagement with every declared target.
type chargePhase struct {
	charges map[string]*activeCharge
	ended   bool
}

func newChargePhase() *chargePhase {
	return &chargePhase{charges: map[string]*activeCharge{}}
}

func (p *chargePhase) Type() PhaseType { return PhaseCharge }

func (p *chargePhase) OnEnter(env *Env) []state.Diff { return nil }

func (p *chargePhase) OnExit(env *Env) []state.Diff {
	// Any declaration that never became a charge move is cleaned up.
	diffs := []state.Diff{}
	for _, u := range env.Game.UnitsOf(env.Game.Meta.ActivePlayer) {
		if hasFlag(u, state.FlagChargeDeclared) {
			diffs = append(diffs, state.Remove(state.UnitFlagPath(u.ID, state.FlagChargeDeclared)))
		}
	}
	p.charges = map[string]*activeCharge{}
	return diffs
}

func (p *chargePhase) Actor(env *Env) int { return env.Game.Meta.ActivePlayer }

func (p *chargePhase) ShouldComplete(env *Env) bool { return p.ended }

// unitMinEdgeDist returns the smallest edge-to-edge distance between live
// models of two units.
func unitMinEdgeDist(a, b *state.Unit) float64 {
	best := math.Inf(1)
	for _, ma := range a.Models {
		if !ma.Alive || ma.Pos == nil {
			continue
		}
		ra := geometry.BaseRadius(ma.BaseMM)
		for _, mb := range b.Models {
			if !mb.Alive || mb.Pos == nil {
				continue
			}
			if d := geometry.EdgeDist(*ma.Pos, ra, *mb.Pos, geometry.BaseRadius(mb.BaseMM)); d < best {
				best = d
			}
		}
	}
	return best
}

func (p *chargePhase) ValidateAction(env *Env, a Action) Validation {
	if errs := checkActor(p, env, a); errs != nil {
		return invalid(errs...)
	}
	g := env.Game
	switch a.Type {
	case ActionDeclareCharge:
		u, errs := ownUnit(env, a.Player, a.Unit)
		if errs != nil {
			return invalid(errs...)
		}
		if u.Status != state.StatusDeployed || u.AliveModels() == 0 {
			return invalid(fmt.Sprintf("unit %q is not on the battlefield", u.ID))
		}
		if hasFlag(u, state.FlagAdvanced) {
			return invalid(fmt.Sprintf("unit %q advanced and cannot charge", u.ID))
		}
		if hasFlag(u, state.FlagFellBack) {
			return invalid(fmt.Sprintf("unit %q fell back and cannot charge", u.ID))
		}
		if hasFlag(u, state.FlagBattleShocked) {
			return invalid(fmt.Sprintf("unit %q is battle-shocked and cannot charge", u.ID))
		}
		if hasFlag(u, state.FlagChargeDeclared) || hasFlag(u, state.FlagCharged) {
			return invalid(fmt.Sprintf("unit %q already declared a charge this turn", u.ID))
		}
		if state.Engaged(g, u) {
			return invalid(fmt.Sprintf("unit %q is already in engagement range", u.ID))
		}
		if len(a.Targets) == 0 {
			return invalid("a charge needs at least one target")
		}
		for _, tid := range a.Targets {
			target, okT := g.Units[tid]
			if !okT {
				return invalid(fmt.Sprintf("unknown target unit %q", tid))
			}
			if target.Owner == a.Player {
				return invalid(fmt.Sprintf("target %q is a friendly unit", tid))
			}
			if target.Status != state.StatusDeployed || target.AliveModels() == 0 {
				return invalid(fmt.Sprintf("target %q is not on the battlefield", tid))
			}
			if unitMinEdgeDist(u, target) > state.ChargeDeclareMax {
				return invalid(fmt.Sprintf("target %q is beyond %.0f\"", tid, state.ChargeDeclareMax))
			}
		}
		return valid()
	case ActionRollCharge:
		u, errs := ownUnit(env, a.Player, a.Unit)
		if errs != nil {
			return invalid(errs...)
		}
		ch := p.charges[u.ID]
		if ch == nil {
			return invalid(fmt.Sprintf("unit %q has not declared a charge", u.ID))
		}
		if ch.rolled {
			return invalid(fmt.Sprintf("unit %q already rolled its charge", u.ID))
		}
		return valid()
	case ActionChargeMove:
		u, errs := ownUnit(env, a.Player, a.Unit)
		if errs != nil {
			return invalid(errs...)
		}
		ch := p.charges[u.ID]
		if ch == nil || !ch.rolled {
			return invalid(fmt.Sprintf("unit %q has no successful charge roll", u.ID))
		}
		if len(a.Positions) != len(u.Models) {
			return invalid(fmt.Sprintf("unit %q needs %d positions, got %d", u.ID, len(u.Models), len(a.Positions)))
		}
		exclude := map[string]bool{}
		for _, tid := range ch.targets {
			exclude[tid] = true
		}
		for i, pos := range a.Positions {
			m := u.Models[i]
			if !m.Alive {
				continue
			}
			if !env.Game.OnBoard(pos) {
				return invalid(fmt.Sprintf("model %d is off the battlefield", i))
			}
			if m.Pos != nil {
				if geometry.Dist(*m.Pos, pos) > float64(ch.roll)+1e-9 {
					return invalid(fmt.Sprintf("model %d would move beyond the %d\" charge roll", i, ch.roll))
				}
				if state.PathCrossesTerrain(g, *m.Pos, pos) {
					return invalid(fmt.Sprintf("model %d's path crosses impassable terrain", i))
				}
				if state.PathCrossesEnemy(g, u.Owner, *m.Pos, pos, m.BaseMM, exclude) {
					return invalid(fmt.Sprintf("model %d's path crosses a non-target engagement buffer", i))
				}
			}
		}
		if !coherentAt(u, a.Positions) {
			return invalid(fmt.Sprintf("unit %q would end its charge out of coherency", u.ID))
		}
		// The charge must reach engagement range of every declared
		// target.
		moved := u.Clone()
		for i, pos := range a.Positions {
			if moved.Models[i].Alive {
				pp := pos
				moved.Models[i].Pos = &pp
			}
		}
		for _, tid := range ch.targets {
			if !state.InEngagementRange(moved, g.Units[tid]) {
				return invalid(fmt.Sprintf("charge would not reach engagement range of %q", tid))
			}
		}
		return valid()
	case ActionEndCharge:
		return valid()
	}
	return unknownAction(p.Type(), a.Type)
}

func (p *chargePhase) ProcessAction(env *Env, a Action) Result {
	g := env.Game
	switch a.Type {
	case ActionDeclareCharge:
		u := g.Units[a.Unit]
		p.charges[u.ID] = &activeCharge{targets: append([]string(nil), a.Targets...)}
		return ok(state.Set(state.UnitFlagPath(u.ID, state.FlagChargeDeclared), true)).
			withEvent("charge_declared", map[string]any{"unit": u.ID, "targets": a.Targets})
	case ActionRollCharge:
		u := g.Units[a.Unit]
		ch := p.charges[u.ID]
		d1, d2 := env.Dice.Roll2D6("charge", u.ID)
		roll := d1 + d2
		// The charge fails outright if the roll cannot close the gap to
		// some declared target.
		for _, tid := range ch.targets {
			if unitMinEdgeDist(u, g.Units[tid])-state.EngagementRange > float64(roll) {
				delete(p.charges, u.ID)
				return ok(state.Remove(state.UnitFlagPath(u.ID, state.FlagChargeDeclared))).
					withExtra("charge_roll", []int{d1, d2}).
					withEvent("charge_failed", map[string]any{"unit": u.ID, "roll": roll, "target": tid})
			}
		}
		ch.roll = roll
		ch.rolled = true
		return ok().withExtra("charge_roll", []int{d1, d2}).withExtra("charge_distance", roll)
	case ActionChargeMove:
		u := g.Units[a.Unit]
		res := ok()
		for i, pos := range a.Positions {
			if u.Models[i].Alive {
				res.Diffs = append(res.Diffs, state.Set(state.ModelPosPath(u.ID, i), pos))
			}
		}
		res.Diffs = append(res.Diffs,
			state.Remove(state.UnitFlagPath(u.ID, state.FlagChargeDeclared)),
			state.Set(state.UnitFlagPath(u.ID, state.FlagCharged), true))
		delete(p.charges, u.ID)
		return res.withEvent("charge_made", map[string]any{"unit": u.ID})
	case ActionEndCharge:
		p.ended = true
		return ok()
	}
	return fail("unhandled action " + a.Type)
}

func (p *chargePhase) AvailableActions(env *Env) []Descriptor {
	g := env.Game
	actor := g.Meta.ActivePlayer
	out := []Descriptor{}
	for _, u := range g.UnitsOf(actor) {
		if ch := p.charges[u.ID]; ch != nil {
			if ch.rolled {
				out = append(out, Descriptor{Type: ActionChargeMove, Unit: u.ID})
			} else {
				out = append(out, Descriptor{Type: ActionRollCharge, Unit: u.ID})
			}
			continue
		}
		if u.Status != state.StatusDeployed || u.AliveModels() == 0 ||
			hasFlag(u, state.FlagAdvanced) || hasFlag(u, state.FlagFellBack) ||
			hasFlag(u, state.FlagBattleShocked) || hasFlag(u, state.FlagCharged) ||
			state.Engaged(g, u) {
			continue
		}
		// Only advertise when an enemy is in declare range.
		for _, id := range g.UnitIDs() {
			e := g.Units[id]
			if e.Owner == actor || e.Status != state.StatusDeployed || e.AliveModels() == 0 {
				continue
			}
			if unitMinEdgeDist(u, e) <= state.ChargeDeclareMax {
				out = append(out, Descriptor{Type: ActionDeclareCharge, Unit: u.ID})
				break
			}
		}
	}
	out = append(out, Descriptor{Type: ActionEndCharge})
	return out
}
