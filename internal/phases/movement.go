package phases

import (
	"fmt"

	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// Move modes for BEGIN_MOVE.
const (
	MoveModeNormal   = "move"
	MoveModeAdvance  = "advance"
	MoveModeFallBack = "fall_back"
)

// activeMove is the staged move for one unit: pre-move positions for
// RESET_UNIT_MOVE, the distance cap, and per-model distance spent. It is
// phase-local and never synced; the model position diffs are.
type activeMove struct {
	unitID string
	mode   string
	cap    float64
	orig   []geometry.Point
	spent  map[int]float64
}

// Movement lets the active player move each unit once: a normal move,
// an advance (+D6"), or a fall back out of engagement with desperate
// escape tests on the way out.
type movementPhase struct {
	active *activeMove
	ended  bool
}

func newMovementPhase() *movementPhase { return &movementPhase{} }

func (p *movementPhase) Type() PhaseType { return PhaseMovement }

func (p *movementPhase) OnEnter(env *Env) []state.Diff { return nil }

func (p *movementPhase) OnExit(env *Env) []state.Diff {
	p.active = nil
	return nil
}

func (p *movementPhase) Actor(env *Env) int { return env.Game.Meta.ActivePlayer }

func (p *movementPhase) ShouldComplete(env *Env) bool { return p.ended }

func movedThisTurn(u *state.Unit) bool {
	return hasFlag(u, state.FlagMoved) || hasFlag(u, state.FlagAdvanced) || hasFlag(u, state.FlagFellBack)
}

func (p *movementPhase) ValidateAction(env *Env, a Action) Validation {
	if errs := checkActor(p, env, a); errs != nil {
		return invalid(errs...)
	}
	switch a.Type {
	case ActionBeginMove:
		u, errs := ownUnit(env, a.Player, a.Unit)
		if errs != nil {
			return invalid(errs...)
		}
		if p.active != nil {
			return invalid(fmt.Sprintf("unit %q already has a move in progress", p.active.unitID))
		}
		if u.Status != state.StatusDeployed || u.AliveModels() == 0 {
			return invalid(fmt.Sprintf("unit %q is not on the battlefield", u.ID))
		}
		if movedThisTurn(u) {
			return invalid(fmt.Sprintf("unit %q has already moved this turn", u.ID))
		}
		mode := a.Mode
		if mode == "" {
			mode = MoveModeNormal
		}
		engaged := state.Engaged(env.Game, u)
		switch mode {
		case MoveModeNormal, MoveModeAdvance:
			if engaged {
				return invalid(fmt.Sprintf("unit %q is in engagement range and can only fall back", u.ID))
			}
		case MoveModeFallBack:
			if !engaged {
				return invalid(fmt.Sprintf("unit %q is not in engagement range", u.ID))
			}
			if hasFlag(u, state.FlagBattleShocked) {
				return invalid(fmt.Sprintf("unit %q is battle-shocked and cannot fall back", u.ID))
			}
		default:
			return invalid(fmt.Sprintf("unknown move mode %q", mode))
		}
		return valid()
	case ActionMoveModel:
		if p.active == nil || p.active.unitID != a.Unit {
			return invalid("no move in progress for that unit")
		}
		u := env.Game.Units[a.Unit]
		if len(a.Moves) != 1 {
			return invalid("MOVE_MODEL moves exactly one model")
		}
		mv := a.Moves[0]
		if mv.Model < 0 || mv.Model >= len(u.Models) {
			return invalid(fmt.Sprintf("unit %q has no model %d", u.ID, mv.Model))
		}
		m := u.Models[mv.Model]
		if !m.Alive || m.Pos == nil {
			return invalid(fmt.Sprintf("model %d is not on the battlefield", mv.Model))
		}
		step := geometry.Dist(*m.Pos, mv.To)
		if p.active.spent[mv.Model]+step > p.active.cap+1e-9 {
			return invalid(fmt.Sprintf("model %d would move %.1f\", cap is %.1f\"",
				mv.Model, p.active.spent[mv.Model]+step, p.active.cap))
		}
		if !env.Game.OnBoard(mv.To) {
			return invalid("destination is off the battlefield")
		}
		if state.PathCrossesTerrain(env.Game, *m.Pos, mv.To) {
			return invalid("path crosses impassable terrain")
		}
		// Falling back may pass through the enemy line; everyone else
		// must stay clear of engagement buffers along the way.
		if p.active.mode != MoveModeFallBack &&
			state.PathCrossesEnemy(env.Game, u.Owner, *m.Pos, mv.To, m.BaseMM, nil) {
			return invalid("path crosses an enemy engagement buffer")
		}
		return valid()
	case ActionCommitMove:
		if p.active == nil || p.active.unitID != a.Unit {
			return invalid("no move in progress for that unit")
		}
		u := env.Game.Units[a.Unit]
		if !state.Coherent(u.Models) {
			return invalid(fmt.Sprintf("unit %q would end its move out of coherency", u.ID))
		}
		if state.Engaged(env.Game, u) {
			// A move may never end inside engagement range; charges are
			// the only way in.
			return invalid(fmt.Sprintf("unit %q cannot end a move in engagement range", u.ID))
		}
		return valid()
	case ActionResetUnitMove:
		if p.active == nil || p.active.unitID != a.Unit {
			return invalid("no move in progress for that unit")
		}
		return valid()
	case ActionArriveFromReserves:
		u, errs := ownUnit(env, a.Player, a.Unit)
		if errs != nil {
			return invalid(errs...)
		}
		if u.Status != state.StatusInReserves {
			return invalid(fmt.Sprintf("unit %q is not in reserves", u.ID))
		}
		if env.Game.Meta.Round < 2 {
			return invalid("reserves cannot arrive in the first battle round")
		}
		if len(a.Positions) != len(u.Models) {
			return invalid(fmt.Sprintf("unit %q needs %d positions, got %d", u.ID, len(u.Models), len(a.Positions)))
		}
		for i, pos := range a.Positions {
			if !env.Game.OnBoard(pos) {
				return invalid(fmt.Sprintf("model %d is off the battlefield", i))
			}
			for _, t := range env.Game.Board.Terrain {
				if pointInTerrain(pos, t) {
					return invalid(fmt.Sprintf("model %d is inside terrain %q", i, t.Name))
				}
			}
			if !farFromEnemies(env.Game, u.Owner, pos, u.Models[i].BaseMM, state.ReserveClearance) {
				return invalid(fmt.Sprintf("model %d must arrive at least %.0f\" from enemy models", i, state.ReserveClearance))
			}
		}
		if !coherentAt(u, a.Positions) {
			return invalid(fmt.Sprintf("unit %q would arrive out of coherency", u.ID))
		}
		return valid()
	case ActionEndMovement:
		if p.active != nil {
			return invalid(fmt.Sprintf("unit %q still has a move in progress", p.active.unitID))
		}
		return valid()
	}
	return unknownAction(p.Type(), a.Type)
}

func (p *movementPhase) ProcessAction(env *Env, a Action) Result {
	g := env.Game
	switch a.Type {
	case ActionBeginMove:
		u := g.Units[a.Unit]
		mode := a.Mode
		if mode == "" {
			mode = MoveModeNormal
		}
		mv := &activeMove{
			unitID: u.ID,
			mode:   mode,
			cap:    u.Meta.Move,
			orig:   make([]geometry.Point, len(u.Models)),
			spent:  map[int]float64{},
		}
		for i, m := range u.Models {
			if m.Pos != nil {
				mv.orig[i] = *m.Pos
			}
		}
		res := ok()
		if mode == MoveModeAdvance {
			roll := env.Dice.RollD6("advance", u.ID)
			mv.cap += float64(roll)
			res = res.withExtra("advance_roll", roll)
		}
		p.active = mv
		return res.withExtra("move_cap", mv.cap)
	case ActionMoveModel:
		u := g.Units[a.Unit]
		mv := a.Moves[0]
		from := *u.Models[mv.Model].Pos
		p.active.spent[mv.Model] += geometry.Dist(from, mv.To)
		return ok(state.Set(state.ModelPosPath(u.ID, mv.Model), mv.To))
	case ActionCommitMove:
		u := g.Units[a.Unit]
		res := ok()
		switch p.active.mode {
		case MoveModeNormal:
			res.Diffs = append(res.Diffs, state.Set(state.UnitFlagPath(u.ID, state.FlagMoved), true))
		case MoveModeAdvance:
			res.Diffs = append(res.Diffs,
				state.Set(state.UnitFlagPath(u.ID, state.FlagMoved), true),
				state.Set(state.UnitFlagPath(u.ID, state.FlagAdvanced), true))
		case MoveModeFallBack:
			res.Diffs = append(res.Diffs,
				state.Set(state.UnitFlagPath(u.ID, state.FlagMoved), true),
				state.Set(state.UnitFlagPath(u.ID, state.FlagFellBack), true))
			// Desperate escape: each model that moved tests on a D6 and
			// is slain on a 1-2.
			escapes := []map[string]any{}
			for i := range u.Models {
				if !u.Models[i].Alive || p.active.spent[i] == 0 {
					continue
				}
				roll := env.Dice.RollD6("desperate_escape", u.ID)
				slain := roll <= 2
				if slain {
					res.Diffs = append(res.Diffs,
						state.Set(state.ModelAlivePath(u.ID, i), false),
						state.Set(state.UnitFlagPath(u.ID, state.FlagLostModels), true))
					res = res.withEvent("model_slain", map[string]any{"unit": u.ID, "model": i})
				}
				escapes = append(escapes, map[string]any{"model": i, "roll": roll, "slain": slain})
			}
			if len(escapes) > 0 {
				res = res.withExtra("desperate_escape", escapes)
			}
		}
		p.active = nil
		return res
	case ActionResetUnitMove:
		u := g.Units[a.Unit]
		res := ok()
		// Corrective set diffs restore the recorded pre-move positions;
		// the diff log itself is never reverted.
		for i := range u.Models {
			if p.active.spent[i] > 0 {
				res.Diffs = append(res.Diffs, state.Set(state.ModelPosPath(u.ID, i), p.active.orig[i]))
			}
		}
		p.active = nil
		return res
	case ActionArriveFromReserves:
		u := g.Units[a.Unit]
		res := ok()
		for i, pos := range a.Positions {
			res.Diffs = append(res.Diffs, state.Set(state.ModelPosPath(u.ID, i), pos))
		}
		res.Diffs = append(res.Diffs,
			state.Set(state.UnitStatusPath(u.ID), string(state.StatusDeployed)),
			state.Set(state.UnitFlagPath(u.ID, state.FlagMoved), true))
		return res.withEvent("reserves_arrived", map[string]any{"unit": u.ID})
	case ActionEndMovement:
		p.ended = true
		return ok()
	}
	return fail("unhandled action " + a.Type)
}

func (p *movementPhase) AvailableActions(env *Env) []Descriptor {
	g := env.Game
	actor := g.Meta.ActivePlayer
	out := []Descriptor{}
	if p.active != nil {
		u := g.Units[p.active.unitID]
		out = append(out, Descriptor{Type: ActionMoveModel, Unit: u.ID})
		if state.Coherent(u.Models) && !state.Engaged(g, u) {
			out = append(out, Descriptor{Type: ActionCommitMove, Unit: u.ID})
		}
		out = append(out, Descriptor{Type: ActionResetUnitMove, Unit: u.ID})
		return out
	}
	for _, u := range g.UnitsOf(actor) {
		switch {
		case u.Status == state.StatusDeployed && u.AliveModels() > 0 && !movedThisTurn(u):
			if state.Engaged(g, u) {
				if !hasFlag(u, state.FlagBattleShocked) {
					out = append(out, Descriptor{Type: ActionBeginMove, Unit: u.ID, Hint: MoveModeFallBack})
				}
			} else {
				out = append(out, Descriptor{Type: ActionBeginMove, Unit: u.ID})
			}
		case u.Status == state.StatusInReserves && g.Meta.Round >= 2:
			out = append(out, Descriptor{Type: ActionArriveFromReserves, Unit: u.ID})
		}
	}
	out = append(out, Descriptor{Type: ActionEndMovement})
	return out
}
