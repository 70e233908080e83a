package phases

import (
	"go.uber.org/zap"

	"github.com/pefman/w40k-tabletop/internal/collab"
	"github.com/pefman/w40k-tabletop/internal/engine"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// Controller owns the canonical state and the single active phase. It is
// the only component that applies diffs; phases and helpers get read-only
// snapshots plus the diff list as their output channel. Strictly
// synchronous: one action at a time, processed to completion. Hosts that
// serve multiple connections must serialize access themselves.
type Controller struct {
	env     *Env
	applier state.Applier
	phase   Phase
	journal []state.Diff
}

// NewController wires a match. The dice service should be seeded (or
// scripted) by the caller; svc may be collab.Defaults().
func NewController(g *state.Game, dice *engine.Dice, svc collab.Services, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		env: &Env{Game: g, Dice: dice, Svc: svc, Log: log},
	}
}

// Strict switches the diff applier into strict path checking (tests).
func (c *Controller) Strict() *Controller {
	c.applier = state.Applier{Strict: true}
	return c
}

// Game exposes canonical state for reading. Callers must not mutate.
func (c *Controller) Game() *state.Game { return c.env.Game }

// Journal returns every diff applied so far, in order. Replaying it onto
// a fresh copy of the initial state reproduces the current state.
func (c *Controller) Journal() []state.Diff { return c.journal }

// Phase returns the active phase type, or "" before Start.
func (c *Controller) Phase() PhaseType {
	if c.phase == nil {
		return ""
	}
	return c.phase.Type()
}

// CurrentActor returns the player expected to submit the next action.
func (c *Controller) CurrentActor() int {
	if c.phase == nil {
		return c.env.Game.Meta.ActivePlayer
	}
	return c.phase.Actor(c.env)
}

// AvailableActions lists the legal actions for the player to act.
func (c *Controller) AvailableActions() []Descriptor {
	if c.phase == nil {
		return nil
	}
	return c.phase.AvailableActions(c.env)
}

// Start enters the Formations phase. Events describing the entry are
// returned for the host to forward.
func (c *Controller) Start() []Event {
	return c.enterPhase(newFormationsPhase())
}

func (c *Controller) enterPhase(p Phase) []Event {
	c.phase = p
	events := []Event{{Name: "phase_entered", Data: map[string]any{"phase": string(p.Type())}}}
	c.apply(state.Set("meta.phase", string(p.Type())))
	c.apply(p.OnEnter(c.env)...)
	// A phase with nothing to do completes immediately.
	return append(events, c.advanceWhileComplete()...)
}

func (c *Controller) advanceWhileComplete() []Event {
	events := []Event{}
	for c.phase != nil && c.phase.ShouldComplete(c.env) {
		c.apply(c.phase.OnExit(c.env)...)
		events = append(events, Event{Name: "phase_exited",
			Data: map[string]any{"phase": string(c.phase.Type())}})
		if c.env.Game.Meta.BattleEnded {
			c.phase = nil
			events = append(events, Event{Name: "battle_ended", Data: nil})
			break
		}
		next := c.nextPhase(c.phase.Type())
		c.phase = next
		c.apply(state.Set("meta.phase", string(next.Type())))
		c.apply(next.OnEnter(c.env)...)
		events = append(events, Event{Name: "phase_entered",
			Data: map[string]any{"phase": string(next.Type())}})
	}
	return events
}

// nextPhase implements the fixed phase order. Scout Moves is entered only
// when the active player has an eligible scout unit; Formations never
// repeats.
func (c *Controller) nextPhase(cur PhaseType) Phase {
	switch cur {
	case PhaseFormations:
		return newCommandPhase()
	case PhaseCommand:
		return newMovementPhase()
	case PhaseMovement:
		if len(scoutEligible(c.env.Game, c.env.Game.Meta.ActivePlayer)) > 0 {
			return newScoutMovesPhase()
		}
		return newChargePhase()
	case PhaseScoutMoves:
		return newChargePhase()
	case PhaseCharge:
		return newFightPhase()
	case PhaseFight:
		return newMoralePhase()
	case PhaseMorale:
		return newScoringPhase()
	case PhaseScoring:
		return newCommandPhase()
	}
	return newCommandPhase()
}

// SubmitAction runs the full pipeline: validate (read-only; an invalid
// action leaves state untouched), process, apply diffs in order, then
// advance the phase if it reports complete.
func (c *Controller) SubmitAction(a Action) Result {
	if c.phase == nil {
		return fail("no active phase (battle not started or already over)")
	}
	v := c.phase.ValidateAction(c.env, a)
	if !v.Valid {
		c.env.Log.Debug("action rejected",
			zap.String("type", a.Type),
			zap.Int("player", a.Player),
			zap.Strings("errors", v.Errors))
		return invalidResult(v)
	}
	res := c.phase.ProcessAction(c.env, a)
	if !res.Success {
		c.env.Log.Warn("action failed",
			zap.String("type", a.Type),
			zap.Int("player", a.Player),
			zap.String("error", res.Error))
		res.Diffs = nil
		return res
	}
	if err := c.applyChecked(res.Diffs); err != nil {
		// A phase emitted diffs the schema rejects. Degrade to a
		// processing failure so the match stays available.
		c.env.Log.Error("diff apply failed", zap.String("type", a.Type), zap.Error(err))
		return fail("internal: " + err.Error())
	}
	res.Events = append(res.Events, c.advanceWhileComplete()...)
	return res
}

func (c *Controller) apply(diffs ...state.Diff) {
	if err := c.applyChecked(diffs); err != nil {
		// Lifecycle hooks are engine-authored; a bad path here is a bug.
		c.env.Log.Error("lifecycle diff apply failed", zap.Error(err))
	}
}

func (c *Controller) applyChecked(diffs []state.Diff) error {
	if len(diffs) == 0 {
		return nil
	}
	// Probe against a clone first so a rejected list never leaves the
	// canonical state partially mutated.
	probe := c.env.Game.Clone()
	if err := c.applier.Apply(probe, diffs); err != nil {
		return err
	}
	if err := c.applier.Apply(c.env.Game, diffs); err != nil {
		return err
	}
	c.journal = append(c.journal, diffs...)
	return nil
}
