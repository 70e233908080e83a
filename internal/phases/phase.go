package phases

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pefman/w40k-tabletop/internal/collab"
	"github.com/pefman/w40k-tabletop/internal/engine"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// PhaseType tags the closed set of phase variants.
type PhaseType string

const (
	PhaseFormations PhaseType = "formations"
	PhaseCommand    PhaseType = "command"
	PhaseMovement   PhaseType = "movement"
	PhaseScoutMoves PhaseType = "scout_moves"
	PhaseCharge     PhaseType = "charge"
	PhaseFight      PhaseType = "fight"
	PhaseMorale     PhaseType = "morale"
	PhaseScoring    PhaseType = "scoring"
)

// Env is the explicit service bundle handed to every phase: a read-only
// view of canonical state, the dice service, the collaborator ports and a
// logger. Phases must never write through Game; all mutation is diffs.
type Env struct {
	Game *state.Game
	Dice *engine.Dice
	Svc  collab.Services
	Log  *zap.Logger
}

// Phase is the contract every concrete phase implements. Lifecycle hooks
// return diffs (applied by the controller) rather than mutating state.
// ValidateAction and ShouldComplete are pure; ProcessAction may roll dice
// and consult phase-local transient state but only mutates via diffs.
type Phase interface {
	Type() PhaseType
	OnEnter(env *Env) []state.Diff
	OnExit(env *Env) []state.Diff
	Actor(env *Env) int
	ValidateAction(env *Env, a Action) Validation
	ProcessAction(env *Env, a Action) Result
	AvailableActions(env *Env) []Descriptor
	ShouldComplete(env *Env) bool
}

// ---- Shared validation helpers, composed by each phase variant ----

// checkActor verifies the submitting player is the player to act.
func checkActor(p Phase, env *Env, a Action) []string {
	actor := p.Actor(env)
	if a.Player != actor {
		return []string{fmt.Sprintf("not player %d's turn to act (player %d to act)", a.Player, actor)}
	}
	return nil
}

// ownUnit resolves a unit id and verifies the player owns it.
func ownUnit(env *Env, player int, id string) (*state.Unit, []string) {
	if id == "" {
		return nil, []string{"action requires a unit"}
	}
	u, ok := env.Game.Units[id]
	if !ok {
		return nil, []string{fmt.Sprintf("unknown unit %q", id)}
	}
	if u.Owner != player {
		return nil, []string{fmt.Sprintf("unit %q belongs to player %d", id, u.Owner)}
	}
	return u, nil
}

// unknownAction is the shared answer for unrecognized type tags.
func unknownAction(p PhaseType, t string) Validation {
	return invalid(fmt.Sprintf("unknown action %q for %s phase", t, p))
}

// hasFlag is nil-safe flag lookup.
func hasFlag(u *state.Unit, flag string) bool {
	return u.Flags != nil && u.Flags[flag]
}
