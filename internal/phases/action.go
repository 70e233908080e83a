// Package phases implements the phase-action rules engine: the generic
// phase lifecycle contract, the validate/process pipeline every phase
// follows, the controller that owns canonical state, and the eight
// concrete phases of a battle round.
package phases

import (
	"strings"

	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// Action tags, grouped by phase.
const (
	// Formations
	ActionDeployUnit      = "DEPLOY_UNIT"
	ActionPlaceInReserves = "PLACE_IN_RESERVES"
	ActionEndFormations   = "END_FORMATIONS"
	// Command
	ActionBattleShockTest = "BATTLE_SHOCK_TEST"
	ActionUseStratagem    = "USE_STRATAGEM"
	ActionEndCommand      = "END_COMMAND"
	// Movement
	ActionBeginMove          = "BEGIN_MOVE"
	ActionMoveModel          = "MOVE_MODEL"
	ActionCommitMove         = "COMMIT_MOVE"
	ActionResetUnitMove      = "RESET_UNIT_MOVE"
	ActionArriveFromReserves = "ARRIVE_FROM_RESERVES"
	ActionEndMovement        = "END_MOVEMENT"
	// Scout moves
	ActionScoutMove     = "SCOUT_MOVE"
	ActionEndScoutMoves = "END_SCOUT_MOVES"
	// Charge
	ActionDeclareCharge = "DECLARE_CHARGE"
	ActionRollCharge    = "ROLL_CHARGE"
	ActionChargeMove    = "CHARGE_MOVE"
	ActionEndCharge     = "END_CHARGE"
	// Fight
	ActionSelectFighter  = "SELECT_FIGHTER"
	ActionPileIn         = "PILE_IN"
	ActionSelectWeapon   = "SELECT_WEAPON"
	ActionAssignAttacks  = "ASSIGN_ATTACKS"
	ActionResolveAttacks = "RESOLVE_ATTACKS"
	ActionConsolidate    = "CONSOLIDATE"
	ActionSkipFight      = "SKIP_FIGHT"
	// Morale
	ActionAttritionTest = "ATTRITION_TEST"
	ActionEndMorale     = "END_MORALE"
	// Scoring
	ActionScoreSecondaries = "SCORE_SECONDARIES"
	ActionEndScoring       = "END_SCORING"
)

// ModelMove addresses one model's destination within a unit.
type ModelMove struct {
	Model int            `json:"model"`
	To    geometry.Point `json:"to"`
}

// Action is a player-submitted command. The payload fields used depend on
// the type tag; unknown tags are validation errors, never crashes.
// Actions are immutable once submitted.
type Action struct {
	Type      string           `json:"type"`
	Player    int              `json:"player"`
	Unit      string           `json:"unit,omitempty"`
	Target    string           `json:"target,omitempty"`
	Targets   []string         `json:"targets,omitempty"`
	Positions []geometry.Point `json:"positions,omitempty"`
	Moves     []ModelMove      `json:"moves,omitempty"`
	Mode      string           `json:"mode,omitempty"`
	Weapon    string           `json:"weapon,omitempty"`
	Models    int              `json:"models,omitempty"`
	Stratagem string           `json:"stratagem,omitempty"`
}

// Validation is the outcome of the read-only validation step.
type Validation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func valid() Validation { return Validation{Valid: true} }

func invalid(msgs ...string) Validation { return Validation{Valid: false, Errors: msgs} }

// Event is an explicit notification returned alongside a result; hosts
// forward them to observers instead of the engine broadcasting anything.
type Event struct {
	Name string         `json:"name"`
	Data map[string]any `json:"data,omitempty"`
}

// Result is what processing an action produces: a success flag, the
// ordered diffs expressing every intended mutation, an error message on
// processing failure, plus side-channel data (dice outcomes, combat logs)
// and events. Processing never mutates state directly.
type Result struct {
	Success bool           `json:"success"`
	Diffs   []state.Diff   `json:"diffs"`
	Error   string         `json:"error,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
	Events  []Event        `json:"events,omitempty"`
}

func ok(diffs ...state.Diff) Result { return Result{Success: true, Diffs: diffs} }

func fail(msg string) Result { return Result{Success: false, Error: msg} }

func (r Result) withExtra(key string, v any) Result {
	if r.Extra == nil {
		r.Extra = map[string]any{}
	}
	r.Extra[key] = v
	return r
}

func (r Result) withEvent(name string, data map[string]any) Result {
	r.Events = append(r.Events, Event{Name: name, Data: data})
	return r
}

func invalidResult(v Validation) Result {
	return Result{Success: false, Error: strings.Join(v.Errors, "; "),
		Extra: map[string]any{"validation_errors": v.Errors}}
}

// Descriptor advertises one currently-legal action for UI/AI discovery.
// Anything listed must pass validation.
type Descriptor struct {
	Type string `json:"type"`
	Unit string `json:"unit,omitempty"`
	Hint string `json:"hint,omitempty"`
}
