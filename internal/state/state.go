// Package state defines the canonical match state and the diff protocol
// that is the only sanctioned way to mutate it. Phases read snapshots and
// return diffs; the controller owns the single applier.
package state

import (
	"sort"
	"strings"

	"github.com/pefman/w40k-tabletop/internal/geometry"
)

// UnitStatus enumerates the lifecycle of a unit across a match.
type UnitStatus string

const (
	StatusUndeployed UnitStatus = "undeployed"
	StatusInReserves UnitStatus = "in_reserves"
	StatusDeployed   UnitStatus = "deployed"
	StatusDestroyed  UnitStatus = "destroyed"
)

// Turn flag names. Flags live on Unit.Flags and are cleared at the phase
// boundaries noted next to each.
const (
	FlagMoved          = "moved"           // cleared end of Scoring
	FlagAdvanced       = "advanced"        // cleared end of Scoring
	FlagFellBack       = "fell_back"       // cleared end of Scoring
	FlagChargeDeclared = "charge_declared" // cleared end of Charge
	FlagCharged        = "charged"         // cleared end of Scoring
	FlagFought         = "fought"          // cleared end of Scoring
	FlagBattleShocked  = "battle_shocked"  // cleared start of owner's Command
	FlagShockTested    = "shock_tested"    // cleared start of owner's Command
	FlagAttritionTested = "attrition_tested" // cleared end of Scoring
	FlagScoutMoved     = "scout_moved"     // set once, never cleared
	FlagLostModels     = "lost_models"     // cleared end of Scoring
	FlagReserveLossReported = "reserve_loss_reported" // set once when reported to missions
)

// Profile is the static datasheet half of a unit: never touched by diffs.
type Profile struct {
	Name       string   `json:"name" yaml:"name"`
	Move       float64  `json:"move" yaml:"move"`             // inches
	Toughness  int      `json:"toughness" yaml:"toughness"`
	Save       int      `json:"save" yaml:"save"`             // 2..6, 7 = none
	InvSave    int      `json:"inv_save,omitempty" yaml:"inv_save"` // 0 = none
	Wounds     int      `json:"wounds" yaml:"wounds"`         // per model
	Leadership int      `json:"leadership" yaml:"leadership"`
	OC         int      `json:"oc" yaml:"oc"`
	FNP        int      `json:"fnp,omitempty" yaml:"fnp"` // 0 = none
	Keywords   []string `json:"keywords,omitempty" yaml:"keywords"`
	Abilities  []string `json:"abilities,omitempty" yaml:"abilities"`
	Weapons    []Weapon `json:"weapons,omitempty" yaml:"weapons"`
	Points     int      `json:"points" yaml:"points"`
}

// Weapon is a melee or ranged weapon profile. Attacks and Damage hold
// dice expressions so "D6+1" survives serialization unchanged.
type Weapon struct {
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"` // "melee" or "ranged"
	Attacks string `json:"attacks" yaml:"attacks"` // dice expr or int
	Skill   int    `json:"skill" yaml:"skill"`     // hit threshold 2..6
	S       int    `json:"s" yaml:"s"`
	AP      int    `json:"ap" yaml:"ap"` // negative worsens the save
	Damage  string `json:"damage" yaml:"damage"` // dice expr or int
}

// Model is one miniature. Dead models keep their slot so diff paths by
// index stay stable for the whole match.
type Model struct {
	Pos    *geometry.Point `json:"pos,omitempty"`
	Alive  bool            `json:"alive"`
	Wounds int             `json:"wounds"`
	BaseMM float64         `json:"base_mm"`
}

// Unit is the mutable half of a datasheet on the table.
type Unit struct {
	ID     string          `json:"id"`
	Owner  int             `json:"owner"` // 1 or 2
	Status UnitStatus      `json:"status"`
	Models []Model         `json:"models"`
	Flags  map[string]bool `json:"flags"`
	Meta   Profile         `json:"meta"`
}

// HasKeyword reports whether the unit's datasheet carries a keyword.
func (u *Unit) HasKeyword(kw string) bool {
	for _, k := range u.Meta.Keywords {
		if strings.EqualFold(k, kw) {
			return true
		}
	}
	return false
}

// HasAbility reports whether the datasheet lists an ability, matched as a
// case-insensitive prefix so "Scouts 6\"" matches "scouts".
func (u *Unit) HasAbility(name string) bool {
	name = strings.ToLower(name)
	for _, a := range u.Meta.Abilities {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(a)), name) {
			return true
		}
	}
	return false
}

// AliveModels counts the models still on the table.
func (u *Unit) AliveModels() int {
	n := 0
	for _, m := range u.Models {
		if m.Alive {
			n++
		}
	}
	return n
}

// BelowHalfStrength reports whether the unit has lost at least half its
// starting models (or half its wounds for a single-model unit).
func (u *Unit) BelowHalfStrength() bool {
	if len(u.Models) == 1 {
		return u.Models[0].Alive && u.Models[0].Wounds*2 < u.Meta.Wounds
	}
	return u.AliveModels()*2 < len(u.Models)
}

// MeleeWeapons returns the melee profiles on the datasheet.
func (u *Unit) MeleeWeapons() []Weapon {
	out := []Weapon{}
	for _, w := range u.Meta.Weapons {
		if strings.EqualFold(w.Type, "melee") {
			out = append(out, w)
		}
	}
	return out
}

// Player is per-player match bookkeeping.
type Player struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	CP          int             `json:"cp"`
	VP          int             `json:"vp"`
	Secondaries []string        `json:"secondaries,omitempty"`
	Flags       map[string]bool `json:"flags,omitempty"`
}

// Terrain is an impassable polygon footprint.
type Terrain struct {
	Name  string           `json:"name"`
	Verts []geometry.Point `json:"verts"`
}

// Objective is a scoring marker; Holder is resolved by the mission
// collaborator during Scoring.
type Objective struct {
	Pos    geometry.Point `json:"pos"`
	Radius float64        `json:"radius"`
	Holder int            `json:"holder"` // 0 = contested/none
}

// Zone is a rectangular deployment zone.
type Zone struct {
	MinX, MinY, MaxX, MaxY float64
}

// Contains reports whether p lies inside the zone.
func (z Zone) Contains(p geometry.Point) bool {
	return p.X >= z.MinX && p.X <= z.MaxX && p.Y >= z.MinY && p.Y <= z.MaxY
}

// Board holds the static battlefield plus objective holders.
type Board struct {
	Width      float64      `json:"width"`
	Height     float64      `json:"height"`
	Terrain    []Terrain    `json:"terrain,omitempty"`
	Objectives []Objective  `json:"objectives,omitempty"`
	Zones      map[int]Zone `json:"zones,omitempty"` // player id -> deployment zone
}

// Meta is match-level bookkeeping.
type Meta struct {
	Round        int    `json:"round"`
	Phase        string `json:"phase"`
	ActivePlayer int    `json:"active_player"`
	FirstPlayer  int    `json:"first_player"`
	BattleEnded  bool   `json:"battle_ended"`
	Notes        []string `json:"notes,omitempty"`
}

// Game is the canonical state tree: players, units, board, meta. Exactly
// one writer (the controller's diff applier) may mutate it.
type Game struct {
	Players map[int]*Player  `json:"players"`
	Units   map[string]*Unit `json:"units"`
	Board   Board            `json:"board"`
	Meta    Meta             `json:"meta"`
}

// NewGame builds an empty two-player match on a board of the given size.
func NewGame(width, height float64) *Game {
	return &Game{
		Players: map[int]*Player{
			1: {ID: 1, Flags: map[string]bool{}},
			2: {ID: 2, Flags: map[string]bool{}},
		},
		Units: map[string]*Unit{},
		Board: Board{Width: width, Height: height, Zones: map[int]Zone{}},
		Meta:  Meta{Round: 0, ActivePlayer: 1, FirstPlayer: 1},
	}
}

// AddUnit registers a unit built from a profile. Models start undeployed
// (no position) at full wounds.
func (g *Game) AddUnit(id string, owner, modelCount int, baseMM float64, prof Profile) *Unit {
	models := make([]Model, modelCount)
	for i := range models {
		models[i] = Model{Alive: true, Wounds: prof.Wounds, BaseMM: baseMM}
	}
	u := &Unit{ID: id, Owner: owner, Status: StatusUndeployed, Models: models,
		Flags: map[string]bool{}, Meta: prof}
	g.Units[id] = u
	return u
}

// UnitIDs returns unit ids in stable sorted order; map iteration order
// must never leak into rules decisions.
func (g *Game) UnitIDs() []string {
	ids := make([]string, 0, len(g.Units))
	for id := range g.Units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UnitsOf returns the player's units in stable id order.
func (g *Game) UnitsOf(player int) []*Unit {
	out := []*Unit{}
	for _, id := range g.UnitIDs() {
		if u := g.Units[id]; u.Owner == player {
			out = append(out, u)
		}
	}
	return out
}

// Opponent returns the other player's id.
func Opponent(player int) int { return 3 - player }
