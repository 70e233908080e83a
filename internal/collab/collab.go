// Package collab declares the external collaborator ports the rules
// engine consumes: mission scoring, stratagems, faction abilities and
// secondary-mission decks. The engine treats all of them as black boxes
// returning data or diffs; inert defaults let the core run standalone.
package collab

import (
	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// MissionScorer owns objective control and primary scoring tables.
type MissionScorer interface {
	// CheckAllObjectives recomputes objective holders and returns the
	// diffs that record them.
	CheckAllObjectives(g *state.Game) []state.Diff
	// ScorePrimaryObjectives returns the diffs awarding primary VP for
	// the round to the given player.
	ScorePrimaryObjectives(g *state.Game, player int) []state.Diff
	// ReportDestroyed tells the mission layer a unit was destroyed
	// outside normal combat (e.g. reserves never arriving).
	ReportDestroyed(g *state.Game, unitID string)
}

// StratagemCheck is the availability answer for one stratagem.
type StratagemCheck struct {
	CanUse bool   `json:"can_use"`
	Reason string `json:"reason,omitempty"`
}

// Stratagems owns the stratagem catalog and its CP bookkeeping.
type Stratagems interface {
	CanUseStratagem(g *state.Game, player int, id, target string) StratagemCheck
	// UseStratagem returns the diffs of a successful use, or an error
	// string for a processing failure. It never mutates state itself.
	UseStratagem(g *state.Game, player int, id, target string) ([]state.Diff, string)
}

// Abilities answers faction/unit ability queries the rules can't derive
// from datasheet keywords alone.
type Abilities interface {
	PlayerHasAbility(g *state.Game, player int, name string) bool
}

// SecondaryMissions owns the secondary-mission deck.
type SecondaryMissions interface {
	GetActiveMissions(g *state.Game, player int) []string
	// ScoreSecondaryMissionsForPlayer returns diffs awarding secondary
	// VP for the round.
	ScoreSecondaryMissionsForPlayer(g *state.Game, player int) []state.Diff
}

// Services bundles the collaborator set handed to every phase at
// construction; no globals.
type Services struct {
	Missions    MissionScorer
	Stratagems  Stratagems
	Abilities   Abilities
	Secondaries SecondaryMissions
}

// Defaults returns an inert collaborator bundle: objectives resolve by
// counting models in range, everything else is a no-op.
func Defaults() Services {
	return Services{
		Missions:    &NoopMissions{},
		Stratagems:  NoopStratagems{},
		Abilities:   NoopAbilities{},
		Secondaries: NoopSecondaries{},
	}
}

// NoopMissions resolves objective holders by objective-control totals and
// awards nothing. It records destroyed-unit reports for tests.
type NoopMissions struct {
	Reported []string
}

func (n *NoopMissions) CheckAllObjectives(g *state.Game) []state.Diff {
	diffs := []state.Diff{}
	for i, obj := range g.Board.Objectives {
		oc := map[int]int{}
		for _, id := range g.UnitIDs() {
			u := g.Units[id]
			if u.Status != state.StatusDeployed {
				continue
			}
			for _, m := range u.Models {
				if m.Alive && m.Pos != nil && geometry.Dist(obj.Pos, *m.Pos) <= obj.Radius {
					oc[u.Owner] += u.Meta.OC
				}
			}
		}
		holder := 0
		if oc[1] > oc[2] {
			holder = 1
		} else if oc[2] > oc[1] {
			holder = 2
		}
		if holder != obj.Holder {
			diffs = append(diffs, state.Set(state.ObjectiveHolderPath(i), holder))
		}
	}
	return diffs
}

func (n *NoopMissions) ScorePrimaryObjectives(g *state.Game, player int) []state.Diff {
	held := 0
	for _, obj := range g.Board.Objectives {
		if obj.Holder == player {
			held++
		}
	}
	if held == 0 {
		return nil
	}
	return []state.Diff{state.Set(state.PlayerVPPath(player), g.Players[player].VP+5*held)}
}

func (n *NoopMissions) ReportDestroyed(g *state.Game, unitID string) {
	n.Reported = append(n.Reported, unitID)
}

// NoopStratagems refuses everything: the catalog lives outside the core.
type NoopStratagems struct{}

func (NoopStratagems) CanUseStratagem(g *state.Game, player int, id, target string) StratagemCheck {
	return StratagemCheck{CanUse: false, Reason: "no stratagem catalog configured"}
}

func (NoopStratagems) UseStratagem(g *state.Game, player int, id, target string) ([]state.Diff, string) {
	return nil, "no stratagem catalog configured"
}

type NoopAbilities struct{}

func (NoopAbilities) PlayerHasAbility(g *state.Game, player int, name string) bool { return false }

type NoopSecondaries struct{}

func (NoopSecondaries) GetActiveMissions(g *state.Game, player int) []string { return nil }

func (NoopSecondaries) ScoreSecondaryMissionsForPlayer(g *state.Game, player int) []state.Diff {
	return nil
}
