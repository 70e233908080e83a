// The simulator: loads two army files, drives a full match with a greedy
// scripted player and prints the roll log and final state. Useful for
// eyeballing rule changes and for reproducing a seed from a bug report.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joeshaw/envdecode"
	"go.uber.org/zap"

	"github.com/pefman/w40k-tabletop/internal/collab"
	"github.com/pefman/w40k-tabletop/internal/engine"
	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/library"
	"github.com/pefman/w40k-tabletop/internal/phases"
	"github.com/pefman/w40k-tabletop/internal/state"
)

type config struct {
	Seed       int64   `env:"SIM_SEED,default=1"`
	LibraryDir string  `env:"LIBRARY_DIR,default=data"`
	Army1      string  `env:"SIM_ARMY1,default=army1.yaml"`
	Army2      string  `env:"SIM_ARMY2,default=army2.yaml"`
	Rounds     int     `env:"SIM_ROUNDS,default=3"`
	Width      float64 `env:"BOARD_WIDTH,default=60"`
	Height     float64 `env:"BOARD_HEIGHT,default=44"`
	Verbose    bool    `env:"SIM_VERBOSE,default=false"`
}

func main() {
	var cfg config
	if err := envdecode.Decode(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := zap.NewNop()
	if cfg.Verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			log.Fatalf("logger: %v", err)
		}
		logger = l
	}

	lib, err := library.Load(cfg.LibraryDir, logger)
	if err != nil {
		log.Fatalf("load library: %v", err)
	}
	a1, err := library.LoadArmy(cfg.Army1)
	if err != nil {
		log.Fatalf("load army 1: %v", err)
	}
	a2, err := library.LoadArmy(cfg.Army2)
	if err != nil {
		log.Fatalf("load army 2: %v", err)
	}
	g, err := lib.BuildGame(cfg.Width, cfg.Height, a1, a2)
	if err != nil {
		log.Fatalf("build game: %v", err)
	}
	g.Board.Zones[1] = state.Zone{MinX: 0, MinY: 0, MaxX: cfg.Width, MaxY: 12}
	g.Board.Zones[2] = state.Zone{MinX: 0, MinY: cfg.Height - 12, MaxX: cfg.Width, MaxY: cfg.Height}

	dice := engine.NewDice(cfg.Seed).WithLogger(logger)
	ctrl := phases.NewController(g, dice, collab.Defaults(), logger)
	ctrl.Start()

	if err := run(ctrl, g, cfg.Rounds); err != nil {
		log.Fatalf("simulation: %v", err)
	}
	report(os.Stdout, dice, g)
}

// run plays greedily until the target round is over: everything deploys
// on the line, no unit ever moves, engaged units decline to fight. The
// point is exercising the whole phase pipeline, not tactics.
func run(ctrl *phases.Controller, g *state.Game, rounds int) error {
	const maxSteps = 10000
	for step := 0; step < maxSteps; step++ {
		if g.Meta.BattleEnded || g.Meta.Round > rounds {
			return nil
		}
		phase := ctrl.Phase()
		if phase == "" {
			return nil
		}
		act, err := nextAction(ctrl, g, phase)
		if err != nil {
			return err
		}
		if res := ctrl.SubmitAction(act); !res.Success {
			return fmt.Errorf("round %d %s: %s rejected: %s",
				g.Meta.Round, phase, act.Type, res.Error)
		}
	}
	return fmt.Errorf("no progress after %d steps", maxSteps)
}

func nextAction(ctrl *phases.Controller, g *state.Game, phase phases.PhaseType) (phases.Action, error) {
	actor := ctrl.CurrentActor()
	switch phase {
	case phases.PhaseFormations:
		for idx, u := range g.UnitsOf(actor) {
			if u.Status == state.StatusUndeployed {
				return deployAction(g, actor, idx, u), nil
			}
		}
		return phases.Action{Type: phases.ActionEndFormations, Player: actor}, nil
	case phases.PhaseCommand:
		return phases.Action{Type: phases.ActionEndCommand, Player: actor}, nil
	case phases.PhaseMovement:
		return phases.Action{Type: phases.ActionEndMovement, Player: actor}, nil
	case phases.PhaseScoutMoves:
		return phases.Action{Type: phases.ActionEndScoutMoves, Player: actor}, nil
	case phases.PhaseCharge:
		return phases.Action{Type: phases.ActionEndCharge, Player: actor}, nil
	case phases.PhaseFight:
		for _, d := range ctrl.AvailableActions() {
			if d.Type == phases.ActionSkipFight {
				return phases.Action{Type: phases.ActionSkipFight, Player: actor, Unit: d.Unit}, nil
			}
		}
		return phases.Action{}, fmt.Errorf("fight phase offers no skip")
	case phases.PhaseMorale:
		return phases.Action{Type: phases.ActionEndMorale, Player: actor}, nil
	case phases.PhaseScoring:
		return phases.Action{Type: phases.ActionEndScoring, Player: actor}, nil
	}
	return phases.Action{}, fmt.Errorf("no scripted play for phase %s", phase)
}

// deployAction lines a unit up inside its owner's zone, one row per
// unit, models spaced along x.
func deployAction(g *state.Game, player, unitIdx int, u *state.Unit) phases.Action {
	zone := g.Board.Zones[player]
	y := zone.MinY + 1.5 + float64(unitIdx)*2.5
	if y > zone.MaxY-1 {
		y = zone.MaxY - 1
	}
	positions := make([]geometry.Point, len(u.Models))
	for i := range positions {
		positions[i] = geometry.Point{X: zone.MinX + 2 + float64(i)*1.5, Y: y}
	}
	return phases.Action{
		Type:      phases.ActionDeployUnit,
		Player:    player,
		Unit:      u.ID,
		Positions: positions,
	}
}

func report(w *os.File, dice *engine.Dice, g *state.Game) {
	fmt.Fprintf(w, "--- roll log (%d rolls) ---\n", len(dice.Log()))
	for _, r := range dice.Log() {
		fmt.Fprintf(w, "%-20s %-12s %v = %d\n", r.Context, r.Unit, r.Values, r.Total)
	}
	fmt.Fprintln(w, "--- result ---")
	for _, id := range []int{1, 2} {
		p := g.Players[id]
		fmt.Fprintf(w, "player %d %-20s CP=%d VP=%d\n", id, p.Name, p.CP, p.VP)
	}
	out, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		log.Fatalf("marshal state: %v", err)
	}
	fmt.Fprintln(w, string(out))
}
