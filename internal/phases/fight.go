package phases

import (
	"fmt"

	"github.com/pefman/w40k-tabletop/internal/game"
	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// Fight tiers. Charging always promotes to the first tier, even for a
// unit that would otherwise fight last.
const (
	tierFightsFirst = iota
	tierNormal
	tierFightsLast
)

// fightStep is the per-fighter state machine: a fighter is selected,
// optionally piles in, picks a melee weapon, assigns attacks to a target,
// resolves them, and optionally consolidates before the next fighter.
type fightStep int

const (
	stepNoFighter fightStep = iota
	stepFighterSelected
	stepWeaponSelected
	stepAttacksAssigned
	stepAttacksResolved
)

// Fight interleaves both players' engaged units tier by tier. Within a
// tier the player whose turn it is NOT picks first, then selection
// alternates by slot.
type fightPhase struct {
	seq     []string
	idx     int
	step    fightStep
	weapon  string
	target  string
	models  int
	piledIn bool
}

func newFightPhase() *fightPhase { return &fightPhase{} }

func (p *fightPhase) Type() PhaseType { return PhaseFight }

func (p *fightPhase) OnEnter(env *Env) []state.Diff {
	p.seq = buildFightSequence(env.Game)
	p.idx = 0
	p.step = stepNoFighter
	return nil
}

func (p *fightPhase) OnExit(env *Env) []state.Diff {
	p.seq = nil
	return nil
}

func (p *fightPhase) Actor(env *Env) int {
	if u := p.current(env.Game); u != nil {
		return u.Owner
	}
	return env.Game.Meta.ActivePlayer
}

func (p *fightPhase) ShouldComplete(env *Env) bool {
	return p.current(env.Game) == nil
}

// current skips forward past sequence entries that died, disengaged or
// already fought, and returns the unit whose slot it is. A fighter mid
// activation stays current even once its fought flag lands, so it can
// still consolidate.
func (p *fightPhase) current(g *state.Game) *state.Unit {
	if p.step != stepNoFighter && p.idx < len(p.seq) {
		if u := g.Units[p.seq[p.idx]]; u != nil {
			return u
		}
	}
	for p.idx < len(p.seq) {
		u := g.Units[p.seq[p.idx]]
		if u != nil && u.Status == state.StatusDeployed && u.AliveModels() > 0 &&
			state.Engaged(g, u) && !hasFlag(u, state.FlagFought) {
			return u
		}
		p.idx++
		p.step = stepNoFighter
	}
	return nil
}

func canFight(g *state.Game, u *state.Unit) bool {
	return u.Status == state.StatusDeployed && u.AliveModels() > 0 &&
		state.Engaged(g, u) && !hasFlag(u, state.FlagFought)
}

func fightTier(u *state.Unit) int {
	if hasFlag(u, state.FlagCharged) {
		return tierFightsFirst
	}
	first := u.HasAbility("fights first")
	last := u.HasAbility("fights last")
	switch {
	case first && !last:
		return tierFightsFirst
	case last && !first:
		return tierFightsLast
	}
	return tierNormal
}

// buildFightSequence orders every eligible unit: three tiers, and within
// each tier the non-active player's units interleaved slot-by-slot with
// the active player's, both sides in stable id order.
func buildFightSequence(g *state.Game) []string {
	leader := state.Opponent(g.Meta.ActivePlayer)
	seq := []string{}
	for tier := tierFightsFirst; tier <= tierFightsLast; tier++ {
		var lead, follow []string
		for _, id := range g.UnitIDs() {
			u := g.Units[id]
			if !canFight(g, u) || fightTier(u) != tier {
				continue
			}
			if u.Owner == leader {
				lead = append(lead, id)
			} else {
				follow = append(follow, id)
			}
		}
		for i := 0; i < len(lead) || i < len(follow); i++ {
			if i < len(lead) {
				seq = append(seq, lead[i])
			}
			if i < len(follow) {
				seq = append(seq, follow[i])
			}
		}
	}
	return seq
}

// modelsInRangeOf counts the fighter's live models within engagement
// range of any live target model.
func modelsInRangeOf(u, target *state.Unit) int {
	n := 0
	for _, m := range u.Models {
		if !m.Alive || m.Pos == nil {
			continue
		}
		r := geometry.BaseRadius(m.BaseMM)
		for _, tm := range target.Models {
			if !tm.Alive || tm.Pos == nil {
				continue
			}
			if geometry.EdgeDist(*m.Pos, r, *tm.Pos, geometry.BaseRadius(tm.BaseMM)) <= state.EngagementRange {
				n++
				break
			}
		}
	}
	return n
}

// validateClosingMove checks a pile-in or consolidate: every live model
// stays on the board, moves at most cap inches, and ends no farther from
// the nearest enemy than it started. Coherency must hold at the end.
func (p *fightPhase) validateClosingMove(env *Env, u *state.Unit, positions []geometry.Point, cap float64) Validation {
	if len(positions) != len(u.Models) {
		return invalid(fmt.Sprintf("unit %q needs %d positions, got %d", u.ID, len(u.Models), len(positions)))
	}
	g := env.Game
	for i, pos := range positions {
		m := u.Models[i]
		if !m.Alive || m.Pos == nil {
			continue
		}
		if geometry.Dist(*m.Pos, pos) > cap+1e-9 {
			return invalid(fmt.Sprintf("model %d would move beyond %.0f\"", i, cap))
		}
		if !g.OnBoard(pos) {
			return invalid(fmt.Sprintf("model %d is off the battlefield", i))
		}
		if state.PathCrossesTerrain(g, *m.Pos, pos) {
			return invalid(fmt.Sprintf("model %d's path crosses impassable terrain", i))
		}
		before, okB := state.NearestEnemyEdgeDist(g, u.Owner, *m.Pos, m.BaseMM)
		after, okA := state.NearestEnemyEdgeDist(g, u.Owner, pos, m.BaseMM)
		if okB && okA && after > before+1e-9 {
			return invalid(fmt.Sprintf("model %d must end no farther from the nearest enemy", i))
		}
	}
	if !coherentAt(u, positions) {
		return invalid(fmt.Sprintf("unit %q would break coherency", u.ID))
	}
	return valid()
}

func closingMoveDiffs(u *state.Unit, positions []geometry.Point) []state.Diff {
	diffs := []state.Diff{}
	for i, pos := range positions {
		if u.Models[i].Alive && u.Models[i].Pos != nil {
			diffs = append(diffs, state.Set(state.ModelPosPath(u.ID, i), pos))
		}
	}
	return diffs
}

func (p *fightPhase) ValidateAction(env *Env, a Action) Validation {
	if errs := checkActor(p, env, a); errs != nil {
		return invalid(errs...)
	}
	g := env.Game
	cur := p.current(g)
	switch a.Type {
	case ActionSelectFighter:
		if p.step != stepNoFighter {
			return invalid("a fighter is already selected")
		}
		if cur == nil {
			return invalid("no units left to fight")
		}
		if a.Unit != cur.ID {
			return invalid(fmt.Sprintf("it is unit %q's turn to fight", cur.ID))
		}
		return valid()
	case ActionPileIn:
		if p.step != stepFighterSelected || cur == nil || a.Unit != cur.ID {
			return invalid("pile in comes right after selecting the fighter")
		}
		if p.piledIn {
			return invalid(fmt.Sprintf("unit %q already piled in", cur.ID))
		}
		return p.validateClosingMove(env, cur, a.Positions, state.PileInMax)
	case ActionSelectWeapon:
		if p.step != stepFighterSelected || cur == nil || a.Unit != cur.ID {
			return invalid("select a fighter before choosing a weapon")
		}
		for _, w := range cur.MeleeWeapons() {
			if w.Name == a.Weapon {
				return valid()
			}
		}
		return invalid(fmt.Sprintf("unit %q has no melee weapon %q", cur.ID, a.Weapon))
	case ActionAssignAttacks:
		if p.step != stepWeaponSelected || cur == nil || a.Unit != cur.ID {
			return invalid("choose a weapon before assigning attacks")
		}
		target, okT := g.Units[a.Target]
		if !okT {
			return invalid(fmt.Sprintf("unknown target unit %q", a.Target))
		}
		if target.Owner == cur.Owner {
			return invalid(fmt.Sprintf("target %q is a friendly unit", a.Target))
		}
		inRange := modelsInRangeOf(cur, target)
		if inRange == 0 {
			return invalid(fmt.Sprintf("no models within engagement range of %q", a.Target))
		}
		if a.Models < 1 || a.Models > inRange {
			return invalid(fmt.Sprintf("can assign 1 to %d models against %q, got %d", inRange, a.Target, a.Models))
		}
		return valid()
	case ActionResolveAttacks:
		if p.step != stepAttacksAssigned || cur == nil || a.Unit != cur.ID {
			return invalid("assign attacks before resolving them")
		}
		return valid()
	case ActionConsolidate:
		if p.step != stepAttacksResolved || cur == nil || a.Unit != cur.ID {
			return invalid("consolidate comes after resolving attacks")
		}
		return p.validateClosingMove(env, cur, a.Positions, state.ConsolidateMax)
	case ActionSkipFight:
		if cur == nil {
			return invalid("no units left to fight")
		}
		if a.Unit != cur.ID {
			return invalid(fmt.Sprintf("it is unit %q's turn to fight", cur.ID))
		}
		return valid()
	}
	return unknownAction(p.Type(), a.Type)
}

func (p *fightPhase) ProcessAction(env *Env, a Action) Result {
	g := env.Game
	cur := p.current(g)
	switch a.Type {
	case ActionSelectFighter:
		p.step = stepFighterSelected
		p.piledIn = false
		p.weapon, p.target, p.models = "", "", 0
		return ok().withEvent("fighter_selected", map[string]any{"unit": cur.ID})
	case ActionPileIn:
		p.piledIn = true
		return ok(closingMoveDiffs(cur, a.Positions)...)
	case ActionSelectWeapon:
		p.weapon = a.Weapon
		p.step = stepWeaponSelected
		return ok()
	case ActionAssignAttacks:
		p.target = a.Target
		p.models = a.Models
		p.step = stepAttacksAssigned
		return ok()
	case ActionResolveAttacks:
		return p.resolveAttacks(env, cur)
	case ActionConsolidate:
		res := ok(closingMoveDiffs(cur, a.Positions)...)
		p.advance()
		return res
	case ActionSkipFight:
		res := ok()
		if p.step == stepNoFighter {
			// Declining to fight still spends the unit's activation.
			res.Diffs = append(res.Diffs, state.Set(state.UnitFlagPath(cur.ID, state.FlagFought), true))
		}
		p.advance()
		return res
	}
	return fail("unhandled action " + a.Type)
}

func (p *fightPhase) advance() {
	p.idx++
	p.step = stepNoFighter
	p.weapon, p.target, p.models = "", "", 0
	p.piledIn = false
}

// resolveAttacks runs the melee exchange and turns the result into
// wounds, slain models and flags on the defender.
func (p *fightPhase) resolveAttacks(env *Env, cur *state.Unit) Result {
	g := env.Game
	target := g.Units[p.target]
	var weapon state.Weapon
	for _, w := range cur.MeleeWeapons() {
		if w.Name == p.weapon {
			weapon = w
			break
		}
	}
	mr := game.ResolveMelee(env.Dice,
		game.Attacker{
			UnitID: cur.ID, UnitName: cur.Meta.Name, Models: p.models,
			WSkill: weapon.Skill, Strength: weapon.S, AP: weapon.AP,
			Attacks: weapon.Attacks, Damage: weapon.Damage, Weapon: weapon.Name,
		},
		game.Defender{
			UnitID: target.ID, UnitName: target.Meta.Name,
			Toughness: target.Meta.Toughness, Save: target.Meta.Save,
			InvSave: target.Meta.InvSave, FNP: target.Meta.FNP,
		})

	res := ok().withExtra("melee", mr)

	// Allocate damage front to back: each point comes off the first model
	// still standing.
	wounds := make([]int, len(target.Models))
	for i, m := range target.Models {
		wounds[i] = m.Wounds
	}
	touched := map[int]bool{}
	slain := 0
	for _, dmg := range mr.Damage {
		for dmg > 0 {
			mi := -1
			for i, m := range target.Models {
				if m.Alive && wounds[i] > 0 {
					mi = i
					break
				}
			}
			if mi < 0 {
				break
			}
			take := dmg
			if take > wounds[mi] {
				take = wounds[mi]
			}
			wounds[mi] -= take
			dmg -= take
			touched[mi] = true
			if wounds[mi] == 0 {
				slain++
			}
		}
	}
	for i := range target.Models {
		if !touched[i] {
			continue
		}
		res.Diffs = append(res.Diffs, state.Set(state.ModelWoundsPath(target.ID, i), wounds[i]))
		if wounds[i] == 0 {
			res.Diffs = append(res.Diffs, state.Set(state.ModelAlivePath(target.ID, i), false))
		}
	}
	if slain > 0 {
		res.Diffs = append(res.Diffs, state.Set(state.UnitFlagPath(target.ID, state.FlagLostModels), true))
		res = res.withEvent("models_slain", map[string]any{
			"unit": target.ID, "count": slain, "by": cur.ID})
		if slain >= target.AliveModels() {
			res.Diffs = append(res.Diffs, state.Set(state.UnitStatusPath(target.ID), string(state.StatusDestroyed)))
			res = res.withEvent("unit_destroyed", map[string]any{"unit": target.ID})
		}
	}
	res.Diffs = append(res.Diffs, state.Set(state.UnitFlagPath(cur.ID, state.FlagFought), true))
	p.step = stepAttacksResolved
	return res
}

func (p *fightPhase) AvailableActions(env *Env) []Descriptor {
	g := env.Game
	cur := p.current(g)
	if cur == nil {
		return nil
	}
	out := []Descriptor{}
	switch p.step {
	case stepNoFighter:
		out = append(out,
			Descriptor{Type: ActionSelectFighter, Unit: cur.ID},
			Descriptor{Type: ActionSkipFight, Unit: cur.ID})
	case stepFighterSelected:
		if !p.piledIn {
			out = append(out, Descriptor{Type: ActionPileIn, Unit: cur.ID})
		}
		for _, w := range cur.MeleeWeapons() {
			out = append(out, Descriptor{Type: ActionSelectWeapon, Unit: cur.ID, Hint: w.Name})
		}
		out = append(out, Descriptor{Type: ActionSkipFight, Unit: cur.ID})
	case stepWeaponSelected:
		for _, e := range state.EnemiesInCombatWith(g, cur) {
			out = append(out, Descriptor{Type: ActionAssignAttacks, Unit: cur.ID, Hint: e.ID})
		}
		out = append(out, Descriptor{Type: ActionSkipFight, Unit: cur.ID})
	case stepAttacksAssigned:
		out = append(out, Descriptor{Type: ActionResolveAttacks, Unit: cur.ID})
	case stepAttacksResolved:
		out = append(out,
			Descriptor{Type: ActionConsolidate, Unit: cur.ID},
			Descriptor{Type: ActionSkipFight, Unit: cur.ID})
	}
	return out
}
