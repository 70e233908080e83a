// Package game implements close-combat resolution: the hit, wound, save
// and damage steps shared by every melee exchange in the fight phase.
// Resolution never touches canonical state; callers turn the result into
// diffs.
package game

import (
	"fmt"

	"github.com/pefman/w40k-tabletop/internal/engine"
)

func woundTarget(S, T int) int {
	// Returns target roll (2-6) needed to wound
	switch {
	case S >= 2*T:
		return 2
	case S > T:
		return 3
	case S == T:
		return 4
	case S*2 <= T:
		return 6
	default:
		return 5
	}
}

func bestSaveThreshold(sv, inv, ap int) int {
	// sv is 2..6 where 2 means 2+, inv 0 if none; ap negative makes saves worse
	eff := sv - ap
	if eff < 2 {
		eff = 2
	}
	if eff > 6 {
		eff = 7 // 7 means no save
	}
	if inv > 0 && inv < eff {
		eff = inv
	}
	return eff
}

// ResolveMelee executes one unit's assigned attacks against a defender and
// logs every step. All randomness goes through the dice service so the
// exchange replays identically from the same seed or script.
func ResolveMelee(d *engine.Dice, att Attacker, def Defender) MeleeResult {
	logs := []string{}
	res := MeleeResult{}

	// Attacks
	attacks := 0
	for i := 0; i < att.Models; i++ {
		attacks += d.RollExpr("melee_attacks", att.UnitID, att.Attacks)
	}
	res.Attacks = attacks
	logs = append(logs, fmt.Sprintf("%s: %d model(s) with %s, A=%s -> %d attacks",
		att.UnitName, att.Models, att.Weapon, att.Attacks, attacks))

	// Hits
	logs = append(logs, fmt.Sprintf("To Hit: needs %d+", att.WSkill))
	hits := 0
	for i := 0; i < attacks; i++ {
		roll := d.RollD6("melee_hit", att.UnitID)
		if roll >= att.WSkill && roll != 1 {
			hits++
			logs = append(logs, fmt.Sprintf("Hit roll %d: %d -> HIT", i+1, roll))
		} else {
			logs = append(logs, fmt.Sprintf("Hit roll %d: %d -> MISS", i+1, roll))
		}
	}
	res.Hits = hits
	logs = append(logs, fmt.Sprintf("Hits total: %d", hits))

	// Wounds
	woundTN := woundTarget(att.Strength, def.Toughness)
	logs = append(logs, fmt.Sprintf("To Wound: S %d vs T %d -> needs %d+", att.Strength, def.Toughness, woundTN))
	wounds := 0
	for i := 0; i < hits; i++ {
		roll := d.RollD6("melee_wound", att.UnitID)
		if roll >= woundTN && roll != 1 {
			wounds++
			logs = append(logs, fmt.Sprintf("Wound roll %d: %d -> WOUND", i+1, roll))
		} else {
			logs = append(logs, fmt.Sprintf("Wound roll %d: %d -> FAIL", i+1, roll))
		}
	}
	res.Wounds = wounds
	logs = append(logs, fmt.Sprintf("Wounds total: %d", wounds))

	// Saves
	saveTN := bestSaveThreshold(def.Save, def.InvSave, att.AP)
	if saveTN >= 7 {
		logs = append(logs, fmt.Sprintf("Saves: AP %d leaves no save", att.AP))
	} else {
		logs = append(logs, fmt.Sprintf("Saves: AP %d -> needs %d+", att.AP, saveTN))
	}
	saved, unsaved := 0, 0
	for i := 0; i < wounds; i++ {
		if saveTN >= 7 {
			unsaved++
			continue
		}
		roll := d.RollD6("melee_save", def.UnitID)
		if roll >= saveTN && roll != 1 {
			saved++
			logs = append(logs, fmt.Sprintf("Save roll %d: %d -> SAVED", i+1, roll))
		} else {
			unsaved++
			logs = append(logs, fmt.Sprintf("Save roll %d: %d -> FAILED", i+1, roll))
		}
	}
	res.Saved, res.Unsaved = saved, unsaved
	logs = append(logs, fmt.Sprintf("Saves total: %d, Unsaved total: %d", saved, unsaved))

	// Damage, with Feel No Pain per damage point
	total := 0
	for i := 0; i < unsaved; i++ {
		dmg := d.RollExpr("melee_damage", att.UnitID, att.Damage)
		if def.FNP > 0 && dmg > 0 {
			ignored := 0
			for j := 0; j < dmg; j++ {
				r := d.RollD6("feel_no_pain", def.UnitID)
				if r >= def.FNP && r != 1 {
					ignored++
				}
			}
			if ignored > 0 {
				logs = append(logs, fmt.Sprintf("Feel No Pain %d+: ignored %d of %d damage", def.FNP, ignored, dmg))
				dmg -= ignored
			}
		}
		res.Damage = append(res.Damage, dmg)
		total += dmg
		logs = append(logs, fmt.Sprintf("Damage roll %d: %s -> %d", i+1, att.Damage, dmg))
	}
	res.DamageTotal = total
	logs = append(logs, fmt.Sprintf("Total Damage: %d", total))
	res.Logs = logs
	return res
}
