package state

import "fmt"

// Diff path builders. Keeping these in one place stops phases from
// drifting on path spelling, which would silently desync peers.

func UnitStatusPath(id string) string { return "units." + id + ".status" }

func UnitFlagPath(id, flag string) string { return "units." + id + ".flags." + flag }

func ModelPosPath(id string, i int) string {
	return fmt.Sprintf("units.%s.models.%d.pos", id, i)
}

func ModelAlivePath(id string, i int) string {
	return fmt.Sprintf("units.%s.models.%d.alive", id, i)
}

func ModelWoundsPath(id string, i int) string {
	return fmt.Sprintf("units.%s.models.%d.wounds", id, i)
}

func PlayerCPPath(p int) string { return fmt.Sprintf("players.%d.cp", p) }

func PlayerVPPath(p int) string { return fmt.Sprintf("players.%d.vp", p) }

func PlayerSecondariesPath(p int) string { return fmt.Sprintf("players.%d.secondaries", p) }

func ObjectiveHolderPath(i int) string { return fmt.Sprintf("board.objectives.%d.holder", i) }
