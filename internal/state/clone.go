package state

// Clone returns a deep copy of the game. Used by the controller to hand
// phases a snapshot, and by tests verifying replay determinism.
func (g *Game) Clone() *Game {
	out := &Game{
		Players: make(map[int]*Player, len(g.Players)),
		Units:   make(map[string]*Unit, len(g.Units)),
		Board:   g.Board,
		Meta:    g.Meta,
	}
	out.Meta.Notes = append([]string(nil), g.Meta.Notes...)
	for id, p := range g.Players {
		cp := *p
		cp.Secondaries = append([]string(nil), p.Secondaries...)
		cp.Flags = cloneFlags(p.Flags)
		out.Players[id] = &cp
	}
	for id, u := range g.Units {
		cu := *u
		cu.Flags = cloneFlags(u.Flags)
		cu.Models = make([]Model, len(u.Models))
		for i, m := range u.Models {
			cm := m
			if m.Pos != nil {
				pos := *m.Pos
				cm.Pos = &pos
			}
			cu.Models[i] = cm
		}
		out.Units[id] = &cu
	}
	out.Board.Terrain = append([]Terrain(nil), g.Board.Terrain...)
	out.Board.Objectives = append([]Objective(nil), g.Board.Objectives...)
	out.Board.Zones = make(map[int]Zone, len(g.Board.Zones))
	for k, v := range g.Board.Zones {
		out.Board.Zones[k] = v
	}
	return out
}

// Clone returns a deep copy of a single unit, for what-if checks against
// proposed positions.
func (u *Unit) Clone() *Unit {
	cu := *u
	cu.Flags = cloneFlags(u.Flags)
	cu.Models = make([]Model, len(u.Models))
	for i, m := range u.Models {
		cm := m
		if m.Pos != nil {
			pos := *m.Pos
			cm.Pos = &pos
		}
		cu.Models[i] = cm
	}
	return &cu
}

func cloneFlags(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
