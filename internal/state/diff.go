package state

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pefman/w40k-tabletop/internal/geometry"
)

// Op is a diff operation.
type Op string

const (
	OpSet    Op = "set"
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// Diff is a single ordered mutation instruction against the canonical
// state tree, addressed by a dotted path such as "units.u1.flags.moved".
// Diffs are what gets shipped to remote peers: applying the same ordered
// list to the same state must produce an identical state on every peer.
type Diff struct {
	Op    Op     `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// Set builds a set diff.
func Set(path string, value any) Diff { return Diff{Op: OpSet, Path: path, Value: value} }

// Add builds an add (append) diff.
func Add(path string, value any) Diff { return Diff{Op: OpAdd, Path: path, Value: value} }

// Remove builds a remove diff.
func Remove(path string) Diff { return Diff{Op: OpRemove, Path: path} }

// Applier applies diffs to a Game. In strict mode (tests) structurally
// invalid paths fail loudly; otherwise removes of missing keys are
// tolerated but malformed paths still error so the controller can turn
// them into processing failures rather than corrupt state.
type Applier struct {
	Strict bool
}

// Apply applies each diff in list order. Each op either fully applies or
// errors before touching anything; the controller decides what to do with
// a partially applied list (it validates diffs come from trusted phases).
func (a Applier) Apply(g *Game, diffs []Diff) error {
	for i, d := range diffs {
		if err := a.applyOne(g, d); err != nil {
			return fmt.Errorf("diff %d (%s %s): %w", i, d.Op, d.Path, err)
		}
	}
	return nil
}

func (a Applier) applyOne(g *Game, d Diff) error {
	parts := strings.Split(d.Path, ".")
	if len(parts) < 2 {
		return fmt.Errorf("path too short")
	}
	switch parts[0] {
	case "meta":
		return a.applyMeta(g, parts[1:], d)
	case "players":
		return a.applyPlayer(g, parts[1:], d)
	case "units":
		return a.applyUnit(g, parts[1:], d)
	case "board":
		return a.applyBoard(g, parts[1:], d)
	}
	return fmt.Errorf("unknown root %q", parts[0])
}

func (a Applier) applyMeta(g *Game, parts []string, d Diff) error {
	switch parts[0] {
	case "round":
		return withInt(d, func(v int) { g.Meta.Round = v })
	case "phase":
		return withString(d, func(v string) { g.Meta.Phase = v })
	case "active_player":
		return withInt(d, func(v int) { g.Meta.ActivePlayer = v })
	case "first_player":
		return withInt(d, func(v int) { g.Meta.FirstPlayer = v })
	case "battle_ended":
		return withBool(d, func(v bool) { g.Meta.BattleEnded = v })
	case "notes":
		if d.Op != OpAdd {
			return fmt.Errorf("notes only supports add")
		}
		s, ok := asString(d.Value)
		if !ok {
			return fmt.Errorf("notes value must be a string")
		}
		g.Meta.Notes = append(g.Meta.Notes, s)
		return nil
	}
	return fmt.Errorf("unknown meta field %q", parts[0])
}

func (a Applier) applyPlayer(g *Game, parts []string, d Diff) error {
	if len(parts) < 2 {
		return fmt.Errorf("player path too short")
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("bad player id %q", parts[0])
	}
	p, ok := g.Players[id]
	if !ok {
		return fmt.Errorf("no player %d", id)
	}
	switch parts[1] {
	case "name":
		return withString(d, func(v string) { p.Name = v })
	case "cp":
		return withInt(d, func(v int) { p.CP = v })
	case "vp":
		return withInt(d, func(v int) { p.VP = v })
	case "secondaries":
		if d.Op != OpAdd {
			return fmt.Errorf("secondaries only supports add")
		}
		s, ok := asString(d.Value)
		if !ok {
			return fmt.Errorf("secondaries value must be a string")
		}
		p.Secondaries = append(p.Secondaries, s)
		return nil
	case "flags":
		if len(parts) != 3 {
			return fmt.Errorf("player flag path needs a name")
		}
		return a.applyFlag(&p.Flags, parts[2], d)
	}
	return fmt.Errorf("unknown player field %q", parts[1])
}

func (a Applier) applyUnit(g *Game, parts []string, d Diff) error {
	if len(parts) < 2 {
		return fmt.Errorf("unit path too short")
	}
	u, ok := g.Units[parts[0]]
	if !ok {
		return fmt.Errorf("no unit %q", parts[0])
	}
	switch parts[1] {
	case "status":
		return withString(d, func(v string) { u.Status = UnitStatus(v) })
	case "flags":
		if len(parts) != 3 {
			return fmt.Errorf("unit flag path needs a name")
		}
		return a.applyFlag(&u.Flags, parts[2], d)
	case "models":
		if len(parts) != 4 {
			return fmt.Errorf("model path needs index and field")
		}
		idx, err := strconv.Atoi(parts[2])
		if err != nil || idx < 0 || idx >= len(u.Models) {
			return fmt.Errorf("bad model index %q", parts[2])
		}
		m := &u.Models[idx]
		switch parts[3] {
		case "alive":
			return withBool(d, func(v bool) { m.Alive = v })
		case "wounds":
			return withInt(d, func(v int) { m.Wounds = v })
		case "pos":
			if d.Op == OpRemove {
				m.Pos = nil
				return nil
			}
			p, ok := asPoint(d.Value)
			if !ok {
				return fmt.Errorf("pos value must be a point")
			}
			m.Pos = &p
			return nil
		}
		return fmt.Errorf("unknown model field %q", parts[3])
	}
	return fmt.Errorf("unknown unit field %q", parts[1])
}

func (a Applier) applyBoard(g *Game, parts []string, d Diff) error {
	if len(parts) == 3 && parts[0] == "objectives" && parts[2] == "holder" {
		idx, err := strconv.Atoi(parts[1])
		if err != nil || idx < 0 || idx >= len(g.Board.Objectives) {
			return fmt.Errorf("bad objective index %q", parts[1])
		}
		return withInt(d, func(v int) { g.Board.Objectives[idx].Holder = v })
	}
	return fmt.Errorf("unknown board path")
}

// applyFlag handles set/remove on a flags map, creating the map on set
// (intermediate-container rule). Removing a missing flag is a no-op
// unless the applier is strict.
func (a Applier) applyFlag(flags *map[string]bool, name string, d Diff) error {
	switch d.Op {
	case OpSet:
		v, ok := asBool(d.Value)
		if !ok {
			return fmt.Errorf("flag value must be a bool")
		}
		if *flags == nil {
			*flags = map[string]bool{}
		}
		(*flags)[name] = v
		return nil
	case OpRemove:
		if _, ok := (*flags)[name]; !ok && a.Strict {
			return fmt.Errorf("flag %q not set", name)
		}
		delete(*flags, name)
		return nil
	}
	return fmt.Errorf("flags do not support %s", d.Op)
}

func withInt(d Diff, f func(int)) error {
	if d.Op != OpSet {
		return fmt.Errorf("field only supports set")
	}
	v, ok := asInt(d.Value)
	if !ok {
		return fmt.Errorf("value must be an int")
	}
	f(v)
	return nil
}

func withBool(d Diff, f func(bool)) error {
	if d.Op != OpSet {
		return fmt.Errorf("field only supports set")
	}
	v, ok := asBool(d.Value)
	if !ok {
		return fmt.Errorf("value must be a bool")
	}
	f(v)
	return nil
}

func withString(d Diff, f func(string)) error {
	if d.Op != OpSet {
		return fmt.Errorf("field only supports set")
	}
	v, ok := asString(d.Value)
	if !ok {
		return fmt.Errorf("value must be a string")
	}
	f(v)
	return nil
}

// Wire coercions: diffs that round-trip through JSON arrive with float64
// numbers and map-shaped points. Both forms must apply identically.

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case UnitStatus:
		return string(t), true
	}
	return "", false
}

func asPoint(v any) (geometry.Point, bool) {
	switch t := v.(type) {
	case geometry.Point:
		return t, true
	case *geometry.Point:
		if t == nil {
			return geometry.Point{}, false
		}
		return *t, true
	case map[string]any:
		x, okx := asFloat(t["x"])
		y, oky := asFloat(t["y"])
		if okx && oky {
			return geometry.Point{X: x, Y: y}, true
		}
	}
	return geometry.Point{}, false
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	}
	return 0, false
}
