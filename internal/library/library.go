// Package library loads faction and army definitions from YAML files and
// turns them into match state. The file format is data-only: datasheets
// carry the static profile, armies reference datasheets with a model
// count.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/pefman/w40k-tabletop/internal/state"
)

// Datasheet is one entry in a faction file. The json tags are for the
// data service, which serves the catalog as-is.
type Datasheet struct {
	ID           string        `yaml:"id" json:"id"`
	BaseMM       float64       `yaml:"base_mm" json:"base_mm"`
	DefaultCount int           `yaml:"default_count" json:"default_count"`
	Profile      state.Profile `yaml:"profile" json:"profile"`
}

// Faction is one YAML file in the library directory.
type Faction struct {
	ID         string      `yaml:"id" json:"id"`
	Name       string      `yaml:"name" json:"name"`
	Datasheets []Datasheet `yaml:"datasheets" json:"datasheets"`
}

// Library is the loaded faction catalog.
type Library struct {
	factions map[string]*Faction
	log      *zap.Logger
}

// Load reads every .yaml/.yml file in dir as a faction file. Files that
// fail to parse are skipped with a log line rather than failing the whole
// catalog.
func Load(dir string, log *zap.Logger) (*Library, error) {
	if log == nil {
		log = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read library dir: %w", err)
	}
	lib := &Library{factions: map[string]*Faction{}, log: log}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("skipping unreadable faction file", zap.String("path", path), zap.Error(err))
			continue
		}
		f, err := ParseFaction(data)
		if err != nil {
			log.Warn("skipping invalid faction file", zap.String("path", path), zap.Error(err))
			continue
		}
		lib.factions[f.ID] = f
		log.Info("loaded faction",
			zap.String("id", f.ID),
			zap.Int("datasheets", len(f.Datasheets)))
	}
	if len(lib.factions) == 0 {
		return nil, fmt.Errorf("no faction files in %s", dir)
	}
	return lib, nil
}

// ParseFaction parses and validates one faction file.
func ParseFaction(data []byte) (*Faction, error) {
	var f Faction
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse faction: %w", err)
	}
	if f.ID == "" {
		return nil, fmt.Errorf("faction is missing an id")
	}
	seen := map[string]bool{}
	for i := range f.Datasheets {
		d := &f.Datasheets[i]
		if err := validateDatasheet(d); err != nil {
			return nil, fmt.Errorf("datasheet %q: %w", d.ID, err)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate datasheet id %q", d.ID)
		}
		seen[d.ID] = true
	}
	return &f, nil
}

func validateDatasheet(d *Datasheet) error {
	switch {
	case d.ID == "":
		return fmt.Errorf("missing id")
	case d.BaseMM <= 0:
		return fmt.Errorf("base_mm must be positive")
	case d.DefaultCount < 1:
		return fmt.Errorf("default_count must be at least 1")
	case d.Profile.Move <= 0:
		return fmt.Errorf("profile move must be positive")
	case d.Profile.Wounds < 1:
		return fmt.Errorf("profile wounds must be at least 1")
	case d.Profile.Toughness < 1:
		return fmt.Errorf("profile toughness must be at least 1")
	case d.Profile.Save < 2 || d.Profile.Save > 7:
		return fmt.Errorf("profile save must be 2..7")
	case d.Profile.Leadership < 2:
		return fmt.Errorf("profile leadership must be at least 2")
	}
	for _, w := range d.Profile.Weapons {
		if w.Name == "" {
			return fmt.Errorf("weapon without a name")
		}
		if w.Skill < 2 || w.Skill > 6 {
			return fmt.Errorf("weapon %q skill must be 2..6", w.Name)
		}
	}
	return nil
}

// FactionIDs lists loaded faction ids in sorted order.
func (l *Library) FactionIDs() []string {
	ids := make([]string, 0, len(l.factions))
	for id := range l.factions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Faction looks up a faction by id.
func (l *Library) Faction(id string) (*Faction, bool) {
	f, ok := l.factions[id]
	return f, ok
}

// Datasheet looks up a datasheet inside a faction.
func (l *Library) Datasheet(factionID, sheetID string) (*Datasheet, bool) {
	f, ok := l.factions[factionID]
	if !ok {
		return nil, false
	}
	for i := range f.Datasheets {
		if f.Datasheets[i].ID == sheetID {
			return &f.Datasheets[i], true
		}
	}
	return nil, false
}

// ArmyUnit is one unit entry in an army file: a datasheet reference plus
// an optional model-count override.
type ArmyUnit struct {
	ID        string `yaml:"id"`
	Faction   string `yaml:"faction"`
	Datasheet string `yaml:"datasheet"`
	Count     int    `yaml:"count"`
}

// Army is a player's list.
type Army struct {
	Name  string     `yaml:"name"`
	Units []ArmyUnit `yaml:"units"`
}

// LoadArmy reads one army file.
func LoadArmy(path string) (*Army, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read army: %w", err)
	}
	return ParseArmy(data)
}

// ParseArmy parses and validates one army file. Datasheet references are
// resolved later, against a Library.
func ParseArmy(data []byte) (*Army, error) {
	var a Army
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse army: %w", err)
	}
	if len(a.Units) == 0 {
		return nil, fmt.Errorf("army has no units")
	}
	seen := map[string]bool{}
	for _, u := range a.Units {
		if u.ID == "" || u.Faction == "" || u.Datasheet == "" {
			return nil, fmt.Errorf("army unit needs id, faction and datasheet")
		}
		if seen[u.ID] {
			return nil, fmt.Errorf("duplicate army unit id %q", u.ID)
		}
		seen[u.ID] = true
	}
	return &a, nil
}

// Points totals an army's cost against the library.
func (l *Library) Points(a *Army) (int, error) {
	total := 0
	for _, u := range a.Units {
		d, ok := l.Datasheet(u.Faction, u.Datasheet)
		if !ok {
			return 0, fmt.Errorf("unknown datasheet %s/%s", u.Faction, u.Datasheet)
		}
		total += d.Profile.Points
	}
	return total, nil
}

// BuildGame assembles a fresh match from two armies. Player 1's unit ids
// get a "p1-" prefix and player 2's "p2-" so the two lists can never
// collide.
func (l *Library) BuildGame(width, height float64, army1, army2 *Army) (*state.Game, error) {
	g := state.NewGame(width, height)
	g.Players[1].Name = army1.Name
	g.Players[2].Name = army2.Name
	for player, army := range map[int]*Army{1: army1, 2: army2} {
		prefix := fmt.Sprintf("p%d-", player)
		for _, u := range army.Units {
			d, ok := l.Datasheet(u.Faction, u.Datasheet)
			if !ok {
				return nil, fmt.Errorf("player %d: unknown datasheet %s/%s", player, u.Faction, u.Datasheet)
			}
			count := u.Count
			if count == 0 {
				count = d.DefaultCount
			}
			if count < 1 {
				return nil, fmt.Errorf("player %d unit %q: count must be at least 1", player, u.ID)
			}
			g.AddUnit(prefix+u.ID, player, count, d.BaseMM, d.Profile)
		}
	}
	return g, nil
}
