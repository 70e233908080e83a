// Package stats keeps in-memory match statistics for the game server:
// per-match action counts and the best melee exchange seen each day.
package stats

import (
	"sync"
	"time"
)

// MatchStats accumulates per match, keyed by room id.
type MatchStats struct {
	Actions   int   `json:"actions"`
	Rejected  int   `json:"rejected"`
	Diffs     int   `json:"diffs"`
	Rolls     int   `json:"rolls"`
	StartedAt int64 `json:"started_at"`
}

// MaxAttack is the standout melee exchange of a day.
type MaxAttack struct {
	Room    string `json:"room"`
	Unit    string `json:"unit"`
	Weapon  string `json:"weapon"`
	Unsaved int    `json:"unsaved"`
	Damage  int    `json:"damage"`
	At      int64  `json:"at"`
}

var (
	mu       sync.Mutex
	matches  = make(map[string]*MatchStats)
	dailyMax = make(map[string]MaxAttack)
)

func dateKey() string { return time.Now().UTC().Format("2006-01-02") }

// RecordAction counts one submitted action and the diffs it produced.
func RecordAction(room string, accepted bool, diffs int) {
	mu.Lock()
	defer mu.Unlock()
	m := matches[room]
	if m == nil {
		m = &MatchStats{StartedAt: time.Now().Unix()}
		matches[room] = m
	}
	if accepted {
		m.Actions++
		m.Diffs += diffs
	} else {
		m.Rejected++
	}
}

// RecordRolls adds to a match's dice-roll count.
func RecordRolls(room string, n int) {
	mu.Lock()
	defer mu.Unlock()
	m := matches[room]
	if m == nil {
		m = &MatchStats{StartedAt: time.Now().Unix()}
		matches[room] = m
	}
	m.Rolls += n
}

// Match returns a copy of a match's stats.
func Match(room string) MatchStats {
	mu.Lock()
	defer mu.Unlock()
	if m, ok := matches[room]; ok {
		return *m
	}
	return MatchStats{}
}

// Forget drops a finished match.
func Forget(room string) {
	mu.Lock()
	defer mu.Unlock()
	delete(matches, room)
}

// ReportAttack records a melee exchange and keeps it as the daily max if
// it beats the current one (total damage first, unsaved wounds as the
// tiebreak).
func ReportAttack(a MaxAttack) {
	if a.At == 0 {
		a.At = time.Now().Unix()
	}
	mu.Lock()
	defer mu.Unlock()
	key := dateKey()
	cur, ok := dailyMax[key]
	if !ok || a.Damage > cur.Damage || (a.Damage == cur.Damage && a.Unsaved > cur.Unsaved) {
		dailyMax[key] = a
	}
}

// MaxAttackToday returns the best exchange recorded today.
func MaxAttackToday() (MaxAttack, bool) {
	mu.Lock()
	defer mu.Unlock()
	a, ok := dailyMax[dateKey()]
	return a, ok
}
