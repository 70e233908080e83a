package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordActionAccumulates(t *testing.T) {
	ResetMatches()
	RecordAction("r1", true, 3)
	RecordAction("r1", true, 2)
	RecordAction("r1", false, 0)
	RecordRolls("r1", 7)

	m := Match("r1")
	assert.Equal(t, 2, m.Actions)
	assert.Equal(t, 1, m.Rejected)
	assert.Equal(t, 5, m.Diffs)
	assert.Equal(t, 7, m.Rolls)

	Forget("r1")
	assert.Equal(t, MatchStats{}, Match("r1"))
}

func TestDailyMaxKeepsBestAttack(t *testing.T) {
	ResetDaily()
	_, ok := MaxAttackToday()
	assert.False(t, ok)

	ReportAttack(MaxAttack{Room: "r1", Unit: "u1", Damage: 3, Unsaved: 2})
	ReportAttack(MaxAttack{Room: "r1", Unit: "u2", Damage: 2, Unsaved: 5})
	best, ok := MaxAttackToday()
	assert.True(t, ok)
	assert.Equal(t, "u1", best.Unit)

	// Equal damage falls back to unsaved wounds.
	ReportAttack(MaxAttack{Room: "r2", Unit: "u3", Damage: 3, Unsaved: 4})
	best, _ = MaxAttackToday()
	assert.Equal(t, "u3", best.Unit)
}
