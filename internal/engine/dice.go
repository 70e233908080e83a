// Package engine provides the deterministic dice service. Every roll the
// rules make goes through a Dice instance so a match seeded the same way
// replays identically, and tests can script exact die faces through the
// same code path the real RNG uses.
package engine

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var diceRe = regexp.MustCompile(`(?i)^\s*(\d+)?\s*d\s*(\d+)(\s*([+\-x*])\s*(\d+))?\s*$`)

// Roller is the randomness port. The default is a seeded *rand.Rand;
// tests use Scripted to feed pre-chosen faces.
type Roller interface {
	// Die returns a uniform value in 1..sides.
	Die(sides int) int
}

type seededRoller struct{ r *rand.Rand }

func (s seededRoller) Die(sides int) int { return 1 + s.r.Intn(sides) }

// Scripted replays a fixed sequence of faces and fails loudly when the
// script runs dry, so a test never silently falls back to randomness.
type Scripted struct {
	Faces []int
	next  int
}

func (s *Scripted) Die(sides int) int {
	if s.next >= len(s.Faces) {
		panic(fmt.Sprintf("scripted dice exhausted after %d rolls", s.next))
	}
	v := s.Faces[s.next]
	s.next++
	return v
}

// Roll is one append-only log entry: what was rolled, for whom, and why.
type Roll struct {
	Context string `json:"context"`
	Unit    string `json:"unit,omitempty"`
	Values  []int  `json:"values"`
	Total   int    `json:"total"`
}

// Dice is the per-match dice service. Not safe for concurrent use; the
// controller serializes all access (one action at a time).
type Dice struct {
	roller Roller
	log    []Roll
	zlog   *zap.Logger
}

// NewDice returns a dice service seeded for reproducible replay.
func NewDice(seed int64) *Dice {
	return &Dice{roller: seededRoller{r: rand.New(rand.NewSource(seed))}}
}

// NewScriptedDice returns a dice service that consumes the given faces in
// order. Resolution and logging are identical to the seeded path.
func NewScriptedDice(faces ...int) *Dice {
	return &Dice{roller: &Scripted{Faces: faces}}
}

// WithLogger attaches a zap logger; every roll is then also logged.
func (d *Dice) WithLogger(l *zap.Logger) *Dice {
	d.zlog = l
	return d
}

func (d *Dice) record(context, unit string, values ...int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	d.log = append(d.log, Roll{Context: context, Unit: unit, Values: values, Total: total})
	if d.zlog != nil {
		d.zlog.Info("roll",
			zap.String("context", context),
			zap.String("unit", unit),
			zap.Ints("values", values),
			zap.Int("total", total))
	}
	return total
}

// RollD6 rolls one d6 tagged with a context label and the acting unit.
func (d *Dice) RollD6(context, unit string) int {
	v := d.roller.Die(6)
	d.record(context, unit, v)
	return v
}

// Roll2D6 rolls two d6 and returns both faces.
func (d *Dice) Roll2D6(context, unit string) (int, int) {
	a, b := d.roller.Die(6), d.roller.Die(6)
	d.record(context, unit, a, b)
	return a, b
}

// RollExpr evaluates a dice expression: N, NdM, NdM+K, NdM-K, NdM xK.
// Unparseable expressions evaluate to 0.
func (d *Dice) RollExpr(context, unit, expr string) int {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0
	}
	if n, err := strconv.Atoi(expr); err == nil {
		d.record(context, unit, n)
		return n
	}
	m := diceRe.FindStringSubmatch(expr)
	if m == nil {
		return 0
	}
	count := 1
	if m[1] != "" {
		count, _ = strconv.Atoi(m[1])
	}
	sides, _ := strconv.Atoi(m[2])
	values := make([]int, 0, count)
	total := 0
	for i := 0; i < count; i++ {
		v := d.roller.Die(sides)
		values = append(values, v)
		total += v
	}
	if m[3] != "" {
		op := m[4]
		k, _ := strconv.Atoi(m[5])
		switch op {
		case "+":
			total += k
		case "-":
			total -= k
		case "x", "*":
			total *= k
		}
	}
	if total < 0 {
		total = 0
	}
	d.log = append(d.log, Roll{Context: context, Unit: unit, Values: values, Total: total})
	if d.zlog != nil {
		d.zlog.Info("roll",
			zap.String("context", context),
			zap.String("unit", unit),
			zap.String("expr", expr),
			zap.Int("total", total))
	}
	return total
}

// MaxExpr returns the maximum value a dice expression can produce, e.g.
// for abilities that convert a damage roll into its maximum.
func MaxExpr(expr string) int {
	expr = strings.TrimSpace(expr)
	if n, err := strconv.Atoi(expr); err == nil {
		return n
	}
	m := diceRe.FindStringSubmatch(expr)
	if m == nil {
		return 0
	}
	count := 1
	if m[1] != "" {
		count, _ = strconv.Atoi(m[1])
	}
	sides, _ := strconv.Atoi(m[2])
	total := count * sides
	if m[3] != "" {
		k, _ := strconv.Atoi(m[5])
		switch m[4] {
		case "+":
			total += k
		case "-":
			total -= k
		case "x", "*":
			total *= k
		}
	}
	if total < 0 {
		total = 0
	}
	return total
}

// Log returns the append-only roll log.
func (d *Dice) Log() []Roll { return d.log }
