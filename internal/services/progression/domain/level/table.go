// Package level implements the experience ledger: threshold tables mapping
// cumulative XP to levels and stat-point grants.
package level

import "fmt"

// Threshold is one row of a leveling curve: the cumulative XP required to
// reach Level and the points granted when the threshold is crossed.
type Threshold struct {
	Level  int
	XP     int64
	Points int
}

// Table is a validated, ordered leveling curve.
//
// The zero value is unusable; build tables with NewTable so lookups can rely
// on the ordering invariants.
type Table struct {
	thresholds []Threshold
}

// NewTable validates and builds a leveling curve.
//
// Rules: at least one row, levels start at 1 and increase by exactly one,
// the first row requires 0 XP, XP strictly increases, and point grants are
// non-negative.
func NewTable(thresholds []Threshold) (Table, error) {
	if len(thresholds) == 0 {
		return Table{}, fmt.Errorf("threshold table requires at least one row")
	}
	for i, row := range thresholds {
		if row.Level != i+1 {
			return Table{}, fmt.Errorf("threshold row %d: expected level %d, got %d", i, i+1, row.Level)
		}
		if row.Points < 0 {
			return Table{}, fmt.Errorf("threshold level %d: points must be non-negative", row.Level)
		}
		if i == 0 {
			if row.XP != 0 {
				return Table{}, fmt.Errorf("threshold level 1 must require 0 xp, got %d", row.XP)
			}
			continue
		}
		if row.XP <= thresholds[i-1].XP {
			return Table{}, fmt.Errorf("threshold level %d: xp %d must exceed level %d xp %d",
				row.Level, row.XP, thresholds[i-1].Level, thresholds[i-1].XP)
		}
	}
	rows := append([]Threshold(nil), thresholds...)
	return Table{thresholds: rows}, nil
}

// MaxLevel returns the highest level the table can grant.
func (t Table) MaxLevel() int {
	return len(t.thresholds)
}

// LevelForXP returns the greatest level whose threshold is at or below xp.
// Negative xp clamps to level 1.
func (t Table) LevelForXP(xp int64) int {
	lvl := 1
	for _, row := range t.thresholds {
		if row.XP > xp {
			break
		}
		lvl = row.Level
	}
	return lvl
}

// PointsForRange sums the point grants of every threshold crossed when
// cumulative XP moves from oldXP to newXP. A threshold counts when
// oldXP < threshold.XP <= newXP, so repeated calls over a growing total never
// double-count a level.
func (t Table) PointsForRange(oldXP, newXP int64) int {
	if newXP <= oldXP {
		return 0
	}
	points := 0
	for _, row := range t.thresholds {
		if row.XP > newXP {
			break
		}
		if row.XP > oldXP {
			points += row.Points
		}
	}
	return points
}

// CumulativePoints sums the point grants of every threshold at or below xp.
// The level-1 row (0 XP) counts, so tables that grant nothing at level 1
// should carry a zero there.
func (t Table) CumulativePoints(xp int64) int {
	points := 0
	for _, row := range t.thresholds {
		if row.XP > xp {
			break
		}
		points += row.Points
	}
	return points
}

// NextThreshold returns the first threshold above xp, or false when xp is at
// or past the table's ceiling.
func (t Table) NextThreshold(xp int64) (Threshold, bool) {
	for _, row := range t.thresholds {
		if row.XP > xp {
			return row, true
		}
	}
	return Threshold{}, false
}

// Thresholds returns a copy of the table rows in ascending order.
func (t Table) Thresholds() []Threshold {
	return append([]Threshold(nil), t.thresholds...)
}
