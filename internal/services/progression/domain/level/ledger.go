package level

// Ledger bundles the two leveling curves the engine consults: the character
// curve (driving character level and stat-point grants) and the per-stat
// curve (driving each attribute's base value above its floor).
//
// All methods are pure lookups; the ledger holds no per-character state.
type Ledger struct {
	character Table
	stat      Table
	statFloor int
}

// NewLedger builds a ledger from validated tables. statFloor is the base
// value every attribute starts at before any stat XP is earned.
func NewLedger(character, stat Table, statFloor int) Ledger {
	return Ledger{character: character, stat: stat, statFloor: statFloor}
}

// CharacterLevel returns the character level for cumulative total XP.
func (l Ledger) CharacterLevel(totalXP int64) int {
	return l.character.LevelForXP(totalXP)
}

// CharacterPointsForRange returns the stat points granted when total XP moves
// from oldXP to newXP, crossing zero or more level thresholds.
func (l Ledger) CharacterPointsForRange(oldXP, newXP int64) int {
	return l.character.PointsForRange(oldXP, newXP)
}

// NextCharacterThreshold returns the next character level threshold above xp.
func (l Ledger) NextCharacterThreshold(xp int64) (Threshold, bool) {
	return l.character.NextThreshold(xp)
}

// StatLevel returns the attribute level for cumulative stat XP.
func (l Ledger) StatLevel(statXP int64) int {
	return l.stat.LevelForXP(statXP)
}

// StatBaseValue returns the attribute base value for cumulative stat XP:
// the floor plus every point grant the stat curve has unlocked.
func (l Ledger) StatBaseValue(statXP int64) int {
	return l.statFloor + l.stat.CumulativePoints(statXP)
}

// StatFloor returns the attribute base value floor.
func (l Ledger) StatFloor() int {
	return l.statFloor
}

// CharacterThresholds returns the character curve's thresholds in ascending
// level order.
func (l Ledger) CharacterThresholds() []Threshold {
	return l.character.Thresholds()
}

// StatThresholds returns the stat curve's thresholds in ascending level order.
func (l Ledger) StatThresholds() []Threshold {
	return l.stat.Thresholds()
}
